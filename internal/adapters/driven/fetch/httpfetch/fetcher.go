// Package httpfetch downloads documents over HTTP(S).
//
// Downloads are bounded in size and optionally rate limited. URLs under a
// configured FHIR server base URL are fetched with an OAuth2 client
// credentials token; all other URLs are fetched anonymously.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/logger"
)

// Ensure Fetcher implements the interface.
var _ driven.Fetcher = (*Fetcher)(nil)

// Default configuration values.
const (
	DefaultTimeout  = 60 * time.Second
	DefaultMaxBytes = 50 << 20

	// defaultBackoff applies after a 429 without a usable Retry-After.
	defaultBackoff = 30 * time.Second
)

// errTooLarge reports a body over the size limit.
var errTooLarge = errors.New("response body exceeds size limit")

// Fetcher is an HTTP document fetcher.
type Fetcher struct {
	client      *http.Client
	authClient  *http.Client
	authBaseURL string
	maxBytes    int64
	limiter     *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time
}

// New creates a fetcher from settings.
func New(settings domain.FetchSettings) *Fetcher {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBytes := settings.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	f := &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}

	if settings.RateLimit > 0 {
		burst := settings.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(settings.RateLimit), burst)
	}

	if settings.HasAuth() && settings.AuthBaseURL != "" {
		cc := clientcredentials.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			TokenURL:     settings.TokenURL,
		}
		// The base client carries the timeout into token and content requests.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
		f.authClient = cc.Client(ctx)
		f.authClient.Timeout = timeout
		f.authBaseURL = strings.TrimRight(settings.AuthBaseURL, "/")
	}

	return f
}

// Fetch downloads rawURL. Non-2xx responses, transport failures and bodies
// over the size limit are returned as *domain.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*driven.FetchedDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("%w: not an http(s) URL", domain.ErrInvalidInput)}
	}

	if err := f.wait(ctx); err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}

	client := f.clientFor(rawURL)
	logger.Debug("fetch: GET %s (authenticated=%t)", rawURL, client == f.authClient)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		f.backoff(resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("%w (%d bytes)", errTooLarge, f.maxBytes)}
	}

	return &driven.FetchedDocument{
		Content:     body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// clientFor returns the authenticated client for URLs under the auth base URL.
func (f *Fetcher) clientFor(rawURL string) *http.Client {
	if f.authClient == nil {
		return f.client
	}
	if rawURL == f.authBaseURL || strings.HasPrefix(rawURL, f.authBaseURL+"/") {
		return f.authClient
	}
	return f.client
}

// wait blocks for any 429 backoff and then for the rate limiter.
func (f *Fetcher) wait(ctx context.Context) error {
	f.mu.Lock()
	retryAt := f.retryAt
	f.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}

	if f.limiter == nil {
		return nil
	}
	return f.limiter.Wait(ctx)
}

// backoff delays later fetches after a 429 response.
func (f *Fetcher) backoff(retryAfter string) {
	d := defaultBackoff
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
		d = time.Duration(secs) * time.Second
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryAt = time.Now().Add(d)
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	if f.authClient != nil {
		f.authClient.CloseIdleConnections()
	}
	return nil
}
