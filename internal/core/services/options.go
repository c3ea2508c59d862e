package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Metric outcome labels.
const (
	outcomeIngested       = "ingested"
	outcomeAlreadyPresent = "already_present"
	outcomeInProgress     = "in_progress"
	outcomeCanceled       = "canceled"
	outcomeFailed         = "failed"
	outcomeOK             = "ok"
	outcomeNotIngested    = "not_ingested"
	outcomeInvalid        = "invalid"
)

// Option configures optional collaborators of the services.
type Option func(*options)

type options struct {
	lock    driven.IngestionLock
	metrics driven.Metrics
	now     func() time.Time
	newID   func() string
}

// WithLock adds a cross-process ingestion lock.
func WithLock(lock driven.IngestionLock) Option {
	return func(o *options) {
		o.lock = lock
	}
}

// WithMetrics records pipeline metrics.
func WithMetrics(m driven.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock overrides the time source used for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		metrics: noopMetrics{},
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// noopMetrics discards everything.
type noopMetrics struct{}

func (noopMetrics) ObserveIngestion(string, time.Duration, int) {}
func (noopMetrics) ObserveQuery(string, time.Duration, int)     {}
func (noopMetrics) IncCoalesced()                               {}
