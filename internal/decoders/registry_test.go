package decoders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

type stubDecoder struct {
	formats []domain.Format
	text    string
	err     error
	calls   int
}

func (s *stubDecoder) Formats() []domain.Format { return s.formats }

func (s *stubDecoder) Decode(_ context.Context, _ []byte) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestNewDefaultRegistry_Formats(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []domain.Format{
		domain.FormatCSV,
		domain.FormatJSON,
		domain.FormatPDF,
		domain.FormatText,
	}, r.Formats())
}

func TestRegistry_Decode_Dispatch(t *testing.T) {
	r := NewDefaultRegistry()
	ctx := context.Background()

	text, err := r.Decode(ctx, []byte("A. B. C."), domain.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "A. B. C.", text)

	text, err = r.Decode(ctx, []byte("a,b"), "CSV")
	require.NoError(t, err)
	assert.Equal(t, "a, b", text)

	text, err = r.Decode(ctx, []byte(`{"a":1}`), "application/fhir+json")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", text)

	text, err = r.Decode(ctx, []byte("hello"), "text")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestRegistry_Decode_Unsupported(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		name   string
		format domain.Format
	}{
		{"xml", "xml"},
		{"absent", ""},
		{"docx", "docx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Decode(context.Background(), []byte("<a/>"), tt.format)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

			var unsupported *domain.UnsupportedFormatError
			require.ErrorAs(t, err, &unsupported)
			assert.Equal(t, tt.format, unsupported.Format)
		})
	}
}

func TestRegistry_Decode_KnownFormatWithoutDecoder(t *testing.T) {
	r := NewRegistry()
	_, err := r.Decode(context.Background(), []byte("x"), domain.FormatPDF)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestRegistry_Register_Replaces(t *testing.T) {
	r := NewDefaultRegistry()
	stub := &stubDecoder{formats: []domain.Format{domain.FormatText}, err: errors.New("boom")}
	r.Register(stub)

	_, err := r.Decode(context.Background(), []byte("x"), domain.FormatText)
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}
