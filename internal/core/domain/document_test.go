package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDocument_Validate tests required document fields
func TestDocument_Validate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{
			name: "complete document is valid",
			doc:  Document{ID: "doc-1", SourceURL: "https://example.org/a.pdf"},
		},
		{
			name: "format is optional",
			doc:  Document{ID: "doc-1", SourceURL: "https://example.org/a", Format: FormatJSON},
		},
		{
			name:    "missing id",
			doc:     Document{SourceURL: "https://example.org/a.pdf"},
			wantErr: true,
		},
		{
			name:    "blank id",
			doc:     Document{ID: "  ", SourceURL: "https://example.org/a.pdf"},
			wantErr: true,
		},
		{
			name:    "missing url",
			doc:     Document{ID: "doc-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "0-doc-1", RecordID("doc-1", 0))
	assert.Equal(t, "12-doc-1", RecordID("doc-1", 12))
	assert.Equal(t, "0-doc-1", PresenceRecordID("doc-1"))
	assert.Equal(t, "3-abc", Chunk{DocumentID: "abc", Index: 3}.RecordID())
}

// TestParseRecordID tests round-tripping record ids, including document ids
// that contain the separator
func TestParseRecordID(t *testing.T) {
	idx, docID, err := ParseRecordID(RecordID("doc-with-dashes", 7))
	require.NoError(t, err)
	assert.Equal(t, 7, idx)
	assert.Equal(t, "doc-with-dashes", docID)

	for _, bad := range []string{"", "doc", "x-doc", "-1-doc", "5-"} {
		_, _, err := ParseRecordID(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestNewVectorRecord(t *testing.T) {
	chunk := Chunk{DocumentID: "doc-1", Index: 2, Text: "glucose"}

	rec := NewVectorRecord(chunk, "https://example.org/a.pdf", []float32{1, 2})

	assert.Equal(t, "2-doc-1", rec.ID)
	assert.Equal(t, []float32{1, 2}, rec.Values)
	assert.Equal(t, RecordMetadata{
		DocumentID: "doc-1",
		SourceURL:  "https://example.org/a.pdf",
		ChunkIndex: 2,
		Text:       "glucose",
	}, rec.Metadata)
}

// TestFilter_Matches tests exact-match metadata filtering
func TestFilter_Matches(t *testing.T) {
	meta := RecordMetadata{DocumentID: "doc-1", SourceURL: "u", ChunkIndex: 4, Text: "t"}

	tests := []struct {
		name     string
		filter   Filter
		expected bool
	}{
		{"empty filter matches", Filter{}, true},
		{"nil filter matches", nil, true},
		{"document filter matches", DocumentFilter("doc-1"), true},
		{"other document", DocumentFilter("doc-2"), false},
		{"chunk index as string", Filter{FieldChunkIndex: "4"}, true},
		{"all entries must match", Filter{FieldDocumentID: "doc-1", FieldChunkIndex: "5"}, false},
		{"unknown field never matches", Filter{"patient": "p1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.filter.Matches(meta))
		})
	}
}
