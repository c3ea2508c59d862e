package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Document is an externally hosted file submitted for ingestion.
// It is created by the caller at request time and never mutated.
type Document struct {
	// SourceURL is where the raw bytes are downloaded from.
	SourceURL string

	// ID is the stable identifier of the clinical record the document is
	// attached to (e.g. a FHIR DocumentReference id). It identifies the
	// ingestion unit.
	ID string

	// Format is the declared format. Empty means "resolve from the response".
	Format Format
}

// Validate checks the fields required to ingest the document.
func (d Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(d.SourceURL) == "" {
		return fmt.Errorf("%w: source url is required", ErrInvalidInput)
	}
	return nil
}

// Chunk represents a bounded contiguous text segment of a document.
// Ordering is significant: the chunk at index 0 marks document presence.
type Chunk struct {
	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the 0-based, contiguous position within the document.
	Index int

	// Text is the chunk content.
	Text string
}

// RecordID returns the vector record identifier for this chunk.
func (c Chunk) RecordID() string {
	return RecordID(c.DocumentID, c.Index)
}

// RecordID derives the deterministic vector record identifier
// "{chunk_index}-{document_id}". No lookup table is needed to rebuild it.
func RecordID(documentID string, chunkIndex int) string {
	return strconv.Itoa(chunkIndex) + "-" + documentID
}

// PresenceRecordID returns the id of the record whose existence marks a
// document as present in the index.
func PresenceRecordID(documentID string) string {
	return RecordID(documentID, 0)
}

// ParseRecordID splits a record id back into chunk index and document id.
func ParseRecordID(recordID string) (chunkIndex int, documentID string, err error) {
	prefix, rest, ok := strings.Cut(recordID, "-")
	if !ok || rest == "" {
		return 0, "", fmt.Errorf("%w: malformed record id %q", ErrInvalidInput, recordID)
	}
	idx, err := strconv.Atoi(prefix)
	if err != nil || idx < 0 {
		return 0, "", fmt.Errorf("%w: malformed record id %q", ErrInvalidInput, recordID)
	}
	return idx, rest, nil
}

// Metadata field names stored alongside every vector record.
const (
	FieldDocumentID = "document_id"
	FieldSourceURL  = "source_url"
	FieldChunkIndex = "chunk_index"
	FieldText       = "chunk_text"
)

// RecordMetadata is the metadata carried by a vector record.
type RecordMetadata struct {
	DocumentID string `json:"document_id"`
	SourceURL  string `json:"source_url"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"chunk_text"`
}

// Field returns the string form of a metadata field for exact-match filtering.
func (m RecordMetadata) Field(name string) (string, bool) {
	switch name {
	case FieldDocumentID:
		return m.DocumentID, true
	case FieldSourceURL:
		return m.SourceURL, true
	case FieldChunkIndex:
		return strconv.Itoa(m.ChunkIndex), true
	case FieldText:
		return m.Text, true
	default:
		return "", false
	}
}

// VectorRecord is a chunk embedding with its metadata, as held by the index.
// Re-upserting the same ID overwrites the previous record.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata RecordMetadata
}

// NewVectorRecord builds the record for an embedded chunk.
func NewVectorRecord(chunk Chunk, sourceURL string, values []float32) VectorRecord {
	return VectorRecord{
		ID:     chunk.RecordID(),
		Values: values,
		Metadata: RecordMetadata{
			DocumentID: chunk.DocumentID,
			SourceURL:  sourceURL,
			ChunkIndex: chunk.Index,
			Text:       chunk.Text,
		},
	}
}

// Filter is an exact-match predicate over metadata fields.
// All entries must match; an empty filter matches everything.
type Filter map[string]string

// DocumentFilter scopes a search to a single document.
func DocumentFilter(documentID string) Filter {
	return Filter{FieldDocumentID: documentID}
}

// Matches reports whether the metadata satisfies every entry of the filter.
// Unknown field names never match.
func (f Filter) Matches(m RecordMetadata) bool {
	for name, want := range f {
		got, ok := m.Field(name)
		if !ok || got != want {
			return false
		}
	}
	return true
}
