package domain

// DefaultTopK is the number of passages returned when the caller does not ask.
const DefaultTopK = 10

// QueryRequest asks for passages of one document relevant to a query.
type QueryRequest struct {
	// DocumentID scopes the search to one ingested document.
	DocumentID string

	// Text is the natural-language query.
	Text string

	// TopK is the maximum number of results. Zero selects the default.
	TopK int
}

// SearchResult is a ranked passage. Fields other than Score may be empty
// when the index returned partial metadata.
type SearchResult struct {
	// RecordID is the vector record identifier.
	RecordID string

	// DocumentID is the document the passage belongs to.
	DocumentID string

	// SourceURL is where the document was downloaded from.
	SourceURL string

	// ChunkIndex is the passage position within the document, -1 when unknown.
	ChunkIndex int

	// Text is the passage content.
	Text string

	// Score is the similarity score; higher is more similar.
	Score float64
}

// ResultFromRecord builds a search result from stored metadata.
func ResultFromRecord(id string, meta RecordMetadata, score float64) SearchResult {
	return SearchResult{
		RecordID:   id,
		DocumentID: meta.DocumentID,
		SourceURL:  meta.SourceURL,
		ChunkIndex: meta.ChunkIndex,
		Text:       meta.Text,
		Score:      score,
	}
}
