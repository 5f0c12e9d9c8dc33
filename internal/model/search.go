package model

// SearchResult is derived per query, never persisted.
type SearchResult struct {
	ChunkID        string   `json:"chunk_id"`
	DocumentID     string   `json:"document_id"`
	ChunkIndex     int      `json:"chunk_index"`
	Content        string   `json:"content"`
	Score          float64  `json:"score"`
	VectorScore    float64  `json:"vector_score"`
	SchemaElements []string `json:"schema_elements,omitempty"`
	Filename       string   `json:"filename,omitempty"`
	DocumentType   string   `json:"document_type,omitempty"`
	SchemaType     string   `json:"schema_type,omitempty"`
}

type SearchFilters struct {
	DocumentType     string `json:"document_type,omitempty"`
	SchemaType       string `json:"schema_type,omitempty"`
	Status           string `json:"status,omitempty"`
	FilenameContains string `json:"filename_contains,omitempty"`
}
