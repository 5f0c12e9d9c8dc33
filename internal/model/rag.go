package model

// RAGResponse is immutable once created.
type RAGResponse struct {
	ID              string   `json:"id"`
	Query           string   `json:"query"`
	ResponseText    string   `json:"response_text"`
	ConfidenceScore float64  `json:"confidence_score"`
	ModelUsed       string   `json:"model_used"`
	SourceChunkIDs  []string `json:"source_chunk_ids"`
	GeneratedAt     int64    `json:"generated_at"`
}
