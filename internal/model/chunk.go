package model

type Chunk struct {
	ID             string   `json:"id"`
	DocumentID     string   `json:"document_id"`
	Index          int      `json:"index"`
	Content        string   `json:"content"`
	TokenCount     int      `json:"token_count"`
	SchemaElements []string `json:"schema_elements"`
	HasEmbedding   bool     `json:"has_embedding"`
	Ctime          int64    `json:"ctime"`
}

type ChunkEmbedding struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Embedding  []float32 `json:"embedding"`
	ModelName  string    `json:"model_name"`
	Mtime      int64     `json:"mtime"`
}
