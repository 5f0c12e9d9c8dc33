package model

const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

type Document struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	DocumentType  string `json:"document_type"`
	SchemaType    string `json:"schema_type"`
	Status        string `json:"status"`
	SourceTextRef string `json:"source_text_ref"`
	Error         string `json:"error,omitempty"`
	Ctime         int64  `json:"ctime"`
	Mtime         int64  `json:"mtime"`
}
