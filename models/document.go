package models

import (
	"time"

	"github.com/google/uuid"
)

// Document records an uploaded evidence document. The raw blob lives in
// blob storage at StoragePath; only the extracted text participates in
// prompts, as a segment of the owning side's submission.
type Document struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"storage_path,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
