package models

import (
	"time"

	"github.com/google/uuid"

	id "etatcivil/pkg/domain"
)

// Document is the metadata of one generated deliverable. The rendered
// bytes themselves are handed to the caller; only metadata and the
// signature are persisted.
type Document struct {
	ID          uuid.UUID
	RequestID   id.RequestID
	FileName    string
	ContentType string
	// Signature is the hex sha256 digest of the rendered content, stored
	// so a printed document can later be checked against the registry.
	Signature string
	CreatedAt time.Time
}

// Rendered is the output of a document generator.
type Rendered struct {
	FileName    string
	ContentType string
	Content     []byte
}
