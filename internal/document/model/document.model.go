package model

import (
	"encoding/json"
	"time"
)

// Document is the versioned server-side state of one editable document.
// Content is an opaque blob; only the delta package interprets it.
type Document struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	Version   int64           `json:"version"`
	OwnerID   string          `json:"owner_id"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CommitLogEntry is one accepted operation batch, recorded append-only.
// Version is the version the batch produced.
type CommitLogEntry struct {
	DocID       string            `json:"document_id"`
	Version     int64             `json:"version"`
	Operations  []json.RawMessage `json:"operations"`
	OriginID    string            `json:"origin_id"`
	CommittedAt time.Time         `json:"committed_at"`
}

type CreateDocRequest struct {
	Title string `json:"title"`
}

type CreateDocResponse struct {
	DocID string `json:"document_id"`
}

type DocumentMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Snippet   string    `json:"snippet"`
}
