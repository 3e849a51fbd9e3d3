package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"lingopad/internal/document/delta"
	"lingopad/internal/document/model"
	"lingopad/internal/document/repository"
)

// Disconnector force-closes the live connections of a document's room.
// Implemented by the socket hub.
type Disconnector interface {
	DisconnectDoc(docID string)
}

type DocumentService struct {
	Repo *repository.DocumentRepository
	Hub  Disconnector
}

func NewDocumentService(repo *repository.DocumentRepository, hub Disconnector) *DocumentService {
	return &DocumentService{Repo: repo, Hub: hub}
}

func (s *DocumentService) CreateDocument(ctx context.Context, userID, title string) (string, error) {
	docID := generateDocID()
	if docID == "" {
		return "", errors.New("failed to generate document ID")
	}
	if title == "" {
		title = "Untitled Document"
	}
	err := s.Repo.Create(ctx, docID, delta.Empty(), userID, title)
	return docID, err
}

func (s *DocumentService) GetDocument(ctx context.Context, docID string) (model.Document, error) {
	return s.Repo.Get(ctx, docID)
}

func (s *DocumentService) ListDocuments(ctx context.Context, userID string) ([]model.DocumentMetadata, error) {
	docs, err := s.Repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	metas := make([]model.DocumentMetadata, 0, len(docs))
	for _, doc := range docs {
		metas = append(metas, model.DocumentMetadata{
			ID:        doc.ID,
			Title:     doc.Title,
			Version:   doc.Version,
			UpdatedAt: doc.UpdatedAt,
			Snippet:   snippet(doc),
		})
	}
	return metas, nil
}

// History returns the commit-log entries of a document after a version, for
// audit and client-side recovery. Entries are never mutated after commit.
func (s *DocumentService) History(ctx context.Context, docID string, since int64) ([]model.CommitLogEntry, error) {
	// Distinguish "no newer entries" from "no such document".
	if _, _, err := s.Repo.GetCurrent(ctx, docID); err != nil {
		return nil, err
	}
	return s.Repo.OperationsSince(ctx, docID, since)
}

func (s *DocumentService) DeleteDocument(ctx context.Context, docID, userID string) error {
	affected, err := s.Repo.Delete(ctx, docID, userID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("document not found or unauthorized")
	}
	// Kick everyone still editing; their clients see the close and re-list.
	s.Hub.DisconnectDoc(docID)
	return nil
}

func generateDocID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

func snippet(doc model.Document) string {
	text, err := delta.Text(doc.Content)
	if err != nil {
		return ""
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if len(text) > 100 {
		return text[:100] + "..."
	}
	return text
}
