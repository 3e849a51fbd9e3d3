package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"lingopad/internal/document/model"
	"lingopad/pkg/logger"

	"github.com/lib/pq"
)

// Applier applies an ordered operation batch to an opaque content blob.
// The repository never inspects content itself.
type Applier interface {
	Apply(content json.RawMessage, ops []json.RawMessage) (json.RawMessage, error)
}

type DocumentRepository struct {
	DB      *sql.DB
	applier Applier
}

func NewDocumentRepository(db *sql.DB, applier Applier) *DocumentRepository {
	return &DocumentRepository{DB: db, applier: applier}
}

// Create inserts a new document at version 0.
func (r *DocumentRepository) Create(ctx context.Context, id string, content json.RawMessage, ownerID, title string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO documents (id, content, version, owner_id, title, updated_at) VALUES ($1, $2, 0, $3, $4, NOW())`,
		id, []byte(content), ownerID, title)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return model.ErrAlreadyExists
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to create document %s: %v", id, err)
	}
	return err
}

// GetCurrent returns the authoritative content and version of a document.
func (r *DocumentRepository) GetCurrent(ctx context.Context, docID string) (json.RawMessage, int64, error) {
	var content []byte
	var version int64
	err := r.DB.QueryRowContext(ctx,
		`SELECT content, version FROM documents WHERE id = $1`, docID,
	).Scan(&content, &version)
	if err == sql.ErrNoRows {
		return nil, 0, model.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to read document %s: %v", docID, err)
		return nil, 0, err
	}
	return content, version, nil
}

// Commit applies a batch against the expected version in one transaction:
// row lock, version check, apply, write new state, append the commit-log row.
// Either everything is durable when it returns or nothing is.
func (r *DocumentRepository) Commit(ctx context.Context, docID string, expectedVersion int64, ops []json.RawMessage, originID string) (json.RawMessage, int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		logger.Sugar.Errorf("Failed to begin commit for doc %s: %v", docID, err)
		return nil, 0, err
	}
	defer tx.Rollback()

	var content []byte
	var version int64
	err = tx.QueryRowContext(ctx,
		`SELECT content, version FROM documents WHERE id = $1 FOR UPDATE`, docID,
	).Scan(&content, &version)
	if err == sql.ErrNoRows {
		return nil, 0, model.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to lock document %s: %v", docID, err)
		return nil, 0, err
	}

	if version != expectedVersion {
		return nil, 0, &model.VersionConflictError{CurrentVersion: version, CurrentContent: content}
	}

	newContent, err := r.applier.Apply(content, ops)
	if err != nil {
		return nil, 0, &model.InvalidOperationError{Err: err}
	}

	newVersion := version + 1
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET content = $1, version = $2, updated_at = NOW() WHERE id = $3`,
		[]byte(newContent), newVersion, docID); err != nil {
		logger.Sugar.Errorf("Failed to write document %s at version %d: %v", docID, newVersion, err)
		return nil, 0, err
	}

	opsJSON, err := json.Marshal(ops)
	if err != nil {
		return nil, 0, &model.InvalidOperationError{Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document_ops (document_id, version, operations, origin_id, committed_at) VALUES ($1, $2, $3, $4, NOW())`,
		docID, newVersion, opsJSON, originID); err != nil {
		logger.Sugar.Errorf("Failed to append commit log for doc %s at version %d: %v", docID, newVersion, err)
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit doc %s at version %d: %v", docID, newVersion, err)
		return nil, 0, err
	}
	return newContent, newVersion, nil
}

// OperationsSince returns commit-log entries with version > since, in order.
func (r *DocumentRepository) OperationsSince(ctx context.Context, docID string, since int64) ([]model.CommitLogEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT document_id, version, operations, origin_id, committed_at
		 FROM document_ops WHERE document_id = $1 AND version > $2 ORDER BY version ASC`,
		docID, since)
	if err != nil {
		logger.Sugar.Errorf("Failed to read commit log for doc %s: %v", docID, err)
		return nil, err
	}
	defer rows.Close()

	var entries []model.CommitLogEntry
	for rows.Next() {
		var e model.CommitLogEntry
		var opsJSON []byte
		if err := rows.Scan(&e.DocID, &e.Version, &opsJSON, &e.OriginID, &e.CommittedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(opsJSON, &e.Operations); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns a full document row, including title and owner.
func (r *DocumentRepository) Get(ctx context.Context, docID string) (model.Document, error) {
	var doc model.Document
	var content []byte
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, title, content, version, owner_id, updated_at FROM documents WHERE id = $1`, docID,
	).Scan(&doc.ID, &doc.Title, &content, &doc.Version, &doc.OwnerID, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Document{}, model.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get document %s: %v", docID, err)
		return model.Document{}, err
	}
	doc.Content = content
	return doc, nil
}

// ListByOwner returns every document owned by a user, most recent first.
func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Document, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, title, content, version, owner_id, updated_at FROM documents WHERE owner_id = $1 ORDER BY updated_at DESC`,
		ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents for user %s: %v", ownerID, err)
		return nil, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		var content []byte
		if err := rows.Scan(&doc.ID, &doc.Title, &content, &doc.Version, &doc.OwnerID, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doc.Content = content
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes a document and its commit log if ownerID owns it.
// Returns the number of document rows removed.
func (r *DocumentRepository) Delete(ctx context.Context, docID, ownerID string) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE id = $1 AND owner_id = $2`, docID, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", docID, err)
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		// Not found or not the owner; leave the commit log untouched.
		return 0, nil
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_ops WHERE document_id = $1`, docID); err != nil {
		logger.Sugar.Errorf("Failed to delete commit log for doc %s: %v", docID, err)
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return affected, nil
}
