package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"lingopad/internal/document/delta"
	"lingopad/internal/document/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDocumentRepository(db, delta.Codec{}), mock
}

func TestCommitSuccess(t *testing.T) {
	repo, mock := newRepo(t)

	content := `{"ops":[{"insert":"hello"}]}`
	ops := []json.RawMessage{json.RawMessage(`{"retain":5}`), json.RawMessage(`{"insert":" world"}`)}
	opsJSON, _ := json.Marshal(ops)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT content, version FROM documents WHERE id = \$1 FOR UPDATE`).
		WithArgs("doc1").
		WillReturnRows(sqlmock.NewRows([]string{"content", "version"}).AddRow([]byte(content), int64(3)))
	mock.ExpectExec(`UPDATE documents SET content = \$1, version = \$2, updated_at = NOW\(\) WHERE id = \$3`).
		WithArgs([]byte(`{"ops":[{"insert":"hello world"}]}`), int64(4), "doc1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO document_ops`).
		WithArgs("doc1", int64(4), opsJSON, "client-a").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	newContent, newVersion, err := repo.Commit(context.Background(), "doc1", 3, ops, "client-a")
	require.NoError(t, err)
	assert.Equal(t, int64(4), newVersion)
	assert.JSONEq(t, `{"ops":[{"insert":"hello world"}]}`, string(newContent))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitVersionConflict(t *testing.T) {
	repo, mock := newRepo(t)

	content := `{"ops":[{"insert":"newer"}]}`

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT content, version FROM documents WHERE id = \$1 FOR UPDATE`).
		WithArgs("doc1").
		WillReturnRows(sqlmock.NewRows([]string{"content", "version"}).AddRow([]byte(content), int64(5)))
	mock.ExpectRollback()

	_, _, err := repo.Commit(context.Background(), "doc1", 3,
		[]json.RawMessage{json.RawMessage(`{"insert":"x"}`)}, "client-a")

	var conflict *model.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(5), conflict.CurrentVersion)
	assert.JSONEq(t, content, string(conflict.CurrentContent))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitInvalidOperationRollsBack(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT content, version FROM documents WHERE id = \$1 FOR UPDATE`).
		WithArgs("doc1").
		WillReturnRows(sqlmock.NewRows([]string{"content", "version"}).AddRow([]byte(`{"ops":[{"insert":"hi"}]}`), int64(1)))
	mock.ExpectRollback()

	// Second op in the batch is bad; nothing may be written even though the
	// first op would have applied.
	_, _, err := repo.Commit(context.Background(), "doc1", 1,
		[]json.RawMessage{json.RawMessage(`{"insert":"ok"}`), json.RawMessage(`{"retain":99}`)}, "client-a")

	var invalid *model.InvalidOperationError
	require.ErrorAs(t, err, &invalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT content, version FROM documents WHERE id = \$1 FOR UPDATE`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"content", "version"}))
	mock.ExpectRollback()

	_, _, err := repo.Commit(context.Background(), "ghost", 0,
		[]json.RawMessage{json.RawMessage(`{"insert":"x"}`)}, "client-a")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrentNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`SELECT content, version FROM documents WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"content", "version"}))

	_, _, err := repo.GetCurrent(context.Background(), "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCreateAlreadyExists(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("doc1", []byte(`{"ops":[]}`), "user1", "Untitled").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), "doc1", delta.Empty(), "user1", "Untitled")
	assert.ErrorIs(t, err, model.ErrAlreadyExists)
}

func TestOperationsSince(t *testing.T) {
	repo, mock := newRepo(t)

	opsJSON := `[{"insert":"a"}]`
	testTime := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"document_id", "version", "operations", "origin_id", "committed_at"}).
		AddRow("doc1", int64(2), []byte(opsJSON), "client-a", testTime).
		AddRow("doc1", int64(3), []byte(opsJSON), "client-b", testTime)

	mock.ExpectQuery(`SELECT document_id, version, operations, origin_id, committed_at`).
		WithArgs("doc1", int64(1)).
		WillReturnRows(rows)

	entries, err := repo.OperationsSince(context.Background(), "doc1", 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].Version)
	assert.Equal(t, int64(3), entries[1].Version)
	assert.Equal(t, "client-b", entries[1].OriginID)
}
