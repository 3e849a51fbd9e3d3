package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// VersionConflictError means the submitter's base version is stale.
// It carries the authoritative state so the client can reconcile and resubmit.
type VersionConflictError struct {
	CurrentVersion int64
	CurrentContent json.RawMessage
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: current version is %d", e.CurrentVersion)
}

// InvalidOperationError means an operation in the batch could not be applied
// to the current content. The whole batch is rolled back.
type InvalidOperationError struct {
	Err error
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid operation: %v", e.Err)
}

func (e *InvalidOperationError) Unwrap() error { return e.Err }
