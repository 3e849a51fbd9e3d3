package collab

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"lingopad/internal/document/model"
	"lingopad/pkg/logger"
)

// Rejection reasons surfaced to the submitting client.
const (
	ReasonVersionConflict  = "version-conflict"
	ReasonInvalidOperation = "invalid-operation"
	ReasonNotJoined        = "not-joined"
	ReasonNotFound         = "not-found"
	ReasonEmptyBatch       = "empty-batch"
	ReasonInternal         = "internal-error"
)

// Store is the durable home of document state. Commit must be transactional:
// version-checked, all-or-nothing, durable before it returns.
type Store interface {
	GetCurrent(ctx context.Context, docID string) (json.RawMessage, int64, error)
	Commit(ctx context.Context, docID string, expectedVersion int64, ops []json.RawMessage, originID string) (json.RawMessage, int64, error)
}

// Transport delivers protocol messages to connected clients. Injected at
// construction so the coordinator can be driven by a fake in tests.
type Transport interface {
	// SendState delivers the authoritative document state to one client.
	SendState(clientID, docID string, content json.RawMessage, version int64)
	// SendUpdate fans an accepted batch out to the listed clients.
	SendUpdate(clientIDs []string, docID string, version int64, ops []json.RawMessage, originID string)
}

// SubmitResult is the typed reply to one edit submission.
type SubmitResult struct {
	Accepted bool
	// Version is the new version when accepted, or the authoritative
	// current version on a version conflict.
	Version int64
	// Content is the authoritative current content on a version conflict.
	Content json.RawMessage
	// Reason is set on rejection.
	Reason string
}

// Coordinator runs the apply-and-broadcast protocol. It holds no document
// state of its own; everything durable lives in the Store and everything
// ephemeral in the Registry.
type Coordinator struct {
	store     Store
	registry  *Registry
	transport Transport

	// One mutex per document, held across commit and broadcast enqueue so
	// clients observe updates in commit order. Submissions to different
	// documents never contend. Entries are refcounted and pruned once no
	// operation holds or waits on them, so the table does not grow with
	// every document ever touched.
	mu    sync.Mutex
	locks map[string]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func NewCoordinator(store Store, registry *Registry, transport Transport) *Coordinator {
	return &Coordinator{
		store:     store,
		registry:  registry,
		transport: transport,
		locks:     make(map[string]*docLock),
	}
}

// lockDoc registers interest in the document's lock before acquiring it, so
// a concurrent unlockDoc cannot prune the entry out from under a waiter.
func (c *Coordinator) lockDoc(docID string) *docLock {
	c.mu.Lock()
	l, ok := c.locks[docID]
	if !ok {
		l = &docLock{}
		c.locks[docID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return l
}

func (c *Coordinator) unlockDoc(docID string, l *docLock) {
	l.mu.Unlock()

	c.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, docID)
	}
	c.mu.Unlock()
}

// Join subscribes the client to the document's room and delivers the
// authoritative state, so the client initializes at the true current
// version. Returns the docID of the room the client implicitly left, if any.
func (c *Coordinator) Join(ctx context.Context, clientID, docID string) (string, error) {
	lock := c.lockDoc(docID)
	defer c.unlockDoc(docID, lock)

	content, version, err := c.store.GetCurrent(ctx, docID)
	if err != nil {
		return "", err
	}
	prev := c.registry.Join(clientID, docID)
	c.transport.SendState(clientID, docID, content, version)
	return prev, nil
}

// Leave unsubscribes the client. Returns the docID it left, "" if none.
func (c *Coordinator) Leave(clientID string) string {
	return c.registry.Leave(clientID)
}

// Submit validates and commits one operation batch, then fans it out to the
// other room members. Exactly one of a set of racing submissions with the
// same base version wins; the rest get a version conflict carrying the
// state they must rebase against.
func (c *Coordinator) Submit(ctx context.Context, clientID, docID string, baseVersion int64, ops []json.RawMessage) SubmitResult {
	if len(ops) == 0 {
		return SubmitResult{Reason: ReasonEmptyBatch}
	}
	if !c.registry.IsMember(docID, clientID) {
		return SubmitResult{Reason: ReasonNotJoined}
	}

	lock := c.lockDoc(docID)
	defer c.unlockDoc(docID, lock)

	// The submitter already has the operations, so the accepted reply
	// carries only the version; the new content is not echoed back.
	_, newVersion, err := c.store.Commit(ctx, docID, baseVersion, ops, clientID)
	if err == nil {
		others := c.registry.MembersExcluding(docID, clientID)
		if len(others) > 0 {
			c.transport.SendUpdate(others, docID, newVersion, ops, clientID)
		}
		return SubmitResult{Accepted: true, Version: newVersion}
	}

	var conflict *model.VersionConflictError
	if errors.As(err, &conflict) {
		// Expected under concurrent editing; informational only.
		logger.Sugar.Infof("Version conflict on doc %s: client %s submitted base %d, current is %d",
			docID, clientID, baseVersion, conflict.CurrentVersion)
		return SubmitResult{
			Reason:  ReasonVersionConflict,
			Version: conflict.CurrentVersion,
			Content: conflict.CurrentContent,
		}
	}

	var invalid *model.InvalidOperationError
	if errors.As(err, &invalid) {
		logger.Sugar.Warnf("Invalid operation on doc %s from client %s: %v", docID, clientID, invalid.Err)
		return SubmitResult{Reason: ReasonInvalidOperation}
	}

	if errors.Is(err, model.ErrNotFound) {
		return SubmitResult{Reason: ReasonNotFound}
	}

	logger.Sugar.Errorf("Commit failed for doc %s from client %s: %v", docID, clientID, err)
	return SubmitResult{Reason: ReasonInternal}
}
