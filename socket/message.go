package socket

import "encoding/json"

const (
	JoinType           = "JOIN"            // subscribe to a document room
	LeaveType          = "LEAVE"           // unsubscribe (implicit on disconnect)
	EditType           = "EDIT"            // submit an operation batch
	DocType            = "DOC"             // authoritative state, reply to JOIN
	AckType            = "ACK"             // edit accepted
	RejectType         = "REJECT"          // edit rejected
	UpdateType         = "UPDATE"          // accepted batch pushed to other members
	CursorType         = "CURSOR"          // cursor position relay
	PresenceUpdateType = "PRESENCE_UPDATE" // room roster changed
)

// WSMessage is the wire envelope. ClientID and UserID are always set by the
// server from the connection, never trusted from the client.
type WSMessage struct {
	Type     string          `json:"type"`
	DocID    string          `json:"document_id,omitempty"`
	ClientID string          `json:"client_id,omitempty"`
	UserID   string          `json:"user_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// EditPayload is the client's submission: the version it believes is current
// plus the ordered batch computed against it.
type EditPayload struct {
	BaseVersion int64             `json:"base_version"`
	Ops         []json.RawMessage `json:"ops"`
}

// StatePayload carries the authoritative document state on join.
type StatePayload struct {
	Content json.RawMessage `json:"content"`
	Version int64           `json:"version"`
}

type AckPayload struct {
	Version int64 `json:"version"`
}

// RejectPayload tells the submitter why its batch was refused. On a version
// conflict it carries the state the client must reconcile against before
// resubmitting.
type RejectPayload struct {
	Reason string `json:"reason"`
	// current_version is always present so a conflict against a version-0
	// document still carries it on the wire.
	CurrentVersion int64           `json:"current_version"`
	CurrentContent json.RawMessage `json:"current_content,omitempty"`
}

// UpdatePayload is an accepted batch fanned out to the other room members.
type UpdatePayload struct {
	Version int64             `json:"version"`
	Ops     []json.RawMessage `json:"ops"`
	Origin  string            `json:"origin"`
}

// Member is one entry in a presence roster.
type Member struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`
}
