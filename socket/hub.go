package socket

import (
	"encoding/json"
	"sync"

	"lingopad/internal/collab"
	"lingopad/pkg/logger"
)

// Hub is the connection table: clientID → live websocket client. It is the
// coordinator's Transport. Room membership lives in the registry, document
// state in the store; the hub only moves bytes.
type Hub struct {
	registry *collab.Registry

	mu      sync.Mutex
	clients map[string]*Client
}

func NewHub(registry *collab.Registry) *Hub {
	return &Hub{
		registry: registry,
		clients:  make(map[string]*Client),
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ClientID] = client
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ClientID]; ok {
		delete(h.clients, client.ClientID)
		close(client.send)
	}
}

// Send marshals msg and queues it for one client. A client whose send buffer
// is full is considered dead and gets disconnected; its read pump then
// cleans up membership.
func (h *Hub) Send(clientID string, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s message: %v", msg.Type, err)
		return
	}

	// remove closes client.send under this same lock, so the channel
	// cannot be closed between the lookup and the send below. The send is
	// non-blocking, so holding the lock across it is fine.
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[clientID]
	if !ok {
		return
	}

	select {
	case client.send <- payload:
	default:
		logger.Sugar.Warnf("Client %s's send buffer is full, disconnecting", clientID)
		client.Conn.Close()
	}
}

// SendState implements collab.Transport.
func (h *Hub) SendState(clientID, docID string, content json.RawMessage, version int64) {
	payload, _ := json.Marshal(StatePayload{Content: content, Version: version})
	h.Send(clientID, WSMessage{Type: DocType, DocID: docID, ClientID: clientID, Payload: payload})
}

// SendUpdate implements collab.Transport.
func (h *Hub) SendUpdate(clientIDs []string, docID string, version int64, ops []json.RawMessage, originID string) {
	payload, err := json.Marshal(UpdatePayload{Version: version, Ops: ops, Origin: originID})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling update for doc %s: %v", docID, err)
		return
	}
	msg := WSMessage{Type: UpdateType, DocID: docID, Payload: payload}
	for _, clientID := range clientIDs {
		h.Send(clientID, msg)
	}
}

// BroadcastPresence pushes the current roster of a room to all its members.
func (h *Hub) BroadcastPresence(docID string) {
	members := h.registry.MembersOf(docID)
	if len(members) == 0 {
		return
	}

	h.mu.Lock()
	roster := make([]Member, 0, len(members))
	for _, clientID := range members {
		if client, ok := h.clients[clientID]; ok {
			roster = append(roster, Member{ClientID: clientID, UserID: client.UserID})
		}
	}
	h.mu.Unlock()

	payload, err := json.Marshal(roster)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence roster for doc %s: %v", docID, err)
		return
	}
	msg := WSMessage{Type: PresenceUpdateType, DocID: docID, Payload: payload}
	for _, clientID := range members {
		h.Send(clientID, msg)
	}
}

// RelayCursor forwards a cursor message to the other members of the sender's
// room. Cursor positions are ephemeral; nothing is persisted or ordered.
func (h *Hub) RelayCursor(sender *Client, docID string, payload json.RawMessage) {
	if !h.registry.IsMember(docID, sender.ClientID) {
		return
	}
	msg := WSMessage{Type: CursorType, DocID: docID, ClientID: sender.ClientID, UserID: sender.UserID, Payload: payload}
	for _, clientID := range h.registry.MembersExcluding(docID, sender.ClientID) {
		h.Send(clientID, msg)
	}
}

// DisconnectDoc force-closes every connection in a document's room. Called
// when the document is deleted; the read pumps handle membership cleanup.
func (h *Hub) DisconnectDoc(docID string) {
	members := h.registry.MembersOf(docID)

	h.mu.Lock()
	conns := make([]*Client, 0, len(members))
	for _, clientID := range members {
		if client, ok := h.clients[clientID]; ok {
			conns = append(conns, client)
		}
	}
	h.mu.Unlock()

	for _, client := range conns {
		client.Conn.Close()
	}
}
