package socket

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"lingopad/internal/collab"
	"lingopad/internal/document/model"
	"lingopad/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows us to connect from the Next.js dev server.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket connection. The ClientID is minted per connection;
// a reconnecting user gets a fresh one and must re-join.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	ClientID string
	UserID   string
	send     chan []byte
}

func newClientID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

func ServeWs(hub *Hub, coord *collab.Coordinator, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	clientID := newClientID()
	if clientID == "" {
		logger.Sugar.Error("Failed to generate client ID")
		conn.Close()
		return
	}

	client := &Client{
		Hub:      hub,
		Conn:     conn,
		ClientID: clientID,
		UserID:   userID,
		send:     make(chan []byte, 256),
	}
	hub.add(client)

	go client.writePump()

	// A docId query parameter joins the room immediately, saving the
	// client a round trip on first connect.
	if docID := r.URL.Query().Get("docId"); docID != "" {
		client.handleJoin(coord, docID)
	}

	go client.readPump(coord)
}

func (c *Client) readPump(coord *collab.Coordinator) {
	defer func() {
		docID := coord.Leave(c.ClientID)
		c.Hub.remove(c)
		c.Conn.Close()
		if docID != "" {
			c.Hub.BroadcastPresence(docID)
		}
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message from client %s: %v", c.ClientID, err)
			continue
		}

		// Set server-authoritative fields to prevent spoofing.
		msg.ClientID = c.ClientID
		msg.UserID = c.UserID

		switch msg.Type {
		case JoinType:
			c.handleJoin(coord, msg.DocID)
		case EditType:
			c.handleEdit(coord, msg)
		case LeaveType:
			if docID := coord.Leave(c.ClientID); docID != "" {
				c.Hub.BroadcastPresence(docID)
			}
		case CursorType:
			c.Hub.RelayCursor(c, msg.DocID, msg.Payload)
		default:
			logger.Sugar.Warnf("Unknown message type %q from client %s", msg.Type, c.ClientID)
		}
	}
}

func (c *Client) handleJoin(coord *collab.Coordinator, docID string) {
	prev, err := coord.Join(context.Background(), c.ClientID, docID)
	if err != nil {
		reason := collab.ReasonInternal
		if errors.Is(err, model.ErrNotFound) {
			reason = collab.ReasonNotFound
		} else {
			logger.Sugar.Errorf("Join failed for client %s on doc %s: %v", c.ClientID, docID, err)
		}
		c.reject(docID, RejectPayload{Reason: reason})
		return
	}

	// The joining client got its state from the coordinator already; tell
	// both affected rooms their rosters changed.
	c.Hub.BroadcastPresence(docID)
	if prev != "" {
		c.Hub.BroadcastPresence(prev)
	}
}

func (c *Client) handleEdit(coord *collab.Coordinator, msg WSMessage) {
	var edit EditPayload
	if err := json.Unmarshal(msg.Payload, &edit); err != nil {
		logger.Sugar.Warnf("Malformed edit payload from client %s: %v", c.ClientID, err)
		c.reject(msg.DocID, RejectPayload{Reason: collab.ReasonInvalidOperation})
		return
	}

	res := coord.Submit(context.Background(), c.ClientID, msg.DocID, edit.BaseVersion, edit.Ops)
	if res.Accepted {
		payload, _ := json.Marshal(AckPayload{Version: res.Version})
		c.Hub.Send(c.ClientID, WSMessage{Type: AckType, DocID: msg.DocID, ClientID: c.ClientID, Payload: payload})
		return
	}

	c.reject(msg.DocID, RejectPayload{
		Reason:         res.Reason,
		CurrentVersion: res.Version,
		CurrentContent: res.Content,
	})
}

func (c *Client) reject(docID string, payload RejectPayload) {
	raw, _ := json.Marshal(payload)
	c.Hub.Send(c.ClientID, WSMessage{Type: RejectType, DocID: docID, ClientID: c.ClientID, Payload: raw})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second) // keepalive ping
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}
