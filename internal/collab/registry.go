package collab

import "sync"

// Registry tracks which connected client is subscribed to which document
// room. Purely in-memory; membership does not survive a restart, so a
// reconnecting client must re-join and resynchronize.
//
// A client belongs to at most one room at a time.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]struct{} // docID -> clientIDs
	current map[string]string              // clientID -> docID
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]map[string]struct{}),
		current: make(map[string]string),
	}
}

// Join subscribes the client to docID, removing it from any previous room.
// Returns the previous room's docID, or "" if the client was nowhere.
func (r *Registry) Join(clientID, docID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current[clientID]
	if prev == docID {
		return ""
	}
	if prev != "" {
		r.removeLocked(clientID, prev)
	}
	if r.rooms[docID] == nil {
		r.rooms[docID] = make(map[string]struct{})
	}
	r.rooms[docID][clientID] = struct{}{}
	r.current[clientID] = docID
	return prev
}

// Leave removes the client from its room. Returns the docID it left,
// or "" if the client was not in any room.
func (r *Registry) Leave(clientID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	docID := r.current[clientID]
	if docID == "" {
		return ""
	}
	r.removeLocked(clientID, docID)
	return docID
}

func (r *Registry) removeLocked(clientID, docID string) {
	delete(r.rooms[docID], clientID)
	if len(r.rooms[docID]) == 0 {
		delete(r.rooms, docID)
	}
	delete(r.current, clientID)
}

// IsMember reports whether the client is subscribed to docID.
func (r *Registry) IsMember(docID, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current[clientID] == docID
}

// MembersOf returns the clients subscribed to docID.
func (r *Registry) MembersOf(docID string) []string {
	return r.MembersExcluding(docID, "")
}

// MembersExcluding returns the clients subscribed to docID minus the given
// one, for broadcast-to-others fan-out.
func (r *Registry) MembersExcluding(docID, clientID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.rooms[docID]))
	for id := range r.rooms[docID] {
		if id != clientID {
			members = append(members, id)
		}
	}
	return members
}
