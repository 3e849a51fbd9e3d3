package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinAndMembers(t *testing.T) {
	r := NewRegistry()

	r.Join("c1", "doc1")
	r.Join("c2", "doc1")
	r.Join("c3", "doc2")

	assert.ElementsMatch(t, []string{"c1", "c2"}, r.MembersOf("doc1"))
	assert.ElementsMatch(t, []string{"c3"}, r.MembersOf("doc2"))
	assert.True(t, r.IsMember("doc1", "c1"))
	assert.False(t, r.IsMember("doc2", "c1"))
}

func TestJoinMovesClientBetweenRooms(t *testing.T) {
	r := NewRegistry()

	r.Join("c1", "doc1")
	prev := r.Join("c1", "doc2")

	assert.Equal(t, "doc1", prev)
	assert.Empty(t, r.MembersOf("doc1"))
	assert.ElementsMatch(t, []string{"c1"}, r.MembersOf("doc2"))
}

func TestRejoinSameRoomIsNoop(t *testing.T) {
	r := NewRegistry()

	r.Join("c1", "doc1")
	prev := r.Join("c1", "doc1")

	assert.Equal(t, "", prev)
	assert.ElementsMatch(t, []string{"c1"}, r.MembersOf("doc1"))
}

func TestLeave(t *testing.T) {
	r := NewRegistry()

	r.Join("c1", "doc1")
	assert.Equal(t, "doc1", r.Leave("c1"))
	assert.Empty(t, r.MembersOf("doc1"))
	assert.False(t, r.IsMember("doc1", "c1"))

	// Leaving twice, or without joining, is a no-op.
	assert.Equal(t, "", r.Leave("c1"))
	assert.Equal(t, "", r.Leave("never-joined"))
}

func TestMembersExcluding(t *testing.T) {
	r := NewRegistry()

	r.Join("c1", "doc1")
	r.Join("c2", "doc1")
	r.Join("c3", "doc1")

	assert.ElementsMatch(t, []string{"c1", "c3"}, r.MembersExcluding("doc1", "c2"))
	assert.Empty(t, r.MembersExcluding("doc-empty", "c1"))
}
