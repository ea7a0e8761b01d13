package session

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// ID identifies a capture session.
type ID struct {
	UUID string
	Seq  uint64
}

// String returns the session UUID.
func (id ID) String() string {
	return id.UUID
}

// Generator hands out session IDs for one capture adapter.
type Generator struct {
	counter uint64
}

// New creates a generator whose first ID has Seq 1.
func New() *Generator {
	return &Generator{}
}

// Next returns a fresh session ID. Seq increases by one per call, starting at 1.
func (g *Generator) Next() ID {
	n := atomic.AddUint64(&g.counter, 1)
	return ID{UUID: uuid.NewString(), Seq: n}
}
