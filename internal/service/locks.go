package service

import (
	"sync"

	"github.com/google/uuid"
)

// ChildLocks serializes mutating operations per child. Fact supersession and
// artifact staleness evaluation are read-then-write sequences over related
// rows, so writes against one child must be mutually exclusive while writes
// against different children proceed in parallel.
type ChildLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewChildLocks() *ChildLocks {
	return &ChildLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the write lock for the child and returns the unlock func.
func (l *ChildLocks) Lock(childID uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[childID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[childID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
