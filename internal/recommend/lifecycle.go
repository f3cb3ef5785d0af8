package recommend

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when a status change violates the
// lifecycle state machine. The record is left untouched.
var ErrInvalidTransition = errors.New("invalid recommendation status transition")

// ErrNotFound is returned when a recommendation id does not exist.
var ErrNotFound = errors.New("recommendation not found")

// ValidateTransition enforces the lifecycle: pending may move to implemented
// or dismissed; both are terminal. Create is the only way to reach pending.
func ValidateTransition(from, to Status) error {
	if from == StatusPending && (to == StatusImplemented || to == StatusDismissed) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusImplemented, StatusDismissed:
		return true
	}
	return false
}

// ScopeLocks serializes recommendation generation per (namespace, cluster)
// scope. Different scopes generate independently in parallel; concurrent
// runs for the same scope cannot both pass the dedup check.
type ScopeLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewScopeLocks creates an empty lock set.
func NewScopeLocks() *ScopeLocks {
	return &ScopeLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the scope and returns its release function.
func (s *ScopeLocks) Acquire(namespace, clusterName string) func() {
	key := namespace + "\x00" + clusterName
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}
