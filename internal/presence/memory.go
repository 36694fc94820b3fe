package presence

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is the single-instance presence registry: a guarded map from account
// id to a buffered event channel held by that member's live connection.
type Memory struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]chan Event
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[uuid.UUID]chan Event)}
}

// Subscribe registers a live channel for the account and returns the event
// stream plus a release function. A second subscription replaces the first.
func (m *Memory) Subscribe(accountID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	m.mu.Lock()
	if old, ok := m.subs[accountID]; ok {
		close(old)
	}
	m.subs[accountID] = ch
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if cur, ok := m.subs[accountID]; ok && cur == ch {
			delete(m.subs, accountID)
			close(ch)
		}
	}
	return ch, release
}

// Stream adapts Subscribe to the Streamer contract.
func (m *Memory) Stream(_ context.Context, accountID uuid.UUID) (<-chan Event, func(), error) {
	ch, release := m.Subscribe(accountID)
	return ch, release, nil
}

func (m *Memory) IsOnline(_ context.Context, accountID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.subs[accountID]
	return ok
}

// Push delivers without blocking; a full channel drops the event, since the
// persisted notification is the recovery path. The send happens under the
// read lock: channels are only ever closed under the write lock, so holding
// the read lock keeps the channel open for the duration of the send.
func (m *Memory) Push(_ context.Context, accountID uuid.UUID, event Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.subs[accountID]
	if !ok {
		return false
	}
	select {
	case ch <- event:
		return true
	default:
		return false
	}
}
