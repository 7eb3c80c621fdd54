package transcript

import (
	"context"
	"encoding/json"
	"sync"
)

// Store persists sessions. Save is an upsert of the whole session.
type Store interface {
	Load(ctx context.Context) ([]*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, ids ...string) error
	Close() error
}

// StoreType names a Store driver.
type StoreType string

const (
	StoreMemory   StoreType = "memory"
	StoreFile     StoreType = "file"
	StoreRedis    StoreType = "redis"
	StoreDynamo   StoreType = "dynamodb"
	StoreSupabase StoreType = "supabase"
)

// MemoryStore keeps sessions in process memory. The zero value is ready to
// use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

// Load implements Store.
func (m *MemoryStore) Load(context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, raw := range m.sessions {
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, nil
}

// Save implements Store. Sessions are stored serialized so later caller
// mutations cannot leak in.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = make(map[string][]byte)
	}
	m.sessions[s.ID] = raw
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.sessions, id)
	}
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
