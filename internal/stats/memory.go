package stats

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MemoryStore keeps the most recent sessions in process memory.
// Used by `serve` when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionStats
	capacity int
	log      zerolog.Logger
}

// NewMemoryStore creates a store holding at most capacity sessions
func NewMemoryStore(capacity int, log zerolog.Logger) *MemoryStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryStore{
		sessions: make(map[string]SessionStats),
		capacity: capacity,
		log:      log.With().Str("component", "stats.memory").Logger(),
	}
}

// SaveSession stores a copy of s, evicting the oldest session when full
func (m *MemoryStore) SaveSession(_ context.Context, s SessionStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.Records = append(s.Records[:0:0], s.Records...)
	s.Session.Records = len(s.Records)
	m.sessions[s.Session.ID] = s

	for len(m.sessions) > m.capacity {
		oldest := ""
		for id, v := range m.sessions {
			if oldest == "" || v.Session.StartedAt.Before(m.sessions[oldest].Session.StartedAt) {
				oldest = id
			}
		}
		delete(m.sessions, oldest)
		m.log.Debug().Str("session_id", oldest).Msg("evicted oldest session")
	}
	return nil
}

// GetSession returns a session with its records; output "" selects all outputs
func (m *MemoryStore) GetSession(_ context.Context, id, output string) (*SessionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := SessionStats{Session: s.Session}
	if output == "" {
		out.Records = append(out.Records, s.Records...)
	} else {
		out.Records = s.ForOutput(output)
	}
	return &out, nil
}

// ListSessions returns the most recent sessions first
func (m *MemoryStore) ListSessions(_ context.Context, limit int) ([]SessionMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SessionMeta, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteSessionsBefore removes sessions started before cutoff
func (m *MemoryStore) DeleteSessionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if s.Session.StartedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
