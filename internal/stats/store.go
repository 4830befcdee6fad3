package stats

import (
	"context"
	"time"
)

// Store persists finished sessions
// ⭐ SSOT: Repository (PostgreSQL) and MemoryStore are the only implementations
type Store interface {
	SaveSession(ctx context.Context, s SessionStats) error
	GetSession(ctx context.Context, id, output string) (*SessionStats, error)
	ListSessions(ctx context.Context, limit int) ([]SessionMeta, error)
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)
