package stats

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/solofill/pkg/redis"
)

// Publisher caches the statistics of finished sessions in Redis.
// With Redis disabled every call is a no-op.
type Publisher struct {
	cache *redis.Cache
	log   zerolog.Logger
}

// NewPublisher creates a publisher on top of client
func NewPublisher(client *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{
		cache: redis.NewCache(client),
		log:   log.With().Str("component", "stats.publisher").Logger(),
	}
}

// Publish stores the session under its id and as the latest for its site
func (p *Publisher) Publish(ctx context.Context, s SessionStats) error {
	if err := p.cache.Set(ctx, redis.SessionStatsKey(s.Session.ID), s, redis.TTLLong); err != nil {
		return fmt.Errorf("publish session stats: %w", err)
	}
	if err := p.cache.Set(ctx, redis.LatestStatsKey(s.Session.SiteName), s, redis.TTLLong); err != nil {
		return fmt.Errorf("publish latest stats: %w", err)
	}
	// listing is rebuilt on next read
	_ = p.cache.Delete(ctx, redis.SessionListKey())

	p.log.Debug().
		Str("session_id", s.Session.ID).
		Int("records", len(s.Records)).
		Msg("session statistics published")
	return nil
}

// Get returns the cached statistics of one session
func (p *Publisher) Get(ctx context.Context, sessionID string) (*SessionStats, bool, error) {
	var s SessionStats
	found, err := p.cache.Get(ctx, redis.SessionStatsKey(sessionID), &s)
	if err != nil || !found {
		return nil, false, err
	}
	return &s, true, nil
}

// Latest returns the most recently published statistics of a site
func (p *Publisher) Latest(ctx context.Context, site string) (*SessionStats, bool, error) {
	var s SessionStats
	found, err := p.cache.Get(ctx, redis.LatestStatsKey(site), &s)
	if err != nil || !found {
		return nil, false, err
	}
	return &s, true, nil
}

// Cache exposes the underlying cache helper
func (p *Publisher) Cache() *redis.Cache {
	return p.cache
}
