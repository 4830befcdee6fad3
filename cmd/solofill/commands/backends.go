package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/solofill/internal/gapfill"
	"github.com/wonny/solofill/internal/stats"
	"github.com/wonny/solofill/pkg/config"
	"github.com/wonny/solofill/pkg/database"
	"github.com/wonny/solofill/pkg/logger"
	"github.com/wonny/solofill/pkg/redis"
)

// memoryCapacity bounds the in-process store used when no database is configured
const memoryCapacity = 100

// backends holds the optional persistence connections of one process
type backends struct {
	db        *database.DB
	redis     *redis.Client
	store     stats.Store
	publisher *stats.Publisher
}

// openBackends connects to PostgreSQL and Redis when configured.
// Without a database, memory selects an in-process store; otherwise store is nil.
func openBackends(ctx context.Context, cfg *config.Config, log *logger.Logger, memory bool) (*backends, error) {
	b := &backends{}

	db, err := database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		log.Info("DATABASE_URL not set, statistics are not persisted to PostgreSQL")
		if memory {
			b.store = stats.NewMemoryStore(memoryCapacity, log.Component("stats.memory"))
		}
	case err != nil:
		return nil, fmt.Errorf("connect to database: %w", err)
	default:
		b.db = db
		repo := stats.NewRepository(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			b.close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		b.store = repo
		log.Info("Connected to database")
	}

	rc, err := redis.New(ctx, cfg)
	if err != nil {
		b.close()
		return nil, err
	}
	b.redis = rc
	if rc.Enabled() {
		b.publisher = stats.NewPublisher(rc, log.Component("stats.publisher"))
		log.Info("Connected to Redis")
	}

	return b, nil
}

func (b *backends) sinks() gapfill.Sinks {
	return gapfill.Sinks{Store: b.store, Publisher: b.publisher}
}

func (b *backends) close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		b.db.Close()
	}
}
