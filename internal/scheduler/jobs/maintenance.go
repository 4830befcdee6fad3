package jobs

import (
	"context"
	"time"

	"github.com/wonny/solofill/internal/stats"
	"github.com/wonny/solofill/pkg/logger"
)

// RetentionJob deletes persisted sessions older than the retention period
type RetentionJob struct {
	store     stats.Store
	retention time.Duration
	logger    *logger.Logger
}

// NewRetentionJob creates a new retention job
func NewRetentionJob(store stats.Store, retention time.Duration, log *logger.Logger) *RetentionJob {
	return &RetentionJob{
		store:     store,
		retention: retention,
		logger:    log,
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "stats_retention"
}

// Schedule returns the cron schedule (daily at 03:15)
func (j *RetentionJob) Schedule() string {
	return "15 3 * * *"
}

// Run executes the cleanup
func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.retention)
	j.logger.WithField("cutoff", cutoff.Format(time.RFC3339)).Debug("Starting scheduled statistics cleanup")

	count, err := j.store.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	if count > 0 {
		j.logger.WithField("removed", count).Info("Statistics cleanup completed")
	}

	return nil
}
