package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wonny/solofill/internal/gapfill"
	"github.com/wonny/solofill/internal/scheduler"
	"github.com/wonny/solofill/pkg/logger"
)

// SessionJob runs one session file on a cron schedule
type SessionJob struct {
	path     string
	schedule string
	defaults gapfill.Defaults
	opts     gapfill.Options
	sinks    gapfill.Sinks
	locks    *scheduler.WorkAreaLocks
	logger   *logger.Logger
}

// NewSessionJob creates a session job. Jobs sharing locks never run two
// sessions in the same work area at once.
func NewSessionJob(
	path string,
	schedule string,
	defaults gapfill.Defaults,
	opts gapfill.Options,
	sinks gapfill.Sinks,
	locks *scheduler.WorkAreaLocks,
	log *logger.Logger,
) *SessionJob {
	if locks == nil {
		locks = scheduler.NewWorkAreaLocks()
	}
	j := &SessionJob{
		path:     path,
		schedule: schedule,
		defaults: defaults,
		opts:     opts,
		sinks:    sinks,
		locks:    locks,
	}
	j.logger = log.WithField("job", j.Name())
	return j
}

// Name returns the job name
func (j *SessionJob) Name() string {
	return "session:" + strings.TrimSuffix(filepath.Base(j.path), filepath.Ext(j.path))
}

// Schedule returns the cron schedule
func (j *SessionJob) Schedule() string {
	return j.schedule
}

// Run loads the session file and runs it while holding its work area
func (j *SessionJob) Run(ctx context.Context) error {
	cfg, err := gapfill.LoadSession(j.path, j.defaults)
	if err != nil {
		return err
	}

	release, ok := j.locks.TryAcquire(cfg.Toolchain.WorkDir)
	if !ok {
		return fmt.Errorf("work area %s in use: %w", cfg.Toolchain.WorkDir, scheduler.ErrSkipped)
	}
	defer release()

	j.logger.WithField("site", cfg.Session.SiteName).Info("Starting scheduled session")

	// each run gets its own session id
	opts := j.opts
	opts.ID = ""

	res, err := gapfill.RunConfig(ctx, cfg, opts, j.sinks, j.logger)
	if res != nil {
		j.logger.WithFields(map[string]interface{}{
			"session_id": res.SessionID,
			"records":    len(res.Records),
			"failures":   res.Failures(),
		}).Info("Scheduled session finished")
	}
	return err
}
