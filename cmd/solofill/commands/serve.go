package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wonny/solofill/internal/api"
	"github.com/wonny/solofill/internal/api/handlers"
	"github.com/wonny/solofill/internal/gapfill"
	"github.com/wonny/solofill/internal/scheduler"
	"github.com/wonny/solofill/internal/scheduler/jobs"
	"github.com/wonny/solofill/pkg/config"
	"github.com/wonny/solofill/pkg/logger"
	"github.com/wonny/solofill/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and scheduler",
	Long: `Starts the statistics API, the websocket progress hub and the
session scheduler.

Scheduled sessions come from SCHEDULE_SESSIONS (path list) and run on
the SCHEDULE cron expression. Sessions that share a work area never
overlap. Statistics older than DB_RETENTION are pruned daily.

Endpoints:
  GET  /health
  GET  /api/sessions
  GET  /api/sessions/{id}/stats
  GET  /api/sessions/{id}/stats/{output}
  GET  /api/jobs
  GET  /ws                   - progress events

Example:
  go run ./cmd/solofill serve
  go run ./cmd/solofill serve --port 8089`,
	RunE: runServe,
}

var (
	servePort string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (default: PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Close()

	if servePort != "" {
		cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Persistence
	b, err := openBackends(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer b.close()

	// 2. Progress hub
	hub := api.NewHub(log.Zerolog())

	// 3. Scheduler
	sched, err := newScheduler(cfg, b, hub, log)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// 4. Router and server
	var cache handlers.StatsCache
	if b.publisher != nil {
		cache = b.publisher
	}
	router := api.NewRouter(api.RouterDeps{
		Sessions: handlers.NewSessionsHandler(b.store, cache, log),
		Jobs:     handlers.NewJobsHandler(sched),
		Hub:      hub,
		Limit:    rateLimit(cfg, b.redis, log),
	}, log)
	server := api.New(cfg, log, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	sched.Start()
	defer sched.Stop()

	out := cmd.OutOrStdout()
	printSuccess(out, fmt.Sprintf("Server running on http://localhost:%s", cfg.Port))
	for _, name := range sched.GetAllJobs() {
		fmt.Fprintf(out, "   • %s\n", name)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	err = g.Wait()
	log.Info("Server stopped")
	return err
}

// newScheduler registers one job per scheduled session plus statistics retention
func newScheduler(cfg *config.Config, b *backends, events *api.Hub, log *logger.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New(log)

	if cfg.API.Schedule != "" {
		locks := scheduler.NewWorkAreaLocks()
		opts := gapfill.Options{Events: events}
		for _, path := range cfg.API.Sessions {
			job := jobs.NewSessionJob(path, cfg.API.Schedule, defaultsFrom(cfg), opts, b.sinks(), locks, log)
			if err := sched.AddJob(job); err != nil {
				return nil, err
			}
		}
	}

	if b.store != nil && cfg.Database.Retention > 0 {
		if err := sched.AddJob(jobs.NewRetentionJob(b.store, cfg.Database.Retention, log)); err != nil {
			return nil, err
		}
	}

	return sched, nil
}

// rateLimit shares the budget per client through Redis when enabled,
// otherwise applies one in-process token bucket
func rateLimit(cfg *config.Config, rc *redis.Client, log *logger.Logger) mux.MiddlewareFunc {
	if rc != nil && rc.Enabled() {
		window := time.Second
		limit := int(cfg.API.RateLimit)
		if limit < 1 {
			limit = 1
		}
		return api.SharedRateLimit(redis.NewRateLimiter(rc), limit, window, log)
	}
	return api.RateLimit(rate.NewLimiter(rate.Limit(cfg.API.RateLimit), cfg.API.RateBurst))
}
