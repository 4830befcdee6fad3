package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/solofill/pkg/database"
	"github.com/wonny/solofill/pkg/redis"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "Test the PostgreSQL and Redis connections",
	Long: `Tests the optional statistics backends.

This command:
- loads DATABASE_URL and REDIS_* from the config
- pings PostgreSQL and prints pool statistics
- pings Redis when REDIS_ENABLED is set

Example:
  go run ./cmd/solofill test-db`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Close()

	out := cmd.OutOrStdout()
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	printHeader(out, "Backend connection test",
		[2]string{"ENV", cfg.Env},
		[2]string{"Database", maskPassword(cfg.Database.URL)},
		[2]string{"Redis", fmt.Sprintf("%s:%s (enabled=%v)", cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Enabled)},
	)

	db, err := database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		printWarning(out, "DATABASE_URL not set, skipping PostgreSQL")
	case err != nil:
		return fmt.Errorf("connect to database: %w", err)
	default:
		defer db.Close()
		status, err := db.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		printSuccess(out, fmt.Sprintf("PostgreSQL ping %v", status.ResponseTime))
		fmt.Fprintf(out, "   Max Connections: %d\n", status.Stats.MaxConns)
		fmt.Fprintf(out, "   Total Connections: %d\n", status.Stats.TotalConns)
		fmt.Fprintf(out, "   Idle Connections: %d\n", status.Stats.IdleConns)
	}

	rc, err := redis.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer rc.Close()
	if rc.Enabled() {
		printSuccess(out, "Redis ping ok")
	} else {
		printWarning(out, "REDIS_ENABLED is false, skipping Redis")
	}

	printSuccess(out, "All configured backends reachable")
	return nil
}

// maskPassword hides the password of a connection URL
func maskPassword(raw string) string {
	if raw == "" {
		return "(not set)"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
