package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/solofill/internal/stats"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show persisted fit statistics",
	Long: `Prints the fit statistics of a session, or lists recent sessions.

Statistics are read from the Redis cache first, then from PostgreSQL.

Example:
  go run ./cmd/solofill stats
  go run ./cmd/solofill stats --session-id 3f2a... --output Fc_SOLO
  go run ./cmd/solofill stats --session-id 3f2a... --csv`,
	RunE: runStats,
}

var (
	statsSessionID string
	statsOutput    string
	statsCSV       bool
	statsLimit     int
)

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsSessionID, "session-id", "", "session to show (default: list sessions)")
	statsCmd.Flags().StringVar(&statsOutput, "output", "", "restrict to one output label")
	statsCmd.Flags().BoolVar(&statsCSV, "csv", false, "print records as statistics CSV")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 20, "sessions to list")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Close()

	ctx := cmd.Context()
	b, err := openBackends(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer b.close()

	out := cmd.OutOrStdout()

	if statsSessionID == "" {
		if b.store == nil {
			return errors.New("listing sessions requires DATABASE_URL")
		}
		sessions, err := b.store.ListSessions(ctx, statsLimit)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(sessions))
		for _, s := range sessions {
			rows = append(rows, []string{
				s.ID, s.SiteName, s.Strategy,
				s.StartedAt.Format(time.DateTime),
				strconv.Itoa(s.Records), strconv.Itoa(s.Failures),
			})
		}
		printTable(out, []string{"SESSION", "SITE", "STRATEGY", "STARTED", "RECORDS", "FAILURES"}, rows)
		return nil
	}

	s, err := loadStats(cmd, b)
	if err != nil {
		return err
	}
	if statsOutput != "" {
		s.Records = s.ForOutput(statsOutput)
	}

	if statsCSV {
		return stats.WriteCSV(out, s.Records)
	}

	printHeader(out, "Fit statistics: "+s.Session.SiteName,
		[2]string{"Session", s.Session.ID},
		[2]string{"Strategy", s.Session.Strategy},
		[2]string{"Config", s.Session.ConfigHash},
		[2]string{"Records", strconv.Itoa(len(s.Records))},
	)
	rows := make([][]string, 0, len(s.Records))
	for _, r := range s.Records {
		rows = append(rows, []string{
			r.Output,
			r.Start.Format(time.DateTime),
			r.End.Format(time.DateTime),
			strconv.Itoa(r.NumPoints),
			fmt.Sprintf("%.3f", r.Bias),
			fmt.Sprintf("%.3f", r.RMSE),
			fmt.Sprintf("%.3f", r.R),
		})
	}
	printTable(out, []string{"OUTPUT", "START", "END", "N", "BIAS", "RMSE", "R"}, rows)
	return nil
}

// loadStats reads a session from the cache, falling back to the database
func loadStats(cmd *cobra.Command, b *backends) (*stats.SessionStats, error) {
	ctx := cmd.Context()
	if b.publisher != nil {
		s, found, err := b.publisher.Get(ctx, statsSessionID)
		if err == nil && found {
			return s, nil
		}
	}
	if b.store == nil {
		return nil, fmt.Errorf("session %s not cached and DATABASE_URL not set", statsSessionID)
	}
	return b.store.GetSession(ctx, statsSessionID, "")
}
