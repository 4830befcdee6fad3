package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/solofill/internal/gapfill"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fill gaps for one session",
	Long: `Runs one gap-filling session.

This command:
- loads the input record named by the session file
- fills every configured output window by window
- optionally auto-completes the remaining gaps
- writes the filled record and the statistics CSV
- persists statistics to PostgreSQL and Redis when configured

Ctrl+C stops after the current output; finished windows are still written.

Example:
  go run ./cmd/solofill run --session site.yaml
  go run ./cmd/solofill run --session site.yaml --json`,
	RunE: runSession,
}

var (
	runSessionPath string
	runJSON        bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runSessionPath, "session", "s", "", "session YAML file")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
	_ = runCmd.MarkFlagRequired("session")
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer b.close()

	res, runErr := gapfill.RunFile(ctx, runSessionPath, defaultsFrom(cfg), gapfill.Options{}, b.sinks(), log)
	if res == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		return runErr
	}

	printResult(out, res)
	if runErr != nil {
		printError(out, runErr.Error())
	} else if res.Failures() > 0 {
		printWarning(out, fmt.Sprintf("%d output window(s) failed", res.Failures()))
	} else {
		printSuccess(out, fmt.Sprintf("Session %s completed in %.2fs", res.SessionID, res.FinishedAt.Sub(res.StartedAt).Seconds()))
	}
	return runErr
}

func printResult(w io.Writer, res *gapfill.Result) {
	printHeader(w, "Gap filling: "+res.Site,
		[2]string{"Session", res.SessionID},
		[2]string{"Strategy", res.Strategy},
		[2]string{"Config", res.ConfigHash},
		[2]string{"Windows", fmt.Sprintf("%d (%d skipped)", res.Windows, res.SkippedWindows)},
	)

	rows := make([][]string, 0, len(res.Outputs))
	for _, o := range res.Outputs {
		rows = append(rows, outputRow(o))
	}
	printTable(w, []string{"OUTPUT", "START", "END", "STATUS", "NODES", "FILLED"}, rows)

	ac := res.AutoComplete
	if ac.Gaps > 0 {
		fmt.Fprintf(w, "\nAuto-complete: %d gaps, %d filled, %d exhausted, %d expansions\n",
			ac.Gaps, ac.Filled, ac.Exhausted, ac.Expansions)
	}
	for _, warn := range res.Warnings {
		printWarning(w, warn.Error())
	}
	fmt.Fprintln(w)
}

func outputRow(o gapfill.OutputResult) []string {
	status := string(o.Status)
	if o.Err != nil {
		status += ": " + o.Err.Error()
	}
	return []string{
		o.Output,
		o.Window.Start.Format(time.DateTime),
		o.Window.End.Format(time.DateTime),
		status,
		strconv.Itoa(o.Nodes),
		strconv.Itoa(o.Filled),
	}
}
