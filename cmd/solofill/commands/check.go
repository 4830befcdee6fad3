package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/solofill/internal/gapfill"
	"github.com/wonny/solofill/internal/sessionconfig"
	"github.com/wonny/solofill/internal/toolchain"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the toolchain work area",
	Long: `Checks the work area a session runs in.

This command:
- validates the session file
- verifies the exchange directories exist (created with --fix)
- verifies the SOFM, SOLO and SEQSOLO executables are present

Example:
  go run ./cmd/solofill check --session site.yaml
  go run ./cmd/solofill check --session site.yaml --fix`,
	RunE: runCheck,
}

var (
	checkSessionPath string
	checkFix         bool
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkSessionPath, "session", "s", "", "session YAML file")
	checkCmd.Flags().BoolVar(&checkFix, "fix", false, "create missing directories")
	_ = checkCmd.MarkFlagRequired("session")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Close()

	sess, err := gapfill.LoadSession(checkSessionPath, defaultsFrom(cfg))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	layout := toolchain.NewLayout(sess.Toolchain.WorkDir, sess.Toolchain.BinDir)
	printHeader(out, "Work area check: "+sess.Session.SiteName,
		[2]string{"Work dir", layout.Abs(".")},
		[2]string{"Bin dir", sess.Toolchain.BinDir},
	)

	for _, w := range sessionconfig.Warn(sess) {
		printWarning(out, fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}

	unresolved := 0
	for _, p := range layout.Check(checkFix) {
		if p.Fixed {
			printSuccess(out, fmt.Sprintf("%s: %s (created)", p.Path, p.Message))
			continue
		}
		unresolved++
		printError(out, fmt.Sprintf("%s: %s", p.Path, p.Message))
	}

	if unresolved > 0 {
		return fmt.Errorf("work area has %d unresolved problem(s)", unresolved)
	}
	printSuccess(out, "Work area is ready")
	return nil
}
