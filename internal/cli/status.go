package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexander-akhmetov/mat/internal/queue"
	"github.com/alexander-akhmetov/mat/internal/record"
)

var (
	statusWorkingDir string
	statusRecord     string
	statusPlain      bool
	statusCheck      bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which items in the record pass",
	Long: `Show every item in the build record in build order, with its priority
and whether it passes, followed by the totals.

The record is read without taking its lock, so status works while a build
is running.

With --check, the items that do not pass yet are checked for quality
problems (long descriptions, too few or vague acceptance criteria, scope too
large) and the command fails when any are found.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusWorkingDir, "dir", "d", "", "Project directory (default: current directory)")
	statusCmd.Flags().StringVarP(&statusRecord, "record", "r", "", "Build record path (default: prd.json)")
	statusCmd.Flags().BoolVar(&statusPlain, "plain", false, "Print the plain text report instead of a table")
	statusCmd.Flags().BoolVar(&statusCheck, "check", false, "Check pending items for quality issues")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(statusWorkingDir)
	if err != nil {
		return err
	}
	if statusRecord != "" {
		cfg.Record = statusRecord
	}

	doc, err := record.Open(cfg.RecordPath()).Load()
	if err != nil {
		return err
	}

	q := queue.New()
	q.Load(doc.UserStories)

	out := cmd.OutOrStdout()
	if statusCheck {
		return checkRecord(out, doc, false, 0)
	}
	if statusPlain {
		fmt.Fprintln(out, q.StatusReport())
		return nil
	}

	if doc.Project != "" {
		fmt.Fprintln(out, doc.Project)
	}
	fmt.Fprintln(out, StatusTable(out, q.Items()))
	fmt.Fprintf(out, "%d/%d items passing\n", doc.PassedCount(), len(doc.UserStories))
	return nil
}
