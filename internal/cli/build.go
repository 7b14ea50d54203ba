package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexander-akhmetov/mat/internal/config"
	"github.com/alexander-akhmetov/mat/internal/debug"
	"github.com/alexander-akhmetov/mat/internal/record"
)

var (
	buildWorkingDir string
	buildMaxRetries int
	buildTimeout    int
	buildModel      string
	buildExecutor   string
	buildRecord     string
	buildVerbose    bool
	buildNoCommit   bool
	buildPush       bool
	buildJSON       bool
	buildNoLog      bool
	buildCheck      bool
)

// ErrBuildFailed is returned by the build command after a run that did not
// pass every item. The summary has already been printed.
var ErrBuildFailed = errors.New("build did not complete")

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build every pending item in the record",
	Long: `Run the build loop over the project's record (prd.json by default).

For each pending item, in priority order, mat will:
1. Ask the developer agent to implement it
2. Ask the QA agent to verify it against the acceptance criteria
3. Mark it passing in the record and commit the changes
4. Retry up to --max-retries times before marking it failed

Events are streamed to stdout with a sticky progress footer in TTY mode.
In non-TTY mode (pipes, CI), output is plain text without ANSI escapes.
A copy of every event is written to the build log (see 'mat logs').`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildWorkingDir, "dir", "d", "", "Project directory (default: current directory)")
	buildCmd.Flags().IntVarP(&buildMaxRetries, "max-retries", "n", 0, "Attempts per item before it is marked failed")
	buildCmd.Flags().IntVar(&buildTimeout, "timeout", 0, "Timeout per model request in seconds")
	buildCmd.Flags().StringVarP(&buildModel, "model", "m", "", "Ollama model name")
	buildCmd.Flags().StringVar(&buildExecutor, "executor", "", "Backend: ollama or claude")
	buildCmd.Flags().StringVarP(&buildRecord, "record", "r", "", "Build record path (default: prd.json)")
	buildCmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "Stream agent output and debug logs")
	buildCmd.Flags().BoolVar(&buildNoCommit, "no-commit", false, "Do not commit after each passed item")
	buildCmd.Flags().BoolVar(&buildPush, "push", false, "Push to origin after each commit")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Print the run result as JSON")
	buildCmd.Flags().BoolVar(&buildNoLog, "no-log", false, "Do not write a build log file")
	buildCmd.Flags().BoolVar(&buildCheck, "check", false, "Refuse to build when pending items fail quality checks")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(buildWorkingDir)
	if err != nil {
		return err
	}

	cfg.ApplyCLIFlags(config.CLIFlags{
		MaxRetries: buildMaxRetries,
		Timeout:    buildTimeout,
		Model:      buildModel,
		Executor:   buildExecutor,
		Record:     buildRecord,
		Verbose:    buildVerbose,
		NoCommit:   buildNoCommit,
		Push:       buildPush,
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Verbose {
		debug.Enable(true)
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd())) && !buildJSON
	termWidth := 0
	if isTTY {
		termWidth, _, _ = term.GetSize(int(os.Stdout.Fd()))
	}

	out := cmd.OutOrStdout()
	if buildJSON {
		out = cmd.ErrOrStderr()
		debug.SetOutput(out)
	}

	if buildCheck {
		doc, err := record.Open(cfg.RecordPath()).Load()
		if err != nil {
			return err
		}
		if err := checkRecord(out, doc, isTTY, termWidth); err != nil {
			return err
		}
	}

	result, err := Run(context.Background(), RunConfig{
		Config:    cfg,
		Out:       out,
		IsTTY:     isTTY,
		TermWidth: termWidth,
		NoLog:     buildNoLog,
	})

	if buildJSON && result != nil {
		data, jerr := json.MarshalIndent(result, "", "  ")
		if jerr != nil {
			return fmt.Errorf("marshal result: %w", jerr)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}

	if err != nil {
		return fmt.Errorf("build error: %w", err)
	}
	if !result.Success {
		return ErrBuildFailed
	}
	return nil
}
