package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/alexander-akhmetov/mat/internal/agent"
	"github.com/alexander-akhmetov/mat/internal/config"
	"github.com/alexander-akhmetov/mat/internal/debug"
	"github.com/alexander-akhmetov/mat/internal/engine"
	"github.com/alexander-akhmetov/mat/internal/event"
	"github.com/alexander-akhmetov/mat/internal/git"
	"github.com/alexander-akhmetov/mat/internal/llm"
	"github.com/alexander-akhmetov/mat/internal/loop"
	"github.com/alexander-akhmetov/mat/internal/progress"
	"github.com/alexander-akhmetov/mat/internal/prompt"
	"github.com/alexander-akhmetov/mat/internal/record"
)

// RunConfig holds all configuration needed to run a build.
type RunConfig struct {
	Config    *config.Config
	Invoker   llm.Invoker // optional; built from Config when nil
	Out       io.Writer   // output writer (default: os.Stdout)
	IsTTY     bool
	TermWidth int
	NoLog     bool // skip the build log file
}

// Run wires the agents, the record, git and the build log into a loop and
// runs it synchronously. It handles signal-based shutdown and guarantees
// footer cleanup on exit.
func Run(ctx context.Context, cfg RunConfig) (*loop.Result, error) {
	c := cfg.Config
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	w := NewWriter(out, cfg.IsTTY, cfg.TermWidth)
	w.SetVerbose(c.Verbose || debug.Enabled())

	inv := cfg.Invoker
	if inv == nil {
		var err error
		inv, err = llm.NewInvoker(c.ToExecutorConfig())
		if err != nil {
			return nil, err
		}
	}
	if m, ok := inv.(interface{ Model() string }); ok {
		debug.Logf("cli: executor %s, model %s", c.Executor, m.Model())
	}

	builder, err := prompt.NewBuilder(c.Prompts)
	if err != nil {
		return nil, fmt.Errorf("create prompt builder: %w", err)
	}

	runID := uuid.NewString()
	handlers := []event.Handler{w.WriteEvent}

	var logger *progress.Logger
	if !cfg.NoLog {
		logger, err = progress.NewLogger(progress.Config{
			LogsDir:    c.LogsDir,
			Project:    filepath.Base(c.ProjectDir),
			RecordPath: c.RecordPath(),
			WorkDir:    c.ProjectDir,
			RunID:      runID,
		})
		if err != nil {
			w.WriteEvent(event.Warning(fmt.Sprintf("build log disabled: %v", err)))
		} else {
			defer logger.Close()
			handlers = append(handlers, logger.Handle)
		}
	}
	onEvent := event.Multi(handlers...)

	ws := agent.NewWorkspace(c.ProjectDir)
	agentOpts := agent.Options{
		MaxAttempts:   c.MaxRetries,
		ContextTokens: c.Agent.ContextTokens,
		OnEvent:       onEvent,
	}
	dev := agent.NewDeveloper(inv, builder, ws, agentOpts)
	qa := agent.NewQA(inv, builder, ws, agentOpts)

	loopOpts := []loop.Option{
		loop.WithEventHandler(onEvent),
		loop.WithRunID(runID),
	}
	repo, err := git.Open(c.ProjectDir)
	switch {
	case err == nil:
		loopOpts = append(loopOpts, loop.WithChangeDetector(repo))
		if c.Git.AutoCommit {
			loopOpts = append(loopOpts, loop.WithCommitter(repo))
			if branch, err := repo.CurrentBranch(); err == nil {
				onEvent(event.Prog("Committing passed items to " + branch))
			}
		}
	case errors.Is(err, git.ErrNotRepo):
		if c.Git.AutoCommit {
			onEvent(event.Warning("auto-commit disabled: " + c.ProjectDir + " is not a git repository"))
		}
	default:
		debug.Logf("cli: open repo: %v", err)
	}

	l := loop.New(loop.Config{
		MaxRetries:  c.MaxRetries,
		ProjectRoot: c.ProjectDir,
		AutoCommit:  c.Git.AutoCommit,
		AutoPush:    c.Git.AutoPush,
	}, record.Open(c.RecordPath()), dev, qa, loopOpts...)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := l.Run(ctx)

	// Always clean up the footer before returning.
	w.ClearFooter()

	if logger != nil {
		if err != nil {
			logger.Errorf("%v", err)
		}
		if result != nil {
			logger.Exit(string(result.ExitReason), result.Summary(), result.FailedIDs)
		}
	}

	printRunSummary(w, result, logger)
	return result, err
}

// printRunSummary prints a compact summary after the loop finishes.
func printRunSummary(w *Writer, result *loop.Result, logger *progress.Logger) {
	if result == nil {
		return
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, w.style(colorDim, "────────────────────────────"))

	status := w.styleBold(colorGreen, string(result.ExitReason))
	if !result.Success {
		status = w.styleBold(colorRed, string(result.ExitReason))
	}
	fmt.Fprintf(w.out, "%s %s\n", w.style(colorDim, "Exit:"), status)

	fmt.Fprintf(w.out, "%s %s  %s %s  %s %s\n",
		w.style(colorDim, "Passing:"), w.style(colorWhite, fmt.Sprintf("%d/%d", result.Completed, result.Total)),
		w.style(colorDim, "Failed:"), w.style(colorWhite, fmt.Sprintf("%d", result.Failed)),
		w.style(colorDim, "Duration:"), w.style(colorWhite, formatElapsed(result.Duration)),
	)
	if result.ExitReason == engine.ExitReasonFatal {
		for _, e := range result.Errors {
			fmt.Fprintf(w.out, "%s %s\n", w.style(colorDim, "Error:"), e)
		}
	}
	if logger != nil {
		fmt.Fprintf(w.out, "%s %s\n", w.style(colorDim, "Log:"), logger.Path())
	}
}
