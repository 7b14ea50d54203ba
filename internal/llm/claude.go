package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/alexander-akhmetov/mat/internal/debug"
)

// ClaudeConfig configures a ClaudeInvoker.
type ClaudeConfig struct {
	// Binary is the CLI to run; defaults to "claude".
	Binary string
	// Flags are extra CLI flags, whitespace separated.
	Flags string
	// Timeout in seconds; zero leaves it to the caller's context.
	Timeout int
}

// ClaudeInvoker invokes the Claude CLI in print mode.
type ClaudeInvoker struct {
	cfg ClaudeConfig
}

// NewClaudeInvoker returns an Invoker that shells out to the claude binary.
func NewClaudeInvoker(cfg ClaudeConfig) *ClaudeInvoker {
	if cfg.Binary == "" {
		cfg.Binary = "claude"
	}
	return &ClaudeInvoker{cfg: cfg}
}

// Invoke runs claude --print, writing the prompt (with any history folded in)
// to stdin. A timeout is reported as a blocked status block, not an error.
func (c *ClaudeInvoker) Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*InvokeResult, error) {
	args := []string{"--print"}
	if opts.System != "" {
		args = append(args, "--append-system-prompt", opts.System)
	}
	if c.cfg.Flags != "" {
		args = append(args, strings.Fields(c.cfg.Flags)...)
	}

	timeout := c.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	invokeCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(invokeCtx, c.cfg.Binary, args...)
	setupProcessGroup(cmd)
	if opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.cfg.Binary, err)
	}

	go func() {
		defer stdin.Close()
		if _, err := io.WriteString(stdin, foldHistory(prompt, opts.History)); err != nil {
			debug.Logf("llm: failed to write prompt to stdin: %v", err)
		}
	}()

	output := ProcessTextOutput(stdout, opts)

	if err := cmd.Wait(); err != nil {
		if invokeCtx.Err() == context.DeadlineExceeded {
			return &InvokeResult{Text: TimeoutBlockedStatus()}, nil
		}
		if stderrStr := strings.TrimSpace(stderrBuf.String()); stderrStr != "" {
			return nil, fmt.Errorf("claude exited: %w\nstderr: %s", err, stderrStr)
		}
		return nil, fmt.Errorf("claude exited: %w", err)
	}

	if strings.TrimSpace(output) == "" {
		return nil, ErrEmptyResponse
	}
	return &InvokeResult{Text: output}, nil
}

// foldHistory renders earlier turns ahead of prompt; print mode has no
// conversation state of its own.
func foldHistory(prompt string, history []Message) string {
	if len(history) == 0 {
		return prompt
	}
	var b strings.Builder
	b.WriteString("Previous conversation:\n\n")
	for _, m := range history {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, strings.TrimSpace(m.Content))
	}
	b.WriteString("---\n\n")
	b.WriteString(prompt)
	return b.String()
}
