package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexander-akhmetov/mat/internal/debug"
	"github.com/alexander-akhmetov/mat/internal/domain"
	"github.com/alexander-akhmetov/mat/internal/event"
	"github.com/alexander-akhmetov/mat/internal/llm"
	"github.com/alexander-akhmetov/mat/internal/parser"
	"github.com/alexander-akhmetov/mat/internal/prompt"
	"github.com/alexander-akhmetov/mat/internal/protocol"
)

// ErrNoStatus is returned when the developer's reply has no MAT_STATUS block.
var ErrNoStatus = errors.New("no " + protocol.StatusBlockKey + " block in response")

// DefaultContextFiles is how many project files are shown to the developer.
const DefaultContextFiles = 5

// Options configures the LLM-backed agents.
type Options struct {
	MaxAttempts   int
	ContextTokens int
	ContextFiles  int
	// OnEvent, when set, receives diffs of written files and QA reports.
	OnEvent event.Handler
}

// Developer is the LLM-backed Implementer. Files the model emits as FILE
// blocks are written into the workspace; files it reports in files_changed
// (for backends that edit the tree themselves) are passed through.
type Developer struct {
	prompts   *prompt.Builder
	workspace *Workspace
	conv      *Conversation
	opts      Options
}

// NewDeveloper returns a Developer.
func NewDeveloper(inv llm.Invoker, prompts *prompt.Builder, ws *Workspace, opts Options) *Developer {
	if opts.ContextFiles == 0 {
		opts.ContextFiles = DefaultContextFiles
	}
	conv := NewConversation(inv, prompts.DeveloperSystem(), ws.Root(), opts.ContextTokens)
	conv.OnOutput = streamTo(opts.OnEvent)
	return &Developer{
		prompts:   prompts,
		workspace: ws,
		conv:      conv,
		opts:      opts,
	}
}

// Implement asks the model to implement item and returns the files it
// produced.
func (d *Developer) Implement(ctx context.Context, item *domain.WorkItem) ([]string, error) {
	data := prompt.NewDeveloperData(item)
	data.Attempt = max(item.AttemptCount, 1)
	data.MaxAttempts = max(d.opts.MaxAttempts, data.Attempt)
	data.PreviousFailures = item.FailureReasons
	data.ContextFiles = d.contextFiles()

	text, err := d.prompts.Developer(data)
	if err != nil {
		return nil, err
	}

	reply, err := d.conv.Send(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("developer: %w", err)
	}

	var written []string
	for _, fb := range parser.ParseFiles(reply) {
		before, _ := d.workspace.Read(fb.Path)
		path, err := d.workspace.Write(fb.Path, fb.Content)
		if err != nil {
			return nil, fmt.Errorf("developer: %w", err)
		}
		written = append(written, path)
		emitDiff(d.opts.OnEvent, path, before, fb.Content)
	}

	status, err := parser.Parse(reply)
	if err != nil {
		return nil, fmt.Errorf("developer: %w", err)
	}
	if status == nil {
		return nil, fmt.Errorf("developer: %w", ErrNoStatus)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("developer: invalid status %q", status.Status)
	}
	if status.Status == protocol.StatusBlocked {
		reason := status.Error
		if reason == "" {
			reason = status.Summary
		}
		return nil, &BlockedError{Reason: reason}
	}

	artifacts := mergeUnique(written, status.FilesChanged)
	debug.Logf("developer: %s produced %d files: %s", item.ID, len(artifacts), status.Summary)
	return artifacts, nil
}

// Reset clears the developer's conversation.
func (d *Developer) Reset() {
	d.conv.Reset()
}

func (d *Developer) contextFiles() []prompt.File {
	if d.opts.ContextFiles < 0 {
		return nil
	}
	paths, err := d.workspace.List(d.opts.ContextFiles)
	if err != nil {
		debug.Logf("developer: %v", err)
		return nil
	}
	files := make([]prompt.File, 0, len(paths))
	for _, p := range paths {
		content, err := d.workspace.Read(p)
		if err != nil || content == "" {
			continue
		}
		files = append(files, prompt.File{Path: p, Content: content})
	}
	return files
}

func mergeUnique(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
