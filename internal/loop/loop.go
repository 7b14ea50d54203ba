// Package loop runs the build: it drives every pending work item through
// implement, verify and persist, in priority order, and reports progress.
// Decisions come from the engine package; this package performs the I/O.
package loop

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/alexander-akhmetov/mat/internal/agent"
	"github.com/alexander-akhmetov/mat/internal/debug"
	"github.com/alexander-akhmetov/mat/internal/domain"
	"github.com/alexander-akhmetov/mat/internal/engine"
	"github.com/alexander-akhmetov/mat/internal/event"
	"github.com/alexander-akhmetov/mat/internal/git"
	"github.com/alexander-akhmetov/mat/internal/progress"
	"github.com/alexander-akhmetov/mat/internal/queue"
	"github.com/alexander-akhmetov/mat/internal/record"
)

// Result is the outcome of one run.
type Result = engine.Result

// Config is the explicit configuration of a run.
type Config struct {
	// MaxRetries bounds implement+verify attempts per item per run.
	MaxRetries int
	// ProjectRoot is the directory the agents work in.
	ProjectRoot string
	// AutoCommit commits each passed item's artifacts.
	AutoCommit bool
	// AutoPush pushes after each commit. Ignored without AutoCommit.
	AutoPush bool
}

// Store is the persistent record of which items pass.
type Store interface {
	Path() string
	Lock() error
	Unlock() error
	Load() (*record.Document, error)
	MarkPassed(id string) error
}

// Committer records a passed item in version control.
type Committer interface {
	AutoCommitItem(ctx context.Context, id, title string, files []string, push bool) (git.CommitResult, error)
}

// ChangeDetector lists files changed in the working tree. It fills in the
// artifacts of an implementer that edits files without reporting them.
type ChangeDetector interface {
	Changed() ([]string, error)
}

// ReporterFactory creates the reporter for a run over total items of which
// completed already pass.
type ReporterFactory func(total, completed int, emit event.Handler) progress.Reporter

// Outcome is the result of the per-item retry subroutine.
type Outcome struct {
	Passed    bool
	Artifacts []string
	// Reason joins every failed attempt's reason when Passed is false.
	Reason string
	// Blocked is set when every attempt ended with the implementer blocked.
	Blocked bool
	Blocker string
}

// attemptResult is the outcome of one implement+verify attempt.
type attemptResult struct {
	passed    bool
	artifacts []string
	reason    string
	blocker   string
}

// BuildLoop runs work items from a Store through an Implementer and a
// Verifier. One item is in flight at a time.
type BuildLoop struct {
	cfg         Config
	engine      *engine.Engine
	store       Store
	queue       *queue.Queue
	dev         agent.Implementer
	qa          agent.Verifier
	committer   Committer
	changes     ChangeDetector
	onEvent     event.Handler
	newReporter ReporterFactory
	newRunID    func() string
	now         func() time.Time
}

// Option configures a BuildLoop.
type Option func(*BuildLoop)

// WithCommitter sets the commit side effect run after each passed item.
func WithCommitter(c Committer) Option {
	return func(l *BuildLoop) { l.committer = c }
}

// WithChangeDetector sets the fallback used when the implementer reports no
// artifacts.
func WithChangeDetector(d ChangeDetector) Option {
	return func(l *BuildLoop) { l.changes = d }
}

// WithEventHandler sets the receiver of progress events.
func WithEventHandler(h event.Handler) Option {
	return func(l *BuildLoop) { l.onEvent = h }
}

// WithReporter replaces the default progress.Tracker.
func WithReporter(f ReporterFactory) Option {
	return func(l *BuildLoop) { l.newReporter = f }
}

// WithRunID fixes the run id reported in the result, so it can match the
// build log.
func WithRunID(id string) Option {
	return func(l *BuildLoop) { l.newRunID = func() string { return id } }
}

// New returns a BuildLoop. MaxRetries below one uses the default.
func New(cfg Config, store Store, dev agent.Implementer, qa agent.Verifier, opts ...Option) *BuildLoop {
	e := engine.New(cfg.MaxRetries)
	cfg.MaxRetries = e.MaxRetries
	l := &BuildLoop{
		cfg:      cfg,
		engine:   e,
		store:    store,
		queue:    queue.New(),
		dev:      dev,
		qa:       qa,
		newRunID: uuid.NewString,
		now:      time.Now,
		newReporter: func(total, completed int, emit event.Handler) progress.Reporter {
			return progress.NewTracker(total, completed, emit)
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Queue returns the run's queue. It is empty until Run loads the record.
func (l *BuildLoop) Queue() *queue.Queue {
	return l.queue
}

// Run builds every pending item. The returned error is non-nil only for
// fatal conditions: the record could not be locked, loaded or written. The
// result is always non-nil. The context is checked between items; an item
// already in flight runs to completion.
func (l *BuildLoop) Run(ctx context.Context) (*Result, error) {
	start := l.now()
	res := engine.NewResult(l.newRunID())
	fatal := func(err error) (*Result, error) {
		res.Errors = append(res.Errors, err.Error())
		res.Finish(engine.ExitReasonFatal, l.now().Sub(start))
		l.emit(event.Summary(res.Summary()))
		return res, err
	}

	if err := l.store.Lock(); err != nil {
		return fatal(err)
	}
	defer func() {
		if err := l.store.Unlock(); err != nil {
			debug.Logf("loop: %v", err)
		}
	}()

	doc, err := l.store.Load()
	if err != nil {
		return fatal(err)
	}
	l.queue.Load(doc.UserStories)

	counts := l.queue.Counts()
	res.Total = counts.Total
	res.Completed = counts.Completed
	l.emit(event.Prog(fmt.Sprintf("Building %s: %d items, %d already passing", projectName(doc), counts.Total, counts.Completed)))

	reporter := l.newReporter(counts.Total, counts.Completed, l.emit)

	var reason engine.ExitReason
	for reason == "" {
		action := l.engine.DecideNext(ctx.Err() != nil, l.queue.NextPending())
		switch action.Kind {
		case engine.ActionStop:
			reason = action.ExitReason
			if reason == "" {
				reason = engine.TerminalReason(l.queue.Counts())
			}
		case engine.ActionSkip:
			debug.Logf("loop: skipping %s (%s)", action.Item.ID, action.Item.Status)
		case engine.ActionAttempt:
			if err := l.runItem(ctx, action.Item, reporter, res); err != nil {
				return fatal(err)
			}
			if !l.shouldContinue() {
				reason = engine.TerminalReason(l.queue.Counts())
			}
		}
	}

	if reason == engine.ExitReasonInterrupted {
		l.emit(event.Warning("Interrupted; progress so far is saved in " + l.store.Path()))
	}
	res.Finish(reason, l.now().Sub(start))
	l.emit(event.Summary(reporter.Summary()))
	return res, nil
}

// runItem takes one Pending item through the retry subroutine and records
// the outcome. Only a failed record write is returned as an error.
func (l *BuildLoop) runItem(ctx context.Context, item *domain.WorkItem, reporter progress.Reporter, res *Result) error {
	if err := l.queue.MarkInProgress(item.ID); err != nil {
		return err
	}
	reporter.Begin(item.ID, item.Title)

	out := l.RunItemWithRetries(ctx, item)

	if out.Passed {
		if err := l.queue.MarkCompleted(item.ID); err != nil {
			return err
		}
		if err := l.store.MarkPassed(item.ID); err != nil {
			return fmt.Errorf("persist %s: %w", item.ID, err)
		}
		res.Completed++
		reporter.Complete()
		l.commit(ctx, item, out.Artifacts)
		return nil
	}

	terminal := engine.FailedAfter(l.cfg.MaxRetries)
	debug.Logf("loop: %s %s: %s", item.ID, terminal, out.Reason)
	var err error
	if out.Blocked {
		err = l.queue.MarkBlocked(item.ID, out.Blocker)
	} else {
		err = l.queue.MarkFailed(item.ID, terminal)
	}
	if err != nil {
		return err
	}
	reporter.Fail(terminal)
	res.FailedIDs = append(res.FailedIDs, item.ID)
	res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", item.ID, terminal))
	return nil
}

// RunItemWithRetries runs implement+verify attempts on item until one passes
// or the item has used MaxRetries attempts. Failures are recorded on the
// item and never returned as errors. The item must be InProgress in the
// loop's queue.
func (l *BuildLoop) RunItemWithRetries(ctx context.Context, item *domain.WorkItem) Outcome {
	// The in-flight item is not cancelled; ctx is only checked between items.
	ctx = context.WithoutCancel(ctx)

	var reasons []string
	blocker := ""
	allBlocked := true

	for !item.Exhausted(l.cfg.MaxRetries) {
		n, err := l.queue.BeginAttempt(item.ID)
		if err != nil {
			reasons = append(reasons, err.Error())
			allBlocked = false
			break
		}
		l.emit(event.Attempt(item.ID, fmt.Sprintf("%d/%d", n, l.cfg.MaxRetries)))

		r := l.attempt(ctx, item)
		if r.passed {
			return Outcome{Passed: true, Artifacts: r.artifacts}
		}

		labeled := engine.FormatAttemptReason(n, r.reason)
		reasons = append(reasons, labeled)
		l.emit(event.Warning(item.ID + " " + labeled))
		if err := l.queue.RecordFailure(item.ID, labeled); err != nil {
			reasons = append(reasons, err.Error())
			allBlocked = false
			break
		}

		if r.blocker == "" {
			allBlocked = false
		} else {
			blocker = r.blocker
		}
		l.resetAgents()
	}

	return Outcome{
		Reason:  engine.JoinAttemptReasons(reasons),
		Blocked: allBlocked && blocker != "",
		Blocker: blocker,
	}
}

func (l *BuildLoop) attempt(ctx context.Context, item *domain.WorkItem) attemptResult {
	artifacts, err := l.dev.Implement(ctx, item)
	if err != nil {
		var blocked *agent.BlockedError
		if errors.As(err, &blocked) {
			return attemptResult{reason: "Implementation blocked: " + blocked.Reason, blocker: blocked.Reason}
		}
		return attemptResult{reason: "Implementation failed: " + err.Error()}
	}

	if len(artifacts) == 0 && l.changes != nil {
		detected, err := l.changes.Changed()
		if err != nil {
			debug.Logf("loop: detect changes: %v", err)
		} else {
			artifacts = detected
		}
	}

	report, err := l.qa.Verify(ctx, item, artifacts)
	if err != nil {
		return attemptResult{artifacts: artifacts, reason: "Verification error: " + err.Error()}
	}
	if report == nil {
		return attemptResult{artifacts: artifacts, reason: "Verification failed: verifier returned no report"}
	}
	if !report.Passed {
		return attemptResult{artifacts: artifacts, reason: "Verification failed: " + report.FailureReason()}
	}
	return attemptResult{passed: true, artifacts: artifacts}
}

// shouldContinue recomputes from the queue whether any work is left. When
// nothing is Pending but an item still has attempts, it is moved back to
// Pending through Retry.
func (l *BuildLoop) shouldContinue() bool {
	items := l.queue.Items()
	if !l.engine.ShouldContinue(items) {
		l.emit(event.Prog("No actionable items left"))
		return false
	}
	if l.queue.Counts().Pending > 0 {
		return true
	}
	candidate := l.engine.RetryCandidate(items)
	if err := l.queue.Retry(candidate.ID); err != nil {
		debug.Logf("loop: retry %s: %v", candidate.ID, err)
		return false
	}
	l.emit(event.Prog(fmt.Sprintf("Retrying %s (%d/%d attempts used)", candidate.ID, candidate.AttemptCount, l.cfg.MaxRetries)))
	return true
}

// commit runs the commit side effect. Failures are warnings only.
func (l *BuildLoop) commit(ctx context.Context, item *domain.WorkItem, artifacts []string) {
	if !l.cfg.AutoCommit || l.committer == nil {
		return
	}

	files := artifacts
	if len(files) > 0 {
		files = append(append([]string(nil), artifacts...), l.recordPath())
	}

	res, err := l.committer.AutoCommitItem(context.WithoutCancel(ctx), item.ID, item.Title, files, l.cfg.AutoPush)
	if err != nil {
		l.emit(event.Warning(fmt.Sprintf("auto-commit for %s failed: %v", item.ID, err)))
		return
	}
	switch {
	case !res.Committed():
		l.emit(event.Prog("No changes to commit for " + item.ID))
	case res.PushErr != nil:
		l.emit(event.Warning(fmt.Sprintf("Committed %s but push failed: %v", item.ID, res.PushErr)))
	case res.PushSkipped:
		l.emit(event.Prog(fmt.Sprintf("Committed %s; no %s remote, push skipped", item.ID, git.DefaultRemote)))
	default:
		l.emit(event.Prog("Committed: " + res.Message))
	}
}

// recordPath returns the record path relative to the project root when it
// lies inside it.
func (l *BuildLoop) recordPath() string {
	p := l.store.Path()
	if l.cfg.ProjectRoot == "" || !filepath.IsAbs(p) {
		return p
	}
	if rel, err := filepath.Rel(l.cfg.ProjectRoot, p); err == nil && filepath.IsLocal(rel) {
		return filepath.ToSlash(rel)
	}
	return p
}

func (l *BuildLoop) resetAgents() {
	for _, a := range []any{l.dev, l.qa} {
		if r, ok := a.(agent.Resetter); ok {
			r.Reset()
		}
	}
}

func (l *BuildLoop) emit(ev event.Event) {
	if l.onEvent != nil {
		l.onEvent(ev)
	}
}

func projectName(doc *record.Document) string {
	if doc.Project != "" {
		return doc.Project
	}
	return "project"
}
