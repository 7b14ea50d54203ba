package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexander-akhmetov/mat/internal/domain"
)

// DefaultMaxRetries is the per-item attempt budget when none is configured.
const DefaultMaxRetries = 3

// Engine makes pure decisions about what the build loop should do next.
// It holds no I/O references, only the attempt budget.
type Engine struct {
	MaxRetries int
}

// New returns an engine with maxRetries, falling back to DefaultMaxRetries
// for values below one.
func New(maxRetries int) *Engine {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	return &Engine{MaxRetries: maxRetries}
}

// DecideNext determines what to do with the item just returned by the
// queue's NextPending.
//
// Inputs:
//   - ctxDone: the run context was cancelled
//   - item: the selected item, nil when nothing is Pending
func (e *Engine) DecideNext(ctxDone bool, item *domain.WorkItem) Action {
	if ctxDone {
		return Action{Kind: ActionStop, ExitReason: ExitReasonInterrupted}
	}
	if item == nil {
		return Action{Kind: ActionStop}
	}
	if item.Status.IsTerminalFailure() && item.Exhausted(e.MaxRetries) {
		return Action{Kind: ActionSkip, Item: item}
	}
	if item.Status != domain.StatusPending {
		return Action{Kind: ActionSkip, Item: item}
	}
	return Action{Kind: ActionAttempt, Item: item}
}

// ShouldContinue reports whether the run has anything left to do: an item is
// Pending, or a Failed/Blocked item still has attempts under the budget. It
// is recomputed from the items on every call.
func (e *Engine) ShouldContinue(items []*domain.WorkItem) bool {
	for _, item := range items {
		if item.Status == domain.StatusPending {
			return true
		}
		if item.Status.IsTerminalFailure() && !item.Exhausted(e.MaxRetries) {
			return true
		}
	}
	return false
}

// RetryCandidate returns the first Failed/Blocked item with attempts left, or
// nil. The runner moves it back to Pending through the queue.
func (e *Engine) RetryCandidate(items []*domain.WorkItem) *domain.WorkItem {
	for _, item := range items {
		if item.Status.IsTerminalFailure() && !item.Exhausted(e.MaxRetries) {
			return item
		}
	}
	return nil
}

// TerminalReason picks the exit reason for a run that ran out of work.
func TerminalReason(c domain.Counts) ExitReason {
	if c.Completed == c.Total {
		return ExitReasonComplete
	}
	return ExitReasonFailures
}

// FailedAfter is the terminal failure reason recorded on an exhausted item.
func FailedAfter(maxRetries int) string {
	return fmt.Sprintf("Failed after %d attempts", maxRetries)
}

// FormatAttemptReason labels one failed attempt's reason.
func FormatAttemptReason(attempt int, reason string) string {
	return fmt.Sprintf("Attempt %d: %s", attempt, reason)
}

// JoinAttemptReasons joins labeled attempt reasons into one line.
func JoinAttemptReasons(reasons []string) string {
	return strings.Join(reasons, "; ")
}

// Result is the outcome of one run.
type Result struct {
	RunID      string        `json:"run_id,omitempty"`
	Success    bool          `json:"success"`
	Total      int           `json:"total_stories"`
	Completed  int           `json:"completed_stories"`
	Failed     int           `json:"failed_stories"`
	FailedIDs  []string      `json:"failed_story_ids"`
	Errors     []string      `json:"errors"`
	ExitReason ExitReason    `json:"exit_reason,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// NewResult returns an empty result with non-nil slices so it serializes as
// [] rather than null.
func NewResult(runID string) *Result {
	return &Result{RunID: runID, FailedIDs: []string{}, Errors: []string{}}
}

// Finish computes Failed and Success from the recorded ids. Success requires
// no failed items and every item completed; a record with no items is
// trivially successful.
func (r *Result) Finish(reason ExitReason, elapsed time.Duration) {
	r.Failed = len(r.FailedIDs)
	r.Success = r.Failed == 0 && r.Completed == r.Total && reason != ExitReasonFatal
	r.ExitReason = reason
	r.Duration = elapsed
}

// Summary renders a one-line description of the result.
func (r *Result) Summary() string {
	s := fmt.Sprintf("%d/%d items passing", r.Completed, r.Total)
	if r.Failed > 0 {
		s += fmt.Sprintf(", %d failed (%s)", r.Failed, strings.Join(r.FailedIDs, ", "))
	}
	if r.ExitReason != "" {
		s += fmt.Sprintf(" [%s]", r.ExitReason)
	}
	return s
}
