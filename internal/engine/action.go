// Package engine holds the pure decisions of the build loop. It looks at queue
// state and returns values describing what the runner should do next; all
// I/O (agents, record writes, commits, reporting) stays in the runner.
package engine

import "github.com/alexander-akhmetov/mat/internal/domain"

// ActionKind identifies the type of action the runner should execute.
type ActionKind int

const (
	// ActionAttempt tells the runner to run the item through the retry
	// subroutine.
	ActionAttempt ActionKind = iota
	// ActionSkip tells the runner to pass over the item silently. It is
	// returned for items that already used their attempt budget.
	ActionSkip
	// ActionStop tells the runner to end the run with ExitReason.
	ActionStop
)

func (k ActionKind) String() string {
	switch k {
	case ActionAttempt:
		return "attempt"
	case ActionSkip:
		return "skip"
	case ActionStop:
		return "stop"
	}
	return "unknown"
}

// ExitReason says why a run ended.
type ExitReason string

const (
	// ExitReasonComplete means every item in the record passes.
	ExitReasonComplete ExitReason = "complete"
	// ExitReasonFailures means nothing actionable is left but some items
	// ended Failed or Blocked.
	ExitReasonFailures ExitReason = "failures"
	// ExitReasonInterrupted means the context was cancelled between items.
	ExitReasonInterrupted ExitReason = "interrupted"
	// ExitReasonFatal means the record could not be loaded or written.
	ExitReasonFatal ExitReason = "fatal"
)

// Action is the instruction returned by the engine to the loop runner.
type Action struct {
	Kind ActionKind
	Item *domain.WorkItem

	// ExitReason is set for ActionStop.
	ExitReason ExitReason
}
