// Package domain defines the shared model types used across mat:
// WorkItem, its Status, and aggregate Counts.
package domain

import "fmt"

// DefaultPriority is assigned to items with a missing or invalid priority so
// that unprioritized items sort after everything else.
const DefaultPriority = 999

// Status is the lifecycle state of a work item.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusBlocked
	StatusCompleted
	StatusFailed
)

var statusNames = [...]string{
	StatusPending:    "pending",
	StatusInProgress: "in_progress",
	StatusBlocked:    "blocked",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
}

func (s Status) String() string {
	if s.IsValid() {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsValid reports whether s is one of the declared statuses.
func (s Status) IsValid() bool {
	return s >= StatusPending && s <= StatusFailed
}

// IsTerminalFailure reports whether s is Failed or Blocked. Both are treated
// the same way by the retry-exhaustion check.
func (s Status) IsTerminalFailure() bool {
	return s == StatusFailed || s == StatusBlocked
}

// WorkItem is one independently implementable and verifiable unit of work.
type WorkItem struct {
	// ID is unique within a queue and stable across runs (persistence key).
	ID          string
	Title       string
	Description string
	Notes       string
	// AcceptanceCriteria are opaque to the loop; only the verifier reads them.
	AcceptanceCriteria []string
	// Priority orders the queue ascending. Ties keep insertion order.
	Priority int

	Status       Status
	AttemptCount int
	// FailureReasons is append-only and only cleared by a full reset.
	FailureReasons []string
	// Blockers is append-only and cleared when the item completes.
	Blockers []string
}

// LastFailure returns the most recent failure reason, or "" if none.
func (w *WorkItem) LastFailure() string {
	if len(w.FailureReasons) == 0 {
		return ""
	}
	return w.FailureReasons[len(w.FailureReasons)-1]
}

// Exhausted reports whether the item has used up its attempt budget.
func (w *WorkItem) Exhausted(maxRetries int) bool {
	return w.AttemptCount >= maxRetries
}

// Counts holds per-status aggregates for a queue.
type Counts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Blocked    int `json:"blocked"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Add increments the bucket for status s.
func (c *Counts) Add(s Status) {
	c.Total++
	switch s {
	case StatusPending:
		c.Pending++
	case StatusInProgress:
		c.InProgress++
	case StatusBlocked:
		c.Blocked++
	case StatusCompleted:
		c.Completed++
	case StatusFailed:
		c.Failed++
	}
}
