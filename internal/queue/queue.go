// Package queue holds the ordered set of work items for one build run and
// owns every status transition on them.
package queue

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexander-akhmetov/mat/internal/domain"
	"github.com/alexander-akhmetov/mat/internal/record"
)

// noCursor marks that no item has been selected yet.
const noCursor = -1

// Queue is an ordered collection of work items sorted ascending by priority.
// Items with equal priority keep their record order.
type Queue struct {
	items  []*domain.WorkItem
	byID   map[string]*domain.WorkItem
	cursor int
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{byID: make(map[string]*domain.WorkItem), cursor: noCursor}
}

// FromEntry builds a work item from a record entry. passes=true seeds
// Completed, anything else Pending.
func FromEntry(e record.Entry) *domain.WorkItem {
	status := domain.StatusPending
	if e.Passes {
		status = domain.StatusCompleted
	}
	criteria := make([]string, len(e.AcceptanceCriteria))
	copy(criteria, e.AcceptanceCriteria)
	return &domain.WorkItem{
		ID:                 e.ID,
		Title:              e.Title,
		Description:        e.Description,
		Notes:              e.Notes,
		AcceptanceCriteria: criteria,
		Priority:           e.Priority,
		Status:             status,
	}
}

// Load replaces the queue contents with items built from entries and clears
// the cursor. It never fails; a later entry with an id already seen is
// dropped.
func (q *Queue) Load(entries []record.Entry) {
	q.items = make([]*domain.WorkItem, 0, len(entries))
	q.byID = make(map[string]*domain.WorkItem, len(entries))
	q.cursor = noCursor

	for _, e := range entries {
		if _, dup := q.byID[e.ID]; dup {
			continue
		}
		item := FromEntry(e)
		q.items = append(q.items, item)
		q.byID[item.ID] = item
	}

	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].Priority < q.items[j].Priority
	})
}

// Items returns the items in priority order. The slice is a copy; the items
// are not.
func (q *Queue) Items() []*domain.WorkItem {
	out := make([]*domain.WorkItem, len(q.items))
	copy(out, q.items)
	return out
}

// Get returns the item with id, or nil.
func (q *Queue) Get(id string) *domain.WorkItem {
	return q.byID[id]
}

// NextPending returns the first Pending item in priority order and makes it
// the current item. It does not change the item's status.
func (q *Queue) NextPending() *domain.WorkItem {
	for i, item := range q.items {
		if item.Status == domain.StatusPending {
			q.cursor = i
			return item
		}
	}
	return nil
}

// Current returns the most recently selected item, or nil.
func (q *Queue) Current() *domain.WorkItem {
	if q.cursor < 0 || q.cursor >= len(q.items) {
		return nil
	}
	return q.items[q.cursor]
}

// Counts returns per-status totals.
func (q *Queue) Counts() domain.Counts {
	var c domain.Counts
	for _, item := range q.items {
		c.Add(item.Status)
	}
	return c
}

// MarkInProgress moves a Pending item to InProgress.
func (q *Queue) MarkInProgress(id string) error {
	item, err := q.lookup(id)
	if err != nil {
		return err
	}
	if item.Status != domain.StatusPending {
		return &TransitionError{ID: id, From: item.Status, To: domain.StatusInProgress}
	}
	item.Status = domain.StatusInProgress
	return nil
}

// BeginAttempt records the start of one implement+verify attempt.
func (q *Queue) BeginAttempt(id string) (int, error) {
	item, err := q.lookup(id)
	if err != nil {
		return 0, err
	}
	item.AttemptCount++
	return item.AttemptCount, nil
}

// RecordFailure appends a failed attempt's reason without changing status.
func (q *Queue) RecordFailure(id, reason string) error {
	item, err := q.lookup(id)
	if err != nil {
		return err
	}
	item.FailureReasons = append(item.FailureReasons, reason)
	return nil
}

// AddBlocker appends a blocker description without changing status.
func (q *Queue) AddBlocker(id, blocker string) error {
	item, err := q.lookup(id)
	if err != nil {
		return err
	}
	item.Blockers = append(item.Blockers, blocker)
	return nil
}

// MarkCompleted moves an InProgress item to Completed and clears its
// blockers.
func (q *Queue) MarkCompleted(id string) error {
	item, err := q.lookup(id)
	if err != nil {
		return err
	}
	if item.Status != domain.StatusInProgress {
		return &TransitionError{ID: id, From: item.Status, To: domain.StatusCompleted}
	}
	item.Status = domain.StatusCompleted
	item.Blockers = nil
	return nil
}

// MarkFailed moves an InProgress item to Failed and records reason.
func (q *Queue) MarkFailed(id, reason string) error {
	return q.finish(id, domain.StatusFailed, reason)
}

// MarkBlocked moves an InProgress item to Blocked, recording blocker both as a
// blocker and as the failure reason.
func (q *Queue) MarkBlocked(id, blocker string) error {
	if err := q.finish(id, domain.StatusBlocked, blocker); err != nil {
		return err
	}
	return q.AddBlocker(id, blocker)
}

func (q *Queue) finish(id string, to domain.Status, reason string) error {
	item, err := q.lookup(id)
	if err != nil {
		return err
	}
	if item.Status != domain.StatusInProgress {
		return &TransitionError{ID: id, From: item.Status, To: to}
	}
	item.Status = to
	if reason != "" {
		item.FailureReasons = append(item.FailureReasons, reason)
	}
	return nil
}

// Retry is the only way back from Failed or Blocked to Pending. Attempt
// count and history are kept.
func (q *Queue) Retry(id string) error {
	item, err := q.lookup(id)
	if err != nil {
		return err
	}
	if !item.Status.IsTerminalFailure() {
		return &TransitionError{ID: id, From: item.Status, To: domain.StatusPending}
	}
	item.Status = domain.StatusPending
	return nil
}

// StatusReport renders a human-readable summary of the queue.
func (q *Queue) StatusReport() string {
	c := q.Counts()
	lines := []string{
		"=== Build Status Report ===",
		fmt.Sprintf("Total: %d", c.Total),
		fmt.Sprintf("  Completed:   %d", c.Completed),
		fmt.Sprintf("  Pending:     %d", c.Pending),
		fmt.Sprintf("  In progress: %d", c.InProgress),
		fmt.Sprintf("  Blocked:     %d", c.Blocked),
		fmt.Sprintf("  Failed:      %d", c.Failed),
	}

	var blocked, failed []string
	for _, item := range q.items {
		switch item.Status {
		case domain.StatusBlocked:
			blocked = append(blocked, fmt.Sprintf("  - %s: %s", item.ID, strings.Join(item.Blockers, ", ")))
		case domain.StatusFailed:
			reason := item.LastFailure()
			if reason == "" {
				reason = "unknown"
			}
			failed = append(failed, fmt.Sprintf("  - %s: %s", item.ID, reason))
		}
	}
	if len(blocked) > 0 {
		lines = append(lines, "", "Blocked:")
		lines = append(lines, blocked...)
	}
	if len(failed) > 0 {
		lines = append(lines, "", "Failed:")
		lines = append(lines, failed...)
	}
	return strings.Join(lines, "\n")
}

func (q *Queue) lookup(id string) (*domain.WorkItem, error) {
	item, ok := q.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, nil
}
