// Package agent defines the collaborators the build loop drives for each work
// item, and the LLM-backed developer and QA agents that implement them.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexander-akhmetov/mat/internal/domain"
)

// Implementer produces candidate artifacts (file paths) for a work item.
type Implementer interface {
	Implement(ctx context.Context, item *domain.WorkItem) ([]string, error)
}

// Verifier judges whether artifacts satisfy a work item's acceptance
// criteria. A non-nil error is treated like a failed verdict.
type Verifier interface {
	Verify(ctx context.Context, item *domain.WorkItem, artifacts []string) (*Report, error)
}

// Resetter is implemented by agents that keep conversation state. The loop
// resets them after every failed attempt.
type Resetter interface {
	Reset()
}

// CriterionStatus is the verdict on a single acceptance criterion.
type CriterionStatus string

const (
	CriterionPass  CriterionStatus = "pass"
	CriterionFail  CriterionStatus = "fail"
	CriterionSkip  CriterionStatus = "skip"
	CriterionError CriterionStatus = "error"
)

// CriterionResult is the outcome for one acceptance criterion.
type CriterionResult struct {
	Criterion string
	Status    CriterionStatus
	Details   string
	Evidence  string
}

// Report is a verifier's verdict for one attempt.
type Report struct {
	Passed   bool
	Summary  string
	Criteria []CriterionResult
}

// FailureReason condenses a failed report into one line for the item's
// failure history.
func (r *Report) FailureReason() string {
	var failed []string
	for _, c := range r.Criteria {
		if c.Status == CriterionFail || c.Status == CriterionError {
			failed = append(failed, c.Criterion)
		}
	}
	reason := r.Summary
	if reason == "" {
		reason = "verification failed"
	}
	if len(failed) > 0 {
		reason = fmt.Sprintf("%s (failed: %s)", reason, strings.Join(failed, "; "))
	}
	return reason
}

// Markdown renders the report for logs.
func (r *Report) Markdown(item *domain.WorkItem) string {
	status := "✗ FAIL"
	if r.Passed {
		status = "✓ PASS"
	}
	lines := []string{
		"# Verification Report: " + item.ID,
		"**Story:** " + item.Title,
		"**Overall Status:** " + status,
		"",
		"## Acceptance Criteria",
	}
	for _, c := range r.Criteria {
		lines = append(lines, fmt.Sprintf("- %s %s", c.Status.icon(), c.Criterion))
		if c.Details != "" {
			lines = append(lines, "  - "+c.Details)
		}
	}
	if r.Summary != "" {
		lines = append(lines, "", "## Summary", r.Summary)
	}
	return strings.Join(lines, "\n")
}

func (s CriterionStatus) icon() string {
	switch s {
	case CriterionPass:
		return "✓"
	case CriterionFail:
		return "✗"
	case CriterionSkip:
		return "⊘"
	case CriterionError:
		return "⚠"
	default:
		return "?"
	}
}

// BlockedError is returned by an implementer that cannot make progress
// without human intervention.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return "blocked: " + e.Reason
}
