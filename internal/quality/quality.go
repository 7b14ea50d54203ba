// Package quality checks work items in the build record for problems that
// make them hard to build in one pass: long descriptions, too few or vague
// acceptance criteria, and scope too large for a single session. The checks
// read record fields only.
package quality

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexander-akhmetov/mat/internal/record"
)

// Limits applied by Check.
const (
	MaxDescriptionLines = 2
	MinCriteria         = 2
	MaxCriteria         = 7
)

// IssueType groups issues in the report.
type IssueType string

const (
	IssueLength   IssueType = "length"
	IssueCriteria IssueType = "criteria"
	IssueScope    IssueType = "scope"
)

// vaguePhrases mark criteria that cannot be verified.
var vaguePhrases = []string{"should work", "must be good", "should be nice", "etc", "and more"}

// Issue is one problem found in one item.
type Issue struct {
	ItemID      string    `json:"item_id"`
	Type        IssueType `json:"type"`
	Description string    `json:"description"`
	Suggestion  string    `json:"suggestion"`
}

// Report is the result of checking every item in a record.
type Report struct {
	Items  int     `json:"items"`
	Issues []Issue `json:"issues"`
}

// HasIssues reports whether any check failed.
func (r *Report) HasIssues() bool {
	return len(r.Issues) > 0
}

// ByType returns the issues of type t in item order.
func (r *Report) ByType(t IssueType) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Type == t {
			out = append(out, i)
		}
	}
	return out
}

// Check runs every check on entries. Items that already pass are skipped;
// they will not be built again.
func Check(entries []record.Entry) *Report {
	r := &Report{Items: len(entries)}
	for _, e := range entries {
		if e.Passes {
			continue
		}
		r.Issues = append(r.Issues, checkEntry(e)...)
	}
	return r
}

func checkEntry(e record.Entry) []Issue {
	var issues []Issue
	add := func(t IssueType, desc, suggestion string) {
		issues = append(issues, Issue{ItemID: e.ID, Type: t, Description: desc, Suggestion: suggestion})
	}

	if n := descriptionLines(e.Description); n > MaxDescriptionLines {
		add(IssueLength,
			fmt.Sprintf("Description is %d lines (max is %d)", n, MaxDescriptionLines),
			"Split into smaller items or condense the description")
	}

	if n := len(e.AcceptanceCriteria); n < MinCriteria {
		add(IssueCriteria,
			fmt.Sprintf("Only %d acceptance criteria (minimum is %d)", n, MinCriteria),
			"Add more specific, verifiable acceptance criteria")
	}
	if !hasTypecheck(e.AcceptanceCriteria) {
		add(IssueCriteria, "Missing 'Typecheck passes' criterion",
			"Add 'Typecheck passes' to acceptance criteria")
	}
	for _, c := range e.AcceptanceCriteria {
		if isVague(c) {
			add(IssueCriteria, fmt.Sprintf("Vague criterion: '%s'", c),
				"Make the criterion specific and verifiable")
		}
	}

	if n := len(e.AcceptanceCriteria); n > MaxCriteria {
		add(IssueScope,
			fmt.Sprintf("Item has %d acceptance criteria (may be too large)", n),
			"Consider splitting into several focused items")
	}
	return issues
}

func descriptionLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

func hasTypecheck(criteria []string) bool {
	for _, c := range criteria {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "typecheck") || strings.Contains(lc, "type check") {
			return true
		}
	}
	return false
}

func isVague(criterion string) bool {
	lc := strings.ToLower(criterion)
	for _, p := range vaguePhrases {
		if strings.Contains(lc, p) {
			return true
		}
	}
	return false
}

// Markdown renders the report grouped by issue type.
func (r *Report) Markdown() string {
	lines := []string{
		"# Item Quality Report",
		"",
		fmt.Sprintf("**Items:** %d", r.Items),
		fmt.Sprintf("**Issues:** %d", len(r.Issues)),
		"",
	}
	if !r.HasIssues() {
		lines = append(lines, "✓ All items pass quality checks.")
		return strings.Join(lines, "\n")
	}

	seen := make(map[IssueType]bool)
	var types []IssueType
	for _, i := range r.Issues {
		if !seen[i.Type] {
			seen[i.Type] = true
			types = append(types, i.Type)
		}
	}
	sort.Slice(types, func(a, b int) bool { return types[a] < types[b] })

	for _, t := range types {
		group := r.ByType(t)
		lines = append(lines, fmt.Sprintf("## %s issues (%d)", strings.ToUpper(string(t[:1]))+string(t[1:]), len(group)), "")
		for _, i := range group {
			lines = append(lines,
				fmt.Sprintf("- **%s**: %s", i.ItemID, i.Description),
				"  - Suggestion: "+i.Suggestion)
		}
		lines = append(lines, "")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
