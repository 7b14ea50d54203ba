package cli

import (
	"errors"
	"io"

	"github.com/alexander-akhmetov/mat/internal/event"
	"github.com/alexander-akhmetov/mat/internal/quality"
	"github.com/alexander-akhmetov/mat/internal/record"
)

// ErrCheckFailed is returned when items in the record fail quality checks.
var ErrCheckFailed = errors.New("record has quality issues")

// checkRecord prints the quality report for doc and returns ErrCheckFailed
// when it lists issues.
func checkRecord(out io.Writer, doc *record.Document, isTTY bool, width int) error {
	report := quality.Check(doc.UserStories)
	NewWriter(out, isTTY, width).WriteEvent(event.Markdown(report.Markdown()))
	if report.HasIssues() {
		return ErrCheckFailed
	}
	return nil
}
