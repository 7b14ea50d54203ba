// Package progress reports build progress. Tracker implements the loop's
// Reporter by counting items and emitting events; Logger writes every event
// of a run to a timestamped log file.
package progress

import (
	"fmt"
	"time"

	"github.com/alexander-akhmetov/mat/internal/event"
)

// Reporter observes item progress. It is purely observational: it never
// changes queue state and its calls never fail.
type Reporter interface {
	// Begin marks id as the item being worked on.
	Begin(id, title string)
	// Complete marks the current item as passed.
	Complete()
	// Fail marks the current item as failed with reason.
	Fail(reason string)
	// Summary returns a one-line description of the run so far.
	Summary() string
}

// Tracker is the default Reporter.
type Tracker struct {
	total     int
	completed int
	failed    int
	current   string
	started   time.Time
	emit      event.Handler
	now       func() time.Time
}

// NewTracker returns a tracker for a run over total items of which
// alreadyCompleted already pass. emit may be nil.
func NewTracker(total, alreadyCompleted int, emit event.Handler) *Tracker {
	t := &Tracker{
		total:     total,
		completed: alreadyCompleted,
		emit:      emit,
		now:       time.Now,
	}
	t.started = t.now()
	return t
}

// Begin implements Reporter.
func (t *Tracker) Begin(id, title string) {
	t.current = id
	t.send(event.ItemStart(id, title, t.completed, t.total))
}

// Complete implements Reporter.
func (t *Tracker) Complete() {
	t.completed++
	t.send(event.ItemPassed(t.current, t.completed, t.total))
	t.current = ""
}

// Fail implements Reporter.
func (t *Tracker) Fail(reason string) {
	t.failed++
	t.send(event.ItemFailed(t.current, reason, t.completed, t.total))
	t.current = ""
}

// Summary implements Reporter.
func (t *Tracker) Summary() string {
	s := fmt.Sprintf("%d/%d items passing", t.completed, t.total)
	if t.failed > 0 {
		s += fmt.Sprintf(", %d failed", t.failed)
	}
	return s + " in " + FormatDuration(t.now().Sub(t.started))
}

func (t *Tracker) send(ev event.Event) {
	if t.emit != nil {
		t.emit(ev)
	}
}

// FormatDuration renders d rounded to seconds as 1h2m3s, 2m3s or 3s.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
