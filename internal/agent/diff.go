package agent

import (
	"strings"

	"github.com/aymanbagabas/go-udiff"

	"github.com/alexander-akhmetov/mat/internal/event"
)

// emitDiff sends a unified diff of one written file as diff events.
func emitDiff(h event.Handler, path, before, after string) {
	if h == nil || before == after {
		return
	}
	for _, ev := range DiffEvents(path, before, after) {
		h(ev)
	}
}

// DiffEvents renders the change from before to after as one event per line.
func DiffEvents(path, before, after string) []event.Event {
	diff := udiff.Unified("a/"+path, "b/"+path, before, after)
	if diff == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	events := make([]event.Event, 0, len(lines))
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "@@"):
			events = append(events, event.DiffHunk(line))
		case strings.HasPrefix(line, "+"):
			events = append(events, event.DiffAdd(line))
		case strings.HasPrefix(line, "-"):
			events = append(events, event.DiffDel(line))
		default:
			events = append(events, event.DiffCtx(line))
		}
	}
	return events
}

// streamTo forwards backend output to h as agent output events.
func streamTo(h event.Handler) func(string) {
	if h == nil {
		return nil
	}
	return func(text string) { h(event.AgentOutput(text)) }
}
