// Package event defines typed events emitted by the build loop and the
// agents, consumed by the terminal writer and the build log.
package event

// Kind identifies the type of event.
type Kind int

const (
	// KindProg is a progress message from the build loop.
	KindProg Kind = iota
	// KindItemStart marks the start of work on an item.
	KindItemStart
	// KindAttempt marks the start of one implement+verify attempt.
	KindAttempt
	// KindItemPassed marks an item as verified and persisted.
	KindItemPassed
	// KindItemFailed marks an item as failed after its retries.
	KindItemFailed
	// KindWarning is a non-fatal problem (commit failure, failed attempt).
	KindWarning
	// KindAgentOutput is raw text produced by an LLM backend.
	KindAgentOutput
	// KindDiffAdd is an added line in a diff.
	KindDiffAdd
	// KindDiffDel is a deleted line in a diff.
	KindDiffDel
	// KindDiffCtx is a context line in a diff.
	KindDiffCtx
	// KindDiffHunk is a file or hunk header line in a diff.
	KindDiffHunk
	// KindMarkdown is a markdown fragment such as a QA report.
	KindMarkdown
	// KindSummary is the end-of-run summary line.
	KindSummary
)

var kindNames = [...]string{
	KindProg:        "prog",
	KindItemStart:   "item_start",
	KindAttempt:     "attempt",
	KindItemPassed:  "item_passed",
	KindItemFailed:  "item_failed",
	KindWarning:     "warning",
	KindAgentOutput: "agent_output",
	KindDiffAdd:     "diff_add",
	KindDiffDel:     "diff_del",
	KindDiffCtx:     "diff_ctx",
	KindDiffHunk:    "diff_hunk",
	KindMarkdown:    "markdown",
	KindSummary:     "summary",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Event is a single typed event.
type Event struct {
	Kind Kind
	Text string // the payload text (meaning depends on Kind)

	// Item events carry the item id and run position.
	ItemID string
	Done   int
	Total  int
}

// Handler is a callback that receives typed events.
type Handler func(Event)

// Multi fans an event out to every non-nil handler.
func Multi(handlers ...Handler) Handler {
	var hs []Handler
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return func(ev Event) {
		for _, h := range hs {
			h(ev)
		}
	}
}

// Prog creates a KindProg event.
func Prog(text string) Event { return Event{Kind: KindProg, Text: text} }

// ItemStart creates a KindItemStart event; done is the number of items
// already passing.
func ItemStart(id, title string, done, total int) Event {
	return Event{Kind: KindItemStart, Text: title, ItemID: id, Done: done, Total: total}
}

// Attempt creates a KindAttempt event with "n/max" as text.
func Attempt(id, text string) Event { return Event{Kind: KindAttempt, Text: text, ItemID: id} }

// ItemPassed creates a KindItemPassed event.
func ItemPassed(id string, done, total int) Event {
	return Event{Kind: KindItemPassed, ItemID: id, Done: done, Total: total}
}

// ItemFailed creates a KindItemFailed event with the failure reason as text.
func ItemFailed(id, reason string, done, total int) Event {
	return Event{Kind: KindItemFailed, Text: reason, ItemID: id, Done: done, Total: total}
}

// Warning creates a KindWarning event.
func Warning(text string) Event { return Event{Kind: KindWarning, Text: text} }

// AgentOutput creates a KindAgentOutput event.
func AgentOutput(text string) Event { return Event{Kind: KindAgentOutput, Text: text} }

// DiffAdd creates a KindDiffAdd event.
func DiffAdd(text string) Event { return Event{Kind: KindDiffAdd, Text: text} }

// DiffDel creates a KindDiffDel event.
func DiffDel(text string) Event { return Event{Kind: KindDiffDel, Text: text} }

// DiffCtx creates a KindDiffCtx event.
func DiffCtx(text string) Event { return Event{Kind: KindDiffCtx, Text: text} }

// DiffHunk creates a KindDiffHunk event.
func DiffHunk(text string) Event { return Event{Kind: KindDiffHunk, Text: text} }

// Markdown creates a KindMarkdown event.
func Markdown(text string) Event { return Event{Kind: KindMarkdown, Text: text} }

// Summary creates a KindSummary event.
func Summary(text string) Event { return Event{Kind: KindSummary, Text: text} }
