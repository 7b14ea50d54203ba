package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/glamour"

	"github.com/alexander-akhmetov/mat/internal/event"
)

// 256-color palette used by the writer and the status table.
const (
	colorOrange  = 208 // prog prefix
	colorGreen   = 42  // diff add, passed items
	colorRed     = 196 // diff del, failed items
	colorYellow  = 214 // warnings
	colorCyan    = 117 // diff hunk
	colorDim     = 241 // diff context, agent output
	colorWhite   = 255 // values
	colorMagenta = 205 // current item
)

// Writer prints events to stdout and redraws a sticky progress footer in TTY
// mode. In non-TTY mode, it prints plain text without ANSI escapes or footer.
type Writer struct {
	out         io.Writer
	isTTY       bool
	verbose     bool
	width       int
	mu          sync.Mutex
	renderer    *glamour.TermRenderer
	bar         bprogress.Model
	footerLines int
	lastFooter  []string // last rendered footer lines for redraw

	current string
	title   string
	done    int
	total   int
}

// NewWriter creates a Writer. If width is <= 0, defaults to 80.
func NewWriter(out io.Writer, isTTY bool, width int) *Writer {
	if width <= 0 {
		width = 80
	}

	w := &Writer{
		out:   out,
		isTTY: isTTY,
		width: width,
		bar: bprogress.New(
			bprogress.WithDefaultGradient(),
			bprogress.WithWidth(min(width-20, 50)),
		),
	}

	if isTTY {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(max(width-6, 40)),
		)
		if err == nil {
			w.renderer = r
		}
	}

	return w
}

// SetVerbose controls whether raw agent output is printed.
func (w *Writer) SetVerbose(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.verbose = on
}

// WriteEvent prints a single event to the output stream.
func (w *Writer) WriteEvent(ev event.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ev.Kind == event.KindAgentOutput && !w.verbose {
		return
	}

	w.eraseFooter()
	w.track(ev)

	var line string
	switch ev.Kind {
	case event.KindProg:
		line = w.formatProg(ev.Text)
	case event.KindItemStart:
		line = w.formatItemStart(ev)
	case event.KindAttempt:
		line = w.style(colorDim, fmt.Sprintf("  attempt %s", ev.Text))
	case event.KindItemPassed:
		line = w.styleBold(colorGreen, fmt.Sprintf("✓ %s passed", ev.ItemID)) +
			w.style(colorDim, fmt.Sprintf(" (%d/%d)", ev.Done, ev.Total))
	case event.KindItemFailed:
		line = w.styleBold(colorRed, fmt.Sprintf("✗ %s failed", ev.ItemID)) + ": " + ev.Text
	case event.KindWarning:
		line = w.style(colorYellow, "warning: "+ev.Text)
	case event.KindAgentOutput:
		if w.isTTY {
			line = fg(colorDim, ev.Text)
		} else {
			line = stripANSI(ev.Text)
		}
	case event.KindDiffAdd:
		line = w.style(colorGreen, ev.Text)
	case event.KindDiffDel:
		line = w.style(colorRed, ev.Text)
	case event.KindDiffCtx:
		line = w.style(colorDim, ev.Text)
	case event.KindDiffHunk:
		line = w.style(colorCyan, ev.Text)
	case event.KindMarkdown:
		line = w.formatMarkdown(ev.Text)
	case event.KindSummary:
		line = w.formatSummary(ev.Text)
	}

	fmt.Fprintln(w.out, line)

	if ev.Kind == event.KindSummary {
		w.lastFooter = nil
		w.footerLines = 0
		return
	}
	w.refreshFooter()
}

// ClearFooter erases the sticky footer from the terminal.
func (w *Writer) ClearFooter() {
	if !w.isTTY {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.eraseFooter()
	w.footerLines = 0
	w.lastFooter = nil
}

// track updates the footer state from item events. Must be called with mu
// held.
func (w *Writer) track(ev event.Event) {
	switch ev.Kind {
	case event.KindItemStart:
		w.current, w.title = ev.ItemID, ev.Text
		w.done, w.total = ev.Done, ev.Total
	case event.KindItemPassed, event.KindItemFailed:
		w.current, w.title = "", ""
		w.done, w.total = ev.Done, ev.Total
	}
}

// eraseFooter moves cursor up and clears the footer lines. Must be called with mu held.
func (w *Writer) eraseFooter() {
	if w.footerLines == 0 || !w.isTTY {
		return
	}
	for range w.footerLines {
		fmt.Fprint(w.out, "\033[A\033[2K")
	}
}

// refreshFooter rebuilds and draws the footer after an event line was
// printed. Must be called with mu held.
func (w *Writer) refreshFooter() {
	if !w.isTTY || w.total == 0 {
		return
	}
	w.lastFooter = w.buildFooter()
	for _, line := range w.lastFooter {
		fmt.Fprintln(w.out, line)
	}
	w.footerLines = len(w.lastFooter)
}

// buildFooter composes the footer lines: a separator, the progress bar and
// the item being built.
func (w *Writer) buildFooter() []string {
	sep := strings.Repeat("─", min(w.width, 80))
	lines := []string{w.style(colorDim, sep)}

	lines = append(lines, w.bar.ViewAs(fraction(w.done, w.total))+" "+
		w.style(colorWhite, fmt.Sprintf("%d/%d", w.done, w.total)))

	if w.current != "" {
		lines = append(lines, w.style(colorMagenta, "-> ")+w.styleBold(colorMagenta, w.current)+" "+w.title)
	}
	return lines
}

func fraction(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(done) / float64(total)
}

// Formatting methods per event kind.

func (w *Writer) formatProg(text string) string {
	prefix := "mat: "
	if w.isTTY {
		return fgBold(colorOrange, "▶ "+prefix) + text
	}
	return prefix + text
}

func (w *Writer) formatItemStart(ev event.Event) string {
	head := fmt.Sprintf("--- %s: %s", ev.ItemID, ev.Text)
	tail := fmt.Sprintf(" (%d/%d passing) ---", ev.Done, ev.Total)
	if w.isTTY {
		return bold(head) + fg(colorDim, tail)
	}
	return head + tail
}

func (w *Writer) formatMarkdown(text string) string {
	if w.renderer != nil {
		if rendered, err := w.renderer.Render(text); err == nil {
			return strings.TrimRight(rendered, "\n")
		}
	}
	return text
}

func (w *Writer) formatSummary(text string) string {
	if w.isTTY {
		return bold("Summary: ") + text
	}
	return "Summary: " + text
}

// style wraps text with 256-color foreground in TTY mode, plain in non-TTY.
func (w *Writer) style(color int, text string) string {
	if w.isTTY {
		return fg(color, text)
	}
	return text
}

// styleBold wraps text with 256-color foreground and bold in TTY mode.
func (w *Writer) styleBold(color int, text string) string {
	if w.isTTY {
		return fgBold(color, text)
	}
	return text
}
