package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/alexander-akhmetov/mat/internal/dirs"
	"github.com/alexander-akhmetov/mat/internal/event"
)

// timestampFormat is the format for log timestamps.
const timestampFormat = "2006-01-02 15:04:05"

// fileTimestampFormat prefixes every log file name.
const fileTimestampFormat = "20060102-150405"

// Logger writes timestamped progress to a log file. The file is locked for
// as long as the logger is open, which marks the run as active.
type Logger struct {
	file      *os.File
	lock      *flock.Flock
	startTime time.Time
	project   string
	logPath   string
}

// Config holds logger configuration.
type Config struct {
	LogsDir    string // Directory for log files (default: dirs.LogsDir())
	Project    string // Project name from the record; names the log file
	RecordPath string
	WorkDir    string
	RunID      string
}

// NewLogger creates a logger that writes to a timestamped log file.
// Log files are stored in LogsDir with format: <timestamp>-<project>.log
func NewLogger(cfg Config) (*Logger, error) {
	logsDir := cfg.LogsDir
	if logsDir == "" {
		logsDir = dirs.LogsDir()
	}

	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}

	start := time.Now()
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s-%s.log", start.Format(fileTimestampFormat), sanitizeFilename(cfg.Project)))

	f, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	lock := flock.New(logPath)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		f.Close()
		if err == nil {
			err = fmt.Errorf("already locked")
		}
		return nil, fmt.Errorf("acquire file lock: %w", err)
	}

	l := &Logger{
		file:      f,
		lock:      lock,
		startTime: start,
		project:   cfg.Project,
		logPath:   logPath,
	}

	l.writef("# mat build log\n")
	l.writef("Project: %s\n", cfg.Project)
	if cfg.RecordPath != "" {
		l.writef("Record: %s\n", cfg.RecordPath)
	}
	l.writef("Working dir: %s\n", cfg.WorkDir)
	if cfg.RunID != "" {
		l.writef("Run: %s\n", cfg.RunID)
	}
	l.writef("Started: %s\n", start.Format(timestampFormat))
	l.writef("%s\n\n", strings.Repeat("-", 60))

	return l, nil
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.logPath
}

// Printf writes a timestamped message to the log.
func (l *Logger) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.writef("[%s] %s\n", time.Now().Format(timestampFormat), msg)
}

// Errorf logs an error message.
func (l *Logger) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.writef("[%s] ERROR: %s\n", time.Now().Format(timestampFormat), msg)
}

// Section writes a section header to the log.
func (l *Logger) Section(title string) {
	l.writef("\n--- %s ---\n", title)
}

// Handle writes ev to the log. It satisfies event.Handler.
func (l *Logger) Handle(ev event.Event) {
	switch ev.Kind {
	case event.KindItemStart:
		l.Section(fmt.Sprintf("%s: %s (%d/%d passing)", ev.ItemID, ev.Text, ev.Done, ev.Total))
	case event.KindAttempt:
		l.Printf("Attempt %s", ev.Text)
	case event.KindItemPassed:
		l.Printf("PASSED %s (%d/%d)", ev.ItemID, ev.Done, ev.Total)
	case event.KindItemFailed:
		l.Printf("FAILED %s: %s", ev.ItemID, ev.Text)
	case event.KindWarning:
		l.Printf("WARNING: %s", ev.Text)
	case event.KindAgentOutput, event.KindMarkdown:
		l.writef("%s\n", strings.TrimRight(ev.Text, "\n"))
	case event.KindDiffAdd, event.KindDiffDel, event.KindDiffCtx, event.KindDiffHunk:
		l.writef("%s\n", ev.Text)
	case event.KindSummary:
		l.Printf("Summary: %s", ev.Text)
	default:
		l.Printf("%s", ev.Text)
	}
}

// Exit logs the exit reason and duration.
func (l *Logger) Exit(reason, summary string, failedIDs []string) {
	l.writef("\n%s\n", strings.Repeat("-", 60))
	l.writef("Exit reason: %s\n", reason)
	if summary != "" {
		l.writef("Result: %s\n", summary)
	}
	if len(failedIDs) > 0 {
		l.writef("Failed items (%d): %s\n", len(failedIDs), strings.Join(failedIDs, ", "))
	}
	l.writef("Duration: %s\n", FormatDuration(time.Since(l.startTime)))
	l.writef("Completed: %s\n", time.Now().Format(timestampFormat))
}

// Close releases the file lock and closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}

	_ = l.lock.Unlock()

	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

func (l *Logger) writef(format string, args ...any) {
	if l.file != nil {
		fmt.Fprintf(l.file, format, args...)
	}
}

// sanitizeFilename converts a project name to a safe filename component.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.ReplaceAll(s, " ", "-")

	var clean strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			clean.WriteRune(r)
		}
	}
	result := clean.String()

	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-")

	if len(result) > 100 {
		result = strings.TrimRight(result[:100], "-")
	}

	if result == "" {
		return "unnamed"
	}
	return result
}
