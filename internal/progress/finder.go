package progress

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/alexander-akhmetov/mat/internal/dirs"
)

// LogFile represents a build log file.
type LogFile struct {
	Path      string
	Project   string
	Timestamp time.Time
	IsActive  bool // true if a running build holds the file lock
}

// FindLogs finds log files in the logs directory, optionally filtered by a
// case-insensitive project substring. Files are returned newest first.
func FindLogs(logsDir, project string) ([]LogFile, error) {
	if logsDir == "" {
		logsDir = dirs.LogsDir()
	}

	entries, err := os.ReadDir(logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No logs yet
		}
		return nil, err
	}

	var logs []LogFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}

		lf := parseLogFilename(logsDir, entry.Name())
		if lf == nil {
			continue
		}
		if project != "" && !strings.Contains(strings.ToLower(lf.Project), strings.ToLower(project)) {
			continue
		}

		lf.IsActive = isFileLocked(lf.Path)
		logs = append(logs, *lf)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})

	return logs, nil
}

// FindLatestLog finds the most recent log file for a project, or nil.
func FindLatestLog(logsDir, project string) (*LogFile, error) {
	logs, err := FindLogs(logsDir, project)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, nil
	}
	return &logs[0], nil
}

// parseLogFilename parses a log filename into a LogFile.
// Expected format: YYYYMMDD-HHMMSS-<project>.log
func parseLogFilename(dir, name string) *LogFile {
	base := strings.TrimSuffix(name, ".log")

	// Need at least timestamp prefix: YYYYMMDD-HHMMSS (15 chars)
	if len(base) < 16 {
		return nil
	}

	t, err := time.Parse(fileTimestampFormat, base[:15])
	if err != nil {
		return nil
	}

	project := ""
	if len(base) > 16 {
		project = base[16:]
	}

	return &LogFile{
		Path:      filepath.Join(dir, name),
		Project:   project,
		Timestamp: t,
	}
}

// isFileLocked reports whether another open handle holds the lock on path.
func isFileLocked(path string) bool {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}
