package progress

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexander-akhmetov/mat/internal/event"
)

func TestNewLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(Config{
		LogsDir:    tmpDir,
		Project:    "Todo App",
		RecordPath: "/work/prd.json",
		WorkDir:    "/work",
		RunID:      "run-1",
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Close()

	assert.FileExists(t, logger.Path())
	assert.Contains(t, filepath.Base(logger.Path()), "Todo-App.log")

	logger.Printf("Test message %d", 1)
	logger.Handle(event.ItemStart("US-001", "Create model", 0, 2))
	logger.Handle(event.Attempt("US-001", "1/3"))
	logger.Handle(event.Warning("commit failed"))
	logger.Handle(event.DiffAdd("+package models"))
	logger.Handle(event.ItemPassed("US-001", 1, 2))
	logger.Handle(event.ItemFailed("US-002", "Failed after 3 attempts", 1, 2))
	logger.Errorf("Test error: %s", "something went wrong")
	logger.Exit("failures", "1/2 items passing", []string{"US-002"})

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logger.Path())
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "# mat build log")
	assert.Contains(t, content, "Project: Todo App")
	assert.Contains(t, content, "Record: /work/prd.json")
	assert.Contains(t, content, "Run: run-1")
	assert.Contains(t, content, "Test message 1")
	assert.Contains(t, content, "--- US-001: Create model (0/2 passing) ---")
	assert.Contains(t, content, "Attempt 1/3")
	assert.Contains(t, content, "WARNING: commit failed")
	assert.Contains(t, content, "+package models\n")
	assert.Contains(t, content, "PASSED US-001 (1/2)")
	assert.Contains(t, content, "FAILED US-002: Failed after 3 attempts")
	assert.Contains(t, content, "ERROR: Test error:")
	assert.Contains(t, content, "Exit reason: failures")
	assert.Contains(t, content, "Failed items (1): US-002")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple-id", "simple-id"},
		{"./plans/my-plan.md", ".-plans-my-plan.md"},
		{"/path/to/file.md", "path-to-file.md"},
		{"has spaces here", "has-spaces-here"},
		{"has:colons:too", "has-colons-too"},
		{"special!@#$chars", "specialchars"},
		{"", "unnamed"},
		{"a", "a"},
		{strings.Repeat("a", 150), strings.Repeat("a", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeFilename(tt.input))
		})
	}
}

func TestFindLogs(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		"20260129-120000-todo-app.log",
		"20260129-130000-todo-app.log",
		"20260129-140000-shop.log",
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, f), []byte("test"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0o644))

	logs, err := FindLogs(tmpDir, "")
	require.NoError(t, err)
	require.Len(t, logs, 3)

	assert.Equal(t, "shop", logs[0].Project)
	assert.Equal(t, "todo-app", logs[1].Project)
	assert.True(t, logs[1].Timestamp.After(logs[2].Timestamp))

	logs, err = FindLogs(tmpDir, "TODO")
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = FindLogs(filepath.Join(tmpDir, "missing"), "")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestFindLatestLog(t *testing.T) {
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, "20260129-120000-my-project.log")
	require.NoError(t, os.WriteFile(path, []byte("test"), 0o644))

	lf, err := FindLatestLog(tmpDir, "my-project")
	require.NoError(t, err)
	require.NotNil(t, lf)
	assert.Equal(t, "my-project", lf.Project)
	assert.Equal(t, path, lf.Path)
	assert.False(t, lf.IsActive)

	lf, err = FindLatestLog(tmpDir, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, lf)
}

func TestFindLogs_ActiveWhileLoggerOpen(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewLogger(Config{LogsDir: tmpDir, Project: "live"})
	require.NoError(t, err)

	lf, err := FindLatestLog(tmpDir, "live")
	require.NoError(t, err)
	require.NotNil(t, lf)
	assert.True(t, lf.IsActive)

	require.NoError(t, logger.Close())

	lf, err = FindLatestLog(tmpDir, "live")
	require.NoError(t, err)
	assert.False(t, lf.IsActive)
}

func TestParseLogFilename(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		expectNil bool
		project   string
	}{
		{"valid", "20260129-120000-my-project.log", false, "my-project"},
		{"valid no project", "20260129-120000-.log", false, ""},
		{"too short", "short.log", true, ""},
		{"invalid timestamp", "invalid-timestamp-source.log", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLogFilename("/tmp", tt.filename)
			if tt.expectNil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, tt.project, result.Project)
		})
	}
}
