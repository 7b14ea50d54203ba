package cli

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexander-akhmetov/mat/internal/config"
	"github.com/alexander-akhmetov/mat/internal/engine"
	"github.com/alexander-akhmetov/mat/internal/llm"
	"github.com/alexander-akhmetov/mat/internal/progress"
	"github.com/alexander-akhmetov/mat/internal/record"
)

func TestMain(m *testing.M) {
	stateDir, err := os.MkdirTemp("", "mat-cli-state-*")
	if err != nil {
		panic(err)
	}
	os.Setenv("MAT_STATE_DIR", stateDir)
	code := m.Run()
	os.RemoveAll(stateDir)
	os.Exit(code)
}

const testRecord = `{
  "project": "Todo App",
  "userStories": [
    {"id": "US-001", "title": "Create model", "acceptanceCriteria": ["Model exists"], "priority": 1, "passes": false}
  ]
}
`

// passingInvoker writes one file as the developer and always passes as QA.
type passingInvoker struct{}

func (passingInvoker) Invoke(_ context.Context, _ string, opts llm.InvokeOptions) (*llm.InvokeResult, error) {
	if strings.Contains(opts.System, "QA Tester") {
		return &llm.InvokeResult{Text: "MAT_VERDICT:\n  verdict: PASS\n  summary: ok\n"}, nil
	}
	return &llm.InvokeResult{Text: "FILE: todo.go\n```go\npackage todo\n```\n\nMAT_STATUS:\n  status: DONE\n  summary: wrote todo.go\n"}, nil
}

func testProject(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("MAT_PROJECT_DIR", "")
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, record.DefaultFileName), []byte(testRecord), 0o644))

	cfg, err := config.LoadWithDirs(t.TempDir(), project)
	require.NoError(t, err)
	cfg.LogsDir = t.TempDir()
	return cfg
}

func TestRun_BuildsRecord(t *testing.T) {
	cfg := testProject(t)
	var buf bytes.Buffer

	res, err := Run(context.Background(), RunConfig{Config: cfg, Invoker: passingInvoker{}, Out: &buf})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, engine.ExitReasonComplete, res.ExitReason)
	assert.Equal(t, 1, res.Completed)

	output := buf.String()
	assert.Contains(t, output, "mat: Building Todo App")
	assert.Contains(t, output, "US-001 passed")
	assert.Contains(t, output, "+package todo")
	assert.Contains(t, output, "warning: auto-commit disabled")
	assert.Contains(t, output, "Exit: complete")

	data, err := os.ReadFile(cfg.RecordPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"passes": true`)

	written, err := os.ReadFile(filepath.Join(cfg.ProjectDir, "todo.go"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "package todo")
}

func TestRun_WritesBuildLog(t *testing.T) {
	cfg := testProject(t)
	var buf bytes.Buffer

	res, err := Run(context.Background(), RunConfig{Config: cfg, Invoker: passingInvoker{}, Out: &buf})
	require.NoError(t, err)

	lf, err := progress.FindLatestLog(cfg.LogsDir, "")
	require.NoError(t, err)
	require.NotNil(t, lf)
	assert.False(t, lf.IsActive)

	data, err := os.ReadFile(lf.Path)
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "Run: "+res.RunID)
	assert.Contains(t, log, "PASSED US-001")
	assert.Contains(t, log, "Exit reason: complete")
	assert.Contains(t, buf.String(), "Log: "+lf.Path)
}

func TestRun_NoLog(t *testing.T) {
	cfg := testProject(t)

	_, err := Run(context.Background(), RunConfig{Config: cfg, Invoker: passingInvoker{}, Out: &bytes.Buffer{}, NoLog: true})
	require.NoError(t, err)

	logs, err := progress.FindLogs(cfg.LogsDir, "")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestRun_MissingRecordIsFatal(t *testing.T) {
	cfg := testProject(t)
	require.NoError(t, os.Remove(cfg.RecordPath()))
	var buf bytes.Buffer

	res, err := Run(context.Background(), RunConfig{Config: cfg, Invoker: passingInvoker{}, Out: &buf, NoLog: true})
	require.Error(t, err)

	var le *record.LoadError
	require.ErrorAs(t, err, &le)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, engine.ExitReasonFatal, res.ExitReason)
	assert.Contains(t, buf.String(), "Error: ")
}

func TestRun_UnknownExecutor(t *testing.T) {
	cfg := testProject(t)
	cfg.Executor = "gpt-remote"

	res, err := Run(context.Background(), RunConfig{Config: cfg, Out: &bytes.Buffer{}, NoLog: true})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "unknown executor")
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func TestRun_CommitsInGitRepo(t *testing.T) {
	cfg := testProject(t)
	dir := cfg.ProjectDir
	gitCmd(t, dir, "init")
	gitCmd(t, dir, "config", "user.email", "test@test.com")
	gitCmd(t, dir, "config", "user.name", "Test User")
	gitCmd(t, dir, "add", record.DefaultFileName)
	gitCmd(t, dir, "commit", "-m", "init")
	var buf bytes.Buffer

	res, err := Run(context.Background(), RunConfig{Config: cfg, Invoker: passingInvoker{}, Out: &buf, NoLog: true})
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.Contains(t, buf.String(), "mat: Committing passed items to ")
	assert.Contains(t, buf.String(), "mat: Committed: feat: US-001 - Create model")
	assert.Equal(t, "feat: US-001 - Create model", gitCmd(t, dir, "log", "-1", "--format=%s"))
	files := gitCmd(t, dir, "show", "--name-only", "--format=", "HEAD")
	assert.Contains(t, files, "todo.go")
	assert.Contains(t, files, record.DefaultFileName)
	assert.NotContains(t, files, ".lock")
}
