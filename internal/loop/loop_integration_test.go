package loop

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexander-akhmetov/mat/internal/agent"
	"github.com/alexander-akhmetov/mat/internal/config"
	"github.com/alexander-akhmetov/mat/internal/domain"
	"github.com/alexander-akhmetov/mat/internal/engine"
	"github.com/alexander-akhmetov/mat/internal/event"
	"github.com/alexander-akhmetov/mat/internal/git"
	"github.com/alexander-akhmetov/mat/internal/llm"
	"github.com/alexander-akhmetov/mat/internal/prompt"
	"github.com/alexander-akhmetov/mat/internal/record"
)

// roleInvoker answers as the developer or the QA agent depending on the
// system prompt. QA fails the first verdict for every item.
type roleInvoker struct {
	devCalls int
	qaCalls  int
}

func (r *roleInvoker) Invoke(_ context.Context, p string, opts llm.InvokeOptions) (*llm.InvokeResult, error) {
	if strings.Contains(opts.System, "QA Tester") {
		r.qaCalls++
		if r.qaCalls%2 == 1 {
			return &llm.InvokeResult{Text: "MAT_VERDICT:\n  verdict: FAIL\n  summary: missing test\n"}, nil
		}
		return &llm.InvokeResult{Text: "MAT_VERDICT:\n  verdict: PASS\n  summary: ok\n"}, nil
	}
	r.devCalls++
	id := "unknown"
	for _, line := range strings.Split(p, "\n") {
		if i := strings.Index(line, "US-"); i >= 0 {
			id = strings.Fields(line[i:])[0]
			break
		}
	}
	name := strings.ToLower(strings.Trim(id, ".:,")) + ".go"
	reply := "FILE: " + name + "\n```go\npackage app\n\n// attempt " + string(rune('0'+r.devCalls)) + "\n```\n\n" +
		"MAT_STATUS:\n  status: DONE\n  summary: wrote " + name + "\n"
	return &llm.InvokeResult{Text: reply}, nil
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func TestBuildLoop_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	gitCmd(t, dir, "init")
	gitCmd(t, dir, "config", "user.email", "test@test.com")
	gitCmd(t, dir, "config", "user.name", "Test User")

	recordPath := filepath.Join(dir, record.DefaultFileName)
	require.NoError(t, os.WriteFile(recordPath, []byte(storiesRecord(
		story("US-001", 1, false),
		story("US-002", 2, false),
	)), 0o644))
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-m", "init")

	prompts, err := config.LoadPrompts(t.TempDir(), "")
	require.NoError(t, err)
	builder, err := prompt.NewBuilder(prompts)
	require.NoError(t, err)

	inv := &roleInvoker{}
	ws := agent.NewWorkspace(dir)
	opts := agent.Options{MaxAttempts: 3, ContextFiles: -1}
	repo, err := git.Open(dir)
	require.NoError(t, err)

	var kinds []event.Kind
	l := New(Config{MaxRetries: 3, ProjectRoot: dir, AutoCommit: true}, record.Open(recordPath),
		agent.NewDeveloper(inv, builder, ws, opts), agent.NewQA(inv, builder, ws, opts),
		WithCommitter(repo), WithChangeDetector(repo),
		WithEventHandler(func(ev event.Event) { kinds = append(kinds, ev.Kind) }))

	res, err := l.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, engine.ExitReasonComplete, res.ExitReason)
	assert.Equal(t, 4, inv.devCalls)
	assert.Equal(t, 4, inv.qaCalls)

	log := gitCmd(t, dir, "log", "--format=%s")
	assert.Equal(t, "feat: US-002 - Title US-002\nfeat: US-001 - Title US-001\ninit", log)
	assert.Contains(t, gitCmd(t, dir, "show", "--name-only", "--format=", "HEAD~1"), "us-001.go")
	assert.Contains(t, gitCmd(t, dir, "show", "--name-only", "--format=", "HEAD~1"), "prd.json")

	doc, err := record.Open(recordPath).Load()
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PassedCount())

	assert.Contains(t, kinds, event.KindItemStart)
	assert.Contains(t, kinds, event.KindAttempt)
	assert.Contains(t, kinds, event.KindItemPassed)
	assert.Contains(t, kinds, event.KindSummary)
}

func TestBuildLoop_DetectedChangesExcludeRecordLock(t *testing.T) {
	dir := t.TempDir()
	gitCmd(t, dir, "init")
	gitCmd(t, dir, "config", "user.email", "test@test.com")
	gitCmd(t, dir, "config", "user.name", "Test User")

	recordPath := filepath.Join(dir, record.DefaultFileName)
	require.NoError(t, os.WriteFile(recordPath, []byte(storiesRecord(story("US-001", 1, false))), 0o644))
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-m", "init")

	// The implementer edits the tree without reporting what it touched.
	dev := &fakeDev{fn: func(*domain.WorkItem, int) ([]string, error) {
		return nil, os.WriteFile(filepath.Join(dir, "app.go"), []byte("package app\n"), 0o644)
	}}
	qa := &fakeQA{}
	repo, err := git.Open(dir)
	require.NoError(t, err)

	l := New(Config{MaxRetries: 3, ProjectRoot: dir, AutoCommit: true}, record.Open(recordPath), dev, qa,
		WithCommitter(repo), WithChangeDetector(repo))
	res, err := l.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, [][]string{{"app.go"}}, qa.artifacts)
	head := strings.Fields(gitCmd(t, dir, "ls-tree", "-r", "--name-only", "HEAD"))
	assert.ElementsMatch(t, []string{"app.go", record.DefaultFileName}, head)
}
