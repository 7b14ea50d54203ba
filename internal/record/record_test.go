package record

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/alexander-akhmetov/mat/internal/domain"
)

const sampleRecord = `{
  "project": "Todo App",
  "branchName": "mat/todo",
  "userStories": [
    {
      "id": "US-001",
      "title": "Create model",
      "description": "Add the todo model",
      "acceptanceCriteria": ["Model exists", "Typecheck passes"],
      "priority": 2,
      "passes": false,
      "notes": "keep it small"
    },
    {
      "id": "US-002",
      "title": "List todos",
      "description": "List endpoint",
      "acceptanceCriteria": ["Returns JSON"],
      "priority": 1,
      "passes": true,
      "owner": "someone"
    }
  ]
}
`

func TestMain(m *testing.M) {
	stateDir, err := os.MkdirTemp("", "mat-record-state-*")
	if err != nil {
		panic(err)
	}
	os.Setenv("MAT_STATE_DIR", stateDir)
	code := m.Run()
	os.RemoveAll(stateDir)
	os.Exit(code)
}

func writeRecord(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStore_Load(t *testing.T) {
	s := Open(writeRecord(t, sampleRecord))

	doc, err := s.Load()
	require.NoError(t, err)

	assert.Equal(t, "Todo App", doc.Project)
	assert.Equal(t, "mat/todo", doc.BranchName)
	require.Len(t, doc.UserStories, 2)

	first := doc.UserStories[0]
	assert.Equal(t, "US-001", first.ID)
	assert.Equal(t, "Create model", first.Title)
	assert.Equal(t, []string{"Model exists", "Typecheck passes"}, first.AcceptanceCriteria)
	assert.Equal(t, 2, first.Priority)
	assert.False(t, first.Passes)
	assert.Equal(t, "keep it small", first.Notes)

	assert.True(t, doc.UserStories[1].Passes)
	assert.Equal(t, 1, doc.PassedCount())
	assert.Same(t, doc, s.Document())
}

func TestStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"invalid json", `{"userStories": [`, "invalid JSON"},
		{"not an object", `[1, 2]`, "must be a JSON object"},
		{"missing stories", `{"project": "x"}`, "missing 'userStories'"},
		{"stories not a list", `{"userStories": {"id": "a"}}`, "must be a list"},
		{"entry not an object", `{"userStories": ["US-1"]}`, "must be an object"},
		{"missing id", `{"userStories": [{"title": "no id"}]}`, "missing 'id'"},
		{"empty id", `{"userStories": [{"id": "  "}]}`, "missing 'id'"},
		{"numeric id", `{"userStories": [{"id": 7}]}`, "missing 'id'"},
		{"duplicate id", `{"userStories": [{"id": "a"}, {"id": "a"}]}`, "duplicate id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeRecord(t, tc.content)
			_, err := Open(path).Load()
			require.Error(t, err)

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Contains(t, le.Reason, tc.reason)
			assert.Equal(t, path, le.Path)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.json")).Load()

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "file not found", le.Reason)
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`{"p": 3}`, 3},
		{`{"p": 4.9}`, 4},
		{`{"p": "12"}`, 12},
		{`{"p": "high"}`, domain.DefaultPriority},
		{`{"p": "-1"}`, domain.DefaultPriority},
		{`{"p": -1}`, domain.DefaultPriority},
		{`{"p": 0}`, 0},
		{`{"p": 1e300}`, domain.DefaultPriority},
		{`{"p": "99999999999999999999"}`, domain.DefaultPriority},
		{`{"p": null}`, domain.DefaultPriority},
		{`{"p": true}`, domain.DefaultPriority},
		{`{}`, domain.DefaultPriority},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, ParsePriority(gjson.Get(tc.raw, "p")))
		})
	}
}

func TestStore_MarkPassed(t *testing.T) {
	path := writeRecord(t, sampleRecord)
	s := Open(path)
	_, err := s.Load()
	require.NoError(t, err)

	require.NoError(t, s.MarkPassed("US-001"))
	assert.True(t, s.Document().UserStories[0].Passes)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))
	assert.Contains(t, string(data), "\n  \"userStories\"")

	// Reload from disk: the flipped flag persisted, everything else unchanged.
	reloaded, err := Open(path).Load()
	require.NoError(t, err)
	before, _, err := parse([]byte(sampleRecord))
	require.NoError(t, err)

	before.UserStories[0].Passes = true
	assert.Equal(t, before, reloaded)

	// Fields mat does not model survive the rewrite.
	assert.Equal(t, "someone", gjson.GetBytes(data, "userStories.1.owner").String())
}

func TestStore_MarkPassedIdempotent(t *testing.T) {
	path := writeRecord(t, sampleRecord)
	s := Open(path)
	_, err := s.Load()
	require.NoError(t, err)

	require.NoError(t, s.MarkPassed("US-001"))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, s.MarkPassed("US-001"))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestStore_MarkPassedErrors(t *testing.T) {
	s := Open(writeRecord(t, sampleRecord))
	require.ErrorIs(t, s.MarkPassed("US-001"), ErrNotLoaded)

	_, err := s.Load()
	require.NoError(t, err)
	require.ErrorIs(t, s.MarkPassed("US-999"), ErrUnknownID)
}

func TestStore_MarkPassedWriteFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(sampleRecord), 0o644))

	s := Open(path)
	_, err := s.Load()
	require.NoError(t, err)

	// Remove the directory so the temp file cannot be created.
	require.NoError(t, os.RemoveAll(dir))

	err = s.MarkPassed("US-001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save record")
	assert.False(t, s.Document().UserStories[0].Passes)
}

func TestStore_Lock(t *testing.T) {
	path := writeRecord(t, sampleRecord)

	a := Open(path)
	require.NoError(t, a.Lock())

	b := Open(path)
	require.ErrorIs(t, b.Lock(), ErrLocked)

	require.NoError(t, a.Unlock())
	require.NoError(t, b.Lock())
	require.NoError(t, b.Unlock())
}

func TestStore_LockFileOutsideProject(t *testing.T) {
	path := writeRecord(t, sampleRecord)
	dir := filepath.Dir(path)

	s := Open(path)
	require.NoError(t, s.Lock())
	defer func() { require.NoError(t, s.Unlock()) }()

	lockPath := LockPath(path)
	assert.FileExists(t, lockPath)
	assert.NotEqual(t, dir, filepath.Dir(lockPath))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DefaultFileName, entries[0].Name())
}

func TestLockPath_DistinctPerRecord(t *testing.T) {
	a := LockPath(filepath.Join(t.TempDir(), DefaultFileName))
	b := LockPath(filepath.Join(t.TempDir(), DefaultFileName))
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(filepath.Base(a), DefaultFileName+"-"))
}

func TestStore_MarkPassedKeepsFileMode(t *testing.T) {
	path := writeRecord(t, sampleRecord)
	require.NoError(t, os.Chmod(path, 0o600))

	s := Open(path)
	_, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.MarkPassed("US-001"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFormat(t *testing.T) {
	out := Format([]byte(`{"a":1,"b":[true]}`))
	assert.True(t, strings.HasSuffix(string(out), "\n"))
	assert.Contains(t, string(out), "\n  \"a\": 1")
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "mat build record", schema["title"])

	assert.Equal(t, []any{"userStories"}, gjsonStrings(data, "required"))
	assert.Equal(t, []any{"id"}, gjsonStrings(data, "properties.userStories.items.required"))
	assert.Equal(t, float64(999), gjson.GetBytes(data, "properties.userStories.items.properties.priority.default").Num)
}

func gjsonStrings(data []byte, path string) []any {
	var out []any
	for _, v := range gjson.GetBytes(data, path).Array() {
		out = append(out, v.String())
	}
	return out
}
