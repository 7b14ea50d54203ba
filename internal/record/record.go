// Package record reads and rewrites the build record (prd.json): the durable
// document listing every work item and whether it passes. The build loop
// treats it as the checkpoint of record and rewrites it after every item that
// completes.
package record

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/alexander-akhmetov/mat/internal/debug"
	"github.com/alexander-akhmetov/mat/internal/dirs"
	"github.com/alexander-akhmetov/mat/internal/domain"
)

// DefaultFileName is the record file name looked up in the project root.
const DefaultFileName = "prd.json"

// storiesKey is the top-level array holding the item entries.
const storiesKey = "userStories"

var (
	// ErrLocked is returned by Lock when another process holds the record.
	ErrLocked = errors.New("record is locked by another process")
	// ErrUnknownID is returned when an id is not present in the record.
	ErrUnknownID = errors.New("unknown item id")
	// ErrNotLoaded is returned when the store is used before Load.
	ErrNotLoaded = errors.New("record not loaded")
)

// Document is the typed view of the record.
type Document struct {
	Project     string  `json:"project" jsonschema:"description=Project name"`
	BranchName  string  `json:"branchName,omitempty" jsonschema:"description=Branch or label the build runs on"`
	Description string  `json:"description,omitempty"`
	UserStories []Entry `json:"userStories" jsonschema:"required,description=Work items in authoring order"`
}

// Entry is one work item as stored in the record.
type Entry struct {
	ID                 string   `json:"id" jsonschema:"required,minLength=1"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	Priority           int      `json:"priority,omitempty" jsonschema:"default=999,description=Lower values are built first"`
	Passes             bool     `json:"passes" jsonschema:"default=false"`
	Notes              string   `json:"notes,omitempty"`
}

// PassedCount returns the number of entries with passes=true.
func (d *Document) PassedCount() int {
	n := 0
	for _, e := range d.UserStories {
		if e.Passes {
			n++
		}
	}
	return n
}

// LoadError reports a missing or malformed record. It is fatal for a run.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if e.Path == "" {
		return "load record: " + msg
	}
	return fmt.Sprintf("load record %s: %s", e.Path, msg)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Store owns one record file on disk.
type Store struct {
	path  string
	raw   []byte
	doc   *Document
	index map[string]int // item id -> position in userStories
	lock  *flock.Flock
}

// Open returns a Store for path. Nothing is read until Load.
func Open(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(LockPath(path)),
	}
}

// LockPath returns the lock file guarding the record at path. It lives in
// the state directory, keyed by the record's absolute path, so it never
// shows up in the project's working tree.
func LockPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	name := fmt.Sprintf("%s-%s.lock", filepath.Base(abs), hex.EncodeToString(sum[:8]))
	return filepath.Join(dirs.LocksDir(), name)
}

// Path returns the record file path.
func (s *Store) Path() string {
	return s.path
}

// Lock takes an exclusive advisory lock on the record for the duration of a
// run. It does not block: a held lock returns ErrLocked.
func (s *Store) Lock() error {
	if err := os.MkdirAll(filepath.Dir(s.lock.Path()), 0o750); err != nil {
		return fmt.Errorf("lock record %s: %w", s.path, err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock record %s: %w", s.path, err)
	}
	if !ok {
		return fmt.Errorf("lock record %s: %w", s.path, ErrLocked)
	}
	return nil
}

// Unlock releases the lock taken by Lock.
func (s *Store) Unlock() error {
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock record %s: %w", s.path, err)
	}
	return nil
}

// Load reads and validates the record. Errors are always *LoadError.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path) //nolint:gosec // user's record file
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Path: s.path, Reason: "file not found"}
		}
		return nil, &LoadError{Path: s.path, Reason: "read failed", Err: err}
	}

	doc, index, err := parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = s.path
		}
		return nil, err
	}

	s.raw = data
	s.doc = doc
	s.index = index
	debug.Logf("record: loaded %s (%d items)", s.path, len(doc.UserStories))
	return doc, nil
}

// Document returns the last loaded document, or nil before Load.
func (s *Store) Document() *Document {
	return s.doc
}

// MarkPassed flips passes=true for id and rewrites the record immediately.
// Only that one value changes; every other field, including ones mat does not
// know about, is preserved.
func (s *Store) MarkPassed(id string) error {
	if s.doc == nil {
		return fmt.Errorf("mark %s passed: %w", id, ErrNotLoaded)
	}
	idx, ok := s.index[id]
	if !ok {
		return fmt.Errorf("mark %s passed: %w", id, ErrUnknownID)
	}

	updated, err := sjson.SetBytes(s.raw, fmt.Sprintf("%s.%d.passes", storiesKey, idx), true)
	if err != nil {
		return fmt.Errorf("mark %s passed: %w", id, err)
	}

	out := Format(updated)
	if err := writeAtomic(s.path, out); err != nil {
		return fmt.Errorf("save record: %w", err)
	}

	s.raw = out
	s.doc.UserStories[idx].Passes = true
	debug.Logf("record: marked %s passed in %s", id, s.path)
	return nil
}

// Format pretty-prints a JSON document with two-space indentation and a
// trailing newline.
func Format(data []byte) []byte {
	out := pretty.PrettyOptions(data, &pretty.Options{Indent: "  ", Width: 80})
	if !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	return out
}

func parse(data []byte) (*Document, map[string]int, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, &LoadError{Reason: "invalid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, nil, &LoadError{Reason: "record must be a JSON object"}
	}

	stories := root.Get(storiesKey)
	if !stories.Exists() {
		return nil, nil, &LoadError{Reason: fmt.Sprintf("missing '%s' field", storiesKey)}
	}
	if !stories.IsArray() {
		return nil, nil, &LoadError{Reason: fmt.Sprintf("'%s' must be a list", storiesKey)}
	}

	doc := &Document{
		Project:     root.Get("project").String(),
		BranchName:  root.Get("branchName").String(),
		Description: root.Get("description").String(),
	}
	index := make(map[string]int)

	for i, s := range stories.Array() {
		if !s.IsObject() {
			return nil, nil, &LoadError{Reason: fmt.Sprintf("%s[%d] must be an object", storiesKey, i)}
		}
		id := s.Get("id")
		if id.Type != gjson.String || strings.TrimSpace(id.Str) == "" {
			return nil, nil, &LoadError{Reason: fmt.Sprintf("%s[%d] missing 'id'", storiesKey, i)}
		}
		if _, dup := index[id.Str]; dup {
			return nil, nil, &LoadError{Reason: fmt.Sprintf("duplicate id %q", id.Str)}
		}
		index[id.Str] = i

		var criteria []string
		for _, c := range s.Get("acceptanceCriteria").Array() {
			criteria = append(criteria, c.String())
		}

		doc.UserStories = append(doc.UserStories, Entry{
			ID:                 id.Str,
			Title:              s.Get("title").String(),
			Description:        s.Get("description").String(),
			AcceptanceCriteria: criteria,
			Priority:           ParsePriority(s.Get("priority")),
			Passes:             s.Get("passes").Bool(),
			Notes:              s.Get("notes").String(),
		})
	}

	return doc, index, nil
}

// maxPriority bounds accepted priorities; larger values are treated as
// invalid rather than converted with an implementation-defined result.
const maxPriority = math.MaxInt32

// ParsePriority reads a priority value. Non-negative integers, floats
// (truncated) and all-digit strings up to maxPriority are accepted; anything
// else, including negative numbers, yields domain.DefaultPriority.
func ParsePriority(v gjson.Result) int {
	switch v.Type {
	case gjson.Number:
		f := math.Trunc(v.Num)
		if math.IsNaN(f) || f < 0 || f > maxPriority {
			return domain.DefaultPriority
		}
		return int(f)
	case gjson.String:
		if isDigits(v.Str) {
			if n, err := strconv.Atoi(v.Str); err == nil && n <= maxPriority {
				return n
			}
		}
	}
	return domain.DefaultPriority
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// writeAtomic writes content to a temp file next to path and renames it over
// path, so readers never observe a partially written record. The existing
// file's mode is kept; a new file gets 0644.
func writeAtomic(path string, content []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mat-record-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// Schema returns the JSON Schema describing the record format.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	s := r.Reflect(&Document{})
	s.Title = "mat build record"
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}
