package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// MaxFileSize is the largest file an agent will read.
const MaxFileSize = 1024 * 1024

// ErrOutsideProject is returned for paths that escape the project directory.
var ErrOutsideProject = errors.New("path is outside the project directory")

var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true, ".o": true, ".a": true,
	".pyc": true, ".class": true, ".jar": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true, ".7z": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true, ".webp": true,
	".mp3": true, ".mp4": true, ".wav": true, ".pdf": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
	".woff": true, ".woff2": true, ".ttf": true,
}

var skippedDirs = map[string]bool{
	".git": true, ".mat": true, "node_modules": true, "vendor": true, "__pycache__": true, ".venv": true,
}

// Workspace gives agents file access confined to the project directory.
type Workspace struct {
	root string
	fs   billy.Filesystem
}

// NewWorkspace returns a Workspace rooted at root.
func NewWorkspace(root string) *Workspace {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Workspace{root: root, fs: osfs.New(root, osfs.WithBoundOS())}
}

// Root returns the project directory.
func (w *Workspace) Root() string { return w.root }

// clean converts path to a slash-free, project-relative form, rejecting
// anything that would leave the project.
func (w *Workspace) clean(path string) (string, error) {
	p := filepath.FromSlash(strings.TrimSpace(path))
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrOutsideProject, path)
		}
		p = rel
	}
	p = filepath.Clean(p)
	if !filepath.IsLocal(p) {
		return "", fmt.Errorf("%w: %s", ErrOutsideProject, path)
	}
	return p, nil
}

// Read returns a file's content. Missing, binary and non-regular files yield
// "" with no error; files over MaxFileSize are an error.
func (w *Workspace) Read(path string) (string, error) {
	p, err := w.clean(path)
	if err != nil {
		return "", err
	}
	if binaryExtensions[strings.ToLower(filepath.Ext(p))] {
		return "", nil
	}
	info, err := w.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", nil
	}
	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file too large: %s (%d bytes)", path, info.Size())
	}
	data, err := util.ReadFile(w.fs, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write creates or replaces a file, creating parent directories. It returns
// the project-relative path written.
func (w *Workspace) Write(path, content string) (string, error) {
	p, err := w.clean(path)
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(p); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := util.WriteFile(w.fs, p, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	return filepath.ToSlash(p), nil
}

// List returns up to limit project-relative source file paths in lexical
// order, skipping VCS, dependency and binary files.
func (w *Workspace) List(limit int) ([]string, error) {
	var files []string
	err := util.Walk(w.fs, ".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		name := info.Name()
		if info.IsDir() {
			if path != "." && (skippedDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || binaryExtensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		files = append(files, filepath.ToSlash(filepath.Clean(path)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list project files: %w", err)
	}
	sort.Strings(files)
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}
