package git

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Changed returns files with staged or unstaged changes, relative to the
// working directory and sorted. Gitignored and out-of-tree paths are
// dropped. The loop uses it to find what a backend that edits the tree
// itself touched when it did not report the files.
func (r *Repo) Changed() ([]string, error) {
	files, err := worktreeChanges(r.repo)
	if err != nil {
		return nil, err
	}
	files, err = r.filterIgnored(files)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(files))
	for _, f := range files {
		abs := filepath.Join(r.repoRoot, filepath.FromSlash(f))
		rel, err := filepath.Rel(r.workDir, abs)
		if err != nil || !filepath.IsLocal(rel) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out, nil
}

// worktreeChanges returns files with staged or unstaged changes.
func worktreeChanges(repo *gogit.Repository) ([]string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("get worktree status: %w", err)
	}

	var files []string
	for path, s := range status {
		if s.Staging != gogit.Unmodified || s.Worktree != gogit.Unmodified {
			files = append(files, path)
		}
	}

	return files, nil
}

// filterIgnored removes paths matched by the repository's .gitignore files.
func (r *Repo) filterIgnored(files []string) ([]string, error) {
	if len(files) == 0 {
		return files, nil
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	patterns, err := gitignore.ReadPatterns(wt.Filesystem, nil)
	if err != nil {
		return nil, fmt.Errorf("read gitignore: %w", err)
	}
	m := gitignore.NewMatcher(patterns)

	filtered := make([]string, 0, len(files))
	for _, f := range files {
		if m.Match(strings.Split(f, "/"), false) {
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered, nil
}
