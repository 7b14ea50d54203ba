// Package git commits finished work items to the project repository.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/alexander-akhmetov/mat/internal/debug"
)

// DefaultRemote is the remote pushed to after a commit.
const DefaultRemote = "origin"

// ErrNotRepo is returned by Open when dir is not inside a git repository.
var ErrNotRepo = errors.New("not a git repository")

// Repo is the git repository containing the project.
type Repo struct {
	repo     *git.Repository
	workDir  string
	repoRoot string
}

// Open returns the repository containing workDir, walking up parent
// directories to find it.
func Open(workDir string) (*Repo, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", workDir, err)
	}
	r, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("open %s: %w", abs, ErrNotRepo)
		}
		return nil, fmt.Errorf("open git repo at %s: %w", abs, err)
	}
	wt, err := r.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}
	return &Repo{repo: r, workDir: abs, repoRoot: wt.Filesystem.Root()}, nil
}

// WorkDir returns the directory the repo was opened from.
func (r *Repo) WorkDir() string {
	return r.workDir
}

// Root returns the repository root.
func (r *Repo) Root() string {
	return r.repoRoot
}

// CurrentBranch returns the name of the current branch.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	return head.Name().Short(), nil
}

// HasRemote reports whether a remote with name is configured.
func (r *Repo) HasRemote(name string) bool {
	_, err := r.repo.Remote(name)
	return err == nil
}

// Add stages files. Paths are relative to the working directory or absolute;
// paths outside the repository and files that no longer exist are skipped.
func (r *Repo) Add(files ...string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	for _, file := range files {
		rel, ok := r.repoPath(file)
		if !ok {
			debug.Logf("git: skipping %s (outside repository)", file)
			continue
		}
		if _, err := os.Stat(filepath.Join(r.repoRoot, rel)); err != nil {
			debug.Logf("git: skipping %s: %v", file, err)
			continue
		}
		if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("git add %s: %w", file, err)
		}
	}
	return nil
}

// AddAll stages every change in the worktree, honoring .gitignore.
func (r *Repo) AddAll() error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	for path, s := range status {
		if s.Worktree == git.Unmodified {
			continue
		}
		if _, err := wt.Add(path); err != nil {
			return fmt.Errorf("git add %s: %w", path, err)
		}
	}
	return nil
}

// Commit creates a commit with the given message and returns its hash.
// It returns an empty hash and no error when nothing is staged.
func (r *Repo) Commit(message string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("get worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("get status: %w", err)
	}

	hasStagedChanges := false
	for _, s := range status {
		if s.Staging != git.Unmodified && s.Staging != git.Untracked {
			hasStagedChanges = true
			break
		}
	}
	if !hasStagedChanges {
		return "", nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: r.commitSignature(),
	})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return hash.String(), nil
}

// Push pushes the current branch to remote, setting nothing up if the
// remote is missing. An up-to-date remote is not an error.
func (r *Repo) Push(ctx context.Context, remote string) error {
	branch, err := r.CurrentBranch()
	if err != nil {
		return err
	}
	ref := plumbing.NewBranchReferenceName(branch)
	err = r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref + ":" + ref)},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push %s/%s: %w", remote, branch, err)
	}
	return nil
}

// CommitResult describes what AutoCommitItem did.
type CommitResult struct {
	Hash    string // empty when there was nothing to commit
	Message string
	Pushed  bool
	// PushSkipped is set when pushing was requested but no remote exists.
	PushSkipped bool
	// PushErr is a failed push. The commit itself still succeeded.
	PushErr error
}

// Committed reports whether a commit was created.
func (c CommitResult) Committed() bool {
	return c.Hash != ""
}

// CommitMessage formats the commit message for a finished item.
func CommitMessage(id, title string) string {
	return fmt.Sprintf("feat: %s - %s", id, title)
}

// AutoCommitItem stages files (every change when files is empty), commits
// them as "feat: <id> - <title>" and, when push is set, pushes to origin.
// Having nothing to commit is not an error. Push is best effort: a missing
// remote skips it and a failed push is reported in the result.
func (r *Repo) AutoCommitItem(ctx context.Context, id, title string, files []string, push bool) (CommitResult, error) {
	res := CommitResult{Message: CommitMessage(id, title)}

	var err error
	if len(files) == 0 {
		err = r.AddAll()
	} else {
		err = r.Add(files...)
	}
	if err != nil {
		return res, err
	}

	res.Hash, err = r.Commit(res.Message)
	if err != nil {
		return res, err
	}
	if !res.Committed() {
		debug.Logf("git: nothing to commit for %s", id)
		return res, nil
	}
	debug.Logf("git: committed %s as %s", id, shortHash(res.Hash))

	if !push {
		return res, nil
	}
	if !r.HasRemote(DefaultRemote) {
		res.PushSkipped = true
		return res, nil
	}
	if err := r.Push(ctx, DefaultRemote); err != nil {
		res.PushErr = err
		return res, nil
	}
	res.Pushed = true
	return res, nil
}

// repoPath converts a working-directory-relative or absolute path to one
// relative to the repository root.
func (r *Repo) repoPath(file string) (string, bool) {
	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.workDir, file)
	}
	rel, err := filepath.Rel(r.repoRoot, abs)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	return rel, true
}

// commitSignature reads user.name and user.email from git config
// (including global/system config), falling back to defaults.
func (r *Repo) commitSignature() *object.Signature {
	name := "mat"
	email := "mat@localhost"

	// ConfigScoped merges system + global + local config, unlike Config()
	// which only reads .git/config.
	cfg, err := r.repo.ConfigScoped(config.GlobalScope)
	if err == nil {
		if cfg.User.Name != "" {
			name = cfg.User.Name
		}
		if cfg.User.Email != "" {
			email = cfg.User.Email
		}
	}

	return &object.Signature{
		Name:  name,
		Email: email,
		When:  time.Now(),
	}
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return strings.TrimSpace(h)
}
