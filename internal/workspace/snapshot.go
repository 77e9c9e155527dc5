package workspace

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotARepository indicates the workspace root is not under version control.
var ErrNotARepository = errors.New("workspace is not a git repository")

// Snapshotter captures an opaque snapshot reference for the current
// workspace state. The reference is stored on checkpoints so a rollback
// can name the exact workspace state it corresponds to.
type Snapshotter interface {
	Snapshot(message string) (string, error)
}

// GitSnapshotter snapshots by committing the worktree; the returned
// reference is the commit hash. A clean worktree returns the current HEAD
// without creating an empty commit.
type GitSnapshotter struct {
	repo *git.Repository
}

// NewGitSnapshotter opens the repository at the workspace root.
func NewGitSnapshotter(root string) (*GitSnapshotter, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotARepository
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return &GitSnapshotter{repo: repo}, nil
}

// Snapshot stages everything and commits. Returns the commit hash.
func (s *GitSnapshotter) Snapshot(message string) (string, error) {
	wt, err := s.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("status: %w", err)
	}
	if status.IsClean() {
		head, err := s.repo.Head()
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				// Empty repository with nothing to snapshot.
				return "", nil
			}
			return "", fmt.Errorf("head: %w", err)
		}
		return head.Hash().String(), nil
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("stage: %w", err)
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "codecli",
			Email: "codecli@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return hash.String(), nil
}

// NoopSnapshotter is used when the workspace is not a repository;
// checkpoints still work, they just carry no snapshot reference.
type NoopSnapshotter struct{}

func (NoopSnapshotter) Snapshot(string) (string, error) { return "", nil }
