package testing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CommitSpec describes one commit in a fixture repository.
type CommitSpec struct {
	Message string
	Author  string // email; defaults to fixture@example.com
	When    time.Time
	Files   map[string]string // path -> content, staged before committing
	Remove  []string          // paths removed in this commit
}

// CreateRepo initializes a non-bare repository at dir and applies the
// commits in order. Hashes come back in the same order.
func CreateRepo(t *testing.T, dir string, commits []CommitSpec) (*git.Repository, []plumbing.Hash) {
	t.Helper()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("Failed to init fixture repository: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to open fixture worktree: %v", err)
	}

	var hashes []plumbing.Hash
	for _, spec := range commits {
		for p, content := range spec.Files {
			full := filepath.Join(dir, filepath.FromSlash(p))
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				t.Fatalf("Failed to create fixture directory: %v", err)
			}
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				t.Fatalf("Failed to write fixture file: %v", err)
			}
			if _, err := wt.Add(p); err != nil {
				t.Fatalf("Failed to stage %s: %v", p, err)
			}
		}
		for _, p := range spec.Remove {
			if _, err := wt.Remove(p); err != nil {
				t.Fatalf("Failed to remove %s: %v", p, err)
			}
		}

		author := spec.Author
		if author == "" {
			author = "fixture@example.com"
		}
		when := spec.When
		if when.IsZero() {
			when = time.Now()
		}

		hash, err := wt.Commit(spec.Message, &git.CommitOptions{
			Author: &object.Signature{Name: "fixture", Email: author, When: when},
		})
		if err != nil {
			t.Fatalf("Failed to commit %q: %v", spec.Message, err)
		}
		hashes = append(hashes, hash)
	}
	return repo, hashes
}
