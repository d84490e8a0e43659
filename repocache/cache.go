// Package repocache maintains bare local clones of remote repositories,
// addressed by a fingerprint of the clone URL. The cache directory is
// strictly a cache: every row of derived data lives in the relational
// store, so the directory can be deleted at any time without data loss.
package repocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/sym"
)

// Depth selects how much history a cache entry needs.
type Depth int

const (
	// DepthShallow is a depth-1 clone, enough for a tree walk at HEAD
	DepthShallow Depth = iota
	// DepthFull is complete history, required for mining and blame
	DepthFull
)

// unshallowDepth is git's magic infinite depth; fetching with it converts
// a shallow clone into a full one.
const unshallowDepth = 2147483647

// DefaultFetchInterval floors how often an existing entry is refreshed
// from its remote. Opens inside the window reuse the cached objects.
const DefaultFetchInterval = 60 * time.Second

// Credential carries a per-operation access token. It is passed through
// to the transport and never written to disk.
type Credential struct {
	Token string
}

// auth converts the credential to the token-over-basic-auth form that
// GitHub, GitLab, and Gitea all accept.
func (c *Credential) auth() transport.AuthMethod {
	if c == nil || c.Token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "oauth2", Password: c.Token}
}

// Fingerprint derives the cache directory name for a clone URL.
func Fingerprint(repoURL string) string {
	sum := sha256.Sum256([]byte(repoURL))
	return hex.EncodeToString(sum[:])[:16]
}

// Handle is an open cache entry.
type Handle struct {
	Repo *git.Repository
	Dir  string
	URL  string
}

// Head resolves the entry's HEAD commit.
func (h *Handle) Head() (*object.Commit, error) {
	ref, err := h.Repo.Head()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve HEAD")
	}
	commit, err := h.Repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load HEAD commit %s", ref.Hash())
	}
	return commit, nil
}

// entry serializes access to one cache directory and meters its fetches.
type entry struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// Cache manages bare clones under a base directory.
type Cache struct {
	baseDir       string
	fetchInterval time.Duration
	logger        *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewCache creates a cache rooted at baseDir. A fetchInterval of zero
// applies DefaultFetchInterval.
func NewCache(baseDir string, fetchInterval time.Duration, logger *zap.SugaredLogger) *Cache {
	if fetchInterval <= 0 {
		fetchInterval = DefaultFetchInterval
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Cache{
		baseDir:       baseDir,
		fetchInterval: fetchInterval,
		logger:        logger,
		entries:       make(map[string]*entry),
	}
}

// entryFor returns the lock-and-limiter record for a fingerprint,
// creating it on first use.
func (c *Cache) entryFor(fingerprint string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Every(c.fetchInterval), 1)}
		c.entries[fingerprint] = e
	}
	return e
}

// Exists reports whether a non-empty cache entry is present for the URL.
// Blame uses this to distinguish "never mined" from "file unknown".
func (c *Cache) Exists(repoURL string) bool {
	return dirNonEmpty(filepath.Join(c.baseDir, Fingerprint(repoURL)))
}

// Open returns a handle over the bare clone for repoURL, cloning or
// refreshing as needed. Concurrent opens of the same URL serialize on a
// per-entry lock; opens of different URLs proceed independently.
//
// An existing entry is refreshed with a best-effort fetch, throttled to
// one per fetch interval. A shallow entry opened with DepthFull is
// upgraded in place with an unshallow fetch, which must succeed.
func (c *Cache) Open(ctx context.Context, repoURL string, cred *Credential, depth Depth) (*Handle, error) {
	fingerprint := Fingerprint(repoURL)
	dir := filepath.Join(c.baseDir, fingerprint)

	e := c.entryFor(fingerprint)
	e.mu.Lock()
	defer e.mu.Unlock()

	if dirNonEmpty(dir) {
		repo, err := git.PlainOpen(dir)
		if err == nil {
			if err := c.refresh(ctx, repo, repoURL, cred, depth, e); err != nil {
				return nil, err
			}
			return &Handle{Repo: repo, Dir: dir, URL: repoURL}, nil
		}

		// The entry is corrupt. It is only a cache, so drop it and
		// clone fresh.
		c.logger.Warnw("Cache entry unreadable, recloning",
			"symbol", sym.Repo,
			"fingerprint", fingerprint,
			"error", err,
		)
		if err := os.RemoveAll(dir); err != nil {
			return nil, errors.Wrapf(err, "failed to remove corrupt cache entry %s", fingerprint)
		}
	}

	return c.clone(ctx, repoURL, dir, cred, depth)
}

// clone performs the initial bare clone for a cache entry.
func (c *Cache) clone(ctx context.Context, repoURL, dir string, cred *Credential, depth Depth) (*Handle, error) {
	opts := &git.CloneOptions{
		URL:  repoURL,
		Auth: cred.auth(),
	}
	if depth == DepthShallow {
		opts.Depth = 1
		opts.SingleBranch = true
	}

	start := time.Now()
	repo, err := git.PlainCloneContext(ctx, dir, true, opts)
	if err != nil {
		// Never leave a partial clone behind; the next open would
		// mistake it for a usable entry.
		os.RemoveAll(dir)
		return nil, errors.Wrapf(errors.ErrRepoUnavailable, "clone %s: %v", repoURL, err)
	}

	c.logger.Infow("Cloned repository",
		"symbol", sym.Repo,
		"fingerprint", Fingerprint(repoURL),
		"shallow", depth == DepthShallow,
		"duration", time.Since(start),
	)

	return &Handle{Repo: repo, Dir: dir, URL: repoURL}, nil
}

// refresh brings an existing entry up to date. The unshallow upgrade is
// mandatory when full history is requested; the ordinary fetch is
// best-effort and rate-limited.
func (c *Cache) refresh(ctx context.Context, repo *git.Repository, repoURL string, cred *Credential, depth Depth, e *entry) error {
	if depth == DepthFull {
		shallows, err := repo.Storer.Shallow()
		if err != nil {
			return errors.Wrap(err, "failed to read shallow state")
		}
		if len(shallows) > 0 {
			err := repo.FetchContext(ctx, &git.FetchOptions{
				Auth:  cred.auth(),
				Depth: unshallowDepth,
			})
			if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
				return errors.Wrapf(errors.ErrRepoUnavailable, "unshallow %s: %v", repoURL, err)
			}
			c.logger.Infow("Upgraded shallow clone to full history",
				"symbol", sym.Repo,
				"fingerprint", Fingerprint(repoURL),
			)
			return nil
		}
	}

	if !e.limiter.Allow() {
		// Fetched recently enough; the cached objects are fine
		return nil
	}

	err := repo.FetchContext(ctx, &git.FetchOptions{Auth: cred.auth()})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		c.logger.Debugw("Best-effort fetch failed, using cached objects",
			"symbol", sym.Repo,
			"fingerprint", Fingerprint(repoURL),
			"error", err,
		)
	}
	return nil
}

func dirNonEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
