package history

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/OPTIX/auth"
	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/pulse/async"
	"github.com/teranos/OPTIX/repocache"
	"github.com/teranos/OPTIX/sym"
)

// DefaultWindowDays bounds a git_mine run when the payload does not.
const DefaultWindowDays = 90

// MinePayload configures one git_mine run.
type MinePayload struct {
	Days int `json:"days"`
}

// Handler executes git_mine jobs: full-depth cache open, mine the
// window, persist summaries and weekly churn.
type Handler struct {
	store  *Store
	cache  *repocache.Cache
	tokens auth.TokenSource
	miner  *Miner
	logger *zap.SugaredLogger
}

// NewHandler wires the git_mine job handler.
func NewHandler(store *Store, cache *repocache.Cache, tokens auth.TokenSource, miner *Miner, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{store: store, cache: cache, tokens: tokens, miner: miner, logger: logger}
}

// Kind implements async.Handler
func (h *Handler) Kind() async.JobKind {
	return async.KindGitMine
}

// Handle implements async.Handler
func (h *Handler) Handle(ctx context.Context, job *async.Job) error {
	days := DefaultWindowDays
	if len(job.Payload) > 0 {
		var p MinePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return errors.InvalidInputf("malformed git_mine payload: %v", err)
		}
		if p.Days < 0 {
			return errors.InvalidInputf("mining window must be positive, got %d days", p.Days)
		}
		if p.Days > 0 {
			days = p.Days
		}
	}

	var cred *repocache.Credential
	if h.tokens != nil {
		if token := h.tokens.GitToken(job.UserID); token != "" {
			cred = &repocache.Credential{Token: token}
		}
	}

	handle, err := h.cache.Open(ctx, job.RepoURL, cred, repocache.DepthFull)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := h.miner.Mine(ctx, handle, now.AddDate(0, 0, -days), now)
	if err != nil {
		return err
	}

	stats, err := h.store.SaveMineResult(ctx, job.UserID, job.RepoURL, result)
	if err != nil {
		return err
	}

	h.logger.Infow(sym.Hist+" Mining run recorded",
		"user_id", job.UserID,
		"repo", job.RepoURL,
		"window_days", days,
		"new_commits", stats.NewCommits,
		"known_commits", stats.KnownCommits,
		"buckets", stats.BucketsTouched,
	)
	return nil
}
