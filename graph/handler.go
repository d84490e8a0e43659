package graph

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/OPTIX/auth"
	"github.com/teranos/OPTIX/pulse/async"
	"github.com/teranos/OPTIX/repocache"
	"github.com/teranos/OPTIX/sym"
)

// Handler executes graph_build jobs: shallow-open the repository
// through the cache, scan its HEAD tree, and atomically replace the
// stored edge set.
type Handler struct {
	store   *Store
	cache   *repocache.Cache
	tokens  auth.TokenSource
	scanner *Scanner
	logger  *zap.SugaredLogger
}

// NewHandler wires the graph_build job handler.
func NewHandler(store *Store, cache *repocache.Cache, tokens auth.TokenSource, scanner *Scanner, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{store: store, cache: cache, tokens: tokens, scanner: scanner, logger: logger}
}

// Kind implements async.Handler
func (h *Handler) Kind() async.JobKind {
	return async.KindGraphBuild
}

// Handle implements async.Handler
func (h *Handler) Handle(ctx context.Context, job *async.Job) error {
	var cred *repocache.Credential
	if h.tokens != nil {
		if token := h.tokens.GitToken(job.UserID); token != "" {
			cred = &repocache.Credential{Token: token}
		}
	}

	handle, err := h.cache.Open(ctx, job.RepoURL, cred, repocache.DepthShallow)
	if err != nil {
		return err
	}

	edges, err := h.scanner.Scan(ctx, handle)
	if err != nil {
		return err
	}

	if err := h.store.ReplaceAll(ctx, job.UserID, job.RepoURL, edges); err != nil {
		return err
	}

	h.logger.Infow(sym.Graph+" Dependency graph rebuilt",
		"user_id", job.UserID,
		"repo", job.RepoURL,
		"edges", len(edges),
	)
	return nil
}
