package scip

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/pulse/async"
)

// Handler executes scip_index jobs from their spooled payload files. The
// worker removes the payload file after a successful run; failures keep it
// on disk for inspection.
type Handler struct {
	ingester *Ingester
	logger   *zap.SugaredLogger
}

// NewHandler wires the scip_index job handler.
func NewHandler(ingester *Ingester, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{ingester: ingester, logger: logger}
}

// Kind implements async.Handler
func (h *Handler) Kind() async.JobKind {
	return async.KindScipIndex
}

// Handle implements async.Handler
func (h *Handler) Handle(ctx context.Context, job *async.Job) error {
	if job.PayloadPath == "" {
		return errors.InvalidInputf("scip_index job %d has no payload path", job.ID)
	}
	_, err := h.ingester.IngestFile(ctx, job.UserID, job.RepoURL, job.PayloadPath)
	return err
}
