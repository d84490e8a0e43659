package server

import (
	"net/http"

	"github.com/teranos/OPTIX/graph"
	"github.com/teranos/OPTIX/logger"
	"github.com/teranos/OPTIX/pulse/async"
)

// HandleGraphBuild handles requests to /api/graph/build
// POST: enqueue a graph_build job for a repository
func (s *OPTIXServer) HandleGraphBuild(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	identity, ok := s.identify(w, r)
	if !ok {
		return
	}

	var req struct {
		RepoURL string `json:"repoUrl"`
	}
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	job, err := async.NewJob(identity.UserID, req.RepoURL, async.KindGraphBuild)
	if err != nil {
		handleError(w, s.logger, err, "failed to create graph build job")
		return
	}

	// One build per repository per user at a time; a second request while
	// the first is pending or processing would do the same work twice
	active, err := s.queue.HasActive(r.Context(), identity.UserID, req.RepoURL, async.KindGraphBuild)
	if err != nil {
		handleError(w, s.logger, err, "failed to check for active builds")
		return
	}
	if active {
		writeError(w, http.StatusConflict, "a build for this repository is already queued or running")
		return
	}

	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		handleError(w, s.logger, err, "failed to enqueue graph build")
		return
	}

	s.touchRepo(r.Context(), identity.UserID, req.RepoURL)

	logger.AddGraphSymbol(s.logger).Infow("Graph build enqueued",
		"job_id", job.ID,
		"user_id", identity.UserID,
		"repo_url", req.RepoURL,
	)

	writeJSON(w, http.StatusAccepted, enqueueResponse{JobID: job.ID, Status: string(job.Status)})
}

// HandleGraphDependencies handles requests to /api/graph/dependencies
// GET: assemble the dependency graph DTO from stored edges
func (s *OPTIXServer) HandleGraphDependencies(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	identity, ok := s.identify(w, r)
	if !ok {
		return
	}

	repoURL := r.URL.Query().Get("repoUrl")
	if repoURL == "" {
		writeError(w, http.StatusBadRequest, "repoUrl query parameter is required")
		return
	}
	rootFile := r.URL.Query().Get("rootFile")
	depth := parseIntQueryParam(r, "depth", graph.DefaultTraversalDepth, 1, 100)

	g, err := s.graphBuilder.Build(r.Context(), identity.UserID, repoURL, rootFile, depth)
	if err != nil {
		handleError(w, s.logger, err, "failed to build dependency graph")
		return
	}

	writeJSON(w, http.StatusOK, g)
}

// HandleGraphReferences handles requests to /api/graph/references
// GET: list occurrences of a symbol across the repository's index
func (s *OPTIXServer) HandleGraphReferences(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	identity, ok := s.identify(w, r)
	if !ok {
		return
	}

	repoURL := r.URL.Query().Get("repoUrl")
	symbol := r.URL.Query().Get("symbol")
	if repoURL == "" || symbol == "" {
		writeError(w, http.StatusBadRequest, "repoUrl and symbol query parameters are required")
		return
	}

	refs, err := s.scipStore.References(r.Context(), identity.UserID, repoURL, symbol)
	if err != nil {
		handleError(w, s.logger, err, "failed to list symbol references")
		return
	}

	writeJSON(w, http.StatusOK, refs)
}
