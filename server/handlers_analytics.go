package server

import (
	"encoding/json"
	"net/http"

	"github.com/teranos/OPTIX/logger"
	"github.com/teranos/OPTIX/pulse/async"
)

// HandleAnalyticsMine handles requests to /api/analytics/mine
// POST: enqueue a git_mine job; optional days bounds the mining window
func (s *OPTIXServer) HandleAnalyticsMine(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	identity, ok := s.identify(w, r)
	if !ok {
		return
	}

	var req struct {
		RepoURL string `json:"repoUrl"`
		Days    int    `json:"days"`
	}
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.Days < 0 {
		writeError(w, http.StatusBadRequest, "days must be positive")
		return
	}

	job, err := async.NewJob(identity.UserID, req.RepoURL, async.KindGitMine)
	if err != nil {
		handleError(w, s.logger, err, "failed to create mining job")
		return
	}

	if req.Days > 0 {
		payload, err := json.Marshal(map[string]int{"days": req.Days})
		if err != nil {
			handleError(w, s.logger, err, "failed to encode mining payload")
			return
		}
		job = job.WithPayload(payload)
	}

	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		handleError(w, s.logger, err, "failed to enqueue mining job")
		return
	}

	s.touchRepo(r.Context(), identity.UserID, req.RepoURL)

	logger.AddHistSymbol(s.logger).Infow("Mining job enqueued",
		"job_id", job.ID,
		"user_id", identity.UserID,
		"repo_url", req.RepoURL,
		"days", req.Days,
	)

	writeJSON(w, http.StatusAccepted, enqueueResponse{JobID: job.ID, Status: string(job.Status)})
}

// HandleAnalyticsHotspots handles requests to /api/analytics/hotspots
// GET: files whose churn rate exceeded the threshold inside the window
func (s *OPTIXServer) HandleAnalyticsHotspots(w http.ResponseWriter, r *http.Request) {
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

	weeks := parseIntQueryParam(r, "weeks", s.cfg.Hotspots.WindowWeeks, 1, 520)
	threshold := parseFloatQueryParam(r, "threshold", s.cfg.Hotspots.Threshold)

	hotspots, err := s.histStore.Hotspots(r.Context(), identity.UserID, repoURL, weeks, threshold)
	if err != nil {
		handleError(w, s.logger, err, "failed to compute hotspots")
		return
	}

	writeJSON(w, http.StatusOK, hotspots)
}

// HandleAnalyticsTrend handles requests to /api/analytics/file-trend
// GET: weekly churn rows for one file inside the window
func (s *OPTIXServer) HandleAnalyticsTrend(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	identity, ok := s.identify(w, r)
	if !ok {
		return
	}

	repoURL := r.URL.Query().Get("repoUrl")
	filePath := r.URL.Query().Get("filePath")
	if repoURL == "" || filePath == "" {
		writeError(w, http.StatusBadRequest, "repoUrl and filePath query parameters are required")
		return
	}

	weeks := parseIntQueryParam(r, "weeks", s.cfg.Hotspots.WindowWeeks, 1, 520)

	trend, err := s.histStore.FileTrend(r.Context(), identity.UserID, repoURL, filePath, weeks)
	if err != nil {
		handleError(w, s.logger, err, "failed to load file trend")
		return
	}

	writeJSON(w, http.StatusOK, trend)
}

// HandleAnalyticsBlame handles requests to /api/analytics/blame
// GET: line attribution for a file at the cached head revision
func (s *OPTIXServer) HandleAnalyticsBlame(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	identity, ok := s.identify(w, r)
	if !ok {
		return
	}

	repoURL := r.URL.Query().Get("repoUrl")
	filePath := r.URL.Query().Get("filePath")
	if repoURL == "" || filePath == "" {
		writeError(w, http.StatusBadRequest, "repoUrl and filePath query parameters are required")
		return
	}

	lines, err := s.blamer.Blame(r.Context(), identity.UserID, repoURL, filePath)
	if err != nil {
		handleError(w, s.logger, err, "failed to blame file")
		return
	}

	writeJSON(w, http.StatusOK, lines)
}
