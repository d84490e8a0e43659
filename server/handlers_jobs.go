package server

import (
	"net/http"
	"strconv"

	"github.com/teranos/OPTIX/logger"
	"github.com/teranos/OPTIX/pulse/async"
	"github.com/teranos/OPTIX/version"
)

// HandleJobs handles requests to /api/jobs
// GET: list the caller's jobs, optionally filtered by status
func (s *OPTIXServer) HandleJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	identity, ok := s.identify(w, r)
	if !ok {
		return
	}

	var status *async.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		if !async.IsValidStatus(raw) {
			writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(raw))
			return
		}
		st := async.JobStatus(raw)
		status = &st
	}

	limit := parseIntQueryParam(r, "limit", defaultJobLimit, 1, maxJobLimit)

	jobs, err := s.queue.ListJobs(r.Context(), identity.UserID, status, limit)
	if err != nil {
		handleError(w, s.logger, err, "failed to list jobs")
		return
	}

	response := map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	}

	writeJSON(w, http.StatusOK, response)
}

// HandleJob handles requests to /api/jobs/{id}
// GET: job details; a job owned by someone else reads as absent
func (s *OPTIXServer) HandleJob(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	identity, ok := s.identify(w, r)
	if !ok {
		return
	}

	pathParts := extractPathParts(r.URL.Path, "/api/jobs/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID")
		return
	}

	jobID, err := strconv.ParseInt(pathParts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := s.queue.GetJob(r.Context(), identity.UserID, jobID)
	if err != nil {
		handleError(w, s.logger, err, "failed to get job")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// HandlePulseStatus handles requests to /api/pulse/status
// GET: worker pool and queue metrics
func (s *OPTIXServer) HandlePulseStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	if _, ok := s.identify(w, r); !ok {
		return
	}

	logger.AddPulseSymbol(s.logger).Debugw("Pulse status requested", "remote", r.RemoteAddr)

	metrics := s.pool.GetSystemMetrics(r.Context())
	writeJSON(w, http.StatusOK, metrics)
}

// HandleHealth serves health check endpoint with version info
func (s *OPTIXServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()
	s.mu.RLock()
	clientCount := len(s.clients)
	s.mu.RUnlock()

	health := map[string]interface{}{
		"status":     "ok",
		"version":    versionInfo.Version,
		"commit":     versionInfo.CommitHash,
		"build_time": versionInfo.BuildTime,
		"clients":    clientCount,
		"state":      stateString(s.getState()),
	}

	writeJSON(w, http.StatusOK, health)
}
