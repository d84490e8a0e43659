package server

import (
	"net/http"
	"strconv"

	"github.com/teranos/OPTIX/repohist"
)

// HandleRepos handles requests to /api/repos
// GET: the caller's recently used repositories, most recent first
// DELETE: clear the caller's entire history
func (s *OPTIXServer) HandleRepos(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.identify(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		limit := parseIntQueryParam(r, "limit", repohist.MaxEntries, 1, repohist.MaxEntries)

		entries, err := s.repoStore.List(r.Context(), identity.UserID, limit)
		if err != nil {
			handleError(w, s.logger, err, "failed to list repository history")
			return
		}

		writeJSON(w, http.StatusOK, entries)

	case http.MethodDelete:
		if err := s.repoStore.Clear(r.Context(), identity.UserID); err != nil {
			handleError(w, s.logger, err, "failed to clear repository history")
			return
		}

		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleRepo handles requests to /api/repos/{id}
// DELETE: remove one entry; a foreign entry reads as absent
func (s *OPTIXServer) HandleRepo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}

	identity, ok := s.identify(w, r)
	if !ok {
		return
	}

	pathParts := extractPathParts(r.URL.Path, "/api/repos/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing repository ID")
		return
	}

	entryID, err := strconv.ParseInt(pathParts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid repository ID")
		return
	}

	if err := s.repoStore.Remove(r.Context(), identity.UserID, entryID); err != nil {
		handleError(w, s.logger, err, "failed to remove repository history entry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
