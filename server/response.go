package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/OPTIX/auth"
	"github.com/teranos/OPTIX/errors"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// readJSON reads and decodes a JSON request body
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return err
	}
	return nil
}

// requireMethod checks if the request method matches the expected method
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// extractPathParts extracts path components after a given prefix
// e.g., extractPathParts("/api/jobs/123", "/api/jobs/") returns ["123"]
func extractPathParts(urlPath, prefix string) []string {
	path := strings.TrimPrefix(urlPath, prefix)
	if path == "" {
		return []string{}
	}
	return strings.Split(path, "/")
}

// parseIntQueryParam reads an integer query parameter clamped to
// [min, max], falling back to def when absent or unparseable
func parseIntQueryParam(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// parseFloatQueryParam reads a float query parameter, falling back to
// def when absent or unparseable
func parseFloatQueryParam(r *http.Request, name string, def float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

// handleError translates domain errors into HTTP status codes.
// Ownership failures surface as 404 so foreign resources are
// indistinguishable from absent ones.
func handleError(w http.ResponseWriter, logger *zap.SugaredLogger, err error, msg string) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.IsNotFound(err) || errors.IsNotAuthorized(err):
		writeError(w, http.StatusNotFound, errors.FirstLine(err))
	case errors.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, errors.FirstLine(err))
	case errors.IsRepoNotCached(err):
		// Actionable precondition: the caller must mine the repository first
		writeError(w, http.StatusConflict, errors.FirstLine(err))
	default:
		logger.Errorw(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// identify resolves the caller identity or writes the failure response
func (s *OPTIXServer) identify(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	ident, err := s.resolver.Resolve(r)
	if err != nil {
		handleError(w, s.logger, err, "identity resolution failed")
		return nil, false
	}
	return ident, true
}
