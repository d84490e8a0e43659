package server

import (
	"net/http"
	"strings"
)

// setupHTTPRoutes configures all HTTP handlers on the server's mux
func (s *OPTIXServer) setupHTTPRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/graph/build", s.corsMiddleware(s.HandleGraphBuild))               // Enqueue graph_build (POST)
	mux.HandleFunc("/api/graph/dependencies", s.corsMiddleware(s.HandleGraphDependencies)) // Dependency graph DTO (GET)
	mux.HandleFunc("/api/graph/references", s.corsMiddleware(s.HandleGraphReferences))     // Symbol references (GET)
	mux.HandleFunc("/api/scip/upload", s.corsMiddleware(s.HandleScipUpload))               // Multipart index upload (POST)
	mux.HandleFunc("/api/scip/hover", s.corsMiddleware(s.HandleScipHover))                 // Hover lookup (GET)
	mux.HandleFunc("/api/analytics/mine", s.corsMiddleware(s.HandleAnalyticsMine))         // Enqueue git_mine (POST)
	mux.HandleFunc("/api/analytics/hotspots", s.corsMiddleware(s.HandleAnalyticsHotspots)) // Churn hotspots (GET)
	mux.HandleFunc("/api/analytics/file-trend", s.corsMiddleware(s.HandleAnalyticsTrend))  // Weekly churn for one file (GET)
	mux.HandleFunc("/api/analytics/blame", s.corsMiddleware(s.HandleAnalyticsBlame))       // Line attribution (GET)
	mux.HandleFunc("/api/jobs/", s.corsMiddleware(s.HandleJob))                            // Individual job (GET)
	mux.HandleFunc("/api/jobs", s.corsMiddleware(s.HandleJobs))                            // List jobs (GET)
	mux.HandleFunc("/api/repos/", s.corsMiddleware(s.HandleRepo))                          // Remove one history entry (DELETE)
	mux.HandleFunc("/api/repos", s.corsMiddleware(s.HandleRepos))                          // List/clear history (GET/DELETE)
	mux.HandleFunc("/api/pulse/status", s.corsMiddleware(s.HandlePulseStatus))             // Worker pool metrics (GET)
	mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket)) // Job event stream

	return mux
}

// corsMiddleware adds CORS headers to HTTP responses using configured
// allowed origins. The same origin check gates WebSocket upgrades.
func (s *OPTIXServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// If origin is present and allowed by config, set CORS headers
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-Git-Token")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// checkOrigin validates a request origin against configured allowed
// origins. Requests with no Origin header (CLI clients, tests) pass.
// Prefix matching allows any port number.
func (s *OPTIXServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range s.cfg.ServerAllowedOrigins() {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}
