package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/teranos/OPTIX/logger"
	"github.com/teranos/OPTIX/pulse/async"
)

// HandleScipUpload handles requests to /api/scip/upload
// POST: accept a multipart index file, spool it, enqueue a scip_index job.
//
// The upload is spooled to disk before the job is created so the request
// body is fully consumed and validated before anything is queued. The
// worker owns the spooled file from enqueue onward: it removes the file
// after a successful run and keeps it for inspection on failure.
func (s *OPTIXServer) HandleScipUpload(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	identity, ok := s.identify(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "upload too large or malformed")
		return
	}

	repoURL := r.FormValue("repoUrl")
	if repoURL == "" {
		writeError(w, http.StatusBadRequest, "repoUrl form field is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file form field is required")
		return
	}
	defer file.Close()

	job, err := async.NewJob(identity.UserID, repoURL, async.KindScipIndex)
	if err != nil {
		handleError(w, s.logger, err, "failed to create index job")
		return
	}

	spoolPath := filepath.Join(s.spoolDir, "scip-"+uuid.NewString()+".bin")
	dst, err := os.Create(spoolPath)
	if err != nil {
		s.logger.Errorw("Failed to create spool file", "path", spoolPath, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	written, err := io.Copy(dst, file)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(spoolPath)
		s.logger.Errorw("Failed to spool upload", "path", spoolPath, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	job = job.WithPayloadPath(spoolPath)
	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		os.Remove(spoolPath)
		handleError(w, s.logger, err, "failed to enqueue index job")
		return
	}

	s.touchRepo(r.Context(), identity.UserID, repoURL)

	logger.AddPulseSymbol(s.logger).Infow("Index upload enqueued",
		"job_id", job.ID,
		"user_id", identity.UserID,
		"repo_url", repoURL,
		"filename", header.Filename,
		"size_bytes", written,
	)

	writeJSON(w, http.StatusAccepted, enqueueResponse{JobID: job.ID, Status: string(job.Status)})
}

// HandleScipHover handles requests to /api/scip/hover
// GET: innermost occurrence covering a file position, with symbol metadata
func (s *OPTIXServer) HandleScipHover(w http.ResponseWriter, r *http.Request) {
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

	line := parseIntQueryParam(r, "line", -1, 0, 1<<30)
	character := parseIntQueryParam(r, "character", -1, 0, 1<<30)
	if line < 0 || character < 0 {
		writeError(w, http.StatusBadRequest, "line and character query parameters are required")
		return
	}

	hover, err := s.scipStore.HoverAt(r.Context(), identity.UserID, repoURL, filePath, line, character)
	if err != nil {
		handleError(w, s.logger, err, "failed to resolve hover")
		return
	}

	writeJSON(w, http.StatusOK, hover)
}
