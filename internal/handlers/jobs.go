package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"render-engine/internal/filesystem"
	"render-engine/internal/logging"
	"render-engine/internal/mediatypes"
	"render-engine/internal/pipeline"
	"render-engine/internal/project"
	"render-engine/internal/renderr"
	"render-engine/internal/streaming"
)

// maxProjectBytes bounds a submitted project document.
const maxProjectBytes = 8 << 20

// JobResponse is a job summary plus its latest encoder progress.
type JobResponse struct {
	pipeline.Info
	Progress pipeline.ProgressInfo `json:"progress"`
}

// CreateJobResponse identifies a submitted job.
type CreateJobResponse struct {
	ID    string         `json:"id"`
	State pipeline.State `json:"state"`
}

// ListJobs returns every known job, oldest first.
func (h *Handlers) ListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, h.jobs.List())
}

// CreateJob accepts a YAML or JSON project document as the request body
// and starts rendering it to the "output" query parameter, a path relative
// to the output root.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	output, err := h.resolveOutput(r.URL.Query().Get("output"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProjectBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, "project document too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "failed to read project document", http.StatusBadRequest)
		return
	}
	p, err := project.Parse(data)
	if err != nil {
		writeEngineError(w, renderr.Validation("handlers.CreateJob", "invalid project document: %v", err))
		return
	}

	id, err := h.jobs.Create(p, output)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if err := h.jobs.Start(h.ctx, id); err != nil {
		writeEngineError(w, err)
		return
	}
	logging.Info("Job %s submitted over HTTP -> %s", id, output)

	info, err := h.jobs.Info(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, CreateJobResponse{ID: id, State: info.State})
}

// resolveOutput maps a client-supplied relative path onto the output root.
// Absolute paths and paths escaping the root are rejected.
func (h *Handlers) resolveOutput(rel string) (string, error) {
	const op = "handlers.CreateJob"
	if rel == "" {
		return "", renderr.Validation(op, "output query parameter is required")
	}
	if h.outputRoot == "" {
		return "", renderr.Validation(op, "no output directory configured for submitted jobs")
	}
	if !filepath.IsLocal(rel) {
		return "", renderr.Validation(op, "output path %q must be relative to the output directory", rel)
	}
	path := filepath.Join(h.outputRoot, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", renderr.Internal(op, "failed to create output directory: %v", err)
	}
	return path, nil
}

// GetJob returns one job with its progress.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	info, err := h.jobs.Info(id)
	if err != nil {
		writeJobNotFound(w, err)
		return
	}
	progress, err := h.jobs.Progress(id)
	if err != nil {
		writeJobNotFound(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, JobResponse{Info: info, Progress: progress})
}

// CancelJob requests cancellation. Cancelling a finished job is accepted
// and changes nothing.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.jobs.Cancel(id); err != nil {
		writeJobNotFound(w, err)
		return
	}
	info, err := h.jobs.Info(id)
	if err != nil {
		writeJobNotFound(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, info)
}

// DownloadOutput streams the output file of a completed job.
func (h *Handlers) DownloadOutput(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	info, err := h.jobs.Info(id)
	if err != nil {
		writeJobNotFound(w, err)
		return
	}
	if info.State != pipeline.StateCompleted {
		writeJSONError(w, "job "+id+" is "+string(info.State)+", output not available", http.StatusConflict)
		return
	}

	f, err := filesystem.OpenWithRetry(info.OutputPath, filesystem.DefaultRetryConfig())
	if err != nil {
		writeEngineError(w, renderr.MediaFile("handlers.DownloadOutput", info.OutputPath, err))
		return
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(info.OutputPath))
	w.Header().Set("Content-Type", mediatypes.GetMimeType(ext))
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filepath.Base(info.OutputPath)))
	if st, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(st.Size(), 10))
	}

	n, err := streaming.Copy(r.Context(), w, f, h.stream)
	switch {
	case err == nil:
		logging.Debug("Delivered output of job %s (%d bytes)", id, n)
	case errors.Is(err, streaming.ErrClientGone):
		logging.Debug("Client left during output of job %s after %d bytes", id, n)
	default:
		logging.Warn("Output of job %s stopped after %d bytes: %v", id, n, err)
	}
}

// CleanupJobs forgets finished jobs.
func (h *Handlers) CleanupJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, map[string]int{"removed": h.jobs.CleanupCompleted()})
}

// writeJobNotFound reports a failed job lookup. The manager fails lookups
// only for unknown ids.
func writeJobNotFound(w http.ResponseWriter, err error) {
	writeJSONStatus(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: renderr.KindOf(err).String()})
}
