// Package httpapi exposes the compression service over HTTP.
package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/4koushik4/pdf-compressor-backend/internal/app"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/domain/compression"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/metrics"
	compressionsvc "github.com/4koushik4/pdf-compressor-backend/internal/app/services/compression"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/storage"
	"github.com/4koushik4/pdf-compressor-backend/internal/httputil"
	"github.com/4koushik4/pdf-compressor-backend/pkg/logger"
)

// multipartMemory is the in-memory threshold for multipart parsing; larger
// parts spill to disk.
const multipartMemory = 32 << 20

// formOverhead is the slack on top of the upload cap for multipart
// boundaries and the non-file form fields.
const formOverhead = 1 << 20

// ServiceName and Version identify the service in health and info payloads.
const (
	ServiceName = "pdf-compressor"
	Version     = "1.0.0"
)

// Config tunes the HTTP surface.
type Config struct {
	MaxUploadBytes int64
}

// HealthResponse is the standard response for /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// InfoResponse is the standard response for /info.
type InfoResponse struct {
	Status     string         `json:"status"`
	Service    string         `json:"service"`
	Version    string         `json:"version"`
	Timestamp  string         `json:"timestamp"`
	Statistics map[string]any `json:"statistics,omitempty"`
}

// JobResponse is the wire form of a recorded compression job.
type JobResponse struct {
	ID              string  `json:"id"`
	Filename        string  `json:"filename"`
	Quality         string  `json:"quality"`
	TargetBytes     int64   `json:"target_bytes,omitempty"`
	DPIUsed         int     `json:"dpi_used"`
	OriginalBytes   int64   `json:"original_bytes"`
	CompressedBytes int64   `json:"compressed_bytes"`
	Ratio           float64 `json:"ratio"`
	Iterations      int     `json:"iterations"`
	Status          string  `json:"status"`
	Error           string  `json:"error,omitempty"`
	DurationMS      int64   `json:"duration_ms"`
	CreatedAt       string  `json:"created_at"`
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app       *app.Application
	maxUpload int64
	log       *logger.Logger
}

// NewHandler returns a router exposing the compression REST API.
func NewHandler(application *app.Application, cfg Config, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, maxUpload: cfg.MaxUploadBytes, log: log}

	router := mux.NewRouter()
	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/info", h.handleInfo).Methods(http.MethodGet)
	router.HandleFunc("/compress", h.handleCompress).Methods(http.MethodPost)
	router.HandleFunc("/jobs", h.handleListJobs).Methods(http.MethodGet)
	router.HandleFunc("/jobs/{id}", h.handleGetJob).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return router
}

// handleHealth reports liveness. Ghostscript availability is surfaced as a
// check, not a failure: the launcher contract starts without it.
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"ghostscript": "available"}
	if !h.app.Compression.Available() {
		checks["ghostscript"] = "missing"
	}

	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   ServiceName,
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	})
}

func (h *handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, InfoResponse{
		Status:     "active",
		Service:    ServiceName,
		Version:    Version,
		Timestamp:  time.Now().Format(time.RFC3339),
		Statistics: h.app.Stats(),
	})
}

// handleCompress accepts a multipart PDF upload and streams back the
// compressed document with size metadata in response headers.
func (h *handler) handleCompress(w http.ResponseWriter, r *http.Request) {
	if !h.app.Compression.Available() {
		httputil.InternalError(w, "Ghostscript not available on server")
		return
	}

	// Bound the whole body up front so oversized uploads fail during the
	// multipart parse instead of being spooled to temp disk first.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			httputil.BadRequest(w, fmt.Sprintf("File too large. Max allowed %d MB", h.maxUpload/(1024*1024)))
			return
		}
		httputil.BadRequest(w, "No file part")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		// A "file" part carrying an empty filename parses as a plain form
		// value, so it never reaches FormFile.
		if r.MultipartForm != nil {
			if _, selected := r.MultipartForm.Value["file"]; selected {
				httputil.BadRequest(w, "No selected file")
				return
			}
		}
		httputil.BadRequest(w, "No file part")
		return
	}
	defer file.Close()

	if !allowedFile(header.Filename) {
		httputil.BadRequest(w, "Invalid file type; PDF required")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		httputil.InternalError(w, "failed to read upload")
		return
	}
	if int64(len(data)) > h.maxUpload {
		httputil.BadRequest(w, fmt.Sprintf("File too large. Max allowed %d MB", h.maxUpload/(1024*1024)))
		return
	}

	quality := r.FormValue("quality")

	// Any parseable value is a real target, zero and negative included; only
	// an absent or blank field means "no target".
	var (
		targetMB    float64
		targetBytes int64
		hasTarget   bool
	)
	targetRaw := strings.TrimSpace(r.FormValue("targetSizeMB"))
	if targetRaw != "" {
		targetMB, err = strconv.ParseFloat(targetRaw, 64)
		if err != nil {
			httputil.BadRequest(w, "Invalid targetSizeMB")
			return
		}
		hasTarget = true
		targetBytes = int64(targetMB * 1024 * 1024)
	}

	filename := sanitizeFilename(header.Filename)

	result, err := h.app.Pool.Do(r.Context(), compressionsvc.Request{
		Filename:    filename,
		Data:        data,
		Quality:     quality,
		HasTarget:   hasTarget,
		TargetBytes: targetBytes,
	})
	if err != nil {
		switch {
		case errors.Is(err, compressionsvc.ErrUnavailable):
			httputil.InternalError(w, "Ghostscript not available on server")
		case errors.Is(err, compressionsvc.ErrQueueFull), errors.Is(err, compressionsvc.ErrPoolStopped):
			httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: "server busy, retry later"})
		default:
			h.log.WithError(err).WithField("filename", filename).Error("compression failed")
			httputil.InternalErrorDetails(w, "Compression error", err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "compressed_"+filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("X-Original-Size", strconv.FormatInt(result.OriginalBytes, 10))
	w.Header().Set("X-Compressed-Size", strconv.FormatInt(result.CompressedBytes, 10))
	w.Header().Set("X-Compression-Ratio", fmt.Sprintf("%.4f", result.Ratio))
	w.Header().Set("X-Quality-Used", result.Quality)
	if hasTarget {
		// A zero target echoes back empty, not "0".
		if targetMB == 0 {
			w.Header().Set("X-Target-Size", "")
		} else {
			w.Header().Set("X-Target-Size", targetRaw)
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (h *handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	jobs, err := h.app.Compression.ListJobs(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, "failed to load jobs")
		return
	}

	result := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		result = append(result, toJobResponse(job))
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.app.Compression.GetJob(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.NotFound(w, "job not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, "failed to load job")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

func toJobResponse(job compression.Job) JobResponse {
	return JobResponse{
		ID:              job.ID,
		Filename:        job.Filename,
		Quality:         job.Quality,
		TargetBytes:     job.TargetBytes,
		DPIUsed:         job.DPIUsed,
		OriginalBytes:   job.OriginalBytes,
		CompressedBytes: job.CompressedBytes,
		Ratio:           job.Ratio,
		Iterations:      job.Iterations,
		Status:          job.Status,
		Error:           job.Error,
		DurationMS:      job.Duration.Milliseconds(),
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
	}
}

// allowedFile accepts only .pdf uploads, case-insensitive.
func allowedFile(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename strips directory components and characters that are not
// safe in a filesystem path or a Content-Disposition header.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "document.pdf"
	}
	return name
}
