package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/export"
	"github.com/DukeRupert/tsfwatch/internal/storage"
)

// ExportService is the subset of export.Exporter the export routes use.
type ExportService interface {
	ExportAll(ctx context.Context) (*domain.ExportResult, error)
	GenerateReport(ctx context.Context) (*domain.ReportResult, error)
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	Runs(ctx context.Context, limit int) ([]export.ExportRun, error)
	Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
	Link(ctx context.Context, key string, expires time.Duration) (string, error)
}

// ScheduleSource reports upcoming scheduled jobs. scheduler.Scheduler
// implements it.
type ScheduleSource interface {
	Next() map[string]time.Time
}

// ExportHandler triggers exports and serves the stored files.
//
// Routes handled:
// - POST /api/exports               -> ExportAll
// - POST /api/reports               -> GenerateReport
// - GET  /api/exports?prefix=       -> List
// - GET  /api/exports/runs?limit=   -> Runs
// - GET  /api/exports/files/{key...} -> Download
// - GET  /api/exports/links/{key...} -> Link
// - GET  /api/exports/schedule      -> Schedule
type ExportHandler struct {
	exporter ExportService
	schedule ScheduleSource
	logger   *slog.Logger
}

// NewExportHandler creates an ExportHandler. schedule may be nil when no
// cron jobs are configured.
func NewExportHandler(exporter ExportService, schedule ScheduleSource, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		exporter: exporter,
		schedule: schedule,
		logger:   logger,
	}
}

const (
	// DefaultRunLimit is the number of runs returned when limit is omitted.
	DefaultRunLimit = 20

	// LinkExpiry is how long a shared export link stays valid.
	LinkExpiry = time.Hour
)

// ExportAll handles POST /api/exports.
func (h *ExportHandler) ExportAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.exporter.ExportAll(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GenerateReport handles POST /api/reports.
func (h *ExportHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.exporter.GenerateReport(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type objectView struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType"`
	LastModified time.Time `json:"lastModified"`
}

// List handles GET /api/exports.
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	objects, err := h.exporter.List(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]objectView, len(objects))
	for i, o := range objects {
		out[i] = objectView{Key: o.Key, Size: o.Size, ContentType: o.ContentType, LastModified: o.LastModified}
	}
	writeJSON(w, http.StatusOK, out)
}

// Runs handles GET /api/exports/runs.
func (h *ExportHandler) Runs(w http.ResponseWriter, r *http.Request) {
	const op = "ExportHandler.Runs"

	limit, err := queryInt(r, op, "limit", DefaultRunLimit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	runs, err := h.exporter.Runs(r.Context(), limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// Download handles GET /api/exports/files/{key...}.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	rc, info, err := h.exporter.Open(r.Context(), key)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer rc.Close()

	contentType := storage.DetectContentType(info.ContentType, key)
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	disposition := "attachment"
	if storage.IsText(contentType) {
		disposition = "inline"
	}
	w.Header().Set("Content-Disposition", disposition+`; filename="`+path.Base(key)+`"`)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("export download interrupted", "key", key, "error", err)
	}
}

type linkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Link handles GET /api/exports/links/{key...}. It returns a shareable URL
// for a stored file.
func (h *ExportHandler) Link(w http.ResponseWriter, r *http.Request) {
	link, err := h.exporter.Link(r.Context(), r.PathValue("key"), LinkExpiry)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, linkResponse{URL: link, ExpiresAt: time.Now().UTC().Add(LinkExpiry)})
}

// Schedule handles GET /api/exports/schedule.
func (h *ExportHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	next := map[string]time.Time{}
	if h.schedule != nil {
		next = h.schedule.Next()
	}
	writeJSON(w, http.StatusOK, next)
}

// RegisterRoutes registers the export routes on mux.
func (h *ExportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/exports", h.ExportAll)
	mux.HandleFunc("POST /api/reports", h.GenerateReport)
	mux.HandleFunc("GET /api/exports", h.List)
	mux.HandleFunc("GET /api/exports/runs", h.Runs)
	mux.HandleFunc("GET /api/exports/files/{key...}", h.Download)
	mux.HandleFunc("GET /api/exports/links/{key...}", h.Link)
	mux.HandleFunc("GET /api/exports/schedule", h.Schedule)
}
