// Package api exposes the auction store, job log and backups over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	feed "github.com/Martin-Hayot/auctionhub/internal/handlers/websocket"
	"github.com/Martin-Hayot/auctionhub/pkg/errors"
	"github.com/Martin-Hayot/auctionhub/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 100
	maxTitleLength  = 100
)

type Store interface {
	Health(ctx context.Context) map[string]string
	CreateAuction(ctx context.Context, auction types.NewAuction) (types.Auction, error)
	ListAuctions(ctx context.Context) ([]types.Auction, error)
	ListActiveAuctions(ctx context.Context, now time.Time) ([]types.Auction, error)
	GetAuctionByID(ctx context.Context, id int64) (types.Auction, error)
	DeleteAuction(ctx context.Context, id int64) error
	ListJobLogs(ctx context.Context, limit int) ([]types.JobLog, error)
}

type Backups interface {
	ListSnapshots(ctx context.Context) ([]types.SnapshotDescriptor, error)
	ReadSnapshot(name string) (*types.Snapshot, error)
	OpenSnapshot(name string) (afero.File, os.FileInfo, error)
}

// Maintenance runs the on-demand variants of the housekeeping jobs.
type Maintenance interface {
	CleanupNow(ctx context.Context) (int64, error)
	BackupNow(ctx context.Context) (types.SnapshotDescriptor, error)
}

type Scheduler interface {
	Fire(ctx context.Context, name string) (types.JobLog, error)
	Jobs() []types.JobInfo
}

// Publisher pushes events to live dashboards.
type Publisher interface {
	Publish(eventType string, data any)
}

type Options struct {
	AllowCrossOrigin bool
	LogRequests      bool
	// RateLimit is the sustained rate of mutating requests per second; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

type Handler struct {
	store     Store
	backups   Backups
	maint     Maintenance
	scheduler Scheduler
	publisher Publisher
	limiter   *rate.Limiter
	opts      Options
	logger    *log.Logger
	now       func() time.Time
}

func NewHandler(store Store, backups Backups, maint Maintenance, scheduler Scheduler, publisher Publisher, opts Options) *Handler {
	h := &Handler{
		store:     store,
		backups:   backups,
		maint:     maint,
		scheduler: scheduler,
		publisher: publisher,
		opts:      opts,
		logger:    log.Default(),
		now:       time.Now,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return h
}

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(router *mux.Router) *mux.Router {
	if router == nil {
		router = mux.NewRouter()
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api.HandleFunc("/auctions", h.ListActiveAuctions).Methods(http.MethodGet)
	api.HandleFunc("/auctions/all", h.ListAllAuctions).Methods(http.MethodGet)
	api.HandleFunc("/auctions", h.CreateAuction).Methods(http.MethodPost)
	api.HandleFunc("/auctions/{id:[0-9]+}", h.GetAuction).Methods(http.MethodGet)
	api.HandleFunc("/auctions/{id}", h.DeleteAuction).Methods(http.MethodDelete)

	api.HandleFunc("/cron-logs", h.ListJobLogs).Methods(http.MethodGet)
	api.HandleFunc("/cleanup", h.Cleanup).Methods(http.MethodPost)
	api.HandleFunc("/jobs", h.ListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{name}/run", h.RunJob).Methods(http.MethodPost)

	api.HandleFunc("/backups", h.ListBackups).Methods(http.MethodGet)
	api.HandleFunc("/backups/create", h.CreateBackup).Methods(http.MethodPost)
	api.HandleFunc("/backups/{filename}", h.GetBackup).Methods(http.MethodGet)

	// Middleware
	if h.opts.LogRequests {
		router.Use(h.loggingMiddleware)
	}
	if h.opts.AllowCrossOrigin {
		router.Use(corsMiddleware)
		router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}
	if h.limiter != nil {
		router.Use(h.rateLimitMiddleware)
	}

	return router
}

// HealthCheck returns service and database health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	db := h.store.Health(r.Context())
	code, status := http.StatusOK, "ok"
	if db["status"] != "up" {
		code, status = http.StatusServiceUnavailable, "degraded"
	}
	respondJSON(w, code, map[string]any{
		"status":   status,
		"message":  "AuctionHub API is running",
		"time":     h.now().UTC().Format(time.RFC3339),
		"database": db,
	})
}

func (h *Handler) ListActiveAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.store.ListActiveAuctions(r.Context(), h.now())
	if err != nil {
		log.Error("Error fetching auctions", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch auctions")
		return
	}
	respondJSON(w, http.StatusOK, auctions)
}

func (h *Handler) ListAllAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.store.ListAuctions(r.Context())
	if err != nil {
		log.Error("Error fetching all auctions", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch all auctions")
		return
	}
	respondJSON(w, http.StatusOK, auctions)
}

func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	auction, err := req.validate()
	if err != nil {
		respondAppError(w, err, "Invalid auction")
		return
	}

	created, err := h.store.CreateAuction(r.Context(), auction)
	if err != nil {
		log.Error("Error creating auction", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create auction")
		return
	}

	h.publish(feed.EventAuctionCreated, created)
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid auction id")
		return
	}

	auction, err := h.store.GetAuctionByID(r.Context(), id)
	if err != nil {
		respondAppError(w, err, "Failed to fetch auction")
		return
	}
	respondJSON(w, http.StatusOK, auction)
}

func (h *Handler) DeleteAuction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid auction id")
		return
	}

	if err := h.store.DeleteAuction(r.Context(), id); err != nil {
		if errors.Is(err, errors.ErrAuctionNotFound) {
			respondError(w, http.StatusNotFound, "Auction not found")
			return
		}
		log.Error("Error deleting auction", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete auction")
		return
	}

	h.publish(feed.EventAuctionDeleted, map[string]int64{"id": id})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Auction deleted successfully"})
}

func (h *Handler) ListJobLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxLogLimit)
	}

	logs, err := h.store.ListJobLogs(r.Context(), limit)
	if err != nil {
		log.Error("Error fetching cron logs", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch cron logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.maint.CleanupNow(r.Context())
	if err != nil {
		log.Error("Error in manual cleanup", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to cleanup expired auctions")
		return
	}

	if deleted > 0 {
		h.publish(feed.EventAuctionsPurged, map[string]int64{"deleted": deleted})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Cleaned up " + strconv.FormatInt(deleted, 10) + " expired auction(s)",
		"deleted": deleted,
	})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.Jobs())
}

// RunJob fires a registered job immediately and returns its recorded outcome.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	entry, err := h.scheduler.Fire(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondAppError(w, err, "Failed to run job")
		return
	}

	status := http.StatusOK
	if entry.Status == types.JobStatusError {
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, entry)
}

func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.ListSnapshots(r.Context())
	if err != nil {
		log.Error("Error fetching backups", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch backups")
		return
	}
	respondJSON(w, http.StatusOK, backups)
}

func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	desc, err := h.maint.BackupNow(r.Context())
	if err != nil {
		log.Error("Error creating backup", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create backup")
		return
	}

	h.publish(feed.EventBackupCreated, desc)
	respondJSON(w, http.StatusOK, createBackupResponse{
		Message:            "Backup created successfully",
		SnapshotDescriptor: desc,
	})
}

// GetBackup returns a snapshot's content, or streams it as an attachment with ?download=true.
func (h *Handler) GetBackup(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	if r.URL.Query().Get("download") == "true" {
		f, info, err := h.backups.OpenSnapshot(filename)
		if err != nil {
			respondAppError(w, err, "Failed to fetch backup content")
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+info.Name()+`"`)
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
		return
	}

	snapshot, err := h.backups.ReadSnapshot(filename)
	if err != nil {
		respondAppError(w, err, "Failed to fetch backup content")
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) publish(eventType string, data any) {
	if h.publisher != nil {
		h.publisher.Publish(eventType, data)
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("Error writing response", "error", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondAppError answers with the status carried by err. Internal failures
// get the fallback message instead of the error text.
func respondAppError(w http.ResponseWriter, err error, fallback string) {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus()
		if status < http.StatusInternalServerError {
			respondError(w, status, appErr.Message)
			return
		}
	}
	log.Error(fallback, "error", err)
	respondError(w, http.StatusInternalServerError, fallback)
}
