package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	"github.com/zatekoja/facility-import/backend/internal/domain/providers"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/observability"
)

// RunLockKey guards against overlapping pipeline runs
const RunLockKey = "import:run-lock"

// ImportService defines the import operations used by the handler.
type ImportService interface {
	ImportAll(ctx context.Context) (*entities.ImportResult, error)
	ImportByKind(ctx context.Context, kind string) (*entities.ImportResult, error)
	ImportByRegion(ctx context.Context, box entities.BoundingBox, kind *string) (*entities.ImportResult, error)
	GetSummary(ctx context.Context) (*entities.ImportSummary, error)
	ClearAutoImported(ctx context.Context) (int, error)
}

// DedupService defines the sweep used by the handler.
type DedupService interface {
	Sweep(ctx context.Context) (*entities.DedupResult, error)
}

// ImportHandler exposes the import pipeline to administrators
type ImportHandler struct {
	imports ImportService
	dedup   DedupService
	lock    providers.CacheProvider
	lockTTL time.Duration
}

// NewImportHandler creates a new import handler. lock may be nil, in which case runs are not serialized.
func NewImportHandler(imports ImportService, dedup DedupService, lock providers.CacheProvider, lockTTL time.Duration) *ImportHandler {
	return &ImportHandler{
		imports: imports,
		dedup:   dedup,
		lock:    lock,
		lockTTL: lockTTL,
	}
}

type regionRequest struct {
	North *float64 `json:"north"`
	South *float64 `json:"south"`
	East  *float64 `json:"east"`
	West  *float64 `json:"west"`
	Kind  *string  `json:"kind,omitempty"`
}

// ImportAll handles POST /api/admin/import
func (h *ImportHandler) ImportAll(w http.ResponseWriter, r *http.Request) {
	h.runLocked(w, r, func(ctx context.Context) {
		result, err := h.imports.ImportAll(ctx)
		if err != nil {
			respondWithError(w, statusForError(err), "import failed", err)
			return
		}
		respondWithSuccess(w, "import completed", result)
	})
}

// ImportByKind handles POST /api/admin/import/kind/{kind}
func (h *ImportHandler) ImportByKind(w http.ResponseWriter, r *http.Request) {
	kind := strings.TrimSpace(r.PathValue("kind"))
	if kind == "" {
		respondWithError(w, http.StatusBadRequest, "kind is required", nil)
		return
	}

	h.runLocked(w, r, func(ctx context.Context) {
		result, err := h.imports.ImportByKind(ctx, kind)
		if err != nil {
			respondWithError(w, statusForError(err), "import failed", err)
			return
		}
		respondWithSuccess(w, "import completed for kind "+kind, result)
	})
}

// ImportByRegion handles POST /api/admin/import/region
func (h *ImportHandler) ImportByRegion(w http.ResponseWriter, r *http.Request) {
	var payload regionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload", err)
		return
	}
	if payload.North == nil || payload.South == nil || payload.East == nil || payload.West == nil {
		respondWithError(w, http.StatusBadRequest, "north, south, east and west are required", nil)
		return
	}
	box := entities.BoundingBox{North: *payload.North, South: *payload.South, East: *payload.East, West: *payload.West}

	h.runLocked(w, r, func(ctx context.Context) {
		result, err := h.imports.ImportByRegion(ctx, box, payload.Kind)
		if err != nil {
			respondWithError(w, statusForError(err), "import failed", err)
			return
		}
		respondWithSuccess(w, "region import completed", result)
	})
}

// Deduplicate handles POST /api/admin/dedup
func (h *ImportHandler) Deduplicate(w http.ResponseWriter, r *http.Request) {
	h.runLocked(w, r, func(ctx context.Context) {
		result, err := h.dedup.Sweep(ctx)
		if err != nil {
			respondWithError(w, statusForError(err), "deduplication failed", err)
			return
		}
		respondWithSuccess(w, "deduplication completed", result)
	})
}

// GetSummary handles GET /api/admin/summary
func (h *ImportHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.imports.GetSummary(r.Context())
	if err != nil {
		respondWithError(w, statusForError(err), "failed to build summary", err)
		return
	}
	respondWithSuccess(w, "summary", summary)
}

// ClearImported handles DELETE /api/admin/facilities/imported
func (h *ImportHandler) ClearImported(w http.ResponseWriter, r *http.Request) {
	h.runLocked(w, r, func(ctx context.Context) {
		removed, err := h.imports.ClearAutoImported(ctx)
		if err != nil {
			respondWithError(w, statusForError(err), "failed to clear imported facilities", err)
			return
		}
		respondWithSuccess(w, "imported facilities cleared", map[string]int{"records_removed": removed})
	})
}

// runLocked runs fn while holding the run lock. A second caller gets 409.
// The run is detached from the request's cancellation so a client disconnect does not abort it.
func (h *ImportHandler) runLocked(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context)) {
	ctx := context.WithoutCancel(r.Context())
	if h.lock == nil {
		fn(ctx)
		return
	}

	logger := observability.LoggerFromContext(ctx)
	runID := uuid.NewString()
	acquired, err := h.lock.SetNX(ctx, RunLockKey, []byte(runID), int(h.lockTTL.Seconds()))
	if err != nil {
		// Lock store unavailable, run unserialized
		logger.Warn().Err(err).Msg("Failed to acquire run lock, continuing unlocked")
		fn(ctx)
		return
	}
	if !acquired {
		respondWithError(w, http.StatusConflict, "another pipeline run is in progress", nil)
		return
	}

	defer func() {
		if err := h.lock.Delete(ctx, RunLockKey); err != nil {
			logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to release run lock")
		}
	}()
	fn(ctx)
}
