package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/daybook-sync/internal/domain/models"
)

// EntryService captures entries and reports sync state.
type EntryService interface {
	Capture(ctx context.Context, entry models.PendingEntry) (models.PendingEntry, bool, error)
	Status(ctx context.Context) models.SyncState
}

// SyncTrigger runs an explicit drain.
type SyncTrigger interface {
	SyncNow(ctx context.Context) (models.SyncOutcome, error)
}

// SyncHandler exposes entry capture and the sync controls.
type SyncHandler struct {
	entries EntryService
	trigger SyncTrigger
	logger  *zap.Logger
}

// NewSyncHandler constructs the HTTP handler adapter.
func NewSyncHandler(entries EntryService, trigger SyncTrigger, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{entries: entries, trigger: trigger, logger: logger}
}

type captureResponse struct {
	ID        string `json:"id"`
	Submitted bool   `json:"submitted"`
	Queued    bool   `json:"queued"`
}

// CaptureEntry records one day entry. It is submitted straight away when
// possible and queued otherwise.
func (h *SyncHandler) CaptureEntry(c *gin.Context) {
	var entry models.PendingEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		h.logger.Warn("invalid entry payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	captured, submitted, err := h.entries.Capture(c.Request.Context(), entry)
	switch {
	case errors.Is(err, models.ErrInvalidEntry):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("failed to capture entry", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "entry could not be saved"})
		return
	}

	c.JSON(http.StatusCreated, captureResponse{ID: captured.ID, Submitted: submitted, Queued: !submitted})
}

// SyncNow runs a drain cycle and returns its outcome.
func (h *SyncHandler) SyncNow(c *gin.Context) {
	outcome, err := h.trigger.SyncNow(c.Request.Context())
	switch {
	case errors.Is(err, models.ErrSyncInProgress), errors.Is(err, models.ErrOffline):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("manual sync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync failed"})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// Status reports pending count, online and syncing flags and the last result.
func (h *SyncHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.entries.Status(c.Request.Context()))
}
