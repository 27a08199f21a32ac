package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/duongdev/comma-sync/ledger"
	"github.com/duongdev/comma-sync/logging"
	"github.com/duongdev/comma-sync/routes"
	"github.com/duongdev/comma-sync/transfer"
	"github.com/duongdev/comma-sync/uploading"
)

// StatusHandler exposes a read-mostly operational surface: pipeline status,
// the progress ledger, and a per-stream reset.
type StatusHandler struct {
	logger         logging.Logger
	queue          uploading.UploadQueue
	uploadPoller   *transfer.UploadPoller
	downloadPoller *transfer.DownloadPoller
	ledger         ledger.ProgressLedger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(logger logging.Logger, queue uploading.UploadQueue, uploadPoller *transfer.UploadPoller, downloadPoller *transfer.DownloadPoller, progressLedger ledger.ProgressLedger) *StatusHandler {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &StatusHandler{
		logger:         logger,
		queue:          queue,
		uploadPoller:   uploadPoller,
		downloadPoller: downloadPoller,
		ledger:         progressLedger,
	}
}

// RegisterRoutes attaches the handler's endpoints to the router.
func (h *StatusHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/health", h.GetHealth)
	router.GET("/api/status", h.GetStatus)
	router.GET("/api/progress", h.GetProgress)
	router.POST("/api/progress/:route/:camera/reset", h.ResetProgress)
}

// GetHealth handles GET /api/health
func (h *StatusHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetStatus handles GET /api/status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	status := gin.H{
		"queue_length": h.queue.Len(),
	}
	if h.uploadPoller != nil {
		status["upload_cycles"] = h.uploadPoller.Cycles()
	}
	if h.downloadPoller != nil {
		status["download_cycles"] = h.downloadPoller.Cycles()
	}

	c.JSON(http.StatusOK, status)
}

// progressEntry is the JSON shape of one ledger record.
type progressEntry struct {
	RouteID       string  `json:"route_id"`
	Camera        string  `json:"camera"`
	UploadedUntil float64 `json:"uploaded_until"`
	Processed     bool    `json:"processed"`
	UpdatedAt     string  `json:"updated_at"`
}

// GetProgress handles GET /api/progress
func (h *StatusHandler) GetProgress(c *gin.Context) {
	entries, err := h.ledger.Entries(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read progress ledger", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read progress ledger"})
		return
	}

	result := make([]progressEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, progressEntry{
			RouteID:       entry.Key.RouteID,
			Camera:        string(entry.Key.Camera),
			UploadedUntil: entry.UploadedUntil,
			Processed:     entry.Processed,
			UpdatedAt:     ledger.TimeToString(entry.UpdatedAt),
		})
	}

	c.JSON(http.StatusOK, result)
}

// ResetProgress handles POST /api/progress/:route/:camera/reset
func (h *StatusHandler) ResetProgress(c *gin.Context) {
	routeID := c.Param("route")
	camera := c.Param("camera")
	if routeID == "" || camera == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Route and camera are required"})
		return
	}

	key := routes.RouteKey{RouteID: routeID, Camera: routes.Camera(camera)}
	if err := h.ledger.Reset(c.Request.Context(), key); err != nil {
		h.logger.Error("Failed to reset progress", "key", key.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset progress"})
		return
	}

	h.logger.Info("Progress reset", "key", key.String())
	c.JSON(http.StatusOK, gin.H{"message": "Progress reset"})
}
