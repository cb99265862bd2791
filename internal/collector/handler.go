package collector

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"beacon/internal/logger"
	"beacon/pkg/logging"
)

// Handler exposes the ingest endpoint over HTTP.
type Handler struct {
	svc    Service
	logger logger.Logger
}

func NewHandler(svc Service, log logger.Logger) *Handler {
	return &Handler{svc: svc, logger: log}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/v2/events", h.handleEvents)
}

func (h *Handler) handleEvents(c *gin.Context) {
	var env Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := logging.WithTraceID(c.Request.Context(), uuid.NewString())
	ctx = logging.WithDeviceID(ctx, env.DeviceID)

	res, err := h.svc.Process(ctx, &env)
	if err != nil {
		h.logger.WarnwCtx(ctx, "Rejected event batch",
			"device_id", env.DeviceID,
			"error", err,
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, res)
}
