// File: internal/jobs/handler.go
package jobs

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace_backend/internal/common"
	"marketplace_backend/internal/host"
	"marketplace_backend/internal/middleware"
)

// Handler exposes the manual sweep trigger for operators.
type Handler struct {
	job    *SlotSweepJob
	logger *zap.Logger
}

// NewHandler creates a new jobs handler.
func NewHandler(job *SlotSweepJob, logger *zap.Logger) *Handler {
	return &Handler{job: job, logger: logger.Named("jobs_handler")}
}

// RegisterRoutes wires the admin sweep trigger into the API group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	admin := rg.Group("/admin/sweeps")
	admin.Use(auth, middleware.RoleAuth(host.RoleAdmin))
	{
		admin.POST("/:label", h.trigger)
	}
}

// trigger kicks off one sweep run in the background and returns immediately;
// the run's outcome lands in the operational logs.
func (h *Handler) trigger(c *gin.Context) {
	label := c.Param("label")
	if label != LabelExpiryWarning && label != LabelExpiry {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(
			"Unknown sweep label. Expected EXPIRY_WARNING or EXPIRY."))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()
		if err := h.job.RunByLabel(ctx, label); err != nil {
			h.logger.Error("Manually triggered sweep failed",
				zap.String("label", label), zap.Error(err))
		}
	}()

	common.RespondSuccess(c, http.StatusAccepted, "Sweep triggered.", gin.H{"label": label})
}
