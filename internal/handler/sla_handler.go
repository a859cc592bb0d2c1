package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-clearance-api/internal/dto"
	"github.com/noah-isme/sma-clearance-api/internal/models"
	"github.com/noah-isme/sma-clearance-api/pkg/response"
)

type slaSweeper interface {
	RunSweep(ctx context.Context, now time.Time) (models.SweepResult, error)
}

// SLAHandler exposes manual SLA operations.
type SLAHandler struct {
	sweeper slaSweeper
	now     func() time.Time
}

// NewSLAHandler constructs the handler.
func NewSLAHandler(sweeper slaSweeper) *SLAHandler {
	return &SLAHandler{sweeper: sweeper, now: func() time.Time { return time.Now().UTC() }}
}

// Sweep godoc
// @Summary Run an SLA sweep now
// @Tags SLA
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sla/sweep [post]
func (h *SLAHandler) Sweep(c *gin.Context) {
	result, err := h.sweeper.RunSweep(c.Request.Context(), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SweepResponse{Checked: result.Checked, Updated: result.Updated}, nil)
}
