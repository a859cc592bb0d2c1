package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-clearance-api/internal/models"
	appErrors "github.com/noah-isme/sma-clearance-api/pkg/errors"
	"github.com/noah-isme/sma-clearance-api/pkg/export"
	"github.com/noah-isme/sma-clearance-api/pkg/response"
)

type auditQueryService interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditHandler exposes the read-only audit trail.
type AuditHandler struct {
	service auditQueryService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service auditQueryService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List godoc
// @Summary Query audit logs
// @Tags Audit
// @Produce json
// @Param requestId query string false "Request ID"
// @Param userId query string false "Acting user ID"
// @Param action query string false "Action tag"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter, page, size, ok := auditFilterFromQuery(c, 50, 500)
	if !ok {
		return
	}
	entries, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total})
}

// Export godoc
// @Summary Download audit logs as CSV
// @Description One row per changed field. Accepts the same filters as the listing.
// @Tags Audit
// @Produce text/csv
// @Success 200 {string} string "CSV file"
// @Router /audit-logs/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	filter, _, _, ok := auditFilterFromQuery(c, exportPageSize, exportPageSize)
	if !ok {
		return
	}
	entries, _, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := export.RenderCSV(export.AuditTable(entries))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="audit-logs.csv"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}

const exportPageSize = models.MaxAuditPageSize

func auditFilterFromQuery(c *gin.Context, defaultSize, maxSize int) (models.AuditFilter, int, int, bool) {
	page := atoiDefault(c.Query("page"), 1)
	if page <= 0 {
		page = 1
	}
	size := atoiDefault(c.Query("pageSize"), defaultSize)
	if size <= 0 || size > maxSize {
		size = defaultSize
	}
	filter := models.AuditFilter{
		RequestID: c.Query("requestId"),
		UserID:    c.Query("userId"),
		Action:    c.Query("action"),
		Limit:     size,
		Offset:    (page - 1) * size,
	}
	var err error
	if filter.From, err = parseTimeQuery(c.Query("from")); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
		return filter, 0, 0, false
	}
	if filter.To, err = parseTimeQuery(c.Query("to")); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
		return filter, 0, 0, false
	}
	return filter, page, size, true
}

func parseTimeQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
