package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-clearance-api/internal/dto"
	"github.com/noah-isme/sma-clearance-api/internal/models"
	appErrors "github.com/noah-isme/sma-clearance-api/pkg/errors"
	"github.com/noah-isme/sma-clearance-api/pkg/response"
)

type workflowService interface {
	Create(ctx context.Context, input dto.CreateRequestInput, actor models.Actor) (*models.Request, error)
	Apply(ctx context.Context, requestID string, actor models.Actor, changes map[models.Field]string) (*models.Request, error)
	Get(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, query dto.RequestQuery) ([]models.Request, *models.Pagination, error)
}

type slaReader interface {
	ListMetrics(ctx context.Context, requestID string) ([]models.SLAMetric, error)
}

// RequestHandler exposes document request endpoints.
type RequestHandler struct {
	service workflowService
	sla     slaReader
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(service workflowService, sla slaReader) *RequestHandler {
	return &RequestHandler{service: service, sla: sla}
}

// Create godoc
// @Summary Open a document request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestInput true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input dto.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	req, err := h.service.Create(c.Request.Context(), input, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

// List godoc
// @Summary List document requests
// @Tags Requests
// @Produce json
// @Param status query string false "Comma separated overall statuses"
// @Param studentId query string false "Student identifier"
// @Param program query string false "Program"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	query := dto.RequestQuery{
		Status:    splitCSV(c.Query("status")),
		StudentID: c.Query("studentId"),
		Program:   c.Query("program"),
		Page:      atoiDefault(c.Query("page"), 1),
		PageSize:  atoiDefault(c.Query("pageSize"), 20),
	}
	requests, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get a document request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	req, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// ApplyWorkflow godoc
// @Summary Apply workflow changes to a request
// @Description Field changes are restricted by the caller's role.
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.WorkflowMutationRequest true "Field changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/workflow [patch]
func (h *RequestHandler) ApplyWorkflow(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.WorkflowMutationRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid workflow payload"))
		return
	}
	changes := make(map[models.Field]string, len(payload.Changes))
	for field, value := range payload.Changes {
		changes[models.Field(strings.TrimSpace(field))] = value
	}
	req, err := h.service.Apply(c.Request.Context(), c.Param("id"), actor, changes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// SLA godoc
// @Summary List SLA timers for a request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/sla [get]
func (h *RequestHandler) SLA(c *gin.Context) {
	if h.sla == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sla tracker not configured"))
		return
	}
	id := c.Param("id")
	if _, err := h.service.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	metrics, err := h.sla.ListMetrics(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, metrics, nil)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func atoiDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
