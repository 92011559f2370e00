package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crestline-erp/approvalflow/internal/application/engine"
	"github.com/crestline-erp/approvalflow/internal/application/notify"
	"github.com/crestline-erp/approvalflow/internal/domain/approval"
	"github.com/crestline-erp/approvalflow/internal/domain/entity"
	"github.com/crestline-erp/approvalflow/internal/infrastructure/report"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine  engine.Engine
	hub     *notify.Hub
	reports *report.Generator
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(eng engine.Engine, hub *notify.Hub, reports *report.Generator, logger Logger) *Handlers {
	return &Handlers{
		engine:  eng,
		hub:     hub,
		reports: reports,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ActorRequest identifies who is acting and in which role
type ActorRequest struct {
	ActorID   string `json:"actor_id" binding:"required"`
	ActorName string `json:"actor_name"`
	Role      string `json:"role" binding:"required"`
}

func (a ActorRequest) toActor() entity.Actor {
	return entity.Actor{
		ID:   a.ActorID,
		Name: a.ActorName,
		Role: a.Role,
	}
}

// CreateRecordRequest is the body of POST /records
type CreateRecordRequest struct {
	WorkflowID  string       `json:"workflow_id" binding:"required"`
	EntityRef   string       `json:"entity_ref" binding:"required"`
	Partition   string       `json:"partition"`
	BatchKey    string       `json:"batch_key"`
	MirrorField string       `json:"mirror_field"`
	Actor       ActorRequest `json:"actor" binding:"required"`
	Remarks     string       `json:"remarks"`
}

// ActionRequest is the body of advance/reject calls
type ActionRequest struct {
	Actor   ActorRequest `json:"actor" binding:"required"`
	Remarks string       `json:"remarks"`
}

// BatchActionRequest is the body of batch advance/reject calls
type BatchActionRequest struct {
	WorkflowID string       `json:"workflow_id" binding:"required"`
	Actor      ActorRequest `json:"actor" binding:"required"`
	Remarks    string       `json:"remarks"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateRecord handles POST /api/v1/records
func (h *Handlers) CreateRecord(c *gin.Context) {
	var req CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.Create(c.Request.Context(), engine.CreateInput{
		WorkflowID:  req.WorkflowID,
		EntityRef:   req.EntityRef,
		Partition:   req.Partition,
		BatchKey:    req.BatchKey,
		MirrorField: req.MirrorField,
	}, req.Actor.toActor(), req.Remarks)
	if err != nil {
		h.engineError(c, "create record", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    result,
	})
}

// AdvanceRecord handles POST /api/v1/records/:id/advance
func (h *Handlers) AdvanceRecord(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.Advance(c.Request.Context(), c.Param("id"), req.Actor.toActor(), req.Remarks)
	if err != nil {
		h.engineError(c, "advance record", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// RejectRecord handles POST /api/v1/records/:id/reject
func (h *Handlers) RejectRecord(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.Reject(c.Request.Context(), c.Param("id"), req.Actor.toActor(), req.Remarks)
	if err != nil {
		h.engineError(c, "reject record", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// ListPending handles GET /api/v1/pending
func (h *Handlers) ListPending(c *gin.Context) {
	workflowID := c.Query("workflow_id")
	role := c.Query("role")
	actorID := c.Query("actor_id")
	if workflowID == "" || role == "" || actorID == "" {
		h.badRequest(c, fmt.Errorf("workflow_id, role and actor_id are required"))
		return
	}

	items, err := h.engine.ListPending(c.Request.Context(), workflowID, role, actorID)
	if err != nil {
		h.engineError(c, "list pending", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    items,
	})
}

// AdvanceBatch handles POST /api/v1/batches/:key/advance
func (h *Handlers) AdvanceBatch(c *gin.Context) {
	var req BatchActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.AdvanceBatch(c.Request.Context(),
		req.WorkflowID, c.Param("key"), req.Actor.toActor(), req.Remarks)
	if err != nil {
		h.engineError(c, "advance batch", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// RejectBatch handles POST /api/v1/batches/:key/reject
func (h *Handlers) RejectBatch(c *gin.Context) {
	var req BatchActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.engine.RejectBatch(c.Request.Context(),
		req.WorkflowID, c.Param("key"), req.Actor.toActor(), req.Remarks)
	if err != nil {
		h.engineError(c, "reject batch", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// WorkflowHistoryReport handles GET /api/v1/workflows/:id/history-report
func (h *Handlers) WorkflowHistoryReport(c *gin.Context) {
	workflowID := c.Param("id")

	filename := fmt.Sprintf("approval-history-%s-%s.xlsx", workflowID, time.Now().Format("20060102"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.reports.WriteWorkflowHistory(c.Request.Context(), workflowID, c.Writer); err != nil {
		h.logger.Error("Failed to generate history report",
			"workflow_id", workflowID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
}

// StreamPending handles GET /api/v1/stream/:role as server-sent events.
// No replay: clients re-query the pending list after connecting.
func (h *Handlers) StreamPending(c *gin.Context) {
	role := c.Param("role")

	events, cancel := h.hub.Subscribe(role, 16)
	defer cancel()

	h.logger.Info("Pending stream opened", "role", role)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("pending", evt)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})

	h.logger.Info("Pending stream closed", "role", role)
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Error("Invalid request", "error", err)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   err.Error(),
	})
}

// engineError maps engine sentinel errors to HTTP status codes.
func (h *Handlers) engineError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, approval.ErrRecordNotFound),
		errors.Is(err, approval.ErrWorkflowNotFound),
		errors.Is(err, approval.ErrLevelNotFound):
		status = http.StatusNotFound
	case errors.Is(err, approval.ErrAlreadyProcessed),
		errors.Is(err, approval.ErrInvalidState),
		errors.Is(err, approval.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, approval.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, approval.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, approval.ErrWorkflowMisconfigured):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "error", err)
	}

	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
	})
}
