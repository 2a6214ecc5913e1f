package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendance-guard/internal/models"
	"attendance-guard/internal/services"
)

// SecurityManager is the administrator surface of the engine
type SecurityManager interface {
	DeclareLockdown(ctx context.Context, actor services.Actor, ev models.LockdownEvent) (*models.LockdownEvent, error)
	EndLockdown(ctx context.Context, actor services.Actor, id, reason string) (*models.LockdownEvent, error)
	CancelLockdown(ctx context.Context, actor services.Actor, id, reason string) (*models.LockdownEvent, error)
	ReviewTamper(ctx context.Context, actor services.Actor, id string, status models.ReviewStatus) (*models.TamperRecord, error)
}

// UserHeader carries the authenticated administrator id set by the gateway
const UserHeader = "X-User-ID"

// SecurityHandler handles lockdown and tamper review requests
type SecurityHandler struct {
	service SecurityManager
	logger  *zap.Logger
}

// NewSecurityHandler creates a new security handler
func NewSecurityHandler(service SecurityManager, logger *zap.Logger) *SecurityHandler {
	return &SecurityHandler{service: service, logger: logger.Named("security_handler")}
}

type lockdownRequest struct {
	BranchID               string              `json:"branch_id"`
	Title                  string              `json:"title" binding:"required"`
	Message                string              `json:"message"`
	Type                   models.LockdownType `json:"lockdown_type" binding:"required"`
	StartTime              time.Time           `json:"start_time" binding:"required"`
	EndTime                *time.Time          `json:"end_time"`
	ExemptEmployeeIDs      []string            `json:"exempt_employee_ids"`
	ExemptDepartmentIDs    []string            `json:"exempt_department_ids"`
	ExemptDesignationIDs   []string            `json:"exempt_designation_ids"`
	AllowEmergencyCheckin  bool                `json:"allow_emergency_checkin"`
	AllowEmergencyCheckout bool                `json:"allow_emergency_checkout"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type reviewRequest struct {
	Status models.ReviewStatus `json:"review_status" binding:"required"`
}

func actorOf(c *gin.Context) (services.Actor, bool) {
	actor := services.Actor{
		UserID:    c.GetHeader(UserHeader),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if actor.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserHeader})
		return actor, false
	}
	return actor, true
}

// DeclareLockdown handles POST /api/lockdowns
func (h *SecurityHandler) DeclareLockdown(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req lockdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": models.ReasonInvalidInput, "error": err.Error()})
		return
	}

	ev, err := h.service.DeclareLockdown(c.Request.Context(), actor, models.LockdownEvent{
		BranchID:               req.BranchID,
		Title:                  req.Title,
		Message:                req.Message,
		Type:                   req.Type,
		StartTime:              req.StartTime,
		EndTime:                req.EndTime,
		ExemptEmployeeIDs:      req.ExemptEmployeeIDs,
		ExemptDepartmentIDs:    req.ExemptDepartmentIDs,
		ExemptDesignationIDs:   req.ExemptDesignationIDs,
		AllowEmergencyCheckin:  req.AllowEmergencyCheckin,
		AllowEmergencyCheckout: req.AllowEmergencyCheckout,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// EndLockdown handles POST /api/lockdowns/:id/end
func (h *SecurityHandler) EndLockdown(c *gin.Context) {
	h.transition(c, h.service.EndLockdown)
}

// CancelLockdown handles POST /api/lockdowns/:id/cancel
func (h *SecurityHandler) CancelLockdown(c *gin.Context) {
	h.transition(c, h.service.CancelLockdown)
}

func (h *SecurityHandler) transition(c *gin.Context, apply func(context.Context, services.Actor, string, string) (*models.LockdownEvent, error)) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req reasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"reason": models.ReasonInvalidInput, "error": err.Error()})
			return
		}
	}

	ev, err := apply(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// ReviewTamper handles PATCH /api/tamper-records/:id/review
func (h *SecurityHandler) ReviewTamper(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": models.ReasonInvalidInput, "error": err.Error()})
		return
	}

	rec, err := h.service.ReviewTamper(c.Request.Context(), actor, c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *SecurityHandler) fail(c *gin.Context, err error) {
	reason := models.ReasonFor(err)
	status := StatusFor(reason)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Security request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"reason": reason, "error": err.Error()})
}
