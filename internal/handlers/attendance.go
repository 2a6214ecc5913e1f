// Package handlers provides HTTP handlers for API endpoints
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendance-guard/internal/models"
	"attendance-guard/internal/services"
)

// AttendanceHandler handles checkin and checkout submissions
type AttendanceHandler struct {
	service services.AttendanceProcessor
	logger  *zap.Logger
	now     func() time.Time
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(service services.AttendanceProcessor, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		logger:  logger.Named("attendance_handler"),
		now:     time.Now,
	}
}

// attendanceRequest is the client payload. The server clock, client IP and
// user agent are taken from the request, never from the body.
type attendanceRequest struct {
	EmployeeID      string                   `json:"employee_id" binding:"required"`
	BranchID        string                   `json:"branch_id" binding:"required"`
	Latitude        *float64                 `json:"latitude"`
	Longitude       *float64                 `json:"longitude"`
	SSID            string                   `json:"ssid"`
	BSSID           string                   `json:"bssid"`
	FaceImage       string                   `json:"face_image"`
	CheckType       models.LivenessCheckType `json:"check_type"`
	LivenessCheckID string                   `json:"liveness_check_id"`
	ClientTimestamp *time.Time               `json:"client_timestamp"`
	DeviceID        string                   `json:"device_id"`
	Integrity       models.DeviceIntegrity   `json:"integrity"`
}

// Checkin handles POST /api/attendance/checkin
func (h *AttendanceHandler) Checkin(c *gin.Context) {
	h.handle(c, models.KindCheckin)
}

// Checkout handles POST /api/attendance/checkout
func (h *AttendanceHandler) Checkout(c *gin.Context) {
	h.handle(c, models.KindCheckout)
}

func (h *AttendanceHandler) handle(c *gin.Context, kind models.AttendanceKind) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"reason": models.ReasonInvalidInput,
			"error":  err.Error(),
		})
		return
	}

	attempt := &models.AttendanceAttempt{
		EmployeeID:      req.EmployeeID,
		BranchID:        req.BranchID,
		Kind:            kind,
		At:              h.now(),
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		SSID:            req.SSID,
		BSSID:           req.BSSID,
		FaceImage:       req.FaceImage,
		CheckType:       req.CheckType,
		LivenessCheckID: req.LivenessCheckID,
		ClientTimestamp: req.ClientTimestamp,
		Device: models.DeviceInfo{
			UserAgent: c.Request.UserAgent(),
			DeviceID:  req.DeviceID,
			IP:        c.ClientIP(),
			Integrity: req.Integrity,
		},
	}

	res, err := h.service.Process(c.Request.Context(), attempt)
	if err != nil {
		h.writeError(c, err, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AttendanceHandler) writeError(c *gin.Context, err error, res *models.VerificationResult) {
	reason := models.ReasonFor(err)
	status := StatusFor(reason)

	body := gin.H{"reason": reason}
	var denied *models.LockdownDeniedError
	if errors.As(err, &denied) {
		body["message"] = denied.Message
		body["lockdown_id"] = denied.LockdownID
		body["lockdown_type"] = denied.Type
	}
	if res != nil && len(res.TamperFlags) > 0 {
		body["tamper_flags"] = res.TamperFlags
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Attendance processing failed", zap.Error(err))
	} else {
		h.logger.Info("Attendance rejected", zap.String("reason", string(reason)), zap.Error(err))
	}
	c.JSON(status, body)
}

// StatusFor maps a reason code to its HTTP status
func StatusFor(reason models.ReasonCode) int {
	switch reason {
	case models.ReasonInvalidInput:
		return http.StatusBadRequest
	case models.ReasonAlreadyRecorded, models.ReasonAttemptInProgress, models.ReasonIllegalTransition:
		return http.StatusConflict
	case models.ReasonLockdownBlocked, models.ReasonTamperBlocked, models.ReasonSpoofDetected, models.ReasonDeviceUntrusted:
		return http.StatusForbidden
	case models.ReasonFaceNotMatched, models.ReasonLivenessExpired:
		return http.StatusUnauthorized
	case models.ReasonModelUnavailable:
		return http.StatusServiceUnavailable
	case models.ReasonNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
