package repository

import (
	"context"
	"fmt"
	"time"

	"attendance-guard/internal/models"
)

type tamperRow struct {
	ID              string         `json:"id"`
	EmployeeID      string         `json:"employee_id"`
	BranchID        string         `json:"branch_id"`
	AttemptType     string         `json:"attempt_type"`
	TamperType      string         `json:"tamper_type"`
	Severity        string         `json:"severity"`
	ConfidenceScore float64        `json:"confidence_score"`
	ActionTaken     string         `json:"action_taken"`
	Details         map[string]any `json:"details"`
	ReviewStatus    string         `json:"review_status"`
	ReviewedBy      string         `json:"reviewed_by"`
	ReviewedAt      DateTime       `json:"reviewed_at"`
	DetectedAt      DateTime       `json:"detected_at"`
}

func (row tamperRow) model() *models.TamperRecord {
	return &models.TamperRecord{
		ID:              row.ID,
		EmployeeID:      row.EmployeeID,
		BranchID:        row.BranchID,
		AttemptKind:     models.AttendanceKind(row.AttemptType),
		Kind:            models.TamperKind(row.TamperType),
		Severity:        models.Severity(row.Severity),
		ConfidenceScore: row.ConfidenceScore,
		ActionTaken:     models.TamperAction(row.ActionTaken),
		Details:         row.Details,
		ReviewStatus:    models.ReviewStatus(row.ReviewStatus),
		ReviewedBy:      row.ReviewedBy,
		ReviewedAt:      row.ReviewedAt.Ptr(),
		DetectedAt:      row.DetectedAt.Time,
	}
}

func (r *PocketBase) SaveTamperRecord(ctx context.Context, rec *models.TamperRecord) error {
	_, err := r.create(ctx, "tamper_records", map[string]any{
		"id":               rec.ID,
		"employee_id":      rec.EmployeeID,
		"branch_id":        rec.BranchID,
		"attempt_type":     string(rec.AttemptKind),
		"tamper_type":      string(rec.Kind),
		"severity":         string(rec.Severity),
		"confidence_score": rec.ConfidenceScore,
		"action_taken":     string(rec.ActionTaken),
		"details":          rec.Details,
		"review_status":    string(rec.ReviewStatus),
		"detected_at":      formatTime(rec.DetectedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to create tamper record: %w", err)
	}
	return nil
}

func (r *PocketBase) GetTamperRecord(ctx context.Context, id string) (*models.TamperRecord, error) {
	row, err := getRecord[tamperRow](ctx, r, "tamper_records", id)
	if err != nil {
		return nil, err
	}
	return row.model(), nil
}

// UpdateTamperRecord writes the review fields, the only mutable part of a
// record
func (r *PocketBase) UpdateTamperRecord(ctx context.Context, rec *models.TamperRecord) error {
	return r.update(ctx, "tamper_records", rec.ID, map[string]any{
		"review_status": string(rec.ReviewStatus),
		"reviewed_by":   rec.ReviewedBy,
		"reviewed_at":   formatTimePtr(rec.ReviewedAt),
	})
}

// CountTamperSince counts records that were not cleared by review
func (r *PocketBase) CountTamperSince(ctx context.Context, employeeID string, since time.Time) (int, error) {
	filter := fmt.Sprintf("employee_id=%s && detected_at>=%s && (review_status='pending' || review_status='confirmed')",
		quote(employeeID), quote(formatTime(since)))
	items, err := listRecords[struct {
		ID string `json:"id"`
	}](ctx, r, "tamper_records", filter, "", maxPerPage)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

type lockdownRow struct {
	ID                     string   `json:"id"`
	BranchID               string   `json:"branch_id"`
	Title                  string   `json:"title"`
	Message                string   `json:"message"`
	LockdownType           string   `json:"lockdown_type"`
	Status                 string   `json:"status"`
	StartTime              DateTime `json:"start_time"`
	EndTime                DateTime `json:"end_time"`
	ExemptEmployeeIDs      []string `json:"exempt_employee_ids"`
	ExemptDepartmentIDs    []string `json:"exempt_department_ids"`
	ExemptDesignationIDs   []string `json:"exempt_designation_ids"`
	AllowEmergencyCheckin  bool     `json:"allow_emergency_checkin"`
	AllowEmergencyCheckout bool     `json:"allow_emergency_checkout"`
	CreatedBy              string   `json:"created_by"`
	ActivatedAt            DateTime `json:"activated_at"`
	EndedBy                string   `json:"ended_by"`
	EndedAt                DateTime `json:"ended_at"`
	EndReason              string   `json:"end_reason"`
	CancelledBy            string   `json:"cancelled_by"`
	CancelledAt            DateTime `json:"cancelled_at"`
	CancelReason           string   `json:"cancel_reason"`
}

func (row lockdownRow) model() models.LockdownEvent {
	return models.LockdownEvent{
		ID:                     row.ID,
		BranchID:               row.BranchID,
		Title:                  row.Title,
		Message:                row.Message,
		Type:                   models.LockdownType(row.LockdownType),
		Status:                 models.LockdownStatus(row.Status),
		StartTime:              row.StartTime.Time,
		EndTime:                row.EndTime.Ptr(),
		ExemptEmployeeIDs:      row.ExemptEmployeeIDs,
		ExemptDepartmentIDs:    row.ExemptDepartmentIDs,
		ExemptDesignationIDs:   row.ExemptDesignationIDs,
		AllowEmergencyCheckin:  row.AllowEmergencyCheckin,
		AllowEmergencyCheckout: row.AllowEmergencyCheckout,
		CreatedBy:              row.CreatedBy,
		ActivatedAt:            row.ActivatedAt.Ptr(),
		EndedBy:                row.EndedBy,
		EndedAt:                row.EndedAt.Ptr(),
		EndReason:              row.EndReason,
		CancelledBy:            row.CancelledBy,
		CancelledAt:            row.CancelledAt.Ptr(),
		CancelReason:           row.CancelReason,
	}
}

func lockdownData(ev *models.LockdownEvent) map[string]any {
	return map[string]any{
		"branch_id":                ev.BranchID,
		"title":                    ev.Title,
		"message":                  ev.Message,
		"lockdown_type":            string(ev.Type),
		"status":                   string(ev.Status),
		"start_time":               formatTime(ev.StartTime),
		"end_time":                 formatTimePtr(ev.EndTime),
		"exempt_employee_ids":      ev.ExemptEmployeeIDs,
		"exempt_department_ids":    ev.ExemptDepartmentIDs,
		"exempt_designation_ids":   ev.ExemptDesignationIDs,
		"allow_emergency_checkin":  ev.AllowEmergencyCheckin,
		"allow_emergency_checkout": ev.AllowEmergencyCheckout,
		"created_by":               ev.CreatedBy,
		"activated_at":             formatTimePtr(ev.ActivatedAt),
		"ended_by":                 ev.EndedBy,
		"ended_at":                 formatTimePtr(ev.EndedAt),
		"end_reason":               ev.EndReason,
		"cancelled_by":             ev.CancelledBy,
		"cancelled_at":             formatTimePtr(ev.CancelledAt),
		"cancel_reason":            ev.CancelReason,
	}
}

func (r *PocketBase) listLockdowns(ctx context.Context, filter string) ([]models.LockdownEvent, error) {
	rows, err := listRecords[lockdownRow](ctx, r, "lockdown_events", filter, "start_time", maxPerPage)
	if err != nil {
		return nil, err
	}
	events := make([]models.LockdownEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.model())
	}
	return events, nil
}

// ListActive returns active lockdowns of the branch plus company-wide ones
func (r *PocketBase) ListActive(ctx context.Context, branchID string) ([]models.LockdownEvent, error) {
	filter := fmt.Sprintf("status='active' && (branch_id=%s || branch_id='')", quote(branchID))
	return r.listLockdowns(ctx, filter)
}

func (r *PocketBase) ListByStatus(ctx context.Context, status models.LockdownStatus) ([]models.LockdownEvent, error) {
	return r.listLockdowns(ctx, fmt.Sprintf("status=%s", quote(string(status))))
}

func (r *PocketBase) GetLockdown(ctx context.Context, id string) (*models.LockdownEvent, error) {
	row, err := getRecord[lockdownRow](ctx, r, "lockdown_events", id)
	if err != nil {
		return nil, err
	}
	ev := row.model()
	return &ev, nil
}

func (r *PocketBase) CreateLockdown(ctx context.Context, ev *models.LockdownEvent) error {
	data := lockdownData(ev)
	if ev.ID != "" {
		data["id"] = ev.ID
	}
	id, err := r.create(ctx, "lockdown_events", data)
	if err != nil {
		return fmt.Errorf("failed to create lockdown: %w", err)
	}
	ev.ID = id
	return nil
}

// TransitionLockdown re-reads the lockdown and patches only the status
// fields, so a concurrent transition is never overwritten
func (r *PocketBase) TransitionLockdown(ctx context.Context, ev *models.LockdownEvent, from models.LockdownStatus) error {
	current, err := r.GetLockdown(ctx, ev.ID)
	if err != nil {
		return err
	}
	if current.Status != from {
		return fmt.Errorf("%w: lockdown %s is %s, expected %s", models.ErrIllegalTransition, ev.ID, current.Status, from)
	}
	return r.update(ctx, "lockdown_events", ev.ID, map[string]any{
		"status":        string(ev.Status),
		"activated_at":  formatTimePtr(ev.ActivatedAt),
		"ended_by":      ev.EndedBy,
		"ended_at":      formatTimePtr(ev.EndedAt),
		"end_reason":    ev.EndReason,
		"cancelled_by":  ev.CancelledBy,
		"cancelled_at":  formatTimePtr(ev.CancelledAt),
		"cancel_reason": ev.CancelReason,
	})
}

func (r *PocketBase) SaveLockdownLog(ctx context.Context, entry *models.LockdownAttendanceLog) error {
	_, err := r.create(ctx, "lockdown_attendance_logs", map[string]any{
		"id":          entry.ID,
		"lockdown_id": entry.LockdownID,
		"employee_id": entry.EmployeeID,
		"action":      string(entry.Action),
		"action_type": string(entry.ActionType),
		"allowed":     entry.Allowed,
		"ip_address":  entry.IP,
		"device_id":   entry.DeviceID,
		"at":          formatTime(entry.At),
	})
	if err != nil {
		return fmt.Errorf("failed to create lockdown log: %w", err)
	}
	return nil
}

type livenessRow struct {
	ID                 string   `json:"id"`
	EmployeeID         string   `json:"employee_id"`
	CheckType          string   `json:"check_type"`
	Passed             bool     `json:"passed"`
	ConfidenceScore    float64  `json:"confidence_score"`
	SimilarityScore    float64  `json:"similarity_score"`
	IsSpoofingAttempt  bool     `json:"is_spoofing_attempt"`
	SpoofingType       string   `json:"spoofing_type"`
	SpoofingConfidence float64  `json:"spoofing_confidence"`
	FailureReason      string   `json:"failure_reason"`
	CheckedAt          DateTime `json:"checked_at"`
}

func (r *PocketBase) SaveLivenessCheck(ctx context.Context, check *models.LivenessCheckResult) error {
	_, err := r.create(ctx, "liveness_checks", map[string]any{
		"id":                  check.ID,
		"employee_id":         check.EmployeeID,
		"check_type":          string(check.CheckType),
		"passed":              check.Passed,
		"confidence_score":    check.ConfidenceScore,
		"similarity_score":    check.SimilarityScore,
		"is_spoofing_attempt": check.IsSpoofingAttempt,
		"spoofing_type":       string(check.SpoofingType),
		"spoofing_confidence": check.SpoofingConfidence,
		"failure_reason":      string(check.FailureReason),
		"checked_at":          formatTime(check.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to create liveness check: %w", err)
	}
	return nil
}

func (r *PocketBase) GetLivenessCheck(ctx context.Context, id string) (*models.LivenessCheckResult, error) {
	row, err := getRecord[livenessRow](ctx, r, "liveness_checks", id)
	if err != nil {
		return nil, err
	}
	return &models.LivenessCheckResult{
		ID:                 row.ID,
		EmployeeID:         row.EmployeeID,
		CheckType:          models.LivenessCheckType(row.CheckType),
		Passed:             row.Passed,
		ConfidenceScore:    row.ConfidenceScore,
		SimilarityScore:    row.SimilarityScore,
		IsSpoofingAttempt:  row.IsSpoofingAttempt,
		SpoofingType:       models.SpoofingType(row.SpoofingType),
		SpoofingConfidence: row.SpoofingConfidence,
		FailureReason:      models.ReasonCode(row.FailureReason),
		CreatedAt:          row.CheckedAt.Time,
	}, nil
}

func (r *PocketBase) SaveAuditRecord(ctx context.Context, rec *models.AuditRecord) error {
	_, err := r.create(ctx, "audit_logs", map[string]any{
		"id":                rec.ID,
		"user_id":           rec.UserID,
		"action":            string(rec.Action),
		"entity_type":       rec.EntityType,
		"entity_id":         rec.EntityID,
		"ip_address":        rec.IP,
		"user_agent":        rec.UserAgent,
		"old_values":        rec.Before,
		"new_values":        rec.After,
		"changed_fields":    rec.ChangedFields,
		"severity":          string(rec.Severity),
		"is_suspicious":     rec.IsSuspicious,
		"suspicion_reasons": rec.SuspicionReasons,
		"requires_review":   rec.RequiresReview,
		"at":                formatTime(rec.At),
	})
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *PocketBase) ListLogins(ctx context.Context, userID string, since time.Time) ([]models.LoginEvent, error) {
	filter := fmt.Sprintf("user_id=%s && at>=%s", quote(userID), quote(formatTime(since)))
	rows, err := listRecords[struct {
		UserID string   `json:"user_id"`
		IP     string   `json:"ip_address"`
		At     DateTime `json:"at"`
	}](ctx, r, "login_events", filter, "-at", maxPerPage)
	if err != nil {
		return nil, err
	}
	events := make([]models.LoginEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, models.LoginEvent{UserID: row.UserID, IP: row.IP, At: row.At.Time})
	}
	return events, nil
}
