package repository

import (
	"context"
	"fmt"

	"attendance-guard/internal/models"
)

func (r *PocketBase) HasAttendance(ctx context.Context, employeeID string, kind models.AttendanceKind, date string) (bool, error) {
	filter := fmt.Sprintf("employee_id=%s && type=%s && date=%s", quote(employeeID), quote(string(kind)), quote(date))
	items, err := listRecords[struct {
		ID string `json:"id"`
	}](ctx, r, "attendance", filter, "", 1)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// SaveAttendance inserts the row. The unique index on (employee_id, type,
// date) is the authoritative duplicate guard.
func (r *PocketBase) SaveAttendance(ctx context.Context, rec *models.AttendanceRecord) error {
	res := rec.Result
	data := map[string]any{
		"employee_id":          res.EmployeeID,
		"branch_id":            res.BranchID,
		"type":                 string(res.Kind),
		"date":                 rec.Date,
		"at":                   formatTime(res.At),
		"verification_method":  string(res.Method),
		"is_verified":          res.IsVerified,
		"matched_network_id":   res.MatchedNetworkID,
		"window_id":            res.WindowID,
		"late_minutes":         res.LateMinutes,
		"early_leave_minutes":  res.EarlyLeaveMinutes,
		"within_grace":         res.WithinGrace,
		"deduction_tier_id":    res.Deduction.TierID,
		"deduction_points":     res.Deduction.Points,
		"deduction_percentage": res.Deduction.Percentage,
		"tamper_flags":         res.TamperFlags,
		"reputation_unknown":   res.ReputationUnknown,
		"lockdown_outcome":     string(res.LockdownOutcome),
		"lockdown_id":          res.LockdownID,
	}
	if res.DistanceMeters != nil {
		data["distance_meters"] = *res.DistanceMeters
	}
	if res.Zone != nil {
		data["zone_id"] = res.Zone.ZoneID
		data["zone_authorized"] = res.Zone.Authorized
	}
	if res.Liveness != nil {
		data["liveness_check_id"] = res.Liveness.ID
	}

	id, err := r.create(ctx, "attendance", data)
	if isNotUnique(err) {
		return fmt.Errorf("%s %s on %s: %w", res.EmployeeID, res.Kind, rec.Date, models.ErrAlreadyRecorded)
	}
	if err != nil {
		return fmt.Errorf("failed to create attendance: %w", err)
	}
	rec.ID = id
	return nil
}
