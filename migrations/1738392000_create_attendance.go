package migrations

import (
	"github.com/pocketbase/pocketbase/core"

	"attendance-guard/internal/models"
)

var attendanceCollections = []string{
	"attendance",
	"tamper_records",
	"lockdown_events",
	"lockdown_attendance_logs",
	"liveness_checks",
	"audit_logs",
	"login_events",
}

var (
	kinds      = []models.AttendanceKind{models.KindCheckin, models.KindCheckout}
	severities = []models.Severity{
		models.SeverityInfo, models.SeverityLow, models.SeverityMedium,
		models.SeverityHigh, models.SeverityCritical,
	}
)

func init() {
	core.AppMigrations.Register(func(app core.App) error {
		attendance := newCollection("attendance")
		attendance.Fields.Add(
			text("employee_id", true),
			text("branch_id", true),
			choice("type", true, kinds...),
			text("date", true),
			date("at", true),
			choice("verification_method", true,
				models.MethodNone, models.MethodGPS, models.MethodWiFi, models.MethodBoth, models.MethodManual),
			flag("is_verified"),
			number("distance_meters", false),
			text("matched_network_id", false),
			text("window_id", false),
			number("late_minutes", true),
			number("early_leave_minutes", true),
			flag("within_grace"),
			text("deduction_tier_id", false),
			number("deduction_points", true),
			number("deduction_percentage", false),
			list("tamper_flags"),
			flag("reputation_unknown"),
			text("lockdown_outcome", false),
			text("lockdown_id", false),
			text("zone_id", false),
			flag("zone_authorized"),
			text("liveness_check_id", false),
		)
		// one checkin and one checkout per employee and local date
		attendance.AddIndex("idx_attendance_once", true, "employee_id, type, date", "")

		tampers := newCollection("tamper_records")
		tampers.Fields.Add(
			text("employee_id", true),
			text("branch_id", false),
			choice("attempt_type", false, kinds...),
			choice("tamper_type", true,
				models.TamperGPSSpoof, models.TamperPhotoSpoof, models.TamperTimeManipulation,
				models.TamperDeviceClone, models.TamperProxyVPN, models.TamperRootedDevice,
				models.TamperEmulator, models.TamperAutomation, models.TamperDeepfake, models.TamperOther),
			choice("severity", true, severities...),
			number("confidence_score", false),
			choice("action_taken", true, models.ActionLogged, models.ActionAlerted, models.ActionBlocked),
			list("details"),
			choice("review_status", true,
				models.ReviewPending, models.ReviewConfirmed, models.ReviewFalsePositive, models.ReviewDismissed),
			text("reviewed_by", false),
			date("reviewed_at", false),
			date("detected_at", true),
		)
		tampers.AddIndex("idx_tamper_records_employee", false, "employee_id, detected_at", "")

		lockdowns := newCollection("lockdown_events")
		lockdowns.Fields.Add(
			text("branch_id", false),
			text("title", true),
			&core.TextField{Name: "message", Max: 2000},
			choice("lockdown_type", true,
				models.LockdownFull, models.LockdownPartial, models.LockdownCheckinOnly,
				models.LockdownCheckoutOnly, models.LockdownEmergency),
			choice("status", true,
				models.LockdownScheduled, models.LockdownActive, models.LockdownEnded, models.LockdownCancelled),
			date("start_time", true),
			date("end_time", false),
			list("exempt_employee_ids"),
			list("exempt_department_ids"),
			list("exempt_designation_ids"),
			flag("allow_emergency_checkin"),
			flag("allow_emergency_checkout"),
			text("created_by", false),
			date("activated_at", false),
			text("ended_by", false),
			date("ended_at", false),
			text("end_reason", false),
			text("cancelled_by", false),
			date("cancelled_at", false),
			text("cancel_reason", false),
		)
		lockdowns.AddIndex("idx_lockdown_events_status", false, "status, branch_id", "")

		lockdownLogs := newCollection("lockdown_attendance_logs")
		lockdownLogs.Fields.Add(
			text("lockdown_id", true),
			text("employee_id", true),
			choice("action", true, kinds...),
			choice("action_type", true,
				models.LogExemptAccess, models.LogEmergencyCheckin, models.LogEmergencyCheckout,
				models.LogBlockedCheckin, models.LogBlockedCheckout,
				models.LogAllowedCheckin, models.LogAllowedCheckout),
			flag("allowed"),
			text("ip_address", false),
			text("device_id", false),
			date("at", true),
		)

		liveness := newCollection("liveness_checks")
		liveness.Fields.Add(
			text("employee_id", true),
			choice("check_type", true,
				models.CheckFace, models.CheckBlink, models.CheckSmile, models.CheckTurnHead, models.CheckRandom),
			flag("passed"),
			number("confidence_score", false),
			number("similarity_score", false),
			flag("is_spoofing_attempt"),
			text("spoofing_type", false),
			number("spoofing_confidence", false),
			text("failure_reason", false),
			date("checked_at", true),
		)

		audits := newCollection("audit_logs")
		audits.Fields.Add(
			text("user_id", false),
			text("action", true),
			text("entity_type", true),
			text("entity_id", false),
			text("ip_address", false),
			&core.TextField{Name: "user_agent", Max: 1024},
			list("old_values"),
			list("new_values"),
			list("changed_fields"),
			choice("severity", true, severities...),
			flag("is_suspicious"),
			list("suspicion_reasons"),
			flag("requires_review"),
			date("at", true),
		)
		audits.AddIndex("idx_audit_logs_review", false, "requires_review, at", "")

		logins := newCollection("login_events")
		logins.Fields.Add(
			text("user_id", true),
			text("ip_address", true),
			date("at", true),
		)
		logins.AddIndex("idx_login_events_user", false, "user_id, at", "")

		return saveAll(app, attendance, tampers, lockdowns, lockdownLogs, liveness, audits, logins)
	}, func(app core.App) error {
		return dropAll(app, attendanceCollections...)
	})
}
