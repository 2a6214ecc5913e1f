// Package lockdown implements the lockdown lifecycle and the permission
// decision for attendance actions taken during a lockdown.
//
//	scheduled --activate--> active --end--> ended
//	    |
//	    +--cancel--> cancelled
//
// A lockdown created with a start time in the past is active immediately.
package lockdown

import (
	"fmt"
	"slices"
	"time"

	"attendance-guard/internal/models"
)

// New validates a lockdown and sets its initial status
func New(ev models.LockdownEvent, now time.Time) (models.LockdownEvent, error) {
	if !ev.Type.Valid() {
		return ev, fmt.Errorf("%w: lockdown type %q", models.ErrInvalidInput, ev.Type)
	}
	if ev.StartTime.IsZero() {
		return ev, fmt.Errorf("%w: lockdown start time required", models.ErrInvalidInput)
	}
	if ev.EndTime != nil && !ev.EndTime.After(ev.StartTime) {
		return ev, fmt.Errorf("%w: lockdown end must be after start", models.ErrInvalidInput)
	}

	ev.Status = models.LockdownScheduled
	if !ev.StartTime.After(now) {
		ev.Status = models.LockdownActive
		ev.ActivatedAt = &now
	}
	return ev, nil
}

// Activate moves a scheduled lockdown to active
func Activate(ev *models.LockdownEvent, at time.Time) error {
	if ev.Status != models.LockdownScheduled {
		return illegal(ev, "activate")
	}
	ev.Status = models.LockdownActive
	ev.ActivatedAt = &at
	return nil
}

// End finishes an active lockdown
func End(ev *models.LockdownEvent, endedBy, reason string, at time.Time) error {
	if ev.Status != models.LockdownActive {
		return illegal(ev, "end")
	}
	ev.Status = models.LockdownEnded
	ev.EndedBy = endedBy
	ev.EndReason = reason
	ev.EndedAt = &at
	return nil
}

// Cancel withdraws a lockdown that has not started. Active lockdowns can
// only be ended.
func Cancel(ev *models.LockdownEvent, cancelledBy, reason string, at time.Time) error {
	if ev.Status != models.LockdownScheduled {
		return illegal(ev, "cancel")
	}
	ev.Status = models.LockdownCancelled
	ev.CancelledBy = cancelledBy
	ev.CancelReason = reason
	ev.CancelledAt = &at
	return nil
}

func illegal(ev *models.LockdownEvent, op string) error {
	return fmt.Errorf("%w: cannot %s lockdown %s in status %s", models.ErrIllegalTransition, op, ev.ID, ev.Status)
}

// InEffect reports whether an active lockdown covers instant at
func InEffect(ev *models.LockdownEvent, at time.Time) bool {
	if ev.Status != models.LockdownActive || at.Before(ev.StartTime) {
		return false
	}
	return ev.EndTime == nil || at.Before(*ev.EndTime)
}

// IsExempt reports whether the employee matches any exemption list
func IsExempt(ev *models.LockdownEvent, emp *models.Employee) bool {
	return slices.Contains(ev.ExemptEmployeeIDs, emp.ID) ||
		(emp.DepartmentID != "" && slices.Contains(ev.ExemptDepartmentIDs, emp.DepartmentID)) ||
		(emp.DesignationID != "" && slices.Contains(ev.ExemptDesignationIDs, emp.DesignationID))
}

// Decision is the verdict for one action under one lockdown
type Decision struct {
	Allowed  bool
	Outcome  models.LockdownOutcome
	LogType  models.LockdownLogType
	Lockdown *models.LockdownEvent
}

// IsActionAllowed decides whether emp may perform action while ev is in
// effect. Exemptions always win.
func IsActionAllowed(ev *models.LockdownEvent, action models.AttendanceKind, emp *models.Employee) Decision {
	if IsExempt(ev, emp) {
		return Decision{Allowed: true, Outcome: models.OutcomeExempt, LogType: models.LogExemptAccess, Lockdown: ev}
	}

	checkin := action == models.KindCheckin
	switch ev.Type {
	case models.LockdownFull:
		return blocked(ev, action)
	case models.LockdownCheckinOnly:
		if checkin {
			return blocked(ev, action)
		}
		return allowed(ev, action)
	case models.LockdownCheckoutOnly:
		if checkin {
			return allowed(ev, action)
		}
		return blocked(ev, action)
	case models.LockdownPartial:
		if (checkin && ev.AllowEmergencyCheckin) || (!checkin && ev.AllowEmergencyCheckout) {
			return emergency(ev, action)
		}
		return blocked(ev, action)
	case models.LockdownEmergency:
		if !checkin && ev.AllowEmergencyCheckout {
			return emergency(ev, action)
		}
		return blocked(ev, action)
	}
	// unknown types fail closed
	return blocked(ev, action)
}

func blocked(ev *models.LockdownEvent, action models.AttendanceKind) Decision {
	t := models.LogBlockedCheckin
	if action == models.KindCheckout {
		t = models.LogBlockedCheckout
	}
	return Decision{Allowed: false, Outcome: models.OutcomeBlocked, LogType: t, Lockdown: ev}
}

func emergency(ev *models.LockdownEvent, action models.AttendanceKind) Decision {
	t := models.LogEmergencyCheckin
	if action == models.KindCheckout {
		t = models.LogEmergencyCheckout
	}
	return Decision{Allowed: true, Outcome: models.OutcomeEmergencyOverride, LogType: t, Lockdown: ev}
}

func allowed(ev *models.LockdownEvent, action models.AttendanceKind) Decision {
	t := models.LogAllowedCheckin
	if action == models.KindCheckout {
		t = models.LogAllowedCheckout
	}
	return Decision{Allowed: true, Outcome: models.OutcomeAllowed, LogType: t, Lockdown: ev}
}
