package models

import "time"

// LockdownType selects which actions a lockdown blocks
type LockdownType string

const (
	LockdownFull         LockdownType = "full"
	LockdownPartial      LockdownType = "partial"
	LockdownCheckinOnly  LockdownType = "checkin_only"
	LockdownCheckoutOnly LockdownType = "checkout_only"
	LockdownEmergency    LockdownType = "emergency"
)

// Valid reports whether t is a known lockdown type
func (t LockdownType) Valid() bool {
	switch t {
	case LockdownFull, LockdownPartial, LockdownCheckinOnly, LockdownCheckoutOnly, LockdownEmergency:
		return true
	}
	return false
}

// LockdownStatus is the lockdown lifecycle state
type LockdownStatus string

const (
	LockdownScheduled LockdownStatus = "scheduled"
	LockdownActive    LockdownStatus = "active"
	LockdownEnded     LockdownStatus = "ended"
	LockdownCancelled LockdownStatus = "cancelled"
)

// LockdownOutcome is the lockdown verdict carried on a verification result
type LockdownOutcome string

const (
	OutcomeAllowed           LockdownOutcome = "allowed"
	OutcomeBlocked           LockdownOutcome = "blocked"
	OutcomeEmergencyOverride LockdownOutcome = "emergency_override"
	OutcomeExempt            LockdownOutcome = "exempt"
)

// LockdownEvent is an administrator-declared lockdown. An empty BranchID
// applies it company-wide.
type LockdownEvent struct {
	ID                     string         `json:"id"`
	BranchID               string         `json:"branch_id"`
	Title                  string         `json:"title"`
	Message                string         `json:"message"`
	Type                   LockdownType   `json:"lockdown_type"`
	Status                 LockdownStatus `json:"status"`
	StartTime              time.Time      `json:"start_time"`
	EndTime                *time.Time     `json:"end_time"`
	ExemptEmployeeIDs      []string       `json:"exempt_employee_ids"`
	ExemptDepartmentIDs    []string       `json:"exempt_department_ids"`
	ExemptDesignationIDs   []string       `json:"exempt_designation_ids"`
	AllowEmergencyCheckin  bool           `json:"allow_emergency_checkin"`
	AllowEmergencyCheckout bool           `json:"allow_emergency_checkout"`
	CreatedBy              string         `json:"created_by"`
	ActivatedAt            *time.Time     `json:"activated_at"`
	EndedBy                string         `json:"ended_by"`
	EndedAt                *time.Time     `json:"ended_at"`
	EndReason              string         `json:"end_reason"`
	CancelledBy            string         `json:"cancelled_by"`
	CancelledAt            *time.Time     `json:"cancelled_at"`
	CancelReason           string         `json:"cancel_reason"`
}

// LockdownLogType tags a lockdown attendance log entry
type LockdownLogType string

const (
	LogExemptAccess      LockdownLogType = "exempt_access"
	LogEmergencyCheckin  LockdownLogType = "emergency_checkin"
	LogEmergencyCheckout LockdownLogType = "emergency_checkout"
	LogBlockedCheckin    LockdownLogType = "blocked_checkin"
	LogBlockedCheckout   LockdownLogType = "blocked_checkout"
	LogAllowedCheckin    LockdownLogType = "allowed_checkin"
	LogAllowedCheckout   LockdownLogType = "allowed_checkout"
)

// LockdownAttendanceLog records one attendance attempt made under a lockdown
type LockdownAttendanceLog struct {
	ID         string          `json:"id"`
	LockdownID string          `json:"lockdown_id"`
	EmployeeID string          `json:"employee_id"`
	Action     AttendanceKind  `json:"action"`
	ActionType LockdownLogType `json:"action_type"`
	Allowed    bool            `json:"allowed"`
	IP         string          `json:"ip_address"`
	DeviceID   string          `json:"device_id"`
	At         time.Time       `json:"attempted_at"`
}
