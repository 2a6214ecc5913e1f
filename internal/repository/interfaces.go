// Package repository defines the storage boundaries of the engine and
// their PocketBase REST implementations. All queries are pre-scoped: the
// engine never filters by tenant itself.
package repository

import (
	"context"
	"time"

	"attendance-guard/internal/models"
)

// EmployeeDirectory looks up employees. Missing employees yield
// models.ErrNotFound.
type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, id string) (*models.Employee, error)
}

// BranchRegistry looks up branch locations
type BranchRegistry interface {
	GetBranch(ctx context.Context, id string) (*models.Branch, error)
}

// NetworkRegistry lists the Wi-Fi networks registered for a branch
type NetworkRegistry interface {
	ListNetworks(ctx context.Context, branchID string) ([]models.Network, error)
}

// WindowStore lists active time windows, global and branch specific, in
// configured order
type WindowStore interface {
	ListWindows(ctx context.Context, kind models.AttendanceKind) ([]models.TimeWindow, error)
}

// TierStore lists the deduction tiers
type TierStore interface {
	ListTiers(ctx context.Context) ([]models.DeductionTier, error)
}

// ZoneStore lists the work zones of a branch
type ZoneStore interface {
	ListZones(ctx context.Context, branchID string) ([]models.WorkZone, error)
}

// LockdownStore reads and updates lockdown events
type LockdownStore interface {
	ListActive(ctx context.Context, branchID string) ([]models.LockdownEvent, error)
	ListByStatus(ctx context.Context, status models.LockdownStatus) ([]models.LockdownEvent, error)
	GetLockdown(ctx context.Context, id string) (*models.LockdownEvent, error)
	CreateLockdown(ctx context.Context, ev *models.LockdownEvent) error
	// TransitionLockdown writes the status fields of ev only while the
	// stored status is still from, else models.ErrIllegalTransition
	TransitionLockdown(ctx context.Context, ev *models.LockdownEvent, from models.LockdownStatus) error
}

// LockdownLogStore persists lockdown attendance logs
type LockdownLogStore interface {
	SaveLockdownLog(ctx context.Context, entry *models.LockdownAttendanceLog) error
}

// AttendanceStore is the attendance persistence sink. SaveAttendance
// returns models.ErrAlreadyRecorded when the (employee, kind, date) row
// exists.
type AttendanceStore interface {
	HasAttendance(ctx context.Context, employeeID string, kind models.AttendanceKind, date string) (bool, error)
	SaveAttendance(ctx context.Context, rec *models.AttendanceRecord) error
}

// TamperStore persists tamper records and answers repeat-offender queries
type TamperStore interface {
	SaveTamperRecord(ctx context.Context, rec *models.TamperRecord) error
	GetTamperRecord(ctx context.Context, id string) (*models.TamperRecord, error)
	UpdateTamperRecord(ctx context.Context, rec *models.TamperRecord) error
	CountTamperSince(ctx context.Context, employeeID string, since time.Time) (int, error)
}

// LivenessStore persists liveness check results
type LivenessStore interface {
	SaveLivenessCheck(ctx context.Context, check *models.LivenessCheckResult) error
	GetLivenessCheck(ctx context.Context, id string) (*models.LivenessCheckResult, error)
}

// AuditStore persists classified audit records
type AuditStore interface {
	SaveAuditRecord(ctx context.Context, rec *models.AuditRecord) error
}

// LoginHistory lists a user's logins since an instant
type LoginHistory interface {
	ListLogins(ctx context.Context, userID string, since time.Time) ([]models.LoginEvent, error)
}

// DeviceBindings resolves the employee a device is registered to and
// binds devices on first use
type DeviceBindings interface {
	OwnerOf(ctx context.Context, deviceID string) (string, error)
	BindDevice(ctx context.Context, deviceID, employeeID string) error
}

var (
	_ EmployeeDirectory = (*PocketBase)(nil)
	_ BranchRegistry    = (*PocketBase)(nil)
	_ NetworkRegistry   = (*PocketBase)(nil)
	_ WindowStore       = (*PocketBase)(nil)
	_ TierStore         = (*PocketBase)(nil)
	_ ZoneStore         = (*PocketBase)(nil)
	_ LockdownStore     = (*PocketBase)(nil)
	_ LockdownLogStore  = (*PocketBase)(nil)
	_ AttendanceStore   = (*PocketBase)(nil)
	_ TamperStore       = (*PocketBase)(nil)
	_ LivenessStore     = (*PocketBase)(nil)
	_ AuditStore        = (*PocketBase)(nil)
	_ LoginHistory      = (*PocketBase)(nil)
	_ DeviceBindings    = (*PocketBase)(nil)
)
