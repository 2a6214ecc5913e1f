// Package models contains the domain types shared by the verification engine
package models

import (
	"time"
)

// AttendanceKind is the attendance action being attempted
type AttendanceKind string

const (
	KindCheckin  AttendanceKind = "checkin"
	KindCheckout AttendanceKind = "checkout"
)

// Valid reports whether k is a known attendance kind
func (k AttendanceKind) Valid() bool {
	switch k {
	case KindCheckin, KindCheckout:
		return true
	}
	return false
}

// VerificationMethod describes which physical-presence evidence matched
type VerificationMethod string

const (
	MethodNone   VerificationMethod = "none"
	MethodGPS    VerificationMethod = "gps"
	MethodWiFi   VerificationMethod = "wifi"
	MethodBoth   VerificationMethod = "both"
	MethodManual VerificationMethod = "manual"
)

// Employee is the read-only view of an employee used by the engine
type Employee struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	BranchID       string `json:"branch_id"`
	DepartmentID   string `json:"department_id"`
	DesignationID  string `json:"designation_id"`
	FaceReference  string `json:"face_reference"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

// Branch is a physical location employees attend
type Branch struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	GeofenceRadius float64 `json:"geofence_radius"`
	Timezone       string  `json:"timezone"`
}

// Network is a Wi-Fi network registered for a branch
type Network struct {
	ID        string `json:"id"`
	BranchID  string `json:"branch_id"`
	SSID      string `json:"ssid"`
	BSSID     string `json:"bssid"`
	IsPrimary bool   `json:"is_primary"`
	IsActive  bool   `json:"is_active"`
}

// DeviceIntegrity holds client-reported root indicators
type DeviceIntegrity struct {
	HasSuBinary       bool `json:"has_su_binary"`
	HasRootManagerApp bool `json:"has_root_manager_app"`
	TestKeysBuild     bool `json:"test_keys_build"`
}

// Rooted reports whether any root indicator is set
func (d DeviceIntegrity) Rooted() bool {
	return d.HasSuBinary || d.HasRootManagerApp || d.TestKeysBuild
}

// DeviceInfo is request metadata describing the submitting device
type DeviceInfo struct {
	UserAgent string          `json:"user_agent"`
	DeviceID  string          `json:"device_id"`
	IP        string          `json:"ip" validate:"omitempty,ip"`
	Integrity DeviceIntegrity `json:"integrity"`
}

// AttendanceAttempt is a single check-in or check-out request. It is
// consumed once by the orchestrator and never mutated.
type AttendanceAttempt struct {
	EmployeeID      string            `json:"employee_id" validate:"required"`
	BranchID        string            `json:"branch_id" validate:"required"`
	Kind            AttendanceKind    `json:"kind" validate:"required,oneof=checkin checkout"`
	At              time.Time         `json:"at" validate:"required"`
	Latitude        *float64          `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude       *float64          `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	SSID            string            `json:"ssid"`
	BSSID           string            `json:"bssid"`
	FaceImage       string            `json:"face_image"`
	CheckType       LivenessCheckType `json:"check_type" validate:"omitempty,oneof=face blink smile turn_head random"`
	LivenessCheckID string            `json:"liveness_check_id"`
	ClientTimestamp *time.Time        `json:"client_timestamp"`
	Device          DeviceInfo        `json:"device"`
}

// HasLocation reports whether both coordinates were supplied
func (a *AttendanceAttempt) HasLocation() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// ZoneMatch is the work zone a point fell into
type ZoneMatch struct {
	ZoneID     string `json:"zone_id"`
	ZoneName   string `json:"zone_name"`
	Authorized bool   `json:"authorized"`
}

// VerificationResult is the composite decision for one attempt
type VerificationResult struct {
	EmployeeID        string               `json:"employee_id"`
	BranchID          string               `json:"branch_id"`
	Kind              AttendanceKind       `json:"kind"`
	At                time.Time            `json:"at"`
	Date              string               `json:"date"`
	Method            VerificationMethod   `json:"verification_method"`
	IsVerified        bool                 `json:"is_verified"`
	DistanceMeters    *float64             `json:"distance_meters,omitempty"`
	MatchedNetworkID  string               `json:"matched_network_id,omitempty"`
	WindowID          string               `json:"window_id,omitempty"`
	LateMinutes       int                  `json:"late_minutes"`
	EarlyLeaveMinutes int                  `json:"early_leave_minutes"`
	WithinGrace       bool                 `json:"within_grace"`
	Deduction         Deduction            `json:"deduction"`
	TamperFlags       []TamperKind         `json:"tamper_flags"`
	TamperRecords     []TamperRecord       `json:"tamper_records,omitempty"`
	ReputationUnknown bool                 `json:"reputation_unknown"`
	LockdownOutcome   LockdownOutcome      `json:"lockdown_outcome"`
	LockdownID        string               `json:"lockdown_id,omitempty"`
	Zone              *ZoneMatch           `json:"zone,omitempty"`
	Liveness          *LivenessCheckResult `json:"liveness,omitempty"`
}

// HasTamper reports whether kind was flagged for this attempt
func (r *VerificationResult) HasTamper(kind TamperKind) bool {
	for _, k := range r.TamperFlags {
		if k == kind {
			return true
		}
	}
	return false
}

// AttendanceRecord is the persisted attendance row
type AttendanceRecord struct {
	ID     string             `json:"id"`
	Date   string             `json:"date"`
	Result VerificationResult `json:"result"`
}

// DateKey formats t as the attendance day key
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
