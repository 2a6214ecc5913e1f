package models

import "time"

// TamperKind classifies a detected integrity violation
type TamperKind string

const (
	TamperGPSSpoof         TamperKind = "gps_spoof"
	TamperPhotoSpoof       TamperKind = "photo_spoof"
	TamperTimeManipulation TamperKind = "time_manipulation"
	TamperDeviceClone      TamperKind = "device_clone"
	TamperProxyVPN         TamperKind = "proxy_vpn"
	TamperRootedDevice     TamperKind = "rooted_device"
	TamperEmulator         TamperKind = "emulator"
	TamperAutomation       TamperKind = "automation"
	TamperDeepfake         TamperKind = "deepfake"
	TamperOther            TamperKind = "other"
)

// Severity is shared by tamper records and audit classification.
// Tamper records never carry SeverityInfo.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from info (0) to critical (4)
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return -1
}

// TamperAction is what the system did about a detection
type TamperAction string

const (
	ActionLogged  TamperAction = "logged"
	ActionAlerted TamperAction = "alerted"
	ActionBlocked TamperAction = "blocked"
)

// ReviewStatus tracks the human review of a tamper record
type ReviewStatus string

const (
	ReviewPending       ReviewStatus = "pending"
	ReviewConfirmed     ReviewStatus = "confirmed"
	ReviewFalsePositive ReviewStatus = "false_positive"
	ReviewDismissed     ReviewStatus = "dismissed"
)

// Valid reports whether s is a known review status
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewConfirmed, ReviewFalsePositive, ReviewDismissed:
		return true
	}
	return false
}

// TamperRecord is a logged detection. Only ReviewStatus and the review
// fields change after creation.
type TamperRecord struct {
	ID              string         `json:"id"`
	EmployeeID      string         `json:"employee_id"`
	BranchID        string         `json:"branch_id"`
	AttemptKind     AttendanceKind `json:"attempt_kind"`
	Kind            TamperKind     `json:"tamper_type"`
	Severity        Severity       `json:"severity"`
	ConfidenceScore float64        `json:"confidence_score"`
	ActionTaken     TamperAction   `json:"action_taken"`
	Details         map[string]any `json:"details"`
	ReviewStatus    ReviewStatus   `json:"review_status"`
	ReviewedBy      string         `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	DetectedAt      time.Time      `json:"detected_at"`
}
