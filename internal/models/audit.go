package models

import "time"

// AuditAction is the verb of an audited mutation
type AuditAction string

const (
	AuditCreate           AuditAction = "create"
	AuditUpdate           AuditAction = "update"
	AuditDelete           AuditAction = "delete"
	AuditLogin            AuditAction = "login"
	AuditLogout           AuditAction = "logout"
	AuditCheckin          AuditAction = "checkin"
	AuditCheckout         AuditAction = "checkout"
	AuditApprove          AuditAction = "approve"
	AuditReject           AuditAction = "reject"
	AuditOverride         AuditAction = "override"
	AuditBulkAction       AuditAction = "bulk_action"
	AuditSettingsChange   AuditAction = "settings_change"
	AuditPermissionChange AuditAction = "permission_change"
)

// AuditEntry is a mutating action submitted for classification
type AuditEntry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Action     AuditAction    `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	IP         string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	Before     map[string]any `json:"old_values"`
	After      map[string]any `json:"new_values"`
	At         time.Time      `json:"created_at"`
}

// AuditClassification is the derived view of an entry
type AuditClassification struct {
	ChangedFields    []string `json:"changed_fields"`
	Severity         Severity `json:"severity"`
	IsSuspicious     bool     `json:"is_suspicious"`
	SuspicionReasons []string `json:"suspicion_reasons,omitempty"`
	RequiresReview   bool     `json:"requires_review"`
}

// AuditRecord is an entry with its classification, as persisted
type AuditRecord struct {
	AuditEntry
	AuditClassification
}

// LoginEvent is one successful login used for IP-spread checks
type LoginEvent struct {
	UserID string    `json:"user_id"`
	IP     string    `json:"ip_address"`
	At     time.Time `json:"created_at"`
}
