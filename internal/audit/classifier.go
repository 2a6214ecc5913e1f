// Package audit classifies mutating actions for the audit trail and
// records them.
package audit

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"time"

	"attendance-guard/internal/models"
)

// SensitiveFields raise any change touching them to critical
var SensitiveFields = []string{"salary", "password", "role", "permissions", "email"}

const (
	maxLoginIPs   = 3
	loginWindow   = time.Hour
	businessStart = 5
	businessEnd   = 23
)

// LoginHistory returns logins by a user since a given instant
type LoginHistory interface {
	ListLogins(ctx context.Context, userID string, since time.Time) ([]models.LoginEvent, error)
}

// ChangedFields returns, sorted, the keys of after whose value is new or
// differs from before. Keys dropped from after are not reported.
func ChangedFields(before, after map[string]any) []string {
	var changed []string
	for k, v := range after {
		old, ok := before[k]
		if !ok || !reflect.DeepEqual(old, v) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// SeverityOf rates an action given the fields it changed
func SeverityOf(action models.AuditAction, changed []string) models.Severity {
	for _, f := range changed {
		if slices.Contains(SensitiveFields, f) {
			return models.SeverityCritical
		}
	}

	switch action {
	case models.AuditDelete, models.AuditPermissionChange:
		return models.SeverityCritical
	case models.AuditOverride, models.AuditBulkAction, models.AuditSettingsChange:
		return models.SeverityHigh
	case models.AuditUpdate, models.AuditApprove, models.AuditReject:
		return models.SeverityMedium
	case models.AuditCreate, models.AuditLogin, models.AuditLogout, models.AuditCheckin, models.AuditCheckout:
		return models.SeverityLow
	}
	return models.SeverityInfo
}

// IsSensitiveAction reports actions that are suspicious off hours
func IsSensitiveAction(action models.AuditAction) bool {
	switch action {
	case models.AuditDelete, models.AuditPermissionChange, models.AuditSettingsChange:
		return true
	}
	return false
}

// OffHours reports whether t falls outside 05:00-23:00 local time
func OffHours(t time.Time) bool {
	h := t.Hour()
	return h < businessStart || h >= businessEnd
}

// Classifier computes audit classifications
type Classifier struct {
	logins   LoginHistory
	location *time.Location
}

// NewClassifier creates a classifier. Business hours are evaluated in loc;
// nil means UTC.
func NewClassifier(logins LoginHistory, loc *time.Location) *Classifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Classifier{logins: logins, location: loc}
}

// Classify derives changed fields, severity and suspicion for an entry
func (c *Classifier) Classify(ctx context.Context, entry *models.AuditEntry) (models.AuditClassification, error) {
	changed := ChangedFields(entry.Before, entry.After)
	cls := models.AuditClassification{
		ChangedFields: changed,
		Severity:      SeverityOf(entry.Action, changed),
	}

	distinct, err := c.distinctLoginIPs(ctx, entry)
	if err != nil {
		return cls, err
	}
	if distinct > maxLoginIPs {
		cls.SuspicionReasons = append(cls.SuspicionReasons,
			fmt.Sprintf("%d distinct login IPs in the last hour", distinct))
	}
	if IsSensitiveAction(entry.Action) && OffHours(entry.At.In(c.location)) {
		cls.SuspicionReasons = append(cls.SuspicionReasons,
			fmt.Sprintf("%s outside business hours", entry.Action))
	}

	cls.IsSuspicious = len(cls.SuspicionReasons) > 0
	cls.RequiresReview = cls.IsSuspicious || cls.Severity == models.SeverityCritical
	return cls, nil
}

func (c *Classifier) distinctLoginIPs(ctx context.Context, entry *models.AuditEntry) (int, error) {
	if c.logins == nil || entry.UserID == "" {
		return 0, nil
	}
	events, err := c.logins.ListLogins(ctx, entry.UserID, entry.At.Add(-loginWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to list logins: %w", err)
	}

	ips := make(map[string]struct{}, len(events)+1)
	for _, ev := range events {
		if ev.IP != "" && !ev.At.After(entry.At) {
			ips[ev.IP] = struct{}{}
		}
	}
	if entry.Action == models.AuditLogin && entry.IP != "" {
		ips[entry.IP] = struct{}{}
	}
	return len(ips), nil
}
