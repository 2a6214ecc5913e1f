package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attendance-guard/internal/models"
)

func TestChangedFields(t *testing.T) {
	tests := []struct {
		name   string
		before map[string]any
		after  map[string]any
		want   []string
	}{
		{"No change", map[string]any{"name": "A"}, map[string]any{"name": "A"}, nil},
		{"Value changed", map[string]any{"name": "A", "age": 30}, map[string]any{"name": "B", "age": 30}, []string{"name"}},
		{"Added and removed", map[string]any{"old": 1}, map[string]any{"new": 2}, []string{"new"}},
		{"Only removed", map[string]any{"salary": 100, "name": "A"}, map[string]any{"name": "A"}, nil},
		{"Create", nil, map[string]any{"b": 1, "a": 2}, []string{"a", "b"}},
		{"Nested value", map[string]any{"tags": []string{"x"}}, map[string]any{"tags": []string{"x", "y"}}, []string{"tags"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChangedFields(tt.before, tt.after))
		})
	}
}

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		action  models.AuditAction
		changed []string
		want    models.Severity
	}{
		{models.AuditDelete, nil, models.SeverityCritical},
		{models.AuditPermissionChange, nil, models.SeverityCritical},
		{models.AuditUpdate, []string{"salary"}, models.SeverityCritical},
		{models.AuditCreate, []string{"email"}, models.SeverityCritical},
		{models.AuditOverride, nil, models.SeverityHigh},
		{models.AuditBulkAction, nil, models.SeverityHigh},
		{models.AuditSettingsChange, []string{"theme"}, models.SeverityHigh},
		{models.AuditUpdate, []string{"phone"}, models.SeverityMedium},
		{models.AuditApprove, nil, models.SeverityMedium},
		{models.AuditReject, nil, models.SeverityMedium},
		{models.AuditCreate, nil, models.SeverityLow},
		{models.AuditLogin, nil, models.SeverityLow},
		{models.AuditLogout, nil, models.SeverityLow},
		{models.AuditCheckin, nil, models.SeverityLow},
		{models.AuditCheckout, nil, models.SeverityLow},
		{"export", nil, models.SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, SeverityOf(tt.action, tt.changed))
		})
	}
}

func TestOffHours(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC) }

	assert.True(t, OffHours(day(4, 59)))
	assert.False(t, OffHours(day(5, 0)))
	assert.False(t, OffHours(day(22, 59)))
	assert.True(t, OffHours(day(23, 0)))
	assert.True(t, OffHours(day(0, 30)))
}

type loginList struct {
	events []models.LoginEvent
	err    error
}

func (l loginList) ListLogins(ctx context.Context, userID string, since time.Time) ([]models.LoginEvent, error) {
	var out []models.LoginEvent
	for _, ev := range l.events {
		if ev.UserID == userID && !ev.At.Before(since) {
			out = append(out, ev)
		}
	}
	return out, l.err
}

func TestClassifySuspicion(t *testing.T) {
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	logins := loginList{events: []models.LoginEvent{
		{UserID: "u1", IP: "1.1.1.1", At: noon.Add(-50 * time.Minute)},
		{UserID: "u1", IP: "2.2.2.2", At: noon.Add(-40 * time.Minute)},
		{UserID: "u1", IP: "3.3.3.3", At: noon.Add(-30 * time.Minute)},
		{UserID: "u1", IP: "3.3.3.3", At: noon.Add(-20 * time.Minute)},
		{UserID: "u1", IP: "9.9.9.9", At: noon.Add(-2 * time.Hour)},
		{UserID: "u2", IP: "4.4.4.4", At: noon.Add(-10 * time.Minute)},
	}}

	tests := []struct {
		name       string
		entry      models.AuditEntry
		suspicious bool
		review     bool
	}{
		{"Three IPs is fine", models.AuditEntry{UserID: "u1", Action: models.AuditUpdate, At: noon}, false, false},
		{"Fourth IP on login", models.AuditEntry{UserID: "u1", Action: models.AuditLogin, IP: "5.5.5.5", At: noon}, true, true},
		{"Repeat IP on login", models.AuditEntry{UserID: "u1", Action: models.AuditLogin, IP: "1.1.1.1", At: noon}, false, false},
		{"Delete at night", models.AuditEntry{UserID: "u2", Action: models.AuditDelete, At: time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)}, true, true},
		{"Settings at night", models.AuditEntry{UserID: "u2", Action: models.AuditSettingsChange, At: time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)}, true, true},
		{"Delete at noon is critical only", models.AuditEntry{UserID: "u2", Action: models.AuditDelete, At: noon}, false, true},
		{"Update at night", models.AuditEntry{UserID: "u2", Action: models.AuditUpdate, At: time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)}, false, false},
	}

	c := NewClassifier(logins, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, err := c.Classify(context.Background(), &tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.suspicious, cls.IsSuspicious)
			assert.Equal(t, tt.review, cls.RequiresReview)
			assert.Equal(t, tt.suspicious, len(cls.SuspicionReasons) > 0)
		})
	}
}

func TestClassifyUsesLocation(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*60*60)
	// 20:00 UTC is 03:00 the next morning in Bangkok
	entry := models.AuditEntry{Action: models.AuditPermissionChange, At: time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)}

	cls, err := NewClassifier(nil, bangkok).Classify(context.Background(), &entry)
	require.NoError(t, err)
	assert.True(t, cls.IsSuspicious)

	cls, err = NewClassifier(nil, nil).Classify(context.Background(), &entry)
	require.NoError(t, err)
	assert.False(t, cls.IsSuspicious)
}

func TestClassifyHistoryError(t *testing.T) {
	boom := errors.New("history down")
	_, err := NewClassifier(loginList{err: boom}, nil).Classify(context.Background(),
		&models.AuditEntry{UserID: "u1", Action: models.AuditLogin, At: time.Now()})
	assert.ErrorIs(t, err, boom)
}

type recordingStore struct {
	saved []models.AuditRecord
}

func (s *recordingStore) SaveAuditRecord(ctx context.Context, rec *models.AuditRecord) error {
	s.saved = append(s.saved, *rec)
	return nil
}

type recordingAlerter struct {
	alerts []models.AuditRecord
	err    error
}

func (a *recordingAlerter) AlertAudit(ctx context.Context, rec *models.AuditRecord) error {
	a.alerts = append(a.alerts, *rec)
	return a.err
}

func TestServiceRecord(t *testing.T) {
	store := &recordingStore{}
	alerter := &recordingAlerter{err: errors.New("telegram down")}
	svc := NewService(NewClassifier(nil, nil), store, alerter, zap.NewNop())
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	rec, err := svc.Record(context.Background(), models.AuditEntry{
		UserID: "admin", Action: models.AuditUpdate, At: noon,
		Before: map[string]any{"salary": 100}, After: map[string]any{"salary": 200},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.SeverityCritical, rec.Severity)
	assert.Equal(t, []string{"salary"}, rec.ChangedFields)
	assert.Len(t, alerter.alerts, 1)

	_, err = svc.Record(context.Background(), models.AuditEntry{UserID: "admin", Action: models.AuditCreate, At: noon})
	require.NoError(t, err)
	assert.Len(t, store.saved, 2)
	assert.Len(t, alerter.alerts, 1)
}
