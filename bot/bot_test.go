package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"attendance-guard/internal/models"
)

type fakeAPI struct {
	sent    []tgbotapi.MessageConfig
	sendErr error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

type fakeLockdowns struct {
	events []models.LockdownEvent
	err    error
}

func (f *fakeLockdowns) ListActive(ctx context.Context, branchID string) ([]models.LockdownEvent, error) {
	return f.events, f.err
}

func TestAttendanceMessage(t *testing.T) {
	emp := &models.Employee{ID: "e1", Name: "Somchai"}
	at := time.Date(2026, 3, 2, 9, 20, 0, 0, time.UTC)

	tests := []struct {
		name     string
		res      models.VerificationResult
		contains []string
		excludes []string
	}{
		{
			name:     "On time checkin",
			res:      models.VerificationResult{Kind: models.KindCheckin, At: at, Method: models.MethodGPS, IsVerified: true},
			contains: []string{"บันทึกเวลาเข้างานแล้ว", "ตรงเวลา", "GPS", "09:20"},
			excludes: []string{"เข้าสาย", "รอตรวจสอบ"},
		},
		{
			name: "Late checkin with deduction",
			res: models.VerificationResult{Kind: models.KindCheckin, At: at, Method: models.MethodBoth, IsVerified: true,
				LateMinutes: 20, Deduction: models.Deduction{Points: 5}},
			contains: []string{"เข้าสาย 20 นาที", "หัก 5 คะแนน", "Wi-Fi + GPS"},
		},
		{
			name:     "Early checkout",
			res:      models.VerificationResult{Kind: models.KindCheckout, At: at, Method: models.MethodWiFi, IsVerified: true, EarlyLeaveMinutes: 30},
			contains: []string{"บันทึกเวลาออกงานแล้ว", "ออกก่อนเวลา 30 นาที"},
			excludes: []string{"ตรงเวลา"},
		},
		{
			name:     "Unverified",
			res:      models.VerificationResult{Kind: models.KindCheckin, At: at, Method: models.MethodManual},
			contains: []string{"ไม่ระบุ", "รอตรวจสอบ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AttendanceMessage(emp, &tt.res)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("message missing %q:\n%s", want, got)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("message should not contain %q:\n%s", bad, got)
				}
			}
		})
	}
}

func TestNotifyAttendance(t *testing.T) {
	api := &fakeAPI{}
	b := NewWithAPI(api, 100, nil, zap.NewNop())
	res := &models.VerificationResult{Kind: models.KindCheckin}

	b.NotifyAttendance(&models.Employee{ID: "e1"}, res)
	if len(api.sent) != 0 {
		t.Fatalf("sent %d messages to employee without chat id", len(api.sent))
	}

	b.NotifyAttendance(&models.Employee{ID: "e2", TelegramChatID: 555}, res)
	if len(api.sent) != 1 || api.sent[0].ChatID != 555 {
		t.Fatalf("sent = %+v", api.sent)
	}
}

func TestAlertTamper(t *testing.T) {
	api := &fakeAPI{}
	b := NewWithAPI(api, 100, nil, zap.NewNop())
	rec := &models.TamperRecord{
		ID:              "t1",
		EmployeeID:      "e1",
		BranchID:        "b1",
		Kind:            models.TamperGPSSpoof,
		Severity:        models.SeverityHigh,
		ConfidenceScore: 95,
		ActionTaken:     models.ActionBlocked,
	}

	if err := b.AlertTamper(context.Background(), rec); err != nil {
		t.Fatalf("AlertTamper() error = %v", err)
	}
	if len(api.sent) != 1 || api.sent[0].ChatID != 100 {
		t.Fatalf("sent = %+v", api.sent)
	}
	text := api.sent[0].Text
	for _, want := range []string{"🟠", "gps\\_spoof", "95%", "blocked"} {
		if !strings.Contains(text, want) {
			t.Errorf("alert missing %q:\n%s", want, text)
		}
	}
}

func TestAlertWithoutAdminChat(t *testing.T) {
	api := &fakeAPI{}
	b := NewWithAPI(api, 0, nil, zap.NewNop())

	if err := b.AlertAudit(context.Background(), &models.AuditRecord{}); err != nil {
		t.Fatalf("AlertAudit() error = %v", err)
	}
	if len(api.sent) != 0 {
		t.Errorf("sent %d messages without admin chat", len(api.sent))
	}
}

func TestAlertAuditPropagatesSendError(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("429 too many requests")}
	b := NewWithAPI(api, 100, nil, zap.NewNop())
	rec := &models.AuditRecord{
		AuditEntry:          models.AuditEntry{UserID: "admin-1", Action: models.AuditDelete, EntityType: "employees"},
		AuditClassification: models.AuditClassification{Severity: models.SeverityCritical, SuspicionReasons: []string{"delete outside business hours"}},
	}

	if err := b.AlertAudit(context.Background(), rec); err == nil {
		t.Fatal("AlertAudit() expected error")
	}
	if !strings.Contains(api.sent[0].Text, "delete outside business hours") {
		t.Errorf("text = %s", api.sent[0].Text)
	}
}

func TestReply(t *testing.T) {
	lockdowns := &fakeLockdowns{events: []models.LockdownEvent{
		{ID: "ld1", Title: "Flood", Type: models.LockdownFull, StartTime: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)},
	}}
	b := NewWithAPI(&fakeAPI{}, 100, lockdowns, zap.NewNop())

	tests := []struct {
		name    string
		chatID  int64
		command string
		want    string
	}{
		{name: "getid", chatID: 42, command: "getid", want: "`42`"},
		{name: "start", chatID: 42, command: "start", want: "/lockdowns"},
		{name: "lockdowns from admin", chatID: 100, command: "lockdowns", want: "Flood"},
		{name: "lockdowns from stranger", chatID: 42, command: "lockdowns", want: "⛔"},
		{name: "unknown", chatID: 42, command: "dance", want: "/start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Reply(context.Background(), tt.chatID, tt.command, "b1")
			if !strings.Contains(got, tt.want) {
				t.Errorf("Reply(%s) = %q, want it to contain %q", tt.command, got, tt.want)
			}
		})
	}
}

func TestReplyLockdownsEmptyAndError(t *testing.T) {
	lockdowns := &fakeLockdowns{}
	b := NewWithAPI(&fakeAPI{}, 100, lockdowns, zap.NewNop())

	if got := b.Reply(context.Background(), 100, "lockdowns", "b1"); !strings.Contains(got, "ไม่มีการปิดสาขา") {
		t.Errorf("empty reply = %q", got)
	}

	lockdowns.err = errors.New("timeout")
	if got := b.Reply(context.Background(), 100, "lockdowns", "b1"); !strings.Contains(got, "Error") {
		t.Errorf("error reply = %q", got)
	}
}
