// Package bot delivers security alerts and attendance confirmations over
// Telegram and answers a few admin commands.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"attendance-guard/internal/models"
)

// API is the subset of *tgbotapi.BotAPI the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// LockdownLister lists the lockdowns in effect for a branch
type LockdownLister interface {
	ListActive(ctx context.Context, branchID string) ([]models.LockdownEvent, error)
}

// pollTimeout is the long-poll duration; the HTTP client allows a margin
// on top of it so that a hung send still fails
const (
	pollTimeout   = 30
	clientTimeout = (pollTimeout + 15) * time.Second
)

// Bot sends messages to the admin chat and to employees
type Bot struct {
	api         API
	adminChatID int64
	lockdowns   LockdownLister
	logger      *zap.Logger
}

// New connects to Telegram. authorizedChatID is the admin chat that
// receives alerts; an empty or invalid value disables admin alerts.
func New(token, authorizedChatID string, lockdowns LockdownLister, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: clientTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	api.Debug = false
	logger.Info("Telegram bot authorized", zap.String("account", api.Self.UserName))

	var chatID int64
	if authorizedChatID != "" {
		id, err := strconv.ParseInt(authorizedChatID, 10, 64)
		if err != nil {
			logger.Warn("Invalid AUTHORIZED_CHAT_ID, admin alerts disabled", zap.String("value", authorizedChatID))
		}
		chatID = id
	}
	return NewWithAPI(api, chatID, lockdowns, logger), nil
}

// NewWithAPI builds a bot around an existing client
func NewWithAPI(api API, adminChatID int64, lockdowns LockdownLister, logger *zap.Logger) *Bot {
	return &Bot{api: api, adminChatID: adminChatID, lockdowns: lockdowns, logger: logger}
}

// StartPolling answers commands until ctx is done
func (b *Bot) StartPolling(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	go func() {
		for update := range updates {
			if update.CallbackQuery != nil {
				if _, err := b.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "OK")); err != nil {
					b.logger.Warn("Callback ack failed", zap.Error(err))
				}
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			msg := tgbotapi.NewMessage(update.Message.Chat.ID, "")
			msg.ParseMode = tgbotapi.ModeMarkdown
			msg.Text = b.Reply(ctx, update.Message.Chat.ID, update.Message.Command(), update.Message.CommandArguments())

			if _, err := b.api.Send(msg); err != nil {
				b.logger.Warn("Bot send error", zap.Error(err))
			}
		}
	}()
}

// Reply computes the answer to a command
func (b *Bot) Reply(ctx context.Context, chatID int64, command, args string) string {
	switch command {
	case "start":
		return "🏢 *ระบบตรวจสอบการลงเวลา*\n\n" +
			"*คำสั่ง:*\n" +
			"/getid - Chat ID ของห้องนี้\n" +
			"/lockdowns <branch> - การปิดสาขาที่มีผล"

	case "getid":
		return fmt.Sprintf("Chat ID: `%d`", chatID)

	case "lockdowns":
		if chatID != b.adminChatID {
			return "⛔ คำสั่งนี้สำหรับผู้ดูแลเท่านั้น"
		}
		return b.lockdownSummary(ctx, strings.TrimSpace(args))
	}
	return "ไม่รู้จักคำสั่ง ใช้ /start"
}

func (b *Bot) lockdownSummary(ctx context.Context, branchID string) string {
	if b.lockdowns == nil {
		return "Lockdown lookup not configured"
	}
	events, err := b.lockdowns.ListActive(ctx, branchID)
	if err != nil {
		b.logger.Error("Lockdown lookup failed", zap.String("branch_id", branchID), zap.Error(err))
		return "❌ Error loading lockdowns"
	}
	if len(events) == 0 {
		return "✅ ไม่มีการปิดสาขา"
	}

	var sb strings.Builder
	sb.WriteString("🚨 *Lockdowns:*\n")
	for _, ev := range events {
		scope := ev.BranchID
		if scope == "" {
			scope = "ทุกสาขา"
		}
		fmt.Fprintf(&sb, "• %s (%s) %s ตั้งแต่ %s\n",
			escape(ev.Title), ev.Type, escape(scope), ev.StartTime.Format("02/01 15:04"))
	}
	return sb.String()
}

// AlertTamper posts a tamper record to the admin chat
func (b *Bot) AlertTamper(ctx context.Context, rec *models.TamperRecord) error {
	text := fmt.Sprintf("%s *Tamper: %s*\n"+
		"พนักงาน: `%s`\n"+
		"สาขา: `%s`\n"+
		"ความรุนแรง: %s\n"+
		"ความมั่นใจ: %.0f%%\n"+
		"การดำเนินการ: %s\n"+
		"เวลา: %s",
		severityIcon(rec.Severity), escape(string(rec.Kind)),
		rec.EmployeeID, rec.BranchID, rec.Severity, rec.ConfidenceScore,
		rec.ActionTaken, rec.DetectedAt.Format("02/01/2006 15:04:05"))
	return b.sendAdmin(text)
}

// AlertAudit posts an audit record that needs review to the admin chat
func (b *Bot) AlertAudit(ctx context.Context, rec *models.AuditRecord) error {
	text := fmt.Sprintf("%s *Audit review: %s*\n"+
		"ผู้ใช้: `%s`\n"+
		"รายการ: %s `%s`\n"+
		"ความรุนแรง: %s",
		severityIcon(rec.Severity), escape(string(rec.Action)),
		rec.UserID, escape(rec.EntityType), rec.EntityID, rec.Severity)
	if len(rec.ChangedFields) > 0 {
		text += "\nฟิลด์: " + escape(strings.Join(rec.ChangedFields, ", "))
	}
	for _, reason := range rec.SuspicionReasons {
		text += "\n⚠️ " + escape(reason)
	}
	return b.sendAdmin(text)
}

func (b *Bot) sendAdmin(text string) error {
	if b.adminChatID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(b.adminChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

func methodLabel(m models.VerificationMethod) string {
	switch m {
	case models.MethodBoth:
		return "Wi-Fi + GPS"
	case models.MethodWiFi:
		return "Wi-Fi"
	case models.MethodGPS:
		return "GPS"
	}
	return "ไม่ระบุ"
}

func severityIcon(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "🔴"
	case models.SeverityHigh:
		return "🟠"
	case models.SeverityMedium:
		return "🟡"
	}
	return "🔵"
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
