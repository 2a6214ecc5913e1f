package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"attendance-guard/internal/models"
	"attendance-guard/internal/services"
)

// Ensure Bot implements the service notification interfaces
var (
	_ services.AlertSink   = (*Bot)(nil)
	_ services.BotNotifier = (*Bot)(nil)
)

// NotifyAttendance confirms a recorded attempt to the employee
func (b *Bot) NotifyAttendance(emp *models.Employee, res *models.VerificationResult) {
	if emp.TelegramChatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(emp.TelegramChatID, AttendanceMessage(emp, res))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("Failed to send personal notification",
			zap.String("employee_id", emp.ID),
			zap.Error(err),
		)
	}
}

// AttendanceMessage renders the employee confirmation
func AttendanceMessage(emp *models.Employee, res *models.VerificationResult) string {
	title := "✅ *บันทึกเวลาเข้างานแล้ว*"
	if res.Kind == models.KindCheckout {
		title = "👋 *บันทึกเวลาออกงานแล้ว*"
	}

	var sb strings.Builder
	sb.WriteString(title + "\n")
	fmt.Fprintf(&sb, "👤 %s\n", escape(emp.Name))
	fmt.Fprintf(&sb, "🕐 %s\n", res.At.Format("15:04"))
	fmt.Fprintf(&sb, "📍 %s\n", methodLabel(res.Method))

	switch {
	case res.LateMinutes > 0:
		fmt.Fprintf(&sb, "⏰ เข้าสาย %d นาที", res.LateMinutes)
		if res.Deduction.Points > 0 {
			fmt.Fprintf(&sb, " (หัก %d คะแนน)", res.Deduction.Points)
		}
		sb.WriteString("\n")
	case res.EarlyLeaveMinutes > 0:
		fmt.Fprintf(&sb, "⏰ ออกก่อนเวลา %d นาที\n", res.EarlyLeaveMinutes)
	case res.Kind == models.KindCheckin:
		sb.WriteString("🎯 ตรงเวลา\n")
	}
	if !res.IsVerified {
		sb.WriteString("⚠️ ไม่สามารถยืนยันตำแหน่งได้ รอตรวจสอบ\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
