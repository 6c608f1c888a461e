// Package notify pushes submit confirmations to the worker's chat. A failed
// notification never fails the submit that triggered it.
package notify

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vibework/reportbot/internal/domain/models"
	client "github.com/vibework/reportbot/pkg/clients/telegram"
)

var categoryIcons = map[string]string{
	models.LabelLabour:   "🔧",
	models.LabelPaint:    "🎨",
	models.LabelMaterial: "📦",
	models.LabelDefect:   "⚠️",
}

// Service formats and delivers report notifications.
type Service struct {
	client client.Client
	logger *zap.Logger
}

// NewService wires a new notification service instance.
func NewService(c client.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: c, logger: logger}
}

// ReportDelivered sends the delivery confirmation message to the actor's
// chat.
func (s *Service) ReportDelivered(ctx context.Context, chatID string, report *models.Report) error {
	if s.client == nil || chatID == "" {
		return nil
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.client.SendMessage(ctxWithTimeout, client.SendMessageRequest{
		ChatID:    chatID,
		Text:      FormatReport(report),
		ParseMode: "HTML",
	})
	if err != nil {
		s.logger.Error("failed to send report notification",
			zap.String("chat_id", chatID), zap.Error(err))
		return err
	}
	return nil
}

// FormatReport renders the confirmation message body.
func FormatReport(report *models.Report) string {
	timestamp := strings.ReplaceAll(report.Timestamp, "T", " ")
	if i := strings.IndexAny(timestamp, "Z+"); i > 0 {
		timestamp = timestamp[:i]
	}

	lines := []string{
		"📋 <b>Отчёт отправлен</b>",
		"",
		fmt.Sprintf("📊 <b>Дата:</b> %s", timestamp),
		fmt.Sprintf("👤 <b>Сотрудник:</b> %s", report.EmployeeName),
		fmt.Sprintf("🏗️ <b>Проект:</b> %s", report.ProjectName),
		fmt.Sprintf("📦 <b>Изделие:</b> %s", report.ProductName),
		"",
		"📋 <b>Действия:</b>",
	}

	for _, action := range report.Actions {
		icon, ok := categoryIcons[action.Category]
		if !ok {
			icon = "📋"
		}

		quantity := action.Quantity
		if action.Category == models.LabelLabour {
			quantity = formatLabourTime(action.Quantity)
		}

		line := fmt.Sprintf("  • %s %s: %s %s", icon, action.SubcategoryName, quantity, action.Unit)
		lines = append(lines, strings.TrimRight(line, " "))
	}

	comment := report.Comment
	if comment == "" {
		for _, action := range report.Actions {
			if action.Comment != "" {
				comment = action.Comment
				break
			}
		}
	}
	if comment != "" {
		lines = append(lines, "", fmt.Sprintf("💬 <b>Комментарий:</b> %s", comment))
	}

	return strings.Join(lines, "\n")
}

// formatLabourTime renders a decimal hour quantity as h:mm for reading.
func formatLabourTime(quantity string) string {
	hours, err := strconv.ParseFloat(quantity, 64)
	if err != nil {
		return quantity
	}

	h := int(hours)
	m := int(math.Round((hours - float64(h)) * 60))
	if m == 60 {
		h++
		m = 0
	}
	return fmt.Sprintf("%d:%02d", h, m)
}
