// Package notifier доставляет уведомления операторам конвейера.
package notifier

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram отправляет уведомления в операторский чат.
type Telegram struct {
	bot    sender
	chatID int64
	log    zerolog.Logger
}

var _ domain.Notifier = (*Telegram)(nil)

// NewTelegram создаёт уведомитель по токену бота.
func NewTelegram(token string, chatID int64, logger zerolog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return newTelegram(bot, chatID, logger), nil
}

func newTelegram(bot sender, chatID int64, logger zerolog.Logger) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, log: logger.With().Str("component", "notifier").Logger()}
}

// Format собирает HTML-текст уведомления.
func Format(alert domain.Alert) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(alert.Title))
	b.WriteString("</b>")
	if alert.LaunchID != "" {
		b.WriteString("\nlaunch: <code>")
		b.WriteString(html.EscapeString(alert.LaunchID))
		b.WriteString("</code>")
	}
	if body := strings.TrimSpace(alert.Body); body != "" {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(body))
	}
	return b.String()
}

// Notify реализует domain.Notifier.
func (t *Telegram) Notify(ctx context.Context, alert domain.Alert) error {
	for _, part := range SplitMessage(Format(alert)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := t.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(t.chatID, 10), start, err)
		if err != nil {
			metrics.NotifySendErrors.Inc()
			t.log.Error().Err(err).Str("title", alert.Title).Msg("notifier: не удалось отправить уведомление")
			return fmt.Errorf("send alert: %w", err)
		}
	}
	return nil
}

// Log пишет уведомления в журнал. Используется, когда бот не настроен.
type Log struct {
	log zerolog.Logger
}

var _ domain.Notifier = Log{}

// NewLog создаёт журнальный уведомитель.
func NewLog(logger zerolog.Logger) Log {
	return Log{log: logger.With().Str("component", "notifier").Logger()}
}

// Notify реализует domain.Notifier.
func (l Log) Notify(_ context.Context, alert domain.Alert) error {
	l.log.Warn().Str("title", alert.Title).Str("launch_id", alert.LaunchID).Msg(alert.Body)
	return nil
}
