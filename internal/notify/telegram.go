package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/logger"
)

const (
	telegramTopJobs   = 5
	telegramMaxLength = 4096
)

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts a short HTML digest to one chat.
type Telegram struct {
	bot    botSender
	chatID int64
	logger *zap.Logger
}

func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, logger: logger.OrNop(log)}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(_ context.Context, d Digest) error {
	msg := tgbotapi.NewMessage(t.chatID, TelegramText(d))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// TelegramText renders the digest as Telegram HTML within the message size limit.
func TelegramText(d Digest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>AI/ML Jobs: %d matches</b>\n", len(d.Jobs))
	fmt.Fprintf(&sb, "New: %d, total stored: %d\n", d.Persisted, d.Stats.TotalJobs)

	if len(d.Jobs) == 0 {
		sb.WriteString("\nNo matching jobs found today.")
		return sb.String()
	}

	for i, p := range d.Top(telegramTopJobs) {
		entry := fmt.Sprintf("\n%d. <b>%s</b>\n%s, %s\nScore %.1f (match %d/10, AI %d/10)\n<a href=\"%s\">Open posting</a>\n",
			i+1,
			html.EscapeString(p.Title),
			html.EscapeString(p.Company),
			html.EscapeString(p.Location),
			p.CombinedScore, p.MatchScore, p.RelevanceScore,
			html.EscapeString(p.Link),
		)
		if sb.Len()+len(entry) > telegramMaxLength {
			break
		}
		sb.WriteString(entry)
	}
	return sb.String()
}
