// Package notify sends best-effort staff notifications about confirmed
// bookings. Failures are logged and never affect the booking outcome.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"reserva/internal/models"
)

// telegramClient is the minimal Telegram surface; tests inject a mock.
type telegramClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (r *realTelegramClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return r.api.Send(c)
}

// Telegram notifies one staff chat about confirmed bookings.
type Telegram struct {
	tg     telegramClient
	chatID int64
	log    *zerolog.Logger
}

// NewTelegram connects to the Bot API with the given token.
func NewTelegram(token string, chatID int64, log *zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("telegram notifier connected")
	return &Telegram{tg: &realTelegramClient{api: api}, chatID: chatID, log: log}, nil
}

// NewTelegramWithClient allows injecting a mocked Telegram client for tests.
func NewTelegramWithClient(tg telegramClient, chatID int64, log *zerolog.Logger) *Telegram {
	return &Telegram{tg: tg, chatID: chatID, log: log}
}

// NotifyBookingConfirmed posts a summary of the booking to the staff chat.
func (t *Telegram) NotifyBookingConfirmed(ctx context.Context, b *models.Booking) {
	if err := ctx.Err(); err != nil {
		return
	}

	msg := tgbotapi.NewMessage(t.chatID, bookingMessage(b))
	msg.ParseMode = "Markdown"
	if _, err := t.tg.Send(msg); err != nil {
		t.log.Error().Err(err).
			Str("booking_code", b.BookingCode).
			Msg("staff notification failed")
		return
	}
	t.log.Debug().Str("booking_code", b.BookingCode).Msg("staff notified")
}

func bookingMessage(b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("*Nouvelle réservation*\n")
	fmt.Fprintf(&sb, "Code: `%s`\n", b.BookingCode)
	fmt.Fprintf(&sb, "Date: %s à %s\n", b.DateISO, b.Time24h)
	fmt.Fprintf(&sb, "Couverts: %d\n", b.PartySize)
	fmt.Fprintf(&sb, "Nom: %s\n", b.Name)
	fmt.Fprintf(&sb, "Tél: %s\n", b.Phone)
	fmt.Fprintf(&sb, "Email: %s", b.Email)
	if b.Comments != "" {
		fmt.Fprintf(&sb, "\nCommentaire: %s", b.Comments)
	}
	return sb.String()
}
