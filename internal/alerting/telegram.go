package alerting

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"eventplace/internal/config"
	"eventplace/internal/domain"
	"eventplace/internal/events"
	"eventplace/internal/logging"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// NewTelegramBot connects to the Bot API with the configured token.
func NewTelegramBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

// TelegramAlerter messages admin chats about failed confirmations and sagas
// that completed with failed steps.
type TelegramAlerter struct {
	sender  domain.TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramAlerter(sender domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramAlerter {
	return &TelegramAlerter{
		sender:  sender,
		chatIDs: chatIDs,
		logger:  logging.Component(logger, "alerting"),
	}
}

// Subscribe attaches the alerter to the bus.
func (a *TelegramAlerter) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingConfirmationFailed, a.HandleEvent)
	bus.Subscribe(events.EventBookingConfirmed, a.HandleEvent)
	bus.Subscribe(events.EventBookingSagaRetried, a.HandleEvent)
}

func (a *TelegramAlerter) HandleEvent(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	text, ok := formatAlert(event.Type, payload)
	if !ok {
		return nil
	}

	var errs []error
	for _, chatID := range a.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := a.sender.Send(msg); err != nil {
			a.logger.Error().Err(err).Int64("chat_id", chatID).Str("booking_id", payload.BookingID).Msg("failed to send telegram alert")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// formatAlert renders the message for events worth an alert.
func formatAlert(eventType string, p events.BookingEventPayload) (string, bool) {
	var b strings.Builder
	switch eventType {
	case events.EventBookingConfirmationFailed:
		b.WriteString("🚨 <b>Booking confirmation failed</b>\n")
	case events.EventBookingConfirmed, events.EventBookingSagaRetried:
		if !p.HasPartialFailures {
			return "", false
		}
		b.WriteString("⚠️ <b>Booking confirmed with failed steps</b>\n")
	default:
		return "", false
	}

	fmt.Fprintf(&b, "Booking: <code>%s</code>\n", html.EscapeString(p.BookingID))
	if p.EnablerID != "" {
		fmt.Fprintf(&b, "Enabler: <code>%s</code>\n", html.EscapeString(p.EnablerID))
	}
	if len(p.FailedSteps) > 0 {
		fmt.Fprintf(&b, "Failed steps: %s\n", html.EscapeString(strings.Join(p.FailedSteps, ", ")))
	}
	if p.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", html.EscapeString(p.Error))
	}
	if !p.OccurredAt.IsZero() {
		fmt.Fprintf(&b, "At: %s", p.OccurredAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	return strings.TrimRight(b.String(), "\n"), true
}
