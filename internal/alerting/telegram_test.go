package alerting

import (
	"errors"
	"strings"
	"testing"
	"time"

	"eventplace/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func newAlerter(sender *mockTelegramSender, chats ...int64) *TelegramAlerter {
	logger := zerolog.Nop()
	return NewTelegramAlerter(sender, chats, &logger)
}

func TestTelegramAlerter_ConfirmationFailed(t *testing.T) {
	sender := new(mockTelegramSender)
	bus := events.NewEventBus()
	newAlerter(sender, 100, 200).Subscribe(bus)

	for _, chat := range []int64{100, 200} {
		chatID := chat
		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.ChatID == chatID &&
				msg.ParseMode == tgbotapi.ModeHTML &&
				containsAll(msg.Text, "confirmation failed", "b-1", "load event: record not found")
		})).Return(tgbotapi.Message{}, nil).Once()
	}

	err := bus.PublishJSON(events.EventBookingConfirmationFailed, events.BookingEventPayload{
		BookingID:  "b-1",
		Error:      "load event: record not found",
		OccurredAt: time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestTelegramAlerter_PartialFailuresOnly(t *testing.T) {
	sender := new(mockTelegramSender)
	a := newAlerter(sender, 100)

	clean, err := events.NewJSONEvent(events.EventBookingConfirmed, events.BookingEventPayload{BookingID: "b-2"})
	require.NoError(t, err)
	require.NoError(t, a.HandleEvent(&clean))
	sender.AssertNotCalled(t, "Send", mock.Anything)

	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg := c.(tgbotapi.MessageConfig)
		return containsAll(msg.Text, "failed steps", "checklist_generation")
	})).Return(tgbotapi.Message{}, nil).Once()

	partial, err := events.NewJSONEvent(events.EventBookingConfirmed, events.BookingEventPayload{
		BookingID:          "b-2",
		HasPartialFailures: true,
		FailedSteps:        []string{"checklist_generation"},
	})
	require.NoError(t, err)
	require.NoError(t, a.HandleEvent(&partial))
	sender.AssertExpectations(t)
}

func TestTelegramAlerter_EscapesHTML(t *testing.T) {
	text, ok := formatAlert(events.EventBookingConfirmationFailed, events.BookingEventPayload{
		BookingID: "b-3",
		Error:     `constraint <escrow> & "check"`,
	})
	require.True(t, ok)
	assert.Contains(t, text, "constraint &lt;escrow&gt; &amp; &#34;check&#34;")
}

func TestTelegramAlerter_SendErrors(t *testing.T) {
	sender := new(mockTelegramSender)
	a := newAlerter(sender, 100, 200)
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("chat not found")).Twice()

	ev, err := events.NewJSONEvent(events.EventBookingConfirmationFailed, events.BookingEventPayload{BookingID: "b-4"})
	require.NoError(t, err)
	err = a.HandleEvent(&ev)
	assert.ErrorContains(t, err, "chat not found")
	sender.AssertExpectations(t)
}

func TestTelegramAlerter_BadPayload(t *testing.T) {
	a := newAlerter(new(mockTelegramSender), 100)
	err := a.HandleEvent(&events.Event{Type: events.EventBookingConfirmationFailed, Payload: []byte("{")})
	assert.Error(t, err)
}

func containsAll(s string, parts ...string) bool {
	lower := strings.ToLower(s)
	for _, p := range parts {
		if !strings.Contains(lower, strings.ToLower(p)) {
			return false
		}
	}
	return true
}
