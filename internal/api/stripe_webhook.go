package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"eventplace/internal/logging"
	"eventplace/internal/metrics"
	"eventplace/internal/models"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	maxWebhookBodyBytes = int64(65536)
	bookingMetadataKey  = "booking_id"
)

// StripeWebhook verifies Stripe events and queues confirmations for
// successful payment intents. Confirmation runs in the recovery worker so
// the webhook is acknowledged quickly.
type StripeWebhook struct {
	secret string
	tasks  TaskQueue
	logger *zerolog.Logger
}

func NewStripeWebhook(secret string, tasks TaskQueue, logger *zerolog.Logger) *StripeWebhook {
	return &StripeWebhook{
		secret: secret,
		tasks:  tasks,
		logger: logging.Component(logger, "stripe_webhook"),
	}
}

func (h *StripeWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("stripe_webhook")

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "error reading request body")
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn().Err(err).Msg("webhook signature verification failed")
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			h.logger.Error().Err(err).Str("event_id", event.ID).Msg("parse payment intent")
			writeError(w, http.StatusBadRequest, "invalid payment intent")
			return
		}

		bookingID := strings.TrimSpace(pi.Metadata[bookingMetadataKey])
		if bookingID == "" {
			h.logger.Warn().Str("payment_intent", pi.ID).Msg("payment intent without booking_id metadata")
			writeJSON(w, http.StatusOK, map[string]any{"received": true, "ignored": true})
			return
		}

		evidence := models.PaymentEvidence{
			PaymentIntentID: pi.ID,
			Provider:        "stripe",
			AmountCents:     pi.AmountReceived,
			Currency:        strings.ToUpper(string(pi.Currency)),
			ReceivedAt:      time.Unix(event.Created, 0).UTC(),
		}
		if err := h.tasks.EnqueueConfirmPayment(r.Context(), bookingID, evidence); err != nil {
			h.logger.Error().Err(err).Str("booking_id", bookingID).Msg("enqueue payment confirmation")
			// Non-2xx makes Stripe redeliver.
			writeError(w, http.StatusInternalServerError, "failed to queue confirmation")
			return
		}
		h.logger.Info().
			Str("booking_id", bookingID).
			Str("payment_intent", pi.ID).
			Int64("amount_cents", pi.AmountReceived).
			Msg("payment confirmation queued")
	default:
		h.logger.Debug().Str("type", string(event.Type)).Msg("unhandled stripe event")
	}

	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}
