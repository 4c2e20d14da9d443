package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"parkingapi/internal/db"
	apperrors "parkingapi/internal/errors"
	"parkingapi/internal/service"
)

const maxWebhookBytes = int64(65536)

type StripeWebhookHandler struct {
	secret   string
	payments *service.PaymentService
}

func NewStripeWebhookHandler(secret string, payments *service.PaymentService) *StripeWebhookHandler {
	return &StripeWebhookHandler{secret: secret, payments: payments}
}

// HandleWebhook verifies the Stripe signature and applies checkout and
// refund outcomes to the matching payment. Events for unknown sessions are
// acknowledged so Stripe stops retrying them.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, apperrors.Validation("unreadable webhook body"))
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		log.Warn().Err(err).Msg("stripe_signature_invalid")
		writeError(w, r, apperrors.Validation("invalid stripe signature"))
		return
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil || sess.ID == "" {
			writeError(w, r, apperrors.Validation("invalid checkout session payload"))
			return
		}
		status := db.PaymentPaid
		if event.Type == "checkout.session.expired" {
			status = db.PaymentFailed
		}
		err = h.payments.MarkSession(r.Context(), sess.ID, status)
	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			writeError(w, r, apperrors.Validation("invalid charge payload"))
			return
		}
		if charge.PaymentIntent != nil && charge.PaymentIntent.ID != "" {
			err = h.payments.MarkRefundedByPaymentIntent(r.Context(), charge.PaymentIntent.ID)
		}
	default:
		log.Debug().Str("type", string(event.Type)).Msg("stripe_event_ignored")
	}

	if err != nil && !apperrors.IsNotFound(err) {
		writeError(w, r, err)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("type", string(event.Type)).Msg("stripe_event_unmatched")
	} else {
		log.Info().Str("type", string(event.Type)).Str("event_id", event.ID).Msg("stripe_event_handled")
	}
	w.WriteHeader(http.StatusOK)
}
