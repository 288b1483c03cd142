package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/model"
)

// Lemon Squeezy signs the raw body with HMAC-SHA256 and sends the hex digest
// in X-Signature. There is no timestamp element, so verification is a single
// constant-time digest comparison.
func verifyLemonSqueezySignature(payload []byte, header, secret string) error {
	if header == "" {
		return &domain.SignatureVerificationError{Provider: string(model.ProviderLemonSqueezy), Reason: "missing X-Signature header"}
	}
	got, err := hex.DecodeString(header)
	if err != nil {
		return &domain.SignatureVerificationError{Provider: string(model.ProviderLemonSqueezy), Reason: "malformed X-Signature header"}
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return &domain.SignatureVerificationError{Provider: string(model.ProviderLemonSqueezy), Reason: "signature mismatch"}
	}
	return nil
}

type lemonSqueezyEnvelope struct {
	Meta struct {
		EventName  string            `json:"event_name"`
		CustomData map[string]string `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			CustomerID  json.Number `json:"customer_id"`
			Status      string      `json:"status"`
			UserEmail   string      `json:"user_email"`
			Total       int64       `json:"total"`
			Currency    string      `json:"currency"`
			VariantName string      `json:"variant_name"`
			RenewsAt    *time.Time  `json:"renews_at"`
			CreatedAt   time.Time   `json:"created_at"`
		} `json:"attributes"`
	} `json:"data"`
}

func (s *Server) handleLemonSqueezy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const provider = model.ProviderLemonSqueezy

	secret, ok := s.registry.WebhookSecret(provider)
	if !ok {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := verifyLemonSqueezySignature(payload, r.Header.Get("X-Signature"), secret); err != nil {
		s.reject(w, string(provider), err)
		return
	}

	if !s.allow(w, string(provider), categoryWebhook) {
		return
	}

	var env lemonSqueezyEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.log.Warn().Err(err).Msg("lemonsqueezy payload decode failed")
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	s.applyPayment(w, r, mapLemonSqueezyEvent(&env, payload), start)
}

func mapLemonSqueezyEvent(env *lemonSqueezyEnvelope, payload []byte) *model.ProviderEvent {
	attrs := &env.Data.Attributes
	ev := &model.ProviderEvent{
		Provider:   model.ProviderLemonSqueezy,
		EventID:    lemonSqueezyEventID(env.Meta.EventName, env.Data.ID),
		CustomerID: attrs.CustomerID.String(),
		SubjectID:  env.Meta.CustomData["user_id"],
		PlanTier:   tierFrom(env.Meta.CustomData["plan"]),
		Amount:     attrs.Total,
		Currency:   attrs.Currency,
		RenewalAt:  attrs.RenewsAt,
		OccurredAt: attrs.CreatedAt.UTC(),
		RawPayload: payload,
	}
	if ev.PlanTier == "" {
		ev.PlanTier = tierFrom(attrs.VariantName)
	}

	switch env.Meta.EventName {
	case "order_created", "subscription_payment_success", "subscription_payment_recovered":
		ev.Action = model.ActionPaymentSucceeded
	case "subscription_payment_failed":
		ev.Action = model.ActionPaymentFailed
	case "order_refunded":
		ev.Action = model.ActionPaymentRefunded
	case "subscription_created":
		ev.Action = model.ActionSubscriptionCreated
	case "subscription_updated":
		ev.Action = model.ActionSubscriptionUpdated
	case "subscription_cancelled", "subscription_expired":
		ev.Action = model.ActionSubscriptionCanceled
	default:
		ev.Action = model.ActionIgnore
	}
	return ev
}

// lemonSqueezyEventID keys payment rows by the underlying billing object
// rather than the delivery: deliveries carry no event id of their own, and
// a refund or a payment retry must land on the row its predecessor created.
func lemonSqueezyEventID(eventName, objectID string) string {
	switch eventName {
	case "order_created", "order_refunded":
		return "order-" + objectID
	case "subscription_payment_success", "subscription_payment_failed", "subscription_payment_recovered":
		return "invoice-" + objectID
	}
	return eventName + "-" + objectID
}
