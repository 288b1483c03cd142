package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/model"
)

// handleStripe verifies the Stripe-Signature envelope before touching any
// event content, then maps Stripe's vocabulary onto the canonical actions.
func (s *Server) handleStripe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const provider = model.ProviderStripe

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

	event, err := stripewebhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), secret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.reject(w, string(provider), &domain.SignatureVerificationError{Provider: string(provider), Reason: err.Error()})
		return
	}

	if !s.allow(w, string(provider), categoryWebhook) {
		return
	}

	ev, err := mapStripeEvent(&event, payload)
	if err != nil {
		s.log.Warn().Err(err).Str("type", string(event.Type)).Msg("stripe event decode failed")
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}
	s.applyPayment(w, r, ev, start)
}

type stripeCheckoutSession struct {
	ID              string            `json:"id"`
	Customer        string            `json:"customer"`
	Subscription    string            `json:"subscription"`
	ClientReference string            `json:"client_reference_id"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	Metadata        map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []struct {
			Price struct {
				ID       string            `json:"id"`
				Metadata map[string]string `json:"metadata"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

type stripeInvoice struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	AmountPaid   int64             `json:"amount_paid"`
	AmountDue    int64             `json:"amount_due"`
	Currency     string            `json:"currency"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type stripeCharge struct {
	ID             string `json:"id"`
	Customer       string `json:"customer"`
	Invoice        string `json:"invoice"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
}

func mapStripeEvent(event *stripe.Event, payload []byte) (*model.ProviderEvent, error) {
	ev := &model.ProviderEvent{
		Provider:   model.ProviderStripe,
		EventID:    event.ID,
		OccurredAt: time.Unix(event.Created, 0).UTC(),
		RawPayload: payload,
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		var cs stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, err
		}
		ev.Action = model.ActionSubscriptionCreated
		ev.CustomerID = cs.Customer
		ev.SubjectID = cs.ClientReference
		ev.Amount = cs.AmountTotal
		ev.Currency = cs.Currency
		ev.PlanTier = tierFrom(cs.Metadata["plan"])
		ev.Credits = creditsFrom(cs.Metadata["credits"])

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, err
		}
		ev.Action = model.ActionSubscriptionUpdated
		if string(event.Type) == "customer.subscription.deleted" {
			ev.Action = model.ActionSubscriptionCanceled
		}
		ev.CustomerID = sub.Customer
		ev.SubjectID = sub.Metadata["subject_id"]
		ev.PlanTier = tierFrom(firstStripePriceMeta(sub, "plan"))
		if ev.PlanTier == "" {
			ev.PlanTier = tierFrom(sub.Metadata["plan"])
		}
		if sub.CurrentPeriodEnd > 0 {
			t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			ev.RenewalAt = &t
		}

	case "invoice.payment_succeeded":
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, err
		}
		ev.Action = model.ActionPaymentSucceeded
		ev.CustomerID = inv.Customer
		ev.SubjectID = inv.Metadata["subject_id"]
		ev.Amount = inv.AmountPaid
		ev.Currency = inv.Currency
		ev.Credits = creditsFrom(inv.Metadata["credits"])
		if inv.ID != "" {
			// Keyed by invoice so a later event for the same invoice
			// (failure, success, refund) lands on the same history row.
			ev.EventID = inv.ID
		}

	case "invoice.payment_failed":
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, err
		}
		ev.Action = model.ActionPaymentFailed
		ev.CustomerID = inv.Customer
		ev.Amount = inv.AmountDue
		ev.Currency = inv.Currency
		if inv.ID != "" {
			ev.EventID = inv.ID
		}

	case "charge.refunded":
		var ch stripeCharge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, err
		}
		ev.Action = model.ActionPaymentRefunded
		ev.CustomerID = ch.Customer
		ev.Amount = ch.AmountRefunded
		ev.Currency = ch.Currency
		if ch.Invoice != "" {
			ev.EventID = ch.Invoice
		}

	default:
		ev.Action = model.ActionIgnore
	}
	return ev, nil
}

func firstStripePriceMeta(sub stripeSubscription, key string) string {
	for _, item := range sub.Items.Data {
		if v := item.Price.Metadata[key]; v != "" {
			return v
		}
	}
	return ""
}

func tierFrom(s string) model.PlanTier {
	switch s {
	case "free":
		return model.PlanTierFree
	case "pro":
		return model.PlanTierPro
	case "team":
		return model.PlanTierTeam
	}
	return ""
}

func creditsFrom(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
