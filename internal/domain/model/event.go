package model

import "time"

// Action is the closed set of canonical actions webhook events are mapped
// to before they reach shared orchestration logic. Provider vocabularies
// never leak past the webhook layer.
type Action string

const (
	ActionUserCreated          Action = "user.created"
	ActionUserUpdated          Action = "user.updated"
	ActionSubscriptionCreated  Action = "subscription.created"
	ActionSubscriptionUpdated  Action = "subscription.updated"
	ActionSubscriptionCanceled Action = "subscription.canceled"
	ActionPaymentSucceeded     Action = "payment.succeeded"
	ActionPaymentFailed        Action = "payment.failed"
	ActionPaymentRefunded      Action = "payment.refunded"
	// ActionIgnore acknowledges an event type this system intentionally
	// does not act on. Providers must never be made to retry these.
	ActionIgnore Action = "ignore"
)

// ProviderEvent is the canonical form of a payment provider webhook.
type ProviderEvent struct {
	Provider   Provider
	EventID    string
	Action     Action
	CustomerID string
	SubjectID  string // identity subject when the provider carries it in metadata
	PlanTier   PlanTier
	Credits    int64
	Amount     int64
	Currency   string
	RenewalAt  *time.Time
	OccurredAt time.Time
	RawPayload []byte
}

// IdentityEvent is the canonical form of an identity provider webhook.
type IdentityEvent struct {
	Action     Action
	SubjectID  string
	Email      string
	Name       string
	OccurredAt time.Time
}
