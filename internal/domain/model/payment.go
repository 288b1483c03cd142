package model

import "time"

type Provider string

const (
	ProviderStripe       Provider = "stripe"
	ProviderLemonSqueezy Provider = "lemonsqueezy"
	ProviderWebXPay      Provider = "webxpay"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderStripe, ProviderLemonSqueezy, ProviderWebXPay:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type ReconcileState string

const (
	// ReconcileNone: the event needed no post-commit external call.
	ReconcileNone ReconcileState = "none"
	// ReconcilePending: external sync has not succeeded yet.
	ReconcilePending ReconcileState = "pending"
	// ReconcileSynced: external sync confirmed.
	ReconcileSynced ReconcileState = "synced"
)

// PaymentHistory is the audit record for one provider payment event.
// (Provider, ProviderEventID) carries a unique sparse compound index, so
// replayed webhook deliveries cannot insert a second row. Rows are never
// mutated after insert except for status transitions driven by later events
// for the same logical transaction, and the reconcile marker.
type PaymentHistory struct {
	ID              string         `bson:"_id"`
	Provider        Provider       `bson:"provider"`
	ProviderEventID string         `bson:"provider_event_id"`
	UserID          string         `bson:"user_id,omitempty"`
	Status          PaymentStatus  `bson:"status"`
	Amount          int64          `bson:"amount"`
	Currency        string         `bson:"currency,omitempty"`
	RawPayload      []byte         `bson:"raw_payload,omitempty"`
	Reconcile       ReconcileState `bson:"reconcile"`
	CreatedAt       time.Time      `bson:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at"`
}
