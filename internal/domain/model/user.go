package model

import (
	"time"

	"saas-billing-backend/internal/domain"

	"github.com/google/uuid"
)

type PlanTier string

const (
	PlanTierFree PlanTier = "free"
	PlanTierPro  PlanTier = "pro"
	PlanTierTeam PlanTier = "team"
)

// User is the tenant account keyed by the identity provider's subject id.
// Plan fields are denormalized onto the document so entitlement checks are
// a single read. Per-provider customer ids are sparse: a user carries one
// only after that provider has seen them.
type User struct {
	ID        string   `bson:"_id"`
	SubjectID string   `bson:"subject_id"`
	Email     string   `bson:"email,omitempty"`
	Name      string   `bson:"name,omitempty"`
	PlanTier  PlanTier `bson:"plan_tier"`
	Credits   int64    `bson:"credits"`

	RenewalAt *time.Time `bson:"renewal_at,omitempty"`

	StripeCustomerID       string `bson:"stripe_customer_id,omitempty"`
	LemonSqueezyCustomerID string `bson:"lemonsqueezy_customer_id,omitempty"`
	WebXPayCustomerID      string `bson:"webxpay_customer_id,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewUser(subjectID, email, name string) (*User, error) {
	if subjectID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &User{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Email:     email,
		Name:      name,
		PlanTier:  PlanTierFree,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// CustomerID returns the stored customer id for a provider, empty when the
// provider has never referenced this user.
func (u *User) CustomerID(p Provider) string {
	switch p {
	case ProviderStripe:
		return u.StripeCustomerID
	case ProviderLemonSqueezy:
		return u.LemonSqueezyCustomerID
	case ProviderWebXPay:
		return u.WebXPayCustomerID
	}
	return ""
}

func (u *User) SetCustomerID(p Provider, id string) {
	switch p {
	case ProviderStripe:
		u.StripeCustomerID = id
	case ProviderLemonSqueezy:
		u.LemonSqueezyCustomerID = id
	case ProviderWebXPay:
		u.WebXPayCustomerID = id
	}
}
