package repository

import (
	"context"
	"time"

	"saas-billing-backend/internal/domain/model"
)

type UserRepository interface {
	FindBySubjectID(ctx context.Context, subjectID string) (*model.User, error)
	FindByCustomerID(ctx context.Context, provider model.Provider, customerID string) (*model.User, error)

	// UpsertBySubjectID inserts the user when the subject id is unseen and
	// applies mutable profile fields otherwise. Returns the stored user and
	// whether an insert happened. Safe to replay.
	UpsertBySubjectID(ctx context.Context, u *model.User) (*model.User, bool, error)

	UpdatePlan(ctx context.Context, userID string, tier model.PlanTier, credits int64, renewalAt *time.Time) error

	SetCustomerID(ctx context.Context, userID string, provider model.Provider, customerID string) error
}
