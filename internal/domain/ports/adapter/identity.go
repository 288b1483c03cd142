package adapter

import (
	"context"

	"saas-billing-backend/internal/domain/model"
)

// IdentitySyncer pushes plan metadata back to the identity provider after a
// billing change commits. The call sits outside the database transaction
// and cannot participate in its atomicity.
type IdentitySyncer interface {
	SyncPlan(ctx context.Context, subjectID string, tier model.PlanTier) error
}
