package repository

import (
	"context"
	"time"

	"saas-billing-backend/internal/domain/model"
)

type PaymentHistoryRepository interface {
	// Insert stores a new history row. Replaying the same
	// (provider, provider event id) returns domain.ErrAlreadyExists.
	Insert(ctx context.Context, p *model.PaymentHistory) error

	FindByProviderEvent(ctx context.Context, provider model.Provider, eventID string) (*model.PaymentHistory, error)

	// UpdateStatus moves a row through its status transitions
	// (pending -> paid -> refunded and the like).
	UpdateStatus(ctx context.Context, id string, status model.PaymentStatus) error

	// SetReconcile moves the row's external-sync marker
	// (none -> pending -> synced).
	SetReconcile(ctx context.Context, id string, state model.ReconcileState) error

	// ListUnreconciled returns rows whose post-commit external sync has not
	// confirmed and which are older than cutoff.
	ListUnreconciled(ctx context.Context, cutoff time.Time, limit int64) ([]*model.PaymentHistory, error)
}
