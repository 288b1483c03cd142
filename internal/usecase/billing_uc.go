package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/model"
	"saas-billing-backend/internal/domain/ports/adapter"
	"saas-billing-backend/internal/domain/ports/repository"
	"saas-billing-backend/internal/infra/metrics"
)

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

type BillingUseCase interface {
	// ApplyPaymentEvent records the payment and updates the owning user's
	// plan fields in one transaction, then best-effort syncs the plan to
	// the identity provider. Replaying a (provider, event id) pair is a
	// no-op unless the replay carries a legal status transition for the
	// same logical transaction; a transition landing on paid provisions
	// the user exactly like a fresh success.
	ApplyPaymentEvent(ctx context.Context, ev *model.ProviderEvent) (*model.PaymentHistory, error)

	// ApplySubscriptionEvent mutates the user's denormalized plan fields.
	// Events for customers this system has never seen are dropped with
	// domain.ErrNotFound; callers acknowledge them so providers stop
	// retrying.
	ApplySubscriptionEvent(ctx context.Context, ev *model.ProviderEvent) (*model.User, error)
}

type billingUC struct {
	payments repository.PaymentHistoryRepository
	users    repository.UserRepository
	tm       repository.TransactionManager
	identity adapter.IdentitySyncer // nil when identity sync is not configured
	log      *zerolog.Logger
}

func NewBillingUseCase(
	payments repository.PaymentHistoryRepository,
	users repository.UserRepository,
	tm repository.TransactionManager,
	identity adapter.IdentitySyncer,
	logger *zerolog.Logger,
) *billingUC {
	return &billingUC{payments: payments, users: users, tm: tm, identity: identity, log: logger}
}

func statusForAction(a model.Action) (model.PaymentStatus, bool) {
	switch a {
	case model.ActionPaymentSucceeded:
		return model.PaymentStatusPaid, true
	case model.ActionPaymentFailed:
		return model.PaymentStatusFailed, true
	case model.ActionPaymentRefunded:
		return model.PaymentStatusRefunded, true
	}
	return "", false
}

// legalTransition is the closed set of status moves a later webhook for the
// same logical transaction may drive. Anything else replays as a no-op.
func legalTransition(from, to model.PaymentStatus) bool {
	switch from {
	case model.PaymentStatusPending:
		return to == model.PaymentStatusPaid || to == model.PaymentStatusFailed
	case model.PaymentStatusFailed:
		return to == model.PaymentStatusPaid
	case model.PaymentStatusPaid:
		return to == model.PaymentStatusRefunded
	}
	return false
}

type paymentTxResult struct {
	record *model.PaymentHistory
	user   *model.User
}

func (b *billingUC) ApplyPaymentEvent(ctx context.Context, ev *model.ProviderEvent) (*model.PaymentHistory, error) {
	if ev == nil || ev.EventID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !ev.Provider.Valid() {
		return nil, domain.ErrUnknownProvider
	}
	status, ok := statusForAction(ev.Action)
	if !ok {
		return nil, domain.ErrInvalidArgument
	}

	// Fast idempotency path before opening a transaction.
	if existing, err := b.payments.FindByProviderEvent(ctx, ev.Provider, ev.EventID); err == nil {
		return b.replay(ctx, existing, ev, status)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	willSync := b.identity != nil && ev.Action == model.ActionPaymentSucceeded

	res, err := b.tm.WithTransactionAndExternal(ctx,
		func(ctx context.Context) (any, error) {
			user, err := b.resolveUser(ctx, ev)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}

			now := time.Now().UTC()
			rec := &model.PaymentHistory{
				ID:              uuid.NewString(),
				Provider:        ev.Provider,
				ProviderEventID: ev.EventID,
				Status:          status,
				Amount:          ev.Amount,
				Currency:        ev.Currency,
				RawPayload:      ev.RawPayload,
				Reconcile:       model.ReconcileNone,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if user != nil {
				rec.UserID = user.ID
			}
			if willSync && user != nil {
				rec.Reconcile = model.ReconcilePending
			}
			if err := b.payments.Insert(ctx, rec); err != nil {
				return nil, err
			}

			if user != nil && ev.Action == model.ActionPaymentSucceeded {
				if err := b.grantSuccess(ctx, user, ev); err != nil {
					return nil, err
				}
			}
			return &paymentTxResult{record: rec, user: user}, nil
		},
		b.planSyncAfterCommit(ev),
	)
	if err != nil {
		var recErr *domain.ReconciliationError
		if errors.As(err, &recErr) {
			metrics.IncReconcileFailure(string(ev.Provider))
			// Committed writes stand; hand the caller both.
			return res.(*paymentTxResult).record, recErr
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost a race against a concurrent replay of the same event.
			if existing, ferr := b.payments.FindByProviderEvent(ctx, ev.Provider, ev.EventID); ferr == nil {
				return existing, nil
			}
			return nil, err
		}
		return nil, err
	}

	tr := res.(*paymentTxResult)
	metrics.IncPayment(string(ev.Provider), string(tr.record.Status))
	return tr.record, nil
}

// grantSuccess applies the provisioning side of a successful payment: plan
// tier, credit grant, and renewal date on the owning user. Must run inside
// the same transaction as the history write.
func (b *billingUC) grantSuccess(ctx context.Context, user *model.User, ev *model.ProviderEvent) error {
	tier := user.PlanTier
	if ev.PlanTier != "" {
		tier = ev.PlanTier
	}
	renewal := user.RenewalAt
	if ev.RenewalAt != nil {
		renewal = ev.RenewalAt
	}
	if err := b.users.UpdatePlan(ctx, user.ID, tier, user.Credits+ev.Credits, renewal); err != nil {
		return err
	}
	user.PlanTier = tier
	user.Credits += ev.Credits
	user.RenewalAt = renewal
	return nil
}

// planSyncAfterCommit pushes the user's plan to the identity provider once
// the billing writes are committed, then flips the reconcile marker. Only
// rows flagged pending inside the transaction enter this path, and pending
// is only set when an identity syncer is configured.
func (b *billingUC) planSyncAfterCommit(ev *model.ProviderEvent) func(ctx context.Context, result any) error {
	return func(ctx context.Context, result any) error {
		tr := result.(*paymentTxResult)
		if tr.user == nil || tr.record.Reconcile != model.ReconcilePending {
			return nil
		}
		if err := b.identity.SyncPlan(ctx, tr.user.SubjectID, tr.user.PlanTier); err != nil {
			return &domain.ReconciliationError{
				Provider: string(ev.Provider),
				EventID:  ev.EventID,
				Err:      err,
			}
		}
		// Marker write sits outside the transaction: if it fails the
		// sweeper re-reports an already-synced row, which is harmless.
		if err := b.payments.SetReconcile(ctx, tr.record.ID, model.ReconcileSynced); err != nil {
			b.log.Warn().Err(err).Str("payment_id", tr.record.ID).Msg("mark reconciled failed")
		} else {
			tr.record.Reconcile = model.ReconcileSynced
		}
		return nil
	}
}

// replay handles redelivery of a known (provider, event id): exact replays
// are no-ops; a different status is applied only when the transition is
// legal for the payment lifecycle. A repair landing on paid (a success
// callback after a recorded failure) provisions credits, plan fields, and
// the identity sync the same way a fresh success does.
func (b *billingUC) replay(ctx context.Context, existing *model.PaymentHistory, ev *model.ProviderEvent, status model.PaymentStatus) (*model.PaymentHistory, error) {
	if existing.Status == status || !legalTransition(existing.Status, status) {
		return existing, nil
	}

	if status != model.PaymentStatusPaid {
		// Failure and refund transitions carry no provisioning: refunds
		// keep the history row and leave credit clawback to an operator.
		_, err := b.tm.WithRetryTransaction(ctx, repository.DefaultRetryOptions(), func(ctx context.Context) (any, error) {
			return nil, b.payments.UpdateStatus(ctx, existing.ID, status)
		})
		if err != nil {
			return nil, err
		}
		existing.Status = status
		metrics.IncPayment(string(existing.Provider), string(status))
		return existing, nil
	}

	willSync := b.identity != nil
	res, err := b.tm.WithTransactionAndExternal(ctx,
		func(ctx context.Context) (any, error) {
			user, err := b.resolveUser(ctx, ev)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			if err := b.payments.UpdateStatus(ctx, existing.ID, status); err != nil {
				return nil, err
			}
			existing.Status = status
			if willSync && user != nil {
				if err := b.payments.SetReconcile(ctx, existing.ID, model.ReconcilePending); err != nil {
					return nil, err
				}
				existing.Reconcile = model.ReconcilePending
			}
			if user != nil {
				if err := b.grantSuccess(ctx, user, ev); err != nil {
					return nil, err
				}
			}
			return &paymentTxResult{record: existing, user: user}, nil
		},
		b.planSyncAfterCommit(ev),
	)
	if err != nil {
		var recErr *domain.ReconciliationError
		if errors.As(err, &recErr) {
			metrics.IncReconcileFailure(string(ev.Provider))
			return res.(*paymentTxResult).record, recErr
		}
		return nil, err
	}
	metrics.IncPayment(string(existing.Provider), string(status))
	return res.(*paymentTxResult).record, nil
}

func (b *billingUC) ApplySubscriptionEvent(ctx context.Context, ev *model.ProviderEvent) (*model.User, error) {
	if ev == nil {
		return nil, domain.ErrInvalidArgument
	}
	if !ev.Provider.Valid() {
		return nil, domain.ErrUnknownProvider
	}
	switch ev.Action {
	case model.ActionSubscriptionCreated, model.ActionSubscriptionUpdated, model.ActionSubscriptionCanceled:
	default:
		return nil, domain.ErrInvalidArgument
	}

	res, err := b.tm.WithTransactionAndExternal(ctx,
		func(ctx context.Context) (any, error) {
			user, err := b.resolveUser(ctx, ev)
			if err != nil {
				return nil, err
			}

			// First sight of this provider's customer id: remember it so
			// later payment events can resolve the user without metadata.
			if ev.CustomerID != "" && user.CustomerID(ev.Provider) == "" {
				if err := b.users.SetCustomerID(ctx, user.ID, ev.Provider, ev.CustomerID); err != nil {
					return nil, err
				}
				user.SetCustomerID(ev.Provider, ev.CustomerID)
			}

			tier := ev.PlanTier
			renewal := ev.RenewalAt
			if ev.Action == model.ActionSubscriptionCanceled {
				tier = model.PlanTierFree
				renewal = nil
			}
			if tier == "" {
				tier = user.PlanTier
			}
			if err := b.users.UpdatePlan(ctx, user.ID, tier, user.Credits, renewal); err != nil {
				return nil, err
			}
			user.PlanTier = tier
			user.RenewalAt = renewal
			return user, nil
		},
		func(ctx context.Context, result any) error {
			if b.identity == nil {
				return nil
			}
			user := result.(*model.User)
			if err := b.identity.SyncPlan(ctx, user.SubjectID, user.PlanTier); err != nil {
				return &domain.ReconciliationError{Provider: string(ev.Provider), EventID: ev.EventID, Err: err}
			}
			return nil
		},
	)
	if err != nil {
		var recErr *domain.ReconciliationError
		if errors.As(err, &recErr) {
			metrics.IncReconcileFailure(string(ev.Provider))
			return res.(*model.User), recErr
		}
		return nil, err
	}
	return res.(*model.User), nil
}

// resolveUser prefers the identity subject when the provider carried it in
// metadata, then falls back to the stored provider customer id.
func (b *billingUC) resolveUser(ctx context.Context, ev *model.ProviderEvent) (*model.User, error) {
	if ev.SubjectID != "" {
		u, err := b.users.FindBySubjectID(ctx, ev.SubjectID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if ev.CustomerID != "" {
		return b.users.FindByCustomerID(ctx, ev.Provider, ev.CustomerID)
	}
	return nil, domain.ErrNotFound
}
