package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"saas-billing-backend/internal/domain/ports/repository"
	"saas-billing-backend/internal/infra/metrics"
)

// ReconcileSweeper periodically scans for payments whose post-commit plan
// sync to the identity provider never completed. It only reports: rows stay
// pending until an operator (or a later webhook for the same subscription)
// resolves them. Automatic re-sync is deliberately out of scope because a
// blind retry can race a newer plan change.
type ReconcileSweeper struct {
	payments   repository.PaymentHistoryRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending row must be to count
	log        *zerolog.Logger
}

func NewReconcileSweeper(payments repository.PaymentHistoryRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *ReconcileSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &ReconcileSweeper{payments: payments, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *ReconcileSweeper) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *ReconcileSweeper) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.payments.ListUnreconciled(ctx, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("reconcile-sweeper: list unreconciled failed")
		return
	}
	metrics.SetReconcileBacklog(len(stale))
	if len(stale) == 0 {
		return
	}
	for _, p := range stale {
		w.log.Warn().
			Str("payment_id", p.ID).
			Str("provider", string(p.Provider)).
			Str("provider_event_id", p.ProviderEventID).
			Time("created_at", p.CreatedAt).
			Msg("reconcile-sweeper: plan sync still pending")
	}
	w.log.Info().Int("count", len(stale)).Msg("reconcile-sweeper: backlog reported")
}
