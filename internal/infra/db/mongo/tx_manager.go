package mongo

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/ports/repository"
	"saas-billing-backend/internal/infra/metrics"
)

// Ensure compile-time conformance
var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager implements repository.TransactionManager on Mongo sessions.
// The session rides the context passed to fn, so repository calls made with
// that context join the transaction. Overlapping transactions are resolved
// by the server's optimistic write-conflict detection, which surfaces here
// as a transient error for the retry wrapper.
type TxManager struct {
	client *mongo.Client
	log    *zerolog.Logger
}

func NewTxManager(m *Manager, logger *zerolog.Logger) *TxManager {
	return &TxManager{client: m.Client(), log: logger}
}

func txnOptions() *options.TransactionOptions {
	return options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
}

// WithTransaction commits when fn returns nil and aborts otherwise.
// fn's own errors pass through unchanged so callers can match them with
// errors.Is; infrastructure failures are wrapped in *domain.TransactionError.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	sess, err := m.client.StartSession()
	if err != nil {
		return nil, &domain.TransactionError{Op: "start", Err: err}
	}
	defer sess.EndSession(ctx)

	var result any
	err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(txnOptions()); err != nil {
			return &domain.TransactionError{Op: "begin", Err: err}
		}
		res, err := fn(sc)
		if err != nil {
			_ = sess.AbortTransaction(sc)
			return err
		}
		if err := sess.CommitTransaction(sc); err != nil {
			return &domain.TransactionError{Op: "commit", Err: err}
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// WithTransactionAndExternal runs fn transactionally and, only after a
// successful commit, invokes afterCommit with fn's result. The committed
// writes are never undone: an afterCommit failure surfaces as a
// *domain.ReconciliationError for the caller to log and leave to follow-up.
func (m *TxManager) WithTransactionAndExternal(
	ctx context.Context,
	fn func(ctx context.Context) (any, error),
	afterCommit func(ctx context.Context, result any) error,
) (any, error) {
	result, err := m.WithTransaction(ctx, fn)
	if err != nil {
		return nil, err
	}
	if afterCommit == nil {
		return result, nil
	}
	if err := afterCommit(ctx, result); err != nil {
		recErr, ok := err.(*domain.ReconciliationError)
		if !ok {
			recErr = &domain.ReconciliationError{Err: err}
		}
		return result, recErr
	}
	return result, nil
}

// WithRetryTransaction retries fn on transient errors with exponential
// backoff. Non-transient errors propagate immediately.
func (m *TxManager) WithRetryTransaction(ctx context.Context, opts repository.RetryOptions, fn func(ctx context.Context) (any, error)) (any, error) {
	if opts.MaxAttempts <= 0 {
		opts = repository.DefaultRetryOptions()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.InitialInterval
	b.MaxInterval = opts.MaxInterval
	b.MaxElapsedTime = 0 // bounded by MaxAttempts, not wall clock

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result, err := m.WithTransaction(ctx, fn)
		if err == nil {
			return result, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
		metrics.IncTxRetry()
		m.log.Warn().Err(err).Int("attempt", attempt).Msg("transient transaction error, retrying")

		if attempt == opts.MaxAttempts {
			break
		}
		wait := b.NextBackOff()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, &domain.TransactionError{Op: "retry", Err: lastErr}
}
