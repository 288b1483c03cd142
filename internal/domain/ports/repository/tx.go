package repository

import (
	"context"
	"time"
)

// RetryOptions bounds the transient-retry loop of WithRetryTransaction.
type RetryOptions struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// TransactionManager sequences database writes in an atomic session and,
// optionally, a post-commit external call. The session rides the context
// handed to fn: repository methods called with that context join the
// transaction.
type TransactionManager interface {
	// WithTransaction runs fn transactionally: commit when fn returns nil,
	// abort and propagate otherwise. Writes through fn's context are
	// all-or-nothing.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error)

	// WithTransactionAndExternal commits fn's writes first and only then
	// invokes afterCommit with fn's result. If afterCommit fails, the
	// committed writes stand and the failure surfaces as a
	// *domain.ReconciliationError.
	WithTransactionAndExternal(
		ctx context.Context,
		fn func(ctx context.Context) (any, error),
		afterCommit func(ctx context.Context, result any) error,
	) (any, error)

	// WithRetryTransaction retries WithTransaction on errors the store
	// classifies as transient (write conflict, transient network error).
	// Non-transient errors propagate without retry.
	WithRetryTransaction(ctx context.Context, opts RetryOptions, fn func(ctx context.Context) (any, error)) (any, error)
}
