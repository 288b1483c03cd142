package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownProvider = errors.New("unknown payment provider")
	ErrNotConfigured   = errors.New("provider is not configured")
)

// ConnectionError is returned by the connection manager after it has
// exhausted its retry budget. The request that triggered it cannot proceed.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database connection failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransactionError is a non-transient transaction failure surfaced to the
// caller. Transient failures are retried inside the orchestrator and never
// reach callers on eventual success.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// ReconciliationError reports a post-commit external call that failed. The
// database writes are already committed and are never rolled back; callers
// must treat the state as partially applied and leave follow-up to the
// reconciliation sweep or an operator.
type ReconciliationError struct {
	Provider string
	EventID  string
	Err      error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed for %s event %s: %v", e.Provider, e.EventID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// SignatureVerificationError rejects an inbound webhook before any of its
// content is parsed.
type SignatureVerificationError struct {
	Provider string
	Reason   string
}

func (e *SignatureVerificationError) Error() string {
	return fmt.Sprintf("%s webhook signature rejected: %s", e.Provider, e.Reason)
}

// RateLimitError rejects a request whose (client, category) window is full.
type RateLimitError struct {
	ClientID   string
	Category   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s on %s, retry after %s", e.ClientID, e.Category, e.RetryAfter)
}

// ConfigurationError blocks normal operation until the named entries are
// provided. Surfaced by the environment validator at startup and by the
// setup gate on requests.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration incomplete: %v", e.Missing)
}
