package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"saas-billing-backend/internal/domain"
)

const (
	labelTransient     = "TransientTransactionError"
	labelUnknownCommit = "UnknownTransactionCommitResult"
)

type labeledError interface {
	HasErrorLabel(string) bool
}

// IsTransient reports whether an error should be retried by
// WithRetryTransaction: write conflicts and commit results the server
// labels transient, plus network timeouts. Everything else propagates.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var le labeledError
	if errors.As(err, &le) {
		if le.HasErrorLabel(labelTransient) || le.HasErrorLabel(labelUnknownCommit) {
			return true
		}
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	return false
}

// mapWriteError converts driver-level write errors into domain errors so
// callers above the repo layer never import the driver.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrAlreadyExists
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	return err
}
