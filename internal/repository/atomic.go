package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	appErrors "github.com/campusgate/admissions-api/pkg/errors"
)

// Postgres SQLSTATE codes that signal a retryable commit-time conflict.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// TxRunner executes closures inside serializable transactions, retrying a
// bounded number of times when the database detects a write conflict. The
// closure must be idempotent: it may run more than once before a commit
// succeeds.
type TxRunner struct {
	db         *sqlx.DB
	maxRetries int
	logger     *zap.Logger
}

// NewTxRunner constructs a TxRunner.
func NewTxRunner(db *sqlx.DB, maxRetries int, logger *zap.Logger) *TxRunner {
	if maxRetries < 1 {
		maxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TxRunner{db: db, maxRetries: maxRetries, logger: logger}
}

// Run executes fn inside a serializable transaction. All reads and writes
// issued through the provided tx commit together or not at all. Serialization
// failures are retried transparently; exhausted retries surface as a conflict
// the caller may retry as a whole.
func (r *TxRunner) Run(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if !isRetryableConflict(err) {
				return err
			}
			lastErr = err
			r.logger.Sugar().Warnw("transaction conflicted, retrying", "attempt", attempt, "error", err)
			continue
		}

		if err := tx.Commit(); err != nil {
			if !isRetryableConflict(err) {
				return fmt.Errorf("commit tx: %w", err)
			}
			lastErr = err
			r.logger.Sugar().Warnw("commit conflicted, retrying", "attempt", attempt, "error", err)
			continue
		}
		return nil
	}
	return appErrors.Wrap(lastErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status,
		"operation conflicted with concurrent activity, please try again")
}

func isRetryableConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqSerializationFailure || string(pqErr.Code) == pqDeadlockDetected
	}
	return false
}
