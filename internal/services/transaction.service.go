package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"findmyspot/internal/database"
	"findmyspot/pkg/logger"

	"gorm.io/gorm"
)

// Transactor runs fn inside one unit of work that is committed when fn returns
// nil and rolled back otherwise.
type Transactor interface {
	Execute(ctx context.Context, fn func(context.Context, *gorm.DB) error) error
}

// TransactionService runs units of work in SQL transactions.
type TransactionService struct {
	db  database.DB
	log logger.Logger
}

func NewTransactionService(db database.DB) *TransactionService {
	return &TransactionService{
		db:  db,
		log: logger.New("TransactionService"),
	}
}

// Execute runs the provided function within a database transaction.
// Panics are converted to errors unless rollback fails, which crashes the
// service rather than continuing with unknown state. A failed rollback after
// a function error is reported as ErrInconsistentState.
func (ts *TransactionService) Execute(
	ctx context.Context,
	fn func(context.Context, *gorm.DB) error,
) (err error) {
	log := ts.log.TraceFromContext(ctx).Function("Execute")

	tx := ts.db.SQLWithContext(ctx).Begin()
	if tx.Error != nil {
		return log.Err("failed to begin transaction", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("panic during transaction: %v", r)
			log.Er("panic during transaction, rolling back", panicErr)

			if rollbackErr := rollback(tx); rollbackErr != nil {
				log.Er("CRITICAL: failed to rollback after panic", rollbackErr, "panic", r)
				panic(
					fmt.Sprintf(
						"transaction rollback failed: %v (original panic: %v)",
						rollbackErr,
						r,
					),
				)
			}

			log.Info("transaction rolled back successfully after panic")
			err = panicErr
		}
	}()

	if err = fn(ctx, tx); err != nil {
		if rollbackErr := rollback(tx); rollbackErr != nil {
			log.Er("CRITICAL: failed to rollback after function error", rollbackErr, "originalError", err)
			return fmt.Errorf("%w: rollback failed: %v (original error: %w)", ErrInconsistentState, rollbackErr, err)
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return log.Err("failed to commit transaction", err)
	}

	return nil
}

// rollback treats an already finished transaction as rolled back, which is
// what the driver reports when the context was cancelled mid-transaction.
func rollback(tx *gorm.DB) error {
	err := tx.Rollback().Error
	if err != nil && errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
