// Package service holds the two cores of the backend: the admission
// controller guarding occurrence capacity and the prize allocation
// engine.  Services own their transactions; repositories only provide
// the statements that run inside them.
package service

import (
	"context"
	"database/sql"
)

// txRunner executes fn inside one database transaction, rolling back
// unless fn and the commit both succeed.  Services hold it as a field
// so tests can substitute a runner that invokes fn directly.
type txRunner func(ctx context.Context, fn func(tx *sql.Tx) error) error

// newTxRunner builds a txRunner over the given database handle.
func newTxRunner(db *sql.DB) txRunner {
	return func(ctx context.Context, fn func(tx *sql.Tx) error) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		return nil
	}
}
