// Package sqlxrepos implements the core repositories on top of sqlx,
// against postgres (lib/pq) or sqlite (modernc). Queries are written with
// "?" bindvars and rebound per driver.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	sqlitelib "modernc.org/sqlite"

	"github.com/trezcool/begi/core"
)

const (
	pqUniqueViolation = "23505"

	// SQLITE_CONSTRAINT_PRIMARYKEY and SQLITE_CONSTRAINT_UNIQUE
	sqliteConstraintPK     = 1555
	sqliteConstraintUnique = 2067
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	var sqErr *sqlitelib.Error
	if errors.As(err, &sqErr) {
		code := sqErr.Code()
		return code == sqliteConstraintPK || code == sqliteConstraintUnique
	}
	return false
}

// translateErr maps driver-specific unique violations to core.ErrConflict so
// the services can recover from insert races without knowing the engine.
func translateErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return errors.Wrap(core.ErrConflict, msg)
	}
	return errors.Wrap(err, msg)
}

// inTx runs fn in a serializable transaction, unless ext already is one, in
// which case the ongoing transaction is joined.
func inTx(ctx context.Context, db *sqlx.DB, ext sqlx.ExtContext, fn func(tx sqlx.ExtContext) error) error {
	if tx, ok := ext.(*sqlx.Tx); ok {
		return fn(tx)
	}
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
