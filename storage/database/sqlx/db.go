// Package sqlxrepos implements the repositories on postgres with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type txKey struct{}

// DB runs the repositories' statements on the transaction carried by the context, if any.
type DB struct {
	db *sqlx.DB
}

var _ core.TxManager = (*DB)(nil)

func NewDB(db *sqlx.DB) *DB {
	return &DB{db: db}
}

// RunInTx runs fn in a transaction, committed when fn returns nil.
// Calls nested in fn join the outer transaction.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx) // join
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// getExec returns the transaction of ctx, or the database.
func (d *DB) getExec(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return d.db
}

// in expands a query with an IN (?) clause and rebinds it for postgres.
func (d *DB) in(query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return d.db.Rebind(q), a, nil
}

// trapNoRowsErr maps the "no rows" error to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// pqErrCode returns the postgres error code and constraint of err, if it is a postgres error.
func pqErrCode(err error) (code, constraint string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := pqErrCode(err)
	return code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	code, _ := pqErrCode(err)
	return code == foreignKeyViolation
}

// validID reports whether id can be compared to a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

// orderBy renders orderings, defaulting to def.
func orderBy(ordering []core.DBOrdering, def string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + def
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// checkAffected returns notFound when res did not touch any row.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func sqlxGet(ctx context.Context, d *DB, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, d.getExec(ctx), dest, query, args...)
}

func sqlxSelect(ctx context.Context, d *DB, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, d.getExec(ctx), dest, query, args...)
}

func sqlxNamedExec(ctx context.Context, d *DB, query string, arg interface{}) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, d.getExec(ctx), query, arg)
}

// getByID loads the row of query (which filters on id = $1) into dest.
func (d *DB) getByID(ctx context.Context, dest interface{}, query, id string, notFound error, msg string) error {
	if !validID(id) {
		return notFound
	}
	return trapNoRowsErr(sqlxGet(ctx, d, dest, query, id), notFound, msg)
}

// deleteByIDs deletes the rows of table whose id is in ids.
func (d *DB) deleteByIDs(ctx context.Context, table string, ids []string) error {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	q, args, err := d.in(`DELETE FROM `+table+` WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = d.getExec(ctx).ExecContext(ctx, q, args...)
	return errors.Wrapf(err, "deleting %s", table)
}

// where joins conditions with AND.
func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
