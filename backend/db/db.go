// Package db is the MySQL implementation of every engine store.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/go-sql-driver/mysql"
)

const errDuplicateEntry = 1062

// Store wraps the connection pool. All multi-row writes run in a single
// transaction.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// duplicateKey reports whether err is a unique violation on the named index.
// An empty index matches any unique violation.
func duplicateKey(err error, index string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != errDuplicateEntry {
		return false
	}
	return index == "" || strings.Contains(me.Message, index)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *Store) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// warnUnlessOne logs when an update that targets one row touched a different
// number of rows.
func warnUnlessOne(result sql.Result, statement string) {
	n, err := result.RowsAffected()
	if err != nil {
		log.WithError(err).Warnf("%s: rows affected unknown", statement)
		return
	}
	if n != 1 {
		log.WithField("rows", n).Warnf("%s: expected to affect 1 row", statement)
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func rollback(tx *sql.Tx, err error) error {
	rbErr := tx.Rollback()
	if rbErr == nil || errors.Is(rbErr, sql.ErrTxDone) {
		return err
	}
	if err == nil {
		return fmt.Errorf("rollback failed: %w", rbErr)
	}
	return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
}
