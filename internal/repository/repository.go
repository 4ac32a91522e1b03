// Package repository implements the store contracts on PostgreSQL.
// Queries are built with goqu and executed with pgx.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers the dialect
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

const (
	tableEvents        = "events"
	tableUsers         = "users"
	tableMemberships   = "memberships"
	tableNotifications = "notifications"

	// SQLSTATE foreign_key_violation
	pgForeignKeyViolation = "23503"
)

var (
	dialect = goqu.Dialect("postgres")
	json    = jsoniter.ConfigCompatibleWithStandardLibrary
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// repository code runs inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func build(ds sqlBuilder) (string, []any, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return query, args, nil
}

// notFoundOr maps pgx.ErrNoRows to model.ErrNotFound and wraps anything else.
func notFoundOr(err error, action string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return fmt.Errorf("%s: %w", action, err)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
