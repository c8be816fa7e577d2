// Package repository holds the generic query helpers the domain stores build
// on: typed row scanning, single and multi-row queries, and transactions.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
)

// Querier is satisfied by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor is satisfied by *sql.DB, *sql.Tx, and *sql.Conn.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Scanner is a *sql.Row or *sql.Rows positioned on a row.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc reads one row into T. Each domain defines its own.
type ScanFunc[T any] func(Scanner) (T, error)

// Scalar scans a single-column row into T.
func Scalar[T any](s Scanner) (T, error) {
	var v T
	err := s.Scan(&v)
	return v, err
}

// WithTx runs fn inside a transaction, committing when fn succeeds and
// rolling back otherwise, including when fn panics.
func WithTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (result T, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if result, err = fn(tx); err != nil {
		return result, err
	}
	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return result, nil
}

// QueryOne scans the single row query returns. A missing row surfaces as
// sql.ErrNoRows for MapError to translate.
func QueryOne[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) (T, error) {
	return scan(q.QueryRowContext(ctx, query, args...))
}

// Rows yields each scanned row of query. Iteration stops at the first error,
// which is yielded with the zero T.
func Rows[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			yield(zero, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// QueryMany collects every row of query. The slice is empty, never nil, when
// nothing matches.
func QueryMany[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) ([]T, error) {
	results := make([]T, 0)
	for item, err := range Rows(ctx, q, query, args, scan) {
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, nil
}

// ExecExpectOne runs a statement that must affect exactly one row; zero rows
// is reported as sql.ErrNoRows.
func ExecExpectOne(ctx context.Context, e Executor, query string, args ...any) error {
	result, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	switch {
	case err != nil:
		return err
	case n == 0:
		return sql.ErrNoRows
	case n > 1:
		return fmt.Errorf("expected one affected row, got %d", n)
	}
	return nil
}
