package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/ldaa/pkg/repository"
)

var (
	errNotFound  = errors.New("run not found")
	errDuplicate = errors.New("run already exists")
)

func TestMapError(t *testing.T) {
	other := errors.New("connection reset")
	fk := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"wrapped no rows", fmt.Errorf("load checkpoint: %w", sql.ErrNoRows), errNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errDuplicate},
		{"foreign key passthrough", fk, fk},
		{"other passthrough", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repository.MapError(tt.err, errNotFound, errDuplicate); got != tt.want {
				t.Errorf("MapError = %v, want %v", got, tt.want)
			}
		})
	}
}

type row []any

func (r row) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(r))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r[i].(string)
		case *int:
			*p = r[i].(int)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func TestScalar(t *testing.T) {
	id, err := repository.Scalar[string](row{"run-42"})
	if err != nil || id != "run-42" {
		t.Errorf("Scalar[string] = %q, %v", id, err)
	}

	n, err := repository.Scalar[int](row{7})
	if err != nil || n != 7 {
		t.Errorf("Scalar[int] = %d, %v", n, err)
	}

	if _, err := repository.Scalar[string](row{"a", "b"}); err == nil {
		t.Error("expected error for multi-column row")
	}
}

type result int64

func (r result) LastInsertId() (int64, error) { return 0, nil }
func (r result) RowsAffected() (int64, error) { return int64(r), nil }

type executor struct {
	affected int64
	err      error
}

func (e executor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.err != nil {
		return nil, e.err
	}
	return result(e.affected), nil
}

func TestExecExpectOne(t *testing.T) {
	failure := errors.New("deadlock detected")

	tests := []struct {
		name    string
		exec    executor
		want    error
		wantErr bool
	}{
		{"one row", executor{affected: 1}, nil, false},
		{"no rows", executor{affected: 0}, sql.ErrNoRows, true},
		{"many rows", executor{affected: 3}, nil, true},
		{"exec error", executor{err: failure}, failure, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repository.ExecExpectOne(context.Background(), tt.exec, "UPDATE runs SET status = $1", "failed")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
