// Package repo contains all database access logic for the bar crawl coordinator.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/barcrawl/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txBeginner is a db that can open a transaction. *pgxpool.Pool opens a real
// transaction; pgx.Tx opens a savepoint.
type txBeginner interface {
	db
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repos bundles every repository bound to the same connection or transaction.
type Repos struct {
	Bars   BarRepo
	Events EventRepo
	Stops  StopRepo
	Groups GroupRepo
}

// NewRepos builds all repositories over db.
func NewRepos(db db) Repos {
	return Repos{
		Bars:   NewBarRepo(db),
		Events: NewEventRepo(db),
		Stops:  NewStopRepo(db),
		Groups: NewGroupRepo(db),
	}
}

// Store hands out repositories and runs units of work atomically.
// The service layer depends on this interface so it can be unit-tested
// with an in-memory double.
type Store interface {
	// Repos returns repositories that run each statement on its own.
	Repos() Repos

	// WithinTx runs fn with repositories bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

// pgStore is the Postgres implementation of Store.
type pgStore struct {
	conn  txBeginner
	repos Repos
}

// NewStore constructs a Store over conn.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewStore(conn txBeginner) Store {
	return &pgStore{conn: conn, repos: NewRepos(conn)}
}

func (s *pgStore) Repos() Repos {
	return s.repos
}

func (s *pgStore) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	return pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		return fn(NewRepos(tx))
	})
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// uuidPtr converts a nullable UUID column into a *uuid.UUID.
func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

// orderByIDs returns items rearranged into the order of ids. It fails with
// domain.ErrNotFound when any id has no matching item.
func orderByIDs[T any](ids []uuid.UUID, items []T, idOf func(T) uuid.UUID) ([]T, error) {
	byID := make(map[uuid.UUID]T, len(items))
	for _, it := range items {
		byID[idOf(it)] = it
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("id %s: %w", id, domain.ErrNotFound)
		}
		out = append(out, it)
	}
	return out, nil
}
