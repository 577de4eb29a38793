package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/barcrawl/backend/internal/repo"
	"github.com/pkordes/barcrawl/backend/testutil"
)

// newTestRepos opens a single transaction and returns every repository bound
// to it, plus the transaction itself for inserting fixtures the repos cannot
// create. Everything is rolled back automatically when the test finishes.
func newTestRepos(t *testing.T) (repo.Repos, pgx.Tx) {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return repo.NewRepos(tx), tx
}

// insertID runs an INSERT ... RETURNING id and fails the test on error.
func insertID(t *testing.T, tx pgx.Tx, q string, args pgx.NamedArgs) uuid.UUID {
	t.Helper()
	var id pgtype.UUID
	require.NoError(t, tx.QueryRow(context.Background(), q, args).Scan(&id))
	return uuid.UUID(id.Bytes)
}

func mustInsertBar(t *testing.T, tx pgx.Tx, name string, lat, lon float64) uuid.UUID {
	t.Helper()
	return insertID(t, tx, `
		INSERT INTO bars (name, address, latitude, longitude)
		VALUES (@name, @address, @lat, @lon)
		RETURNING id`,
		pgx.NamedArgs{"name": name, "address": name + " Street", "lat": lat, "lon": lon})
}

func mustInsertEvent(t *testing.T, tx pgx.Tx) uuid.UUID {
	t.Helper()
	return insertID(t, tx, `
		INSERT INTO events (name, status, start_date)
		VALUES ('Friday Crawl', 'active', @start)
		RETURNING id`,
		pgx.NamedArgs{"start": time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)})
}

func mustInsertGroup(t *testing.T, tx pgx.Tx, eventID uuid.UUID, number int) uuid.UUID {
	t.Helper()
	return insertID(t, tx, `
		INSERT INTO groups (event_id, number, name)
		VALUES (@event_id, @number, 'Group ' || @number::text)
		RETURNING id`,
		pgx.NamedArgs{"event_id": eventID, "number": number})
}
