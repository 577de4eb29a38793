package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/barcrawl/backend/internal/domain"
)

// StopRepo defines the persistence operations for Stops and their queues.
// Every read returns the stop with its bar joined and all three queue
// collections populated in order.
type StopRepo interface {
	// Create inserts a new stop at the end of its event's itinerary and
	// returns the persisted record with empty queues.
	Create(ctx context.Context, stop domain.Stop) (domain.Stop, error)

	// GetByID retrieves a single stop by its UUID.
	// Returns domain.ErrNotFound if no stop with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Stop, error)

	// GetByIDForUpdate is GetByID that also locks the stop row until the
	// surrounding transaction ends. Outside a transaction the lock is released
	// as soon as the statement completes.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Stop, error)

	// ListByIDs returns the stops with the given IDs in the same order.
	// Returns domain.ErrNotFound if any ID does not exist.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Stop, error)

	// ListByEventID returns all stops of an event in itinerary order.
	ListByEventID(ctx context.Context, eventID uuid.UUID) ([]domain.Stop, error)

	// Save replaces the stop's queue collections with those of stop.
	// Returns domain.ErrNotFound if the stop does not exist.
	Save(ctx context.Context, stop domain.Stop) (domain.Stop, error)

	// Delete removes a stop by ID, along with its queue entries.
	// Returns domain.ErrNotFound if the stop does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// pgStopRepo is the Postgres implementation of StopRepo.
type pgStopRepo struct {
	db db
}

// NewStopRepo constructs a StopRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewStopRepo(db db) StopRepo {
	return &pgStopRepo{db: db}
}

const stopColumns = `
		s.id, s.event_id, s.bar_id, s.position, s.created_at, s.updated_at,
		b.id, b.name, b.address, b.latitude, b.longitude, b.created_at, b.updated_at`

// Create inserts a stop positioned after the event's current last stop.
func (r *pgStopRepo) Create(ctx context.Context, stop domain.Stop) (domain.Stop, error) {
	const q = `
		INSERT INTO stops (event_id, bar_id, position)
		VALUES (
			@event_id,
			@bar_id,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM stops WHERE event_id = @event_id)
		)
		RETURNING id`

	var id pgtype.UUID
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"event_id": stop.EventID,
		"bar_id":   stop.BarID,
	}).Scan(&id)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("repo.StopRepo.Create: %w", err)
	}

	created, err := r.get(ctx, uuid.UUID(id.Bytes), false)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("repo.StopRepo.Create: %w", err)
	}
	return created, nil
}

// GetByID retrieves a stop by primary key.
func (r *pgStopRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Stop, error) {
	result, err := r.get(ctx, id, false)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("repo.StopRepo.GetByID: %w", err)
	}
	return result, nil
}

// GetByIDForUpdate retrieves a stop by primary key and locks its row.
func (r *pgStopRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Stop, error) {
	result, err := r.get(ctx, id, true)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("repo.StopRepo.GetByIDForUpdate: %w", err)
	}
	return result, nil
}

func (r *pgStopRepo) get(ctx context.Context, id uuid.UUID, lock bool) (domain.Stop, error) {
	q := `SELECT` + stopColumns + `
		FROM stops s
		JOIN bars b ON b.id = s.bar_id
		WHERE s.id = @id`
	if lock {
		q += `
		FOR UPDATE OF s`
	}

	stop, err := scanStop(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Stop{}, err
	}

	stops := []domain.Stop{stop}
	if err := r.loadQueues(ctx, stops); err != nil {
		return domain.Stop{}, err
	}
	return stops[0], nil
}

// ListByIDs returns the requested stops in the order given.
func (r *pgStopRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Stop, error) {
	if len(ids) == 0 {
		return []domain.Stop{}, nil
	}

	q := `SELECT` + stopColumns + `
		FROM stops s
		JOIN bars b ON b.id = s.bar_id
		WHERE s.id = ANY(@ids)`

	stops, err := r.list(ctx, q, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("repo.StopRepo.ListByIDs: %w", err)
	}
	ordered, err := orderByIDs(ids, stops, func(s domain.Stop) uuid.UUID { return s.ID })
	if err != nil {
		return nil, fmt.Errorf("repo.StopRepo.ListByIDs: %w", err)
	}
	return ordered, nil
}

// ListByEventID returns an event's stops ordered by position.
func (r *pgStopRepo) ListByEventID(ctx context.Context, eventID uuid.UUID) ([]domain.Stop, error) {
	q := `SELECT` + stopColumns + `
		FROM stops s
		JOIN bars b ON b.id = s.bar_id
		WHERE s.event_id = @event_id
		ORDER BY s.position, s.created_at`

	stops, err := r.list(ctx, q, pgx.NamedArgs{"event_id": eventID})
	if err != nil {
		return nil, fmt.Errorf("repo.StopRepo.ListByEventID: %w", err)
	}
	return stops, nil
}

func (r *pgStopRepo) list(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Stop, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stops := []domain.Stop{}
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if err := r.loadQueues(ctx, stops); err != nil {
		return nil, err
	}
	return stops, nil
}

// loadQueues fills the three queue collections of every stop in place.
func (r *pgStopRepo) loadQueues(ctx context.Context, stops []domain.Stop) error {
	if len(stops) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(stops))
	index := make(map[uuid.UUID]int, len(stops))
	for i, s := range stops {
		ids[i] = s.ID
		index[s.ID] = i
	}

	const q = `
		SELECT stop_id, group_id, queue
		FROM stop_queue_entries
		WHERE stop_id = ANY(@ids)
		ORDER BY stop_id, seq`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return fmt.Errorf("queues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stopID, groupID pgtype.UUID
			queue           string
		)
		if err := rows.Scan(&stopID, &groupID, &queue); err != nil {
			return fmt.Errorf("queues: scan: %w", err)
		}
		s := &stops[index[uuid.UUID(stopID.Bytes)]]
		gid := uuid.UUID(groupID.Bytes)
		switch domain.Queue(queue) {
		case domain.QueueCurrent:
			s.CurrentGroups = append(s.CurrentGroups, gid)
		case domain.QueueWaiting:
			s.WaitingGroups = append(s.WaitingGroups, gid)
		case domain.QueueInTransit:
			s.InTransitGroups = append(s.InTransitGroups, gid)
		default:
			return fmt.Errorf("queues: unknown queue %q", queue)
		}
	}
	return rows.Err()
}

// Save rewrites the stop's queue entries. Entries are numbered in the order
// current, waiting, in-transit so that each collection reads back in order.
func (r *pgStopRepo) Save(ctx context.Context, stop domain.Stop) (domain.Stop, error) {
	const touch = `UPDATE stops SET updated_at = now() WHERE id = @id RETURNING updated_at`
	if err := r.db.QueryRow(ctx, touch, pgx.NamedArgs{"id": stop.ID}).Scan(&stop.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Stop{}, fmt.Errorf("repo.StopRepo.Save: %w", domain.ErrNotFound)
		}
		return domain.Stop{}, fmt.Errorf("repo.StopRepo.Save: %w", err)
	}

	const clear = `DELETE FROM stop_queue_entries WHERE stop_id = @id`
	if _, err := r.db.Exec(ctx, clear, pgx.NamedArgs{"id": stop.ID}); err != nil {
		return domain.Stop{}, fmt.Errorf("repo.StopRepo.Save: clear queues: %w", err)
	}

	var (
		groups []uuid.UUID
		queues []string
	)
	for _, part := range []struct {
		queue domain.Queue
		ids   []uuid.UUID
	}{
		{domain.QueueCurrent, stop.CurrentGroups},
		{domain.QueueWaiting, stop.WaitingGroups},
		{domain.QueueInTransit, stop.InTransitGroups},
	} {
		for _, id := range part.ids {
			groups = append(groups, id)
			queues = append(queues, string(part.queue))
		}
	}
	if len(groups) == 0 {
		return stop, nil
	}

	const insert = `
		INSERT INTO stop_queue_entries (stop_id, group_id, queue, seq)
		SELECT @stop_id, t.group_id, t.queue, t.seq
		FROM unnest(@groups::uuid[], @queues::text[]) WITH ORDINALITY AS t(group_id, queue, seq)`

	_, err := r.db.Exec(ctx, insert, pgx.NamedArgs{
		"stop_id": stop.ID,
		"groups":  groups,
		"queues":  queues,
	})
	if err != nil {
		return domain.Stop{}, fmt.Errorf("repo.StopRepo.Save: insert queues: %w", err)
	}
	return stop, nil
}

// Delete removes a stop by primary key.
func (r *pgStopRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM stops WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.StopRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.StopRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// scanStop maps a stops row joined with its bar into a domain.Stop with
// empty queue collections.
func scanStop(s scanner) (domain.Stop, error) {
	var (
		st                 domain.Stop
		bar                domain.Bar
		id, eventID, barID pgtype.UUID
		joinedBarID        pgtype.UUID
	)

	err := s.Scan(
		&id, &eventID, &barID, &st.Position, &st.CreatedAt, &st.UpdatedAt,
		&joinedBarID, &bar.Name, &bar.Address, &bar.Coordinates.Latitude, &bar.Coordinates.Longitude, &bar.CreatedAt, &bar.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Stop{}, domain.ErrNotFound
		}
		return domain.Stop{}, err
	}

	st.ID = uuid.UUID(id.Bytes)
	st.EventID = uuid.UUID(eventID.Bytes)
	st.BarID = uuid.UUID(barID.Bytes)
	bar.ID = uuid.UUID(joinedBarID.Bytes)
	st.Bar = &bar
	st.CurrentGroups = []uuid.UUID{}
	st.WaitingGroups = []uuid.UUID{}
	st.InTransitGroups = []uuid.UUID{}
	return st, nil
}
