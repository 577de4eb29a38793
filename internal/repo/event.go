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

// EventRepo defines the read operations for Events.
// Event lifecycle is managed elsewhere; routing only needs the itinerary.
type EventRepo interface {
	// GetByID retrieves an event with StopIDs in itinerary order.
	// Returns domain.ErrNotFound if no event with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Event, error)
}

// pgEventRepo is the Postgres implementation of EventRepo.
type pgEventRepo struct {
	db db
}

// NewEventRepo constructs an EventRepo backed by the provided db connection.
func NewEventRepo(db db) EventRepo {
	return &pgEventRepo{db: db}
}

// GetByID retrieves an event by primary key along with its ordered stop IDs.
func (r *pgEventRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	const q = `
		SELECT id, name, status, sign_in_code, coordinator_code, start_date, end_date, created_at, updated_at
		FROM events
		WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	ev, err := scanEvent(row)
	if err != nil {
		return domain.Event{}, fmt.Errorf("repo.EventRepo.GetByID: %w", err)
	}

	const stopsQ = `SELECT id FROM stops WHERE event_id = @id ORDER BY position, created_at`
	rows, err := r.db.Query(ctx, stopsQ, pgx.NamedArgs{"id": id})
	if err != nil {
		return domain.Event{}, fmt.Errorf("repo.EventRepo.GetByID: stops: %w", err)
	}
	defer rows.Close()

	ev.StopIDs = []uuid.UUID{}
	for rows.Next() {
		var stopID pgtype.UUID
		if err := rows.Scan(&stopID); err != nil {
			return domain.Event{}, fmt.Errorf("repo.EventRepo.GetByID: scan stop: %w", err)
		}
		ev.StopIDs = append(ev.StopIDs, uuid.UUID(stopID.Bytes))
	}
	if err := rows.Err(); err != nil {
		return domain.Event{}, fmt.Errorf("repo.EventRepo.GetByID: rows: %w", err)
	}
	return ev, nil
}

// scanEvent maps a single events row into a domain.Event.
// It handles the UUID, status, and nullable end_date conversions.
func scanEvent(s scanner) (domain.Event, error) {
	var (
		ev      domain.Event
		id      pgtype.UUID
		status  string
		endDate pgtype.Timestamptz
	)
	err := s.Scan(&id, &ev.Name, &status, &ev.SignInCode, &ev.CoordinatorCode, &ev.StartDate, &endDate, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, err
	}

	ev.ID = uuid.UUID(id.Bytes)
	if ev.Status, err = domain.ParseEventStatus(status); err != nil {
		return domain.Event{}, err
	}
	if endDate.Valid {
		ed := endDate.Time
		ev.EndDate = &ed
	}
	return ev, nil
}
