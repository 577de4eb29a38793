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

// GroupRepo defines the persistence operations for Groups.
// Groups are created in bulk with their event; this service only moves them.
type GroupRepo interface {
	// GetByID retrieves a group with its visited set.
	// Returns domain.ErrNotFound if no group with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error)

	// GetByIDForUpdate is GetByID that also locks the group row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Group, error)

	// ListByIDs returns the groups with the given IDs in the same order.
	// Returns domain.ErrNotFound if any ID does not exist.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Group, error)

	// ListByEventID returns all groups of an event ordered by number.
	ListByEventID(ctx context.Context, eventID uuid.UUID) ([]domain.Group, error)

	// ListPagedByEventID returns one page of an event's groups ordered by
	// number, and the event's total group count.
	ListPagedByEventID(ctx context.Context, eventID uuid.UUID, p domain.PaginationParams) ([]domain.Group, int64, error)

	// CountByStopID returns how many groups reference the stop, whatever
	// their status.
	CountByStopID(ctx context.Context, stopID uuid.UUID) (int64, error)

	// LoadWithRelations retrieves a group and resolves the requested
	// associations (its current stop, its event's itinerary).
	// Returns domain.ErrNotFound if the group or a referenced record is missing.
	LoadWithRelations(ctx context.Context, id uuid.UUID, rels ...domain.GroupRelation) (domain.Group, error)

	// Save persists the group's status, stop, and status timestamp, and adds
	// any new entries of StopsVisited. Visits are never removed.
	// Returns domain.ErrNotFound if the group does not exist.
	Save(ctx context.Context, group domain.Group) (domain.Group, error)
}

// pgGroupRepo is the Postgres implementation of GroupRepo.
type pgGroupRepo struct {
	db db
}

// NewGroupRepo constructs a GroupRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewGroupRepo(db db) GroupRepo {
	return &pgGroupRepo{db: db}
}

const groupColumns = `id, event_id, number, name, status, stop_id, last_status_update, created_at, updated_at`

// GetByID retrieves a group by primary key.
func (r *pgGroupRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	result, err := r.get(ctx, id, false)
	if err != nil {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.GetByID: %w", err)
	}
	return result, nil
}

// GetByIDForUpdate retrieves a group by primary key and locks its row.
func (r *pgGroupRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	result, err := r.get(ctx, id, true)
	if err != nil {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.GetByIDForUpdate: %w", err)
	}
	return result, nil
}

func (r *pgGroupRepo) get(ctx context.Context, id uuid.UUID, lock bool) (domain.Group, error) {
	q := `SELECT ` + groupColumns + ` FROM groups WHERE id = @id`
	if lock {
		q += ` FOR UPDATE`
	}

	g, err := scanGroup(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Group{}, err
	}

	groups := []domain.Group{g}
	if err := r.loadVisits(ctx, groups); err != nil {
		return domain.Group{}, err
	}
	return groups[0], nil
}

// ListByIDs returns the requested groups in the order given.
func (r *pgGroupRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Group, error) {
	if len(ids) == 0 {
		return []domain.Group{}, nil
	}

	q := `SELECT ` + groupColumns + ` FROM groups WHERE id = ANY(@ids)`
	groups, err := r.list(ctx, q, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("repo.GroupRepo.ListByIDs: %w", err)
	}
	ordered, err := orderByIDs(ids, groups, func(g domain.Group) uuid.UUID { return g.ID })
	if err != nil {
		return nil, fmt.Errorf("repo.GroupRepo.ListByIDs: %w", err)
	}
	return ordered, nil
}

// ListByEventID returns an event's groups ordered by their number.
func (r *pgGroupRepo) ListByEventID(ctx context.Context, eventID uuid.UUID) ([]domain.Group, error) {
	q := `SELECT ` + groupColumns + ` FROM groups WHERE event_id = @event_id ORDER BY number`
	groups, err := r.list(ctx, q, pgx.NamedArgs{"event_id": eventID})
	if err != nil {
		return nil, fmt.Errorf("repo.GroupRepo.ListByEventID: %w", err)
	}
	return groups, nil
}

// ListPagedByEventID returns a LIMIT/OFFSET window of an event's groups.
func (r *pgGroupRepo) ListPagedByEventID(ctx context.Context, eventID uuid.UUID, p domain.PaginationParams) ([]domain.Group, int64, error) {
	var total int64
	const countQ = `SELECT COUNT(*) FROM groups WHERE event_id = @event_id`
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"event_id": eventID}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.GroupRepo.ListPagedByEventID: count: %w", err)
	}

	q := `SELECT ` + groupColumns + `
		FROM groups
		WHERE event_id = @event_id
		ORDER BY number
		LIMIT @limit OFFSET @offset`
	groups, err := r.list(ctx, q, pgx.NamedArgs{
		"event_id": eventID,
		"limit":    p.Limit,
		"offset":   p.Offset(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.GroupRepo.ListPagedByEventID: %w", err)
	}
	return groups, total, nil
}

// CountByStopID counts the groups whose stop_id is stopID.
func (r *pgGroupRepo) CountByStopID(ctx context.Context, stopID uuid.UUID) (int64, error) {
	var n int64
	const q = `SELECT COUNT(*) FROM groups WHERE stop_id = @stop_id`
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"stop_id": stopID}).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo.GroupRepo.CountByStopID: %w", err)
	}
	return n, nil
}

func (r *pgGroupRepo) list(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Group, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []domain.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if err := r.loadVisits(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// LoadWithRelations retrieves a group and resolves each requested relation
// using the same connection, so it sees the same transaction.
func (r *pgGroupRepo) LoadWithRelations(ctx context.Context, id uuid.UUID, rels ...domain.GroupRelation) (domain.Group, error) {
	g, err := r.get(ctx, id, false)
	if err != nil {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.LoadWithRelations: %w", err)
	}

	stops := NewStopRepo(r.db)
	for _, rel := range rels {
		switch rel {
		case domain.RelationStop:
			if g.StopID == nil {
				continue
			}
			st, err := stops.GetByID(ctx, *g.StopID)
			if err != nil {
				return domain.Group{}, fmt.Errorf("repo.GroupRepo.LoadWithRelations: stop: %w", err)
			}
			g.Stop = &st

		case domain.RelationEventStops:
			ev, err := NewEventRepo(r.db).GetByID(ctx, g.EventID)
			if err != nil {
				return domain.Group{}, fmt.Errorf("repo.GroupRepo.LoadWithRelations: event: %w", err)
			}
			ev.Stops, err = stops.ListByEventID(ctx, g.EventID)
			if err != nil {
				return domain.Group{}, fmt.Errorf("repo.GroupRepo.LoadWithRelations: event stops: %w", err)
			}
			g.Event = &ev

		default:
			return domain.Group{}, fmt.Errorf("repo.GroupRepo.LoadWithRelations: %w: unknown relation %q", domain.ErrValidation, rel)
		}
	}
	return g, nil
}

// loadVisits fills StopsVisited of every group in place, oldest visit first.
func (r *pgGroupRepo) loadVisits(ctx context.Context, groups []domain.Group) error {
	if len(groups) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(groups))
	index := make(map[uuid.UUID]int, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
		index[g.ID] = i
	}

	const q = `
		SELECT group_id, stop_id
		FROM group_visits
		WHERE group_id = ANY(@ids)
		ORDER BY visited_at, stop_id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return fmt.Errorf("visits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID, stopID pgtype.UUID
		if err := rows.Scan(&groupID, &stopID); err != nil {
			return fmt.Errorf("visits: scan: %w", err)
		}
		g := &groups[index[uuid.UUID(groupID.Bytes)]]
		g.StopsVisited = append(g.StopsVisited, uuid.UUID(stopID.Bytes))
	}
	return rows.Err()
}

// Save updates the mutable columns of a group and records new visits.
func (r *pgGroupRepo) Save(ctx context.Context, group domain.Group) (domain.Group, error) {
	const q = `
		UPDATE groups
		SET status             = @status,
		    stop_id            = @stop_id,
		    last_status_update = @last_status_update,
		    updated_at         = now()
		WHERE id = @id
		RETURNING ` + groupColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"id":                 group.ID,
		"status":             string(group.Status),
		"stop_id":            group.StopID, // nil becomes NULL
		"last_status_update": group.LastStatusUpdate,
	})
	saved, err := scanGroup(row)
	if err != nil {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.Save: %w", err)
	}

	if len(group.StopsVisited) > 0 {
		const visits = `
			INSERT INTO group_visits (group_id, stop_id)
			SELECT @group_id, unnest(@stops::uuid[])
			ON CONFLICT DO NOTHING`
		_, err := r.db.Exec(ctx, visits, pgx.NamedArgs{
			"group_id": group.ID,
			"stops":    group.StopsVisited,
		})
		if err != nil {
			return domain.Group{}, fmt.Errorf("repo.GroupRepo.Save: visits: %w", err)
		}
	}

	saved.StopsVisited = group.StopsVisited
	if saved.StopsVisited == nil {
		saved.StopsVisited = []uuid.UUID{}
	}
	return saved, nil
}

// scanGroup maps a single groups row into a domain.Group with an empty
// visited set. It handles the UUID, status, and nullable stop_id conversions.
func scanGroup(s scanner) (domain.Group, error) {
	var (
		g                domain.Group
		id, eventID, stp pgtype.UUID
		status           string
	)

	err := s.Scan(&id, &eventID, &g.Number, &g.Name, &status, &stp, &g.LastStatusUpdate, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Group{}, domain.ErrNotFound
		}
		return domain.Group{}, err
	}

	g.ID = uuid.UUID(id.Bytes)
	g.EventID = uuid.UUID(eventID.Bytes)
	g.StopID = uuidPtr(stp)
	if g.Status, err = domain.ParseGroupStatus(status); err != nil {
		return domain.Group{}, err
	}
	g.StopsVisited = []uuid.UUID{}
	return g, nil
}
