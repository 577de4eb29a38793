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

// BarRepo defines the read operations for Bars.
// Bars are created by the venue catalogue, not by this service.
type BarRepo interface {
	// GetByID retrieves a bar by its UUID primary key.
	// Returns domain.ErrNotFound if no bar with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Bar, error)
}

// pgBarRepo is the Postgres implementation of BarRepo.
type pgBarRepo struct {
	db db
}

// NewBarRepo constructs a BarRepo backed by the provided db connection.
func NewBarRepo(db db) BarRepo {
	return &pgBarRepo{db: db}
}

// GetByID retrieves a bar by primary key.
func (r *pgBarRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Bar, error) {
	const q = `
		SELECT id, name, address, latitude, longitude, created_at, updated_at
		FROM bars
		WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanBar(row)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("repo.BarRepo.GetByID: %w", err)
	}
	return result, nil
}

// scanBar maps a single bars row into a domain.Bar.
func scanBar(s scanner) (domain.Bar, error) {
	var (
		b  domain.Bar
		id pgtype.UUID
	)
	err := s.Scan(&id, &b.Name, &b.Address, &b.Coordinates.Latitude, &b.Coordinates.Longitude, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bar{}, domain.ErrNotFound
		}
		return domain.Bar{}, err
	}
	b.ID = uuid.UUID(id.Bytes)
	return b, nil
}
