package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/barcrawl/backend/internal/domain"
	"github.com/pkordes/barcrawl/backend/internal/repo"
)

// ExportService assembles a flat progress report of every group in an event.
type ExportService struct {
	store repo.Store
}

// NewExportService constructs an ExportService backed by store.
func NewExportService(store repo.Store) *ExportService {
	return &ExportService{store: store}
}

// Export returns one ExportRow per group of the event, ordered by number.
// Returns domain.ErrNotFound if the event does not exist.
func (s *ExportService) Export(ctx context.Context, eventID uuid.UUID) ([]domain.ExportRow, error) {
	r := s.store.Repos()

	ev, err := r.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w", err)
	}
	stops, err := r.Stops.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w", err)
	}
	groups, err := r.Groups.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w", err)
	}

	barNames := make(map[uuid.UUID]string, len(stops))
	for _, st := range stops {
		if st.Bar != nil {
			barNames[st.ID] = st.Bar.Name
		}
	}

	rows := make([]domain.ExportRow, 0, len(groups))
	for _, g := range groups {
		row := domain.ExportRow{
			EventID:          ev.ID,
			EventName:        ev.Name,
			GroupID:          g.ID,
			GroupNumber:      g.Number,
			GroupName:        g.Name,
			Status:           g.Status,
			StopID:           g.StopID,
			VisitedBars:      make([]string, 0, len(g.StopsVisited)),
			StopsRemaining:   len(stops),
			LastStatusUpdate: g.LastStatusUpdate,
		}
		if g.StopID != nil {
			row.BarName = barNames[*g.StopID]
		}
		for _, id := range g.StopsVisited {
			name, ok := barNames[id]
			if !ok {
				// The stop was removed from the itinerary after the visit.
				continue
			}
			row.VisitedBars = append(row.VisitedBars, name)
			row.StopsRemaining--
		}
		rows = append(rows, row)
	}
	return rows, nil
}
