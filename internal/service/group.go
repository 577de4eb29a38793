package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/barcrawl/backend/internal/domain"
	"github.com/pkordes/barcrawl/backend/internal/repo"
)

// GroupService answers questions about groups and lets a coordinator retry
// routing for a group whose routing step failed.
type GroupService struct {
	store    repo.Store
	dispatch Dispatcher
	opts     options
}

// NewGroupService constructs a GroupService.
func NewGroupService(store repo.Store, dispatch Dispatcher, opts ...Option) *GroupService {
	return &GroupService{store: store, dispatch: dispatch, opts: newOptions(opts)}
}

// CurrentStop returns the stop the group is at, waiting for, or heading to.
// Returns domain.ErrNotFound if the group does not exist or is in limbo.
func (s *GroupService) CurrentStop(ctx context.Context, groupID uuid.UUID) (domain.Stop, error) {
	g, err := s.store.Repos().Groups.LoadWithRelations(ctx, groupID, domain.RelationStop)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.GroupService.CurrentStop: %w", err)
	}
	if g.Stop == nil {
		return domain.Stop{}, fmt.Errorf("service.GroupService.CurrentStop: group %s has no stop: %w", groupID, domain.ErrNotFound)
	}
	return *g.Stop, nil
}

// ListByEvent returns one page of an event's groups ordered by number,
// along with the event's total group count.
// Returns domain.ErrNotFound if the event does not exist.
func (s *GroupService) ListByEvent(ctx context.Context, eventID uuid.UUID, p domain.PaginationParams) ([]domain.Group, int64, error) {
	r := s.store.Repos()
	if _, err := r.Events.GetByID(ctx, eventID); err != nil {
		return nil, 0, fmt.Errorf("service.GroupService.ListByEvent: %w", err)
	}
	groups, total, err := r.Groups.ListPagedByEventID(ctx, eventID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.GroupService.ListByEvent: %w", err)
	}
	return groups, total, nil
}

// Reroute queues routing again for a group that was vacated but never
// assigned a next stop. Returns domain.ErrDomainViolation for any group that
// is not in that state.
func (s *GroupService) Reroute(ctx context.Context, groupID uuid.UUID) (domain.Group, error) {
	g, err := s.store.Repos().Groups.LoadWithRelations(ctx, groupID, domain.RelationStop)
	if err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.Reroute: %w", err)
	}
	if err := checkVacated(g, g.Stop); err != nil {
		return domain.Group{}, fmt.Errorf("service.GroupService.Reroute: %w", err)
	}

	s.opts.log.InfoContext(ctx, "routing retried", "group_id", groupID, "stop_id", g.Stop.ID)
	s.dispatch.Dispatch(groupID, g.Stop.ID)
	return g, nil
}
