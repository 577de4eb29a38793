package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/barcrawl/backend/internal/domain"
	"github.com/pkordes/barcrawl/backend/internal/notify"
	"github.com/pkordes/barcrawl/backend/internal/repo"
	"github.com/pkordes/barcrawl/backend/internal/routing"
)

// RoutingService picks and assigns the next stop of a group that has just
// left a bar.
type RoutingService struct {
	store repo.Store
	opts  options
}

// NewRoutingService constructs a RoutingService.
func NewRoutingService(store repo.Store, opts ...Option) *RoutingService {
	return &RoutingService{store: store, opts: newOptions(opts)}
}

// FindNextStop scores every unvisited stop of the group's event and sends
// the group in transit to the best one. The destination is returned.
//
// The group must have been vacated: status bar, still pointing at the stop it
// left, and no longer among that stop's current groups. Anything else fails
// with domain.ErrDomainViolation.
//
// When every stop has been visited the group moves to limbo with no stop and
// domain.ErrNoCandidateStop is returned.
func (s *RoutingService) FindNextStop(ctx context.Context, groupID uuid.UUID) (domain.Stop, error) {
	r := s.store.Repos()

	group, err := r.Groups.LoadWithRelations(ctx, groupID, domain.RelationStop, domain.RelationEventStops)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.RoutingService.FindNextStop: %w", err)
	}
	if err := checkVacated(group, group.Stop); err != nil {
		return domain.Stop{}, fmt.Errorf("service.RoutingService.FindNextStop: %w", err)
	}
	from := *group.Stop

	candidates, err := s.candidates(ctx, r, group.Event.Stops)
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.RoutingService.FindNextStop: %w", err)
	}

	now := s.opts.now()
	choice, err := routing.PickNext(from, candidates, group.StopsVisited, now, s.opts.params)
	if errors.Is(err, domain.ErrNoCandidateStop) {
		if err := s.complete(ctx, groupID, from.ID); err != nil {
			return domain.Stop{}, fmt.Errorf("service.RoutingService.FindNextStop: %w", err)
		}
		return domain.Stop{}, fmt.Errorf("service.RoutingService.FindNextStop: group %s: %w", groupID, err)
	}
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.RoutingService.FindNextStop: %w", err)
	}

	var dest domain.Stop
	err = s.store.WithinTx(ctx, func(r repo.Repos) error {
		st, err := r.Stops.GetByIDForUpdate(ctx, choice.Stop.ID)
		if err != nil {
			return err
		}
		g, err := s.lockVacated(ctx, r, groupID, from.ID)
		if err != nil {
			return err
		}

		st.Remove(groupID)
		st.InTransitGroups = append(st.InTransitGroups, groupID)
		g.SetStatus(domain.GroupTransit, &st.ID, s.opts.now())

		if _, err := r.Groups.Save(ctx, g); err != nil {
			return err
		}
		dest, err = r.Stops.Save(ctx, st)
		return err
	})
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.RoutingService.FindNextStop: assign: %w", err)
	}

	s.opts.metrics.Routed(choice.Score)
	s.opts.metrics.Transition(domain.GroupTransit)
	s.opts.log.DebugContext(ctx, "group in transit",
		"group_id", groupID,
		"from_stop_id", from.ID,
		"to_stop_id", dest.ID,
		"score_minutes", choice.Score,
	)

	ev := notify.GroupRouted{
		GroupID:    groupID,
		GroupName:  group.Name,
		EventID:    group.EventID,
		FromStopID: from.ID,
		ToStopID:   dest.ID,
		Score:      choice.Score,
		RoutedAt:   now,
	}
	if dest.Bar != nil {
		ev.BarName = dest.Bar.Name
		ev.BarAddress = dest.Bar.Address
	}
	if err := s.opts.notifier.GroupRouted(ctx, ev); err != nil {
		s.opts.log.WarnContext(ctx, "group routed notification failed", "group_id", groupID, "error", err)
	}

	return dest, nil
}

// candidates pairs each stop with the admission times of the groups it is
// serving, looked up in one query.
func (s *RoutingService) candidates(ctx context.Context, r repo.Repos, stops []domain.Stop) ([]routing.Candidate, error) {
	var ids []uuid.UUID
	for _, st := range stops {
		ids = append(ids, st.CurrentGroups...)
	}
	serving, err := r.Groups.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("serving groups: %w", err)
	}

	out := make([]routing.Candidate, len(stops))
	i := 0
	for n, st := range stops {
		out[n].Stop = st
		for range st.CurrentGroups {
			out[n].Served = append(out[n].Served, serving[i].LastStatusUpdate)
			i++
		}
	}
	return out, nil
}

// complete sends a group that has nowhere left to go back to limbo.
func (s *RoutingService) complete(ctx context.Context, groupID, fromStopID uuid.UUID) error {
	err := s.store.WithinTx(ctx, func(r repo.Repos) error {
		g, err := s.lockVacated(ctx, r, groupID, fromStopID)
		if err != nil {
			return err
		}
		g.SetStatus(domain.GroupLimbo, nil, s.opts.now())
		_, err = r.Groups.Save(ctx, g)
		return err
	})
	if err != nil {
		return fmt.Errorf("complete circuit: %w", err)
	}

	s.opts.metrics.CircuitCompleted()
	s.opts.metrics.Transition(domain.GroupLimbo)
	s.opts.log.InfoContext(ctx, "group completed circuit", "group_id", groupID, "last_stop_id", fromStopID)
	return nil
}

// lockVacated locks the group and confirms nothing moved it since it was
// loaded for scoring.
func (s *RoutingService) lockVacated(ctx context.Context, r repo.Repos, groupID, fromStopID uuid.UUID) (domain.Group, error) {
	g, err := r.Groups.GetByIDForUpdate(ctx, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	if g.StopID == nil || *g.StopID != fromStopID {
		return domain.Group{}, fmt.Errorf("%w: group %s moved during routing", domain.ErrDomainViolation, groupID)
	}
	from, err := r.Stops.GetByID(ctx, fromStopID)
	if err != nil {
		return domain.Group{}, err
	}
	if err := checkVacated(g, &from); err != nil {
		return domain.Group{}, err
	}
	return g, nil
}

// checkVacated reports whether g has left stop and is waiting to be routed.
func checkVacated(g domain.Group, stop *domain.Stop) error {
	if g.Status != domain.GroupAtBar || stop == nil {
		return fmt.Errorf("%w: group %s is %s, not leaving a bar", domain.ErrDomainViolation, g.ID, g.Status)
	}
	if stop.QueueOf(g.ID) == domain.QueueCurrent {
		return fmt.Errorf("%w: group %s has not vacated stop %s", domain.ErrDomainViolation, g.ID, stop.ID)
	}
	return nil
}
