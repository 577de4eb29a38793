package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/pkordes/barcrawl/backend/internal/domain"
	"github.com/pkordes/barcrawl/backend/internal/repo"
)

// StopQueueService manages the groups being served, waiting, and in transit
// at each stop, and keeps every affected group's status in step.
//
// Each operation reads and writes the stop and its groups inside one
// transaction with the stop row locked, so concurrent coordinators acting on
// the same stop are serialised and a crash cannot leave a group's status
// disagreeing with its queue membership.
type StopQueueService struct {
	store    repo.Store
	dispatch Dispatcher
	opts     options
}

// NewStopQueueService constructs a StopQueueService. dispatch receives every
// vacated group for background routing.
func NewStopQueueService(store repo.Store, dispatch Dispatcher, opts ...Option) *StopQueueService {
	return &StopQueueService{store: store, dispatch: dispatch, opts: newOptions(opts)}
}

// Enqueue admits a group that has arrived at a stop. The group goes straight
// into service when nobody is being served or waiting; otherwise it joins the
// back of the wait queue.
//
// Returns domain.ErrNotFound if the stop or group does not exist, and
// domain.ErrDomainViolation if the group belongs to another event or is
// already waiting or being served somewhere.
func (s *StopQueueService) Enqueue(ctx context.Context, stopID, groupID uuid.UUID) (domain.Stop, error) {
	var (
		result domain.Stop
		status domain.GroupStatus
	)
	err := s.store.WithinTx(ctx, func(r repo.Repos) error {
		// A group in transit elsewhere also touches its old destination.
		// Both stops are locked in ID order before the group.
		peek, err := r.Groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		var prevID *uuid.UUID
		if peek.Status == domain.GroupTransit && peek.StopID != nil && *peek.StopID != stopID {
			prevID = peek.StopID
		}
		stop, prev, err := lockArrival(ctx, r, stopID, prevID)
		if err != nil {
			return err
		}

		group, err := r.Groups.GetByIDForUpdate(ctx, groupID)
		if err != nil {
			return err
		}

		if group.EventID != stop.EventID {
			return fmt.Errorf("%w: group %s does not belong to the event of stop %s", domain.ErrDomainViolation, groupID, stopID)
		}
		switch group.Status {
		case domain.GroupWaiting, domain.GroupAtBar:
			return fmt.Errorf("%w: group %s is already %s at a stop", domain.ErrDomainViolation, groupID, group.Status)
		case domain.GroupTransit:
			if group.StopID != nil && *group.StopID != stopID && (prevID == nil || *prevID != *group.StopID) {
				return fmt.Errorf("%w: group %s was rerouted while arriving", domain.ErrDomainViolation, groupID)
			}
			if prev != nil && prev.Remove(groupID) {
				if _, err := r.Stops.Save(ctx, *prev); err != nil {
					return err
				}
			}
		}

		// A group heading here sits in this stop's in-transit list.
		stop.Remove(groupID)

		now := s.opts.now()
		if len(stop.CurrentGroups) == 0 && len(stop.WaitingGroups) == 0 {
			stop.CurrentGroups = append(stop.CurrentGroups, groupID)
			group.SetStatus(domain.GroupAtBar, &stop.ID, now)
		} else {
			stop.WaitingGroups = append(stop.WaitingGroups, groupID)
			group.SetStatus(domain.GroupWaiting, &stop.ID, now)
		}
		status = group.Status

		if _, err := r.Groups.Save(ctx, group); err != nil {
			return err
		}
		result, err = r.Stops.Save(ctx, stop)
		return err
	})
	if err != nil {
		s.opts.metrics.QueueOp("enqueue", "error")
		return domain.Stop{}, fmt.Errorf("service.StopQueueService.Enqueue: %w", err)
	}

	s.opts.metrics.QueueOp("enqueue", "ok")
	s.opts.metrics.Transition(status)
	s.opts.log.DebugContext(ctx, "group enqueued", "stop_id", stopID, "group_id", groupID, "status", status)
	return result, nil
}

// lockArrival locks the arrival stop and, when prevID is set, the stop the
// group was last routed to, lowest ID first. A previous destination that no
// longer exists is returned as nil.
func lockArrival(ctx context.Context, r repo.Repos, stopID uuid.UUID, prevID *uuid.UUID) (domain.Stop, *domain.Stop, error) {
	ids := []uuid.UUID{stopID}
	if prevID != nil {
		ids = append(ids, *prevID)
		slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	}

	var (
		stop domain.Stop
		prev *domain.Stop
	)
	for _, id := range ids {
		st, err := r.Stops.GetByIDForUpdate(ctx, id)
		if id != stopID {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return domain.Stop{}, nil, err
			}
			prev = &st
			continue
		}
		if err != nil {
			return domain.Stop{}, nil, err
		}
		stop = st
	}
	return stop, prev, nil
}

// Serve admits the oldest waiting group into service.
// The boolean is false, with a nil error, when nobody is waiting; the stop is
// then returned unchanged.
//
// Returns domain.ErrNotFound if the stop or the head group does not exist.
func (s *StopQueueService) Serve(ctx context.Context, stopID uuid.UUID) (domain.Stop, bool, error) {
	var (
		result domain.Stop
		served bool
		head   uuid.UUID
	)
	err := s.store.WithinTx(ctx, func(r repo.Repos) error {
		stop, err := r.Stops.GetByIDForUpdate(ctx, stopID)
		if err != nil {
			return err
		}
		if len(stop.WaitingGroups) == 0 {
			result = stop
			return nil
		}

		head = stop.WaitingGroups[0]
		stop.WaitingGroups = stop.WaitingGroups[1:]

		group, err := r.Groups.GetByIDForUpdate(ctx, head)
		if err != nil {
			return err
		}
		group.SetStatus(domain.GroupAtBar, &stop.ID, s.opts.now())
		stop.CurrentGroups = append(stop.CurrentGroups, head)

		if _, err := r.Groups.Save(ctx, group); err != nil {
			return err
		}
		result, err = r.Stops.Save(ctx, stop)
		served = true
		return err
	})
	if err != nil {
		s.opts.metrics.QueueOp("serve", "error")
		return domain.Stop{}, false, fmt.Errorf("service.StopQueueService.Serve: %w", err)
	}

	if !served {
		s.opts.metrics.QueueOp("serve", "noop")
		return result, false, nil
	}
	s.opts.metrics.QueueOp("serve", "ok")
	s.opts.metrics.Transition(domain.GroupAtBar)
	s.opts.log.DebugContext(ctx, "group served", "stop_id", stopID, "group_id", head)
	return result, true, nil
}

// Vacate releases a group that has finished at a stop and hands it to
// background routing. The stop is recorded in the group's visited set.
// The group keeps status bar until routing assigns its next stop.
//
// Returns domain.ErrNotFound if the stop does not exist and
// domain.ErrDomainViolation if the group is not being served there.
// Routing failures are never returned; the dispatcher logs them.
func (s *StopQueueService) Vacate(ctx context.Context, stopID, groupID uuid.UUID) (domain.Stop, error) {
	var result domain.Stop
	err := s.store.WithinTx(ctx, func(r repo.Repos) error {
		stop, err := r.Stops.GetByIDForUpdate(ctx, stopID)
		if err != nil {
			return err
		}
		if stop.QueueOf(groupID) != domain.QueueCurrent {
			return fmt.Errorf("%w: group %s not being served at stop %s", domain.ErrDomainViolation, groupID, stopID)
		}
		stop.Remove(groupID)

		group, err := r.Groups.GetByIDForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		group.MarkVisited(stopID)

		if _, err := r.Groups.Save(ctx, group); err != nil {
			return err
		}
		result, err = r.Stops.Save(ctx, stop)
		return err
	})
	if err != nil {
		s.opts.metrics.QueueOp("vacate", "error")
		return domain.Stop{}, fmt.Errorf("service.StopQueueService.Vacate: %w", err)
	}

	s.opts.metrics.QueueOp("vacate", "ok")
	s.opts.log.DebugContext(ctx, "group vacated", "stop_id", stopID, "group_id", groupID)
	s.dispatch.Dispatch(groupID, stopID)
	return result, nil
}

// GetByID returns a stop with its three queues resolved to full groups.
// Returns domain.ErrNotFound if the stop does not exist.
func (s *StopQueueService) GetByID(ctx context.Context, stopID uuid.UUID) (domain.StopDetail, error) {
	r := s.store.Repos()

	stop, err := r.Stops.GetByID(ctx, stopID)
	if err != nil {
		return domain.StopDetail{}, fmt.Errorf("service.StopQueueService.GetByID: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(stop.CurrentGroups)+len(stop.WaitingGroups)+len(stop.InTransitGroups))
	ids = append(ids, stop.CurrentGroups...)
	ids = append(ids, stop.WaitingGroups...)
	ids = append(ids, stop.InTransitGroups...)

	groups, err := r.Groups.ListByIDs(ctx, ids)
	if err != nil {
		return domain.StopDetail{}, fmt.Errorf("service.StopQueueService.GetByID: groups: %w", err)
	}

	nc, nw := len(stop.CurrentGroups), len(stop.WaitingGroups)
	return domain.StopDetail{
		Stop:      stop,
		Current:   groups[:nc],
		Waiting:   groups[nc : nc+nw],
		InTransit: groups[nc+nw:],
	}, nil
}

// Create adds a stop for bar at the end of the event's itinerary.
// Returns domain.ErrValidation when either reference is missing and
// domain.ErrNotFound when the event or bar does not exist.
func (s *StopQueueService) Create(ctx context.Context, eventID, barID uuid.UUID) (domain.Stop, error) {
	if eventID == uuid.Nil {
		return domain.Stop{}, fmt.Errorf("%w: event_id is required", domain.ErrValidation)
	}
	if barID == uuid.Nil {
		return domain.Stop{}, fmt.Errorf("%w: bar_id is required", domain.ErrValidation)
	}

	r := s.store.Repos()
	if _, err := r.Events.GetByID(ctx, eventID); err != nil {
		return domain.Stop{}, fmt.Errorf("service.StopQueueService.Create: event: %w", err)
	}
	if _, err := r.Bars.GetByID(ctx, barID); err != nil {
		return domain.Stop{}, fmt.Errorf("service.StopQueueService.Create: bar: %w", err)
	}

	stop, err := r.Stops.Create(ctx, domain.Stop{EventID: eventID, BarID: barID})
	if err != nil {
		return domain.Stop{}, fmt.Errorf("service.StopQueueService.Create: %w", err)
	}
	return stop, nil
}

// Delete removes a stop that no group is queued at or assigned to.
// Returns domain.ErrNotFound if the stop does not exist and
// domain.ErrDomainViolation if groups are still queued there or a group
// that left it has not been routed yet.
func (s *StopQueueService) Delete(ctx context.Context, stopID uuid.UUID) error {
	err := s.store.WithinTx(ctx, func(r repo.Repos) error {
		stop, err := r.Stops.GetByIDForUpdate(ctx, stopID)
		if err != nil {
			return err
		}
		if n := len(stop.CurrentGroups) + len(stop.WaitingGroups) + len(stop.InTransitGroups); n > 0 {
			return fmt.Errorf("%w: stop %s still has %d queued groups", domain.ErrDomainViolation, stopID, n)
		}
		n, err := r.Groups.CountByStopID(ctx, stopID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d groups still reference stop %s", domain.ErrDomainViolation, n, stopID)
		}
		return r.Stops.Delete(ctx, stopID)
	})
	if err != nil {
		return fmt.Errorf("service.StopQueueService.Delete: %w", err)
	}
	return nil
}
