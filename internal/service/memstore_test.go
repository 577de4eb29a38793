package service_test

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/barcrawl/backend/internal/domain"
	"github.com/pkordes/barcrawl/backend/internal/notify"
	"github.com/pkordes/barcrawl/backend/internal/repo"
	"github.com/pkordes/barcrawl/backend/internal/service"
)

// memStore is an in-memory repo.Store. WithinTx snapshots every table and
// restores it when fn fails, so tests can assert that failed operations leave
// no partial writes. Like the real schema, a group may sit in at most one
// stop collection; Stops.Save rejects anything else.
type memStore struct {
	bars   map[uuid.UUID]domain.Bar
	events map[uuid.UUID]domain.Event
	stops  map[uuid.UUID]domain.Stop
	groups map[uuid.UUID]domain.Group

	// failStopSave, when set, is returned by every Stops.Save.
	failStopSave error

	// locked records every row taken with a ForUpdate read, in order.
	locked []uuid.UUID
	// onLock, when set, runs after each ForUpdate read is recorded.
	onLock func(id uuid.UUID)
}

var _ repo.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		bars:   map[uuid.UUID]domain.Bar{},
		events: map[uuid.UUID]domain.Event{},
		stops:  map[uuid.UUID]domain.Stop{},
		groups: map[uuid.UUID]domain.Group{},
	}
}

func (s *memStore) Repos() repo.Repos {
	return repo.Repos{
		Bars:   memBars{s},
		Events: memEvents{s},
		Stops:  memStops{s},
		Groups: memGroups{s},
	}
}

func (s *memStore) WithinTx(_ context.Context, fn func(r repo.Repos) error) error {
	stops, groups := maps.Clone(s.stops), maps.Clone(s.groups)
	if err := fn(s.Repos()); err != nil {
		s.stops, s.groups = stops, groups
		return err
	}
	return nil
}

func (s *memStore) lock(id uuid.UUID) {
	s.locked = append(s.locked, id)
	if s.onLock != nil {
		s.onLock(id)
	}
}

// ---- fixtures ---------------------------------------------------------------

func (s *memStore) addBar(name string, lat, lon float64) domain.Bar {
	b := domain.Bar{
		ID:          uuid.New(),
		Name:        name,
		Address:     name + " Street",
		Coordinates: domain.Coordinates{Latitude: lat, Longitude: lon},
	}
	s.bars[b.ID] = b
	return b
}

func (s *memStore) addEvent() domain.Event {
	e := domain.Event{ID: uuid.New(), Name: "Spring Crawl", Status: domain.EventActive}
	s.events[e.ID] = e
	return e
}

func (s *memStore) addStop(t *testing.T, eventID uuid.UUID, bar domain.Bar) domain.Stop {
	t.Helper()
	st, err := memStops{s}.Create(context.Background(), domain.Stop{EventID: eventID, BarID: bar.ID})
	if err != nil {
		t.Fatalf("addStop: %v", err)
	}
	return st
}

func (s *memStore) addGroup(eventID uuid.UUID, number int) domain.Group {
	g := domain.Group{
		ID:           uuid.New(),
		EventID:      eventID,
		Number:       number,
		Name:         fmt.Sprintf("Group %d", number),
		Status:       domain.GroupLimbo,
		StopsVisited: []uuid.UUID{},
	}
	s.groups[g.ID] = g
	return g
}

// put overwrites a stop or group directly, bypassing invariants, to set up
// states that are awkward to reach through the services.
func (s *memStore) putStop(st domain.Stop) {
	st.Bar = nil
	s.stops[st.ID] = cloneStop(st)
}

func (s *memStore) putGroup(g domain.Group) {
	s.groups[g.ID] = cloneGroup(g)
}

func (s *memStore) stop(id uuid.UUID) domain.Stop {
	return memStops{s}.load(id)
}

func (s *memStore) group(id uuid.UUID) domain.Group {
	return cloneGroup(s.groups[id])
}

func cloneStop(st domain.Stop) domain.Stop {
	st.CurrentGroups = slices.Clone(st.CurrentGroups)
	st.WaitingGroups = slices.Clone(st.WaitingGroups)
	st.InTransitGroups = slices.Clone(st.InTransitGroups)
	return st
}

func cloneGroup(g domain.Group) domain.Group {
	g.StopsVisited = slices.Clone(g.StopsVisited)
	if g.StopsVisited == nil {
		g.StopsVisited = []uuid.UUID{}
	}
	if g.StopID != nil {
		id := *g.StopID
		g.StopID = &id
	}
	g.Stop, g.Event = nil, nil
	return g
}

// ---- repositories -----------------------------------------------------------

type memBars struct{ s *memStore }

func (r memBars) GetByID(_ context.Context, id uuid.UUID) (domain.Bar, error) {
	b, ok := r.s.bars[id]
	if !ok {
		return domain.Bar{}, domain.ErrNotFound
	}
	return b, nil
}

type memEvents struct{ s *memStore }

func (r memEvents) GetByID(_ context.Context, id uuid.UUID) (domain.Event, error) {
	e, ok := r.s.events[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	e.StopIDs = []uuid.UUID{}
	for _, st := range memStops(r).byEvent(id) {
		e.StopIDs = append(e.StopIDs, st.ID)
	}
	return e, nil
}

type memStops struct{ s *memStore }

func (r memStops) load(id uuid.UUID) domain.Stop {
	st := cloneStop(r.s.stops[id])
	if b, ok := r.s.bars[st.BarID]; ok {
		st.Bar = &b
	}
	return st
}

func (r memStops) byEvent(eventID uuid.UUID) []domain.Stop {
	out := []domain.Stop{}
	for id, st := range r.s.stops {
		if st.EventID == eventID {
			out = append(out, r.load(id))
		}
	}
	slices.SortFunc(out, func(a, b domain.Stop) int { return a.Position - b.Position })
	return out
}

func (r memStops) Create(_ context.Context, stop domain.Stop) (domain.Stop, error) {
	stop.ID = uuid.New()
	stop.Position = len(r.byEvent(stop.EventID)) + 1
	stop.CurrentGroups, stop.WaitingGroups, stop.InTransitGroups = []uuid.UUID{}, []uuid.UUID{}, []uuid.UUID{}
	r.s.stops[stop.ID] = cloneStop(stop)
	return r.load(stop.ID), nil
}

func (r memStops) GetByID(_ context.Context, id uuid.UUID) (domain.Stop, error) {
	if _, ok := r.s.stops[id]; !ok {
		return domain.Stop{}, domain.ErrNotFound
	}
	return r.load(id), nil
}

func (r memStops) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Stop, error) {
	r.s.lock(id)
	return r.GetByID(ctx, id)
}

func (r memStops) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Stop, error) {
	out := make([]domain.Stop, 0, len(ids))
	for _, id := range ids {
		st, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (r memStops) ListByEventID(_ context.Context, eventID uuid.UUID) ([]domain.Stop, error) {
	return r.byEvent(eventID), nil
}

func (r memStops) Save(_ context.Context, stop domain.Stop) (domain.Stop, error) {
	if r.s.failStopSave != nil {
		return domain.Stop{}, r.s.failStopSave
	}
	if _, ok := r.s.stops[stop.ID]; !ok {
		return domain.Stop{}, domain.ErrNotFound
	}

	seen := map[uuid.UUID]bool{}
	for _, ids := range [][]uuid.UUID{stop.CurrentGroups, stop.WaitingGroups, stop.InTransitGroups} {
		for _, g := range ids {
			if seen[g] {
				return domain.Stop{}, fmt.Errorf("group %s queued twice at stop %s", g, stop.ID)
			}
			seen[g] = true
			for id := range r.s.stops {
				if id != stop.ID && r.load(id).QueueOf(g) != domain.QueueNone {
					return domain.Stop{}, fmt.Errorf("group %s already queued at stop %s", g, id)
				}
			}
		}
	}

	stop.Bar = nil
	r.s.stops[stop.ID] = cloneStop(stop)
	return r.load(stop.ID), nil
}

func (r memStops) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.s.stops[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.stops, id)
	return nil
}

type memGroups struct{ s *memStore }

func (r memGroups) GetByID(_ context.Context, id uuid.UUID) (domain.Group, error) {
	g, ok := r.s.groups[id]
	if !ok {
		return domain.Group{}, domain.ErrNotFound
	}
	return cloneGroup(g), nil
}

func (r memGroups) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	r.s.lock(id)
	return r.GetByID(ctx, id)
}

func (r memGroups) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Group, error) {
	out := make([]domain.Group, 0, len(ids))
	for _, id := range ids {
		g, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (r memGroups) ListByEventID(_ context.Context, eventID uuid.UUID) ([]domain.Group, error) {
	out := []domain.Group{}
	for _, g := range r.s.groups {
		if g.EventID == eventID {
			out = append(out, cloneGroup(g))
		}
	}
	slices.SortFunc(out, func(a, b domain.Group) int { return a.Number - b.Number })
	return out, nil
}

func (r memGroups) ListPagedByEventID(ctx context.Context, eventID uuid.UUID, p domain.PaginationParams) ([]domain.Group, int64, error) {
	all, _ := r.ListByEventID(ctx, eventID)
	start := min(p.Offset(), len(all))
	end := min(start+p.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (r memGroups) CountByStopID(_ context.Context, stopID uuid.UUID) (int64, error) {
	var n int64
	for _, g := range r.s.groups {
		if g.StopID != nil && *g.StopID == stopID {
			n++
		}
	}
	return n, nil
}

func (r memGroups) LoadWithRelations(ctx context.Context, id uuid.UUID, rels ...domain.GroupRelation) (domain.Group, error) {
	g, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Group{}, err
	}
	for _, rel := range rels {
		switch rel {
		case domain.RelationStop:
			if g.StopID != nil {
				st, err := memStops(r).GetByID(ctx, *g.StopID)
				if err != nil {
					return domain.Group{}, err
				}
				g.Stop = &st
			}
		case domain.RelationEventStops:
			ev, err := memEvents(r).GetByID(ctx, g.EventID)
			if err != nil {
				return domain.Group{}, err
			}
			ev.Stops = memStops(r).byEvent(g.EventID)
			g.Event = &ev
		default:
			return domain.Group{}, domain.ErrValidation
		}
	}
	return g, nil
}

func (r memGroups) Save(_ context.Context, group domain.Group) (domain.Group, error) {
	old, ok := r.s.groups[group.ID]
	if !ok {
		return domain.Group{}, domain.ErrNotFound
	}
	visited := slices.Clone(old.StopsVisited)
	for _, id := range group.StopsVisited {
		if !slices.Contains(visited, id) {
			visited = append(visited, id)
		}
	}
	group.StopsVisited = visited
	r.s.groups[group.ID] = cloneGroup(group)
	return cloneGroup(group), nil
}

// ---- collaborators ----------------------------------------------------------

type dispatchCall struct {
	GroupID, StopID uuid.UUID
}

// recordingDispatcher is a service.Dispatcher that remembers every call.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

var _ service.Dispatcher = (*recordingDispatcher)(nil)

func (d *recordingDispatcher) Dispatch(groupID, fromStopID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{groupID, fromStopID})
}

func (d *recordingDispatcher) Calls() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.calls)
}

// mockNotifier is a hand-written test double for service.Notifier.
type mockNotifier struct {
	groupRouted func(ctx context.Context, ev notify.GroupRouted) error
}

var _ service.Notifier = (*mockNotifier)(nil)

func (m *mockNotifier) GroupRouted(ctx context.Context, ev notify.GroupRouted) error {
	return m.groupRouted(ctx, ev)
}

// t0 is the fixed wall clock used by every service test.
var t0 = time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return t0 }
}
