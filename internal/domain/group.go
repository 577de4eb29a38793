package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// GroupStatus is where a group is in its circuit. The set is closed:
// only the four constants below are valid.
//
//	limbo   --enqueue--> bar | waiting
//	waiting --serve-->   bar
//	bar     --vacate-->  transit (after routing)
//	transit --enqueue--> bar | waiting
type GroupStatus string

const (
	GroupLimbo   GroupStatus = "limbo"
	GroupWaiting GroupStatus = "waiting"
	GroupAtBar   GroupStatus = "bar"
	GroupTransit GroupStatus = "transit"
)

// Valid reports whether s is one of the four group states.
func (s GroupStatus) Valid() bool {
	switch s {
	case GroupLimbo, GroupWaiting, GroupAtBar, GroupTransit:
		return true
	}
	return false
}

// ParseGroupStatus converts a stored string into a GroupStatus.
func ParseGroupStatus(s string) (GroupStatus, error) {
	st := GroupStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown group status %q", ErrValidation, s)
	}
	return st, nil
}

// UnmarshalText rejects unknown statuses so invalid states cannot be decoded.
func (s *GroupStatus) UnmarshalText(b []byte) error {
	st, err := ParseGroupStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Group is a cohort of participants moving through an event together.
// StopID is nil only in limbo. StopsVisited only grows.
// Stop and Event are populated when loaded with the matching relations.
type Group struct {
	ID               uuid.UUID   `json:"id"`
	EventID          uuid.UUID   `json:"event_id"`
	Number           int         `json:"number"`
	Name             string      `json:"name"`
	Status           GroupStatus `json:"status"`
	StopID           *uuid.UUID  `json:"stop_id,omitempty"`
	StopsVisited     []uuid.UUID `json:"stops_visited"`
	LastStatusUpdate time.Time   `json:"last_status_update"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`

	Stop  *Stop  `json:"stop,omitempty"`
	Event *Event `json:"-"`
}

// SetStatus moves the group to status at stopID and stamps the change.
func (g *Group) SetStatus(status GroupStatus, stopID *uuid.UUID, now time.Time) {
	g.Status = status
	g.StopID = stopID
	g.LastStatusUpdate = now
}

// HasVisited reports whether stopID is in the group's visited set.
func (g Group) HasVisited(stopID uuid.UUID) bool {
	return slices.Contains(g.StopsVisited, stopID)
}

// MarkVisited adds stopID to the visited set if it is not already there.
func (g *Group) MarkVisited(stopID uuid.UUID) {
	if !g.HasVisited(stopID) {
		g.StopsVisited = append(g.StopsVisited, stopID)
	}
}

// GroupRelation names an association LoadWithRelations can resolve.
type GroupRelation string

const (
	// RelationStop resolves Group.Stop, including its bar.
	RelationStop GroupRelation = "stop"
	// RelationEventStops resolves Group.Event and Event.Stops in itinerary order.
	RelationEventStops GroupRelation = "event.stops"
)
