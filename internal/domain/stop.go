package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Queue names the collection of a stop that holds a group.
type Queue string

const (
	QueueNone      Queue = ""
	QueueCurrent   Queue = "current"
	QueueWaiting   Queue = "waiting"
	QueueInTransit Queue = "in_transit"
)

// Stop is one venue slot in an event's itinerary. The three group collections
// are disjoint: a group appears in at most one of them, at most one stop.
// WaitingGroups is FIFO, oldest first.
type Stop struct {
	ID              uuid.UUID   `json:"id"`
	EventID         uuid.UUID   `json:"event_id"`
	BarID           uuid.UUID   `json:"bar_id"`
	Position        int         `json:"position"`
	Bar             *Bar        `json:"bar,omitempty"`
	CurrentGroups   []uuid.UUID `json:"current_groups"`
	WaitingGroups   []uuid.UUID `json:"waiting_groups"`
	InTransitGroups []uuid.UUID `json:"in_transit_groups"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// QueueOf returns the collection holding groupID, or QueueNone.
func (s Stop) QueueOf(groupID uuid.UUID) Queue {
	switch {
	case slices.Contains(s.CurrentGroups, groupID):
		return QueueCurrent
	case slices.Contains(s.WaitingGroups, groupID):
		return QueueWaiting
	case slices.Contains(s.InTransitGroups, groupID):
		return QueueInTransit
	}
	return QueueNone
}

// Remove deletes groupID from every collection of the stop and reports
// whether it was present in any of them.
func (s *Stop) Remove(groupID uuid.UUID) bool {
	n := len(s.CurrentGroups) + len(s.WaitingGroups) + len(s.InTransitGroups)
	s.CurrentGroups = without(s.CurrentGroups, groupID)
	s.WaitingGroups = without(s.WaitingGroups, groupID)
	s.InTransitGroups = without(s.InTransitGroups, groupID)
	return n != len(s.CurrentGroups)+len(s.WaitingGroups)+len(s.InTransitGroups)
}

// without returns ids with every occurrence of id dropped, preserving order.
func without(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// StopDetail is a stop with its queue collections resolved to full groups,
// in the same order as the ID collections.
type StopDetail struct {
	Stop
	Current   []Group `json:"current"`
	Waiting   []Group `json:"waiting"`
	InTransit []Group `json:"in_transit"`
}
