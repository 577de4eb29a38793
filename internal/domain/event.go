// Package domain contains the core data types for the bar crawl coordinator.
// This package has no dependencies beyond uuid and is imported by every other
// internal package (repo, service, handler).
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventPlanned   EventStatus = "planned"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Valid reports whether s is one of the known event states.
func (s EventStatus) Valid() bool {
	switch s {
	case EventPlanned, EventActive, EventCompleted, EventCancelled:
		return true
	}
	return false
}

// ParseEventStatus converts a stored string into an EventStatus.
func ParseEventStatus(s string) (EventStatus, error) {
	st := EventStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown event status %q", ErrValidation, s)
	}
	return st, nil
}

// Event is the top-level aggregate: an ordered itinerary of stops walked by
// a set of groups. StopIDs keeps the itinerary order; Stops is populated only
// when the event is loaded with its stops resolved.
type Event struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Status          EventStatus `json:"status"`
	SignInCode      string      `json:"sign_in_code,omitempty"`
	CoordinatorCode string      `json:"-"`
	StartDate       time.Time   `json:"start_date"`
	EndDate         *time.Time  `json:"end_date,omitempty"`
	StopIDs         []uuid.UUID `json:"stop_ids"`
	Stops           []Stop      `json:"stops,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
