package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExportRow is one group's progress through an event, flattened for
// spreadsheets: one row per group, ordered by group number.
type ExportRow struct {
	EventID     uuid.UUID
	EventName   string
	GroupID     uuid.UUID
	GroupNumber int
	GroupName   string
	Status      GroupStatus

	// StopID and BarName are empty while the group is in limbo.
	StopID  *uuid.UUID
	BarName string

	// VisitedBars holds bar names in visit order.
	VisitedBars      []string
	StopsRemaining   int
	LastStatusUpdate time.Time
}
