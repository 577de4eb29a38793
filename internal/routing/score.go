// Package routing scores a group's candidate next stops.
//
// A candidate's score is the number of minutes until the group could be
// served there: the larger of the walk from the current stop and the
// estimated wait at the destination. The lowest score wins.
// Everything here is a pure function of its inputs and the supplied clock.
package routing

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/barcrawl/backend/internal/domain"
	"github.com/pkordes/barcrawl/backend/internal/geo"
)

// Params holds the fixed heuristic constants.
type Params struct {
	// WalkingSpeedKPH converts distance into travel minutes.
	WalkingSpeedKPH float64
	// DwellTime is the nominal time a group spends being served.
	DwellTime time.Duration
	// MinWait is the floor on any wait estimate, even for an empty stop.
	MinWait time.Duration
	// QueueSlot is the cost of each group already waiting at the destination.
	QueueSlot time.Duration
}

// DefaultParams returns 5 km/h walking, a 10 minute dwell, a 5 minute floor,
// and a 10 minute slot per waiting group.
func DefaultParams() Params {
	return Params{
		WalkingSpeedKPH: 5,
		DwellTime:       10 * time.Minute,
		MinWait:         5 * time.Minute,
		QueueSlot:       10 * time.Minute,
	}
}

// Validate rejects parameters that would make scores meaningless.
func (p Params) Validate() error {
	if !(p.WalkingSpeedKPH > 0) || math.IsInf(p.WalkingSpeedKPH, 1) {
		return fmt.Errorf("%w: walking speed must be a positive finite number", domain.ErrValidation)
	}
	if p.DwellTime < 0 || p.MinWait < 0 || p.QueueSlot < 0 {
		return fmt.Errorf("%w: durations must not be negative", domain.ErrValidation)
	}
	return nil
}

// TravelMinutes returns the walking time between two points.
func TravelMinutes(from, to domain.Coordinates, p Params) float64 {
	meters := geo.Haversine(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
	return (meters / 1000 / p.WalkingSpeedKPH) * 60
}

// WaitMinutes estimates how long until a destination has room.
// served holds the last status update of every group currently being served
// there; waiting is the length of its wait queue.
//
// Each served group is expected to leave DwellTime after it was admitted.
// Groups past their dwell time contribute nothing below MinWait.
func WaitMinutes(served []time.Time, waiting int, now time.Time, p Params) float64 {
	wait := p.MinWait.Minutes()
	for _, since := range served {
		remaining := p.DwellTime.Minutes() - roundHalfUp(now.Sub(since).Minutes())
		wait = math.Max(wait, remaining)
	}
	return wait + float64(waiting)*p.QueueSlot.Minutes()
}

// roundHalfUp rounds to the nearest integer with halves going towards +Inf,
// so -2.5 rounds to -2 rather than -3 as math.Round would.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// Candidate is a stop under consideration together with the admission
// times of the groups it is currently serving.
type Candidate struct {
	// Stop must have Bar populated.
	Stop   domain.Stop
	Served []time.Time
}

// Score returns max(travel, wait) for moving from the given coordinates to c.
func Score(from domain.Coordinates, c Candidate, now time.Time, p Params) (float64, error) {
	if c.Stop.Bar == nil {
		return 0, fmt.Errorf("routing.Score: bar of stop %s: %w", c.Stop.ID, domain.ErrNotFound)
	}
	travel := TravelMinutes(from, c.Stop.Bar.Coordinates, p)
	wait := WaitMinutes(c.Served, len(c.Stop.WaitingGroups), now, p)
	return math.Max(travel, wait), nil
}

// Choice is the winning candidate and its score.
type Choice struct {
	Stop  domain.Stop
	Score float64
}

// PickNext returns the candidate with the lowest score, skipping the origin
// and every stop in visited. Ties go to the earliest candidate.
// Returns domain.ErrNoCandidateStop when nothing is left to visit.
func PickNext(from domain.Stop, candidates []Candidate, visited []uuid.UUID, now time.Time, p Params) (Choice, error) {
	if from.Bar == nil {
		return Choice{}, fmt.Errorf("routing.PickNext: bar of stop %s: %w", from.ID, domain.ErrNotFound)
	}

	skip := make(map[uuid.UUID]struct{}, len(visited)+1)
	skip[from.ID] = struct{}{}
	for _, id := range visited {
		skip[id] = struct{}{}
	}

	var (
		best  Choice
		found bool
	)
	for _, c := range candidates {
		if _, ok := skip[c.Stop.ID]; ok {
			continue
		}
		score, err := Score(from.Bar.Coordinates, c, now, p)
		if err != nil {
			return Choice{}, err
		}
		if !found || score < best.Score {
			best = Choice{Stop: c.Stop, Score: score}
			found = true
		}
	}

	if !found {
		return Choice{}, domain.ErrNoCandidateStop
	}
	return best, nil
}
