// Package notify publishes group routing decisions so that participant-facing
// channels (SMS reminders, live views) can tell a group where to go next.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// GroupRoutedQueue is the broker queue that carries GroupRouted messages.
const GroupRoutedQueue = "group.routed"

// GroupRouted is published after a group has been assigned its next stop.
type GroupRouted struct {
	GroupID    uuid.UUID `json:"group_id"`
	GroupName  string    `json:"group_name"`
	EventID    uuid.UUID `json:"event_id"`
	FromStopID uuid.UUID `json:"from_stop_id"`
	ToStopID   uuid.UUID `json:"to_stop_id"`
	BarName    string    `json:"bar_name"`
	BarAddress string    `json:"bar_address"`
	Score      float64   `json:"score_minutes"`
	RoutedAt   time.Time `json:"routed_at"`
}

// LogNotifier writes notifications to a logger. It is used when no broker
// is configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to log.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// GroupRouted logs ev at info level. It never fails.
func (n *LogNotifier) GroupRouted(ctx context.Context, ev GroupRouted) error {
	n.log.InfoContext(ctx, "group routed",
		"group_id", ev.GroupID,
		"from_stop_id", ev.FromStopID,
		"to_stop_id", ev.ToStopID,
		"bar", ev.BarName,
		"score_minutes", ev.Score,
	)
	return nil
}
