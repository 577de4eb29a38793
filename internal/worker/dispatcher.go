// Package worker runs group routing in the background so that vacating a
// stop never waits on, or fails because of, the choice of the next one.
package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pkordes/barcrawl/backend/internal/domain"
	"github.com/pkordes/barcrawl/backend/internal/metrics"
)

// Router assigns a vacated group its next stop.
type Router interface {
	FindNextStop(ctx context.Context, groupID uuid.UUID) (domain.Stop, error)
}

// Task is one group waiting to be routed away from StopID.
type Task struct {
	GroupID uuid.UUID
	StopID  uuid.UUID
}

// Config controls the dispatcher's capacity.
type Config struct {
	// QueueSize is how many tasks may be pending before new ones are dropped.
	QueueSize int
	// Workers is the number of tasks routed concurrently.
	Workers int
}

// DefaultConfig returns a queue of 256 tasks served by 4 workers.
func DefaultConfig() Config {
	return Config{QueueSize: 256, Workers: 4}
}

// Dispatcher is a bounded queue of routing tasks drained by a fixed pool of
// workers. Dispatch never blocks; Run owns the workers.
type Dispatcher struct {
	router  Router
	tasks   chan Task
	workers int
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher constructs a Dispatcher. Zero or negative sizes fall back to
// DefaultConfig. m may be nil.
func NewDispatcher(router Router, cfg Config, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	return &Dispatcher{
		router:  router,
		tasks:   make(chan Task, cfg.QueueSize),
		workers: cfg.Workers,
		log:     log,
		metrics: m,
	}
}

// Dispatch queues groupID for routing. When the queue is full the task is
// dropped, logged, and counted; the group stays vacated and can be rerouted.
func (d *Dispatcher) Dispatch(groupID, fromStopID uuid.UUID) {
	select {
	case d.tasks <- Task{GroupID: groupID, StopID: fromStopID}:
		d.metrics.Dispatched()
	default:
		d.metrics.RoutingFailed(metrics.ReasonDropped)
		d.log.Error("routing queue full, task dropped",
			"group_id", groupID,
			"stop_id", fromStopID,
		)
	}
}

// Run routes queued tasks until ctx is cancelled, then returns once every
// worker has finished its current task. Tasks still queued at that point are
// abandoned. Run always returns nil; failures of individual tasks are logged.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for range d.workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case t := <-d.tasks:
					d.route(ctx, t)
				}
			}
		})
	}
	return g.Wait()
}

func (d *Dispatcher) route(ctx context.Context, t Task) {
	next, err := d.router.FindNextStop(ctx, t.GroupID)
	switch {
	case err == nil:
		d.log.InfoContext(ctx, "group routed",
			"group_id", t.GroupID,
			"stop_id", t.StopID,
			"next_stop_id", next.ID,
		)
	case errors.Is(err, domain.ErrNoCandidateStop):
		d.log.InfoContext(ctx, "group has visited every stop",
			"group_id", t.GroupID,
			"stop_id", t.StopID,
		)
	default:
		d.metrics.RoutingFailed(reason(err))
		d.log.ErrorContext(ctx, "routing failed",
			"group_id", t.GroupID,
			"stop_id", t.StopID,
			"error", err,
		)
	}
}

// reason maps a routing error to its failure label.
func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return metrics.ReasonNotFound
	case errors.Is(err, domain.ErrDomainViolation):
		return metrics.ReasonConflict
	default:
		return metrics.ReasonError
	}
}
