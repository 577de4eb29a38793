// Package service contains the business logic for the bar crawl coordinator.
// Services validate inputs, enforce the queueing rules, and orchestrate repo
// calls inside transactions. No SQL lives here; services depend on repo
// interfaces, not implementations.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/barcrawl/backend/internal/metrics"
	"github.com/pkordes/barcrawl/backend/internal/notify"
	"github.com/pkordes/barcrawl/backend/internal/routing"
)

// Dispatcher hands a group to background routing once it has left a stop.
// Implementations must not block and must not report routing failures to
// the caller.
type Dispatcher interface {
	Dispatch(groupID, fromStopID uuid.UUID)
}

// Notifier announces routing decisions to participants.
type Notifier interface {
	GroupRouted(ctx context.Context, ev notify.GroupRouted) error
}

// Option configures a service.
type Option func(*options)

type options struct {
	now      func() time.Time
	log      *slog.Logger
	metrics  *metrics.Metrics
	params   routing.Params
	notifier Notifier
}

func newOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		log:    slog.Default(),
		params: routing.DefaultParams(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = notify.NewLogNotifier(o.log)
	}
	return o
}

// WithClock replaces time.Now, so status timestamps and wait estimates
// can be pinned in tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics sets the collectors to record to. Defaults to none.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRoutingParams overrides routing.DefaultParams().
func WithRoutingParams(p routing.Params) Option {
	return func(o *options) { o.params = p }
}

// WithNotifier sets where routing decisions are announced.
// Defaults to a notify.LogNotifier on the service logger.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}
