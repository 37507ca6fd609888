// Package analytics computes the dashboard payloads from a task store and a
// user store. Every call recomputes from the stores; nothing is cached and
// no state is shared between calls.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/metrics"
	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
)

const (
	defaultActivityLimit   = 20
	defaultTeamConcurrency = 8
)

// TaskStore is the read side of the task store the aggregator depends on.
type TaskStore interface {
	CountTasks(ctx context.Context, pred query.Predicate) (int, error)
	GroupTasks(ctx context.Context, pred query.Predicate, key query.GroupKey) ([]models.GroupCount, error)
	AverageCompletionDays(ctx context.Context, pred query.Predicate) (float64, error)
	RecentActivity(ctx context.Context, pred query.Predicate, limit int) ([]models.Activity, error)
}

// UserStore lists the users team performance is computed for.
type UserStore interface {
	ListActiveUsers(ctx context.Context) ([]models.User, error)
}

// Aggregator computes analytics and count reports.
type Aggregator struct {
	log             *slog.Logger
	tasks           TaskStore
	users           UserStore
	metrics         *metrics.Metrics
	now             func() time.Time
	activityLimit   int
	teamConcurrency int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock replaces time.Now as the source of the current month.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithActivityLimit sets the length of the recent activity feed.
func WithActivityLimit(limit int) Option {
	return func(a *Aggregator) {
		if limit > 0 {
			a.activityLimit = limit
		}
	}
}

// WithTeamConcurrency bounds the number of store queries in flight for one
// team member.
func WithTeamConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.teamConcurrency = n
		}
	}
}

// New creates an Aggregator. A nil metrics disables instrumentation.
func New(log *slog.Logger, tasks TaskStore, users UserStore, appMetrics *metrics.Metrics, opts ...Option) *Aggregator {
	agg := &Aggregator{
		log:             log,
		tasks:           tasks,
		users:           users,
		metrics:         appMetrics,
		now:             time.Now,
		activityLimit:   defaultActivityLimit,
		teamConcurrency: defaultTeamConcurrency,
	}
	for _, opt := range opts {
		opt(agg)
	}
	if appMetrics != nil {
		agg.tasks = &meteredTasks{next: tasks, metrics: appMetrics}
	}

	return agg
}

func (a *Aggregator) observe(operation string, scope query.Scope, started time.Time) {
	if a.metrics == nil {
		return
	}
	label := "user"
	if scope.IsAdmin {
		label = "admin"
	}
	a.metrics.AggregationDuration.WithLabelValues(operation, label).Observe(time.Since(started).Seconds())
}

// meteredTasks records the duration of every task store query.
type meteredTasks struct {
	next    TaskStore
	metrics *metrics.Metrics
}

func (m *meteredTasks) since(queryType string, started time.Time) {
	m.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(started).Seconds())
}

func (m *meteredTasks) CountTasks(ctx context.Context, pred query.Predicate) (int, error) {
	defer m.since("count_tasks", time.Now())
	return m.next.CountTasks(ctx, pred)
}

func (m *meteredTasks) GroupTasks(ctx context.Context, pred query.Predicate, key query.GroupKey) (
	[]models.GroupCount, error,
) {
	defer m.since("group_tasks", time.Now())
	return m.next.GroupTasks(ctx, pred, key)
}

func (m *meteredTasks) AverageCompletionDays(ctx context.Context, pred query.Predicate) (float64, error) {
	defer m.since("average_completion", time.Now())
	return m.next.AverageCompletionDays(ctx, pred)
}

func (m *meteredTasks) RecentActivity(ctx context.Context, pred query.Predicate, limit int) (
	[]models.Activity, error,
) {
	defer m.since("recent_activity", time.Now())
	return m.next.RecentActivity(ctx, pred, limit)
}
