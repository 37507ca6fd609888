package analytics

import (
	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
)

// punctuality counts completed tasks and the on-time share of them. Both
// counts come from the same completion predicate so the rate is never
// distorted by a different date constraint.
type punctuality struct {
	Completed int
	OnTime    int
}

// quality holds punctuality overall and split by one-time and recurring
// task types.
type quality struct {
	All       punctuality
	OneTime   punctuality
	Recurring punctuality
}

// jobs returns the count jobs that fill q from completions, a predicate
// matching completed tasks.
func (q *quality) jobs(completions query.Predicate) []countJob {
	oneTime := completions.WithType(models.TypeOneTime)
	recurring := completions.WithTypes(models.RecurringTypes...)

	return []countJob{
		{name: "completed tasks for rate", pred: completions, dst: &q.All.Completed},
		{name: "on-time tasks", pred: completions.OnTime(), dst: &q.All.OnTime},
		{name: "completed one-time tasks", pred: oneTime, dst: &q.OneTime.Completed},
		{name: "on-time one-time tasks", pred: oneTime.OnTime(), dst: &q.OneTime.OnTime},
		{name: "completed recurring tasks", pred: recurring, dst: &q.Recurring.Completed},
		{name: "on-time recurring tasks", pred: recurring.OnTime(), dst: &q.Recurring.OnTime},
	}
}

func (p punctuality) rate() float64 {
	return rate(p.OnTime, p.Completed)
}
