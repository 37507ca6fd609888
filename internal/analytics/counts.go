package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
	"golang.org/x/sync/errgroup"
)

// countJob is one CountTasks call whose result lands in dst.
type countJob struct {
	name string
	pred query.Predicate
	dst  *int
}

// runCounts issues the jobs concurrently, at most limit at a time when
// limit is positive. The first failure cancels the rest.
func (a *Aggregator) runCounts(ctx context.Context, limit int, jobs []countJob) error {
	group, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}
	for _, job := range jobs {
		group.Go(func() error {
			count, err := a.tasks.CountTasks(gctx, job.pred)
			if err != nil {
				return fmt.Errorf("failed to count %s: %w", job.name, err)
			}
			*job.dst = count
			return nil
		})
	}
	return group.Wait()
}

// tally is the total, pending and completed count of one task set.
type tally struct {
	Total     int
	Pending   int
	Completed int
}

func (t tally) add(other tally) tally {
	return tally{
		Total:     t.Total + other.Total,
		Pending:   t.Pending + other.Pending,
		Completed: t.Completed + other.Completed,
	}
}

// breakdown holds the tallies of a population overall and per task type.
type breakdown struct {
	All     tally
	Types   map[models.TaskType]*tally
	Overdue int
}

func newBreakdown() *breakdown {
	types := make(map[models.TaskType]*tally, len(models.BreakdownTypes))
	for _, taskType := range models.BreakdownTypes {
		types[taskType] = &tally{}
	}
	return &breakdown{Types: types}
}

// jobs returns the count jobs that fill b from population.
func (b *breakdown) jobs(population query.Predicate, withOverdue bool) []countJob {
	jobs := []countJob{
		{name: "tasks", pred: population, dst: &b.All.Total},
		{name: "pending tasks", pred: population.WithStatus(models.StatusPending), dst: &b.All.Pending},
		{name: "completed tasks", pred: population.WithStatus(models.StatusCompleted), dst: &b.All.Completed},
	}
	if withOverdue {
		jobs = append(jobs, countJob{
			name: "overdue tasks", pred: population.WithStatus(models.StatusOverdue), dst: &b.Overdue,
		})
	}
	for _, taskType := range models.BreakdownTypes {
		byType := population.WithType(taskType)
		dst := b.Types[taskType]
		jobs = append(jobs,
			countJob{name: string(taskType) + " tasks", pred: byType, dst: &dst.Total},
			countJob{
				name: string(taskType) + " pending tasks",
				pred: byType.WithStatus(models.StatusPending),
				dst:  &dst.Pending,
			},
			countJob{
				name: string(taskType) + " completed tasks",
				pred: byType.WithStatus(models.StatusCompleted),
				dst:  &dst.Completed,
			},
		)
	}
	return jobs
}

// recurring sums the tallies of the recurring task types.
func (b *breakdown) recurring() tally {
	var sum tally
	for _, taskType := range models.RecurringTypes {
		sum = sum.add(*b.Types[taskType])
	}
	return sum
}

// ComputeCounts returns the raw task counts of the scope. Every count is
// restricted to tasks scheduled inside the scope's date range, if any.
func (a *Aggregator) ComputeCounts(ctx context.Context, scope query.Scope) (models.CountReport, error) {
	defer a.observe("counts", scope, time.Now())

	counts := newBreakdown()
	if err := a.runCounts(ctx, 0, counts.jobs(scope.Population(), true)); err != nil {
		return models.CountReport{}, err
	}

	oneTime := counts.Types[models.TypeOneTime]
	daily := counts.Types[models.TypeDaily]
	weekly := counts.Types[models.TypeWeekly]
	monthly := counts.Types[models.TypeMonthly]
	yearly := counts.Types[models.TypeYearly]
	recurring := counts.recurring()

	a.log.DebugContext(ctx, "Computed task counts", "admin", scope.IsAdmin, "total", counts.All.Total)

	return models.CountReport{
		TotalTasks:         counts.All.Total,
		PendingTasks:       counts.All.Pending,
		CompletedTasks:     counts.All.Completed,
		OverdueTasks:       counts.Overdue,
		OneTimeTasks:       oneTime.Total,
		OneTimePending:     oneTime.Pending,
		OneTimeCompleted:   oneTime.Completed,
		RecurringTasks:     recurring.Total,
		RecurringPending:   recurring.Pending,
		RecurringCompleted: recurring.Completed,
		DailyTasks:         daily.Total,
		DailyPending:       daily.Pending,
		DailyCompleted:     daily.Completed,
		WeeklyTasks:        weekly.Total,
		WeeklyPending:      weekly.Pending,
		WeeklyCompleted:    weekly.Completed,
		MonthlyTasks:       monthly.Total,
		MonthlyPending:     monthly.Pending,
		MonthlyCompleted:   monthly.Completed,
		YearlyTasks:        yearly.Total,
		YearlyPending:      yearly.Pending,
		YearlyCompleted:    yearly.Completed,
	}, nil
}
