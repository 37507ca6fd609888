package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
	"golang.org/x/sync/errgroup"
)

// ComputeAnalytics returns the dashboard analytics of the scope.
//
// Population figures (status, type and priority stats, team totals, the
// distribution) are restricted to tasks scheduled inside the date range.
// Completion quality (on-time rates, completed count, average completion
// time) is restricted by completion time. Trends always cover the six
// calendar months ending at the current month. Any store failure fails the
// whole call.
func (a *Aggregator) ComputeAnalytics(ctx context.Context, scope query.Scope) (models.AnalyticsReport, error) {
	defer a.observe("analytics", scope, time.Now())

	var (
		report      models.AnalyticsReport
		population  = scope.Population()
		completions = scope.Completions()
		months, win = trendWindow(a.now())
		total       int
		punctual    quality
		avgDays     float64
	)

	group, gctx := errgroup.WithContext(ctx)

	groupStats := func(dst *[]models.GroupCount, key query.GroupKey) {
		group.Go(func() error {
			groups, err := a.tasks.GroupTasks(gctx, population, key)
			if err != nil {
				return fmt.Errorf("failed to group tasks by %s: %w", key, err)
			}
			*dst = groups
			return nil
		})
	}
	groupStats(&report.StatusStats, query.GroupStatus)
	groupStats(&report.TypeStats, query.GroupType)
	groupStats(&report.PriorityStats, query.GroupPriority)

	group.Go(func() (err error) {
		pred := scope.Base().WithStatus(models.StatusCompleted).CompletedNotNull().CompletedIn(win)
		report.CompletionTrend, err = a.trend(gctx, months, pred, query.GroupCompletedMonth)
		return err
	})
	group.Go(func() (err error) {
		pred := scope.Base().RelevantDateIn(win)
		report.PlannedTrend, err = a.trend(gctx, months, pred, query.GroupRelevantMonth)
		return err
	})

	group.Go(func() (err error) {
		report.RecentActivity, err = a.recentActivity(gctx, scope)
		return err
	})

	group.Go(func() error {
		jobs := append([]countJob{{name: "active tasks", pred: population, dst: &total}}, punctual.jobs(completions)...)
		return a.runCounts(gctx, 0, jobs)
	})
	group.Go(func() (err error) {
		avgDays, err = a.tasks.AverageCompletionDays(gctx, completions)
		if err != nil {
			return fmt.Errorf("failed to compute average completion time: %w", err)
		}
		return nil
	})

	report.TeamPerformance = []models.TeamMember{}
	if scope.IsAdmin {
		group.Go(func() (err error) {
			report.TeamPerformance, err = a.teamPerformance(gctx, scope)
			return err
		})
	}

	if err := group.Wait(); err != nil {
		return models.AnalyticsReport{}, err
	}

	report.PerformanceMetrics = models.PerformanceMetrics{
		OnTimeCompletion:      wholePercent(punctual.All.OnTime, punctual.All.Completed),
		AverageCompletionTime: int(math.Round(avgDays)),
		TaskDistribution:      distribution(report.TypeStats, total),
		OneTimeOnTimeRate:     punctual.OneTime.rate(),
		RecurringOnTimeRate:   punctual.Recurring.rate(),
	}

	a.log.DebugContext(ctx, "Computed analytics",
		"admin", scope.IsAdmin,
		"total", total,
		"team_members", len(report.TeamPerformance),
	)

	return report, nil
}

// distribution reshapes type stats into shares of the active task total.
func distribution(typeStats []models.GroupCount, total int) []models.DistributionEntry {
	entries := make([]models.DistributionEntry, 0, len(typeStats))
	for _, stat := range typeStats {
		entries = append(entries, models.DistributionEntry{
			Type:       stat.Key,
			Count:      stat.Count,
			Percentage: wholePercent(stat.Count, total),
		})
	}
	return entries
}

// recentActivity returns the newest task events of the scope. With a date
// range, a task qualifies when it was created, completed or fell overdue
// inside it.
func (a *Aggregator) recentActivity(ctx context.Context, scope query.Scope) ([]models.Activity, error) {
	pred := scope.Base()
	if r := scope.DateRange; r != nil {
		pred = pred.AnyOf(
			query.Predicate{}.CreatedIn(*r),
			query.Predicate{}.WithStatus(models.StatusCompleted).CompletedIn(*r),
			query.Predicate{}.WithStatus(models.StatusOverdue).DueIn(*r),
		)
	}

	activities, err := a.tasks.RecentActivity(ctx, pred, a.activityLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent activity: %w", err)
	}

	for i := range activities {
		activities[i].Type = activityType(activities[i].Status)
	}

	return activities, nil
}

func activityType(status models.TaskStatus) models.ActivityType {
	switch status {
	case models.StatusCompleted:
		return models.ActivityCompleted
	case models.StatusOverdue:
		return models.ActivityOverdue
	case models.StatusPending, models.StatusInProgress:
		return models.ActivityAssigned
	default:
		return models.ActivityAssigned
	}
}
