package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
)

// teamPerformance builds one row per active user with at least one task in
// the scope. Users are processed one after another; the counts of one user
// run concurrently.
func (a *Aggregator) teamPerformance(ctx context.Context, scope query.Scope) ([]models.TeamMember, error) {
	users, err := a.users.ListActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}

	team := make([]models.TeamMember, 0, len(users))
	for _, user := range users {
		member, ok, err := a.memberPerformance(ctx, scope, user)
		if err != nil {
			return nil, fmt.Errorf("failed to compute performance of %s: %w", user.Username, err)
		}
		if ok {
			team = append(team, member)
		}
	}

	sort.SliceStable(team, func(i, j int) bool {
		return team[i].CompletionRate > team[j].CompletionRate
	})

	return team, nil
}

// memberPerformance computes the row of one user. The second result is
// false when the user has no task in the scope.
func (a *Aggregator) memberPerformance(
	ctx context.Context,
	scope query.Scope,
	user models.User,
) (models.TeamMember, bool, error) {
	own := query.Predicate{}.Active().AssignedTo(user.ID)
	population := query.Scheduled(own, scope.DateRange)
	completions := query.CompletedWithin(
		own.WithStatus(models.StatusCompleted).CompletedNotNull(),
		scope.DateRange,
	)

	counts := newBreakdown()
	var punctual quality
	jobs := append(counts.jobs(population, false), punctual.jobs(completions)...)
	if err := a.runCounts(ctx, a.teamConcurrency, jobs); err != nil {
		return models.TeamMember{}, false, err
	}

	if counts.All.Total == 0 && counts.All.Completed == 0 && counts.All.Pending == 0 {
		return models.TeamMember{}, false, nil
	}

	oneTime := counts.Types[models.TypeOneTime]
	daily := counts.Types[models.TypeDaily]
	weekly := counts.Types[models.TypeWeekly]
	monthly := counts.Types[models.TypeMonthly]
	yearly := counts.Types[models.TypeYearly]
	recurring := counts.recurring()

	return models.TeamMember{
		UserID:               user.ID,
		Username:             user.Username,
		TotalTasks:           counts.All.Total,
		CompletedTasks:       counts.All.Completed,
		PendingTasks:         counts.All.Pending,
		OneTimeTasks:         oneTime.Total,
		OneTimePending:       oneTime.Pending,
		OneTimeCompleted:     oneTime.Completed,
		OneTimeOnTimeRate:    punctual.OneTime.rate(),
		DailyTasks:           daily.Total,
		DailyPending:         daily.Pending,
		DailyCompleted:       daily.Completed,
		WeeklyTasks:          weekly.Total,
		WeeklyPending:        weekly.Pending,
		WeeklyCompleted:      weekly.Completed,
		MonthlyTasks:         monthly.Total,
		MonthlyPending:       monthly.Pending,
		MonthlyCompleted:     monthly.Completed,
		YearlyTasks:          yearly.Total,
		YearlyPending:        yearly.Pending,
		YearlyCompleted:      yearly.Completed,
		RecurringTasks:       recurring.Total,
		RecurringPending:     recurring.Pending,
		RecurringCompleted:   recurring.Completed,
		RecurringOnTimeRate:  punctual.Recurring.rate(),
		CompletionRate:       rate(counts.All.Completed, counts.All.Total),
		OnTimeRate:           punctual.All.rate(),
		OnTimeCompletedTasks: punctual.All.OnTime,
	}, true, nil
}
