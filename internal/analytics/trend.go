package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
)

// trendMonths is the number of calendar months a trend spans, the current
// month included.
const trendMonths = 6

// trendWindow returns the UTC months of the trend ending at the month of
// now, oldest first, and the time range they cover.
func trendWindow(now time.Time) ([]models.MonthKey, query.Range) {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month()-(trendMonths-1), 1, 0, 0, 0, 0, time.UTC)

	months := make([]models.MonthKey, 0, trendMonths)
	for i := range trendMonths {
		month := first.AddDate(0, i, 0)
		months = append(months, models.MonthKey{Month: int(month.Month()), Year: month.Year()})
	}

	end := first.AddDate(0, trendMonths, 0).Add(-time.Nanosecond)

	return months, query.Range{Start: first, End: end}
}

// fillTrend lays grouped month counts over the materialized months, so
// months without tasks stay in the trend with a zero count.
func fillTrend(months []models.MonthKey, groups []models.GroupCount) ([]models.TrendPoint, error) {
	counts := make(map[models.MonthKey]int, len(groups))
	for _, group := range groups {
		key, err := query.ParseMonthLabel(group.Key)
		if err != nil {
			return nil, err
		}
		counts[key] += group.Count
	}

	points := make([]models.TrendPoint, len(months))
	for i, month := range months {
		points[i] = models.TrendPoint{Period: month, Count: counts[month]}
	}

	return points, nil
}

// trend groups pred by key and fills the result into months.
func (a *Aggregator) trend(
	ctx context.Context,
	months []models.MonthKey,
	pred query.Predicate,
	key query.GroupKey,
) ([]models.TrendPoint, error) {
	groups, err := a.tasks.GroupTasks(ctx, pred, key)
	if err != nil {
		return nil, fmt.Errorf("failed to group %s trend: %w", key, err)
	}
	return fillTrend(months, groups)
}
