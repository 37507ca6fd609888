package repository

import (
	"context"
	"fmt"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
)

// CountTasks returns the number of tasks matching pred.
func (r *Repository) CountTasks(ctx context.Context, pred query.Predicate) (int, error) {
	var builder sqlBuilder
	where, err := builder.where(pred)
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err = r.db.QueryRow(ctx, fmt.Sprintf(countTasksSQL, where), builder.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting tasks: %w", err)
	}

	return count, nil
}

// GroupTasks counts the tasks matching pred per value of key, ordered by
// count descending and key ascending.
func (r *Repository) GroupTasks(ctx context.Context, pred query.Predicate, key query.GroupKey) (
	[]models.GroupCount, error,
) {
	expr, ok := groupExpressions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", query.ErrUnknownGroupKey, key)
	}

	var builder sqlBuilder
	where, err := builder.where(pred)
	if err != nil {
		return nil, fmt.Errorf("failed to build group query: %w", err)
	}
	if key == query.GroupCompletedMonth || key == query.GroupRelevantMonth {
		where += " AND " + expr + " IS NOT NULL"
	}

	rows, err := r.db.Query(ctx, fmt.Sprintf(groupTasksSQL, expr, where), builder.args...)
	if err != nil {
		return nil, fmt.Errorf("error querying task groups: %w", err)
	}
	defer rows.Close()

	groups := make([]models.GroupCount, 0)
	for rows.Next() {
		var group models.GroupCount
		if err = rows.Scan(&group.Key, &group.Count); err != nil {
			return nil, fmt.Errorf("error scanning task group row: %w", err)
		}
		groups = append(groups, group)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterating task group rows: %w", err)
	}

	return groups, nil
}

// AverageCompletionDays returns the mean time between creation and completion
// in days over the matching tasks, or 0 when none has completed.
func (r *Repository) AverageCompletionDays(ctx context.Context, pred query.Predicate) (float64, error) {
	var builder sqlBuilder
	where, err := builder.where(pred)
	if err != nil {
		return 0, fmt.Errorf("failed to build completion time query: %w", err)
	}

	var days float64
	if err = r.db.QueryRow(ctx, fmt.Sprintf(averageCompletionSQL, where), builder.args...).Scan(&days); err != nil {
		return 0, fmt.Errorf("error querying average completion time: %w", err)
	}

	return days, nil
}

// RecentActivity returns up to limit matching tasks as activity entries
// ordered by activity date, newest first. The activity date of a completed
// task is its completion time, otherwise its creation time.
func (r *Repository) RecentActivity(ctx context.Context, pred query.Predicate, limit int) ([]models.Activity, error) {
	var builder sqlBuilder
	where, err := builder.where(pred)
	if err != nil {
		return nil, fmt.Errorf("failed to build activity query: %w", err)
	}
	limitArg := builder.arg(limit)

	rows, err := r.db.Query(ctx, fmt.Sprintf(recentActivitySQL, where, limitArg), builder.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent activity: %w", err)
	}
	defer rows.Close()

	activities := make([]models.Activity, 0)
	for rows.Next() {
		var (
			activity         models.Activity
			taskType, status string
		)
		if err = rows.Scan(&activity.TaskID, &activity.Title, &taskType, &status,
			&activity.Username, &activity.AssignedBy, &activity.Date,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		activity.TaskType = models.TaskType(taskType)
		activity.Status = models.TaskStatus(status)
		activities = append(activities, activity)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return activities, nil
}
