package repository_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
	"github.com/UnknownOlympus/taskpulse/internal/repository"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countOwnActive = "SELECT count(*) FROM tasks t WHERE t.is_active = $1 AND t.assigned_to = $2"

func TestCountTasks(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	pred := query.Scope{SubjectUserID: "u1"}.Base()

	t.Run("error - query count", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(countOwnActive)).
			WithArgs(true, "u1").
			WillReturnError(assert.AnError)

		_, err = repo.CountTasks(ctx, pred)

		require.Error(t, err)
		require.ErrorContains(t, err, "error counting tasks")
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success - count tasks", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(countOwnActive)).
			WithArgs(true, "u1").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

		count, err := repo.CountTasks(ctx, pred)

		require.NoError(t, err)
		assert.Equal(t, 7, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGroupTasks(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	pred := query.Predicate{}.Active()
	groupByStatus := "SELECT t.status AS group_key, count(*) AS task_count FROM tasks t WHERE t.is_active = $1 " +
		"GROUP BY group_key ORDER BY task_count DESC, group_key ASC"

	t.Run("error - unknown key", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		_, err = repo.GroupTasks(ctx, pred, query.GroupKey("title"))

		require.ErrorIs(t, err, query.ErrUnknownGroupKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - query groups", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(groupByStatus)).
			WithArgs(true).
			WillReturnError(assert.AnError)

		_, err = repo.GroupTasks(ctx, pred, query.GroupStatus)

		require.ErrorContains(t, err, "error querying task groups")
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - scan groups", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(groupByStatus)).
			WithArgs(true).
			WillReturnRows(pgxmock.NewRows([]string{"group_key", "task_count"}).AddRow("pending", "invalid_count"))

		_, err = repo.GroupTasks(ctx, pred, query.GroupStatus)

		require.ErrorContains(t, err, "error scanning task group row")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - rows error", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(groupByStatus)).
			WithArgs(true).
			WillReturnRows(
				pgxmock.NewRows([]string{"group_key", "task_count"}).AddRow("pending", 1).
					RowError(1, assert.AnError),
			)

		_, err = repo.GroupTasks(ctx, pred, query.GroupStatus)

		require.ErrorContains(t, err, "failed to iterating task group rows")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success - group by status", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(groupByStatus)).
			WithArgs(true).
			WillReturnRows(
				pgxmock.NewRows([]string{"group_key", "task_count"}).AddRow("completed", 4).AddRow("pending", 2),
			)

		groups, err := repo.GroupTasks(ctx, pred, query.GroupStatus)

		require.NoError(t, err)
		assert.Equal(t, []models.GroupCount{{Key: "completed", Count: 4}, {Key: "pending", Count: 2}}, groups)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success - month groups skip null dates", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(
			"WHERE t.is_active = $1 AND to_char(t.completed_at AT TIME ZONE 'UTC', 'YYYY-MM') IS NOT NULL",
		)).
			WithArgs(true).
			WillReturnRows(pgxmock.NewRows([]string{"group_key", "task_count"}).AddRow("2024-03", 3))

		groups, err := repo.GroupTasks(ctx, pred, query.GroupCompletedMonth)

		require.NoError(t, err)
		assert.Equal(t, []models.GroupCount{{Key: "2024-03", Count: 3}}, groups)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAverageCompletionDays(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	pred := query.Predicate{}.Active()
	avgQuery := "FROM tasks t WHERE t.is_active = $1 AND t.completed_at IS NOT NULL"

	t.Run("error - query average", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(avgQuery)).WithArgs(true).WillReturnError(assert.AnError)

		_, err = repo.AverageCompletionDays(ctx, pred)

		require.ErrorContains(t, err, "error querying average completion time")
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success - average days", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(avgQuery)).
			WithArgs(true).
			WillReturnRows(pgxmock.NewRows([]string{"avg"}).AddRow(4.5))

		days, err := repo.AverageCompletionDays(ctx, pred)

		require.NoError(t, err)
		assert.InDelta(t, 4.5, days, 1e-9)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecentActivity(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	pred := query.Predicate{}.Active()
	activityQuery := "WHERE t.is_active = $1 ORDER BY activity_date DESC LIMIT $2"
	columns := []string{"id", "title", "task_type", "status", "username", "assigned_by", "activity_date"}
	now := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	t.Run("error - query activity", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(activityQuery)).WithArgs(true, 20).WillReturnError(assert.AnError)

		_, err = repo.RecentActivity(ctx, pred, 20)

		require.ErrorContains(t, err, "failed to query recent activity")
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - scan activity", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(activityQuery)).
			WithArgs(true, 20).
			WillReturnRows(pgxmock.NewRows(columns).AddRow("t1", "Title", "daily", "pending", "bob", "alice", "not a time"))

		_, err = repo.RecentActivity(ctx, pred, 20)

		require.ErrorContains(t, err, "failed to scan activity row")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success - recent activity", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := repository.NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta(activityQuery)).
			WithArgs(true, 20).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("t1", "Ship release", "one-time", "completed", "bob", "alice", now).
				AddRow("t2", "Backup", "daily", "pending", "carol", "", now.Add(-time.Hour)))

		activities, err := repo.RecentActivity(ctx, pred, 20)

		require.NoError(t, err)
		require.Len(t, activities, 2)
		assert.Equal(t, "Ship release", activities[0].Title)
		assert.Equal(t, models.TypeOneTime, activities[0].TaskType)
		assert.Equal(t, models.StatusCompleted, activities[0].Status)
		assert.Equal(t, "alice", activities[0].AssignedBy)
		assert.Equal(t, now, activities[0].Date)
		assert.Equal(t, "carol", activities[1].Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
