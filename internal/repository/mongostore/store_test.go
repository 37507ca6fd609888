package mongostore_test

import (
	"testing"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
	"github.com/UnknownOlympus/taskpulse/internal/repository"
	"github.com/UnknownOlympus/taskpulse/internal/repository/mongostore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const tasksNS = "taskpulse.tasks"

func TestStore_Mock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	admin := query.Scope{IsAdmin: true}

	mt.Run("count tasks", func(mt *mtest.T) {
		store := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, tasksNS, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(7)}}))

		count, err := store.CountTasks(t.Context(), admin.Base())

		require.NoError(mt, err)
		assert.Equal(mt, 7, count)
	})

	mt.Run("count tasks error", func(mt *mtest.T) {
		store := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "boom"}))

		_, err := store.CountTasks(t.Context(), admin.Base())

		require.ErrorContains(mt, err, "error counting tasks")
	})

	mt.Run("group tasks", func(mt *mtest.T) {
		store := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, tasksNS, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "completed"}, {Key: "count", Value: int32(4)}},
			bson.D{{Key: "_id", Value: "pending"}, {Key: "count", Value: int32(2)}},
		))

		groups, err := store.GroupTasks(t.Context(), admin.Base(), query.GroupStatus)

		require.NoError(mt, err)
		assert.Equal(mt, []models.GroupCount{{Key: "completed", Count: 4}, {Key: "pending", Count: 2}}, groups)
	})

	mt.Run("average completion without tasks", func(mt *mtest.T) {
		store := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, tasksNS, mtest.FirstBatch))

		avg, err := store.AverageCompletionDays(t.Context(), admin.Completions())

		require.NoError(mt, err)
		assert.Zero(mt, avg)
	})

	mt.Run("recent activity", func(mt *mtest.T) {
		store := mongostore.New(mt.DB)
		oid := primitive.NewObjectID()
		date := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, tasksNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "title", Value: "report"},
			{Key: "taskType", Value: "one-time"},
			{Key: "status", Value: "completed"},
			{Key: "activityDate", Value: date},
			{Key: "assignee", Value: bson.A{bson.D{{Key: "username", Value: "alice"}}}},
			{Key: "assigner", Value: bson.A{}},
		}))

		activity, err := store.RecentActivity(t.Context(), admin.Base(), 20)

		require.NoError(mt, err)
		require.Len(mt, activity, 1)
		assert.Equal(mt, oid.Hex(), activity[0].TaskID)
		assert.Equal(mt, "alice", activity[0].Username)
		assert.Empty(mt, activity[0].AssignedBy)
		assert.Equal(mt, models.StatusCompleted, activity[0].Status)
		assert.True(mt, date.Equal(activity[0].Date))
	})

	mt.Run("ensure default admin", func(mt *mtest.T) {
		store := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(1)},
			bson.E{Key: "nModified", Value: int32(0)},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: int32(0)}, {Key: "_id", Value: "admin"}}}},
		))

		created, err := store.EnsureDefaultAdmin(t.Context(), models.User{ID: "admin", Username: "Admin"})

		require.NoError(mt, err)
		assert.True(mt, created)
	})

	mt.Run("link user already linked", func(mt *mtest.T) {
		store := mongostore.New(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "taskpulse.users", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "u1"}, {Key: "username", Value: "alice"}, {Key: "isActive", Value: true},
			}),
			mtest.CreateCursorResponse(0, "taskpulse.bot_users", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(0)}}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}),
		)

		err := store.LinkTelegramIDByEmail(t.Context(), 42, "alice@x.io")

		require.ErrorIs(mt, err, repository.ErrUserAlreadyLinked)
	})

	mt.Run("link telegram id exists", func(mt *mtest.T) {
		store := mongostore.New(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "taskpulse.users", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "u1"}, {Key: "username", Value: "alice"}, {Key: "isActive", Value: true},
			}),
			mtest.CreateCursorResponse(0, "taskpulse.bot_users", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		err := store.LinkTelegramIDByEmail(t.Context(), 42, "alice@x.io")

		require.ErrorIs(mt, err, repository.ErrIDExists)
	})

	mt.Run("link unknown user", func(mt *mtest.T) {
		store := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "taskpulse.users", mtest.FirstBatch))

		err := store.LinkTelegramIDByEmail(t.Context(), 42, "nobody@x.io")

		require.ErrorIs(mt, err, repository.ErrUserNotFound)
	})

	mt.Run("delete missing link", func(mt *mtest.T) {
		store := mongostore.New(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}))

		err := store.DeleteLink(t.Context(), 42)

		require.ErrorIs(mt, err, repository.ErrNotLinked)
	})
}
