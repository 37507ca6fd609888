// Package mongostore serves the task, user and telegram link queries from
// MongoDB collections laid out like the task-management application's own
// documents.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
	"github.com/UnknownOlympus/taskpulse/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	tasksCollection = "tasks"
	usersCollection = "users"
	linksCollection = "bot_users"
)

// Store reads tasks and users and keeps telegram links in MongoDB.
type Store struct {
	client *mongo.Client
	tasks  *mongo.Collection
	users  *mongo.Collection
	links  *mongo.Collection
}

// Connect opens a client for uri, pings it and returns a Store over database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("unable to create connection to MongoDB: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return New(client.Database(database)), nil
}

// New returns a Store over db.
func New(db *mongo.Database) *Store {
	return &Store{
		client: db.Client(),
		tasks:  db.Collection(tasksCollection),
		users:  db.Collection(usersCollection),
		links:  db.Collection(linksCollection),
	}
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks that the deployment answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// EnsureIndexes creates the unique indexes the telegram links rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.links.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "telegramId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create link indexes: %w", err)
	}
	return nil
}

// CountTasks returns the number of tasks matching pred.
func (s *Store) CountTasks(ctx context.Context, pred query.Predicate) (int, error) {
	filter, err := Filter(pred)
	if err != nil {
		return 0, fmt.Errorf("failed to build count filter: %w", err)
	}

	count, err := s.tasks.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("error counting tasks: %w", err)
	}

	return int(count), nil
}

type groupDoc struct {
	Key   string `bson:"_id"`
	Count int    `bson:"count"`
}

// GroupTasks counts the tasks matching pred per value of key, largest
// groups first.
func (s *Store) GroupTasks(ctx context.Context, pred query.Predicate, key query.GroupKey) ([]models.GroupCount, error) {
	expr, err := groupExpression(key)
	if err != nil {
		return nil, err
	}
	filter, err := Filter(pred)
	if err != nil {
		return nil, fmt.Errorf("failed to build group filter: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: expr},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: bson.D{{Key: "$ne", Value: nil}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	cursor, err := s.tasks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error querying task groups: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []groupDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding task groups: %w", err)
	}

	groups := make([]models.GroupCount, 0, len(docs))
	for _, doc := range docs {
		groups = append(groups, models.GroupCount{Key: doc.Key, Count: doc.Count})
	}

	return groups, nil
}

// AverageCompletionDays returns the mean time from creation to completion in
// days over the matching tasks, or 0 when none matches.
func (s *Store) AverageCompletionDays(ctx context.Context, pred query.Predicate) (float64, error) {
	filter, err := Filter(pred.CompletedNotNull())
	if err != nil {
		return 0, fmt.Errorf("failed to build average filter: %w", err)
	}

	dayMillis := (24 * time.Hour).Milliseconds()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: bson.D{{Key: "$divide", Value: bson.A{
				bson.D{{Key: "$subtract", Value: bson.A{"$completedAt", "$createdAt"}}},
				dayMillis,
			}}}}}},
		}}},
	}

	cursor, err := s.tasks.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("error querying average completion time: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		Avg float64 `bson:"avg"`
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("error decoding average completion time: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	return docs[0].Avg, nil
}

type nameDoc struct {
	Username string `bson:"username"`
}

type activityDoc struct {
	ID           bson.RawValue `bson:"_id"`
	Title        string        `bson:"title"`
	TaskType     string        `bson:"taskType"`
	Status       string        `bson:"status"`
	ActivityDate time.Time     `bson:"activityDate"`
	Assignee     []nameDoc     `bson:"assignee"`
	Assigner     []nameDoc     `bson:"assigner"`
}

func firstName(names []nameDoc) string {
	if len(names) == 0 {
		return ""
	}
	return names[0].Username
}

// RecentActivity returns up to limit matching tasks as activity entries,
// newest first, with the usernames of assignee and assigner resolved.
func (s *Store) RecentActivity(ctx context.Context, pred query.Predicate, limit int) ([]models.Activity, error) {
	filter, err := Filter(pred)
	if err != nil {
		return nil, fmt.Errorf("failed to build activity filter: %w", err)
	}

	completed := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{"$status", string(models.StatusCompleted)}}},
		bson.D{{Key: "$ne", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$completedAt", nil}}}, nil}}},
	}}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$addFields", Value: bson.D{{Key: "activityDate", Value: bson.D{
			{Key: "$cond", Value: bson.A{completed, "$completedAt", "$createdAt"}},
		}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "activityDate", Value: -1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	pipeline = append(pipeline,
		lookupUsername("assignedTo", "assignee"),
		lookupUsername("assignedBy", "assigner"),
	)

	cursor, err := s.tasks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent activity: %w", err)
	}
	defer cursor.Close(ctx)

	activities := make([]models.Activity, 0)
	for cursor.Next(ctx) {
		var doc activityDoc
		if err = cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode activity: %w", err)
		}
		activities = append(activities, models.Activity{
			TaskID:     idString(doc.ID),
			Title:      doc.Title,
			TaskType:   models.TaskType(doc.TaskType),
			Status:     models.TaskStatus(doc.Status),
			Username:   firstName(doc.Assignee),
			AssignedBy: firstName(doc.Assigner),
			Date:       doc.ActivityDate.UTC(),
		})
	}
	if err = cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activity cursor: %w", err)
	}

	return activities, nil
}

func lookupUsername(localField, as string) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: usersCollection},
		{Key: "localField", Value: localField},
		{Key: "foreignField", Value: "_id"},
		{Key: "as", Value: as},
	}}}
}

type userDoc struct {
	ID        bson.RawValue `bson:"_id"`
	Username  string        `bson:"username"`
	Email     string        `bson:"email"`
	Role      string        `bson:"role"`
	IsActive  bool          `bson:"isActive"`
	CreatedAt time.Time     `bson:"createdAt"`
}

func (d userDoc) model() models.User {
	return models.User{
		ID:        idString(d.ID),
		Username:  d.Username,
		Email:     d.Email,
		Role:      models.Role(d.Role),
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// ListActiveUsers returns the active users ordered by username.
func (s *Store) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	cursor, err := s.users.Find(ctx,
		bson.D{{Key: "isActive", Value: true}},
		options.Find().SetSort(bson.D{{Key: "username", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.model())
	}

	return users, nil
}

// EnsureDefaultAdmin upserts the default admin account keyed by username and
// reports whether it was created.
func (s *Store) EnsureDefaultAdmin(ctx context.Context, admin models.User) (bool, error) {
	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "username", Value: admin.Username}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: idValue(admin.ID)},
			{Key: "email", Value: admin.Email},
			{Key: "role", Value: string(models.RoleAdmin)},
			{Key: "isActive", Value: true},
			{Key: "createdAt", Value: time.Now().UTC()},
		}}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("failed to seed default admin: %w", err)
	}

	return res.UpsertedCount == 1, nil
}

// LinkTelegramIDByEmail links a Telegram account to the active user with
// the given email. Uniqueness of both sides is enforced by the indexes
// created in EnsureIndexes.
func (s *Store) LinkTelegramIDByEmail(ctx context.Context, telegramID int64, email string) error {
	var user userDoc
	err := s.users.FindOne(ctx, bson.D{
		{Key: "email", Value: email},
		{Key: "isActive", Value: true},
	}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.ErrUserNotFound
		}
		return fmt.Errorf("failed to find user by email: %w", err)
	}

	exists, err := s.links.CountDocuments(ctx, bson.D{{Key: "telegramId", Value: telegramID}})
	if err != nil {
		return fmt.Errorf("failed to check telegram link: %w", err)
	}
	if exists > 0 {
		return repository.ErrIDExists
	}

	_, err = s.links.InsertOne(ctx, bson.D{
		{Key: "telegramId", Value: telegramID},
		{Key: "userId", Value: user.ID},
		{Key: "createdAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrUserAlreadyLinked
		}
		return fmt.Errorf("failed to insert into bot_users: %w", err)
	}

	return nil
}

// GetLinkedUser returns the active user linked to a Telegram account.
func (s *Store) GetLinkedUser(ctx context.Context, telegramID int64) (models.User, error) {
	var link struct {
		UserID bson.RawValue `bson:"userId"`
	}
	err := s.links.FindOne(ctx, bson.D{{Key: "telegramId", Value: telegramID}}).Decode(&link)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, repository.ErrNotLinked
		}
		return models.User{}, fmt.Errorf("failed to get telegram link: %w", err)
	}

	var user userDoc
	err = s.users.FindOne(ctx, bson.D{
		{Key: "_id", Value: link.UserID},
		{Key: "isActive", Value: true},
	}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, repository.ErrNotLinked
		}
		return models.User{}, fmt.Errorf("failed to get linked user: %w", err)
	}

	return user.model(), nil
}

// DeleteLink removes the link of a Telegram account.
func (s *Store) DeleteLink(ctx context.Context, telegramID int64) error {
	res, err := s.links.DeleteOne(ctx, bson.D{{Key: "telegramId", Value: telegramID}})
	if err != nil {
		return fmt.Errorf("failed to delete telegram link: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotLinked
	}

	return nil
}
