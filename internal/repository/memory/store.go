// Package memory keeps tasks and users in process memory. It backs the
// "memory" storage driver and the aggregation tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
	"github.com/UnknownOlympus/taskpulse/internal/repository"
)

// Store is a concurrency-safe in-memory task, user and link store.
type Store struct {
	mu    sync.RWMutex
	tasks []models.Task
	users map[string]models.User
	links map[int64]string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users: make(map[string]models.User),
		links: make(map[int64]string),
	}
}

// AddTasks stores copies of tasks.
func (s *Store) AddTasks(tasks ...models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, tasks...)
}

// AddUsers stores users, replacing records with the same ID.
func (s *Store) AddUsers(users ...models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range users {
		s.users[user.ID] = user
	}
}

// Seed is the document read by Load.
type Seed struct {
	Users []models.User `json:"users"`
	Tasks []models.Task `json:"tasks"`
}

// Load decodes a JSON seed document from r and adds its users and tasks.
func (s *Store) Load(r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("failed to decode seed: %w", err)
	}
	s.AddUsers(seed.Users...)
	s.AddTasks(seed.Tasks...)

	return nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// CountTasks returns the number of tasks matching pred.
func (s *Store) CountTasks(ctx context.Context, pred query.Predicate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for i := range s.tasks {
		if pred.Match(&s.tasks[i]) {
			count++
		}
	}
	return count, nil
}

// GroupTasks counts the tasks matching pred per value of key.
func (s *Store) GroupTasks(ctx context.Context, pred query.Predicate, key query.GroupKey) ([]models.GroupCount, error) {
	if !key.Valid() {
		return nil, query.ErrUnknownGroupKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for i := range s.tasks {
		if !pred.Match(&s.tasks[i]) {
			continue
		}
		if label, ok := key.Of(&s.tasks[i]); ok {
			counts[label]++
		}
	}

	groups := make([]models.GroupCount, 0, len(counts))
	for label, count := range counts {
		groups = append(groups, models.GroupCount{Key: label, Count: count})
	}
	query.SortGroups(groups)

	return groups, nil
}

// AverageCompletionDays returns the mean of completedAt - createdAt in days
// over the matching tasks that carry a completion time, or 0 when none does.
func (s *Store) AverageCompletionDays(ctx context.Context, pred query.Predicate) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total time.Duration
	count := 0
	for i := range s.tasks {
		task := &s.tasks[i]
		if task.CompletedAt == nil || !pred.Match(task) {
			continue
		}
		total += task.CompletedAt.Sub(task.CreatedAt)
		count++
	}
	if count == 0 {
		return 0, nil
	}

	const day = 24 * time.Hour
	return total.Hours() / day.Hours() / float64(count), nil
}

// RecentActivity returns up to limit matching tasks as activity entries,
// newest first.
func (s *Store) RecentActivity(ctx context.Context, pred query.Predicate, limit int) ([]models.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	activities := make([]models.Activity, 0)
	for i := range s.tasks {
		task := &s.tasks[i]
		if !pred.Match(task) {
			continue
		}
		date := task.CreatedAt
		if task.Status == models.StatusCompleted && task.CompletedAt != nil {
			date = *task.CompletedAt
		}
		activities = append(activities, models.Activity{
			TaskID:     task.ID,
			Title:      task.Title,
			TaskType:   task.Type,
			Status:     task.Status,
			Username:   s.users[task.AssignedTo].Username,
			AssignedBy: s.users[task.AssignedBy].Username,
			Date:       date,
		})
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Date.After(activities[j].Date)
	})
	if limit > 0 && len(activities) > limit {
		activities = activities[:limit]
	}

	return activities, nil
}

// ListActiveUsers returns the active users ordered by username.
func (s *Store) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		if user.IsActive {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })

	return users, nil
}

// EnsureDefaultAdmin adds the default admin account unless a user with the
// same username exists.
func (s *Store) EnsureDefaultAdmin(_ context.Context, admin models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Username == admin.Username {
			return false, nil
		}
	}
	s.users[admin.ID] = admin
	return true, nil
}

// LinkTelegramIDByEmail links a Telegram account to the active user
// with the given email.
func (s *Store) LinkTelegramIDByEmail(_ context.Context, telegramID int64, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var userID string
	for _, user := range s.users {
		if email != "" && user.Email == email && user.IsActive {
			userID = user.ID
			break
		}
	}
	if userID == "" {
		return repository.ErrUserNotFound
	}
	if _, ok := s.links[telegramID]; ok {
		return repository.ErrIDExists
	}
	for _, linked := range s.links {
		if linked == userID {
			return repository.ErrUserAlreadyLinked
		}
	}
	s.links[telegramID] = userID

	return nil
}

// GetLinkedUser returns the user linked to a Telegram account.
func (s *Store) GetLinkedUser(_ context.Context, telegramID int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.links[telegramID]
	if !ok {
		return models.User{}, repository.ErrNotLinked
	}
	user, ok := s.users[userID]
	if !ok || !user.IsActive {
		return models.User{}, repository.ErrNotLinked
	}
	return user, nil
}

// DeleteLink removes the link of a Telegram account.
func (s *Store) DeleteLink(_ context.Context, telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[telegramID]; !ok {
		return repository.ErrNotLinked
	}
	delete(s.links, telegramID)

	return nil
}
