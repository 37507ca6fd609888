package models

import "time"

// TaskType is the schedule kind of a task.
type TaskType string

const (
	TypeOneTime   TaskType = "one-time"
	TypeDaily     TaskType = "daily"
	TypeWeekly    TaskType = "weekly"
	TypeMonthly   TaskType = "monthly"
	TypeQuarterly TaskType = "quarterly"
	TypeYearly    TaskType = "yearly"
)

// RecurringTypes lists the task types that are summed into the recurring
// aggregates of the dashboard.
var RecurringTypes = []TaskType{TypeDaily, TypeWeekly, TypeMonthly, TypeYearly} //nolint:gochecknoglobals // fixed set

// BreakdownTypes lists the task types that get their own counters.
var BreakdownTypes = []TaskType{TypeOneTime, TypeDaily, TypeWeekly, TypeMonthly, TypeYearly} //nolint:gochecknoglobals // fixed set

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
	StatusOverdue    TaskStatus = "overdue"
)

// Priority of a task.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// OnTimeGrace is the slack after the due date within which a completion
// still counts as on time.
const OnTimeGrace = 24 * time.Hour

// Task is a task record as the analytics service reads it.
// The service never mutates tasks.
type Task struct {
	ID          string     `json:"id"`                    // Unique identifier for the task
	Title       string     `json:"title"`                 // Short title shown in activity feeds
	AssignedTo  string     `json:"assignedTo"`            // ID of the user the task is assigned to
	AssignedBy  string     `json:"assignedBy"`            // ID of the user who assigned the task
	Type        TaskType   `json:"taskType"`              // Schedule kind
	Status      TaskStatus `json:"status"`                // Lifecycle state
	Priority    Priority   `json:"priority"`              // Priority level
	DueDate     *time.Time `json:"dueDate,omitempty"`     // Due date, optional
	NextDueDate *time.Time `json:"nextDueDate,omitempty"` // Next occurrence of a recurring task
	CompletedAt *time.Time `json:"completedAt,omitempty"` // Set when the task reaches completed
	CreatedAt   time.Time  `json:"createdAt"`             // Creation time, immutable
	IsActive    bool       `json:"isActive"`              // Soft-delete flag
}

// RelevantDate returns the next due date of a recurring task, falling back to
// the due date. It returns nil when neither is set.
func (t *Task) RelevantDate() *time.Time {
	if t.NextDueDate != nil {
		return t.NextDueDate
	}
	return t.DueDate
}

// IsOnTime reports whether the task was completed no later than 24 hours
// after its due date. Tasks without a due date are never on time.
func (t *Task) IsOnTime() bool {
	if t.CompletedAt == nil || t.DueDate == nil {
		return false
	}
	return !t.CompletedAt.After(t.DueDate.Add(OnTimeGrace))
}
