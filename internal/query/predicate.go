// Package query builds the task predicates the dashboard aggregations run
// against a task store. A Predicate is an immutable conjunction of
// conditions: every derivation returns a copy, so one base predicate can be
// built per request and specialised many times.
package query

import (
	"slices"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/models"
)

// Field names a task attribute a condition can test.
type Field string

const (
	FieldActive       Field = "is_active"
	FieldAssignedTo   Field = "assigned_to"
	FieldStatus       Field = "status"
	FieldType         Field = "task_type"
	FieldPriority     Field = "priority"
	FieldDueDate      Field = "due_date"
	FieldNextDueDate  Field = "next_due_date"
	FieldCompletedAt  Field = "completed_at"
	FieldCreatedAt    Field = "created_at"
	FieldRelevantDate Field = "relevant_date" // next_due_date, falling back to due_date
)

// Kind is the operator of a condition.
type Kind int

const (
	KindEquals  Kind = iota + 1 // Field equals Value
	KindIn                      // Field is one of Values
	KindBetween                 // Field lies inside Range, bounds included
	KindNotNull                 // Field is set
	KindOnTime                  // completed no later than due date + 24h
	KindAnyOf                   // at least one of Branches holds
)

// Range is a closed time interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts lies inside the range, bounds included.
func (r Range) Contains(ts time.Time) bool {
	return !ts.Before(r.Start) && !ts.After(r.End)
}

// Condition is a single test applied to a task.
type Condition struct {
	Kind     Kind
	Field    Field
	Value    any
	Values   []string
	Range    Range
	Branches []Predicate
}

// Predicate is a conjunction of conditions. The zero value matches every task.
type Predicate struct {
	conds []Condition
}

// Conditions returns a copy of the predicate's conditions in insertion order.
func (p Predicate) Conditions() []Condition {
	return slices.Clone(p.conds)
}

// IsEmpty reports whether the predicate has no condition.
func (p Predicate) IsEmpty() bool {
	return len(p.conds) == 0
}

func (p Predicate) and(cond Condition) Predicate {
	conds := make([]Condition, len(p.conds), len(p.conds)+1)
	copy(conds, p.conds)
	return Predicate{conds: append(conds, cond)}
}

// Active restricts to tasks that are not soft-deleted.
func (p Predicate) Active() Predicate {
	return p.and(Condition{Kind: KindEquals, Field: FieldActive, Value: true})
}

// AssignedTo restricts to tasks assigned to userID.
func (p Predicate) AssignedTo(userID string) Predicate {
	return p.and(Condition{Kind: KindEquals, Field: FieldAssignedTo, Value: userID})
}

// WithStatus restricts to tasks in the given status.
func (p Predicate) WithStatus(status models.TaskStatus) Predicate {
	return p.and(Condition{Kind: KindEquals, Field: FieldStatus, Value: string(status)})
}

// WithType restricts to tasks of the given type.
func (p Predicate) WithType(taskType models.TaskType) Predicate {
	return p.and(Condition{Kind: KindEquals, Field: FieldType, Value: string(taskType)})
}

// WithTypes restricts to tasks whose type is one of taskTypes.
func (p Predicate) WithTypes(taskTypes ...models.TaskType) Predicate {
	values := make([]string, len(taskTypes))
	for i, tt := range taskTypes {
		values[i] = string(tt)
	}
	return p.and(Condition{Kind: KindIn, Field: FieldType, Values: values})
}

// CompletedNotNull restricts to tasks carrying a completion timestamp.
func (p Predicate) CompletedNotNull() Predicate {
	return p.and(Condition{Kind: KindNotNull, Field: FieldCompletedAt})
}

// CompletedIn restricts to tasks completed inside r.
func (p Predicate) CompletedIn(r Range) Predicate {
	return p.and(Condition{Kind: KindBetween, Field: FieldCompletedAt, Range: r})
}

// CreatedIn restricts to tasks created inside r.
func (p Predicate) CreatedIn(r Range) Predicate {
	return p.and(Condition{Kind: KindBetween, Field: FieldCreatedAt, Range: r})
}

// DueIn restricts to tasks whose due date lies inside r.
func (p Predicate) DueIn(r Range) Predicate {
	return p.and(Condition{Kind: KindBetween, Field: FieldDueDate, Range: r})
}

// RelevantDateIn restricts to tasks whose relevant date (next due date,
// falling back to due date) lies inside r.
func (p Predicate) RelevantDateIn(r Range) Predicate {
	return p.and(Condition{Kind: KindBetween, Field: FieldRelevantDate, Range: r})
}

// ScheduledIn restricts to tasks whose due date or next due date lies inside r.
func (p Predicate) ScheduledIn(r Range) Predicate {
	return p.AnyOf(
		Predicate{}.DueIn(r),
		Predicate{}.and(Condition{Kind: KindBetween, Field: FieldNextDueDate, Range: r}),
	)
}

// OnTime restricts to tasks completed no later than 24 hours after their due
// date. Tasks without a due date never match.
func (p Predicate) OnTime() Predicate {
	return p.and(Condition{Kind: KindOnTime})
}

// AnyOf adds a disjunction of branches. An AnyOf without branches matches
// nothing.
func (p Predicate) AnyOf(branches ...Predicate) Predicate {
	return p.and(Condition{Kind: KindAnyOf, Branches: slices.Clone(branches)})
}

// Match evaluates the predicate against a task in memory.
func (p Predicate) Match(task *models.Task) bool {
	for _, cond := range p.conds {
		if !cond.match(task) {
			return false
		}
	}
	return true
}

func (c Condition) match(task *models.Task) bool {
	switch c.Kind {
	case KindEquals:
		return fieldValue(task, c.Field) == c.Value
	case KindIn:
		value, ok := fieldValue(task, c.Field).(string)
		return ok && slices.Contains(c.Values, value)
	case KindBetween:
		ts := timeValue(task, c.Field)
		return ts != nil && c.Range.Contains(*ts)
	case KindNotNull:
		return timeValue(task, c.Field) != nil
	case KindOnTime:
		return task.IsOnTime()
	case KindAnyOf:
		for _, branch := range c.Branches {
			if branch.Match(task) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func fieldValue(task *models.Task, field Field) any {
	switch field {
	case FieldActive:
		return task.IsActive
	case FieldAssignedTo:
		return task.AssignedTo
	case FieldStatus:
		return string(task.Status)
	case FieldType:
		return string(task.Type)
	case FieldPriority:
		return string(task.Priority)
	default:
		return nil
	}
}

func timeValue(task *models.Task, field Field) *time.Time {
	switch field {
	case FieldDueDate:
		return task.DueDate
	case FieldNextDueDate:
		return task.NextDueDate
	case FieldCompletedAt:
		return task.CompletedAt
	case FieldCreatedAt:
		return &task.CreatedAt
	case FieldRelevantDate:
		return task.RelevantDate()
	default:
		return nil
	}
}
