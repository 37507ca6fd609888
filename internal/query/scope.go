package query

import "github.com/UnknownOlympus/taskpulse/internal/models"

// Scope is the request-level view of the task set: whose tasks, and which
// optional date range.
type Scope struct {
	SubjectUserID string
	IsAdmin       bool
	DateRange     *Range
}

// Base matches the active tasks visible to the scope: every active task for
// admins, the subject's own active tasks otherwise.
func (s Scope) Base() Predicate {
	base := Predicate{}.Active()
	if !s.IsAdmin {
		base = base.AssignedTo(s.SubjectUserID)
	}
	return base
}

// Population matches the tasks the population metrics are computed over:
// the base set, restricted to tasks scheduled inside the date range when one
// is given.
func (s Scope) Population() Predicate {
	return Scheduled(s.Base(), s.DateRange)
}

// Completions matches the completed tasks the completion-quality metrics are
// computed over: restricted by completion time when a date range is given.
func (s Scope) Completions() Predicate {
	return CompletedWithin(s.Base().WithStatus(models.StatusCompleted).CompletedNotNull(), s.DateRange)
}

// Scheduled applies ScheduledIn when r is set.
func Scheduled(p Predicate, r *Range) Predicate {
	if r == nil {
		return p
	}
	return p.ScheduledIn(*r)
}

// CompletedWithin applies CompletedIn when r is set.
func CompletedWithin(p Predicate, r *Range) Predicate {
	if r == nil {
		return p
	}
	return p.CompletedIn(*r)
}
