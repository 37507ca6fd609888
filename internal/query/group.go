package query

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/models"
)

// ErrUnknownGroupKey is returned by stores asked to group by an unsupported key.
var ErrUnknownGroupKey = errors.New("unknown group key")

// MonthLayout is the label format of month group keys.
const MonthLayout = "2006-01"

// GroupKey names the attribute tasks are grouped by.
type GroupKey string

const (
	GroupStatus         GroupKey = "status"
	GroupType           GroupKey = "task_type"
	GroupPriority       GroupKey = "priority"
	GroupCompletedMonth GroupKey = "completed_month" // UTC month of completed_at
	GroupRelevantMonth  GroupKey = "relevant_month"  // UTC month of the relevant date
)

// Valid reports whether k is one of the supported group keys.
func (k GroupKey) Valid() bool {
	switch k {
	case GroupStatus, GroupType, GroupPriority, GroupCompletedMonth, GroupRelevantMonth:
		return true
	default:
		return false
	}
}

// Of returns the group label of task under k. The second result is false
// when the task has no value for the key.
func (k GroupKey) Of(task *models.Task) (string, bool) {
	switch k {
	case GroupStatus:
		return string(task.Status), true
	case GroupType:
		return string(task.Type), true
	case GroupPriority:
		return string(task.Priority), true
	case GroupCompletedMonth:
		if task.CompletedAt == nil {
			return "", false
		}
		return MonthLabel(*task.CompletedAt), true
	case GroupRelevantMonth:
		date := task.RelevantDate()
		if date == nil {
			return "", false
		}
		return MonthLabel(*date), true
	default:
		return "", false
	}
}

// MonthLabel formats the UTC calendar month of ts as a group label.
func MonthLabel(ts time.Time) string {
	return ts.UTC().Format(MonthLayout)
}

// ParseMonthLabel parses a label produced by MonthLabel.
func ParseMonthLabel(label string) (models.MonthKey, error) {
	ts, err := time.Parse(MonthLayout, label)
	if err != nil {
		return models.MonthKey{}, fmt.Errorf("invalid month label %q: %w", label, err)
	}
	return models.MonthKey{Month: int(ts.Month()), Year: ts.Year()}, nil
}

// SortGroups orders groups by count descending, then by key ascending.
func SortGroups(groups []models.GroupCount) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key < groups[j].Key
	})
}
