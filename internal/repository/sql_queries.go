package repository

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/taskpulse/internal/query"
)

const (
	countTasksSQL = "SELECT count(*) FROM tasks t WHERE %s"

	groupTasksSQL = "SELECT %s AS group_key, count(*) AS task_count FROM tasks t WHERE %s " +
		"GROUP BY group_key ORDER BY task_count DESC, group_key ASC"

	averageCompletionSQL = "SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (t.completed_at - t.created_at)) / 86400), 0)::float8 " +
		"FROM tasks t WHERE %s AND t.completed_at IS NOT NULL"

	recentActivitySQL = "SELECT t.id, t.title, t.task_type, t.status, " +
		"COALESCE(ua.username, ''), COALESCE(ub.username, ''), " +
		"CASE WHEN t.status = 'completed' AND t.completed_at IS NOT NULL THEN t.completed_at ELSE t.created_at END AS activity_date " +
		"FROM tasks t " +
		"LEFT JOIN users ua ON ua.id = t.assigned_to " +
		"LEFT JOIN users ub ON ub.id = t.assigned_by " +
		"WHERE %s ORDER BY activity_date DESC LIMIT %s"

	listActiveUsersSQL = "SELECT id, username, email, role, is_active, created_at FROM users " +
		"WHERE is_active = TRUE ORDER BY username"

	ensureAdminSQL = "INSERT INTO users (id, username, email, role, is_active) VALUES ($1, $2, $3, $4, TRUE) " +
		"ON CONFLICT (username) DO NOTHING"

	onTimeSQL = "(t.due_date IS NOT NULL AND t.completed_at IS NOT NULL AND t.completed_at <= t.due_date + INTERVAL '24 hours')"
)

//nolint:gochecknoglobals // static lookup tables
var (
	columns = map[query.Field]string{
		query.FieldActive:       "t.is_active",
		query.FieldAssignedTo:   "t.assigned_to",
		query.FieldStatus:       "t.status",
		query.FieldType:         "t.task_type",
		query.FieldPriority:     "t.priority",
		query.FieldDueDate:      "t.due_date",
		query.FieldNextDueDate:  "t.next_due_date",
		query.FieldCompletedAt:  "t.completed_at",
		query.FieldCreatedAt:    "t.created_at",
		query.FieldRelevantDate: "COALESCE(t.next_due_date, t.due_date)",
	}

	groupExpressions = map[query.GroupKey]string{
		query.GroupStatus:         "t.status",
		query.GroupType:           "t.task_type",
		query.GroupPriority:       "t.priority",
		query.GroupCompletedMonth: "to_char(t.completed_at AT TIME ZONE 'UTC', 'YYYY-MM')",
		query.GroupRelevantMonth:  "to_char(COALESCE(t.next_due_date, t.due_date) AT TIME ZONE 'UTC', 'YYYY-MM')",
	}
)

// sqlBuilder renders predicates into WHERE clauses with positional arguments.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(value any) string {
	b.args = append(b.args, value)
	return "$" + strconv.Itoa(len(b.args))
}

// where renders every condition of pred joined by AND.
func (b *sqlBuilder) where(pred query.Predicate) (string, error) {
	conds := pred.Conditions()
	if len(conds) == 0 {
		return "TRUE", nil
	}

	parts := make([]string, 0, len(conds))
	for _, cond := range conds {
		part, err := b.condition(cond)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}

	return strings.Join(parts, " AND "), nil
}

func (b *sqlBuilder) condition(cond query.Condition) (string, error) {
	switch cond.Kind {
	case query.KindOnTime:
		return onTimeSQL, nil
	case query.KindAnyOf:
		if len(cond.Branches) == 0 {
			return "FALSE", nil
		}
		branches := make([]string, 0, len(cond.Branches))
		for _, branch := range cond.Branches {
			clause, err := b.where(branch)
			if err != nil {
				return "", err
			}
			branches = append(branches, "("+clause+")")
		}
		return "(" + strings.Join(branches, " OR ") + ")", nil
	}

	column, ok := columns[cond.Field]
	if !ok {
		return "", fmt.Errorf("%w: field %q", ErrUnsupportedCondition, cond.Field)
	}

	switch cond.Kind {
	case query.KindEquals:
		return column + " = " + b.arg(cond.Value), nil
	case query.KindIn:
		return column + " = ANY(" + b.arg(cond.Values) + ")", nil
	case query.KindBetween:
		return "(" + column + " >= " + b.arg(cond.Range.Start) + " AND " + column + " <= " + b.arg(cond.Range.End) + ")", nil
	case query.KindNotNull:
		return column + " IS NOT NULL", nil
	default:
		return "", fmt.Errorf("%w: kind %d", ErrUnsupportedCondition, cond.Kind)
	}
}
