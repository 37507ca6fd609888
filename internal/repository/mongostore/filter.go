package mongostore

import (
	"fmt"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
	"github.com/UnknownOlympus/taskpulse/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document field names of the tasks collection.
var fieldNames = map[query.Field]string{ //nolint:gochecknoglobals // lookup table
	query.FieldActive:      "isActive",
	query.FieldAssignedTo:  "assignedTo",
	query.FieldStatus:      "status",
	query.FieldType:        "taskType",
	query.FieldPriority:    "priority",
	query.FieldDueDate:     "dueDate",
	query.FieldNextDueDate: "nextDueDate",
	query.FieldCompletedAt: "completedAt",
	query.FieldCreatedAt:   "createdAt",
}

// relevantDate evaluates to nextDueDate, falling back to dueDate.
var relevantDate = bson.D{{Key: "$ifNull", Value: bson.A{"$nextDueDate", "$dueDate"}}} //nolint:gochecknoglobals // constant expression

// onTimeGraceMillis is models.OnTimeGrace as the millisecond offset $add expects.
var onTimeGraceMillis = models.OnTimeGrace.Milliseconds() //nolint:gochecknoglobals // derived constant

// Filter translates a predicate into a find/$match filter.
func Filter(pred query.Predicate) (bson.D, error) {
	conds := pred.Conditions()
	if len(conds) == 0 {
		return bson.D{}, nil
	}

	clauses := make(bson.A, 0, len(conds))
	for _, cond := range conds {
		clause, err := condition(cond)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	return bson.D{{Key: "$and", Value: clauses}}, nil
}

func condition(cond query.Condition) (bson.D, error) {
	switch cond.Kind {
	case query.KindEquals:
		name, err := fieldName(cond.Field)
		if err != nil {
			return nil, err
		}
		value := cond.Value
		if cond.Field == query.FieldAssignedTo {
			if id, ok := cond.Value.(string); ok {
				value = idValue(id)
			}
		}
		return bson.D{{Key: name, Value: value}}, nil
	case query.KindIn:
		name, err := fieldName(cond.Field)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: name, Value: bson.D{{Key: "$in", Value: cond.Values}}}}, nil
	case query.KindBetween:
		if cond.Field == query.FieldRelevantDate {
			return bson.D{{Key: "$expr", Value: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "$gte", Value: bson.A{relevantDate, cond.Range.Start}}},
				bson.D{{Key: "$lte", Value: bson.A{relevantDate, cond.Range.End}}},
			}}}}}, nil
		}
		name, err := fieldName(cond.Field)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: name, Value: bson.D{
			{Key: "$gte", Value: cond.Range.Start},
			{Key: "$lte", Value: cond.Range.End},
		}}}, nil
	case query.KindNotNull:
		name, err := fieldName(cond.Field)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: name, Value: bson.D{{Key: "$ne", Value: nil}}}}, nil
	case query.KindOnTime:
		return bson.D{
			{Key: "dueDate", Value: bson.D{{Key: "$ne", Value: nil}}},
			{Key: "completedAt", Value: bson.D{{Key: "$ne", Value: nil}}},
			{Key: "$expr", Value: bson.D{{Key: "$lte", Value: bson.A{
				"$completedAt",
				bson.D{{Key: "$add", Value: bson.A{"$dueDate", onTimeGraceMillis}}},
			}}}},
		}, nil
	case query.KindAnyOf:
		if len(cond.Branches) == 0 {
			return bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}}, nil
		}
		branches := make(bson.A, 0, len(cond.Branches))
		for _, branch := range cond.Branches {
			filter, err := Filter(branch)
			if err != nil {
				return nil, err
			}
			branches = append(branches, filter)
		}
		return bson.D{{Key: "$or", Value: branches}}, nil
	default:
		return nil, fmt.Errorf("%w: kind %d", repository.ErrUnsupportedCondition, cond.Kind)
	}
}

func fieldName(field query.Field) (string, error) {
	name, ok := fieldNames[field]
	if !ok {
		return "", fmt.Errorf("%w: field %q", repository.ErrUnsupportedCondition, field)
	}
	return name, nil
}

// groupExpression returns the $group _id expression of a group key.
func groupExpression(key query.GroupKey) (any, error) {
	switch key {
	case query.GroupStatus:
		return "$status", nil
	case query.GroupType:
		return "$taskType", nil
	case query.GroupPriority:
		return "$priority", nil
	case query.GroupCompletedMonth:
		return monthOf("$completedAt"), nil
	case query.GroupRelevantMonth:
		return monthOf(relevantDate), nil
	default:
		return nil, fmt.Errorf("%w: %q", query.ErrUnknownGroupKey, key)
	}
}

func monthOf(date any) bson.D {
	return bson.D{{Key: "$dateToString", Value: bson.D{
		{Key: "format", Value: "%Y-%m"},
		{Key: "date", Value: date},
		{Key: "timezone", Value: "UTC"},
	}}}
}

// idValue stores identifiers that look like object ids as ObjectIDs and
// everything else as plain strings.
func idValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// idString is the inverse of idValue.
func idString(raw bson.RawValue) string {
	if oid, ok := raw.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if str, ok := raw.StringValueOK(); ok {
		return str
	}
	return raw.String()
}
