package api

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/query"
)

const dateOnly = "2006-01-02"

var (
	// ErrInvalidDate is returned when startDate or endDate cannot be parsed.
	ErrInvalidDate = errors.New("invalid date, expected RFC 3339 or YYYY-MM-DD")
	// ErrMissingUser is returned when a non-admin request carries no userId.
	ErrMissingUser = errors.New("userId is required for non-admin requests")
	// ErrInvertedRange is returned when startDate lies after endDate.
	ErrInvertedRange = errors.New("startDate must not be after endDate")
)

// ParseScope reads the dashboard scope from the query string.
// The date range applies only when both bounds are present.
func ParseScope(values url.Values) (query.Scope, error) {
	scope := query.Scope{
		SubjectUserID: values.Get("userId"),
		IsAdmin:       values.Get("isAdmin") == "true",
	}

	if !scope.IsAdmin && scope.SubjectUserID == "" {
		return query.Scope{}, ErrMissingUser
	}

	rawStart, rawEnd := values.Get("startDate"), values.Get("endDate")
	if rawStart == "" || rawEnd == "" {
		return scope, nil
	}

	start, _, err := parseDate(rawStart)
	if err != nil {
		return query.Scope{}, fmt.Errorf("startDate: %w", err)
	}
	end, dateOnlyEnd, err := parseDate(rawEnd)
	if err != nil {
		return query.Scope{}, fmt.Errorf("endDate: %w", err)
	}
	if dateOnlyEnd {
		// a bare end date covers the whole day
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if start.After(end) {
		return query.Scope{}, ErrInvertedRange
	}

	scope.DateRange = &query.Range{Start: start, End: end}
	return scope, nil
}

// parseDate accepts RFC 3339 timestamps and bare dates, reporting which one it saw.
func parseDate(raw string) (time.Time, bool, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), false, nil
	}
	ts, err := time.Parse(dateOnly, raw)
	if err != nil {
		return time.Time{}, false, ErrInvalidDate
	}
	return ts, true, nil
}
