package models

import "time"

// GroupCount is the number of tasks sharing one value of a grouping key.
// The JSON shape mirrors the document-store aggregation the dashboard was
// built against.
type GroupCount struct {
	Key   string `json:"_id"`
	Count int    `json:"count"`
}

// MonthKey identifies a calendar month.
type MonthKey struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// TrendPoint is the number of tasks that fell into one calendar month.
type TrendPoint struct {
	Period MonthKey `json:"_id"`
	Count  int      `json:"count"`
}

// ActivityType classifies an entry of the recent activity feed.
type ActivityType string

const (
	ActivityAssigned  ActivityType = "assigned"
	ActivityCompleted ActivityType = "completed"
	ActivityOverdue   ActivityType = "overdue"
)

// Activity is one event of the recent activity feed.
type Activity struct {
	TaskID     string       `json:"_id"`
	Title      string       `json:"title"`
	TaskType   TaskType     `json:"taskType"`
	Type       ActivityType `json:"type"`
	Username   string       `json:"username,omitempty"`
	AssignedBy string       `json:"assignedBy,omitempty"`
	Date       time.Time    `json:"date"`
	Status     TaskStatus   `json:"-"`
}

// TeamMember holds the per-user performance row shown to admins.
type TeamMember struct {
	UserID               string  `json:"userId"`
	Username             string  `json:"username"`
	TotalTasks           int     `json:"totalTasks"`
	CompletedTasks       int     `json:"completedTasks"`
	PendingTasks         int     `json:"pendingTasks"`
	OneTimeTasks         int     `json:"oneTimeTasks"`
	OneTimePending       int     `json:"oneTimePending"`
	OneTimeCompleted     int     `json:"oneTimeCompleted"`
	OneTimeOnTimeRate    float64 `json:"oneTimeOnTimeRate"`
	DailyTasks           int     `json:"dailyTasks"`
	DailyPending         int     `json:"dailyPending"`
	DailyCompleted       int     `json:"dailyCompleted"`
	WeeklyTasks          int     `json:"weeklyTasks"`
	WeeklyPending        int     `json:"weeklyPending"`
	WeeklyCompleted      int     `json:"weeklyCompleted"`
	MonthlyTasks         int     `json:"monthlyTasks"`
	MonthlyPending       int     `json:"monthlyPending"`
	MonthlyCompleted     int     `json:"monthlyCompleted"`
	YearlyTasks          int     `json:"yearlyTasks"`
	YearlyPending        int     `json:"yearlyPending"`
	YearlyCompleted      int     `json:"yearlyCompleted"`
	RecurringTasks       int     `json:"recurringTasks"`
	RecurringPending     int     `json:"recurringPending"`
	RecurringCompleted   int     `json:"recurringCompleted"`
	RecurringOnTimeRate  float64 `json:"recurringOnTimeRate"`
	CompletionRate       float64 `json:"completionRate"`
	OnTimeRate           float64 `json:"onTimeRate"`
	OnTimeCompletedTasks int     `json:"onTimeCompletedTasks"`
}

// DistributionEntry is the share of one task type in the active task set.
type DistributionEntry struct {
	Type       string `json:"type"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// PerformanceMetrics aggregates completion quality over the whole scope.
type PerformanceMetrics struct {
	OnTimeCompletion      int                 `json:"onTimeCompletion"`
	AverageCompletionTime int                 `json:"averageCompletionTime"`
	TaskDistribution      []DistributionEntry `json:"taskDistribution"`
	OneTimeOnTimeRate     float64             `json:"oneTimeOnTimeRate"`
	RecurringOnTimeRate   float64             `json:"recurringOnTimeRate"`
}

// AnalyticsReport is the payload of the dashboard analytics endpoint.
type AnalyticsReport struct {
	StatusStats        []GroupCount       `json:"statusStats"`
	TypeStats          []GroupCount       `json:"typeStats"`
	PriorityStats      []GroupCount       `json:"priorityStats"`
	CompletionTrend    []TrendPoint       `json:"completionTrend"`
	PlannedTrend       []TrendPoint       `json:"plannedTrend"`
	TeamPerformance    []TeamMember       `json:"teamPerformance"`
	RecentActivity     []Activity         `json:"recentActivity"`
	PerformanceMetrics PerformanceMetrics `json:"performanceMetrics"`
}

// CountReport is the payload of the dashboard counts endpoint.
type CountReport struct {
	TotalTasks         int `json:"totalTasks"`
	PendingTasks       int `json:"pendingTasks"`
	CompletedTasks     int `json:"completedTasks"`
	OverdueTasks       int `json:"overdueTasks"`
	OneTimeTasks       int `json:"oneTimeTasks"`
	OneTimePending     int `json:"oneTimePending"`
	OneTimeCompleted   int `json:"oneTimeCompleted"`
	RecurringTasks     int `json:"recurringTasks"`
	RecurringPending   int `json:"recurringPending"`
	RecurringCompleted int `json:"recurringCompleted"`
	DailyTasks         int `json:"dailyTasks"`
	DailyPending       int `json:"dailyPending"`
	DailyCompleted     int `json:"dailyCompleted"`
	WeeklyTasks        int `json:"weeklyTasks"`
	WeeklyPending      int `json:"weeklyPending"`
	WeeklyCompleted    int `json:"weeklyCompleted"`
	MonthlyTasks       int `json:"monthlyTasks"`
	MonthlyPending     int `json:"monthlyPending"`
	MonthlyCompleted   int `json:"monthlyCompleted"`
	YearlyTasks        int `json:"yearlyTasks"`
	YearlyPending      int `json:"yearlyPending"`
	YearlyCompleted    int `json:"yearlyCompleted"`
}
