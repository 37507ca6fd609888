package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/xuri/excelize/v2"
)

var ErrEmptyReport = errors.New("failed to generate report, there are no tasks to export")

const (
	sheetSummary      = "Summary"
	sheetTeam         = "Team"
	sheetTrends       = "Trends"
	sheetDistribution = "Distribution"
)

// Dashboard is the data exported into one workbook.
type Dashboard struct {
	Title       string                 // Shown in the first summary row
	GeneratedAt time.Time              // Timestamp of the export
	Counts      models.CountReport     // Raw task counts of the scope
	Analytics   models.AnalyticsReport // Analytics of the same scope
}

func (d Dashboard) empty() bool {
	if d.Counts.TotalTasks > 0 || len(d.Analytics.TeamPerformance) > 0 {
		return false
	}
	for i := range d.Analytics.CompletionTrend {
		if d.Analytics.CompletionTrend[i].Count > 0 {
			return false
		}
	}
	for i := range d.Analytics.PlannedTrend {
		if d.Analytics.PlannedTrend[i].Count > 0 {
			return false
		}
	}
	return true
}

// Generator holds the state for the Excel report generation process.
type Generator struct {
	file *excelize.File
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		file: excelize.NewFile(),
	}
}

// GenerateExcelReport renders the dashboard into a workbook with a summary,
// team, trends and distribution sheet. It returns ErrEmptyReport when the
// scope holds no task at all.
func GenerateExcelReport(dashboard Dashboard) (*bytes.Buffer, error) {
	var err error

	if dashboard.empty() {
		return nil, ErrEmptyReport
	}

	gen := NewGenerator()
	defer gen.file.Close()

	sheets := []struct {
		name    string
		headers []string
		widths  []float64
		rows    [][]any
	}{
		{sheetSummary, []string{"Metric", "Value"}, []float64{36, 24}, summaryRows(dashboard)},
		{sheetTeam, teamHeaders, nil, teamRows(dashboard.Analytics.TeamPerformance)},
		{sheetTrends, []string{"Month", "Completed", "Planned"}, []float64{14, 14, 14}, trendRows(dashboard.Analytics)},
		{
			sheetDistribution,
			[]string{"Task Type", "Count", "Percentage"},
			[]float64{18, 12, 14},
			distributionRows(dashboard.Analytics.PerformanceMetrics.TaskDistribution),
		},
	}

	for _, sheet := range sheets {
		if err = gen.addSheet(sheet.name, sheet.headers, sheet.widths, sheet.rows); err != nil {
			return nil, fmt.Errorf("failed to add sheet '%s': %w", sheet.name, err)
		}
	}

	// setup first sheet as active
	gen.file.SetActiveSheet(0)

	// delete default sheet
	if sheetIndex, _ := gen.file.GetSheetIndex("Sheet1"); sheetIndex != -1 {
		if err = gen.file.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to delete default sheet 'Sheet1': %w", err)
		}
	}

	buffer, err := gen.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write data from saved file: %w", err)
	}

	return buffer, nil
}

// addSheet creates a sheet with a styled header row followed by rows.
// Columns without an explicit width get 16.
func (g *Generator) addSheet(name string, headers []string, widths []float64, rows [][]any) error {
	var err error
	sheetName := truncateSheetName(name)

	if _, err = g.file.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to generate new sheet: %w", err)
	}

	if err = g.setupSheet(sheetName, headers, widths, len(rows)); err != nil {
		return fmt.Errorf("failed to setup sheet: %w", err)
	}

	headerIndex := 2
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+headerIndex) // the first row is the header
		if err = g.file.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to add row '%d': %w", i+headerIndex, err)
		}
	}

	return nil
}

// setupSheet writes and styles the header row, sets column widths and,
// when the sheet has data, wraps it into a table.
func (g *Generator) setupSheet(sheetName string, headers []string, widths []float64, rowCount int) error {
	var err error

	headerStyle, err := g.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center", Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create new style: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return fmt.Errorf("failed to resolve last column: %w", err)
	}

	rowHeight := 20
	if err = g.file.SetRowHeight(sheetName, 1, float64(rowHeight)); err != nil {
		return fmt.Errorf("failed to set row height for headers: %w", err)
	}
	if err = g.file.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to set sheet row for headers: %w", err)
	}
	if err = g.file.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set cell style for headers: %w", err)
	}

	defaultWidth := 16.0
	for i := range headers {
		width := defaultWidth
		if i < len(widths) {
			width = widths[i]
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err = g.file.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if rowCount == 0 {
		return nil
	}

	if err = g.file.AddTable(sheetName, &excelize.Table{
		Range:     fmt.Sprintf("A1:%s%d", lastCol, rowCount+1),
		Name:      "table_" + strings.ReplaceAll(sheetName, " ", ""),
		StyleName: "TableStyleMedium9",
	}); err != nil {
		return fmt.Errorf("failed to add table: %w", err)
	}

	return nil
}

func summaryRows(d Dashboard) [][]any {
	counts := d.Counts
	perf := d.Analytics.PerformanceMetrics

	return [][]any{
		{"Report", d.Title},
		{"Generated At", d.GeneratedAt.Format("02.01.2006 15:04")},
		{"Total Tasks", counts.TotalTasks},
		{"Pending Tasks", counts.PendingTasks},
		{"Completed Tasks", counts.CompletedTasks},
		{"Overdue Tasks", counts.OverdueTasks},
		{"One-Time Tasks", counts.OneTimeTasks},
		{"One-Time Pending", counts.OneTimePending},
		{"One-Time Completed", counts.OneTimeCompleted},
		{"Recurring Tasks", counts.RecurringTasks},
		{"Recurring Pending", counts.RecurringPending},
		{"Recurring Completed", counts.RecurringCompleted},
		{"Daily Tasks", counts.DailyTasks},
		{"Weekly Tasks", counts.WeeklyTasks},
		{"Monthly Tasks", counts.MonthlyTasks},
		{"Yearly Tasks", counts.YearlyTasks},
		{"On-Time Completion, %", perf.OnTimeCompletion},
		{"One-Time On-Time Rate, %", perf.OneTimeOnTimeRate},
		{"Recurring On-Time Rate, %", perf.RecurringOnTimeRate},
		{"Average Completion Time, days", perf.AverageCompletionTime},
	}
}

var teamHeaders = []string{ //nolint:gochecknoglobals // fixed layout
	"Username", "Total", "Completed", "Pending", "Completion Rate, %", "On-Time Rate, %", "On-Time Completed",
	"One-Time", "One-Time On-Time, %", "Recurring", "Recurring On-Time, %",
	"Daily", "Weekly", "Monthly", "Yearly",
}

func teamRows(team []models.TeamMember) [][]any {
	rows := make([][]any, 0, len(team))
	for _, member := range team {
		rows = append(rows, []any{
			member.Username,
			member.TotalTasks,
			member.CompletedTasks,
			member.PendingTasks,
			member.CompletionRate,
			member.OnTimeRate,
			member.OnTimeCompletedTasks,
			member.OneTimeTasks,
			member.OneTimeOnTimeRate,
			member.RecurringTasks,
			member.RecurringOnTimeRate,
			member.DailyTasks,
			member.WeeklyTasks,
			member.MonthlyTasks,
			member.YearlyTasks,
		})
	}
	return rows
}

func trendRows(analytics models.AnalyticsReport) [][]any {
	planned := make(map[models.MonthKey]int, len(analytics.PlannedTrend))
	for _, point := range analytics.PlannedTrend {
		planned[point.Period] = point.Count
	}

	rows := make([][]any, 0, len(analytics.CompletionTrend))
	for _, point := range analytics.CompletionTrend {
		rows = append(rows, []any{
			fmt.Sprintf("%02d.%d", point.Period.Month, point.Period.Year),
			point.Count,
			planned[point.Period],
		})
	}
	return rows
}

func distributionRows(entries []models.DistributionEntry) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []any{entry.Type, entry.Count, entry.Percentage})
	}
	return rows
}

// truncateSheetName truncates the given sheet name to a maximum of 31 runes.
// If the name exceeds 31 runes, it returns the first 31 runes of the name.
// Otherwise, it returns the name as is.
func truncateSheetName(name string) string {
	if utf8.RuneCountInString(name) > 31 {
		runes := []rune(name)
		return string(runes[:31])
	}
	return name
}
