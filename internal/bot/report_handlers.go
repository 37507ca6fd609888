package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/query"
	"github.com/UnknownOlympus/taskpulse/internal/report"
	"gopkg.in/telebot.v4"
)

// Report periods offered by /report, used as inline button identifiers.
const (
	periodCurrentMonth = "report_period_current_month"
	periodLastMonth    = "report_period_last_month"
	periodLast7Days    = "report_period_last_7_days"
	periodAllTime      = "report_period_all_time"
)

var errUnsupportedPeriod = errors.New("unsupported period")

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// reportHandler offers the report periods as inline buttons.
func (b *Bot) reportHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("report").Inc()

	menu := &telebot.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.Data(b.t(ctx, "report.period.current_month"), periodCurrentMonth)),
		menu.Row(menu.Data(b.t(ctx, "report.period.last_month"), periodLastMonth)),
		menu.Row(menu.Data(b.t(ctx, "report.period.last_7_days"), periodLast7Days)),
		menu.Row(menu.Data(b.t(ctx, "report.period.all_time"), periodAllTime)),
	)

	return b.send(ctx, "text", b.t(ctx, "report.choose"), menu)
}

// generateReportHandler builds the XLSX dashboard of the linked user for the
// period picked in the inline menu and sends it as a document.
func (b *Bot) generateReportHandler(ctx telebot.Context) error {
	_ = ctx.Respond(&telebot.CallbackResponse{Text: b.t(ctx, "report.generating")})

	user, ok := userFrom(ctx)
	if !ok {
		return b.send(ctx, "error", b.t(ctx, "auth.denied"))
	}

	period := ctx.Callback().Unique
	b.log.Info("User requested report", "user", ctx.Sender().ID, "period", period)

	dateRange, err := parseReportPeriod(period, b.now())
	if err != nil {
		return b.send(ctx, "error", b.t(ctx, "report.unsupported_period"))
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	startTime := time.Now()
	scope := scopeFor(user, dateRange)
	counts, err := b.dashboard.ComputeCounts(timeoutCtx, scope)
	if err != nil {
		b.log.Error("Failed to compute counts for report", "user", user.ID, "error", err)
		return b.send(ctx, "error", b.t(ctx, "error.internal"))
	}
	analytics, err := b.dashboard.ComputeAnalytics(timeoutCtx, scope)
	if err != nil {
		b.log.Error("Failed to compute analytics for report", "user", user.ID, "error", err)
		return b.send(ctx, "error", b.t(ctx, "error.internal"))
	}

	generatedAt := b.now()
	buffer, err := report.GenerateExcelReport(report.Dashboard{
		Title:       "Task dashboard: " + user.Username,
		GeneratedAt: generatedAt,
		Counts:      counts,
		Analytics:   analytics,
	})
	if errors.Is(err, report.ErrEmptyReport) {
		return b.send(ctx, "text", b.t(ctx, "report.empty"))
	}
	if err != nil {
		b.log.Error("Failed to generate report", "user", user.ID, "error", err)
		return b.send(ctx, "error", b.t(ctx, "error.internal"))
	}
	b.metrics.ReportGeneration.WithLabelValues("bot").Observe(time.Since(startTime).Seconds())

	document := &telebot.Document{
		File:     telebot.FromReader(buffer),
		FileName: fmt.Sprintf("dashboard_%s_%s.xlsx", user.Username, generatedAt.Format("2006-01-02")),
		MIME:     xlsxMIME,
		Caption:  b.t(ctx, "report.caption"),
	}
	return b.send(ctx, "document", document)
}

// parseReportPeriod turns a period button into a date range. All time has no range.
func parseReportPeriod(period string, now time.Time) (*query.Range, error) {
	now = now.UTC()
	switch period {
	case periodCurrentMonth:
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return &query.Range{Start: from, End: from.AddDate(0, 1, 0).Add(-time.Nanosecond)}, nil
	case periodLastMonth:
		from := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
		return &query.Range{Start: from, End: from.AddDate(0, 1, 0).Add(-time.Nanosecond)}, nil
	case periodLast7Days:
		return &query.Range{Start: now.AddDate(0, 0, -7), End: now}, nil
	case periodAllTime:
		return nil, nil
	default:
		return nil, errUnsupportedPeriod
	}
}
