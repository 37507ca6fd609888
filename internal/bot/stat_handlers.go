package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/UnknownOlympus/taskpulse/internal/i18n"
	"github.com/UnknownOlympus/taskpulse/internal/models"
	"gopkg.in/telebot.v4"
)

// statsHandler sends the task counts of the linked user. Admins get the
// counts of the whole team.
func (b *Bot) statsHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("stats").Inc()

	user, ok := userFrom(ctx)
	if !ok {
		return b.send(ctx, "error", b.t(ctx, "auth.denied"))
	}
	b.log.Info("User requested stats", "user", ctx.Sender().ID, "username", user.Username)

	timeoutCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	counts, err := b.dashboard.ComputeCounts(timeoutCtx, scopeFor(user, nil))
	if err != nil {
		b.log.Error("Failed to compute counts", "user", user.ID, "error", err)
		return b.send(ctx, "error", b.t(ctx, "error.internal"))
	}

	return b.send(ctx, "text", formatStats(b.localizer, lang(ctx), user, counts), telebot.ModeMarkdown)
}

// formatStats renders a count report as a Markdown message, numbers grouped
// the way the reader's language writes them.
func formatStats(localizer *i18n.Localizer, lang string, user models.User, counts models.CountReport) string {
	var builder strings.Builder

	if user.IsAdmin() {
		builder.WriteString(localizer.Get(lang, "stats.team_title"))
	} else {
		builder.WriteString(localizer.GetWithData(lang, "stats.title", map[string]any{"username": escapeMarkdown(user.Username)}))
	}
	builder.WriteString("\n\n")

	totals := []struct {
		key   string
		value int
	}{
		{"stats.total", counts.TotalTasks},
		{"stats.pending", counts.PendingTasks},
		{"stats.completed", counts.CompletedTasks},
		{"stats.overdue", counts.OverdueTasks},
	}
	for _, line := range totals {
		builder.WriteString(fmt.Sprintf(" • %s: %s\n", localizer.Get(lang, line.key), localizer.FormatNumber(lang, line.value)))
	}

	builder.WriteString("\n")
	builder.WriteString(localizer.Get(lang, "stats.by_type"))
	builder.WriteString("\n")

	types := []struct {
		key                       string
		total, pending, completed int
	}{
		{"stats.one_time", counts.OneTimeTasks, counts.OneTimePending, counts.OneTimeCompleted},
		{"stats.recurring", counts.RecurringTasks, counts.RecurringPending, counts.RecurringCompleted},
		{"stats.daily", counts.DailyTasks, counts.DailyPending, counts.DailyCompleted},
		{"stats.weekly", counts.WeeklyTasks, counts.WeeklyPending, counts.WeeklyCompleted},
		{"stats.monthly", counts.MonthlyTasks, counts.MonthlyPending, counts.MonthlyCompleted},
		{"stats.yearly", counts.YearlyTasks, counts.YearlyPending, counts.YearlyCompleted},
	}
	for _, line := range types {
		builder.WriteString(fmt.Sprintf(" • %s: %s / %s / %s\n",
			localizer.Get(lang, line.key),
			localizer.FormatNumber(lang, line.total),
			localizer.FormatNumber(lang, line.pending),
			localizer.FormatNumber(lang, line.completed),
		))
	}

	return builder.String()
}

// escapeMarkdown escapes the characters legacy Markdown treats as markup.
func escapeMarkdown(text string) string {
	return strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[").Replace(text)
}
