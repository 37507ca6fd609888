// Package bot is the Telegram surface of the dashboard: account linking,
// task stats and XLSX reports.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/i18n"
	"github.com/UnknownOlympus/taskpulse/internal/metrics"
	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
	"github.com/UnknownOlympus/taskpulse/internal/repository"
	"gopkg.in/telebot.v4"
)

const (
	requestTimeout = 3 * time.Second
	reportTimeout  = 30 * time.Second
)

// Dashboard computes the payloads the bot renders.
type Dashboard interface {
	ComputeAnalytics(ctx context.Context, scope query.Scope) (models.AnalyticsReport, error)
	ComputeCounts(ctx context.Context, scope query.Scope) (models.CountReport, error)
}

// userCache keeps linked users in front of the link store.
type userCache interface {
	Get(ctx context.Context, telegramID int64) (models.User, bool)
	Set(ctx context.Context, telegramID int64, user models.User)
	Delete(ctx context.Context, telegramID int64)
}

// Bot contains the bot API instance and other information.
type Bot struct {
	bot       *telebot.Bot
	log       *slog.Logger
	links     repository.LinkManager
	dashboard Dashboard
	cache     userCache
	adminIDs  map[int64]struct{}
	metrics   *metrics.Metrics
	localizer *i18n.Localizer
	now       func() time.Time
}

var (
	// inline buttons for report period.
	btnReportPeriodCurrent = telebot.InlineButton{Unique: periodCurrentMonth}
	btnReportPeriodLast    = telebot.InlineButton{Unique: periodLastMonth}
	btnReportPeriod7Days   = telebot.InlineButton{Unique: periodLast7Days}
	btnReportPeriodAll     = telebot.InlineButton{Unique: periodAllTime}
)

// NewBot creates a new bot with the given token. cache may be nil.
// Only the Telegram accounts in adminIDs may act as admin users.
func NewBot(
	log *slog.Logger,
	links repository.LinkManager,
	dashboard Dashboard,
	cache *LinkCache,
	adminIDs []int64,
	metrics *metrics.Metrics,
	token string,
	poller time.Duration,
) (*Bot, error) {
	api, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: poller},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	log.Info("Authorized on account", "account", api.Me.Username)

	localizer, err := i18n.NewLocalizer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize localizer: %w", err)
	}
	log.Debug("Localizer loaded", "languages", localizer.Languages())

	botInstance := newBot(log, links, dashboard, cache, adminIDs, metrics, localizer)
	botInstance.bot = api
	botInstance.registerRoutes()

	return botInstance, nil
}

func newBot(
	log *slog.Logger,
	links repository.LinkManager,
	dashboard Dashboard,
	cache userCache,
	adminIDs []int64,
	metrics *metrics.Metrics,
	localizer *i18n.Localizer,
) *Bot {
	if cache == nil {
		// a nil *LinkCache is a disabled cache
		cache = (*LinkCache)(nil)
	}

	allowed := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		allowed[id] = struct{}{}
	}

	return &Bot{
		log:       log.With("component", "bot"),
		links:     links,
		dashboard: dashboard,
		cache:     cache,
		adminIDs:  allowed,
		metrics:   metrics,
		localizer: localizer,
		now:       time.Now,
	}
}

// Start launches the bot to listen for updates.
func (b *Bot) Start() {
	b.log.Info("Telegram bot is starting...")
	b.bot.Start()
}

// Stop gracefully stops the Telegram bot and logs the action.
func (b *Bot) Stop() {
	b.log.Info("Telegram bot is stopped...")
	b.bot.Stop()
}

// registerRoutes configures all routes (commands).
func (b *Bot) registerRoutes() {
	// Public routes.
	b.bot.Handle("/start", b.startHandler)
	b.bot.Handle("/link", b.linkHandler)
	b.bot.Handle("/logout", b.logoutHandler)

	// Routes for linked users.
	linked := b.bot.Group()
	linked.Use(b.AuthMiddleware)
	linked.Handle("/stats", b.statsHandler)
	linked.Handle("/report", b.reportHandler)
	linked.Handle(&btnReportPeriodCurrent, b.generateReportHandler)
	linked.Handle(&btnReportPeriodLast, b.generateReportHandler)
	linked.Handle(&btnReportPeriod7Days, b.generateReportHandler)
	linked.Handle(&btnReportPeriodAll, b.generateReportHandler)
}

// lang picks the message language from the sender's Telegram settings.
func lang(ctx telebot.Context) string {
	return i18n.NormalizeLanguageCode(ctx.Sender().LanguageCode)
}

// t is a shorthand method for getting translations.
func (b *Bot) t(ctx telebot.Context, key string) string {
	return b.localizer.Get(lang(ctx), key)
}

// tWithData is a shorthand method for getting translations with placeholder data.
func (b *Bot) tWithData(ctx telebot.Context, key string, data map[string]any) string {
	return b.localizer.GetWithData(lang(ctx), key, data)
}

// send delivers what and counts it under kind.
func (b *Bot) send(ctx telebot.Context, kind string, what any, opts ...any) error {
	b.metrics.SentMessages.WithLabelValues(kind).Inc()
	return ctx.Send(what, opts...)
}

func scopeFor(user models.User, dateRange *query.Range) query.Scope {
	return query.Scope{SubjectUserID: user.ID, IsAdmin: user.IsAdmin(), DateRange: dateRange}
}
