package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/analytics"
	"github.com/UnknownOlympus/taskpulse/internal/i18n"
	"github.com/UnknownOlympus/taskpulse/internal/metrics"
	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
	"github.com/UnknownOlympus/taskpulse/internal/repository"
	"github.com/UnknownOlympus/taskpulse/internal/repository/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v4"
)

// fakeContext records what handlers send. Methods the handlers never call
// are left to the embedded nil interface.
type fakeContext struct {
	telebot.Context
	sender   *telebot.User
	args     []string
	callback *telebot.Callback
	values   map[string]any
	sent     []any
	opts     [][]any
	responds []*telebot.CallbackResponse
}

func newContext(id int64, args ...string) *fakeContext {
	return &fakeContext{
		sender: &telebot.User{ID: id, FirstName: "Alice", Username: "alice_tg"},
		args:   args,
		values: make(map[string]any),
	}
}

func (f *fakeContext) Sender() *telebot.User       { return f.sender }
func (f *fakeContext) Args() []string              { return f.args }
func (f *fakeContext) Callback() *telebot.Callback { return f.callback }
func (f *fakeContext) Get(key string) any          { return f.values[key] }
func (f *fakeContext) Set(key string, val any)     { f.values[key] = val }

func (f *fakeContext) Send(what any, opts ...any) error {
	f.sent = append(f.sent, what)
	f.opts = append(f.opts, opts)
	return nil
}

func (f *fakeContext) Respond(resp ...*telebot.CallbackResponse) error {
	f.responds = append(f.responds, resp...)
	return nil
}

func (f *fakeContext) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sent)
	text, ok := f.sent[len(f.sent)-1].(string)
	require.True(t, ok, "last message is not text")
	return text
}

// mapCache is an in-process userCache.
type mapCache struct {
	users   map[int64]models.User
	deletes int
}

func newMapCache() *mapCache { return &mapCache{users: make(map[int64]models.User)} }

func (c *mapCache) Get(_ context.Context, telegramID int64) (models.User, bool) {
	user, ok := c.users[telegramID]
	return user, ok
}

func (c *mapCache) Set(_ context.Context, telegramID int64, user models.User) {
	c.users[telegramID] = user
}

func (c *mapCache) Delete(_ context.Context, telegramID int64) {
	c.deletes++
	delete(c.users, telegramID)
}

type failingDashboard struct{}

func (failingDashboard) ComputeAnalytics(context.Context, query.Scope) (models.AnalyticsReport, error) {
	return models.AnalyticsReport{}, errors.New("store down")
}

func (failingDashboard) ComputeCounts(context.Context, query.Scope) (models.CountReport, error) {
	return models.CountReport{}, errors.New("store down")
}

func now() time.Time { return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC) }

func ptr(ts time.Time) *time.Time { return &ts }

// adminTelegramID is the only Telegram account allowed to act as an admin.
const adminTelegramID = 500

func newTestBot(t *testing.T) (*Bot, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	store.AddUsers(
		models.User{ID: "admin", Username: "Admin", Email: "admin@x.io", Role: models.RoleAdmin, IsActive: true},
		models.User{ID: "u1", Username: "alice", Email: "alice@x.io", Role: models.RoleEmployee, IsActive: true},
		models.User{ID: "u2", Username: "bob", Email: "bob@x.io", Role: models.RoleEmployee, IsActive: false},
	)
	store.AddTasks(
		models.Task{
			ID: "t1", Title: "Report", AssignedTo: "u1", AssignedBy: "admin",
			Type: models.TypeOneTime, Status: models.StatusCompleted, Priority: models.PriorityHigh,
			DueDate: ptr(now().AddDate(0, 0, -3)), CompletedAt: ptr(now().AddDate(0, 0, -3)),
			CreatedAt: now().AddDate(0, 0, -10), IsActive: true,
		},
		models.Task{
			ID: "t2", Title: "Backups", AssignedTo: "u1", AssignedBy: "admin",
			Type: models.TypeDaily, Status: models.StatusPending, Priority: models.PriorityNormal,
			DueDate: ptr(now().AddDate(0, 0, 1)), CreatedAt: now().AddDate(0, 0, -5), IsActive: true,
		},
	)

	localizer, err := i18n.NewLocalizer()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agg := analytics.New(logger, store, store, nil, analytics.WithClock(now))
	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())

	bot := newBot(logger, store, agg, nil, []int64{adminTelegramID}, appMetrics, localizer)
	bot.now = now
	return bot, store
}

func TestStartHandler(t *testing.T) {
	t.Parallel()
	bot, _ := newTestBot(t)

	ctx := newContext(100)
	require.NoError(t, bot.startHandler(ctx))

	assert.True(t, strings.HasPrefix(ctx.lastText(t), "👋 Hi, Alice!"))
	assert.InDelta(t, 1, testutil.ToFloat64(bot.metrics.CommandReceived.WithLabelValues("start")), 0)
}

func TestLinkHandler(t *testing.T) {
	t.Parallel()
	bot, store := newTestBot(t)

	tests := []struct {
		name string
		ctx  *fakeContext
		want string
	}{
		{"missing email", newContext(100), "link.usage"},
		{"unknown user", newContext(100, "carol@x.io"), "link.not_found"},
		{"username is not an email", newContext(100, "alice"), "link.not_found"},
		{"inactive user", newContext(100, "bob@x.io"), "link.not_found"},
		{"linked", newContext(100, "alice@x.io"), "link.success"},
		{"id already linked", newContext(100, "admin@x.io"), "link.id_exists"},
		{"user already linked", newContext(200, "alice@x.io"), "link.already_linked"},
	}

	// cases depend on each other and run in order
	for _, tt := range tests {
		require.NoError(t, bot.linkHandler(tt.ctx), tt.name)
		want := bot.localizer.GetWithData("en", tt.want, map[string]any{"username": "alice"})
		assert.Equal(t, want, tt.ctx.lastText(t), tt.name)
	}

	user, err := store.GetLinkedUser(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestLinkHandler_AdminOutsideAllowList(t *testing.T) {
	t.Parallel()
	bot, store := newTestBot(t)
	teamTitle := bot.localizer.Get("en", "stats.team_title")

	stranger := newContext(999, "admin@x.io")
	require.NoError(t, bot.linkHandler(stranger))
	assert.Equal(t, bot.localizer.Get("en", "link.admin_forbidden"), stranger.lastText(t))

	_, err := store.GetLinkedUser(context.Background(), 999)
	require.ErrorIs(t, err, repository.ErrNotLinked)

	stats := newContext(999)
	require.NoError(t, bot.AuthMiddleware(bot.statsHandler)(stats))
	assert.Equal(t, bot.localizer.Get("en", "auth.denied"), stats.lastText(t))
	assert.NotContains(t, stats.lastText(t), teamTitle)

	allowed := newContext(adminTelegramID, "admin@x.io")
	require.NoError(t, bot.linkHandler(allowed))
	want := bot.localizer.GetWithData("en", "link.success", map[string]any{"username": "Admin"})
	assert.Equal(t, want, allowed.lastText(t))

	stats = newContext(adminTelegramID)
	require.NoError(t, bot.AuthMiddleware(bot.statsHandler)(stats))
	assert.True(t, strings.HasPrefix(stats.lastText(t), teamTitle))
}

func TestLogoutHandler(t *testing.T) {
	t.Parallel()
	bot, store := newTestBot(t)
	require.NoError(t, store.LinkTelegramIDByEmail(context.Background(), 100, "alice@x.io"))

	ctx := newContext(100)
	require.NoError(t, bot.logoutHandler(ctx))
	assert.Equal(t, bot.localizer.Get("en", "logout.success"), ctx.lastText(t))

	_, err := store.GetLinkedUser(context.Background(), 100)
	require.ErrorIs(t, err, repository.ErrNotLinked)

	ctx = newContext(100)
	require.NoError(t, bot.logoutHandler(ctx))
	assert.Equal(t, bot.localizer.Get("en", "logout.not_linked"), ctx.lastText(t))
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()
	bot, store := newTestBot(t)
	require.NoError(t, store.LinkTelegramIDByEmail(context.Background(), 100, "alice@x.io"))

	var seen models.User
	next := func(ctx telebot.Context) error {
		seen, _ = userFrom(ctx)
		return nil
	}

	t.Run("not linked", func(t *testing.T) {
		ctx := newContext(999)
		require.NoError(t, bot.AuthMiddleware(next)(ctx))
		assert.Equal(t, bot.localizer.Get("en", "auth.denied"), ctx.lastText(t))
		assert.Empty(t, seen.ID)
	})

	t.Run("not linked callback gets an alert", func(t *testing.T) {
		ctx := newContext(999)
		ctx.callback = &telebot.Callback{Unique: periodAllTime}
		require.NoError(t, bot.AuthMiddleware(next)(ctx))
		require.Len(t, ctx.responds, 1)
		assert.True(t, ctx.responds[0].ShowAlert)
		assert.Empty(t, ctx.sent)
	})

	t.Run("linked", func(t *testing.T) {
		ctx := newContext(100)
		require.NoError(t, bot.AuthMiddleware(next)(ctx))
		assert.Equal(t, "alice", seen.Username)
		assert.Empty(t, ctx.sent)
	})
}

func TestAuthMiddleware_AdminOutsideAllowList(t *testing.T) {
	t.Parallel()
	bot, store := newTestBot(t)
	// a link created outside the bot still needs an allowed Telegram account
	require.NoError(t, store.LinkTelegramIDByEmail(context.Background(), 999, "admin@x.io"))

	called := false
	next := func(telebot.Context) error {
		called = true
		return nil
	}

	ctx := newContext(999)
	require.NoError(t, bot.AuthMiddleware(next)(ctx))
	assert.False(t, called)
	assert.Equal(t, bot.localizer.Get("en", "auth.denied"), ctx.lastText(t))
}

func TestAuthMiddleware_CachedAdminIsRechecked(t *testing.T) {
	t.Parallel()
	bot, store := newTestBot(t)
	cache := newMapCache()
	bot.cache = cache
	require.NoError(t, store.LinkTelegramIDByEmail(context.Background(), adminTelegramID, "admin@x.io"))

	calls := 0
	next := func(telebot.Context) error {
		calls++
		return nil
	}

	require.NoError(t, bot.AuthMiddleware(next)(newContext(adminTelegramID)))
	require.Equal(t, 1, calls)
	require.Contains(t, cache.users, int64(adminTelegramID))

	store.AddUsers(models.User{ID: "admin", Username: "Admin", Email: "admin@x.io", Role: models.RoleAdmin, IsActive: false})

	ctx := newContext(adminTelegramID)
	require.NoError(t, bot.AuthMiddleware(next)(ctx))
	assert.Equal(t, 1, calls)
	assert.Equal(t, bot.localizer.Get("en", "auth.denied"), ctx.lastText(t))
	assert.NotContains(t, cache.users, int64(adminTelegramID))
	assert.Equal(t, 1, cache.deletes)
}

func TestAuthMiddleware_CachedEmployee(t *testing.T) {
	t.Parallel()
	bot, _ := newTestBot(t)
	cache := newMapCache()
	bot.cache = cache
	// served from the cache without a link in the store
	cache.users[300] = models.User{ID: "u1", Username: "alice", Role: models.RoleEmployee}

	var seen models.User
	next := func(ctx telebot.Context) error {
		seen, _ = userFrom(ctx)
		return nil
	}

	require.NoError(t, bot.AuthMiddleware(next)(newContext(300)))
	assert.Equal(t, "u1", seen.ID)
	assert.Zero(t, cache.deletes)
}

func TestStatsHandler(t *testing.T) {
	t.Parallel()
	bot, _ := newTestBot(t)

	ctx := newContext(100)
	ctx.Set(linkedUserKey, models.User{ID: "u1", Username: "alice", Role: models.RoleEmployee})
	require.NoError(t, bot.statsHandler(ctx))

	text := ctx.lastText(t)
	assert.Contains(t, text, "*Task stats for alice*")
	assert.Contains(t, text, " • Total: 2\n")
	assert.Contains(t, text, " • Pending: 1\n")
	assert.Contains(t, text, " • One-time: 1 / 0 / 1\n")
	assert.Contains(t, text, " • Daily: 1 / 1 / 0\n")
	assert.Equal(t, []any{telebot.ModeMarkdown}, ctx.opts[0])
}

func TestStatsHandler_StoreFailure(t *testing.T) {
	t.Parallel()
	bot, _ := newTestBot(t)
	bot.dashboard = failingDashboard{}

	ctx := newContext(100)
	ctx.Set(linkedUserKey, models.User{ID: "u1", Username: "alice"})
	require.NoError(t, bot.statsHandler(ctx))

	assert.Equal(t, bot.localizer.Get("en", "error.internal"), ctx.lastText(t))
	assert.InDelta(t, 1, testutil.ToFloat64(bot.metrics.SentMessages.WithLabelValues("error")), 0)
}

func TestReportHandler(t *testing.T) {
	t.Parallel()
	bot, _ := newTestBot(t)

	ctx := newContext(100)
	require.NoError(t, bot.reportHandler(ctx))

	assert.Equal(t, bot.localizer.Get("en", "report.choose"), ctx.lastText(t))
	require.Len(t, ctx.opts[0], 1)
	menu, ok := ctx.opts[0][0].(*telebot.ReplyMarkup)
	require.True(t, ok)
	assert.Len(t, menu.InlineKeyboard, 4)
}

func TestGenerateReportHandler(t *testing.T) {
	t.Parallel()
	bot, _ := newTestBot(t)

	t.Run("document", func(t *testing.T) {
		ctx := newContext(100)
		ctx.callback = &telebot.Callback{Unique: periodAllTime}
		ctx.Set(linkedUserKey, models.User{ID: "admin", Username: "Admin", Role: models.RoleAdmin})
		require.NoError(t, bot.generateReportHandler(ctx))

		require.Len(t, ctx.sent, 1)
		document, ok := ctx.sent[0].(*telebot.Document)
		require.True(t, ok)
		assert.Equal(t, "dashboard_Admin_2024-03-15.xlsx", document.FileName)
		assert.Equal(t, xlsxMIME, document.MIME)
		assert.Len(t, ctx.responds, 1)
	})

	t.Run("empty", func(t *testing.T) {
		ctx := newContext(100)
		ctx.callback = &telebot.Callback{Unique: periodLastMonth}
		ctx.Set(linkedUserKey, models.User{ID: "u2", Username: "bob", Role: models.RoleEmployee})
		require.NoError(t, bot.generateReportHandler(ctx))

		assert.Equal(t, bot.localizer.Get("en", "report.empty"), ctx.lastText(t))
	})

	t.Run("unsupported period", func(t *testing.T) {
		ctx := newContext(100)
		ctx.callback = &telebot.Callback{Unique: "report_period_forever"}
		ctx.Set(linkedUserKey, models.User{ID: "u1", Username: "alice"})
		require.NoError(t, bot.generateReportHandler(ctx))

		assert.Equal(t, bot.localizer.Get("en", "report.unsupported_period"), ctx.lastText(t))
	})
}

func TestParseReportPeriod(t *testing.T) {
	t.Parallel()

	at := func(month time.Month, day int) time.Time { return time.Date(2024, month, day, 0, 0, 0, 0, time.UTC) }
	endOf := func(month time.Month) time.Time { return at(month+1, 1).Add(-time.Nanosecond) }

	tests := []struct {
		period string
		want   *query.Range
	}{
		{periodCurrentMonth, &query.Range{Start: at(time.March, 1), End: endOf(time.March)}},
		{periodLastMonth, &query.Range{Start: at(time.February, 1), End: endOf(time.February)}},
		{periodLast7Days, &query.Range{Start: now().AddDate(0, 0, -7), End: now()}},
		{periodAllTime, nil},
	}
	for _, tt := range tests {
		got, err := parseReportPeriod(tt.period, now())
		require.NoError(t, err, tt.period)
		assert.Equal(t, tt.want, got, tt.period)
	}

	_, err := parseReportPeriod("report_period_forever", now())
	require.ErrorIs(t, err, errUnsupportedPeriod)
}

func TestFormatStats_AdminAndEscaping(t *testing.T) {
	t.Parallel()

	localizer, err := i18n.NewLocalizer()
	require.NoError(t, err)

	counts := models.CountReport{TotalTasks: 5, RecurringTasks: 3, RecurringPending: 2, RecurringCompleted: 1}

	team := formatStats(localizer, "uk", models.User{Username: "Admin", Role: models.RoleAdmin}, counts)
	assert.True(t, strings.HasPrefix(team, "📊 *Статистика задач команди*"))
	assert.Contains(t, team, " • Повторювані: 3 / 2 / 1\n")

	user := formatStats(localizer, "en", models.User{Username: "john_doe"}, counts)
	assert.Contains(t, user, `john\_doe`)
}

func TestFormatStats_GroupsLargeNumbers(t *testing.T) {
	t.Parallel()

	localizer, err := i18n.NewLocalizer()
	require.NoError(t, err)

	counts := models.CountReport{TotalTasks: 12345, DailyTasks: 1500, DailyPending: 1000, DailyCompleted: 500}

	text := formatStats(localizer, "en", models.User{Username: "alice"}, counts)
	assert.Contains(t, text, " • Total: 12,345\n")
	assert.Contains(t, text, " • Daily: 1,500 / 1,000 / 500\n")

	text = formatStats(localizer, "uk", models.User{Username: "alice"}, counts)
	assert.NotContains(t, text, "12,345")
	assert.Contains(t, text, localizer.FormatNumber("uk", 12345))
}

func TestLinkErrorKey(t *testing.T) {
	t.Parallel()

	key, known := linkErrorKey(errors.Join(errors.New("wrapped"), repository.ErrIDExists))
	assert.True(t, known)
	assert.Equal(t, "link.id_exists", key)

	_, known = linkErrorKey(errors.New("connection reset"))
	assert.False(t, known)
}
