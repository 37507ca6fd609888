package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/repository"
	"gopkg.in/telebot.v4"
)

// startHandler process command /start.
func (b *Bot) startHandler(ctx telebot.Context) error {
	b.log.Info("User started the bot", "id", ctx.Sender().ID, "username", ctx.Sender().Username)
	b.metrics.CommandReceived.WithLabelValues("start").Inc()

	name := ctx.Sender().FirstName
	if name == "" {
		name = ctx.Sender().Username
	}

	return b.send(ctx, "text", b.tWithData(ctx, "welcome", map[string]any{"name": name}))
}

// linkHandler binds the sender's Telegram account to the active user with
// the email given in the command argument. Admin users can only be linked
// from the Telegram accounts of the admin allow-list.
func (b *Bot) linkHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("link").Inc()
	userID := ctx.Sender().ID

	args := ctx.Args()
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return b.send(ctx, "text", b.t(ctx, "link.usage"))
	}
	email := strings.TrimSpace(args[0])

	timeoutCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	b.log.Debug("User is trying to link account", "user", userID, "email", email)
	startTime := time.Now()
	err := b.links.LinkTelegramIDByEmail(timeoutCtx, userID, email)
	b.metrics.DBQueryDuration.WithLabelValues("link_telegram").Observe(time.Since(startTime).Seconds())
	if err != nil {
		if key, known := linkErrorKey(err); known {
			b.log.Info("Link refused", "user", userID, "email", email, "reason", err)
			return b.send(ctx, "error", b.t(ctx, key))
		}
		b.log.Error("Failed to link telegram id with user", "user", userID, "error", err)
		return b.send(ctx, "error", b.t(ctx, "error.internal"))
	}
	b.cache.Delete(timeoutCtx, userID)

	user, err := b.links.GetLinkedUser(timeoutCtx, userID)
	if err != nil {
		b.log.Error("Failed to read the new link", "user", userID, "error", err)
		return b.send(ctx, "error", b.t(ctx, "error.internal"))
	}

	if !b.mayActAs(userID, user) {
		b.log.Warn("Refused admin link from a Telegram account outside the allow-list", "user", userID, "email", email)
		if err = b.links.DeleteLink(timeoutCtx, userID); err != nil {
			b.log.Error("Failed to undo admin link", "user", userID, "error", err)
			return b.send(ctx, "error", b.t(ctx, "error.internal"))
		}
		return b.send(ctx, "error", b.t(ctx, "link.admin_forbidden"))
	}

	b.log.Info("User successfully linked", "user", userID, "username", user.Username)
	return b.send(ctx, "text", b.tWithData(ctx, "link.success", map[string]any{"username": user.Username}))
}

// linkErrorKey maps the refusals of the link store to message keys.
func linkErrorKey(err error) (string, bool) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return "link.not_found", true
	case errors.Is(err, repository.ErrUserAlreadyLinked):
		return "link.already_linked", true
	case errors.Is(err, repository.ErrIDExists):
		return "link.id_exists", true
	default:
		return "", false
	}
}

// logoutHandler removes the link of the sender and its cache entry.
func (b *Bot) logoutHandler(ctx telebot.Context) error {
	b.metrics.CommandReceived.WithLabelValues("logout").Inc()
	userID := ctx.Sender().ID

	timeoutCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	startTime := time.Now()
	err := b.links.DeleteLink(timeoutCtx, userID)
	b.metrics.DBQueryDuration.WithLabelValues("delete_link").Observe(time.Since(startTime).Seconds())
	b.cache.Delete(timeoutCtx, userID)

	switch {
	case errors.Is(err, repository.ErrNotLinked):
		return b.send(ctx, "text", b.t(ctx, "logout.not_linked"))
	case err != nil:
		b.log.Error("Failed to delete telegram link", "user", userID, "error", err)
		return b.send(ctx, "error", b.t(ctx, "error.internal"))
	}

	b.log.Info("User logged out", "user", userID)
	return b.send(ctx, "text", b.t(ctx, "logout.success"))
}
