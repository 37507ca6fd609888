package bot

import (
	"context"
	"errors"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/repository"
	"gopkg.in/telebot.v4"
)

const linkedUserKey = "linked_user"

// AuthMiddleware check if Telegram ID is linked to an active user and stores
// that user in the context. Admin users are only accepted from the Telegram
// accounts of the admin allow-list.
func (b *Bot) AuthMiddleware(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(ctx telebot.Context) error {
		userID := ctx.Sender().ID

		timeoutCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		user, err := b.linkedUser(timeoutCtx, userID)
		if err == nil && !b.mayActAs(userID, user) {
			b.log.Warn("Admin access from a Telegram account outside the allow-list", "id", userID, "user", user.ID)
			err = repository.ErrNotLinked
		}
		if errors.Is(err, repository.ErrNotLinked) {
			b.log.Info("Access denied", "username", ctx.Sender().Username, "id", userID)
			if ctx.Callback() != nil {
				return ctx.Respond(&telebot.CallbackResponse{Text: b.t(ctx, "auth.denied"), ShowAlert: true})
			}
			return b.send(ctx, "error", b.t(ctx, "auth.denied"))
		}
		if err != nil {
			b.log.Error("Failed to resolve linked user", "id", userID, "error", err)
			return b.send(ctx, "error", b.t(ctx, "error.internal"))
		}

		ctx.Set(linkedUserKey, user)
		return next(ctx)
	}
}

// mayActAs reports whether the Telegram account may use the linked user.
func (b *Bot) mayActAs(telegramID int64, user models.User) bool {
	if user.Role != models.RoleAdmin {
		return true
	}
	_, ok := b.adminIDs[telegramID]
	return ok
}

// linkedUser returns the user linked to telegramID, asking the cache first.
// Cached admins are confirmed against the store so that a deactivated admin
// loses team scope without waiting for the cache entry to expire.
func (b *Bot) linkedUser(ctx context.Context, telegramID int64) (models.User, error) {
	cached, hit := b.cache.Get(ctx, telegramID)
	if hit && cached.Role != models.RoleAdmin {
		return cached, nil
	}

	startTime := time.Now()
	user, err := b.links.GetLinkedUser(ctx, telegramID)
	b.metrics.DBQueryDuration.WithLabelValues("get_linked_user").Observe(time.Since(startTime).Seconds())
	if err != nil {
		if hit && errors.Is(err, repository.ErrNotLinked) {
			b.cache.Delete(ctx, telegramID)
		}
		return models.User{}, err
	}

	b.cache.Set(ctx, telegramID, user)
	return user, nil
}

func userFrom(ctx telebot.Context) (models.User, bool) {
	user, ok := ctx.Get(linkedUserKey).(models.User)
	return user, ok
}
