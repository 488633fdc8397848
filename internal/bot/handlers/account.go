package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/format"
	"github.com/hray3182/SpendWise/internal/ledger"
)

func displayName(from *tgbotapi.User, args []string) string {
	if name := strings.TrimSpace(strings.Join(args, " ")); name != "" {
		return name
	}
	if from.UserName != "" {
		return from.UserName
	}
	return strings.TrimSpace(from.FirstName + " " + from.LastName)
}

func (h *Handlers) handleLogin(ctx context.Context, msg *tgbotapi.Message, args []string) {
	user, err := h.deps.Auth.SignIn(ctx, msg.From.ID, displayName(msg.From, args))
	if err != nil {
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to sign in")
		h.sendMessage(msg.Chat.ID, "Sign in failed, please try again later.")
		return
	}

	store, ok := h.store(msg)
	if !ok {
		return
	}
	data := store.Snapshot()

	var b format.Builder
	b.Textf("✅ Signed in as %s.", user.UserName).Newline()
	b.Textf("%d transaction(s), %d income and %d expense categories.",
		len(data.Transactions), len(data.Categories.Income), len(data.Categories.Expense)).Newline()
	if store.State() == ledger.ReadyWithDefaults {
		b.Newline()
		b.Bold("⚠️ Your saved data could not be loaded.").Newline()
		b.Text("You are working with the default categories. Changes are kept only until you sign out.")
	}
	h.reply(msg.Chat.ID, b.Message())
}

func (h *Handlers) handleLogout(ctx context.Context, msg *tgbotapi.Message) {
	h.pending.take(msg.From.ID)
	if !h.deps.Auth.SignOut(msg.From.ID) {
		h.sendMessage(msg.Chat.ID, "You are not signed in.")
		return
	}
	h.sendMessage(msg.Chat.ID, "👋 Signed out. Your data stays saved for your next /login.")
}
