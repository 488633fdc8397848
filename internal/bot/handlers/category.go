package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/format"
	"github.com/hray3182/SpendWise/internal/ledger"
	"github.com/hray3182/SpendWise/internal/models"
)

func (h *Handlers) handleCategories(ctx context.Context, msg *tgbotapi.Message) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	categories := store.Snapshot().Categories

	var b format.Builder
	b.Header("🏷 Categories")
	for _, t := range []models.TransactionType{models.TransactionTypeIncome, models.TransactionTypeExpense} {
		b.Bold(typeLabel(t)).Newline()
		for _, name := range categories.For(t) {
			b.Text("• " + name)
			if !models.IsDefaultCategory(t, name) && name != models.FallbackCategory {
				b.Italic(" (custom)")
			}
			b.Newline()
		}
		b.Newline()
	}
	b.Italic("Manage them with /addcat, /renamecat and /delcat.")
	h.reply(msg.Chat.ID, b.Message())
}

// categoryArgs splits "<type> <name...>".
func categoryArgs(args []string) (models.TransactionType, []string, error) {
	if len(args) < 2 {
		return "", nil, errUsage
	}
	t, err := models.ParseTransactionType(args[0])
	if err != nil {
		return "", nil, err
	}
	return t, args[1:], nil
}

func (h *Handlers) categoryError(msg *tgbotapi.Message, err error) {
	switch {
	case errors.Is(err, ledger.ErrProtectedCategory):
		h.sendMessage(msg.Chat.ID, "❌ Built-in categories cannot be changed.")
	case errors.Is(err, ledger.ErrUnknownCategory):
		h.sendMessage(msg.Chat.ID, "❌ No such category. See /categories.")
	case errors.Is(err, ledger.ErrInvalidCategory):
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
	default:
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("category change failed")
		h.sendMessage(msg.Chat.ID, "Failed to change categories.")
	}
}

func (h *Handlers) handleAddCategory(ctx context.Context, msg *tgbotapi.Message, args []string) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	t, rest, err := categoryArgs(args)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Usage: /addcat <income|expense> <name>")
		return
	}
	name := strings.Join(rest, " ")
	added, err := store.AddCategory(t, name)
	if err != nil {
		h.categoryError(msg, err)
		return
	}
	if !added {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("%q is already a %s category.", name, t))
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Added %s category %q.", t, name))
}

func (h *Handlers) handleRenameCategory(ctx context.Context, msg *tgbotapi.Message, args []string) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	t, rest, err := categoryArgs(args)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Usage: /renamecat <income|expense> <old name> => <new name>")
		return
	}
	oldName, newName, err := parseRename(rest)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Usage: /renamecat <income|expense> <old name> => <new name>")
		return
	}
	if name, n := matchCategory(strings.Fields(oldName), store.Snapshot().Categories.For(t)); n == len(strings.Fields(oldName)) {
		oldName = name
	}
	if err := store.UpdateCategory(t, oldName, newName); err != nil {
		h.categoryError(msg, err)
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Renamed %q to %q. Its transactions were updated.", oldName, newName))
}

func (h *Handlers) handleDeleteCategory(ctx context.Context, msg *tgbotapi.Message, args []string) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	t, rest, err := categoryArgs(args)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Usage: /delcat <income|expense> <name>")
		return
	}
	name := strings.Join(rest, " ")
	if match, n := matchCategory(rest, store.Snapshot().Categories.For(t)); n == len(rest) {
		name = match
	}
	if err := store.DeleteCategory(t, name); err != nil {
		h.categoryError(msg, err)
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🗑 Deleted %q. Its transactions moved to %q.", name, models.FallbackCategory))
}
