package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/ai"
	"github.com/hray3182/SpendWise/internal/format"
	"github.com/hray3182/SpendWise/internal/ledger"
	"github.com/hray3182/SpendWise/internal/models"
	"github.com/hray3182/SpendWise/internal/report"
)

const (
	defaultListSize = 10
	maxListSize     = 50

	// suggestionThreshold is the confidence below which an expense
	// category suggestion is replaced by the fallback.
	suggestionThreshold = 0.5
)

func typeLabel(t models.TransactionType) string {
	if t == models.TransactionTypeIncome {
		return "Income"
	}
	return "Expense"
}

func typeIcon(t models.TransactionType) string {
	if t == models.TransactionTypeIncome {
		return "💰"
	}
	return "💸"
}

// writeTransaction appends one summary line for tx.
func writeTransaction(b *format.Builder, tx models.Transaction) {
	b.Text(typeIcon(tx.Type) + " ").Code(shortID(tx.ID)).Text(" ")
	b.Bold(report.FormatFloat(tx.Amount))
	b.Textf(" · %s · %s · %s", tx.Date, tx.Category, tx.Description).Newline()
}

func writeTransactionDetails(b *format.Builder, tx models.Transaction) {
	b.Field("Type", typeLabel(tx.Type))
	b.Field("Amount", report.FormatFloat(tx.Amount))
	b.Field("Category", tx.Category)
	b.Field("Description", tx.Description)
	b.Field("Date", tx.Date)
	if tx.ID != "" {
		b.Text("ID: ").Code(shortID(tx.ID)).Newline()
	}
}

// fallbackCategory is used when no category is given and none can be
// suggested.
func fallbackCategory(t models.TransactionType, categories models.Categories) string {
	names := categories.For(t)
	if t == models.TransactionTypeExpense {
		for _, name := range names {
			if name == models.FallbackCategory {
				return name
			}
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return models.FallbackCategory
}

// suggestCategory asks the advisor for a category of t matching description.
// It reports false when the advisor was asked but its answer was unusable
// and the fallback was used instead.
func (h *Handlers) suggestCategory(ctx context.Context, t models.TransactionType, description string, categories models.Categories) (string, bool) {
	names := categories.For(t)
	fallback := fallbackCategory(t, categories)
	if h.deps.AI == nil || len(names) == 0 {
		return fallback, true
	}
	in := ai.SuggestInput{Description: description, Categories: names}

	var suggested string
	if t == models.TransactionTypeExpense {
		s, err := h.deps.AI.SuggestExpenseCategory(ctx, in)
		if err != nil {
			log.Warn().Err(err).Msg("expense category suggestion failed")
			return fallback, false
		}
		if !s.Confident(suggestionThreshold) {
			log.Debug().Str("suggested", s.Category).Float64("confidence", s.Confidence).Msg("discarding unsure category suggestion")
			return fallback, false
		}
		suggested = s.Category
	} else {
		out, err := h.deps.AI.SuggestCategory(ctx, in)
		if err != nil {
			log.Warn().Err(err).Msg("category suggestion failed")
			return fallback, false
		}
		suggested = out.Category
	}

	name, err := ai.ValidateSuggestion(suggested, names)
	if err != nil {
		log.Debug().Str("suggested", suggested).Msg("discarding unknown category suggestion")
		return fallback, false
	}
	return name, true
}

func writeFallbackNotice(b *format.Builder, category string) {
	b.Newline().Italic(fmt.Sprintf("⚠️ No category could be suggested, filed under %s. Change it with /edit.", category))
}

func (h *Handlers) handleEntry(ctx context.Context, msg *tgbotapi.Message, args []string, t models.TransactionType) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	categories := store.Snapshot().Categories

	e, err := parseEntry(args, categories.For(t))
	if err != nil {
		if errors.Is(err, errUsage) {
			h.sendMessage(msg.Chat.ID, fmt.Sprintf("Usage: /%s <amount> [category] <description> [YYYY-MM-DD]\nExample: /%s 250 Food Lunch", t, t))
		} else {
			h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		}
		return
	}
	suggested := true
	if e.Category == "" {
		e.Category, suggested = h.suggestCategory(ctx, t, e.Description, categories)
	}
	if e.Date == "" {
		e.Date = h.localNow(ctx, msg.From.ID).Format(models.DateLayout)
	}

	draft := models.Draft{
		Type:        t,
		Amount:      e.Amount,
		Description: e.Description,
		Category:    e.Category,
		Date:        e.Date,
	}
	if err := draft.Validate(); err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}
	tx := store.AddTransaction(draft)
	log.Info().Int64("user_id", msg.From.ID).Str("tx_id", tx.ID).Str("type", string(t)).Msg("transaction added")

	var b format.Builder
	b.Header(fmt.Sprintf("✅ %s recorded", typeLabel(t)))
	writeTransactionDetails(&b, tx)
	if !suggested {
		writeFallbackNotice(&b, tx.Category)
	}
	h.reply(msg.Chat.ID, b.Message())
}

func (h *Handlers) handleList(ctx context.Context, msg *tgbotapi.Message, args []string) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	n := defaultListSize
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			h.sendMessage(msg.Chat.ID, "Usage: /list [count]")
			return
		}
		n = min(v, maxListSize)
	}

	txs := store.Snapshot().Transactions
	if len(txs) == 0 {
		h.sendMessage(msg.Chat.ID, "No transactions yet. Add one with /expense or /income.")
		return
	}
	recent := report.Recent(txs, n)

	var b format.Builder
	b.Header(fmt.Sprintf("🧾 Latest %d of %d transactions", len(recent), len(txs)))
	for _, tx := range recent {
		writeTransaction(&b, tx)
	}
	b.Newline().Italic("Use the id with /edit or /delete.")
	h.reply(msg.Chat.ID, b.Message())
}

func (h *Handlers) idError(chatID int64, err error) {
	switch {
	case errors.Is(err, errUnknownID):
		h.sendMessage(chatID, "❌ No transaction with that id. Use /list to see ids.")
	case errors.Is(err, errAmbiguousID):
		h.sendMessage(chatID, "❌ That id matches several transactions, type more of it.")
	default:
		h.sendMessage(chatID, "❌ "+err.Error())
	}
}

func (h *Handlers) handleEdit(ctx context.Context, msg *tgbotapi.Message, args []string) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	if len(args) < 2 {
		h.sendMessage(msg.Chat.ID, "Usage: /edit <id> field=value ...\nFields: amount, category, description, date, type")
		return
	}
	data := store.Snapshot()
	tx, err := resolveID(args[0], data.Transactions)
	if err != nil {
		h.idError(msg.Chat.ID, err)
		return
	}
	fields, err := parseEdit(args[1:])
	if err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}
	updated, err := applyEdit(tx, fields, data.Categories)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}
	if err := store.UpdateTransaction(updated); err != nil {
		if errors.Is(err, ledger.ErrUnknownTransaction) {
			h.idError(msg.Chat.ID, errUnknownID)
			return
		}
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to update transaction")
		h.sendMessage(msg.Chat.ID, "Failed to update the transaction.")
		return
	}

	var b format.Builder
	b.Header("✏️ Transaction updated")
	writeTransactionDetails(&b, updated)
	h.reply(msg.Chat.ID, b.Message())
}

func (h *Handlers) handleDelete(ctx context.Context, msg *tgbotapi.Message, args []string) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	if len(args) != 1 {
		h.sendMessage(msg.Chat.ID, "Usage: /delete <id>")
		return
	}
	tx, err := resolveID(args[0], store.Snapshot().Transactions)
	if err != nil {
		h.idError(msg.Chat.ID, err)
		return
	}
	if !store.DeleteTransaction(tx.ID) {
		h.idError(msg.Chat.ID, errUnknownID)
		return
	}

	var b format.Builder
	b.Header("🗑 Transaction deleted")
	writeTransaction(&b, tx)
	h.reply(msg.Chat.ID, b.Message())
}

// today returns the user's current calendar day.
func (h *Handlers) today(ctx context.Context, userID int64) time.Time {
	now := h.localNow(ctx, userID)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
