package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/ai"
	"github.com/hray3182/SpendWise/internal/format"
	"github.com/hray3182/SpendWise/internal/models"
	"github.com/hray3182/SpendWise/internal/report"
)

const (
	confirmationTimeout = 5 * time.Minute
	maxSearchResults    = 30
)

// pendingDraft is a parsed transaction waiting for the user's confirmation.
type pendingDraft struct {
	Draft     models.Draft
	ExpiresAt time.Time
}

// pendingConfirmations holds at most one draft per user.
type pendingConfirmations struct {
	mu     sync.Mutex
	drafts map[int64]pendingDraft
}

func newPendingConfirmations() *pendingConfirmations {
	return &pendingConfirmations{drafts: make(map[int64]pendingDraft)}
}

func (p *pendingConfirmations) put(userID int64, d pendingDraft) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drafts[userID] = d
}

// take removes and returns the user's draft.
func (p *pendingConfirmations) take(userID int64) (pendingDraft, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.drafts[userID]
	delete(p.drafts, userID)
	return d, ok
}

func (h *Handlers) handleAIMessage(ctx context.Context, msg *tgbotapi.Message) {
	if h.deps.AI == nil {
		h.sendMessage(msg.Chat.ID, "I only understand commands. Use /help to see them.")
		return
	}
	store, ok := h.store(msg)
	if !ok {
		return
	}
	h.debug("free text", map[string]any{"user_id": msg.From.ID, "text": msg.Text})

	settings := h.settings(ctx, msg.From.ID)
	out, err := h.deps.AI.ParseTransactionText(ctx, ai.ParseInput{Text: msg.Text, Locale: settings.Locale})
	if err == nil {
		out, err = ai.ValidateParse(out)
	}
	if err != nil {
		log.Warn().Err(err).Int64("user_id", msg.From.ID).Msg("could not parse transaction text")
		h.sendMessage(msg.Chat.ID, "🤔 I couldn't read a transaction from that. Try something like \"spent 250 on lunch\", or use /expense.")
		return
	}

	categories := store.Snapshot().Categories
	now := h.localNow(ctx, msg.From.ID)
	category, suggested := h.suggestCategory(ctx, out.Type, out.Description, categories)
	draft := models.Draft{
		Type:        out.Type,
		Amount:      out.Amount,
		Description: out.Description,
		Category:    category,
		Date:        now.Format(models.DateLayout),
	}
	if err := draft.Validate(); err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}
	h.pending.put(msg.From.ID, pendingDraft{Draft: draft, ExpiresAt: h.now().Add(confirmationTimeout)})

	var b format.Builder
	b.Header(fmt.Sprintf("%s Record this %s?", typeIcon(draft.Type), draft.Type))
	writeTransactionDetails(&b, draft.WithID(""))
	if !suggested {
		writeFallbackNotice(&b, draft.Category)
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Save", fmt.Sprintf("tx:confirm:%d", msg.From.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", fmt.Sprintf("tx:cancel:%d", msg.From.ID)),
		),
	)
	h.replyWithKeyboard(msg.Chat.ID, b.Message(), keyboard)
}

func (h *Handlers) handleDraftCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, action string, userID int64) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	pending, ok := h.pending.take(userID)
	if action != "confirm" {
		h.editMessage(chatID, messageID, format.Plain("Cancelled."))
		return
	}
	if !ok || h.now().After(pending.ExpiresAt) {
		h.editMessage(chatID, messageID, format.Plain("⌛ This suggestion expired. Send the text again."))
		return
	}
	store, err := h.deps.Sessions.Get(userID)
	if err != nil {
		h.editMessage(chatID, messageID, format.Plain("Please /login first."))
		return
	}

	draft := pending.Draft
	categories := store.Snapshot().Categories
	if !categories.Contains(draft.Type, draft.Category) {
		draft.Category = fallbackCategory(draft.Type, categories)
	}
	tx := store.AddTransaction(draft)
	log.Info().Int64("user_id", userID).Str("tx_id", tx.ID).Msg("transaction added from text")

	var b format.Builder
	b.Header(fmt.Sprintf("✅ %s recorded", typeLabel(tx.Type)))
	writeTransactionDetails(&b, tx)
	h.editMessage(chatID, messageID, b.Message())
}

func (h *Handlers) handleSearch(ctx context.Context, msg *tgbotapi.Message) {
	if h.deps.AI == nil {
		h.sendMessage(msg.Chat.ID, "Search is not available. Use /report to filter transactions.")
		return
	}
	store, ok := h.store(msg)
	if !ok {
		return
	}
	query := strings.TrimSpace(msg.CommandArguments())
	if query == "" {
		h.sendMessage(msg.Chat.ID, "Usage: /search <question>\nExample: /search food last week over 100")
		return
	}
	txs := store.Snapshot().Transactions
	if len(txs) == 0 {
		h.sendMessage(msg.Chat.ID, "No transactions yet.")
		return
	}

	out, err := h.deps.AI.QueryTransactions(ctx, ai.QueryInput{Query: query, Transactions: txs})
	if err != nil {
		if errors.Is(err, ai.ErrNoOutput) {
			h.sendMessage(msg.Chat.ID, "🤔 I couldn't answer that, try rephrasing.")
			return
		}
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("transaction query failed")
		h.sendMessage(msg.Chat.ID, "Search failed, please try again later.")
		return
	}

	ids := ai.FilterKnownIDs(out.MatchingIDs, txs)
	byID := make(map[string]models.Transaction, len(txs))
	for _, tx := range txs {
		byID[tx.ID] = tx
	}
	matches := make([]models.Transaction, 0, len(ids))
	for _, id := range ids {
		matches = append(matches, byID[id])
	}

	var b format.Builder
	b.Header("🔎 " + query)
	if len(matches) == 0 {
		b.Italic("No matching transactions.")
		h.reply(msg.Chat.ID, b.Message())
		return
	}
	writeTotals(&b, report.Summarize(matches))
	b.Newline()
	shown := report.Recent(matches, maxSearchResults)
	for _, tx := range shown {
		writeTransaction(&b, tx)
	}
	if rest := len(matches) - len(shown); rest > 0 {
		b.Newline().Italic(fmt.Sprintf("…and %d more.", rest))
	}
	h.reply(msg.Chat.ID, b.Message())
}
