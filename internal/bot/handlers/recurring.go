package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/format"
	"github.com/hray3182/SpendWise/internal/models"
	"github.com/hray3182/SpendWise/internal/report"
	"github.com/hray3182/SpendWise/internal/repository"
	"github.com/hray3182/SpendWise/internal/rrule"
)

const recurringUsage = "Usage:\n" +
	"/recurring add <daily|weekly|monthly|yearly[:N]> <income|expense> <amount> [category] <description> [start YYYY-MM-DD]\n" +
	"/recurring list\n" +
	"/recurring delete <id>"

func (h *Handlers) handleRecurring(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if h.deps.Rules == nil {
		h.sendMessage(msg.Chat.ID, "Recurring transactions are not available.")
		return
	}
	if len(args) == 0 {
		h.handleRecurringList(ctx, msg)
		return
	}
	switch strings.ToLower(args[0]) {
	case "add":
		h.handleRecurringAdd(ctx, msg, args[1:])
	case "list":
		h.handleRecurringList(ctx, msg)
	case "delete", "del", "remove":
		h.handleRecurringDelete(ctx, msg, args[1:])
	default:
		h.sendMessage(msg.Chat.ID, recurringUsage)
	}
}

func (h *Handlers) handleRecurringAdd(ctx context.Context, msg *tgbotapi.Message, args []string) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	if len(args) < 4 {
		h.sendMessage(msg.Chat.ID, recurringUsage)
		return
	}
	ruleStr, err := rrule.FromShorthand(args[0])
	if err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}
	t, err := models.ParseTransactionType(args[1])
	if err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}
	categories := store.Snapshot().Categories
	e, err := parseEntry(args[2:], categories.For(t))
	if err != nil {
		if errors.Is(err, errUsage) {
			h.sendMessage(msg.Chat.ID, recurringUsage)
		} else {
			h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		}
		return
	}
	suggested := true
	if e.Category == "" {
		e.Category, suggested = h.suggestCategory(ctx, t, e.Description, categories)
	}

	loc := h.settings(ctx, msg.From.ID).Location()
	start := h.today(ctx, msg.From.ID)
	if e.Date != "" {
		start, _ = time.ParseInLocation(models.DateLayout, e.Date, loc)
	}
	draft := models.Draft{
		Type:        t,
		Amount:      e.Amount,
		Description: e.Description,
		Category:    e.Category,
		Date:        start.Format(models.DateLayout),
	}
	if err := draft.Validate(); err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}

	first, err := rrule.FirstOccurrence(ruleStr, start, loc)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}
	if first == nil {
		h.sendMessage(msg.Chat.ID, "❌ That schedule never repeats.")
		return
	}

	draft.Date = ""
	rule := &models.RecurringRule{
		UserID:         msg.From.ID,
		Draft:          draft,
		RecurrenceRule: ruleStr,
		DTStart:        start,
		NextRunAt:      first,
		Active:         true,
	}
	if err := h.deps.Rules.Create(ctx, rule); err != nil {
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to create recurring rule")
		h.sendMessage(msg.Chat.ID, "Failed to save the recurring transaction.")
		return
	}
	log.Info().Int64("user_id", msg.From.ID).Int("rule_id", rule.RuleID).Str("rrule", ruleStr).Msg("recurring rule created")
	if h.deps.Scheduler != nil {
		h.deps.Scheduler.Notify()
	}

	var b format.Builder
	b.Header("🔁 Recurring transaction saved")
	writeRule(&b, rule, loc)
	if !suggested {
		writeFallbackNotice(&b, rule.Draft.Category)
	}
	h.reply(msg.Chat.ID, b.Message())
}

// upcomingRuns is how many runs after the next one a rule listing shows.
const upcomingRuns = 2

func writeRule(b *format.Builder, rule *models.RecurringRule, loc *time.Location) {
	b.Text("#").Code(strconv.Itoa(rule.RuleID)).Text(" ")
	b.Text(typeIcon(rule.Draft.Type) + " ").Bold(report.FormatFloat(rule.Draft.Amount))
	b.Textf(" · %s · %s", rule.Draft.Category, rule.Draft.Description).Newline()
	b.Text("   " + rrule.HumanReadable(rule.RecurrenceRule))
	if rule.Active && rule.NextRunAt != nil {
		b.Text(", next ").Text(rule.NextRunAt.In(loc).Format(models.DateLayout))
		later, err := rrule.NextOccurrences(rule.RecurrenceRule, rule.DTStart, *rule.NextRunAt, upcomingRuns, loc)
		if err != nil {
			log.Warn().Err(err).Int("rule_id", rule.RuleID).Msg("failed to expand recurrence rule")
		}
		for i, t := range later {
			sep := ", "
			if i == 0 {
				sep = ", then "
			}
			b.Text(sep + t.In(loc).Format(models.DateLayout))
		}
	} else {
		b.Italic(", ended")
	}
	b.Newline()
}

func (h *Handlers) handleRecurringList(ctx context.Context, msg *tgbotapi.Message) {
	rules, err := h.deps.Rules.GetByUserID(ctx, msg.From.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to list recurring rules")
		h.sendMessage(msg.Chat.ID, "Failed to load recurring transactions.")
		return
	}
	if len(rules) == 0 {
		h.sendMessage(msg.Chat.ID, "No recurring transactions. Add one with /recurring add.")
		return
	}
	loc := h.settings(ctx, msg.From.ID).Location()

	var b format.Builder
	b.Header("🔁 Recurring transactions")
	for _, rule := range rules {
		writeRule(&b, rule, loc)
	}
	b.Newline().Italic("Remove one with /recurring delete <id>.")
	h.reply(msg.Chat.ID, b.Message())
}

func (h *Handlers) handleRecurringDelete(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) != 1 {
		h.sendMessage(msg.Chat.ID, "Usage: /recurring delete <id>")
		return
	}
	id, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Usage: /recurring delete <id>")
		return
	}
	if err := h.deps.Rules.Delete(ctx, id, msg.From.ID); err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			h.sendMessage(msg.Chat.ID, "❌ No recurring transaction with that id.")
			return
		}
		log.Error().Err(err).Int64("user_id", msg.From.ID).Int("rule_id", id).Msg("failed to delete recurring rule")
		h.sendMessage(msg.Chat.ID, "Failed to delete the recurring transaction.")
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🗑 Recurring transaction #%d deleted. Transactions already recorded stay.", id))
}
