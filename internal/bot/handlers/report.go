package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/format"
	"github.com/hray3182/SpendWise/internal/models"
	"github.com/hray3182/SpendWise/internal/report"
)

const (
	reportListSize = 20
	trendDays      = 30
)

func writeTotals(b *format.Builder, t report.Totals) {
	b.Field("Income", report.FormatAmount(t.Income))
	b.Field("Expense", report.FormatAmount(t.Expense))
	b.Field("Balance", report.FormatAmount(t.Balance))
}

func writeBreakdown(b *format.Builder, stats []report.CategoryStat) {
	for _, s := range stats {
		b.Textf("• %s: %s (%.1f%%)", s.Category, report.FormatAmount(s.Amount), s.Share).Newline()
	}
}

func (h *Handlers) handleSummary(ctx context.Context, msg *tgbotapi.Message) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	txs := store.Snapshot().Transactions
	now := h.localNow(ctx, msg.From.ID)

	var b format.Builder
	b.Header("📊 Balance")
	writeTotals(&b, report.Summarize(txs))
	b.Textf("%d transaction(s)", len(txs)).Newline()
	b.Newline()
	b.Bold(now.Format("January 2006")).Newline()
	writeTotals(&b, report.MonthlySummary(txs, now))
	if stats := report.ExpenseByCategory(txs, now); len(stats) > 0 {
		b.Newline().Bold("Spending by category").Newline()
		writeBreakdown(&b, stats)
	}
	h.reply(msg.Chat.ID, b.Message())
}

func (h *Handlers) handleMonth(ctx context.Context, msg *tgbotapi.Message, args []string) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	now := h.localNow(ctx, msg.From.ID)
	month := now.Format("2006-01")
	if len(args) > 0 {
		month = args[0]
	}
	from, to, err := report.MonthRange(month, now.Location())
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Usage: /month [YYYY-MM]")
		return
	}

	res := report.Apply(store.Snapshot().Transactions, report.Filter{From: &from, To: &to, Type: report.All, Category: report.All})

	var b format.Builder
	b.Header("🗓 " + from.Format("January 2006"))
	writeTotals(&b, res.Totals)
	b.Textf("%d transaction(s)", len(res.Transactions)).Newline()
	if stats := report.ByCategory(res.Transactions); len(stats) > 0 {
		b.Newline().Bold("Spending by category").Newline()
		writeBreakdown(&b, stats)
	}
	h.reply(msg.Chat.ID, b.Message())
}

func describeFilter(f report.Filter) string {
	var parts []string
	switch {
	case f.From != nil && f.To != nil:
		parts = append(parts, f.From.Format(models.DateLayout)+" to "+f.To.Format(models.DateLayout))
	case f.From != nil:
		parts = append(parts, "from "+f.From.Format(models.DateLayout))
	default:
		parts = append(parts, "all time")
	}
	if f.Type != report.All {
		parts = append(parts, f.Type)
	}
	if f.Category != report.All {
		parts = append(parts, f.Category)
	}
	return strings.Join(parts, " · ")
}

// reportFilter parses report arguments and replies with usage and the
// selectable years on failure.
func (h *Handlers) reportFilter(ctx context.Context, msg *tgbotapi.Message, args []string, data models.AppData, command string) (report.Filter, bool) {
	loc := h.settings(ctx, msg.From.ID).Location()
	f, err := parseReportArgs(args, data.Categories, loc)
	if err != nil {
		years := report.AvailableYears(data.Transactions, h.now().In(loc), report.EndYear)
		labels := make([]string, len(years))
		for i, y := range years {
			labels[i] = strconv.Itoa(y)
		}
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("❌ %v\nUsage: /%s [YYYY-MM | YYYY | from [to]] [income|expense] [category]\nYears: %s",
			err, command, strings.Join(labels, " ")))
		return f, false
	}
	return f, true
}

func (h *Handlers) handleReport(ctx context.Context, msg *tgbotapi.Message, args []string) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	data := store.Snapshot()
	f, ok := h.reportFilter(ctx, msg, args, data, "report")
	if !ok {
		return
	}
	res := report.Apply(data.Transactions, f)

	var b format.Builder
	b.Header("📑 Report")
	b.Italic(describeFilter(f)).Newline().Newline()
	writeTotals(&b, res.Totals)
	if len(res.Transactions) == 0 {
		b.Newline().Italic("No matching transactions.")
		h.reply(msg.Chat.ID, b.Message())
		return
	}
	b.Newline()
	shown := report.Recent(res.Transactions, reportListSize)
	for _, tx := range shown {
		writeTransaction(&b, tx)
	}
	if rest := len(res.Transactions) - len(shown); rest > 0 {
		b.Newline().Italic(fmt.Sprintf("…and %d more. Use /xlsx with the same filters for the full list.", rest))
	}
	h.reply(msg.Chat.ID, b.Message())
}

func (h *Handlers) handleChart(ctx context.Context, msg *tgbotapi.Message, args []string) {
	store, ok := h.store(msg)
	if !ok {
		return
	}
	data := store.Snapshot()
	now := h.localNow(ctx, msg.From.ID)

	kind := "trend"
	if len(args) > 0 {
		kind = strings.ToLower(args[0])
		args = args[1:]
	}

	var (
		png     []byte
		err     error
		caption string
	)
	switch kind {
	case "trend":
		png, err = h.deps.Charts.IncomeExpense(report.DailySeries(data.Transactions, now, trendDays))
		caption = fmt.Sprintf("Income and expenses, last %d days", trendDays)
	case "category", "categories":
		png, err = h.deps.Charts.ExpenseByCategory(report.ExpenseByCategory(data.Transactions, now))
		caption = "Expenses by category, " + now.Format("January 2006")
	case "spending":
		f, ok := h.reportFilter(ctx, msg, args, data, "chart spending")
		if !ok {
			return
		}
		png, err = h.deps.Charts.Spending(report.Apply(data.Transactions, f))
		caption = "Spending, " + describeFilter(f)
	default:
		h.sendMessage(msg.Chat.ID, "Usage: /chart [trend|category|spending [report filters]]")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", msg.From.ID).Str("chart", kind).Msg("failed to render chart")
		h.sendMessage(msg.Chat.ID, "Failed to draw the chart.")
		return
	}
	if png == nil {
		h.sendMessage(msg.Chat.ID, "Not enough data for this chart yet.")
		return
	}
	h.sendPhoto(msg.Chat.ID, fmt.Sprintf("%s-%s.png", kind, now.Format(models.DateLayout)), png, caption)
}

// reportRange returns the bounds used to name an XLSX file.
func reportRange(f report.Filter, now time.Time) (*time.Time, *time.Time) {
	if f.From != nil && f.To == nil {
		return f.From, &now
	}
	return f.From, f.To
}
