package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/ai"
	"github.com/hray3182/SpendWise/internal/auth"
	"github.com/hray3182/SpendWise/internal/charts"
	"github.com/hray3182/SpendWise/internal/format"
	"github.com/hray3182/SpendWise/internal/ledger"
	"github.com/hray3182/SpendWise/internal/models"
	"github.com/hray3182/SpendWise/internal/session"
)

// API is the part of *tgbotapi.BotAPI the handlers use.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type SettingsStore interface {
	GetOrCreate(ctx context.Context, userID int64) (*models.UserSettings, error)
	SetLocale(ctx context.Context, userID int64, locale string) error
	SetTimezone(ctx context.Context, userID int64, timezone string) error
	SetDailySummaryEnabled(ctx context.Context, userID int64, enabled bool) error
	SetDailySummaryTime(ctx context.Context, userID int64, timeStr string) error
}

type RuleStore interface {
	Create(ctx context.Context, rule *models.RecurringRule) error
	GetByUserID(ctx context.Context, userID int64) ([]*models.RecurringRule, error)
	Delete(ctx context.Context, ruleID int, userID int64) error
}

// Advisor is implemented by *ai.Client.
type Advisor interface {
	ParseTransactionText(ctx context.Context, in ai.ParseInput) (ai.ParseOutput, error)
	SuggestCategory(ctx context.Context, in ai.SuggestInput) (ai.SuggestOutput, error)
	SuggestExpenseCategory(ctx context.Context, in ai.SuggestInput) (ai.Suggestion, error)
	QueryTransactions(ctx context.Context, in ai.QueryInput) (ai.QueryOutput, error)
}

type Notifier interface {
	Notify()
}

type Deps struct {
	Auth      *auth.Provider
	Sessions  *session.Manager
	Settings  SettingsStore
	Rules     RuleStore
	AI        Advisor
	Charts    *charts.Generator
	Scheduler Notifier
}

type Handlers struct {
	api        API
	deps       Deps
	pending    *pendingConfirmations
	httpClient *http.Client
	devMode    bool
	now        func() time.Time
}

func New(api API, deps Deps, devMode bool) *Handlers {
	if deps.Charts == nil {
		deps.Charts = charts.NewGenerator()
	}
	return &Handlers{
		api:        api,
		deps:       deps,
		pending:    newPendingConfirmations(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		devMode:    devMode,
		now:        time.Now,
	}
}

// Commands lists the commands registered with Telegram.
func Commands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "login", Description: "Sign in and load your data"},
		{Command: "logout", Description: "Sign out"},
		{Command: "expense", Description: "Record an expense"},
		{Command: "income", Description: "Record an income"},
		{Command: "list", Description: "Show recent transactions"},
		{Command: "edit", Description: "Edit a transaction"},
		{Command: "delete", Description: "Delete a transaction"},
		{Command: "categories", Description: "Show categories"},
		{Command: "summary", Description: "Balance overview"},
		{Command: "month", Description: "Monthly summary"},
		{Command: "report", Description: "Filtered report"},
		{Command: "chart", Description: "Charts"},
		{Command: "search", Description: "Search with natural language"},
		{Command: "recurring", Description: "Recurring transactions"},
		{Command: "export", Description: "Download your data"},
		{Command: "xlsx", Description: "Download a spreadsheet report"},
		{Command: "settings", Description: "Language and daily summary"},
		{Command: "help", Description: "Show help"},
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	h.debug("command", map[string]any{"user_id": msg.From.ID, "command": msg.Command(), "args": msg.CommandArguments()})

	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "login":
		h.handleLogin(ctx, msg, args)
	case "logout":
		h.handleLogout(ctx, msg)
	case "expense":
		h.handleEntry(ctx, msg, args, models.TransactionTypeExpense)
	case "income":
		h.handleEntry(ctx, msg, args, models.TransactionTypeIncome)
	case "list":
		h.handleList(ctx, msg, args)
	case "edit":
		h.handleEdit(ctx, msg, args)
	case "delete":
		h.handleDelete(ctx, msg, args)
	case "categories":
		h.handleCategories(ctx, msg)
	case "addcat":
		h.handleAddCategory(ctx, msg, args)
	case "renamecat":
		h.handleRenameCategory(ctx, msg, args)
	case "delcat":
		h.handleDeleteCategory(ctx, msg, args)
	case "summary", "balance":
		h.handleSummary(ctx, msg)
	case "month":
		h.handleMonth(ctx, msg, args)
	case "report":
		h.handleReport(ctx, msg, args)
	case "chart":
		h.handleChart(ctx, msg, args)
	case "export":
		h.handleExport(ctx, msg)
	case "xlsx":
		h.handleXLSX(ctx, msg, args)
	case "import":
		h.handleImport(ctx, msg)
	case "reset":
		h.handleReset(ctx, msg)
	case "search":
		h.handleSearch(ctx, msg)
	case "recurring":
		h.handleRecurring(ctx, msg, args)
	case "settings":
		h.handleSettings(ctx, msg, args)
	default:
		h.sendMessage(msg.Chat.ID, "Unknown command. Use /help to see the available commands.")
	}
}

// HandleMessage handles non-command messages: JSON uploads captioned
// /import, and free text for the AI parser.
func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.Document != nil {
		if strings.HasPrefix(strings.TrimSpace(msg.Caption), "/import") {
			h.handleImport(ctx, msg)
		} else {
			h.sendMessage(msg.Chat.ID, "To restore a backup, send the JSON file with the caption /import.")
		}
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	h.handleAIMessage(ctx, msg)
}

func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || callback.From == nil {
		h.answerCallback(callback.ID, "")
		return
	}

	parts := strings.Split(callback.Data, ":")
	if len(parts) < 2 {
		h.answerCallback(callback.ID, "")
		return
	}

	if parts[0] == "settings" {
		h.answerCallback(callback.ID, "")
		h.handleSettingsCallback(ctx, callback, parts[1:])
		return
	}

	// Remaining callbacks are "<kind>:<action>:<userID>".
	if len(parts) != 3 {
		h.answerCallback(callback.ID, "")
		return
	}
	userID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		h.answerCallback(callback.ID, "")
		return
	}
	if callback.From.ID != userID {
		h.answerCallbackWithAlert(callback.ID, "This is not your action.")
		return
	}
	h.answerCallback(callback.ID, "")

	switch parts[0] {
	case "tx":
		h.handleDraftCallback(ctx, callback, parts[1], userID)
	case "reset":
		h.handleResetCallback(ctx, callback, parts[1], userID)
	}
}

// store returns the signed-in user's ledger store, or tells the user to sign
// in.
func (h *Handlers) store(msg *tgbotapi.Message) (*ledger.Store, bool) {
	store, err := h.deps.Sessions.Get(msg.From.ID)
	if errors.Is(err, session.ErrNotSignedIn) {
		h.sendMessage(msg.Chat.ID, "Please /login first. Sessions end when the bot restarts, your data is kept.")
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("failed to get session")
		h.sendMessage(msg.Chat.ID, "Something went wrong, please try again later.")
		return nil, false
	}
	return store, true
}

// settings returns the user's settings, falling back to defaults when they
// cannot be loaded.
func (h *Handlers) settings(ctx context.Context, userID int64) *models.UserSettings {
	if h.deps.Settings == nil {
		return models.NewDefaultUserSettings(userID)
	}
	s, err := h.deps.Settings.GetOrCreate(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to get user settings")
		return models.NewDefaultUserSettings(userID)
	}
	return s
}

// localNow is the current time in the user's timezone.
func (h *Handlers) localNow(ctx context.Context, userID int64) time.Time {
	return h.now().In(h.settings(ctx, userID).Location())
}

func (h *Handlers) debug(msg string, fields map[string]any) {
	if !h.devMode {
		return
	}
	log.Debug().Fields(fields).Msg(msg)
}

func (h *Handlers) answerCallback(callbackID string, text string) {
	if _, err := h.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Error().Err(err).Msg("failed to answer callback")
	}
}

func (h *Handlers) answerCallbackWithAlert(callbackID string, text string) {
	if _, err := h.api.Request(tgbotapi.NewCallbackWithAlert(callbackID, text)); err != nil {
		log.Error().Err(err).Msg("failed to answer callback with alert")
	}
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	h.reply(chatID, format.Plain(text))
}

func (h *Handlers) reply(chatID int64, m format.Message) {
	msg := tgbotapi.NewMessage(chatID, m.Text)
	msg.Entities = m.Entities
	if _, err := h.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

func (h *Handlers) replyWithKeyboard(chatID int64, m format.Message, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, m.Text)
	msg.Entities = m.Entities
	msg.ReplyMarkup = keyboard
	if _, err := h.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

func (h *Handlers) editMessage(chatID int64, messageID int, m format.Message) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, m.Text)
	edit.Entities = m.Entities
	if _, err := h.api.Send(edit); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to edit message")
	}
}

func (h *Handlers) editMessageWithKeyboard(chatID int64, messageID int, m format.Message, keyboard tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, m.Text, keyboard)
	edit.Entities = m.Entities
	if _, err := h.api.Send(edit); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to edit message")
	}
}

func (h *Handlers) sendDocument(chatID int64, name string, data []byte, caption string) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	if _, err := h.api.Send(doc); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Str("file", name).Msg("failed to send document")
		h.sendMessage(chatID, "Failed to send the file, please try again later.")
	}
}

func (h *Handlers) sendPhoto(chatID int64, name string, data []byte, caption string) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = caption
	if _, err := h.api.Send(photo); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Str("file", name).Msg("failed to send photo")
		h.sendMessage(chatID, "Failed to send the chart, please try again later.")
	}
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	var b format.Builder
	b.Textf("👋 Hello %s!", msg.From.FirstName).Newline().Newline()
	b.Line("I keep track of your income and expenses.")
	b.Newline()
	b.Text("Start with ").Code("/login").Text(", then record entries like").Newline()
	b.Code("/expense 250 Food Lunch").Newline()
	if h.deps.AI != nil {
		b.Text("or just write ").Italic("spent 250 on lunch").Text(".").Newline()
	}
	b.Newline()
	b.Text("Use ").Code("/help").Text(" to see all commands.")
	h.reply(msg.Chat.ID, b.Message())
}

func (h *Handlers) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	var b format.Builder
	b.Header("📖 Commands")
	b.Newline()
	b.Header("Account")
	b.Code("/login [name]").Text(" sign in").Newline()
	b.Code("/logout").Text(" sign out").Newline()
	b.Newline()
	b.Header("Transactions")
	b.Code("/expense <amount> [category] <description> [YYYY-MM-DD]").Newline()
	b.Code("/income <amount> [category] <description> [YYYY-MM-DD]").Newline()
	b.Code("/list [n]").Text(" recent transactions").Newline()
	b.Code("/edit <id> amount=… category=… description=… date=… type=…").Newline()
	b.Code("/delete <id>").Newline()
	b.Newline()
	b.Header("Categories")
	b.Code("/categories").Newline()
	b.Code("/addcat <income|expense> <name>").Newline()
	b.Code("/renamecat <income|expense> <old> => <new>").Newline()
	b.Code("/delcat <income|expense> <name>").Newline()
	b.Newline()
	b.Header("Reports")
	b.Code("/summary").Text(" overall and this month").Newline()
	b.Code("/month [YYYY-MM]").Newline()
	b.Code("/report [YYYY-MM | YYYY | from [to]] [type] [category]").Newline()
	b.Code("/chart [trend|category|spending]").Newline()
	b.Code("/search <question>").Text(" natural language search").Newline()
	b.Newline()
	b.Header("Recurring")
	b.Code("/recurring add <daily|weekly|monthly|yearly[:N]> <type> <amount> [category] <description> [start]").Newline()
	b.Code("/recurring list").Newline()
	b.Code("/recurring delete <id>").Newline()
	b.Newline()
	b.Header("Data")
	b.Code("/export").Text(" JSON backup").Newline()
	b.Code("/xlsx [report filters]").Text(" spreadsheet").Newline()
	b.Text("Send a backup file captioned ").Code("/import").Text(" to restore it").Newline()
	b.Code("/reset").Text(" restore default categories and delete all transactions").Newline()
	b.Code("/settings").Text(" language, timezone and daily summary").Newline()
	if h.deps.AI != nil {
		b.Newline()
		b.Text("💡 You can also describe a transaction in plain words.")
	}
	h.reply(msg.Chat.ID, b.Message())
}
