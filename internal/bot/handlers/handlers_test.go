package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hray3182/SpendWise/internal/ai"
	"github.com/hray3182/SpendWise/internal/auth"
	"github.com/hray3182/SpendWise/internal/docstore"
	"github.com/hray3182/SpendWise/internal/models"
	"github.com/hray3182/SpendWise/internal/repository"
	"github.com/hray3182/SpendWise/internal/session"
)

const testUser int64 = 1001

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return "", errors.New("no files")
}

// lastText returns the text of the most recent message or edit.
func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	switch m := f.sent[len(f.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		return m.Text
	case tgbotapi.EditMessageTextConfig:
		return m.Text
	case tgbotapi.PhotoConfig:
		return m.Caption
	case tgbotapi.DocumentConfig:
		return m.Caption
	}
	t.Fatalf("unexpected chattable %T", f.sent[len(f.sent)-1])
	return ""
}

type fakeUsers struct{}

func (fakeUsers) GetOrCreate(ctx context.Context, userID int64, userName string) (*models.User, error) {
	return &models.User{UserID: userID, UserName: userName}, nil
}

type fakeSettings struct {
	s *models.UserSettings
}

func (f *fakeSettings) GetOrCreate(ctx context.Context, userID int64) (*models.UserSettings, error) {
	return f.s, nil
}

func (f *fakeSettings) SetLocale(ctx context.Context, userID int64, locale string) error {
	f.s.Locale = locale
	return nil
}

func (f *fakeSettings) SetTimezone(ctx context.Context, userID int64, timezone string) error {
	f.s.Timezone = timezone
	return nil
}

func (f *fakeSettings) SetDailySummaryEnabled(ctx context.Context, userID int64, enabled bool) error {
	f.s.DailySummaryEnabled = enabled
	return nil
}

func (f *fakeSettings) SetDailySummaryTime(ctx context.Context, userID int64, timeStr string) error {
	f.s.DailySummaryTime = timeStr
	return nil
}

type fakeRules struct {
	rules []*models.RecurringRule
}

func (f *fakeRules) Create(ctx context.Context, rule *models.RecurringRule) error {
	rule.RuleID = len(f.rules) + 1
	f.rules = append(f.rules, rule)
	return nil
}

func (f *fakeRules) GetByUserID(ctx context.Context, userID int64) ([]*models.RecurringRule, error) {
	return f.rules, nil
}

func (f *fakeRules) Delete(ctx context.Context, ruleID int, userID int64) error {
	for i, r := range f.rules {
		if r.RuleID == ruleID && r.UserID == userID {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			return nil
		}
	}
	return repository.ErrRuleNotFound
}

type fakeAdvisor struct {
	parse      ai.ParseOutput
	category   string
	confidence float64
	err        error
}

func (f *fakeAdvisor) ParseTransactionText(ctx context.Context, in ai.ParseInput) (ai.ParseOutput, error) {
	return f.parse, nil
}

func (f *fakeAdvisor) SuggestCategory(ctx context.Context, in ai.SuggestInput) (ai.SuggestOutput, error) {
	if f.err != nil {
		return ai.SuggestOutput{}, f.err
	}
	return ai.SuggestOutput{Category: f.category}, nil
}

func (f *fakeAdvisor) SuggestExpenseCategory(ctx context.Context, in ai.SuggestInput) (ai.Suggestion, error) {
	if f.err != nil {
		return ai.Suggestion{}, f.err
	}
	confidence := f.confidence
	if confidence == 0 {
		confidence = 0.9
	}
	return ai.Suggestion{Category: f.category, Confidence: confidence}, nil
}

func (f *fakeAdvisor) QueryTransactions(ctx context.Context, in ai.QueryInput) (ai.QueryOutput, error) {
	ids := []string{"missing"}
	for _, tx := range in.Transactions {
		if strings.Contains(strings.ToLower(tx.Description), strings.ToLower(in.Query)) {
			ids = append(ids, tx.ID)
		}
	}
	return ai.QueryOutput{MatchingIDs: ids}, nil
}

type fakeNotifier struct{ calls int }

func (f *fakeNotifier) Notify() { f.calls++ }

type harness struct {
	h        *Handlers
	api      *fakeAPI
	remote   *docstore.Memory
	sessions *session.Manager
	settings *fakeSettings
	rules    *fakeRules
	advisor  *fakeAdvisor
	notifier *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, docstore.NewMemory())
}

// newHarnessOn wires fresh handlers, sessions and identity state to remote.
func newHarnessOn(t *testing.T, remote *docstore.Memory) *harness {
	t.Helper()
	provider := auth.NewProvider(fakeUsers{})
	sessions := session.NewManager(remote, provider)
	t.Cleanup(sessions.Close)

	settings := models.NewDefaultUserSettings(testUser)
	settings.Timezone = "UTC"
	hs := &harness{
		api:      &fakeAPI{},
		remote:   remote,
		sessions: sessions,
		settings: &fakeSettings{s: settings},
		rules:    &fakeRules{},
		advisor:  &fakeAdvisor{},
		notifier: &fakeNotifier{},
	}
	hs.h = New(hs.api, Deps{
		Auth:      provider,
		Sessions:  sessions,
		Settings:  hs.settings,
		Rules:     hs.rules,
		AI:        hs.advisor,
		Scheduler: hs.notifier,
	}, false)
	hs.h.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }
	return hs
}

func message(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: testUser, FirstName: "Rahim", UserName: "rahim"},
		Chat:      &tgbotapi.Chat{ID: testUser},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func (hs *harness) command(text string) {
	hs.h.HandleCommand(context.Background(), message(text))
}

func (hs *harness) snapshot(t *testing.T) models.AppData {
	t.Helper()
	store, err := hs.sessions.Get(testUser)
	if err != nil {
		t.Fatalf("no session: %v", err)
	}
	return store.Snapshot()
}

func TestCommandsRequireLogin(t *testing.T) {
	hs := newHarness(t)
	hs.command("/expense 250 Food Lunch")
	if got := hs.api.lastText(t); !strings.Contains(got, "/login") || !strings.Contains(got, "your data is kept") {
		t.Errorf("reply = %q, want login hint", got)
	}
}

func TestLoginAfterRestartRestoresDocument(t *testing.T) {
	hs := newHarness(t)
	hs.command("/login")
	hs.command("/expense 250 Food Lunch")
	hs.sessions.Close()

	// Signed-in state is per process; the document outlives it.
	restarted := newHarnessOn(t, hs.remote)
	restarted.command("/list")
	if got := restarted.api.lastText(t); !strings.Contains(got, "/login") {
		t.Fatalf("reply after restart = %q, want login hint", got)
	}
	restarted.command("/login")
	if n := len(restarted.snapshot(t).Transactions); n != 1 {
		t.Fatalf("restored %d transactions, want 1", n)
	}
}

func TestExpenseListEditDelete(t *testing.T) {
	hs := newHarness(t)
	hs.command("/login")
	if got := hs.api.lastText(t); !strings.Contains(got, "Signed in as rahim") {
		t.Fatalf("login reply = %q", got)
	}

	hs.command("/expense 250 food Lunch with team")
	data := hs.snapshot(t)
	if len(data.Transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(data.Transactions))
	}
	tx := data.Transactions[0]
	if tx.Category != "Food" || tx.Amount != 250 || tx.Description != "Lunch with team" || tx.Date != "2024-05-10" {
		t.Errorf("transaction = %+v", tx)
	}

	hs.command("/list")
	if got := hs.api.lastText(t); !strings.Contains(got, shortID(tx.ID)) {
		t.Errorf("list = %q, want id %s", got, shortID(tx.ID))
	}

	hs.command(fmt.Sprintf("/edit %s amount=300 desc=Dinner", shortID(tx.ID)))
	edited, _ := hs.snapshot(t).FindTransaction(tx.ID)
	if edited.Amount != 300 || edited.Description != "Dinner" {
		t.Errorf("edited = %+v", edited)
	}

	hs.command("/delete " + shortID(tx.ID))
	if n := len(hs.snapshot(t).Transactions); n != 0 {
		t.Errorf("got %d transactions after delete", n)
	}
}

func TestExpenseSuggestsCategory(t *testing.T) {
	hs := newHarness(t)
	hs.command("/login")

	hs.advisor.category = "transport"
	hs.command("/expense 40 bus ticket")
	tx := hs.snapshot(t).Transactions[0]
	if tx.Category != "Transport" {
		t.Errorf("category = %q, want Transport", tx.Category)
	}

	if got := hs.api.lastText(t); strings.Contains(got, "No category could be suggested") {
		t.Errorf("notice shown for a good suggestion: %q", got)
	}

	hs.advisor.category = "Spaceships"
	hs.command("/expense 40 rocket")
	if got := hs.snapshot(t).Transactions[0].Category; got != models.FallbackCategory {
		t.Errorf("unknown suggestion stored as %q, want %q", got, models.FallbackCategory)
	}
	if got := hs.api.lastText(t); !strings.Contains(got, "No category could be suggested, filed under Other") {
		t.Errorf("unknown suggestion reply = %q", got)
	}
}

func TestFailedSuggestionIsReported(t *testing.T) {
	hs := newHarness(t)
	hs.command("/login")

	hs.advisor.err = errors.New("rate limited")
	hs.command("/expense 40 bus ticket")
	if got := hs.snapshot(t).Transactions[0].Category; got != models.FallbackCategory {
		t.Errorf("category = %q, want %q", got, models.FallbackCategory)
	}
	if got := hs.api.lastText(t); !strings.Contains(got, "No category could be suggested, filed under Other") {
		t.Errorf("reply = %q", got)
	}

	hs.advisor.err = nil
	hs.advisor.category = "Transport"
	hs.advisor.confidence = 0.2
	hs.command("/expense 40 taxi")
	if got := hs.api.lastText(t); !strings.Contains(got, "No category could be suggested") {
		t.Errorf("unsure suggestion reply = %q", got)
	}

	hs.advisor.err = errors.New("rate limited")
	hs.advisor.parse = ai.ParseOutput{Type: models.TransactionTypeExpense, Amount: 120, Description: "Coffee"}
	hs.h.HandleMessage(context.Background(), message("coffee 120"))
	got := hs.api.lastText(t)
	if !strings.Contains(got, "Record this expense?") || !strings.Contains(got, "filed under Other") {
		t.Errorf("free text prompt = %q", got)
	}

	hs.command("/recurring add monthly expense 900 Netflix 2024-06-01")
	if got := hs.api.lastText(t); !strings.Contains(got, "filed under Other") {
		t.Errorf("recurring reply = %q", got)
	}
}

func TestCategoryCommands(t *testing.T) {
	hs := newHarness(t)
	hs.command("/login")

	hs.command("/delcat expense Food")
	if got := hs.api.lastText(t); !strings.Contains(got, "cannot be changed") {
		t.Errorf("protected delete reply = %q", got)
	}

	hs.command("/addcat expense Pets")
	hs.command("/expense 500 Pets Vet")
	hs.command("/renamecat expense pets => Animals")
	data := hs.snapshot(t)
	if !data.Categories.Contains(models.TransactionTypeExpense, "Animals") || data.Transactions[0].Category != "Animals" {
		t.Fatalf("rename failed: %+v", data)
	}

	hs.command("/delcat expense Animals")
	data = hs.snapshot(t)
	if data.Categories.Contains(models.TransactionTypeExpense, "Animals") {
		t.Error("category still listed")
	}
	if data.Transactions[0].Category != models.FallbackCategory {
		t.Errorf("transaction category = %q, want %q", data.Transactions[0].Category, models.FallbackCategory)
	}
}

func TestFreeTextConfirmation(t *testing.T) {
	hs := newHarness(t)
	hs.command("/login")
	hs.advisor.parse = ai.ParseOutput{Type: models.TransactionTypeExpense, Amount: 120, Description: "Coffee"}
	hs.advisor.category = "Food"

	hs.h.HandleMessage(context.Background(), message("coffee 120"))
	if got := hs.api.lastText(t); !strings.Contains(got, "Record this expense?") {
		t.Fatalf("prompt = %q", got)
	}
	if n := len(hs.snapshot(t).Transactions); n != 0 {
		t.Fatalf("recorded before confirmation: %d", n)
	}

	callback := &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testUser + 1},
		Message: &tgbotapi.Message{MessageID: 2, Chat: &tgbotapi.Chat{ID: testUser}},
		Data:    fmt.Sprintf("tx:confirm:%d", testUser),
	}
	hs.h.HandleCallbackQuery(context.Background(), callback)
	if n := len(hs.snapshot(t).Transactions); n != 0 {
		t.Fatal("another user confirmed the draft")
	}

	callback.From = &tgbotapi.User{ID: testUser}
	hs.h.HandleCallbackQuery(context.Background(), callback)
	data := hs.snapshot(t)
	if len(data.Transactions) != 1 || data.Transactions[0].Category != "Food" || data.Transactions[0].Amount != 120 {
		t.Fatalf("transactions = %+v", data.Transactions)
	}

	// The draft is consumed.
	hs.h.HandleCallbackQuery(context.Background(), callback)
	if got := hs.api.lastText(t); !strings.Contains(got, "expired") {
		t.Errorf("second confirm reply = %q", got)
	}
	if n := len(hs.snapshot(t).Transactions); n != 1 {
		t.Errorf("got %d transactions after second confirm", n)
	}
}

func TestSearch(t *testing.T) {
	hs := newHarness(t)
	hs.command("/login")
	hs.command("/expense 250 Food Lunch")
	hs.command("/expense 40 Transport Bus")

	hs.command("/search lunch")
	got := hs.api.lastText(t)
	if !strings.Contains(got, "Lunch") || strings.Contains(got, "Bus") {
		t.Errorf("search reply = %q", got)
	}
}

func TestResetConfirmation(t *testing.T) {
	hs := newHarness(t)
	hs.command("/login")
	hs.command("/expense 250 Food Lunch")
	hs.command("/reset")
	if n := len(hs.snapshot(t).Transactions); n != 1 {
		t.Fatal("reset without confirmation")
	}

	hs.h.HandleCallbackQuery(context.Background(), &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testUser},
		Message: &tgbotapi.Message{MessageID: 2, Chat: &tgbotapi.Chat{ID: testUser}},
		Data:    fmt.Sprintf("reset:confirm:%d", testUser),
	})
	if n := len(hs.snapshot(t).Transactions); n != 0 {
		t.Errorf("got %d transactions after reset", n)
	}
}

func TestRecurringAddListDelete(t *testing.T) {
	hs := newHarness(t)
	hs.command("/login")

	hs.command("/recurring add monthly expense 12000 House Rent Flat 2024-06-01")
	if len(hs.rules.rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(hs.rules.rules))
	}
	rule := hs.rules.rules[0]
	if rule.RecurrenceRule != "FREQ=MONTHLY" || rule.Draft.Category != "House Rent" || rule.Draft.Description != "Flat" {
		t.Errorf("rule = %+v", rule)
	}
	if rule.NextRunAt == nil || rule.NextRunAt.Format(models.DateLayout) != "2024-06-01" {
		t.Errorf("next run = %v", rule.NextRunAt)
	}
	if hs.notifier.calls != 1 {
		t.Errorf("scheduler notified %d times", hs.notifier.calls)
	}

	hs.command("/recurring list")
	if got := hs.api.lastText(t); !strings.Contains(got, "every month") {
		t.Errorf("list = %q", got)
	}
	if got := hs.api.lastText(t); !strings.Contains(got, "next 2024-06-01, then 2024-07-01, 2024-08-01") {
		t.Errorf("list does not show upcoming runs: %q", got)
	}

	hs.command("/recurring delete 1")
	if len(hs.rules.rules) != 0 {
		t.Error("rule not deleted")
	}
	hs.command("/recurring delete 1")
	if got := hs.api.lastText(t); !strings.Contains(got, "No recurring transaction") {
		t.Errorf("second delete reply = %q", got)
	}
}

func TestReportUsageListsYears(t *testing.T) {
	hs := newHarness(t)
	hs.command("/login")
	hs.command("/expense 40 Food Lunch 2022-03-01")

	hs.command("/report 2024-13")
	got := hs.api.lastText(t)
	if !strings.Contains(got, "Usage: /report") {
		t.Fatalf("reply = %q", got)
	}
	if !strings.Contains(got, "Years: 2030 2029 2028 2027 2026 2025 2024 2023 2022") {
		t.Errorf("years missing from reply: %q", got)
	}
}

func TestSettingsCommands(t *testing.T) {
	hs := newHarness(t)

	hs.command("/settings timezone Mars/Olympus")
	if hs.settings.s.Timezone != "UTC" {
		t.Error("invalid timezone stored")
	}
	hs.command("/settings timezone Asia/Dhaka")
	hs.command("/settings language bn")
	if hs.settings.s.Timezone != "Asia/Dhaka" || hs.settings.s.Locale != models.LocaleBengali {
		t.Errorf("settings = %+v", hs.settings.s)
	}

	callback := &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testUser},
		Message: &tgbotapi.Message{MessageID: 2, Chat: &tgbotapi.Chat{ID: testUser}},
		Data:    "settings:summary:time:08:00",
	}
	hs.h.HandleCallbackQuery(context.Background(), callback)
	if hs.settings.s.DailySummaryTime != "08:00" {
		t.Errorf("summary time = %q", hs.settings.s.DailySummaryTime)
	}
	callback.Data = "settings:summary:toggle"
	hs.h.HandleCallbackQuery(context.Background(), callback)
	if !hs.settings.s.DailySummaryEnabled {
		t.Error("daily summary not enabled")
	}
}

func TestLogoutKeepsRemoteDocument(t *testing.T) {
	hs := newHarness(t)
	hs.command("/login")
	hs.command("/expense 250 Food Lunch")
	hs.command("/logout")

	if _, err := hs.sessions.Get(testUser); !errors.Is(err, session.ErrNotSignedIn) {
		t.Fatalf("session still open: %v", err)
	}
	doc, ok := hs.remote.Get(auth.DocumentKey(testUser))
	if !ok || len(doc.Transactions) != 1 {
		t.Errorf("remote document = %+v, %v", doc, ok)
	}

	hs.command("/login")
	if n := len(hs.snapshot(t).Transactions); n != 1 {
		t.Errorf("got %d transactions after logging in again", n)
	}
}
