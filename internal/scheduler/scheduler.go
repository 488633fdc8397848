package scheduler

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/format"
	"github.com/hray3182/SpendWise/internal/ledger"
	"github.com/hray3182/SpendWise/internal/models"
	"github.com/hray3182/SpendWise/internal/report"
	"github.com/hray3182/SpendWise/internal/rrule"
)

// maxCatchUp bounds how many missed occurrences of one rule are recorded in
// a single check.
const maxCatchUp = 31

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Sessions interface {
	Open(ctx context.Context, userID int64) (*ledger.Store, func())
}

type RuleStore interface {
	GetDue(ctx context.Context, now time.Time) ([]*models.RecurringRule, error)
	Advance(ctx context.Context, ruleID int, ranAt time.Time, next *time.Time) error
}

type SettingsStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.UserSettings, error)
	GetAllUsersWithDailySummaryEnabled(ctx context.Context) ([]int64, error)
	SetLastDailySummaryDate(ctx context.Context, userID int64, date time.Time) error
}

type Scheduler struct {
	api           Sender
	sessions      Sessions
	rules         RuleStore
	settings      SettingsStore
	checkInterval time.Duration
	notifyCh      chan struct{}
	now           func() time.Time
}

func New(api Sender, sessions Sessions, rules RuleStore, settings SettingsStore, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		api:           api,
		sessions:      sessions,
		rules:         rules,
		settings:      settings,
		checkInterval: interval,
		notifyCh:      make(chan struct{}, 1),
		now:           time.Now,
	}
}

// Notify triggers an immediate check. Non-blocking if a check is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Dur("interval", s.checkInterval).Msg("scheduler started")
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	// Wait a bit for the bot to finish starting before the first check
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
	}

	s.check(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.check(ctx)
		case <-s.notifyCh:
			log.Debug().Msg("scheduler triggered by notification")
			s.check(ctx)
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	now := s.now()
	s.runRecurring(ctx, now)
	s.checkDailySummary(ctx, now)
}

func (s *Scheduler) location(ctx context.Context, userID int64) *time.Location {
	settings, err := s.settings.GetByUserID(ctx, userID)
	if err != nil {
		return time.Local
	}
	return settings.Location()
}

func (s *Scheduler) send(userID int64, msg format.Message) error {
	m := tgbotapi.NewMessage(userID, msg.Text)
	m.Entities = msg.Entities
	_, err := s.api.Send(m)
	return err
}

func (s *Scheduler) runRecurring(ctx context.Context, now time.Time) {
	rules, err := s.rules.GetDue(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("failed to get due recurring rules")
		return
	}

	for _, rule := range rules {
		s.materialize(ctx, rule, now)
	}
}

// materialize records every occurrence of rule up to now and moves the rule
// to its next occurrence. The rule is left due when the owner's document is
// not available, so the next check retries it.
func (s *Scheduler) materialize(ctx context.Context, rule *models.RecurringRule, now time.Time) {
	if rule.NextRunAt == nil {
		return
	}
	logger := log.With().Int64("user_id", rule.UserID).Int("rule_id", rule.RuleID).Logger()

	store, release := s.sessions.Open(ctx, rule.UserID)
	defer release()
	if store.State() != ledger.Ready {
		logger.Warn().Str("state", store.State().String()).Msg("document not ready, recurring rule postponed")
		return
	}

	loc := s.location(ctx, rule.UserID)
	var recorded []models.Transaction
	next := rule.NextRunAt
	for next != nil && !next.After(now) && len(recorded) < maxCatchUp {
		draft := rule.Draft
		draft.Date = next.In(loc).Format(models.DateLayout)
		if err := draft.Validate(); err != nil {
			logger.Error().Err(err).Msg("recurring rule has an invalid draft, disabling")
			next = nil
			break
		}
		recorded = append(recorded, store.AddTransaction(draft))

		following, err := rrule.NextOccurrence(rule.RecurrenceRule, rule.DTStart, *next, loc)
		if err != nil {
			logger.Error().Err(err).Msg("failed to compute next occurrence, disabling")
			following = nil
		}
		next = following
	}

	if err := s.rules.Advance(ctx, rule.RuleID, now, next); err != nil {
		logger.Error().Err(err).Msg("failed to advance recurring rule")
	}
	if len(recorded) == 0 {
		return
	}
	logger.Info().Int("count", len(recorded)).Msg("recorded recurring transactions")

	if err := s.send(rule.UserID, recurringText(recorded, next, loc)); err != nil {
		logger.Error().Err(err).Msg("failed to send recurring notification")
	}
}

func recurringText(recorded []models.Transaction, next *time.Time, loc *time.Location) format.Message {
	var b format.Builder
	b.Header("🔁 Recurring transaction recorded")
	for _, tx := range recorded {
		b.Textf("%s %s · %s · %s", tx.Date, report.FormatFloat(tx.Amount), tx.Category, tx.Description).Newline()
	}
	if next != nil {
		b.Newline().Field("Next", next.In(loc).Format(models.DateLayout))
	} else {
		b.Newline().Italic("This schedule has ended.")
	}
	return b.Message()
}

func (s *Scheduler) checkDailySummary(ctx context.Context, now time.Time) {
	userIDs, err := s.settings.GetAllUsersWithDailySummaryEnabled(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to get users with daily summary enabled")
		return
	}

	for _, userID := range userIDs {
		s.sendDailySummaryIfNeeded(ctx, userID, now)
	}
}

func (s *Scheduler) sendDailySummaryIfNeeded(ctx context.Context, userID int64, now time.Time) {
	settings, err := s.settings.GetByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to get user settings for daily summary")
		return
	}
	if !settings.ShouldSendDailySummary(now) {
		return
	}

	store, release := s.sessions.Open(ctx, userID)
	defer release()
	if store.State() != ledger.Ready {
		log.Warn().Int64("user_id", userID).Str("state", store.State().String()).Msg("document not ready, daily summary postponed")
		return
	}

	localNow := now.In(settings.Location())
	text := dailySummaryText(store.Snapshot().Transactions, localNow)
	if err := s.send(userID, text); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to send daily summary")
		return
	}

	if err := s.settings.SetLastDailySummaryDate(ctx, userID, now); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to update last daily summary date")
	}
	log.Info().Int64("user_id", userID).Msg("sent daily summary")
}

// dailySummaryText reports yesterday's totals and the month so far. now must
// be in the user's location.
func dailySummaryText(txs []models.Transaction, now time.Time) format.Message {
	yesterday := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, now.Location())
	day := report.Apply(txs, report.Filter{From: &yesterday, To: &yesterday, Type: report.All, Category: report.All})
	month := report.MonthlySummary(txs, now)

	var b format.Builder
	b.Header(fmt.Sprintf("%s 📊 Daily summary", greeting(now.Hour())))
	b.Newline()
	b.Bold(yesterday.Format("Mon, 02 Jan 2006")).Newline()
	if len(day.Transactions) == 0 {
		b.Italic("No transactions recorded.").Newline()
	} else {
		b.Field("Income", report.FormatAmount(day.Income))
		b.Field("Expense", report.FormatAmount(day.Expense))
		b.Textf("%d transaction(s)", len(day.Transactions)).Newline()
	}
	b.Newline()
	b.Bold(now.Format("January 2006") + " so far").Newline()
	b.Field("Income", report.FormatAmount(month.Income))
	b.Field("Expense", report.FormatAmount(month.Expense))
	b.Field("Balance", report.FormatAmount(month.Balance))
	return b.Message()
}

func greeting(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "Good morning!"
	case hour >= 12 && hour < 18:
		return "Good afternoon!"
	default:
		return "Good evening!"
	}
}
