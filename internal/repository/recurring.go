package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hray3182/SpendWise/internal/database"
	"github.com/hray3182/SpendWise/internal/models"
)

var ErrRuleNotFound = errors.New("recurring rule not found")

type RecurringRepository struct {
	db *database.DB
}

func NewRecurringRepository(db *database.DB) *RecurringRepository {
	return &RecurringRepository{db: db}
}

const recurringColumns = `rule_id, user_id, type, amount, description, category,
	recurrence_rule, dtstart, next_run_at, last_run_at, active, created_at`

func scanRule(row rowScanner) (*models.RecurringRule, error) {
	r := &models.RecurringRule{}
	err := row.Scan(
		&r.RuleID,
		&r.UserID,
		&r.Draft.Type,
		&r.Draft.Amount,
		&r.Draft.Description,
		&r.Draft.Category,
		&r.RecurrenceRule,
		&r.DTStart,
		&r.NextRunAt,
		&r.LastRunAt,
		&r.Active,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func collectRules(rows pgx.Rows) ([]*models.RecurringRule, error) {
	defer rows.Close()
	var rules []*models.RecurringRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (r *RecurringRepository) Create(ctx context.Context, rule *models.RecurringRule) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO recurring_transaction
		    (user_id, type, amount, description, category, recurrence_rule, dtstart, next_run_at, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING rule_id, created_at`,
		rule.UserID, string(rule.Draft.Type), rule.Draft.Amount, rule.Draft.Description, rule.Draft.Category,
		rule.RecurrenceRule, rule.DTStart, rule.NextRunAt, rule.Active,
	).Scan(&rule.RuleID, &rule.CreatedAt)
}

func (r *RecurringRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.RecurringRule, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+recurringColumns+` FROM recurring_transaction
		 WHERE user_id = $1 ORDER BY active DESC, next_run_at ASC NULLS LAST, rule_id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// GetDue returns active rules whose next run is at or before now.
func (r *RecurringRepository) GetDue(ctx context.Context, now time.Time) ([]*models.RecurringRule, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+recurringColumns+` FROM recurring_transaction
		 WHERE active AND next_run_at IS NOT NULL AND next_run_at <= $1
		 ORDER BY next_run_at ASC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// Advance records a run and schedules the next one. A nil next deactivates the rule.
func (r *RecurringRepository) Advance(ctx context.Context, ruleID int, ranAt time.Time, next *time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE recurring_transaction
		 SET last_run_at = $1, next_run_at = $2, active = ($2::timestamptz IS NOT NULL)
		 WHERE rule_id = $3`,
		ranAt, next, ruleID,
	)
	return err
}

func (r *RecurringRepository) Delete(ctx context.Context, ruleID int, userID int64) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM recurring_transaction WHERE rule_id = $1 AND user_id = $2`,
		ruleID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete rule %d: %w", ruleID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}
