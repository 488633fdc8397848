package models

import "time"

// RecurringRule creates a transaction from Draft on every occurrence of
// RecurrenceRule. Draft.Date is ignored; each occurrence supplies its own date.
type RecurringRule struct {
	RuleID         int        `json:"rule_id"`
	UserID         int64      `json:"user_id"`
	Draft          Draft      `json:"draft"`
	RecurrenceRule string     `json:"recurrence_rule"`
	DTStart        time.Time  `json:"dtstart"`
	NextRunAt      *time.Time `json:"next_run_at"`
	LastRunAt      *time.Time `json:"last_run_at"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
}
