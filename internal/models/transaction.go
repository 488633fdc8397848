package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// ParseTransactionType accepts the canonical names plus a few short aliases.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "in", "+":
		return TransactionTypeIncome, nil
	case "expense", "exp", "out", "-":
		return TransactionTypeExpense, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

const MaxDescriptionLength = 100

// Transaction is one entry of the per-user document. The JSON shape is the
// persisted document layout and must not change.
type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      float64         `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
}

// Time returns the parsed transaction date, or the zero time if it does not parse.
func (t Transaction) Time() time.Time {
	ts, err := ParseDate(t.Date)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Draft is a transaction that has not been assigned an id yet.
type Draft struct {
	Type        TransactionType `json:"type"`
	Amount      float64         `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
}

var ErrInvalidDraft = errors.New("invalid transaction")

// Validate checks form input before it reaches the store.
func (d Draft) Validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("%w: type must be income or expense", ErrInvalidDraft)
	}
	if d.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidDraft)
	}
	desc := strings.TrimSpace(d.Description)
	if n := utf8.RuneCountInString(desc); n < 1 || n > MaxDescriptionLength {
		return fmt.Errorf("%w: description must be 1-%d characters", ErrInvalidDraft, MaxDescriptionLength)
	}
	if strings.TrimSpace(d.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidDraft)
	}
	if _, err := ParseDate(d.Date); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	return nil
}

func (d Draft) WithID(id string) Transaction {
	return Transaction{
		ID:          id,
		Type:        d.Type,
		Amount:      d.Amount,
		Description: d.Description,
		Category:    d.Category,
		Date:        d.Date,
	}
}

func (t Transaction) Draft() Draft {
	return Draft{
		Type:        t.Type,
		Amount:      t.Amount,
		Description: t.Description,
		Category:    t.Category,
		Date:        t.Date,
	}
}

const DateLayout = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// ParseDate parses the ISO-8601 variants found in stored documents.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// SortByDateDesc orders transactions newest first. Entries sharing a date keep
// their relative order.
func SortByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Time().After(txs[j].Time())
	})
}
