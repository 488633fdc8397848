package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hray3182/SpendWise/internal/models"
	"github.com/hray3182/SpendWise/internal/report"
)

var (
	errUsage       = errors.New("usage")
	errUnknownID   = errors.New("no transaction with that id")
	errAmbiguousID = errors.New("id prefix matches several transactions")
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// parseAmount accepts plain numbers with optional thousands separators and
// taka sign, rounded to two decimals.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "৳")
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be positive")
	}
	f, _ := d.Round(2).Float64()
	return f, nil
}

// matchCategory finds the longest run of leading words naming one of names,
// ignoring case. It returns the listed spelling and the number of words used.
func matchCategory(words []string, names []string) (string, int) {
	for n := len(words); n >= 1; n-- {
		candidate := strings.Join(words[:n], " ")
		for _, name := range names {
			if strings.EqualFold(name, candidate) {
				return name, n
			}
		}
	}
	return "", 0
}

func isDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}

type entry struct {
	Amount      float64
	Category    string
	Description string
	Date        string
}

// parseEntry reads "<amount> [category] <description> [YYYY-MM-DD]".
// Category is empty when no known category follows the amount; Date is empty
// when no date ends the arguments.
func parseEntry(args []string, categories []string) (entry, error) {
	if len(args) < 2 {
		return entry{}, errUsage
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return entry{}, err
	}
	e := entry{Amount: amount}

	rest := args[1:]
	if last := rest[len(rest)-1]; isDate(last) {
		e.Date = last
		rest = rest[:len(rest)-1]
	}
	if name, n := matchCategory(rest, categories); n > 0 {
		e.Category = name
		rest = rest[n:]
	}
	e.Description = strings.Join(rest, " ")
	if e.Description == "" {
		if e.Category == "" {
			return entry{}, errUsage
		}
		e.Description = e.Category
	}
	return e, nil
}

var editKeys = map[string]string{
	"amount":      "amount",
	"category":    "category",
	"cat":         "category",
	"description": "description",
	"desc":        "description",
	"date":        "date",
	"type":        "type",
}

// parseEdit reads key=value pairs. Words without "=" continue the previous
// value, so descriptions may contain spaces.
func parseEdit(args []string) (map[string]string, error) {
	fields := make(map[string]string)
	current := ""
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			if current == "" {
				return nil, fmt.Errorf("expected field=value, got %q", arg)
			}
			fields[current] = strings.TrimSpace(fields[current] + " " + arg)
			continue
		}
		name, known := editKeys[strings.ToLower(key)]
		if !known {
			return nil, fmt.Errorf("unknown field %q", key)
		}
		fields[name] = value
		current = name
	}
	if len(fields) == 0 {
		return nil, errUsage
	}
	return fields, nil
}

// applyEdit returns tx with fields applied. Categories are resolved against
// the list for the transaction's resulting type.
func applyEdit(tx models.Transaction, fields map[string]string, categories models.Categories) (models.Transaction, error) {
	if v, ok := fields["type"]; ok {
		t, err := models.ParseTransactionType(v)
		if err != nil {
			return tx, err
		}
		if t != tx.Type {
			tx.Type = t
			if _, ok := fields["category"]; !ok && !categories.Contains(t, tx.Category) {
				return tx, fmt.Errorf("category %q is not a %s category, set category= as well", tx.Category, t)
			}
		}
	}
	if v, ok := fields["amount"]; ok {
		amount, err := parseAmount(v)
		if err != nil {
			return tx, err
		}
		tx.Amount = amount
	}
	if v, ok := fields["description"]; ok {
		tx.Description = strings.TrimSpace(v)
	}
	if v, ok := fields["date"]; ok {
		if _, err := models.ParseDate(v); err != nil {
			return tx, err
		}
		tx.Date = strings.TrimSpace(v)
	}
	if v, ok := fields["category"]; ok {
		name, n := matchCategory(strings.Fields(v), categories.For(tx.Type))
		if n == 0 || n != len(strings.Fields(v)) {
			return tx, fmt.Errorf("unknown %s category %q", tx.Type, v)
		}
		tx.Category = name
	}
	if err := tx.Draft().Validate(); err != nil {
		return tx, err
	}
	return tx, nil
}

// resolveID finds the transaction whose id equals or uniquely starts with
// prefix.
func resolveID(prefix string, txs []models.Transaction) (models.Transaction, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return models.Transaction{}, errUsage
	}
	var found []models.Transaction
	for _, tx := range txs {
		if tx.ID == prefix {
			return tx, nil
		}
		if strings.HasPrefix(tx.ID, prefix) {
			found = append(found, tx)
		}
	}
	switch len(found) {
	case 0:
		return models.Transaction{}, errUnknownID
	case 1:
		return found[0], nil
	}
	return models.Transaction{}, errAmbiguousID
}

// parseRename splits "old name => new name".
func parseRename(args []string) (string, string, error) {
	oldName, newName, ok := strings.Cut(strings.Join(args, " "), "=>")
	oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
	if !ok || oldName == "" || newName == "" {
		return "", "", errUsage
	}
	return oldName, newName, nil
}

// parseReportArgs reads "[YYYY-MM | YYYY | from [to] | all] [all|income|expense] [category]".
func parseReportArgs(args []string, categories models.Categories, loc *time.Location) (report.Filter, error) {
	f := report.Filter{Type: report.All, Category: report.All}
	rest := args

	if len(rest) > 0 {
		first := rest[0]
		switch {
		case strings.EqualFold(first, report.All):
			rest = rest[1:]
		case isDate(first):
			from, _ := time.ParseInLocation(models.DateLayout, first, loc)
			f.From = &from
			rest = rest[1:]
			if len(rest) > 0 && isDate(rest[0]) {
				to, _ := time.ParseInLocation(models.DateLayout, rest[0], loc)
				if to.Before(from) {
					return f, fmt.Errorf("end date is before start date")
				}
				f.To = &to
				rest = rest[1:]
			}
		case len(first) == len("2006-01") && strings.Count(first, "-") == 1:
			from, to, err := report.MonthRange(first, loc)
			if err != nil {
				return f, err
			}
			f.From, f.To = &from, &to
			rest = rest[1:]
		default:
			if year, ok := report.ParseYear(first); ok {
				from, to := report.YearRange(year, loc)
				f.From, f.To = &from, &to
				rest = rest[1:]
			}
		}
	}

	if len(rest) > 0 {
		switch strings.ToLower(rest[0]) {
		case report.All:
			rest = rest[1:]
		case string(models.TransactionTypeIncome), string(models.TransactionTypeExpense):
			f.Type = strings.ToLower(rest[0])
			rest = rest[1:]
		}
	}

	if len(rest) > 0 {
		names := append(append([]string{}, categories.Expense...), categories.Income...)
		if f.Type != report.All {
			names = categories.For(models.TransactionType(f.Type))
		}
		name, n := matchCategory(rest, names)
		if n != len(rest) {
			return f, fmt.Errorf("unknown category %q", strings.Join(rest, " "))
		}
		f.Category = name
	}
	return f, nil
}
