// Package report derives totals, series and category breakdowns from a
// snapshot's transactions. Sums are computed with decimal arithmetic.
package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hray3182/SpendWise/internal/models"
)

const (
	All = "all"

	// EndYear is the last year offered by AvailableYears.
	EndYear = 2030
)

// Filter selects transactions for a report. From and To are inclusive whole
// days; nil bounds are open. Type and Category accept All.
type Filter struct {
	From     *time.Time
	To       *time.Time
	Type     string
	Category string
}

type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

type Result struct {
	Transactions []models.Transaction
	Totals
}

// LocalTime returns the transaction's moment in loc. Date-only values are
// treated as midnight in loc rather than in UTC.
func LocalTime(tx models.Transaction, loc *time.Location) time.Time {
	s := strings.TrimSpace(tx.Date)
	if len(s) == len(models.DateLayout) {
		if t, err := time.ParseInLocation(models.DateLayout, s, loc); err == nil {
			return t
		}
	}
	return tx.Time().In(loc)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func (f Filter) match(tx models.Transaction) bool {
	if f.From != nil || f.To != nil {
		loc := time.UTC
		if f.From != nil {
			loc = f.From.Location()
		} else if f.To != nil {
			loc = f.To.Location()
		}
		at := LocalTime(tx, loc)
		if f.From != nil && at.Before(startOfDay(*f.From)) {
			return false
		}
		if f.To != nil && at.After(endOfDay(*f.To)) {
			return false
		}
	}
	if f.Type != "" && f.Type != All && string(tx.Type) != f.Type {
		return false
	}
	if f.Category != "" && f.Category != All && tx.Category != f.Category {
		return false
	}
	return true
}

// Apply filters txs, keeping their order, and totals the result.
func Apply(txs []models.Transaction, f Filter) Result {
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.match(tx) {
			out = append(out, tx)
		}
	}
	return Result{Transactions: out, Totals: Summarize(out)}
}

func Summarize(txs []models.Transaction) Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		amount := decimal.NewFromFloat(tx.Amount)
		switch tx.Type {
		case models.TransactionTypeIncome:
			income = income.Add(amount)
		case models.TransactionTypeExpense:
			expense = expense.Add(amount)
		}
	}
	return Totals{Income: income, Expense: expense, Balance: income.Sub(expense)}
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthlySummary totals the transactions in the calendar month of now.
func MonthlySummary(txs []models.Transaction, now time.Time) Totals {
	var month []models.Transaction
	for _, tx := range txs {
		if sameMonth(LocalTime(tx, now.Location()), now) {
			month = append(month, tx)
		}
	}
	return Summarize(month)
}

type DailyPoint struct {
	Date    time.Time
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// DailySeries returns one point per day for the last days days ending today,
// oldest first. Days without transactions are zero.
func DailySeries(txs []models.Transaction, now time.Time, days int) []DailyPoint {
	if days <= 0 {
		return nil
	}
	today := startOfDay(now)
	first := today.AddDate(0, 0, -(days - 1))
	points := make([]DailyPoint, days)
	index := make(map[string]int, days)
	for i := range points {
		d := first.AddDate(0, 0, i)
		points[i] = DailyPoint{Date: d, Income: decimal.Zero, Expense: decimal.Zero}
		index[d.Format(models.DateLayout)] = i
	}

	for _, tx := range txs {
		at := LocalTime(tx, now.Location())
		i, ok := index[at.Format(models.DateLayout)]
		if !ok {
			continue
		}
		amount := decimal.NewFromFloat(tx.Amount)
		if tx.Type == models.TransactionTypeIncome {
			points[i].Income = points[i].Income.Add(amount)
		} else {
			points[i].Expense = points[i].Expense.Add(amount)
		}
	}
	return points
}

type CategoryStat struct {
	Category string
	Amount   decimal.Decimal
	// Share is the percentage of the total, 0..100.
	Share float64
}

// ByCategory sums the expenses of txs per category, largest first.
func ByCategory(txs []models.Transaction) []CategoryStat {
	sums := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Type != models.TransactionTypeExpense {
			continue
		}
		amount := decimal.NewFromFloat(tx.Amount)
		sums[tx.Category] = sums[tx.Category].Add(amount)
		total = total.Add(amount)
	}

	stats := make([]CategoryStat, 0, len(sums))
	for name, sum := range sums {
		share := 0.0
		if total.IsPositive() {
			share, _ = sum.Div(total).Mul(decimal.NewFromInt(100)).Float64()
		}
		stats = append(stats, CategoryStat{Category: name, Amount: sum, Share: share})
	}
	sort.Slice(stats, func(i, j int) bool {
		if c := stats[i].Amount.Cmp(stats[j].Amount); c != 0 {
			return c > 0
		}
		return stats[i].Category < stats[j].Category
	})
	return stats
}

// ExpenseByCategory breaks down the current month's expenses.
func ExpenseByCategory(txs []models.Transaction, now time.Time) []CategoryStat {
	var month []models.Transaction
	for _, tx := range txs {
		if sameMonth(LocalTime(tx, now.Location()), now) {
			month = append(month, tx)
		}
	}
	return ByCategory(month)
}

// AvailableYears lists the selectable report years, newest first, from
// endYear down to the earliest transaction year or the current year.
func AvailableYears(txs []models.Transaction, now time.Time, endYear int) []int {
	start := now.Year()
	for _, tx := range txs {
		if y := LocalTime(tx, now.Location()).Year(); y > 1 && y < start {
			start = y
		}
	}
	var years []int
	for y := endYear; y >= start; y-- {
		years = append(years, y)
	}
	return years
}

// MonthRange parses YYYY-MM and returns the first and last day of that month.
func MonthRange(s string, loc *time.Location) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return t, endOfDay(t.AddDate(0, 1, -1)), nil
}

func YearRange(year int, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return from, endOfDay(time.Date(year, time.December, 31, 0, 0, 0, 0, loc))
}

// ParseYear accepts a four digit year.
func ParseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	return y, err == nil
}

// Recent returns the n newest transactions.
func Recent(txs []models.Transaction, n int) []models.Transaction {
	out := append([]models.Transaction{}, txs...)
	models.SortByDateDesc(out)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// FormatAmount renders an amount with two decimals and the taka sign.
func FormatAmount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "৳" + groupThousands(d.StringFixed(2))
}

func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "৳0.00"
	}
	return FormatAmount(decimal.NewFromFloat(f))
}

func groupThousands(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
