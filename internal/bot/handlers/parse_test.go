package handlers

import (
	"errors"
	"testing"
	"time"

	"github.com/hray3182/SpendWise/internal/models"
	"github.com/hray3182/SpendWise/internal/report"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"250", 250, false},
		{"1,250.50", 1250.5, false},
		{"৳99.999", 100, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseAmount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseEntry(t *testing.T) {
	expense := models.DefaultCategories().Expense

	tests := []struct {
		name string
		args []string
		want entry
	}{
		{
			name: "category and description",
			args: []string{"250", "food", "Lunch", "with", "team"},
			want: entry{Amount: 250, Category: "Food", Description: "Lunch with team"},
		},
		{
			name: "multi word category",
			args: []string{"12000", "House", "Rent", "May", "2024-05-01"},
			want: entry{Amount: 12000, Category: "House Rent", Description: "May", Date: "2024-05-01"},
		},
		{
			name: "no category",
			args: []string{"40", "bus", "ticket"},
			want: entry{Amount: 40, Description: "bus ticket"},
		},
		{
			name: "category only",
			args: []string{"40", "Transport"},
			want: entry{Amount: 40, Category: "Transport", Description: "Transport"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEntry(tt.args, expense)
			if err != nil {
				t.Fatalf("parseEntry() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseEntry() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := parseEntry([]string{"250"}, expense); !errors.Is(err, errUsage) {
		t.Errorf("amount only: error = %v, want errUsage", err)
	}
	if _, err := parseEntry([]string{"x", "Food"}, expense); err == nil {
		t.Error("bad amount accepted")
	}
}

func TestParseEdit(t *testing.T) {
	fields, err := parseEdit([]string{"amount=300", "desc=Dinner", "at", "home", "cat=Food"})
	if err != nil {
		t.Fatalf("parseEdit() error = %v", err)
	}
	want := map[string]string{"amount": "300", "description": "Dinner at home", "category": "Food"}
	if len(fields) != len(want) {
		t.Fatalf("parseEdit() = %v, want %v", fields, want)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %q, want %q", k, fields[k], v)
		}
	}

	if _, err := parseEdit([]string{"colour=red"}); err == nil {
		t.Error("unknown field accepted")
	}
	if _, err := parseEdit([]string{"dangling"}); err == nil {
		t.Error("value without field accepted")
	}
}

func TestApplyEdit(t *testing.T) {
	categories := models.DefaultCategories()
	tx := models.Transaction{ID: "abc", Type: models.TransactionTypeExpense, Amount: 50, Description: "Lunch", Category: "Food", Date: "2024-05-01"}

	got, err := applyEdit(tx, map[string]string{"amount": "75", "category": "house rent", "date": "2024-05-02"}, categories)
	if err != nil {
		t.Fatalf("applyEdit() error = %v", err)
	}
	if got.Amount != 75 || got.Category != "House Rent" || got.Date != "2024-05-02" || got.ID != "abc" {
		t.Errorf("applyEdit() = %+v", got)
	}

	if _, err := applyEdit(tx, map[string]string{"type": "income"}, categories); err == nil {
		t.Error("type change kept an expense category")
	}
	got, err = applyEdit(tx, map[string]string{"type": "income", "category": "Salary"}, categories)
	if err != nil || got.Type != models.TransactionTypeIncome || got.Category != "Salary" {
		t.Errorf("type change = %+v, %v", got, err)
	}
	if _, err := applyEdit(tx, map[string]string{"category": "Nope"}, categories); err == nil {
		t.Error("unknown category accepted")
	}
	if _, err := applyEdit(tx, map[string]string{"description": " "}, categories); err == nil {
		t.Error("empty description accepted")
	}
}

func TestResolveID(t *testing.T) {
	txs := []models.Transaction{{ID: "abcd1234"}, {ID: "abce5678"}, {ID: "ffff0000"}}

	got, err := resolveID("abcd", txs)
	if err != nil || got.ID != "abcd1234" {
		t.Errorf("resolveID(abcd) = %v, %v", got.ID, err)
	}
	if _, err := resolveID("abc", txs); !errors.Is(err, errAmbiguousID) {
		t.Errorf("resolveID(abc) error = %v, want ambiguous", err)
	}
	if _, err := resolveID("0000", txs); !errors.Is(err, errUnknownID) {
		t.Errorf("resolveID(0000) error = %v, want unknown", err)
	}
}

func TestParseRename(t *testing.T) {
	oldName, newName, err := parseRename([]string{"House", "Rent", "=>", "Rent"})
	if err != nil || oldName != "House Rent" || newName != "Rent" {
		t.Errorf("parseRename() = %q, %q, %v", oldName, newName, err)
	}
	if _, _, err := parseRename([]string{"Food"}); err == nil {
		t.Error("missing arrow accepted")
	}
}

func TestParseReportArgs(t *testing.T) {
	loc := time.UTC
	categories := models.DefaultCategories()

	f, err := parseReportArgs(nil, categories, loc)
	if err != nil || f.From != nil || f.Type != report.All || f.Category != report.All {
		t.Errorf("no args = %+v, %v", f, err)
	}

	f, err = parseReportArgs([]string{"2024-05", "expense", "house", "rent"}, categories, loc)
	if err != nil {
		t.Fatalf("month filter error = %v", err)
	}
	if f.From == nil || f.From.Format(models.DateLayout) != "2024-05-01" || f.To.Format(models.DateLayout) != "2024-05-31" {
		t.Errorf("month range = %v..%v", f.From, f.To)
	}
	if f.Type != "expense" || f.Category != "House Rent" {
		t.Errorf("type/category = %q/%q", f.Type, f.Category)
	}

	f, err = parseReportArgs([]string{"2023"}, categories, loc)
	if err != nil || f.From.Year() != 2023 || f.To.Month() != time.December {
		t.Errorf("year filter = %+v, %v", f, err)
	}

	f, err = parseReportArgs([]string{"2024-01-10", "2024-01-20", "income"}, categories, loc)
	if err != nil || f.From.Day() != 10 || f.To.Day() != 20 || f.Type != "income" {
		t.Errorf("date range = %+v, %v", f, err)
	}

	if _, err := parseReportArgs([]string{"2024-01-20", "2024-01-10"}, categories, loc); err == nil {
		t.Error("reversed range accepted")
	}
	if _, err := parseReportArgs([]string{"income", "Food"}, categories, loc); err == nil {
		t.Error("expense category accepted for income filter")
	}
}
