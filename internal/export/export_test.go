package export

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hray3182/SpendWise/internal/models"
	"github.com/hray3182/SpendWise/internal/report"
)

func TestFilename(t *testing.T) {
	now := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	if got := Filename(now); got != "expense-tracker-data-2024-05-01.json" {
		t.Fatalf("Filename = %q", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	data := models.DefaultAppData()
	data.Transactions = []models.Transaction{
		{ID: "b", Type: models.TransactionTypeExpense, Amount: 12.5, Description: "Tea", Category: "Food", Date: "2024-05-02"},
		{ID: "a", Type: models.TransactionTypeIncome, Amount: 1000, Description: "May", Category: "Salary", Date: "2024-05-01T09:00:00Z"},
	}
	data.Categories.Expense = append(data.Categories.Expense, "Pets")

	b, err := Snapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	again, err := Snapshot(data)
	if err != nil || !bytes.Equal(b, again) {
		t.Fatal("snapshot output is not deterministic")
	}

	got, err := ParseSnapshot(b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, data) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, data)
	}
}

func TestParseSnapshotRejectsBadShape(t *testing.T) {
	cases := map[string]string{
		"not json":        `{`,
		"missing fields":  `{"transactions": []}`,
		"missing id":      `{"transactions": [{"type":"expense"}], "categories": {"income":[],"expense":[]}}`,
		"duplicate id":    `{"transactions": [` + txJSON(`"id":"x"`) + `,` + txJSON(`"id":"x"`) + `], "categories": {"income":[],"expense":[]}}`,
		"bad type":        `{"transactions": [{"id":"x","type":"loan"}], "categories": {"income":[],"expense":[]}}`,
		"negative amount": `{"transactions": [` + txJSON(`"id":"x","amount":-5`) + `], "categories": {"income":[],"expense":[]}}`,
		"zero amount":     `{"transactions": [` + txJSON(`"id":"x","amount":0`) + `], "categories": {"income":[],"expense":[]}}`,
		"no description":  `{"transactions": [` + txJSON(`"id":"x","description":""`) + `], "categories": {"income":[],"expense":[]}}`,
		"no category":     `{"transactions": [` + txJSON(`"id":"x","category":" "`) + `], "categories": {"income":[],"expense":[]}}`,
		"bad date":        `{"transactions": [` + txJSON(`"id":"x","date":"nope"`) + `], "categories": {"income":[],"expense":[]}}`,
	}
	for name, in := range cases {
		if _, err := ParseSnapshot([]byte(in)); !errors.Is(err, ErrInvalidSnapshot) {
			t.Errorf("%s: expected ErrInvalidSnapshot, got %v", name, err)
		}
	}
}

// txJSON renders a valid expense with fields overriding the defaults; later keys
// win when decoding.
func txJSON(fields string) string {
	return `{"type":"expense","amount":50,"description":"Coffee","category":"Food","date":"2024-05-01",` + fields + `}`
}

func TestParseSnapshotDeduplicatesCategories(t *testing.T) {
	in := `{"transactions": [` + txJSON(`"id":"x"`) + `], "categories": {"income":["Salary","Salary",""],"expense":["Food","Pets","Food"]}}`
	got, err := ParseSnapshot([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	want := models.Categories{Income: []string{"Salary"}, Expense: []string{"Food", "Pets"}}
	if !reflect.DeepEqual(got.Categories, want) {
		t.Fatalf("categories = %+v, want %+v", got.Categories, want)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].Amount != 50 {
		t.Fatalf("transactions = %+v", got.Transactions)
	}
}

func TestXLSX(t *testing.T) {
	txs := []models.Transaction{
		{ID: "1", Type: models.TransactionTypeExpense, Amount: 50, Description: "Coffee", Category: "Food", Date: "2024-05-01"},
		{ID: "2", Type: models.TransactionTypeIncome, Amount: 200, Description: "Gig", Category: "Freelance", Date: "2024-05-03T10:00:00Z"},
	}
	res := report.Apply(txs, report.Filter{})
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	b, err := XLSX(res, &from, nil)
	if err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(reportSheet)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0][0] != "Date" || rows[1][1] != "Coffee" || rows[2][0] != "2024-05-03" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if last := rows[len(rows)-1]; last[3] != "Balance" || last[4] != "150" {
		t.Fatalf("unexpected totals row: %v", last)
	}

	if got := ReportFilename(&from, nil); got != "report_2024-05-01_-_today.xlsx" {
		t.Fatalf("ReportFilename = %q", got)
	}
}
