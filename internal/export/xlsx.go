package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hray3182/SpendWise/internal/models"
	"github.com/hray3182/SpendWise/internal/report"
)

const reportSheet = "Reports"

// ReportFilename names an XLSX report after its date range. Missing bounds
// are written as "start" and "today".
func ReportFilename(from, to *time.Time) string {
	return fmt.Sprintf("report_%s_-_%s.xlsx", boundLabel(from, "start"), boundLabel(to, "today"))
}

func boundLabel(t *time.Time, fallback string) string {
	if t == nil {
		return fallback
	}
	return t.Format(models.DateLayout)
}

// XLSX writes the filtered transactions of res, followed by their totals, to
// a single-sheet workbook.
func XLSX(res report.Result, from, to *time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []any{"Date", "Description", "Category", "Type", "Amount"}
	if err := f.SetSheetRow(reportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(reportSheet, "A1", "E1", bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	row := 2
	for _, tx := range res.Transactions {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		date := tx.Date
		if t := tx.Time(); !t.IsZero() {
			date = t.Format(models.DateLayout)
		}
		values := []any{date, tx.Description, tx.Category, string(tx.Type), tx.Amount}
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		row++
	}

	row++
	totals := [][]any{
		{"Total income", res.Income.InexactFloat64()},
		{"Total expenses", res.Expense.InexactFloat64()},
		{"Balance", res.Balance.InexactFloat64()},
	}
	for _, t := range totals {
		cell, err := excelize.CoordinatesToCellName(4, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(reportSheet, cell, &t); err != nil {
			return nil, fmt.Errorf("failed to write totals: %w", err)
		}
		row++
	}

	if err := f.SetColWidth(reportSheet, "A", "E", 18); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
