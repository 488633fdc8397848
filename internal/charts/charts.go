// Package charts renders report data as PNG images.
package charts

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/hray3182/SpendWise/internal/report"
)

// MinShare is the smallest category share, in percent, drawn as a pie slice.
const MinShare = 1.0

const maxBars = 10

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func amountFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return ""
}

func background() chart.Style {
	return chart.Style{
		Padding: chart.Box{
			Top:    50,
			Left:   50,
			Right:  50,
			Bottom: 50,
		},
		FillColor: chart.ColorWhite,
	}
}

func axisStyle() chart.Style {
	return chart.Style{
		FontSize:  12,
		FontColor: chart.ColorBlack,
	}
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// yRange fixes the value axis from zero to just above peak.
func yRange(peak float64) *chart.ContinuousRange {
	return &chart.ContinuousRange{Min: 0, Max: peak * 1.1}
}

// IncomeExpense draws daily income and expense lines. It returns nil when the
// series has no amounts.
func (g *Generator) IncomeExpense(series []report.DailyPoint) ([]byte, error) {
	if len(series) < 2 {
		return nil, nil
	}

	xValues := make([]time.Time, len(series))
	incomeValues := make([]float64, len(series))
	expenseValues := make([]float64, len(series))
	peak := 0.0
	for i, p := range series {
		xValues[i] = p.Date
		incomeValues[i] = toFloat(p.Income)
		expenseValues[i] = toFloat(p.Expense)
		peak = max(peak, incomeValues[i], expenseValues[i])
	}
	if peak == 0 {
		return nil, nil
	}

	graph := chart.Chart{
		Title:      "Income vs Expense",
		Width:      1200,
		Height:     600,
		Background: background(),
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02 Jan"),
			Style:          axisStyle(),
		},
		YAxis: chart.YAxis{
			ValueFormatter: amountFormatter,
			Style:          axisStyle(),
			Range:          yRange(peak),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Income",
				XValues: xValues,
				YValues: incomeValues,
				Style: chart.Style{
					StrokeColor: chart.ColorGreen,
					StrokeWidth: 2,
				},
			},
			chart.TimeSeries{
				Name:    "Expense",
				XValues: xValues,
				YValues: expenseValues,
				Style: chart.Style{
					StrokeColor: chart.ColorRed,
					StrokeWidth: 2,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, axisStyle()),
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render income/expense chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// ExpenseByCategory draws a pie of category shares. Slices under MinShare
// percent are left out.
func (g *Generator) ExpenseByCategory(stats []report.CategoryStat) ([]byte, error) {
	values := make([]chart.Value, 0, len(stats))
	for _, s := range stats {
		if s.Share < MinShare || !s.Amount.IsPositive() {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %.0f (%.1f%%)", s.Category, toFloat(s.Amount), s.Share),
			Value: toFloat(s.Amount),
			Style: axisStyle(),
		})
	}
	if len(values) == 0 {
		return nil, nil
	}

	pie := chart.PieChart{
		Title:      "Expenses by category",
		Width:      800,
		Height:     800,
		Values:     values,
		Background: background(),
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render category chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// Spending draws one bar per expense category of a filtered report, the
// largest categories first.
func (g *Generator) Spending(res report.Result) ([]byte, error) {
	stats := report.ByCategory(res.Transactions)
	if len(stats) > maxBars {
		stats = stats[:maxBars]
	}

	bars := make([]chart.Value, 0, len(stats))
	peak := 0.0
	for _, s := range stats {
		amount := toFloat(s.Amount)
		if amount <= 0 {
			continue
		}
		peak = max(peak, amount)
		bars = append(bars, chart.Value{
			Label: s.Category,
			Value: amount,
			Style: chart.Style{
				StrokeColor: chart.ColorRed,
				FillColor:   chart.ColorRed.WithAlpha(160),
				FontSize:    10,
				FontColor:   chart.ColorBlack,
			},
		})
	}
	if len(bars) == 0 {
		return nil, nil
	}

	graph := chart.BarChart{
		Title: "Spending by category",
		TitleStyle: chart.Style{
			FontSize:  14,
			FontColor: chart.ColorBlack,
		},
		Width:      max(600, 160+len(bars)*100),
		Height:     600,
		BarWidth:   60,
		Background: background(),
		YAxis: chart.YAxis{
			ValueFormatter: amountFormatter,
			Style:          axisStyle(),
			Range:          yRange(peak),
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render spending chart: %w", err)
	}
	return buffer.Bytes(), nil
}
