// Package statements flattens the financial statements produced by the
// analysis service into uniform rows of {item, <year>: value}.
package statements

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrNoStatements is returned when a payload lacks the statements object
var ErrNoStatements = errors.New("payload has no statements object")

// Row is one line item. "item" holds the label, every other key is a period.
type Row map[string]any

// Item returns the row label
func (r Row) Item() string {
	s, _ := r["item"].(string)
	return s
}

// Value returns the numeric value for a period
func (r Row) Value(period string) (float64, bool) {
	switch v := r[period].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// BalanceSheet groups the balance sheet rows
type BalanceSheet struct {
	Flattened   []Row `json:"flattened"`
	Assets      []Row `json:"assets"`
	Liabilities []Row `json:"liabilities"`
	Derivatives []Row `json:"derivatives"`
}

// Statements is the flattened set of statements
type Statements struct {
	Income        []Row        `json:"income"`
	CashFlow      []Row        `json:"cash_flow"`
	BalanceSheet  BalanceSheet `json:"balance_sheet"`
	Equity        []Row        `json:"equity"`
	IncomeDates   []string     `json:"income_statement_dates,omitempty"`
	CashFlowDates []string     `json:"cashflow_statement_dates,omitempty"`
}

// Parse decodes a /financial-statements response body and flattens it
func Parse(body []byte) (*Statements, error) {
	var envelope map[string]any
	if err := json.Unmarshal(SanitizeJSON(body), &envelope); err != nil {
		return nil, fmt.Errorf("decode statements: %w", err)
	}

	raw, ok := envelope["statements"].(map[string]any)
	if !ok {
		return nil, ErrNoStatements
	}
	return Transform(raw), nil
}

// Transform flattens the statements object. Missing groups become empty lists
// and NaN-like values become null.
func Transform(raw map[string]any) *Statements {
	cleaned, _ := CleanNaNs(raw).(map[string]any)

	income := object(cleaned, "income_statement")
	cashflow := object(cleaned, "cashflow_statement")
	balance := object(object(cleaned, "balance_sheet"), "balance_sheet")
	equity := object(cleaned, "equity_statement")

	return &Statements{
		Income:   rows(income["ConsolidatedStatementsOfIncomeOrComprehensiveIncome"]),
		CashFlow: rows(cashflow["ConsolidatedStatementsOfCashFlows"]),
		BalanceSheet: BalanceSheet{
			Flattened:   rows(balance["main"]),
			Assets:      rows(balance["assets_group"]),
			Liabilities: rows(balance["liabilities_group"]),
			Derivatives: rows(balance["derivatives_group"]),
		},
		Equity:        rows(equity["equity_statement"]),
		IncomeDates:   strs(income["dates"]),
		CashFlowDates: strs(cashflow["dates"]),
	}
}

// CleanNaNs replaces NaN numbers and "NaN" strings with nil, recursively
func CleanNaNs(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = CleanNaNs(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CleanNaNs(val)
		}
		return out
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "nan", "-nan":
			return nil
		}
		return t
	default:
		return v
	}
}

// SanitizeJSON rewrites the non-standard NaN, Infinity and -Infinity tokens
// some encoders emit into null. String contents are left alone.
func SanitizeJSON(body []byte) []byte {
	out := make([]byte, 0, len(body))
	inString := false
	escaped := false

	for i := 0; i < len(body); i++ {
		c := body[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}

		if n := nonFiniteToken(body[i:]); n > 0 {
			out = append(out, "null"...)
			i += n - 1
			continue
		}
		out = append(out, c)
	}
	return out
}

func nonFiniteToken(b []byte) int {
	for _, tok := range []string{"-Infinity", "Infinity", "NaN"} {
		if len(b) >= len(tok) && string(b[:len(tok)]) == tok {
			return len(tok)
		}
	}
	return 0
}

// Years returns the numeric period keys present in rows, newest first
func Years(rows []Row) []string {
	seen := map[string]bool{}
	var years []string
	for _, r := range rows {
		for k := range r {
			if k == "item" || seen[k] {
				continue
			}
			if _, err := strconv.ParseFloat(k, 64); err != nil {
				continue
			}
			seen[k] = true
			years = append(years, k)
		}
	}
	sort.Slice(years, func(i, j int) bool {
		a, _ := strconv.ParseFloat(years[i], 64)
		b, _ := strconv.ParseFloat(years[j], 64)
		return a > b
	})
	return years
}

// KeyMetrics are the income statement figures used by the charts
type KeyMetrics struct {
	Revenue           float64 `json:"revenue"`
	CostOfSales       float64 `json:"cost_of_sales"`
	GrossProfit       float64 `json:"gross_profit"`
	OperatingExpenses float64 `json:"operating_expenses"`
	OperatingIncome   float64 `json:"operating_income"`
	OtherIncome       float64 `json:"other_income"`
	IncomeBeforeTaxes float64 `json:"income_before_taxes"`
	IncomeTaxes       float64 `json:"income_taxes"`
	NetIncome         float64 `json:"net_income"`
}

// GetKeyMetrics pulls the key metrics for year. Missing items count as 0.
func GetKeyMetrics(income []Row, year string) KeyMetrics {
	value := func(item string) float64 {
		for _, r := range income {
			if strings.EqualFold(r.Item(), item) {
				v, _ := r.Value(year)
				return v
			}
		}
		return 0
	}

	return KeyMetrics{
		Revenue:           value("Total net sales"),
		CostOfSales:       value("Total cost of sales"),
		GrossProfit:       value("Gross margin"),
		OperatingExpenses: value("Total operating expenses"),
		OperatingIncome:   value("Operating income"),
		OtherIncome:       value("Other income/(expense), net"),
		IncomeBeforeTaxes: value("Income before provision for income taxes"),
		IncomeTaxes:       value("Provision for income taxes"),
		NetIncome:         value("Net income"),
	}
}

func object(m map[string]any, key string) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	if o, ok := m[key].(map[string]any); ok {
		return o
	}
	return map[string]any{}
}

func rows(v any) []Row {
	list, _ := v.([]any)
	out := make([]Row, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Row(m))
		}
	}
	return out
}

func strs(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item == nil {
			continue
		}
		out = append(out, fmt.Sprint(item))
	}
	return out
}
