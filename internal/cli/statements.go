package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reportlens/internal/statements"
)

var (
	statementsYear string
	statementsJSON string
)

// statementsCmd represents the statements command
var statementsCmd = &cobra.Command{
	Use:   "statements",
	Short: "Fetch and flatten the financial statements",
	Long: `Statements fetches the financial statements extracted from the uploaded
report, normalizes NaN values and prints the key income metrics.

Example:
  reportlens statements
  reportlens statements --year 2022
  reportlens statements --json statements.json`,
	Args: cobra.NoArgs,
	RunE: runStatements,
}

func init() {
	rootCmd.AddCommand(statementsCmd)
	statementsCmd.Flags().StringVar(&statementsYear, "year", "", "fiscal year (default: most recent)")
	statementsCmd.Flags().StringVar(&statementsJSON, "json", "", "write the flattened statements to this path")
}

func runStatements(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cfg)
	defer cancel()

	body, err := newBackend(cfg).FinancialStatements(ctx)
	if err != nil {
		return fmt.Errorf("fetch statements: %w", err)
	}
	st, err := statements.Parse(body)
	if err != nil {
		return err
	}

	if statementsJSON != "" {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("encode statements: %w", err)
		}
		if err := os.WriteFile(statementsJSON, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", statementsJSON, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", statementsJSON)
	}

	years := statements.Years(st.Income)
	if len(years) == 0 {
		return fmt.Errorf("no fiscal years in the income statement")
	}
	year := statementsYear
	if year == "" {
		year = years[0]
	}

	m := statements.GetKeyMetrics(st.Income, year)
	fmt.Printf("Fiscal year %s (available: %v)\n\n", year, years)
	printMetric("Revenue", m.Revenue)
	printMetric("Cost of sales", m.CostOfSales)
	printMetric("Gross profit", m.GrossProfit)
	printMetric("Operating expenses", m.OperatingExpenses)
	printMetric("Operating income", m.OperatingIncome)
	printMetric("Income before taxes", m.IncomeBeforeTaxes)
	printMetric("Income taxes", m.IncomeTaxes)
	printMetric("Net income", m.NetIncome)
	fmt.Printf("\n%d income, %d cash flow, %d balance sheet, %d equity rows\n",
		len(st.Income), len(st.CashFlow), len(st.BalanceSheet.Flattened), len(st.Equity))
	return nil
}

func printMetric(name string, v float64) {
	fmt.Printf("  %-20s %16.2f\n", name, v)
}
