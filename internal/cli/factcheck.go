package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reportlens/internal/cache"
	"github.com/ppiankov/reportlens/internal/factcheck"
	"github.com/ppiankov/reportlens/internal/model"
)

var (
	factCheckJSON    bool
	factCheckRefresh bool
)

// factCheckCmd represents the factcheck command
var factCheckCmd = &cobra.Command{
	Use:   "factcheck <statement>",
	Short: "Verify a statement against the uploaded report",
	Long: `Factcheck sends a statement to the analysis service, which splits it
into claims and scores how well the source document supports each one.

Example:
  reportlens factcheck "Revenue grew 12% YoY"
  reportlens factcheck "Revenue grew 12% YoY" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFactCheck,
}

func init() {
	rootCmd.AddCommand(factCheckCmd)
	factCheckCmd.Flags().BoolVar(&factCheckJSON, "json", false, "print the raw result as JSON")
	factCheckCmd.Flags().BoolVar(&factCheckRefresh, "refresh", false, "ignore a cached result")
}

func runFactCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	statement := strings.Join(args, " ")

	ctx, cancel := commandContext(cfg)
	defer cancel()

	key := cache.StatementFactCheckKey(statement)
	orchestrator := newOrchestrator(resultCache(cfg), newBackend(cfg))
	if factCheckRefresh {
		if err := orchestrator.Resync(key); err != nil {
			return err
		}
	}
	result, err := orchestrator.Verify(ctx, statement, key, func(s model.FactCheckState) {
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "fact-check: %s\n", s.Status)
		}
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if factCheckJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printFactCheck(out, result)
	return nil
}

func printFactCheck(w io.Writer, result *model.FactCheckResult) {
	summary := factcheck.Summary(result)
	fmt.Fprintf(w, "%s (average %.2f, %d claims)\n\n", summary.Label, summary.Average, summary.Claims)

	for i, c := range result.Claims {
		fmt.Fprintf(w, "%d. %s\n", i+1, c.Claim)
		fmt.Fprintf(w, "   %s, score %.2f, page %d\n", c.Confidence().Label(), c.Score, c.Page)
		if c.Evidence != "" {
			fmt.Fprintf(w, "   evidence: %s\n", c.Evidence)
		}
	}
}
