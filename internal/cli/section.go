package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reportlens/internal/model"
	"github.com/ppiankov/reportlens/internal/section"
)

var (
	sectionFactCheck bool
	sectionAll       bool
	sectionHTML      bool
	sectionRefresh   bool
)

// sectionCmd represents the section command
var sectionCmd = &cobra.Command{
	Use:   "section [executive-summary|market-analysis|risk-factors]",
	Short: "Generate and print a report section",
	Long: `Section asks the analysis service for an AI-generated section of the
uploaded report and prints it block by block.

Example:
  reportlens section market-analysis
  reportlens section risk-factors --fact-check
  reportlens section --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSection,
}

func init() {
	rootCmd.AddCommand(sectionCmd)
	sectionCmd.Flags().BoolVar(&sectionFactCheck, "fact-check", false, "verify the section after loading it")
	sectionCmd.Flags().BoolVar(&sectionAll, "all", false, "load every section concurrently")
	sectionCmd.Flags().BoolVar(&sectionHTML, "html", false, "print rendered HTML instead of text")
	sectionCmd.Flags().BoolVar(&sectionRefresh, "refresh", false, "drop cached results and generate again")
}

func runSection(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var targets []model.Section
	switch {
	case sectionAll:
		targets = model.Sections
	case len(args) == 1:
		sec, err := model.ParseSection(args[0])
		if err != nil {
			return err
		}
		targets = []model.Section{sec}
	default:
		return fmt.Errorf("name a section or pass --all")
	}

	ctx, cancel := commandContext(cfg)
	defer cancel()

	svc := newSectionService(resultCache(cfg), newBackend(cfg))

	if sectionRefresh {
		for _, sec := range targets {
			if _, err := svc.Resync(ctx, sec); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", sec, err)
			}
		}
	} else if len(targets) > 1 {
		for _, res := range svc.Prefetch(ctx, cfg.Concurrency.Workers) {
			if res.Err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", res.Name, res.Err)
			} else if cfg.Output.Verbose {
				fmt.Fprintf(os.Stderr, "%s: loaded\n", res.Name)
			}
		}
	}

	failed := 0
	for _, sec := range targets {
		if err := printSection(ctx, cmd.OutOrStdout(), svc, sec); err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", section.LoadErrorMessage(sec))
			if cfg.Output.Verbose {
				fmt.Fprintf(os.Stderr, "  %v\n", err)
			}
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sections failed", failed, len(targets))
	}
	return nil
}

func printSection(ctx context.Context, w io.Writer, svc *section.Service, sec model.Section) error {
	view, err := svc.Load(ctx, sec)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "== %s ==\n\n", view.Title)
	for _, b := range view.Blocks {
		if b.Title != "" {
			fmt.Fprintf(w, "## %s\n", b.Title)
		}
		if sectionHTML {
			fmt.Fprintln(w, b.HTML)
			continue
		}
		for _, p := range b.Paragraphs {
			text, err := section.PlainText(p)
			if err != nil {
				text = p
			}
			fmt.Fprintf(w, "%s\n\n", text)
		}
	}

	if sectionFactCheck {
		fc, err := svc.FactCheck(ctx, sec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", section.FactCheckErrorMessage(sec))
			return err
		}
		printFactCheck(w, fc.Result)
		fmt.Fprintln(w)
	}
	return nil
}
