package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reportlens/internal/model"
	"github.com/ppiankov/reportlens/internal/store"
	"github.com/ppiankov/reportlens/internal/upload"
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Store a report PDF in the uploads directory",
	Long: `Upload validates a PDF (at most 10MB), copies it into the uploads
directory and records it in the report registry.

Example:
  reportlens upload annual-report-2023.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var reportsDelete string

// reportsCmd represents the reports command
var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List uploaded reports",
	Args:  cobra.NoArgs,
	RunE:  runReports,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.Flags().StringVar(&reportsDelete, "delete", "", "remove the report with this id and its file")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := args[0]

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	uploads := upload.NewStore(cfg.Server.UploadsDir, cfg.Server.MaxUpload)
	if err := uploads.Validate(path, mime.TypeByExtension(filepath.Ext(path)), info.Size()); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := uploads.Save(filepath.Base(path), f)
	if err != nil {
		return err
	}

	registry, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open report registry: %w", err)
	}
	defer registry.Close()

	if err := registry.Record(context.Background(), report); err != nil {
		return err
	}

	fmt.Printf("Stored %s (%d bytes, sha256 %s)\n", report.Filename, report.Size, report.SHA256[:12])
	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "id: %s\n", report.ID)
	}
	return nil
}

func runReports(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open report registry: %w", err)
	}
	defer registry.Close()
	ctx := context.Background()

	if reportsDelete != "" {
		report, err := registry.Get(ctx, reportsDelete)
		if err != nil {
			return err
		}
		if err := upload.NewStore(cfg.Server.UploadsDir, 0).Remove(report.Filename); err != nil {
			return err
		}
		if err := registry.Delete(ctx, report.ID); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", report.Filename)
		return nil
	}

	reports, err := registry.List(ctx, 0)
	if err != nil {
		return err
	}
	printReports(reports)
	return nil
}

func printReports(reports []model.Report) {
	if len(reports) == 0 {
		fmt.Println("No reports uploaded")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tSIZE\tUPLOADED")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Filename, r.Size, r.UploadedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
