package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/reportlens/internal/server"
	"github.com/ppiankov/reportlens/internal/store"
	"github.com/ppiankov/reportlens/internal/upload"
)

var serveCheck bool

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve starts the JSON API used by the frontend.

Each browser session gets its own chat transcript, fact-check cache,
evidence viewer and section cache. Sessions idle for longer than
server.session_ttl are dropped.

Example:
  reportlens serve
  reportlens serve --addr :3000 --backend http://127.0.0.1:8000
  reportlens serve --check`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().String("uploads-dir", "", "directory for uploaded PDFs")
	serveCmd.Flags().Bool("prefetch", true, "warm all sections when a session starts")
	serveCmd.Flags().BoolVar(&serveCheck, "check", false, "check the analysis service and chat provider, then exit")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.uploads_dir", serveCmd.Flags().Lookup("uploads-dir"))
	_ = viper.BindPFlag("server.prefetch", serveCmd.Flags().Lookup("prefetch"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := newBackend(cfg)
	provider, err := newChatProvider(cfg, client)
	if err != nil {
		return err
	}

	if serveCheck {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := client.Health(ctx); err != nil {
			return fmt.Errorf("analysis service at %s: %w", client.BaseURL(), err)
		}
		fmt.Printf("analysis service: ok (%s)\n", client.BaseURL())
		if !provider.IsAvailable(ctx) {
			return fmt.Errorf("chat provider %s is not available", provider.Name())
		}
		fmt.Printf("chat provider: ok (%s)\n", provider.Name())
		return nil
	}

	registry, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open report registry: %w", err)
	}
	defer registry.Close()

	srv, err := server.New(server.Options{
		Backend:    client,
		Chat:       provider,
		Uploads:    upload.NewStore(cfg.Server.UploadsDir, cfg.Server.MaxUpload),
		Registry:   registry,
		SessionTTL: cfg.Server.SessionTTL,
		Prefetch:   cfg.Server.Prefetch,
		Workers:    cfg.Concurrency.Workers,
	})
	if err != nil {
		return err
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Analysis service: %s\n", client.BaseURL())
		fmt.Fprintf(os.Stderr, "Uploads: %s\n", cfg.Server.UploadsDir)
		fmt.Fprintf(os.Stderr, "Registry: %s\n", registry.Path())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
