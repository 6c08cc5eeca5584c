package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/reportlens/internal/model"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reportlens",
	Short: "reportlens - financial report analysis backend",
	Long: `reportlens serves the financial report analysis frontend.

It keeps per-session chat transcripts, fact-check results and section
summaries, talks to the analysis service that reads the uploaded report,
and verifies AI-generated statements against the source document.

Fact-check scores tell you how well the document supports a statement.
They do not tell you whether the statement is true.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("reportlens %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.reportlens/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("backend", "", "analysis service base URL")
	rootCmd.PersistentFlags().Bool("cache", false, "keep fact-check and section results on disk between runs")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("backend.base_url", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("cache.enabled", rootCmd.PersistentFlags().Lookup("cache"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env, the config file and REPORTLENS_* variables
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error reading .env: %v\n", err)
	}

	setDefaults(model.DefaultConfig())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".reportlens"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// REPORTLENS_BACKEND_BASE_URL overrides backend.base_url
	viper.SetEnvPrefix("REPORTLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so environment variables can override it
func setDefaults(cfg *model.Config) {
	viper.SetDefault("server.addr", cfg.Server.Addr)
	viper.SetDefault("server.uploads_dir", cfg.Server.UploadsDir)
	viper.SetDefault("server.db_path", cfg.Server.DBPath)
	viper.SetDefault("server.session_ttl", cfg.Server.SessionTTL)
	viper.SetDefault("server.prefetch", cfg.Server.Prefetch)
	viper.SetDefault("server.max_upload_bytes", cfg.Server.MaxUpload)

	viper.SetDefault("backend.base_url", cfg.Backend.BaseURL)
	viper.SetDefault("backend.timeout", cfg.Backend.Timeout)
	viper.SetDefault("backend.user_agent", cfg.Backend.UserAgent)
	viper.SetDefault("backend.max_body_bytes", cfg.Backend.MaxBodyBytes)
	viper.SetDefault("backend.http_proxy", "")
	viper.SetDefault("backend.https_proxy", "")
	viper.SetDefault("backend.no_proxy", "")

	viper.SetDefault("chat.provider", cfg.Chat.Provider)
	viper.SetDefault("chat.model", cfg.Chat.Model)
	viper.SetDefault("chat.api_key", "")
	viper.SetDefault("chat.base_url", "")
	viper.SetDefault("chat.timeout", cfg.Chat.Timeout)
	viper.SetDefault("chat.max_tokens", cfg.Chat.MaxTokens)

	viper.SetDefault("rate_limiting.requests_per_second", cfg.RateLimiting.RequestsPerSecond)
	viper.SetDefault("rate_limiting.burst_size", cfg.RateLimiting.BurstSize)
	viper.SetDefault("concurrency.workers", cfg.Concurrency.Workers)
	viper.SetDefault("cache.enabled", cfg.Cache.Enabled)
	viper.SetDefault("cache.dir", cfg.Cache.Dir)
	viper.SetDefault("cache.ttl", cfg.Cache.TTL)
	viper.SetDefault("output.verbose", cfg.Output.Verbose)
}

// loadConfig resolves the effective configuration
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Provider keys follow the usual environment variables when not configured
	if cfg.Chat.APIKey == "" {
		switch strings.ToLower(cfg.Chat.Provider) {
		case "openai":
			cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.Chat.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.Chat.BaseURL == "" && strings.EqualFold(cfg.Chat.Provider, "ollama") {
		cfg.Chat.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	return cfg, nil
}
