package model

import "time"

// Config is the complete reportlens configuration
type Config struct {
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Backend      BackendConfig      `yaml:"backend" mapstructure:"backend"`
	Chat         ChatConfig         `yaml:"chat" mapstructure:"chat"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr       string        `yaml:"addr" mapstructure:"addr"`
	UploadsDir string        `yaml:"uploads_dir" mapstructure:"uploads_dir"`
	DBPath     string        `yaml:"db_path" mapstructure:"db_path"`
	SessionTTL time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"` // Idle time before a session is dropped
	Prefetch   bool          `yaml:"prefetch" mapstructure:"prefetch"`       // Warm all sections when a session starts
	MaxUpload  int64         `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// BackendConfig points at the external analysis service
type BackendConfig struct {
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ChatConfig selects the assistant provider
type ChatConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // backend, openai, anthropic, ollama
	Model     string `yaml:"model,omitempty" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// RateLimitingConfig bounds outbound request rate per host
type RateLimitingConfig struct {
	RequestsPerSecond float64          `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int              `yaml:"burst_size" mapstructure:"burst_size"`
	Hosts             []HostRateConfig `yaml:"hosts,omitempty" mapstructure:"hosts"`
}

// HostRateConfig overrides the rate for one host ("127.0.0.1:8000")
type HostRateConfig struct {
	Host              string  `yaml:"host" mapstructure:"host"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig sizes the worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// CacheConfig controls the CLI result cache. Server sessions are always memory only.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir,omitempty" mapstructure:"dir"` // default ~/.reportlens/cache
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       "127.0.0.1:3000",
			UploadsDir: "./public/uploads",
			DBPath:     "./reportlens.db",
			SessionTTL: 2 * time.Hour,
			Prefetch:   true,
			MaxUpload:  10 << 20,
		},
		Backend: BackendConfig{
			BaseURL:      "http://127.0.0.1:8000",
			Timeout:      2 * time.Minute,
			UserAgent:    "reportlens/0.1",
			MaxBodyBytes: 8 << 20,
		},
		Chat: ChatConfig{
			Provider:  "backend",
			Timeout:   60,
			MaxTokens: 1000,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 5,
			BurstSize:         10,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 3,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
	}
}
