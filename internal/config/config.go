// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Output     OutputConfig     `mapstructure:"output"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CrawlerConfig governs fetch politeness and the worker pool.
type CrawlerConfig struct {
	UserAgent               string   `mapstructure:"user_agent"`
	Workers                 int      `mapstructure:"workers"`
	TargetsFile             string   `mapstructure:"targets_file"`
	DelaySeconds            float64  `mapstructure:"delay_seconds"`
	MaxRetry                int      `mapstructure:"max_retry"`
	TimeoutSeconds          int      `mapstructure:"timeout_seconds"`
	RetryDelaySeconds       float64  `mapstructure:"retry_delay_seconds"`
	RateLimitedDelaySeconds float64  `mapstructure:"rate_limited_delay_seconds"`
	RobotsTimeoutSeconds    int      `mapstructure:"robots_timeout_seconds"`
	IgnoreRobots            bool     `mapstructure:"ignore_robots"`
	HomepageMaxRetry        int      `mapstructure:"homepage_max_retry"`
	HomepageTimeoutSeconds  int      `mapstructure:"homepage_timeout_seconds"`
	PageMaxRetry            int      `mapstructure:"page_max_retry"`
	PageTimeoutSeconds      int      `mapstructure:"page_timeout_seconds"`
	BlockedDomains          []string `mapstructure:"blocked_domains"`
	Resume                  bool     `mapstructure:"resume"`
}

// DiscoveryConfig bounds path probing and link discovery.
type DiscoveryConfig struct {
	ProbeEnabled        bool     `mapstructure:"probe_enabled"`
	ProbeTimeoutSeconds int      `mapstructure:"probe_timeout_seconds"`
	MaxDepth            int      `mapstructure:"max_depth"`
	MaxResults          int      `mapstructure:"max_results"`
	Keywords            []string `mapstructure:"keywords"`
	FallbackSegments    []string `mapstructure:"fallback_segments"`
}

// ChunkingConfig sizes the semantic chunker.
type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// ExtractionConfig selects and tunes the triple oracle.
type ExtractionConfig struct {
	// Provider is "openrouter", "rule_based", or empty to pick by API key presence.
	Provider            string  `mapstructure:"provider"`
	APIKey              string  `mapstructure:"api_key"`
	Model               string  `mapstructure:"model"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	RequestsPerSecond   float64 `mapstructure:"requests_per_second"`
	Burst               int     `mapstructure:"burst"`
}

// LedgerConfig selects the failed-site ledger backend.
type LedgerConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// OutputConfig locates the report stream, status file and page archive.
type OutputConfig struct {
	ReportPath    string `mapstructure:"report_path"`
	StatusPath    string `mapstructure:"status_path"`
	ArchiveDir    string `mapstructure:"archive_dir"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	ArchivePrefix string `mapstructure:"archive_prefix"`
}

// MetricsConfig enables the status/metrics listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Extraction providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderRuleBased  = "rule_based"
)

// Ledger backends.
const (
	LedgerBackendFile     = "file"
	LedgerBackendPostgres = "postgres"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("extraction.api_key", "CRAWLER_EXTRACTION_API_KEY", "OPENROUTER_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind api key env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.user_agent", "campus-kg-crawler/0.1 (+https://github.com/JakeFAU/campus-kg-crawler)")
	v.SetDefault("crawler.workers", 1)
	v.SetDefault("crawler.targets_file", "data/targets.jsonl")
	v.SetDefault("crawler.delay_seconds", 2)
	v.SetDefault("crawler.max_retry", 3)
	v.SetDefault("crawler.timeout_seconds", 30)
	v.SetDefault("crawler.retry_delay_seconds", 5)
	v.SetDefault("crawler.rate_limited_delay_seconds", 10)
	v.SetDefault("crawler.robots_timeout_seconds", 5)
	v.SetDefault("crawler.ignore_robots", false)
	v.SetDefault("crawler.homepage_max_retry", 1)
	v.SetDefault("crawler.homepage_timeout_seconds", 15)
	v.SetDefault("crawler.page_max_retry", 1)
	v.SetDefault("crawler.page_timeout_seconds", 20)
	v.SetDefault("crawler.blocked_domains", []string{})
	v.SetDefault("crawler.resume", false)
	v.SetDefault("discovery.probe_enabled", true)
	v.SetDefault("discovery.probe_timeout_seconds", 10)
	v.SetDefault("discovery.max_depth", 2)
	v.SetDefault("discovery.max_results", 5)
	v.SetDefault("discovery.keywords", []string{})
	v.SetDefault("discovery.fallback_segments", []string{})
	v.SetDefault("chunking.size", 1000)
	v.SetDefault("chunking.overlap", 200)
	v.SetDefault("extraction.provider", "")
	v.SetDefault("extraction.model", "openai/gpt-4o-mini")
	v.SetDefault("extraction.confidence_threshold", 0.8)
	v.SetDefault("extraction.requests_per_second", 1)
	v.SetDefault("extraction.burst", 1)
	v.SetDefault("ledger.backend", LedgerBackendFile)
	v.SetDefault("ledger.path", "data/failed_sites.json")
	v.SetDefault("ledger.table", "failed_sites")
	v.SetDefault("ledger.max_conns", 4)
	v.SetDefault("output.report_path", "data/reports.jsonl")
	v.SetDefault("output.status_path", "data/crawl_status.json")
	v.SetDefault("output.archive_prefix", "pages")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.MaxRetry < 0 {
		return fmt.Errorf("crawler.max_retry must be >= 0")
	}
	if c.Crawler.DelaySeconds < 0 || c.Crawler.RetryDelaySeconds < 0 || c.Crawler.RateLimitedDelaySeconds < 0 {
		return fmt.Errorf("crawler delays must be >= 0")
	}
	if c.Discovery.MaxDepth < 0 {
		return fmt.Errorf("discovery.max_depth must be >= 0")
	}
	if c.Discovery.MaxResults <= 0 {
		return fmt.Errorf("discovery.max_results must be > 0")
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be > 0")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be >= 0 and < chunking.size")
	}
	if c.Extraction.ConfidenceThreshold < 0 || c.Extraction.ConfidenceThreshold > 1 {
		return fmt.Errorf("extraction.confidence_threshold must be within [0,1]")
	}
	switch c.Extraction.Provider {
	case "", ProviderRuleBased:
	case ProviderOpenRouter:
		if c.Extraction.APIKey == "" {
			return fmt.Errorf("extraction.api_key must be set when extraction.provider is %q", ProviderOpenRouter)
		}
	default:
		return fmt.Errorf("extraction.provider %q is not supported", c.Extraction.Provider)
	}
	switch c.Ledger.Backend {
	case LedgerBackendFile:
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path must be set for the file backend")
		}
	case LedgerBackendPostgres:
		if c.Ledger.DSN == "" {
			return fmt.Errorf("ledger.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("ledger.backend %q is not supported", c.Ledger.Backend)
	}
	if c.Output.ReportPath == "" {
		return fmt.Errorf("output.report_path must be set")
	}
	return nil
}

// ExtractionProvider resolves the effective oracle provider.
func (c Config) ExtractionProvider() string {
	if c.Extraction.Provider != "" {
		return c.Extraction.Provider
	}
	if c.Extraction.APIKey != "" {
		return ProviderOpenRouter
	}
	return ProviderRuleBased
}

// Seconds converts a fractional seconds setting into a time.Duration.
func Seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
