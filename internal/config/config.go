package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/alvmarrod/wiki-weaver/internal/relevance"
)

// Config holds all runtime configuration parameters
type Config struct {
	SeedURLs  []string          `json:"seed_urls" yaml:"seed_urls"`
	Interests []string          `json:"interests" yaml:"interests"`
	Boosts    []relevance.Boost `json:"boosts" yaml:"boosts"`

	MaxDepth        *int     `json:"max_depth" yaml:"max_depth"`
	MaxArticles     int      `json:"max_articles" yaml:"max_articles"`
	MinRelevance    *float64 `json:"min_relevance" yaml:"min_relevance"`
	MaxLinksPerPage int      `json:"max_links_per_page" yaml:"max_links_per_page"`

	ConcurrentWorkers    int    `json:"concurrent_workers" yaml:"concurrent_workers"`
	RequestTimeoutMs     int    `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	RetryDelayMs         int    `json:"retry_delay_ms" yaml:"retry_delay_ms"`
	MinRequestIntervalMs int    `json:"min_request_interval_ms" yaml:"min_request_interval_ms"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	UserAgent            string `json:"user_agent" yaml:"user_agent"`

	DBPath      string `json:"db_path" yaml:"db_path"`
	MetricsPath string `json:"metrics_path" yaml:"metrics_path"`
	LogLevel    string `json:"log_level" yaml:"log_level"`

	Schedule              string   `json:"schedule" yaml:"schedule"`
	KeepDays              int      `json:"keep_days" yaml:"keep_days"`
	HighActivityThreshold *float64 `json:"high_activity_threshold" yaml:"high_activity_threshold"`
	AnalyticsURL          string   `json:"analytics_url" yaml:"analytics_url"`
}

const (
	defaultUserAgent             = "WikiWeaver/0.3 (personal knowledge graph crawler)"
	defaultMinRelevance          = 0.1
	defaultHighActivityThreshold = 5.0
)

// LoadConfig reads and validates configuration from a JSON or YAML file
func LoadConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if len(cfg.SeedURLs) == 0 {
		return nil, fmt.Errorf("invalid configuration: %w", ErrNoSeed)
	}
	return cfg, nil
}

// Load is LoadConfig without the seed requirement, for commands that only
// read the store
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and no seeds
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.MaxDepth == nil {
		depth := 2
		cfg.MaxDepth = &depth
	}
	if cfg.MaxArticles == 0 {
		cfg.MaxArticles = 50
	}
	if cfg.MinRelevance == nil {
		v := defaultMinRelevance
		cfg.MinRelevance = &v
	}
	if cfg.MaxLinksPerPage == 0 {
		cfg.MaxLinksPerPage = 20
	}
	if cfg.ConcurrentWorkers == 0 {
		cfg.ConcurrentWorkers = 1
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 10000
	}
	if cfg.RetryDelayMs == 0 {
		cfg.RetryDelayMs = 2000
	}
	if cfg.MinRequestIntervalMs == 0 {
		cfg.MinRequestIntervalMs = 1000
	}
	if cfg.MaxRequestsPerMinute == 0 {
		cfg.MaxRequestsPerMinute = 30
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "wikiweaver.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.HighActivityThreshold == nil {
		v := defaultHighActivityThreshold
		cfg.HighActivityThreshold = &v
	}
}

// validate checks that values are sensible
func validate(cfg *Config) error {
	if *cfg.MaxDepth < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDepth, *cfg.MaxDepth)
	}
	if cfg.MaxArticles < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidArticles, cfg.MaxArticles)
	}
	if r := *cfg.MinRelevance; r < 0 || r > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidRelevance, r)
	}
	if cfg.MaxLinksPerPage < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLinkBudget, cfg.MaxLinksPerPage)
	}
	if cfg.ConcurrentWorkers < 1 || cfg.ConcurrentWorkers > 8 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, cfg.ConcurrentWorkers)
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("%w: got %d", ErrInvalidTimeout, cfg.RequestTimeoutMs)
	}
	if cfg.RetryDelayMs < 0 || cfg.MinRequestIntervalMs < 0 || cfg.MaxRequestsPerMinute < 0 {
		return ErrInvalidRateLimit
	}
	if cfg.KeepDays < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidKeepDays, cfg.KeepDays)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
	}
	return nil
}

// Depth returns the configured crawl depth
func (c *Config) Depth() int {
	if c.MaxDepth == nil {
		return 2
	}
	return *c.MaxDepth
}

// Relevance returns the link relevance threshold
func (c *Config) Relevance() float64 {
	if c.MinRelevance == nil {
		return defaultMinRelevance
	}
	return *c.MinRelevance
}

// ActivityThreshold returns the articles-per-day rate above which a day counts
// as high activity
func (c *Config) ActivityThreshold() float64 {
	if c.HighActivityThreshold == nil {
		return defaultHighActivityThreshold
	}
	return *c.HighActivityThreshold
}

// Profile builds the interest profile crawls are steered by
func (c *Config) Profile() relevance.Profile {
	return relevance.Profile{
		Interests: append([]string(nil), c.Interests...),
		Boosts:    append([]relevance.Boost(nil), c.Boosts...),
	}
}

// RequestTimeout returns the fetch timeout as a duration
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// RetryDelay returns the pause before a fetch retry
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// MinRequestInterval returns the minimum spacing between requests
func (c *Config) MinRequestInterval() time.Duration {
	return time.Duration(c.MinRequestIntervalMs) * time.Millisecond
}
