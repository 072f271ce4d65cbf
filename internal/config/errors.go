package config

import "errors"

// Validation errors returned by LoadConfig, wrapped with the offending value
var (
	ErrNoSeed            = errors.New("seed_urls is required")
	ErrInvalidDepth      = errors.New("max_depth must be >= 0")
	ErrInvalidArticles   = errors.New("max_articles must be >= 1")
	ErrInvalidRelevance  = errors.New("min_relevance must be within [0,1]")
	ErrInvalidWorkers    = errors.New("concurrent_workers must be between 1 and 8")
	ErrInvalidTimeout    = errors.New("request_timeout_ms must be >= 1000")
	ErrInvalidRateLimit  = errors.New("rate limits must be >= 0")
	ErrInvalidKeepDays   = errors.New("keep_days must be >= 0")
	ErrInvalidLinkBudget = errors.New("max_links_per_page must be >= 0")
	ErrInvalidLogLevel   = errors.New("log_level is not a known level")
)
