package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigJSONDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{"seed_urls": ["https://en.wikipedia.org/wiki/Graph_theory"]}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Depth())
	assert.Equal(t, 50, cfg.MaxArticles)
	assert.Equal(t, 0.1, cfg.Relevance())
	assert.Equal(t, 5.0, cfg.ActivityThreshold())
	assert.Equal(t, 20, cfg.MaxLinksPerPage)
	assert.Equal(t, 1, cfg.ConcurrentWorkers)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 2*time.Second, cfg.RetryDelay())
	assert.Equal(t, time.Second, cfg.MinRequestInterval())
	assert.Equal(t, 30, cfg.MaxRequestsPerMinute)
	assert.Equal(t, "wikiweaver.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.UserAgent)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
seed_urls:
  - https://en.wikipedia.org/wiki/Machine_learning
interests: [neural networks, statistics]
boosts:
  - keyword: bayes
    weight: 0.2
max_depth: 0
min_relevance: 0
high_activity_threshold: 0
concurrent_workers: 4
schedule: "@daily"
keep_days: 30
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Depth(), "explicit zero depth is kept")
	assert.Equal(t, 0.0, cfg.Relevance(), "explicit zero relevance is kept")
	assert.Equal(t, 0.0, cfg.ActivityThreshold(), "explicit zero threshold is kept")
	assert.Equal(t, 4, cfg.ConcurrentWorkers)
	assert.Equal(t, "@daily", cfg.Schedule)
	assert.Equal(t, 30, cfg.KeepDays)

	p := cfg.Profile()
	assert.Equal(t, []string{"neural networks", "statistics"}, p.Interests)
	require.Len(t, p.Boosts, 1)
	assert.Equal(t, "bayes", p.Boosts[0].Keyword)
	assert.Equal(t, 0.2, p.Boosts[0].Weight)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{"no seed", `{}`, ErrNoSeed},
		{"negative depth", `{"seed_urls":["x"],"max_depth":-1}`, ErrInvalidDepth},
		{"negative articles", `{"seed_urls":["x"],"max_articles":-3}`, ErrInvalidArticles},
		{"relevance above one", `{"seed_urls":["x"],"min_relevance":1.5}`, ErrInvalidRelevance},
		{"too many workers", `{"seed_urls":["x"],"concurrent_workers":9}`, ErrInvalidWorkers},
		{"short timeout", `{"seed_urls":["x"],"request_timeout_ms":10}`, ErrInvalidTimeout},
		{"negative rate", `{"seed_urls":["x"],"max_requests_per_minute":-1}`, ErrInvalidRateLimit},
		{"negative keep days", `{"seed_urls":["x"],"keep_days":-1}`, ErrInvalidKeepDays},
		{"bad log level", `{"seed_urls":["x"],"log_level":"chatty"}`, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "config.json", tt.body))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "broken.json", `{"seed_urls": [`))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "broken.yml", "seed_urls: [\n"))
	assert.Error(t, err)
}

func TestLoadConfigJSONExplicitZeros(t *testing.T) {
	path := writeConfig(t, "config.json", `{"seed_urls":["x"],"min_relevance":0,"high_activity_threshold":0}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.MinRelevance)
	require.NotNil(t, cfg.HighActivityThreshold)
	assert.Equal(t, 0.0, cfg.Relevance())
	assert.Equal(t, 0.0, cfg.ActivityThreshold())
}

func TestLoadWithoutSeeds(t *testing.T) {
	path := writeConfig(t, "config.json", `{"db_path": "graph.db"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "graph.db", cfg.DBPath)

	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrNoSeed)

	_, err = Load(writeConfig(t, "config.json", `{"max_depth": -1}`))
	assert.ErrorIs(t, err, ErrInvalidDepth)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.SeedURLs)
	assert.Equal(t, 2, cfg.Depth())
	assert.Equal(t, 5.0, cfg.ActivityThreshold())
	assert.Equal(t, 0.1, cfg.Relevance())
}
