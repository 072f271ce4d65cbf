// Package engine wires storage, crawling and graph analysis into the
// operations exposed by the command line.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/wiki-weaver/internal/config"
	"github.com/alvmarrod/wiki-weaver/internal/crawler"
	"github.com/alvmarrod/wiki-weaver/internal/graph"
	"github.com/alvmarrod/wiki-weaver/internal/metrics"
	"github.com/alvmarrod/wiki-weaver/internal/parser"
	"github.com/alvmarrod/wiki-weaver/internal/relevance"
	"github.com/alvmarrod/wiki-weaver/internal/storage"
)

// Engine owns the store and the collaborators shared by every crawl
type Engine struct {
	cfg       *config.Config
	store     storage.ArticleStore
	fetcher   crawler.Fetcher
	parser    crawler.Parser
	limiter   *crawler.RateLimiter
	analyzer  *relevance.Analyzer
	builder   *graph.Builder
	analytics *graph.Analytics
	extension graph.Extension

	mu     sync.Mutex
	active *crawler.Controller
}

// Option customizes an Engine
type Option func(*Engine)

// WithFetcher replaces the HTTP fetcher
func WithFetcher(f crawler.Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithLimiter replaces the request scheduler
func WithLimiter(l *crawler.RateLimiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithExtension replaces the graph analytics extension
func WithExtension(ext graph.Extension) Option {
	return func(e *Engine) { e.extension = ext }
}

// New creates an engine over an already opened store
func New(cfg *config.Config, store storage.ArticleStore, opts ...Option) *Engine {
	analyzerOpts := relevance.DefaultOptions()
	analyzerOpts.MinRelevance = cfg.Relevance()

	e := &Engine{
		cfg:       cfg,
		store:     store,
		fetcher:   crawler.NewCollyFetcher(cfg.UserAgent, cfg.RequestTimeout()),
		parser:    parser.NewWikipediaParser(),
		limiter:   crawler.NewRateLimiter(cfg.MinRequestInterval(), cfg.MaxRequestsPerMinute),
		analyzer:  relevance.NewAnalyzer(analyzerOpts),
		builder:   graph.NewBuilder(store),
		analytics: graph.NewAnalytics(store, cfg.ActivityThreshold()),
		extension: graph.NoopExtension{},
	}
	if cfg.AnalyticsURL != "" {
		e.extension = graph.NewHTTPExtension(cfg.AnalyticsURL, cfg.RequestTimeout())
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open creates an engine backed by the SQLite database named in cfg
func Open(cfg *config.Config, opts ...Option) (*Engine, error) {
	store, err := storage.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Database initialized: %s", cfg.DBPath)
	return New(cfg, store, opts...), nil
}

// Close releases the store
func (e *Engine) Close() error {
	return e.store.Close()
}

// Config returns the engine configuration
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Crawl runs one crawl from startURL with the configured budgets and profile
func (e *Engine) Crawl(ctx context.Context, startURL string) (*storage.CrawlSession, error) {
	c := crawler.NewController(e.store, e.fetcher, e.parser, e.analyzer, e.limiter, crawler.Options{
		Workers:         e.cfg.ConcurrentWorkers,
		MaxLinksPerPage: e.cfg.MaxLinksPerPage,
		RetryDelay:      e.cfg.RetryDelay(),
		MetricsPath:     e.cfg.MetricsPath,
	})

	e.mu.Lock()
	e.active = c
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.active = nil
		e.mu.Unlock()
	}()

	return c.Crawl(ctx, crawler.Request{
		StartURL:    startURL,
		Profile:     e.cfg.Profile(),
		MaxDepth:    e.cfg.Depth(),
		MaxArticles: e.cfg.MaxArticles,
	})
}

// CrawlAll crawls every configured seed in order. A failing seed is logged
// and skipped unless the store is unavailable or ctx is done.
func (e *Engine) CrawlAll(ctx context.Context) ([]*storage.CrawlSession, error) {
	var sessions []*storage.CrawlSession
	var errs []error

	for _, seed := range e.cfg.SeedURLs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		session, err := e.Crawl(ctx, seed)
		if session != nil {
			sessions = append(sessions, session)
		}
		if err == nil {
			continue
		}

		errs = append(errs, fmt.Errorf("seed %s: %w", seed, err))
		if errors.Is(err, storage.ErrUnavailable) || ctx.Err() != nil {
			break
		}
		logrus.Warnf("Crawl of seed %s failed: %v", seed, err)
	}

	return sessions, errors.Join(errs...)
}

// Cancel stops the crawl currently in progress, if any
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		e.active.Cancel()
	}
}

// Progress returns the live counters of the crawl in progress
func (e *Engine) Progress() (metrics.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return metrics.Snapshot{}, false
	}
	return e.active.Tracker().GetSnapshot(), true
}

// LastRun loads the metrics of the most recent crawl from metrics_path. It
// returns nil when no metrics file is configured or written yet.
func (e *Engine) LastRun() (*metrics.Snapshot, error) {
	if e.cfg.MetricsPath == "" {
		return nil, nil
	}
	snap, err := metrics.ReadFromFile(e.cfg.MetricsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return snap, err
}

// BuildCompleteGraph materializes every stored link scoring at least
// minRelevance, enriched by the analytics extension
func (e *Engine) BuildCompleteGraph(ctx context.Context, minRelevance float64, includeIsolated bool) (*graph.Graph, error) {
	g, err := e.builder.BuildComplete(ctx, graph.CompleteOptions{
		MinRelevance:    minRelevance,
		IncludeIsolated: includeIsolated,
	})
	if err != nil {
		return nil, err
	}
	return graph.Enrich(ctx, e.extension, g), nil
}

// BuildCenteredGraph materializes the neighbourhood of center, given as a
// title or an article URL. An unknown center yields an empty graph.
func (e *Engine) BuildCenteredGraph(ctx context.Context, center string, minRelevance float64, maxDepth int) (*graph.Graph, error) {
	a, err := e.resolve(ctx, center)
	if err != nil {
		return nil, err
	}
	var id int64
	if a != nil {
		id = a.ID
	}

	g, err := e.builder.BuildCentered(ctx, id, minRelevance, maxDepth)
	if err != nil {
		return nil, err
	}
	return graph.Enrich(ctx, e.extension, g), nil
}

// Metrics computes structural metrics of the complete graph at minRelevance
func (e *Engine) Metrics(ctx context.Context, minRelevance float64) (graph.Metrics, error) {
	g, err := e.builder.BuildComplete(ctx, graph.CompleteOptions{MinRelevance: minRelevance})
	if err != nil {
		return graph.Metrics{}, err
	}
	return graph.ComputeMetrics(g), nil
}

// ShortestPath finds the directed path between two articles, given as titles
// or URLs, over links scoring at least minRelevance. It returns nil when
// either article is unknown or no path exists.
func (e *Engine) ShortestPath(ctx context.Context, from, to string, minRelevance float64) ([]graph.Node, error) {
	src, err := e.resolve(ctx, from)
	if err != nil {
		return nil, err
	}
	dst, err := e.resolve(ctx, to)
	if err != nil {
		return nil, err
	}
	if src == nil || dst == nil {
		return nil, nil
	}

	g, err := e.builder.BuildComplete(ctx, graph.CompleteOptions{MinRelevance: minRelevance, IncludeIsolated: true})
	if err != nil {
		return nil, err
	}
	if src.ID == dst.ID {
		if n, ok := g.Node(src.ID); ok {
			return []graph.Node{n}, nil
		}
		return []graph.Node{{ID: src.ID, Title: src.Title, URL: src.URL}}, nil
	}

	ids := graph.ShortestPath(g, src.ID, dst.ID)
	if ids == nil {
		return nil, nil
	}
	path := make([]graph.Node, 0, len(ids))
	for _, id := range ids {
		n, _ := g.Node(id)
		path = append(path, n)
	}
	return path, nil
}

// KnowledgeHubs returns the most connected articles
func (e *Engine) KnowledgeHubs(ctx context.Context, limit int) ([]graph.Hub, error) {
	return e.analytics.KnowledgeHubs(ctx, limit)
}

// RecentDiscoveries returns the newest links with a strength label
func (e *Engine) RecentDiscoveries(ctx context.Context, limit int) ([]graph.Discovery, error) {
	return e.analytics.RecentDiscoveries(ctx, limit)
}

// TemporalGrowth returns the per-day crawl growth and learning phases
func (e *Engine) TemporalGrowth(ctx context.Context, minRelevance float64) (*graph.Growth, error) {
	return e.analytics.TemporalGrowth(ctx, minRelevance)
}

// Search looks articles up by title or summary substring
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]*storage.Article, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", graph.ErrValidation, limit)
	}
	return e.store.SearchArticles(ctx, query, limit)
}

// Stats returns store-wide counts
func (e *Engine) Stats(ctx context.Context) (*storage.Stats, error) {
	return e.store.GetStats(ctx)
}

// Sessions lists the most recent crawl sessions
func (e *Engine) Sessions(ctx context.Context, limit int) ([]*storage.CrawlSession, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", graph.ErrValidation, limit)
	}
	return e.store.ListSessions(ctx, limit)
}

// Cleanup deletes articles parsed more than keepDays ago
func (e *Engine) Cleanup(ctx context.Context, keepDays int) (int, error) {
	if keepDays < 0 {
		return 0, fmt.Errorf("%w: negative keep days %d", graph.ErrValidation, keepDays)
	}
	n, err := e.store.Cleanup(ctx, keepDays)
	if err != nil {
		return 0, err
	}
	logrus.Infof("Cleanup removed %d articles older than %d days", n, keepDays)
	return n, nil
}

// ScheduledRun re-crawls every seed and then applies the retention window
func (e *Engine) ScheduledRun(ctx context.Context) error {
	sessions, crawlErr := e.CrawlAll(ctx)
	logrus.Infof("Scheduled crawl finished %d sessions", len(sessions))

	if errors.Is(crawlErr, storage.ErrUnavailable) || ctx.Err() != nil {
		return crawlErr
	}
	if e.cfg.KeepDays > 0 {
		if _, err := e.Cleanup(ctx, e.cfg.KeepDays); err != nil {
			return errors.Join(crawlErr, err)
		}
	}
	return crawlErr
}

// resolve looks an article up by URL when ref looks like one, else by title
func (e *Engine) resolve(ctx context.Context, ref string) (*storage.Article, error) {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "://") {
		u, err := crawler.CanonicalURL(ref)
		if err != nil {
			return nil, err
		}
		return e.store.GetArticleByURL(ctx, u)
	}
	return e.store.GetArticle(ctx, ref)
}
