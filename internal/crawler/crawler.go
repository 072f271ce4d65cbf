package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/alvmarrod/wiki-weaver/internal/metrics"
	"github.com/alvmarrod/wiki-weaver/internal/parser"
	"github.com/alvmarrod/wiki-weaver/internal/relevance"
	"github.com/alvmarrod/wiki-weaver/internal/storage"
)

// ErrAlreadyStarted is returned when Crawl is called twice on one Controller
var ErrAlreadyStarted = errors.New("crawl already started")

// Parser turns fetched HTML into an article and its outbound links
type Parser interface {
	ParsePage(html []byte, pageURL string) (*parser.Page, error)
}

// State is the lifecycle of a Controller
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options tunes a crawl
type Options struct {
	// Workers is the number of pages fetched concurrently
	Workers int
	// MaxLinksPerPage caps followed links per article. Zero follows all.
	MaxLinksPerPage int
	// RetryDelay is the pause before the single retry of a transient failure
	RetryDelay time.Duration
	// MetricsPath, when set, receives the metrics JSON at the end of the crawl
	MetricsPath string
}

// Request describes one crawl invocation
type Request struct {
	StartURL    string
	Profile     relevance.Profile
	MaxDepth    int
	MaxArticles int
}

// Controller runs one breadth-first crawl from a start article.
// A Controller is single use: create a new one for every crawl.
type Controller struct {
	store    storage.ArticleStore
	fetcher  Fetcher
	parser   Parser
	analyzer *relevance.Analyzer
	limiter  *RateLimiter
	opts     Options

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	cancelled bool
	tracker   *metrics.Tracker

	sleep func(ctx context.Context, d time.Duration) error
}

// NewController creates a crawl controller
func NewController(store storage.ArticleStore, fetcher Fetcher, p Parser, analyzer *relevance.Analyzer, limiter *RateLimiter, opts Options) *Controller {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Controller{
		store:    store,
		fetcher:  fetcher,
		parser:   p,
		analyzer: analyzer,
		limiter:  limiter,
		opts:     opts,
		state:    StateIdle,
		tracker:  metrics.NewTracker(""),
		sleep:    sleepContext,
	}
}

// State returns the controller's lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tracker exposes live crawl counters
func (c *Controller) Tracker() *metrics.Tracker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker
}

// Cancel stops a running crawl at the next checkpoint (safe to call multiple times)
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	if c.cancel != nil {
		c.cancel()
	}
}

// Crawl runs the crawl to completion, cancellation or a fatal store error.
// The finalized session is returned in every case where one was created;
// an aborted crawl also returns the error that stopped it.
func (c *Controller) Crawl(ctx context.Context, req Request) (*storage.CrawlSession, error) {
	startURL, err := CanonicalURL(req.StartURL)
	if err != nil {
		return nil, err
	}
	if req.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must be >= 0, got %d", req.MaxDepth)
	}
	if req.MaxArticles < 1 {
		return nil, fmt.Errorf("max articles must be >= 1, got %d", req.MaxArticles)
	}

	session := &storage.CrawlSession{
		RunID:       uuid.NewString(),
		StartURL:    startURL,
		MaxDepth:    req.MaxDepth,
		MaxArticles: req.MaxArticles,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	c.state = StateRunning
	c.cancel = cancel
	if c.cancelled {
		cancel()
	}
	c.tracker = metrics.NewTracker(session.RunID)
	c.mu.Unlock()

	if _, err := c.store.CreateSession(ctx, session); err != nil {
		c.setState(StateAborted)
		return nil, fmt.Errorf("failed to create crawl session: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"session":       session.ID,
		"run_id":        session.RunID,
		"start_url":     startURL,
		"depth":         req.MaxDepth,
		"articles":      req.MaxArticles,
		"workers":       c.opts.Workers,
		"min_relevance": c.analyzer.MinRelevance(),
	}).Info("Crawl starting")

	r := &run{
		Controller: c,
		req:        req,
		queue:      NewQueue(),
	}
	r.queue.Push(QueueEntry{URL: startURL, Depth: 0})

	crawlErr := r.loop(ctx)
	return c.finish(ctx, session, r.queue.VisitedCount(), crawlErr)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// finish records the final counters and status on the session
func (c *Controller) finish(ctx context.Context, session *storage.CrawlSession, visited int, crawlErr error) (*storage.CrawlSession, error) {
	reason := "completed"
	session.Status = storage.SessionCompleted
	if crawlErr != nil {
		reason = "aborted"
		session.Status = storage.SessionAborted
	}

	snap := c.tracker.Finish(reason)
	session.ArticlesCrawled = snap.ArticlesCrawled
	session.ArticlesProcessed = snap.ArticlesProcessed
	session.LinksAnalyzed = snap.LinksAnalyzed
	session.PagesFailed = snap.PagesFailed

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.store.FinishSession(finishCtx, session); err != nil {
		logrus.Errorf("Failed to finalize session %s: %v", session.RunID, err)
	}

	if c.opts.MetricsPath != "" {
		if err := c.tracker.WriteToFile(c.opts.MetricsPath); err != nil {
			logrus.Errorf("Failed to write metrics: %v", err)
		} else {
			logrus.Infof("Metrics written to %s", c.opts.MetricsPath)
		}
	}

	if session.Status == storage.SessionCompleted {
		c.setState(StateCompleted)
	} else {
		c.setState(StateAborted)
	}

	logrus.WithFields(logrus.Fields{
		"session":              session.ID,
		"run_id":               session.RunID,
		"start_url":            session.StartURL,
		"status":               session.Status,
		"visited":              visited,
		"requests_last_minute": c.limiter.RequestCount(),
	}).Infof("Crawl %s: %s", reason, c.tracker.LogProgress())
	return session, crawlErr
}

// run is the per-invocation state owned by the crawl loop
type run struct {
	*Controller
	req   Request
	queue *Queue
}

type fetchResult struct {
	page *parser.Page
	err  error
}

func (r *run) loop(ctx context.Context) error {
	for !r.queue.IsEmpty() {
		if err := ctx.Err(); err != nil {
			return err
		}

		remaining := r.req.MaxArticles - r.tracker.GetSnapshot().ArticlesCrawled
		if remaining <= 0 {
			logrus.Infof("Article budget of %d reached, %d entries left in queue", r.req.MaxArticles, r.queue.Size())
			return nil
		}

		batch := r.nextBatch(min(r.opts.Workers, remaining))
		if len(batch) == 0 {
			continue
		}

		results := r.fetchBatch(ctx, batch)

		// pages become visited in dequeue order, as in a serial crawl, so links
		// to later pages of the same batch are still recorded
		for i, entry := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.queue.MarkVisited(entry.URL)
			res := results[i]
			if res.err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.tracker.IncrementPagesFailed()
				logrus.Warnf("Skipping %s (depth=%d): %v", entry.URL, entry.Depth, res.err)
				continue
			}
			if err := r.process(ctx, entry, res.page); err != nil {
				logrus.Errorf("Aborting crawl: %v", err)
				return err
			}
		}
	}
	return nil
}

// nextBatch dequeues up to limit distinct unvisited entries. They are marked
// visited by the loop when processed.
func (r *run) nextBatch(limit int) []QueueEntry {
	batch := make([]QueueEntry, 0, limit)
	inFlight := make(map[string]bool, limit)
	for len(batch) < limit {
		entry, ok := r.queue.Pop()
		if !ok {
			break
		}
		if r.queue.IsVisited(entry.URL) || inFlight[entry.URL] {
			logrus.Debugf("Already visited %s, skipping", entry.URL)
			continue
		}
		inFlight[entry.URL] = true
		batch = append(batch, entry)
	}
	return batch
}

func (r *run) fetchBatch(ctx context.Context, batch []QueueEntry) []fetchResult {
	results := make([]fetchResult, len(batch))

	g := new(errgroup.Group)
	g.SetLimit(r.opts.Workers)
	for i, entry := range batch {
		g.Go(func() error {
			page, err := r.fetchPage(ctx, entry.URL)
			results[i] = fetchResult{page: page, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// fetchPage fetches and parses one page, retrying a transient fetch failure once
func (r *run) fetchPage(ctx context.Context, pageURL string) (*parser.Page, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			r.tracker.IncrementRetries()
			logrus.Infof("Retrying %s in %s: %v", pageURL, r.opts.RetryDelay, lastErr)
			if err := r.sleep(ctx, r.opts.RetryDelay); err != nil {
				return nil, err
			}
		}

		if err := r.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		body, err := r.fetcher.Fetch(ctx, pageURL)
		r.tracker.RecordFetchTime(time.Since(start))
		if err == nil {
			r.tracker.IncrementPagesFetched()
			return r.parser.ParsePage(body, pageURL)
		}

		lastErr = err
		if ctx.Err() != nil || !errors.Is(err, ErrTransientFetch) {
			break
		}
	}
	return nil, lastErr
}

// process persists a fetched article and the links chosen from it.
// Only store unavailability is returned; other store errors skip the item.
func (r *run) process(ctx context.Context, entry QueueEntry, page *parser.Page) error {
	r.tracker.IncrementArticlesCrawled()

	article := page.Article
	article.URL = entry.URL
	articleID, err := r.store.SaveArticle(ctx, &article)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			return err
		}
		logrus.Warnf("Failed to save article %s: %v", entry.URL, err)
		return nil
	}
	article.ID = articleID
	r.tracker.IncrementArticlesProcessed()

	logrus.Infof("Processed %q (depth=%d, links=%d)", article.Title, entry.Depth, len(page.Links))

	if entry.Depth >= r.req.MaxDepth {
		return nil
	}

	candidates := make([]relevance.Candidate, 0, len(page.Links))
	for _, l := range page.Links {
		candidates = append(candidates, relevance.Candidate{Title: l.Title, AnchorText: l.AnchorText, URL: l.URL})
	}
	r.tracker.AddLinksAnalyzed(len(candidates))

	for _, rec := range r.analyzer.GetRecommendations(&article, candidates, r.req.Profile, r.opts.MaxLinksPerPage) {
		target, err := CanonicalURL(rec.URL)
		if err != nil {
			logrus.Debugf("Ignoring link %s: %v", rec.URL, err)
			continue
		}
		if r.queue.IsVisited(target) {
			continue
		}

		if err := r.recordLink(ctx, articleID, target, rec); err != nil {
			if errors.Is(err, storage.ErrUnavailable) {
				return err
			}
			logrus.Warnf("Failed to record link %s -> %s: %v", entry.URL, target, err)
			continue
		}

		r.queue.Push(QueueEntry{URL: target, Depth: entry.Depth + 1})
	}
	return nil
}

func (r *run) recordLink(ctx context.Context, fromID int64, target string, rec relevance.ScoredLink) error {
	title, err := ExtractTitleFromURL(target)
	if err != nil {
		return err
	}
	toID, err := r.store.EnsureArticle(ctx, title, target)
	if err != nil {
		return err
	}
	if err := r.store.SaveLink(ctx, &storage.Link{
		FromArticleID:  fromID,
		ToArticleID:    toID,
		AnchorText:     rec.AnchorText,
		RelevanceScore: rec.Score,
	}); err != nil {
		return err
	}
	r.tracker.IncrementLinksRecorded()
	logrus.Debugf("Link: %d -> %s (score %.2f)", fromID, title, rec.Score)
	return nil
}
