package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alvmarrod/wiki-weaver/internal/storage"
)

type linkKey struct {
	from, to int64
}

// Store is an in-memory ArticleStore. It mirrors the SQLite semantics
// (URL-unique articles, (from, to)-unique links) and is used for dry runs and tests.
type Store struct {
	articles    map[int64]*storage.Article // id -> article
	articlesURL map[string]int64           // url -> id
	links       map[linkKey]*storage.Link
	sessions    map[int64]*storage.CrawlSession
	articleSeq  int64
	linkSeq     int64
	sessionSeq  int64
	unavailable bool
	mu          sync.RWMutex
	Now         func() time.Time
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		articles:    make(map[int64]*storage.Article),
		articlesURL: make(map[string]int64),
		links:       make(map[linkKey]*storage.Link),
		sessions:    make(map[int64]*storage.CrawlSession),
		Now:         time.Now,
	}
}

// SetUnavailable makes every subsequent call fail with storage.ErrUnavailable
func (m *Store) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = down
}

func (m *Store) check() error {
	if m.unavailable {
		return storage.ErrUnavailable
	}
	return nil
}

func copyArticle(a *storage.Article) *storage.Article {
	c := *a
	c.Categories = append([]string{}, a.Categories...)
	c.Sections = append([]storage.Section{}, a.Sections...)
	c.Infobox = make(map[string]string, len(a.Infobox))
	for k, v := range a.Infobox {
		c.Infobox[k] = v
	}
	if a.Coordinates != nil {
		coords := *a.Coordinates
		c.Coordinates = &coords
	}
	return &c
}

// GetArticle retrieves an article by title, preferring crawled rows over stubs
func (m *Store) GetArticle(ctx context.Context, title string) (*storage.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	var best *storage.Article
	for _, a := range m.articles {
		if a.Title != title {
			continue
		}
		if best == nil || (best.IsStub() && !a.IsStub()) || (best.IsStub() == a.IsStub() && a.ID < best.ID) {
			best = a
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyArticle(best), nil
}

// GetArticleByURL retrieves an article by URL
func (m *Store) GetArticleByURL(ctx context.Context, url string) (*storage.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	if id, ok := m.articlesURL[url]; ok {
		return copyArticle(m.articles[id]), nil
	}
	return nil, nil
}

// GetArticleByID retrieves an article by id
func (m *Store) GetArticleByID(ctx context.Context, id int64) (*storage.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	if a, ok := m.articles[id]; ok {
		return copyArticle(a), nil
	}
	return nil, nil
}

// SaveArticle inserts or updates the article with the same URL
func (m *Store) SaveArticle(ctx context.Context, a *storage.Article) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	if a.URL == "" || a.Title == "" {
		return 0, fmt.Errorf("article requires title and url")
	}
	if a.ParsedAt.IsZero() {
		a.ParsedAt = m.Now().UTC()
	}

	id, exists := m.articlesURL[a.URL]
	if !exists {
		m.articleSeq++
		id = m.articleSeq
		m.articlesURL[a.URL] = id
	}
	a.ID = id
	m.articles[id] = copyArticle(a)
	return id, nil
}

// EnsureArticle records a stub unless the URL is already known
func (m *Store) EnsureArticle(ctx context.Context, title, url string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	if id, ok := m.articlesURL[url]; ok {
		return id, nil
	}
	m.articleSeq++
	m.articles[m.articleSeq] = &storage.Article{ID: m.articleSeq, Title: title, URL: url}
	m.articlesURL[url] = m.articleSeq
	return m.articleSeq, nil
}

// SaveLink inserts a new link or updates the score of an existing one
func (m *Store) SaveLink(ctx context.Context, l *storage.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if err := storage.ValidateLink(l); err != nil {
		return err
	}
	if _, ok := m.articles[l.FromArticleID]; !ok {
		return fmt.Errorf("source article %d not found", l.FromArticleID)
	}
	if _, ok := m.articles[l.ToArticleID]; !ok {
		return fmt.Errorf("target article %d not found", l.ToArticleID)
	}

	key := linkKey{l.FromArticleID, l.ToArticleID}
	if existing, ok := m.links[key]; ok {
		existing.RelevanceScore = l.RelevanceScore
		existing.AnchorText = l.AnchorText
		return nil
	}

	if l.CreatedAt.IsZero() {
		l.CreatedAt = m.Now().UTC()
	}
	m.linkSeq++
	c := *l
	c.ID = m.linkSeq
	m.links[key] = &c
	return nil
}

func (m *Store) sortedArticles(keep func(*storage.Article) bool) []*storage.Article {
	out := make([]*storage.Article, 0, len(m.articles))
	for _, a := range m.articles {
		if keep(a) {
			out = append(out, copyArticle(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SearchArticles is a case-insensitive substring match on title and summary
func (m *Store) SearchArticles(ctx context.Context, query string, limit int) ([]*storage.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return []*storage.Article{}, nil
	}

	found := m.sortedArticles(func(a *storage.Article) bool {
		return !a.IsStub() && (strings.Contains(strings.ToLower(a.Title), q) || strings.Contains(strings.ToLower(a.Summary), q))
	})
	sort.SliceStable(found, func(i, j int) bool {
		ti := strings.Contains(strings.ToLower(found[i].Title), q)
		tj := strings.Contains(strings.ToLower(found[j].Title), q)
		if ti != tj {
			return ti
		}
		return found[i].Title < found[j].Title
	})
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// ListArticles returns all articles ordered by id
func (m *Store) ListArticles(ctx context.Context) ([]*storage.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.sortedArticles(func(*storage.Article) bool { return true }), nil
}

// GetArticlesSince returns crawled articles parsed at or after since
func (m *Store) GetArticlesSince(ctx context.Context, since time.Time) ([]*storage.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	out := m.sortedArticles(func(a *storage.Article) bool {
		return !a.IsStub() && !a.ParsedAt.Before(since)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ParsedAt.Before(out[j].ParsedAt) })
	return out, nil
}

func (m *Store) sortedLinks() []*storage.Link {
	out := make([]*storage.Link, 0, len(m.links))
	for _, l := range m.links {
		c := *l
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListLinks returns links scoring at least minRelevance, ordered by id
func (m *Store) ListLinks(ctx context.Context, minRelevance float64) ([]*storage.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	out := make([]*storage.Link, 0)
	for _, l := range m.sortedLinks() {
		if l.RelevanceScore >= minRelevance {
			out = append(out, l)
		}
	}
	return out, nil
}

// RecentLinks returns the newest links first
func (m *Store) RecentLinks(ctx context.Context, limit int) ([]*storage.LinkDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*storage.LinkDetail{}, nil
	}

	links := m.sortedLinks()
	sort.SliceStable(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.After(links[j].CreatedAt)
		}
		return links[i].ID > links[j].ID
	})
	if len(links) > limit {
		links = links[:limit]
	}

	out := make([]*storage.LinkDetail, 0, len(links))
	for _, l := range links {
		out = append(out, &storage.LinkDetail{
			Link:      *l,
			FromTitle: m.articles[l.FromArticleID].Title,
			ToTitle:   m.articles[l.ToArticleID].Title,
		})
	}
	return out, nil
}

// TopDegrees ranks linked articles by total degree
func (m *Store) TopDegrees(ctx context.Context, limit int) ([]*storage.Hub, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*storage.Hub{}, nil
	}

	degrees := make(map[int64]*storage.Hub)
	hub := func(id int64) *storage.Hub {
		h, ok := degrees[id]
		if !ok {
			a := m.articles[id]
			h = &storage.Hub{ArticleID: id, Title: a.Title, URL: a.URL}
			degrees[id] = h
		}
		return h
	}
	for key := range m.links {
		hub(key.from).OutDegree++
		hub(key.to).InDegree++
	}

	hubs := make([]*storage.Hub, 0, len(degrees))
	for _, h := range degrees {
		hubs = append(hubs, h)
	}
	sort.Slice(hubs, func(i, j int) bool {
		if hubs[i].Degree() != hubs[j].Degree() {
			return hubs[i].Degree() > hubs[j].Degree()
		}
		return hubs[i].ArticleID < hubs[j].ArticleID
	})
	if len(hubs) > limit {
		hubs = hubs[:limit]
	}
	return hubs, nil
}

// GetStats returns aggregate counts
func (m *Store) GetStats(ctx context.Context) (*storage.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	st := &storage.Stats{TotalLinks: len(m.links), TotalSessions: len(m.sessions)}
	for _, a := range m.articles {
		if a.IsStub() {
			st.PendingArticles++
			continue
		}
		st.TotalArticles++
		if a.ParsedAt.After(st.LastParsedAt) {
			st.LastParsedAt = a.ParsedAt
		}
	}
	var sum float64
	for _, l := range m.links {
		sum += l.RelevanceScore
	}
	if len(m.links) > 0 {
		st.AvgRelevance = sum / float64(len(m.links))
	}
	if st.TotalArticles > 0 {
		st.AvgLinksPerArticle = float64(st.TotalLinks) / float64(st.TotalArticles)
	}
	return st, nil
}

// Cleanup removes articles parsed before now-keepDays and stubs left without links
func (m *Store) Cleanup(ctx context.Context, keepDays int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	if keepDays < 1 {
		return 0, fmt.Errorf("keep_days must be >= 1")
	}
	cutoff := m.Now().UTC().AddDate(0, 0, -keepDays)

	deleted := 0
	for id, a := range m.articles {
		if !a.IsStub() && a.ParsedAt.Before(cutoff) {
			m.deleteArticle(id)
			deleted++
		}
	}

	linked := make(map[int64]bool)
	for key := range m.links {
		linked[key.from] = true
		linked[key.to] = true
	}
	for id, a := range m.articles {
		if a.IsStub() && !linked[id] {
			m.deleteArticle(id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Store) deleteArticle(id int64) {
	delete(m.articlesURL, m.articles[id].URL)
	delete(m.articles, id)
	for key := range m.links {
		if key.from == id || key.to == id {
			delete(m.links, key)
		}
	}
}

// CreateSession stores a running session
func (m *Store) CreateSession(ctx context.Context, s *storage.CrawlSession) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	if s.StartTime.IsZero() {
		s.StartTime = m.Now().UTC()
	}
	if s.Status == "" {
		s.Status = storage.SessionRunning
	}
	m.sessionSeq++
	s.ID = m.sessionSeq
	c := *s
	m.sessions[s.ID] = &c
	return s.ID, nil
}

// FinishSession finalizes a session once
func (m *Store) FinishSession(ctx context.Context, s *storage.CrawlSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	existing, ok := m.sessions[s.ID]
	if !ok {
		return fmt.Errorf("session %d not found", s.ID)
	}
	if existing.Finished() {
		return fmt.Errorf("session %d: %w", s.ID, storage.ErrSessionFinished)
	}
	if s.EndTime.IsZero() {
		s.EndTime = m.Now().UTC()
	}
	c := *s
	m.sessions[s.ID] = &c
	return nil
}

// GetSession retrieves a session by id
func (m *Store) GetSession(ctx context.Context, id int64) (*storage.CrawlSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	if s, ok := m.sessions[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

// ListSessions returns the newest sessions first
func (m *Store) ListSessions(ctx context.Context, limit int) ([]*storage.CrawlSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	out := make([]*storage.CrawlSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit <= 0 {
		return []*storage.CrawlSession{}, nil
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op
func (m *Store) Close() error {
	return nil
}

var _ storage.ArticleStore = (*Store)(nil)
