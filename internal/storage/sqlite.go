package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// SQLite is the ArticleStore backed by a single SQLite database file
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens or creates the database at dbPath and initializes the schema
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w: %w", ErrUnavailable, err)
	}

	// One writer; keeps read-after-write consistent for the crawl loop
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, now: time.Now}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates tables and indices if they don't exist
func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		url TEXT UNIQUE NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '[]',
		infobox TEXT NOT NULL DEFAULT '{}',
		sections TEXT NOT NULL DEFAULT '[]',
		latitude REAL,
		longitude REAL,
		parsed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_article_id INTEGER NOT NULL,
		to_article_id INTEGER NOT NULL,
		anchor_text TEXT NOT NULL DEFAULT '',
		relevance_score REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (from_article_id) REFERENCES articles(id) ON DELETE CASCADE,
		FOREIGN KEY (to_article_id) REFERENCES articles(id) ON DELETE CASCADE,
		UNIQUE(from_article_id, to_article_id)
	);

	CREATE TABLE IF NOT EXISTS crawl_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		start_url TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		max_articles INTEGER NOT NULL,
		articles_crawled INTEGER NOT NULL DEFAULT 0,
		articles_processed INTEGER NOT NULL DEFAULT 0,
		links_analyzed INTEGER NOT NULL DEFAULT 0,
		pages_failed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running'
	);

	CREATE INDEX IF NOT EXISTS idx_articles_title ON articles(title);
	CREATE INDEX IF NOT EXISTS idx_articles_parsed ON articles(parsed_at);
	CREATE INDEX IF NOT EXISTS idx_links_from ON links(from_article_id);
	CREATE INDEX IF NOT EXISTS idx_links_to ON links(to_article_id);
	CREATE INDEX IF NOT EXISTS idx_links_created ON links(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// wrapErr annotates err and marks connectivity failures with ErrUnavailable
func wrapErr(msg string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", msg, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if strings.Contains(err.Error(), "database is closed") {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrNotADB,
			sqlite3.ErrCorrupt, sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		}
	}
	return false
}

const articleColumns = `id, title, url, content, summary, categories, infobox, sections, latitude, longitude, parsed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		a                             Article
		categories, infobox, sections string
		latitude, longitude           sql.NullFloat64
		parsedAt                      sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Title, &a.URL, &a.Content, &a.Summary,
		&categories, &infobox, &sections, &latitude, &longitude, &parsedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(categories), &a.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories of article %d: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(infobox), &a.Infobox); err != nil {
		return nil, fmt.Errorf("failed to decode infobox of article %d: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(sections), &a.Sections); err != nil {
		return nil, fmt.Errorf("failed to decode sections of article %d: %w", a.ID, err)
	}
	if latitude.Valid && longitude.Valid {
		a.Coordinates = &Coordinates{Latitude: latitude.Float64, Longitude: longitude.Float64}
	}
	if parsedAt.Valid {
		a.ParsedAt = parsedAt.Time.UTC()
	}
	return &a, nil
}

func (s *SQLite) queryArticle(ctx context.Context, where string, arg any) (*Article, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+articleColumns+" FROM articles WHERE "+where, arg)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("failed to get article", err)
	}
	return a, nil
}

func (s *SQLite) queryArticles(ctx context.Context, query string, args ...any) ([]*Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("failed to query articles", err)
	}
	defer rows.Close()

	articles := make([]*Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, wrapErr("failed to scan article", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("error iterating articles", err)
	}
	return articles, nil
}

// GetArticle retrieves an article by exact title, returns nil if not found
func (s *SQLite) GetArticle(ctx context.Context, title string) (*Article, error) {
	return s.queryArticle(ctx, "title = ? ORDER BY parsed_at IS NULL, id LIMIT 1", title)
}

// GetArticleByURL retrieves an article by URL, returns nil if not found
func (s *SQLite) GetArticleByURL(ctx context.Context, url string) (*Article, error) {
	return s.queryArticle(ctx, "url = ?", url)
}

// GetArticleByID retrieves an article by id, returns nil if not found
func (s *SQLite) GetArticleByID(ctx context.Context, id int64) (*Article, error) {
	return s.queryArticle(ctx, "id = ?", id)
}

// SaveArticle inserts a new article or updates the row with the same URL.
// Returns the id of the inserted/existing article
func (s *SQLite) SaveArticle(ctx context.Context, a *Article) (int64, error) {
	if a.URL == "" || a.Title == "" {
		return 0, fmt.Errorf("article requires title and url")
	}
	if a.ParsedAt.IsZero() {
		a.ParsedAt = s.now().UTC()
	}

	categories, err := json.Marshal(nonNilStrings(a.Categories))
	if err != nil {
		return 0, fmt.Errorf("failed to encode categories: %w", err)
	}
	infobox, err := json.Marshal(nonNilMap(a.Infobox))
	if err != nil {
		return 0, fmt.Errorf("failed to encode infobox: %w", err)
	}
	sections, err := json.Marshal(nonNilSections(a.Sections))
	if err != nil {
		return 0, fmt.Errorf("failed to encode sections: %w", err)
	}

	var latitude, longitude sql.NullFloat64
	if a.Coordinates != nil {
		latitude = sql.NullFloat64{Float64: a.Coordinates.Latitude, Valid: true}
		longitude = sql.NullFloat64{Float64: a.Coordinates.Longitude, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO articles (title, url, content, summary, categories, infobox, sections, latitude, longitude, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			summary = excluded.summary,
			categories = excluded.categories,
			infobox = excluded.infobox,
			sections = excluded.sections,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			parsed_at = excluded.parsed_at
	`, a.Title, a.URL, a.Content, a.Summary, string(categories), string(infobox), string(sections),
		latitude, longitude, a.ParsedAt.UTC())
	if err != nil {
		return 0, wrapErr("failed to save article", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT id FROM articles WHERE url = ?", a.URL).Scan(&a.ID); err != nil {
		return 0, wrapErr("failed to retrieve article id", err)
	}
	return a.ID, nil
}

// EnsureArticle records a stub article for url unless one exists
func (s *SQLite) EnsureArticle(ctx context.Context, title, url string) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (title, url) VALUES (?, ?)
		ON CONFLICT(url) DO NOTHING
	`, title, url)
	if err != nil {
		return 0, wrapErr("failed to ensure article", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, "SELECT id FROM articles WHERE url = ?", url).Scan(&id); err != nil {
		return 0, wrapErr("failed to retrieve article id", err)
	}
	return id, nil
}

// SaveLink inserts a new link or refreshes score and anchor of an existing one
func (s *SQLite) SaveLink(ctx context.Context, l *Link) error {
	if err := ValidateLink(l); err != nil {
		return err
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO links (from_article_id, to_article_id, anchor_text, relevance_score, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(from_article_id, to_article_id) DO UPDATE SET
			anchor_text = excluded.anchor_text,
			relevance_score = excluded.relevance_score
	`, l.FromArticleID, l.ToArticleID, l.AnchorText, l.RelevanceScore, l.CreatedAt.UTC())
	if err != nil {
		return wrapErr("failed to save link", err)
	}
	return nil
}

// SearchArticles returns crawled articles whose title or summary contains query
func (s *SQLite) SearchArticles(ctx context.Context, query string, limit int) ([]*Article, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []*Article{}, nil
	}
	pattern := "%" + query + "%"
	return s.queryArticles(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE parsed_at IS NOT NULL AND (title LIKE ? OR summary LIKE ?)
		ORDER BY (title LIKE ?) DESC, title ASC
		LIMIT ?
	`, pattern, pattern, pattern, limit)
}

// ListArticles returns every article, stubs included, ordered by id
func (s *SQLite) ListArticles(ctx context.Context) ([]*Article, error) {
	return s.queryArticles(ctx, "SELECT "+articleColumns+" FROM articles ORDER BY id ASC")
}

// GetArticlesSince returns crawled articles parsed at or after since
func (s *SQLite) GetArticlesSince(ctx context.Context, since time.Time) ([]*Article, error) {
	return s.queryArticles(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE parsed_at IS NOT NULL AND parsed_at >= ?
		ORDER BY parsed_at ASC, id ASC
	`, since.UTC())
}

func scanLink(row rowScanner, extra ...any) (*Link, error) {
	var l Link
	dest := append([]any{&l.ID, &l.FromArticleID, &l.ToArticleID, &l.AnchorText, &l.RelevanceScore, &l.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

// ListLinks returns every link scoring at least minRelevance, ordered by id
func (s *SQLite) ListLinks(ctx context.Context, minRelevance float64) ([]*Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_article_id, to_article_id, anchor_text, relevance_score, created_at
		FROM links
		WHERE relevance_score >= ?
		ORDER BY id ASC
	`, minRelevance)
	if err != nil {
		return nil, wrapErr("failed to list links", err)
	}
	defer rows.Close()

	links := make([]*Link, 0)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, wrapErr("failed to scan link", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("error iterating links", err)
	}
	return links, nil
}

// RecentLinks returns the most recently created links with endpoint titles
func (s *SQLite) RecentLinks(ctx context.Context, limit int) ([]*LinkDetail, error) {
	if limit <= 0 {
		return []*LinkDetail{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.from_article_id, l.to_article_id, l.anchor_text, l.relevance_score, l.created_at,
			f.title, t.title
		FROM links l
		JOIN articles f ON f.id = l.from_article_id
		JOIN articles t ON t.id = l.to_article_id
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, wrapErr("failed to query recent links", err)
	}
	defer rows.Close()

	details := make([]*LinkDetail, 0)
	for rows.Next() {
		var fromTitle, toTitle string
		l, err := scanLink(rows, &fromTitle, &toTitle)
		if err != nil {
			return nil, wrapErr("failed to scan link", err)
		}
		details = append(details, &LinkDetail{Link: *l, FromTitle: fromTitle, ToTitle: toTitle})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("error iterating links", err)
	}
	return details, nil
}

// TopDegrees ranks linked articles by in+out degree, ties broken by id
func (s *SQLite) TopDegrees(ctx context.Context, limit int) ([]*Hub, error) {
	if limit <= 0 {
		return []*Hub{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, url, in_degree, out_degree FROM (
			SELECT a.id, a.title, a.url,
				(SELECT COUNT(*) FROM links l WHERE l.to_article_id = a.id) AS in_degree,
				(SELECT COUNT(*) FROM links l WHERE l.from_article_id = a.id) AS out_degree
			FROM articles a
		)
		WHERE in_degree + out_degree > 0
		ORDER BY in_degree + out_degree DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, wrapErr("failed to rank hubs", err)
	}
	defer rows.Close()

	hubs := make([]*Hub, 0)
	for rows.Next() {
		var h Hub
		if err := rows.Scan(&h.ArticleID, &h.Title, &h.URL, &h.InDegree, &h.OutDegree); err != nil {
			return nil, wrapErr("failed to scan hub", err)
		}
		hubs = append(hubs, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("error iterating hubs", err)
	}
	return hubs, nil
}

// GetStats computes aggregate counts over the store
func (s *SQLite) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	var avgRelevance sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM articles WHERE parsed_at IS NOT NULL),
			(SELECT COUNT(*) FROM articles WHERE parsed_at IS NULL),
			(SELECT COUNT(*) FROM links),
			(SELECT COUNT(*) FROM crawl_sessions),
			(SELECT AVG(relevance_score) FROM links)
	`).Scan(&st.TotalArticles, &st.PendingArticles, &st.TotalLinks, &st.TotalSessions, &avgRelevance)
	if err != nil {
		return nil, wrapErr("failed to compute stats", err)
	}
	st.AvgRelevance = avgRelevance.Float64
	if st.TotalArticles > 0 {
		st.AvgLinksPerArticle = float64(st.TotalLinks) / float64(st.TotalArticles)
	}

	var last sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT parsed_at FROM articles WHERE parsed_at IS NOT NULL
		ORDER BY parsed_at DESC LIMIT 1
	`).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return nil, wrapErr("failed to read last parse time", err)
	}
	if last.Valid {
		st.LastParsedAt = last.Time.UTC()
	}
	return &st, nil
}

// Cleanup deletes articles parsed before now-keepDays, plus stubs left without links
func (s *SQLite) Cleanup(ctx context.Context, keepDays int) (int, error) {
	if keepDays < 1 {
		return 0, fmt.Errorf("keep_days must be >= 1")
	}
	cutoff := s.now().UTC().AddDate(0, 0, -keepDays)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("failed to begin cleanup", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM articles WHERE parsed_at IS NOT NULL AND parsed_at < ?", cutoff)
	if err != nil {
		return 0, wrapErr("failed to delete old articles", err)
	}
	deleted, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `
		DELETE FROM articles
		WHERE parsed_at IS NULL
			AND id NOT IN (SELECT from_article_id FROM links)
			AND id NOT IN (SELECT to_article_id FROM links)
	`)
	if err != nil {
		return 0, wrapErr("failed to delete orphan stubs", err)
	}
	orphans, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, wrapErr("failed to commit cleanup", err)
	}
	return int(deleted + orphans), nil
}

// CreateSession inserts a running crawl session and returns its id
func (s *SQLite) CreateSession(ctx context.Context, cs *CrawlSession) (int64, error) {
	if cs.StartTime.IsZero() {
		cs.StartTime = s.now().UTC()
	}
	if cs.Status == "" {
		cs.Status = SessionRunning
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_sessions (run_id, start_time, start_url, max_depth, max_articles, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cs.RunID, cs.StartTime.UTC(), cs.StartURL, cs.MaxDepth, cs.MaxArticles, string(cs.Status))
	if err != nil {
		return 0, wrapErr("failed to create session", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapErr("failed to retrieve session id", err)
	}
	cs.ID = id
	return id, nil
}

// FinishSession writes final statistics; a session can only be finished once
func (s *SQLite) FinishSession(ctx context.Context, cs *CrawlSession) error {
	if cs.EndTime.IsZero() {
		cs.EndTime = s.now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE crawl_sessions SET
			end_time = ?, articles_crawled = ?, articles_processed = ?,
			links_analyzed = ?, pages_failed = ?, status = ?
		WHERE id = ? AND end_time IS NULL
	`, cs.EndTime.UTC(), cs.ArticlesCrawled, cs.ArticlesProcessed, cs.LinksAnalyzed,
		cs.PagesFailed, string(cs.Status), cs.ID)
	if err != nil {
		return wrapErr("failed to finish session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", cs.ID, ErrSessionFinished)
	}
	return nil
}

const sessionColumns = `id, run_id, start_time, end_time, start_url, max_depth, max_articles,
	articles_crawled, articles_processed, links_analyzed, pages_failed, status`

func scanSession(row rowScanner) (*CrawlSession, error) {
	var cs CrawlSession
	var endTime sql.NullTime
	var status string
	if err := row.Scan(&cs.ID, &cs.RunID, &cs.StartTime, &endTime, &cs.StartURL, &cs.MaxDepth, &cs.MaxArticles,
		&cs.ArticlesCrawled, &cs.ArticlesProcessed, &cs.LinksAnalyzed, &cs.PagesFailed, &status); err != nil {
		return nil, err
	}
	cs.StartTime = cs.StartTime.UTC()
	if endTime.Valid {
		cs.EndTime = endTime.Time.UTC()
	}
	cs.Status = SessionStatus(status)
	return &cs, nil
}

// GetSession retrieves a crawl session by id, returns nil if not found
func (s *SQLite) GetSession(ctx context.Context, id int64) (*CrawlSession, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM crawl_sessions WHERE id = ?", id)
	cs, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("failed to get session", err)
	}
	return cs, nil
}

// ListSessions returns the most recent sessions first
func (s *SQLite) ListSessions(ctx context.Context, limit int) ([]*CrawlSession, error) {
	if limit <= 0 {
		return []*CrawlSession{}, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+sessionColumns+" FROM crawl_sessions ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, wrapErr("failed to list sessions", err)
	}
	defer rows.Close()

	sessions := make([]*CrawlSession, 0)
	for rows.Next() {
		cs, err := scanSession(rows)
		if err != nil {
			return nil, wrapErr("failed to scan session", err)
		}
		sessions = append(sessions, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("error iterating sessions", err)
	}
	return sessions, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilMap(v map[string]string) map[string]string {
	if v == nil {
		return map[string]string{}
	}
	return v
}

func nonNilSections(v []Section) []Section {
	if v == nil {
		return []Section{}
	}
	return v
}
