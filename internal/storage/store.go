package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when the persistence layer cannot be reached.
	// Crawls treat it as fatal.
	ErrUnavailable = errors.New("article store unavailable")

	// ErrInvalidLink is returned for links with missing endpoints or an out-of-range score
	ErrInvalidLink = errors.New("invalid link")

	// ErrSessionFinished is returned when finalizing an already finished session
	ErrSessionFinished = errors.New("crawl session already finished")
)

// ArticleStore is the persistence contract shared by the crawler, the graph
// builder and the analytics. Lookups return (nil, nil) when nothing matches.
type ArticleStore interface {
	GetArticle(ctx context.Context, title string) (*Article, error)
	GetArticleByURL(ctx context.Context, url string) (*Article, error)
	GetArticleByID(ctx context.Context, id int64) (*Article, error)

	// SaveArticle inserts or updates the article keyed by URL and returns its id.
	// A zero ParsedAt is set to the store's current time.
	SaveArticle(ctx context.Context, a *Article) (int64, error)

	// EnsureArticle records a stub for url unless a row already exists.
	EnsureArticle(ctx context.Context, title, url string) (int64, error)

	// SaveLink inserts the link or updates the score of the existing (from, to) row.
	SaveLink(ctx context.Context, l *Link) error

	SearchArticles(ctx context.Context, query string, limit int) ([]*Article, error)
	ListArticles(ctx context.Context) ([]*Article, error)
	ListLinks(ctx context.Context, minRelevance float64) ([]*Link, error)
	RecentLinks(ctx context.Context, limit int) ([]*LinkDetail, error)
	TopDegrees(ctx context.Context, limit int) ([]*Hub, error)
	GetStats(ctx context.Context) (*Stats, error)
	GetArticlesSince(ctx context.Context, since time.Time) ([]*Article, error)

	// Cleanup removes articles parsed more than keepDays ago together with
	// their links and returns the number of deleted articles.
	Cleanup(ctx context.Context, keepDays int) (int, error)

	CreateSession(ctx context.Context, s *CrawlSession) (int64, error)
	FinishSession(ctx context.Context, s *CrawlSession) error
	GetSession(ctx context.Context, id int64) (*CrawlSession, error)
	ListSessions(ctx context.Context, limit int) ([]*CrawlSession, error)

	Close() error
}

// ValidateLink checks the invariants every backend enforces before writing a link
func ValidateLink(l *Link) error {
	if l.FromArticleID <= 0 || l.ToArticleID <= 0 {
		return ErrInvalidLink
	}
	if l.RelevanceScore < 0 || l.RelevanceScore > 1 {
		return ErrInvalidLink
	}
	return nil
}
