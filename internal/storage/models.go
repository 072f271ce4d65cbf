package storage

import "time"

// Coordinates is the optional geographic position of an article
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Section is one titled block of article text
type Section struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Article represents a crawled (or discovered but not yet crawled) Wikipedia article
type Article struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Content     string            `json:"content"`
	Summary     string            `json:"summary"`
	Categories  []string          `json:"categories"`
	Infobox     map[string]string `json:"infobox,omitempty"`
	Sections    []Section         `json:"sections,omitempty"`
	Coordinates *Coordinates      `json:"coordinates,omitempty"`
	ParsedAt    time.Time         `json:"parsed_at"`
}

// IsStub reports whether the article is only known through an inbound link
func (a *Article) IsStub() bool {
	return a.ParsedAt.IsZero()
}

// Link represents a directed, scored link between two articles
type Link struct {
	ID             int64     `json:"id"`
	FromArticleID  int64     `json:"from_article_id"`
	ToArticleID    int64     `json:"to_article_id"`
	AnchorText     string    `json:"anchor_text"`
	RelevanceScore float64   `json:"relevance_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// LinkDetail is a Link annotated with the titles of both endpoints
type LinkDetail struct {
	Link
	FromTitle string `json:"from_title"`
	ToTitle   string `json:"to_title"`
}

// SessionStatus is the lifecycle state of a crawl session
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionAborted   SessionStatus = "aborted"
)

// CrawlSession records one bounded crawl run and its statistics
type CrawlSession struct {
	ID                int64         `json:"id"`
	RunID             string        `json:"run_id"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	StartURL          string        `json:"start_url"`
	MaxDepth          int           `json:"max_depth"`
	MaxArticles       int           `json:"max_articles"`
	ArticlesCrawled   int           `json:"articles_crawled"`
	ArticlesProcessed int           `json:"articles_processed"`
	LinksAnalyzed     int           `json:"links_analyzed"`
	PagesFailed       int           `json:"pages_failed"`
	Status            SessionStatus `json:"status"`
}

// Finished reports whether the session has been finalized
func (s *CrawlSession) Finished() bool {
	return !s.EndTime.IsZero()
}

// Stats holds aggregate counts over the whole store
type Stats struct {
	TotalArticles      int       `json:"total_articles"`
	PendingArticles    int       `json:"pending_articles"`
	TotalLinks         int       `json:"total_links"`
	TotalSessions      int       `json:"total_sessions"`
	AvgLinksPerArticle float64   `json:"avg_links_per_article"`
	AvgRelevance       float64   `json:"avg_relevance"`
	LastParsedAt       time.Time `json:"last_parsed_at"`
}

// Hub is an article together with its link degree
type Hub struct {
	ArticleID int64  `json:"article_id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
}

// Degree returns the total degree of the hub
func (h Hub) Degree() int {
	return h.InDegree + h.OutDegree
}
