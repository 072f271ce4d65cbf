package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Snapshot is a point-in-time view of crawl counters
type Snapshot struct {
	RunID             string    `json:"run_id,omitempty"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time,omitempty"`
	ArticlesCrawled   int       `json:"articles_crawled"`
	ArticlesProcessed int       `json:"articles_processed"`
	LinksAnalyzed     int       `json:"links_analyzed"`
	LinksRecorded     int       `json:"links_recorded"`
	PagesFetched      int       `json:"pages_fetched"`
	PagesFailed       int       `json:"pages_failed"`
	Retries           int       `json:"retries"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason,omitempty"`
}

// Tracker holds and manages crawl metrics
type Tracker struct {
	mu               sync.Mutex
	data             Snapshot
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker
func NewTracker(runID string) *Tracker {
	return &Tracker{
		data: Snapshot{
			RunID:     runID,
			StartTime: time.Now(),
		},
	}
}

// IncrementArticlesCrawled counts a page taken from the frontier and fetched
func (t *Tracker) IncrementArticlesCrawled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ArticlesCrawled++
}

// IncrementArticlesProcessed counts an article persisted to the store
func (t *Tracker) IncrementArticlesProcessed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ArticlesProcessed++
}

// AddLinksAnalyzed adds n scored candidate links
func (t *Tracker) AddLinksAnalyzed(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.LinksAnalyzed += n
}

// IncrementLinksRecorded counts a persisted link
func (t *Tracker) IncrementLinksRecorded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.LinksRecorded++
}

// IncrementPagesFetched increments the successful fetch counter
func (t *Tracker) IncrementPagesFetched() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFetched++
}

// IncrementPagesFailed increments the failed page counter
func (t *Tracker) IncrementPagesFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFailed++
}

// IncrementRetries counts a retried fetch
func (t *Tracker) IncrementRetries() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Retries++
}

// RecordFetchTime records a page fetch duration
func (t *Tracker) RecordFetchTime(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Finish stamps the end time and termination reason
func (t *Tracker) Finish(reason string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}
	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path string) error {
	jsonData, err := json.MarshalIndent(t.GetSnapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// ReadFromFile loads a snapshot written by WriteToFile
func ReadFromFile(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics file: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse metrics file: %w", err)
	}
	return &s, nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Articles: %d crawled, %d processed | Links: %d analyzed, %d recorded | Pages: %d fetched, %d failed",
		t.data.ArticlesCrawled,
		t.data.ArticlesProcessed,
		t.data.LinksAnalyzed,
		t.data.LinksRecorded,
		t.data.PagesFetched,
		t.data.PagesFailed,
	)
}
