package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/alvmarrod/wiki-weaver/internal/storage"
)

// DefaultHighActivityThreshold is the articles-per-day rate above which a
// day belongs to a high activity phase
const DefaultHighActivityThreshold = 5.0

// Strength labels for discoveries
const (
	StrengthWeak     = "weak"
	StrengthModerate = "moderate"
	StrengthStrong   = "strong"
)

// Phase kinds
const (
	PhaseHighActivity = "high_activity"
	PhaseSteady       = "steady"
)

// Analytics answers store-backed questions that need no materialized graph
type Analytics struct {
	store                 storage.ArticleStore
	highActivityThreshold float64
}

// NewAnalytics creates analytics over store. A negative threshold falls back
// to DefaultHighActivityThreshold; zero marks every active day as high activity.
func NewAnalytics(store storage.ArticleStore, highActivityThreshold float64) *Analytics {
	if highActivityThreshold < 0 {
		highActivityThreshold = DefaultHighActivityThreshold
	}
	return &Analytics{store: store, highActivityThreshold: highActivityThreshold}
}

// Hub is an article ranked by total degree
type Hub struct {
	ArticleID int64  `json:"article_id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
	Degree    int    `json:"degree"`
}

// Discovery is a recently created link with a strength label
type Discovery struct {
	FromID         int64     `json:"from_id"`
	FromTitle      string    `json:"from_title"`
	ToID           int64     `json:"to_id"`
	ToTitle        string    `json:"to_title"`
	AnchorText     string    `json:"anchor_text"`
	RelevanceScore float64   `json:"relevance_score"`
	Strength       string    `json:"strength"`
	CreatedAt      time.Time `json:"created_at"`
}

// Phase is a contiguous run of days on the same side of the activity threshold
type Phase struct {
	Kind     string  `json:"kind"`
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Days     int     `json:"days"`
	Articles int     `json:"articles"`
	AvgRate  float64 `json:"avg_rate"`
}

// Growth is the per-day article timeline
type Growth struct {
	Dates              []string  `json:"dates"`
	DailyCounts        []int     `json:"daily_counts"`
	ArticlesCumulative []int     `json:"articles_cumulative"`
	RollingRate        []float64 `json:"rolling_rate"`
	LearningPhases     []Phase   `json:"learning_phases"`
}

func validateLimit(limit int) error {
	if limit < 0 {
		return fmt.Errorf("%w: limit %d is negative", ErrValidation, limit)
	}
	return nil
}

// KnowledgeHubs ranks articles by in+out degree using the store's aggregate query
func (a *Analytics) KnowledgeHubs(ctx context.Context, limit int) ([]Hub, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	hubs := make([]Hub, 0)
	if limit == 0 {
		return hubs, nil
	}

	rows, err := a.store.TopDegrees(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank hubs: %w", err)
	}
	for _, r := range rows {
		hubs = append(hubs, Hub{
			ArticleID: r.ArticleID,
			Title:     r.Title,
			URL:       r.URL,
			InDegree:  r.InDegree,
			OutDegree: r.OutDegree,
			Degree:    r.Degree(),
		})
	}
	return hubs, nil
}

// Strength buckets a relevance score
func Strength(score float64) string {
	switch {
	case score < 0.4:
		return StrengthWeak
	case score < 0.7:
		return StrengthModerate
	default:
		return StrengthStrong
	}
}

// RecentDiscoveries returns the newest links first
func (a *Analytics) RecentDiscoveries(ctx context.Context, limit int) ([]Discovery, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	out := make([]Discovery, 0)
	if limit == 0 {
		return out, nil
	}

	links, err := a.store.RecentLinks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent links: %w", err)
	}
	for _, l := range links {
		out = append(out, Discovery{
			FromID:         l.FromArticleID,
			FromTitle:      l.FromTitle,
			ToID:           l.ToArticleID,
			ToTitle:        l.ToTitle,
			AnchorText:     l.AnchorText,
			RelevanceScore: l.RelevanceScore,
			Strength:       Strength(l.RelevanceScore),
			CreatedAt:      l.CreatedAt,
		})
	}
	return out, nil
}

const dayLayout = "2006-01-02"

// TemporalGrowth buckets crawled articles by UTC day. With minRelevance > 0
// only articles at either end of a link scoring at least minRelevance count.
func (a *Analytics) TemporalGrowth(ctx context.Context, minRelevance float64) (*Growth, error) {
	if err := validateRelevance(minRelevance); err != nil {
		return nil, err
	}

	articles, err := a.store.GetArticlesSince(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}

	if minRelevance > 0 {
		links, err := a.store.ListLinks(ctx, minRelevance)
		if err != nil {
			return nil, fmt.Errorf("failed to load links: %w", err)
		}
		endpoints := make(map[int64]bool, 2*len(links))
		for _, l := range links {
			endpoints[l.FromArticleID] = true
			endpoints[l.ToArticleID] = true
		}
		kept := make([]*storage.Article, 0, len(articles))
		for _, art := range articles {
			if endpoints[art.ID] {
				kept = append(kept, art)
			}
		}
		articles = kept
	}

	growth := &Growth{
		Dates:              []string{},
		DailyCounts:        []int{},
		ArticlesCumulative: []int{},
		RollingRate:        []float64{},
		LearningPhases:     []Phase{},
	}

	perDay := make(map[string]int)
	var first, last time.Time
	for _, art := range articles {
		if art.IsStub() {
			continue
		}
		day := art.ParsedAt.UTC().Truncate(24 * time.Hour)
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
		perDay[day.Format(dayLayout)]++
	}
	if first.IsZero() {
		return growth, nil
	}

	total := 0
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		key := day.Format(dayLayout)
		total += perDay[key]
		growth.Dates = append(growth.Dates, key)
		growth.DailyCounts = append(growth.DailyCounts, perDay[key])
		growth.ArticlesCumulative = append(growth.ArticlesCumulative, total)
	}

	for i := range growth.Dates {
		window := 0
		for j := max(0, i-6); j <= i; j++ {
			window += growth.DailyCounts[j]
		}
		growth.RollingRate = append(growth.RollingRate, float64(window)/7)
	}

	growth.LearningPhases = a.phases(growth)
	return growth, nil
}

// phases splits the timeline where the rolling rate crosses the threshold
func (a *Analytics) phases(g *Growth) []Phase {
	phases := []Phase{}
	var rateSum float64
	for i, rate := range g.RollingRate {
		kind := PhaseSteady
		if rate > a.highActivityThreshold {
			kind = PhaseHighActivity
		}

		if len(phases) == 0 || phases[len(phases)-1].Kind != kind {
			phases = append(phases, Phase{Kind: kind, Start: g.Dates[i]})
			rateSum = 0
		}
		p := &phases[len(phases)-1]
		p.End = g.Dates[i]
		p.Days++
		p.Articles += g.DailyCounts[i]
		rateSum += rate
		p.AvgRate = rateSum / float64(p.Days)
	}
	return phases
}
