// Package relevance scores links discovered on an article against a reader's
// interest profile and picks the ones worth following.
package relevance

import (
	"sort"
	"strings"
	"unicode"

	"github.com/alvmarrod/wiki-weaver/internal/storage"
)

// Boost is an extra keyword that adds Weight to a link's score when matched
type Boost struct {
	Keyword string  `json:"keyword" yaml:"keyword"`
	Weight  float64 `json:"weight" yaml:"weight"`
}

// Profile is the ordered set of interests a crawl is steered by
type Profile struct {
	Interests []string
	Boosts    []Boost
}

// Candidate is a raw outbound link extracted from a page
type Candidate struct {
	Title      string
	AnchorText string
	URL        string
}

// ScoredLink is a candidate with its relevance score attached
type ScoredLink struct {
	Candidate
	Score float64
}

// Options tunes the scoring formula
type Options struct {
	// BaseScore is granted to every well-formed link
	BaseScore float64
	// KeywordWeight is the increment for the first hit of an interest keyword
	KeywordWeight float64
	// Damping multiplies the increment for every further hit of the same keyword
	Damping float64
	// CategoryWeight is the bonus for full overlap with the source categories
	CategoryWeight float64
	// MinRelevance is the threshold used by GetRecommendations
	MinRelevance float64
}

// DefaultOptions returns the scoring constants used by crawls
func DefaultOptions() Options {
	return Options{
		BaseScore:      0.1,
		KeywordWeight:  0.3,
		Damping:        0.5,
		CategoryWeight: 0.2,
		MinRelevance:   0.1,
	}
}

// Filter selects which scored links survive FilterLinks
type Filter struct {
	// MinRelevance drops links scoring below it
	MinRelevance float64
	// MaxCount keeps at most this many links, best first. Zero keeps all.
	MaxCount int
	// Deduplicate keeps only the best-scoring link per title
	Deduplicate bool
}

// Analyzer is stateless and safe for concurrent use
type Analyzer struct {
	opts Options
}

// NewAnalyzer creates an analyzer with the given options
func NewAnalyzer(opts Options) *Analyzer {
	return &Analyzer{opts: opts}
}

// MinRelevance returns the configured recommendation threshold
func (a *Analyzer) MinRelevance() float64 {
	return a.opts.MinRelevance
}

// CalculateRelevance scores a link in [0,1]
func (a *Analyzer) CalculateRelevance(link Candidate, source *storage.Article, profile Profile) float64 {
	title := strings.ToLower(link.Title)
	anchor := strings.ToLower(link.AnchorText)

	score := a.opts.BaseScore

	for _, kw := range uniqueKeywords(profile.Interests) {
		hits := strings.Count(title, kw) + strings.Count(anchor, kw)
		increment := a.opts.KeywordWeight
		for i := 0; i < hits; i++ {
			score += increment
			increment *= a.opts.Damping
		}
	}

	if source != nil {
		score += a.opts.CategoryWeight * categoryOverlap(link.Title, source.Categories)
	}

	seen := make(map[string]bool)
	for _, b := range profile.Boosts {
		kw := strings.ToLower(strings.TrimSpace(b.Keyword))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		if strings.Contains(title, kw) || strings.Contains(anchor, kw) {
			score += b.Weight
		}
	}

	return clamp(score)
}

// AnalyzeLinks scores every well-formed candidate. Candidates without a
// title or URL are skipped; nothing is filtered by score here.
func (a *Analyzer) AnalyzeLinks(links []Candidate, source *storage.Article, profile Profile) []ScoredLink {
	scored := make([]ScoredLink, 0, len(links))
	for _, link := range links {
		if strings.TrimSpace(link.Title) == "" || strings.TrimSpace(link.URL) == "" {
			continue
		}
		scored = append(scored, ScoredLink{
			Candidate: link,
			Score:     a.CalculateRelevance(link, source, profile),
		})
	}
	return scored
}

// FilterLinks applies the threshold, then title deduplication, then the count cap.
// When capped the result is ordered by descending score, ties in input order.
func (a *Analyzer) FilterLinks(links []ScoredLink, f Filter) []ScoredLink {
	kept := make([]ScoredLink, 0, len(links))
	for _, l := range links {
		if l.Score >= f.MinRelevance {
			kept = append(kept, l)
		}
	}

	if f.Deduplicate {
		best := make(map[string]int) // normalized title -> index in deduped
		deduped := make([]ScoredLink, 0, len(kept))
		for _, l := range kept {
			key := normalizeTitle(l.Title)
			if i, ok := best[key]; ok {
				if l.Score > deduped[i].Score {
					deduped[i] = l
				}
				continue
			}
			best[key] = len(deduped)
			deduped = append(deduped, l)
		}
		kept = deduped
	}

	if f.MaxCount > 0 {
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].Score > kept[j].Score
		})
		if len(kept) > f.MaxCount {
			kept = kept[:f.MaxCount]
		}
	}

	return kept
}

// GetRecommendations returns the best links to follow from source.
// A non-positive limit disables the cap.
func (a *Analyzer) GetRecommendations(source *storage.Article, candidates []Candidate, profile Profile, limit int) []ScoredLink {
	scored := a.AnalyzeLinks(candidates, source, profile)
	scored = a.FilterLinks(scored, Filter{MinRelevance: a.opts.MinRelevance, Deduplicate: true})
	return a.FilterLinks(scored, Filter{MaxCount: limit})
}

func uniqueKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// categoryOverlap is the share of significant title words that appear in
// the source article's categories
func categoryOverlap(title string, categories []string) float64 {
	words := significantWords(title)
	if len(words) == 0 || len(categories) == 0 {
		return 0
	}

	catWords := make(map[string]bool)
	for _, c := range categories {
		for _, w := range significantWords(c) {
			catWords[w] = true
		}
	}

	matched := 0
	for _, w := range words {
		if catWords[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}

var stopWords = map[string]bool{
	"with": true, "from": true, "that": true, "this": true, "their": true,
	"articles": true, "pages": true, "list": true, "lists": true,
}

func significantWords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 4 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		words = append(words, f)
	}
	return words
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(title, "_", " ")), " "))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
