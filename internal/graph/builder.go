package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/alvmarrod/wiki-weaver/internal/storage"
)

// Builder materializes graphs from an ArticleStore
type Builder struct {
	store storage.ArticleStore
}

// NewBuilder creates a builder reading from store
func NewBuilder(store storage.ArticleStore) *Builder {
	return &Builder{store: store}
}

// CompleteOptions controls BuildComplete
type CompleteOptions struct {
	MinRelevance float64
	// IncludeIsolated adds crawled articles that no qualifying link touches
	IncludeIsolated bool
}

func validateRelevance(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: min relevance %v outside [0,1]", ErrValidation, v)
	}
	return nil
}

// BuildComplete builds the graph of every link scoring at least MinRelevance
func (b *Builder) BuildComplete(ctx context.Context, opts CompleteOptions) (*Graph, error) {
	if err := validateRelevance(opts.MinRelevance); err != nil {
		return nil, err
	}

	articles, links, err := b.load(ctx, opts.MinRelevance)
	if err != nil {
		return nil, err
	}

	include := make(map[int64]bool)
	edges := make([]Edge, 0, len(links))
	for _, l := range links {
		if !usable(l, articles) {
			continue
		}
		include[l.FromArticleID] = true
		include[l.ToArticleID] = true
		edges = append(edges, toEdge(l))
	}

	if opts.IncludeIsolated {
		for id, a := range articles {
			if !a.IsStub() {
				include[id] = true
			}
		}
	}

	depths := make(map[int64]int, len(include))
	for id := range include {
		depths[id] = 0
	}
	return assemble(articles, depths, edges), nil
}

// BuildCentered walks outward from centerID over qualifying links in both
// directions, up to maxDepth hops. An unknown center yields an empty graph.
func (b *Builder) BuildCentered(ctx context.Context, centerID int64, minRelevance float64, maxDepth int) (*Graph, error) {
	if err := validateRelevance(minRelevance); err != nil {
		return nil, err
	}
	if maxDepth < 0 {
		return nil, fmt.Errorf("%w: max depth %d is negative", ErrValidation, maxDepth)
	}

	articles, links, err := b.load(ctx, minRelevance)
	if err != nil {
		return nil, err
	}
	if _, ok := articles[centerID]; !ok {
		return Empty(), nil
	}

	adjacency := make(map[int64][]int64)
	for _, l := range links {
		if !usable(l, articles) {
			continue
		}
		adjacency[l.FromArticleID] = append(adjacency[l.FromArticleID], l.ToArticleID)
		adjacency[l.ToArticleID] = append(adjacency[l.ToArticleID], l.FromArticleID)
	}

	depths := map[int64]int{centerID: 0}
	frontier := []int64{centerID}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []int64
		for _, id := range frontier {
			for _, n := range adjacency[id] {
				if _, seen := depths[n]; seen {
					continue
				}
				depths[n] = depth
				next = append(next, n)
			}
		}
		frontier = next
	}

	edges := make([]Edge, 0)
	for _, l := range links {
		if !usable(l, articles) {
			continue
		}
		_, fromIn := depths[l.FromArticleID]
		_, toIn := depths[l.ToArticleID]
		if fromIn && toIn {
			edges = append(edges, toEdge(l))
		}
	}

	return assemble(articles, depths, edges), nil
}

func (b *Builder) load(ctx context.Context, minRelevance float64) (map[int64]*storage.Article, []*storage.Link, error) {
	list, err := b.store.ListArticles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load articles: %w", err)
	}
	links, err := b.store.ListLinks(ctx, minRelevance)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load links: %w", err)
	}

	articles := make(map[int64]*storage.Article, len(list))
	for _, a := range list {
		articles[a.ID] = a
	}
	return articles, links, nil
}

// usable drops self loops and links to articles missing from the snapshot
func usable(l *storage.Link, articles map[int64]*storage.Article) bool {
	if l.FromArticleID == l.ToArticleID {
		return false
	}
	_, fromOK := articles[l.FromArticleID]
	_, toOK := articles[l.ToArticleID]
	return fromOK && toOK
}

func toEdge(l *storage.Link) Edge {
	return Edge{From: l.FromArticleID, To: l.ToArticleID, Weight: l.RelevanceScore, AnchorText: l.AnchorText}
}

// assemble builds nodes ordered by id with type and importance annotations
func assemble(articles map[int64]*storage.Article, depths map[int64]int, edges []Edge) *Graph {
	ids := make([]int64, 0, len(depths))
	for id := range depths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	degree := make(map[int64]int, len(ids))
	for _, e := range edges {
		degree[e.From]++
		degree[e.To]++
	}

	g := &Graph{Nodes: make([]Node, 0, len(ids)), Edges: edges}
	for _, id := range ids {
		a := articles[id]
		categories := append([]string{}, a.Categories...)
		g.Nodes = append(g.Nodes, Node{
			ID:         a.ID,
			Title:      a.Title,
			URL:        a.URL,
			Summary:    a.Summary,
			Depth:      depths[id],
			Categories: categories,
			NodeType:   Classify(a.Title, a.Categories),
		})
	}

	setImportance(g.Nodes, degree)
	return g
}

// setImportance min-max normalizes total degree; equal degrees map to 1.0
func setImportance(nodes []Node, degree map[int64]int) {
	if len(nodes) == 0 {
		return
	}
	lo, hi := degree[nodes[0].ID], degree[nodes[0].ID]
	for _, n := range nodes[1:] {
		d := degree[n.ID]
		lo = min(lo, d)
		hi = max(hi, d)
	}
	for i := range nodes {
		if hi == lo {
			nodes[i].Importance = 1.0
			continue
		}
		nodes[i].Importance = float64(degree[nodes[i].ID]-lo) / float64(hi-lo)
	}
}
