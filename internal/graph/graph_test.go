package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/wiki-weaver/internal/memory"
	"github.com/alvmarrod/wiki-weaver/internal/storage"
)

type fixture struct {
	t     *testing.T
	store *memory.Store
	ids   map[string]int64
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, store: memory.NewStore(), ids: make(map[string]int64)}
}

func (f *fixture) article(title string, categories ...string) int64 {
	f.t.Helper()
	id, err := f.store.SaveArticle(context.Background(), &storage.Article{
		Title:      title,
		URL:        "https://en.wikipedia.org/wiki/" + title,
		Summary:    title + " summary",
		Categories: categories,
	})
	require.NoError(f.t, err)
	f.ids[title] = id
	return id
}

func (f *fixture) stub(title string) int64 {
	f.t.Helper()
	id, err := f.store.EnsureArticle(context.Background(), title, "https://en.wikipedia.org/wiki/"+title)
	require.NoError(f.t, err)
	f.ids[title] = id
	return id
}

func (f *fixture) link(from, to string, score float64) {
	f.t.Helper()
	require.NoError(f.t, f.store.SaveLink(context.Background(), &storage.Link{
		FromArticleID:  f.ids[from],
		ToArticleID:    f.ids[to],
		AnchorText:     to,
		RelevanceScore: score,
	}))
}

func titles(g *Graph) []string {
	out := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n.Title)
	}
	return out
}

func TestBuildCompleteThreshold(t *testing.T) {
	f := newFixture(t)
	f.article("A")
	f.article("B")
	f.article("C")
	f.link("A", "B", 0.55)
	f.link("A", "C", 0.1)

	b := NewBuilder(f.store)
	g, err := b.BuildComplete(context.Background(), CompleteOptions{MinRelevance: 0.3})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"A", "B"}, titles(g))
	require.Len(t, g.Edges, 1)
	assert.Equal(t, f.ids["A"], g.Edges[0].From)
	assert.Equal(t, f.ids["B"], g.Edges[0].To)
	assert.InDelta(t, 0.55, g.Edges[0].Weight, 1e-9)
}

func TestBuildCompleteIncludeIsolated(t *testing.T) {
	f := newFixture(t)
	f.article("A")
	f.article("B")
	f.article("Lonely")
	f.stub("Pending")
	f.link("A", "B", 0.5)

	g, err := NewBuilder(f.store).BuildComplete(context.Background(), CompleteOptions{IncludeIsolated: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "Lonely"}, titles(g))
}

func TestBuildCompleteEmptyAndInvalid(t *testing.T) {
	b := NewBuilder(memory.NewStore())

	g, err := b.BuildComplete(context.Background(), CompleteOptions{})
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)

	_, err = b.BuildComplete(context.Background(), CompleteOptions{MinRelevance: -0.1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBuildCentered(t *testing.T) {
	f := newFixture(t)
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		f.article(title)
	}
	f.link("A", "B", 0.8)
	f.link("B", "C", 0.8)
	f.link("D", "A", 0.8)
	f.link("A", "E", 0.1)

	b := NewBuilder(f.store)
	ctx := context.Background()

	t.Run("depth zero is the center alone", func(t *testing.T) {
		g, err := b.BuildCentered(ctx, f.ids["A"], 0, 0)
		require.NoError(t, err)
		require.Len(t, g.Nodes, 1)
		assert.Equal(t, "A", g.Nodes[0].Title)
		assert.Equal(t, 0, g.Nodes[0].Depth)
		assert.Empty(t, g.Edges)
	})

	t.Run("both directions with threshold", func(t *testing.T) {
		g, err := b.BuildCentered(ctx, f.ids["A"], 0.3, 1)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"A", "B", "D"}, titles(g))
		assert.Len(t, g.Edges, 2)

		d, ok := g.Node(f.ids["D"])
		require.True(t, ok)
		assert.Equal(t, 1, d.Depth)
	})

	t.Run("depth two", func(t *testing.T) {
		g, err := b.BuildCentered(ctx, f.ids["A"], 0.3, 2)
		require.NoError(t, err)
		c, ok := g.Node(f.ids["C"])
		require.True(t, ok)
		assert.Equal(t, 2, c.Depth)
		assert.Len(t, g.Nodes, 4)
	})

	t.Run("unknown center", func(t *testing.T) {
		g, err := b.BuildCentered(ctx, 9999, 0, 3)
		require.NoError(t, err)
		assert.Empty(t, g.Nodes)
		assert.Empty(t, g.Edges)
	})

	t.Run("negative depth", func(t *testing.T) {
		_, err := b.BuildCentered(ctx, f.ids["A"], 0, -1)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		title      string
		categories []string
		expected   NodeType
	}{
		{"Ada Lovelace", []string{"1815 births", "English mathematicians"}, NodePerson},
		{"Paris", []string{"Capitals in Europe"}, NodePlace},
		{"Acme Corp", []string{"Companies based in Ohio"}, NodeOrganization},
		{"Battle of Hastings", []string{"Battles involving England"}, NodeEvent},
		{"Machine learning", nil, NodeTechnology},
		{"Entropy", []string{"Physical concepts"}, NodeConcept},
		{"Banana", []string{"Fruit"}, NodeGeneral},
		{"Hastings", []string{"Wars of the Roses", "Towns in Sussex"}, NodePlace},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.title, tt.categories))
		})
	}
}

func TestImportance(t *testing.T) {
	f := newFixture(t)
	for _, title := range []string{"Hub", "L1", "L2", "L3"} {
		f.article(title)
	}
	f.link("Hub", "L1", 0.5)
	f.link("Hub", "L2", 0.5)
	f.link("L3", "Hub", 0.5)

	g, err := NewBuilder(f.store).BuildComplete(context.Background(), CompleteOptions{})
	require.NoError(t, err)

	for _, n := range g.Nodes {
		if n.Title == "Hub" {
			assert.Equal(t, 1.0, n.Importance)
		} else {
			assert.Equal(t, 0.0, n.Importance)
		}
	}

	single := &Graph{Nodes: []Node{{ID: 1}}}
	setImportance(single.Nodes, map[int64]int{})
	assert.Equal(t, 1.0, single.Nodes[0].Importance)
}

func TestComputeMetrics(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		m := ComputeMetrics(Empty())
		assert.Equal(t, 0, m.NodeCount)
		assert.Equal(t, 0.0, m.Density)
		assert.Equal(t, 0, m.ConnectedComponents)
	})

	t.Run("single node", func(t *testing.T) {
		m := ComputeMetrics(&Graph{Nodes: []Node{{ID: 1, NodeType: NodeGeneral}}})
		assert.Equal(t, 1, m.NodeCount)
		assert.Equal(t, 0.0, m.Density)
		assert.Equal(t, 1, m.ConnectedComponents)
	})

	t.Run("structure", func(t *testing.T) {
		g := &Graph{
			Nodes: []Node{
				{ID: 1, NodeType: NodeTechnology},
				{ID: 2, NodeType: NodeTechnology},
				{ID: 3, NodeType: NodePerson},
				{ID: 4, NodeType: NodeGeneral},
			},
			Edges: []Edge{
				{From: 1, To: 2, Weight: 0.4},
				{From: 1, To: 3, Weight: 0.8},
			},
		}
		m := ComputeMetrics(g)
		assert.Equal(t, len(g.Nodes), m.NodeCount)
		assert.Equal(t, 2, m.EdgeCount)
		assert.InDelta(t, 2.0/12.0, m.Density, 1e-9)
		assert.InDelta(t, 0.5, m.AvgOutDegree, 1e-9)
		assert.InDelta(t, 0.5, m.AvgInDegree, 1e-9)
		assert.Equal(t, 2, m.MaxOutDegree)
		assert.Equal(t, 1, m.MaxInDegree)
		assert.InDelta(t, 0.6, m.AvgEdgeWeight, 1e-9)
		assert.Equal(t, 2, m.ConnectedComponents)
		assert.Equal(t, map[NodeType]int{NodeTechnology: 2, NodePerson: 1, NodeGeneral: 1}, m.NodeTypeDistribution)
	})
}

func pathGraph(edges ...Edge) *Graph {
	g := &Graph{Edges: edges}
	seen := map[int64]bool{}
	for _, e := range edges {
		for _, id := range []int64{e.From, e.To} {
			if !seen[id] {
				seen[id] = true
				g.Nodes = append(g.Nodes, Node{ID: id})
			}
		}
	}
	return g
}

func TestShortestPath(t *testing.T) {
	g := pathGraph(
		Edge{From: 1, To: 2, Weight: 0.2},
		Edge{From: 2, To: 4, Weight: 0.2},
		Edge{From: 1, To: 3, Weight: 0.9},
		Edge{From: 3, To: 4, Weight: 0.9},
		Edge{From: 4, To: 5, Weight: 0.5},
		Edge{From: 1, To: 5, Weight: 0.1},
		Edge{From: 6, To: 1, Weight: 0.5},
	)

	assert.Equal(t, []int64{1}, ShortestPath(g, 1, 1))
	assert.Equal(t, []int64{1, 5}, ShortestPath(g, 1, 5), "fewest hops beat weight")
	assert.Equal(t, []int64{1, 3, 4}, ShortestPath(g, 1, 4), "ties prefer heavier paths")
	assert.Equal(t, []int64{6, 1, 3, 4}, ShortestPath(g, 6, 4))
	assert.Nil(t, ShortestPath(g, 1, 6), "edges are directed")
	assert.Nil(t, ShortestPath(g, 1, 42))
	assert.Nil(t, ShortestPath(Empty(), 1, 1))
}

func TestKnowledgeHubs(t *testing.T) {
	f := newFixture(t)
	f.article("A")
	f.article("B")
	f.article("C")
	f.link("A", "B", 0.5)
	f.link("A", "C", 0.5)
	f.link("B", "C", 0.5)

	a := NewAnalytics(f.store, DefaultHighActivityThreshold)
	ctx := context.Background()

	hubs, err := a.KnowledgeHubs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, hubs, 2)
	for _, h := range hubs {
		assert.Equal(t, 2, h.Degree)
	}

	empty, err := a.KnowledgeHubs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = a.KnowledgeHubs(ctx, -1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRecentDiscoveries(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.store.Now = func() time.Time { return now }

	f.article("A")
	f.article("B")
	f.article("C")
	f.article("D")
	f.link("A", "B", 0.2)
	now = now.Add(time.Minute)
	f.link("A", "C", 0.5)
	now = now.Add(time.Minute)
	f.link("A", "D", 0.9)

	a := NewAnalytics(f.store, DefaultHighActivityThreshold)
	got, err := a.RecentDiscoveries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "D", got[0].ToTitle)
	assert.Equal(t, StrengthStrong, got[0].Strength)
	assert.Equal(t, StrengthModerate, got[1].Strength)
	assert.Equal(t, StrengthWeak, got[2].Strength)

	_, err = a.RecentDiscoveries(context.Background(), -5)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStrengthBuckets(t *testing.T) {
	assert.Equal(t, StrengthWeak, Strength(0))
	assert.Equal(t, StrengthWeak, Strength(0.39))
	assert.Equal(t, StrengthModerate, Strength(0.4))
	assert.Equal(t, StrengthModerate, Strength(0.69))
	assert.Equal(t, StrengthStrong, Strength(0.7))
	assert.Equal(t, StrengthStrong, Strength(1))
}

func TestTemporalGrowth(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	day1 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	save := func(title string, at time.Time) int64 {
		id, err := store.SaveArticle(ctx, &storage.Article{Title: title, URL: "u/" + title, ParsedAt: at})
		require.NoError(t, err)
		return id
	}

	var first, last int64
	for i := 0; i < 10; i++ {
		id := save(string(rune('a'+i)), day1.Add(time.Duration(i)*time.Minute))
		if i == 0 {
			first = id
		}
	}
	last = save("late", day1.AddDate(0, 0, 8))
	_, err := store.EnsureArticle(ctx, "stub", "u/stub")
	require.NoError(t, err)

	a := NewAnalytics(store, 1.0)
	g, err := a.TemporalGrowth(ctx, 0)
	require.NoError(t, err)

	require.Len(t, g.Dates, 9)
	assert.Equal(t, "2026-02-01", g.Dates[0])
	assert.Equal(t, "2026-02-09", g.Dates[8])
	assert.Equal(t, 10, g.DailyCounts[0])
	assert.Equal(t, 0, g.DailyCounts[4])
	assert.Equal(t, 11, g.ArticlesCumulative[8])
	assert.InDelta(t, 10.0/7.0, g.RollingRate[6], 1e-9)
	assert.InDelta(t, 0, g.RollingRate[7], 1e-9)

	require.Len(t, g.LearningPhases, 2)
	high := g.LearningPhases[0]
	assert.Equal(t, PhaseHighActivity, high.Kind)
	assert.Equal(t, "2026-02-01", high.Start)
	assert.Equal(t, "2026-02-07", high.End)
	assert.Equal(t, 7, high.Days)
	assert.Equal(t, 10, high.Articles)
	assert.InDelta(t, 10.0/7.0, high.AvgRate, 1e-9)
	assert.Equal(t, PhaseSteady, g.LearningPhases[1].Kind)
	assert.Equal(t, 1, g.LearningPhases[1].Articles)

	t.Run("zero threshold marks every active day", func(t *testing.T) {
		g, err := NewAnalytics(store, 0).TemporalGrowth(ctx, 0)
		require.NoError(t, err)
		require.Len(t, g.LearningPhases, 3)
		assert.Equal(t, PhaseHighActivity, g.LearningPhases[0].Kind)
		assert.Equal(t, 7, g.LearningPhases[0].Days)
		assert.Equal(t, PhaseSteady, g.LearningPhases[1].Kind)
		assert.Equal(t, "2026-02-08", g.LearningPhases[1].Start)
		assert.Equal(t, PhaseHighActivity, g.LearningPhases[2].Kind)
		assert.Equal(t, "2026-02-09", g.LearningPhases[2].Start)
	})

	t.Run("min relevance restricts to link endpoints", func(t *testing.T) {
		require.NoError(t, store.SaveLink(ctx, &storage.Link{FromArticleID: first, ToArticleID: last, RelevanceScore: 0.8}))

		g, err := a.TemporalGrowth(ctx, 0.5)
		require.NoError(t, err)
		require.Len(t, g.Dates, 9)
		assert.Equal(t, 1, g.DailyCounts[0])
		assert.Equal(t, 2, g.ArticlesCumulative[8])
	})

	t.Run("empty store", func(t *testing.T) {
		g, err := NewAnalytics(memory.NewStore(), DefaultHighActivityThreshold).TemporalGrowth(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, g.Dates)
		assert.Empty(t, g.LearningPhases)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := a.TemporalGrowth(ctx, 2)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestHTTPExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in Graph
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Len(t, in.Nodes, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"nodes":[{"id":1,"x":0.5,"y":-1.5,"centrality":0.9,"community":3}]}`))
	}))
	defer srv.Close()

	g := &Graph{Nodes: []Node{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}}, Edges: []Edge{{From: 1, To: 2, Weight: 0.5}}}
	ext := NewHTTPExtension(srv.URL, time.Second)

	enriched := Enrich(context.Background(), ext, g)
	require.Len(t, enriched.Nodes, 2)
	require.NotNil(t, enriched.Nodes[0].X)
	assert.Equal(t, 0.5, *enriched.Nodes[0].X)
	assert.Equal(t, -1.5, *enriched.Nodes[0].Y)
	assert.Equal(t, 3, *enriched.Nodes[0].Community)
	assert.Nil(t, enriched.Nodes[1].X)
	assert.Nil(t, g.Nodes[0].X, "input graph is not mutated")
}

func TestExtensionDegradesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := &Graph{Nodes: []Node{{ID: 1}}}
	assert.Same(t, g, Enrich(context.Background(), NewHTTPExtension(srv.URL, time.Second), g))
	assert.Same(t, g, Enrich(context.Background(), NoopExtension{}, g))
	assert.Same(t, g, Enrich(context.Background(), nil, g))
}
