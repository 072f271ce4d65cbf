package graph

// Metrics summarizes the structure of a graph
type Metrics struct {
	NodeCount            int              `json:"node_count"`
	EdgeCount            int              `json:"edge_count"`
	Density              float64          `json:"density"`
	AvgOutDegree         float64          `json:"avg_out_degree"`
	AvgInDegree          float64          `json:"avg_in_degree"`
	MaxOutDegree         int              `json:"max_out_degree"`
	MaxInDegree          int              `json:"max_in_degree"`
	NodeTypeDistribution map[NodeType]int `json:"node_type_distribution"`
	AvgEdgeWeight        float64          `json:"avg_edge_weight"`
	ConnectedComponents  int              `json:"connected_components"`
}

// ComputeMetrics never fails; an empty graph yields zero values
func ComputeMetrics(g *Graph) Metrics {
	m := Metrics{
		NodeCount:            len(g.Nodes),
		EdgeCount:            len(g.Edges),
		NodeTypeDistribution: make(map[NodeType]int),
	}
	if m.NodeCount > 1 {
		m.Density = float64(m.EdgeCount) / float64(m.NodeCount*(m.NodeCount-1))
	}

	index := make(map[int64]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
		m.NodeTypeDistribution[n.NodeType]++
	}

	out := make([]int, len(g.Nodes))
	in := make([]int, len(g.Nodes))
	uf := newUnionFind(len(g.Nodes))
	var weight float64
	for _, e := range g.Edges {
		weight += e.Weight
		from, okFrom := index[e.From]
		to, okTo := index[e.To]
		if okFrom {
			out[from]++
		}
		if okTo {
			in[to]++
		}
		if okFrom && okTo {
			uf.union(from, to)
		}
	}

	if m.EdgeCount > 0 {
		m.AvgEdgeWeight = weight / float64(m.EdgeCount)
	}
	if m.NodeCount > 0 {
		var sumOut, sumIn int
		for i := range g.Nodes {
			sumOut += out[i]
			sumIn += in[i]
			m.MaxOutDegree = max(m.MaxOutDegree, out[i])
			m.MaxInDegree = max(m.MaxInDegree, in[i])
		}
		m.AvgOutDegree = float64(sumOut) / float64(m.NodeCount)
		m.AvgInDegree = float64(sumIn) / float64(m.NodeCount)
	}
	m.ConnectedComponents = uf.count

	return m
}

type unionFind struct {
	parent []int
	rank   []int
	count  int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n), count: n}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
	u.count--
}

// ShortestPath returns the node ids of a fewest-hop directed path from -> to,
// or nil when to is unreachable. Among equally short paths the one with the
// highest total edge weight wins.
func ShortestPath(g *Graph, from, to int64) []int64 {
	known := make(map[int64]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		known[n.ID] = true
	}
	if !known[from] || !known[to] {
		return nil
	}
	if from == to {
		return []int64{from}
	}

	type arc struct {
		to     int64
		weight float64
	}
	adjacency := make(map[int64][]arc)
	for _, e := range g.Edges {
		if known[e.From] && known[e.To] && e.From != e.To {
			adjacency[e.From] = append(adjacency[e.From], arc{e.To, e.Weight})
		}
	}

	dist := map[int64]int{from: 0}
	paths := map[int64]int{from: 1} // shortest path count, capped at 2
	preds := make(map[int64][]arc)  // shortest-path predecessors with the arc weight
	order := []int64{from}

	for head := 0; head < len(order); head++ {
		cur := order[head]
		for _, a := range adjacency[cur] {
			d, seen := dist[a.to]
			if !seen {
				d = dist[cur] + 1
				dist[a.to] = d
				order = append(order, a.to)
			}
			if d == dist[cur]+1 {
				preds[a.to] = append(preds[a.to], arc{cur, a.weight})
				paths[a.to] = min(2, paths[a.to]+paths[cur])
			}
		}
	}

	if _, ok := dist[to]; !ok {
		return nil
	}

	prev := make(map[int64]int64, len(order))
	if paths[to] == 1 {
		for _, id := range order[1:] {
			prev[id] = preds[id][0].to
		}
		return walkBack(from, to, prev)
	}

	// tie: best cumulative weight over the shortest-path DAG, in BFS order
	best := map[int64]float64{from: 0}
	for _, id := range order[1:] {
		for i, p := range preds[id] {
			w := best[p.to] + p.weight
			if i == 0 || w > best[id] {
				best[id] = w
				prev[id] = p.to
			}
		}
	}
	return walkBack(from, to, prev)
}

func walkBack(from, to int64, prev map[int64]int64) []int64 {
	path := []int64{to}
	for cur := to; cur != from; {
		cur = prev[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
