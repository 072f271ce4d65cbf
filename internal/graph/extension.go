package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Extension enriches a graph with layout, centrality and community data
// computed outside this process. Implementations return a new graph.
type Extension interface {
	Enrich(ctx context.Context, g *Graph) (*Graph, error)
}

// NoopExtension returns the graph unchanged
type NoopExtension struct{}

// Enrich implements Extension
func (NoopExtension) Enrich(_ context.Context, g *Graph) (*Graph, error) {
	return g, nil
}

// HTTPExtension posts the graph as JSON to an analytics service
type HTTPExtension struct {
	endpoint string
	client   *http.Client
}

// NewHTTPExtension creates an extension posting to endpoint
func NewHTTPExtension(endpoint string, timeout time.Duration) *HTTPExtension {
	return &HTTPExtension{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// enrichment is the service's per-node reply
type enrichment struct {
	ID         int64    `json:"id"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Centrality *float64 `json:"centrality"`
	Community  *int     `json:"community"`
}

type enrichResponse struct {
	Nodes []enrichment `json:"nodes"`
}

// Enrich implements Extension
func (e *HTTPExtension) Enrich(ctx context.Context, g *Graph) (*Graph, error) {
	payload, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build analytics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analytics request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analytics service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var reply enrichResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode analytics reply: %w", err)
	}

	byID := make(map[int64]enrichment, len(reply.Nodes))
	for _, n := range reply.Nodes {
		byID[n.ID] = n
	}

	out := &Graph{Nodes: make([]Node, len(g.Nodes)), Edges: append([]Edge{}, g.Edges...)}
	for i, n := range g.Nodes {
		if extra, ok := byID[n.ID]; ok {
			n.X, n.Y = extra.X, extra.Y
			n.Centrality = extra.Centrality
			n.Community = extra.Community
		}
		out.Nodes[i] = n
	}
	return out, nil
}

// Enrich applies ext and falls back to g when the extension fails
func Enrich(ctx context.Context, ext Extension, g *Graph) *Graph {
	if ext == nil {
		return g
	}
	enriched, err := ext.Enrich(ctx, g)
	if err != nil {
		logrus.Warnf("Graph analytics extension unavailable, using plain graph: %v", err)
		return g
	}
	return enriched
}
