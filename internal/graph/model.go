// Package graph materializes knowledge graphs from stored articles and links
// and computes structural and temporal analytics over them.
package graph

import (
	"errors"
	"strings"
)

// ErrValidation is returned for malformed caller parameters
var ErrValidation = errors.New("validation error")

// NodeType classifies what an article is about
type NodeType string

const (
	NodePerson       NodeType = "person"
	NodePlace        NodeType = "place"
	NodeOrganization NodeType = "organization"
	NodeEvent        NodeType = "event"
	NodeTechnology   NodeType = "technology"
	NodeConcept      NodeType = "concept"
	NodeGeneral      NodeType = "general"
)

// Node is one article in a materialized graph. Nodes are rebuilt per query.
type Node struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Summary    string   `json:"summary"`
	Depth      int      `json:"depth"`
	Categories []string `json:"categories"`
	NodeType   NodeType `json:"node_type"`
	Importance float64  `json:"importance"`

	// set by an Extension when one is configured
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Centrality *float64 `json:"centrality,omitempty"`
	Community  *int     `json:"community,omitempty"`
}

// Edge is a directed link; Weight is the link's relevance score
type Edge struct {
	From       int64   `json:"from"`
	To         int64   `json:"to"`
	Weight     float64 `json:"weight"`
	AnchorText string  `json:"anchor_text"`
}

// Graph is an immutable snapshot of nodes and edges
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Empty returns a graph with no nodes or edges
func Empty() *Graph {
	return &Graph{Nodes: []Node{}, Edges: []Edge{}}
}

// Node returns the node with the given id
func (g *Graph) Node(id int64) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Keyword sets in classification priority order
var typeKeywords = []struct {
	nodeType NodeType
	keywords []string
}{
	{NodePerson, []string{"births", "deaths", "living people", "people from", "biography",
		"scientists", "writers", "politicians", "philosophers", "musicians", "actors", "artists"}},
	{NodePlace, []string{"cities", "countries", "capitals", "towns", "villages", "regions",
		"populated places", "rivers", "mountains", "islands", "geography of"}},
	{NodeOrganization, []string{"companies", "organizations", "organisations", "universities",
		"institutions", "agencies", "political parties", "non-profit"}},
	{NodeEvent, []string{"wars", "battles", "conflicts", "revolutions", "elections",
		"disasters", "festivals", "olympic", "treaties", "events"}},
	{NodeTechnology, []string{"technology", "software", "programming", "computing", "computer",
		"engineering", "algorithms", "machine learning", "artificial intelligence", "internet", "electronics"}},
	{NodeConcept, []string{"concepts", "theories", "theory", "philosophy", "mathematics",
		"ideologies", "theorems", "fields of"}},
}

// Classify picks the first type whose keywords match a category or the title
func Classify(title string, categories []string) NodeType {
	haystack := make([]string, 0, len(categories)+1)
	for _, c := range categories {
		haystack = append(haystack, strings.ToLower(c))
	}
	haystack = append(haystack, strings.ToLower(title))

	for _, tk := range typeKeywords {
		for _, kw := range tk.keywords {
			for _, h := range haystack {
				if strings.Contains(h, kw) {
					return tk.nodeType
				}
			}
		}
	}
	return NodeGeneral
}
