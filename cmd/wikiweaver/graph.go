package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alvmarrod/wiki-weaver/internal/graph"
)

const defaultGraphRelevance = 0.3

// writeJSON prints v as indented JSON
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewGraphCmd creates the graph command
func NewGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph [center]",
		Short: "Export the knowledge graph as JSON",
		Long: `Graph materializes the stored articles and links as {nodes, edges} JSON.

Without an argument the complete graph above the relevance threshold is built.
With a center article (title or URL) only its neighbourhood is walked, in both
link directions, up to --depth hops.

Examples:
  wikiweaver graph --min-relevance 0.5 -o graph.json
  wikiweaver graph "Machine learning" --depth 1`,
		Args: cobra.MaximumNArgs(1),
		RunE: runGraphCmd,
	}

	cmd.Flags().Float64P("min-relevance", "r", defaultGraphRelevance, "Minimum link relevance score")
	cmd.Flags().IntP("depth", "d", 2, "Maximum hops from the center article")
	cmd.Flags().Bool("include-isolated", false, "Include crawled articles without qualifying links")
	cmd.Flags().StringP("output", "o", "", "Write the graph to a file instead of stdout")

	return cmd
}

func runGraphCmd(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	minRelevance, _ := cmd.Flags().GetFloat64("min-relevance")

	var g *graph.Graph
	if len(args) == 1 {
		depth, _ := cmd.Flags().GetInt("depth")
		g, err = e.BuildCenteredGraph(cmd.Context(), args[0], minRelevance, depth)
	} else {
		isolated, _ := cmd.Flags().GetBool("include-isolated")
		g, err = e.BuildCompleteGraph(cmd.Context(), minRelevance, isolated)
	}
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return writeJSON(cmd.OutOrStdout(), g)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	if err := writeJSON(f, g); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d nodes and %d edges to %s\n", len(g.Nodes), len(g.Edges), output)
	return nil
}

// NewMetricsCmd creates the metrics command
func NewMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print structural metrics of the complete graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			minRelevance, _ := cmd.Flags().GetFloat64("min-relevance")
			m, err := e.Metrics(cmd.Context(), minRelevance)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), m)
		},
	}
	cmd.Flags().Float64P("min-relevance", "r", defaultGraphRelevance, "Minimum link relevance score")
	return cmd
}

// NewPathCmd creates the path command
func NewPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path <from> <to>",
		Short: "Find the shortest link path between two articles",
		Long: `Path follows links in their direction from one article to another and prints
the fewest-hop route. Among equally short routes the most relevant one wins.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			minRelevance, _ := cmd.Flags().GetFloat64("min-relevance")
			path, err := e.ShortestPath(cmd.Context(), args[0], args[1], minRelevance)
			if err != nil {
				return err
			}
			if path == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no path from %q to %q\n", args[0], args[1])
				return nil
			}

			hops := make([]string, 0, len(path))
			for _, n := range path {
				hops = append(hops, n.Title)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d hops)\n", strings.Join(hops, " -> "), len(path)-1)
			return nil
		},
	}
	cmd.Flags().Float64P("min-relevance", "r", 0, "Minimum link relevance score")
	return cmd
}

// NewHubsCmd creates the hubs command
func NewHubsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hubs",
		Short: "List the most connected articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			hubs, err := e.KnowledgeHubs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, h := range hubs {
				fmt.Fprintf(out, "%2d. %s  degree=%d (in=%d out=%d)\n",
					i+1, h.Title, h.Degree, h.InDegree, h.OutDegree)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "l", 10, "Number of hubs to list")
	return cmd
}

// NewDiscoveriesCmd creates the discoveries command
func NewDiscoveriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discoveries",
		Short: "List the most recently discovered links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			found, err := e.RecentDiscoveries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range found {
				fmt.Fprintf(out, "%s  %s -> %s  %.2f (%s)\n",
					d.CreatedAt.Format("2006-01-02 15:04"), d.FromTitle, d.ToTitle, d.RelevanceScore, d.Strength)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "l", 20, "Number of links to list")
	return cmd
}

// NewGrowthCmd creates the growth command
func NewGrowthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "growth",
		Short: "Print the per-day crawl timeline and learning phases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			minRelevance, _ := cmd.Flags().GetFloat64("min-relevance")
			growth, err := e.TemporalGrowth(cmd.Context(), minRelevance)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), growth)
			}

			out := cmd.OutOrStdout()
			for _, p := range growth.LearningPhases {
				fmt.Fprintf(out, "%s .. %s  %-13s %3d days  %4d articles  %.1f/day\n",
					p.Start, p.End, p.Kind, p.Days, p.Articles, p.AvgRate)
			}
			return nil
		},
	}
	cmd.Flags().Float64P("min-relevance", "r", 0, "Count only articles touched by links at or above this score")
	cmd.Flags().Bool("json", false, "Print the full timeline as JSON")
	return cmd
}
