// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/internal/index"
	"github.com/pdiddy/reality-check/internal/search"
	"github.com/pdiddy/reality-check/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the secondary document index",
	Long: `Index manages the curated document store that is searched alongside the
live providers. The backend is Elasticsearch or SQLite, selected by
index.backend in the configuration.`,
}

var indexLoadCmd = &cobra.Command{
	Use:   "load <documents.yaml>...",
	Short: "Load documents from YAML files into the index",
	Long: `Load reads documents from YAML files (a top-level "documents" list) and
writes them to the index. Documents without an embedding are embedded
first when an embedding model is configured.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndexLoad,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-collection document counts and sources",
	RunE:  runIndexStats,
}

var indexQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Run a hybrid query against the index only",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexQuery,
}

func init() {
	indexStatsCmd.Flags().Bool("json", false, "output as JSON")
	indexQueryCmd.Flags().Int("size", 10, "maximum number of hits")
	indexQueryCmd.Flags().String("format", "table", "output format: table, json, yaml")

	indexCmd.AddCommand(indexLoadCmd, indexStatsCmd, indexQueryCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{noCache: true})
	if err != nil {
		return err
	}
	defer a.Close()
	store, err := a.requireIndex()
	if err != nil {
		return err
	}

	total := 0
	for _, path := range args {
		docs, err := index.LoadDocuments(path)
		if err != nil {
			return err
		}
		if a.embedder != nil {
			for i := range docs {
				if len(docs[i].Embedding) > 0 {
					continue
				}
				vec, err := a.embedder.Embed(ctx, docs[i].Title+"\n"+docs[i].Content)
				if err != nil {
					a.logger.Warn("embedding failed, storing without vector",
						zap.String("title", docs[i].Title), zap.Error(err))
					continue
				}
				docs[i].Embedding = vec
			}
		}
		n, err := store.Index(ctx, docs)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: indexed %d of %d documents\n", path, n, len(docs))
		total += n
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents.\n", total)
	return nil
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{noCache: true})
	if err != nil {
		return err
	}
	defer a.Close()
	store, err := a.requireIndex()
	if err != nil {
		return err
	}

	stats, err := store.SourceStats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(out, "%-12s  %6s  %8s  %s\n", "Collection", "Docs", "AvgCred", "Top sources")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, s := range stats {
		fmt.Fprintf(out, "%-12s  %6d  %8.2f  %s\n", s.Kind, s.Total, s.AvgCredibility, topSources(s.Sources, 3))
	}
	return nil
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	size, _ := cmd.Flags().GetInt("size")
	format, _ := cmd.Flags().GetString("format")

	a, err := newApp(ctx, appOptions{noCache: true})
	if err != nil {
		return err
	}
	defer a.Close()
	store, err := a.requireIndex()
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	var vec []float32
	if a.embedder != nil {
		if vec, err = a.embedder.Embed(ctx, query); err != nil {
			a.logger.Warn("query embedding failed, keyword only", zap.Error(err))
		}
	}
	hits, total, err := store.HybridSearch(ctx, query, vec, size)
	if err != nil {
		return err
	}
	agg := types.AggregateResult{Results: hits, Total: total}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return search.FormatJSON(agg, out)
	case "yaml":
		return search.FormatYAML(agg, out)
	default:
		search.FormatTable(agg, out)
		return nil
	}
}

// topSources renders the n most frequent sources as "name (count)".
func topSources(counts map[string]int, n int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s (%d)", name, counts[name])
	}
	return strings.Join(parts, ", ")
}
