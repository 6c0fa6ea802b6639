// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/internal/pipeline"
	"github.com/pdiddy/reality-check/internal/search"
	"github.com/pdiddy/reality-check/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search news, web, fact-check and authority sources",
	Long: `Search runs the multi-source search without analysis. Results from the
four providers are deduplicated, ranked by source type and credibility, and
merged with secondary index hits when an index and embeddings are
configured. Fresh results are cached unless --no-cache is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("size", 25, "maximum number of results")
	searchCmd.Flags().String("format", "table", "output format: table, json, yaml")
	searchCmd.Flags().Bool("no-cache", false, "bypass the search cache")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	size, _ := cmd.Flags().GetInt("size")
	format, _ := cmd.Flags().GetString("format")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	switch format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q: want table, json or yaml", format)
	}

	a, err := newApp(ctx, appOptions{noCache: noCache})
	if err != nil {
		return err
	}
	defer a.Close()

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	var (
		agg types.AggregateResult
		hit bool
	)
	if a.cache != nil {
		agg, hit = a.cache.Get(ctx, query)
	}
	if !hit {
		agg = a.search.Aggregate(ctx, query, size)
		if a.index != nil && a.embedder != nil {
			vec, err := a.embedder.Embed(ctx, query)
			if err != nil {
				a.logger.Warn("query embedding failed, skipping secondary index", zap.Error(err))
			} else {
				agg = search.MergeIndex(ctx, agg, a.index, query, vec, size, a.logger)
			}
		}
		if a.cache != nil {
			a.cache.Set(ctx, query, agg, pipeline.CacheTTL)
		}
	}

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
