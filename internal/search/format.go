// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/reality-check/pkg/types"
)

// FormatTable writes an aggregate as a human-readable table to w.
func FormatTable(agg types.AggregateResult, w io.Writer) {
	if len(agg.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-56s  %-22s  %-10s  %-5s  %s\n",
		"Rank", "Title", "Source", "Type", "Cred", "Verdict")
	fmt.Fprintln(w, strings.Repeat("-", 112))

	for i, r := range agg.Results {
		fmt.Fprintf(w, "%-4d  %-56s  %-22s  %-10s  %-5.2f  %s\n",
			i+1, truncate(r.Title, 56), truncate(r.Source, 22), r.Type, r.CredibilityScore, r.Verdict)
	}

	fmt.Fprintf(w, "\n%d results from %d hits", len(agg.Results), agg.Total)
	if agg.FromCache {
		fmt.Fprintf(w, " (cached %ds ago)", agg.CacheAgeMillis/1000)
	}
	fmt.Fprintln(w)
}

// FormatJSON writes an aggregate as indented JSON to w.
func FormatJSON(agg types.AggregateResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(agg)
}

// FormatYAML writes an aggregate as YAML to w.
func FormatYAML(agg types.AggregateResult, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(agg); err != nil {
		return err
	}
	return enc.Close()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
