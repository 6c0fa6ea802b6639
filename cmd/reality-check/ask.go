// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/reality-check/internal/pipeline"
	"github.com/pdiddy/reality-check/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question in the terminal",
	Long: `Ask runs the full pipeline for one question: search, credibility
analysis, answer and follow-up suggestions. Progress goes to stderr and
the answer to stdout.

With --interactive, further questions are read from stdin one per line
and answered within the same conversation.`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Bool("json", false, "print the answer as JSON")
	askCmd.Flags().Bool("no-cache", false, "bypass the search cache")
	askCmd.Flags().BoolP("interactive", "i", false, "keep reading questions from stdin")
	askCmd.Flags().Bool("quiet", false, "do not print progress")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jsonOut, _ := cmd.Flags().GetBool("json")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	interactive, _ := cmd.Flags().GetBool("interactive")
	quiet, _ := cmd.Flags().GetBool("quiet")

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && !interactive {
		return fmt.Errorf("a question is required")
	}

	a, err := newApp(ctx, appOptions{noCache: noCache})
	if err != nil {
		return err
	}
	defer a.Close()

	conv, err := a.orch.Start(ctx, os.Getenv("USER"))
	if err != nil {
		return err
	}

	var sink pipeline.Sink
	if !quiet {
		sink = pipeline.WriterSink{W: cmd.ErrOrStderr()}
	}
	out := cmd.OutOrStdout()

	askOne := func(q string) error {
		answer, err := a.orch.Ask(ctx, conv.ID, q, sink)
		if err != nil {
			return err
		}
		if jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(answer)
		}
		printAnswer(out, answer)
		return nil
	}

	if question != "" {
		if err := askOne(question); err != nil {
			return err
		}
	}
	if !interactive {
		return nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	fmt.Fprint(cmd.ErrOrStderr(), "> ")
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		if q != "" {
			if err := askOne(q); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			}
		}
		fmt.Fprint(cmd.ErrOrStderr(), "> ")
	}
	fmt.Fprintln(cmd.ErrOrStderr())
	return scanner.Err()
}

// printAnswer writes an answer for a human reader.
func printAnswer(w io.Writer, a types.Answer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, a.Message)
	fmt.Fprintln(w)

	st := a.Metadata.SearchStats
	fmt.Fprintf(w, "Sources: %d found, %d analyzed. Credibility %.2f (%s confidence)",
		st.TotalSources, st.SourcesAnalyzed, st.CredibilityScore, st.ConfidenceLevel)
	if a.Metadata.FromCache {
		fmt.Fprintf(w, ", cached %ds ago", a.Metadata.CacheAgeMillis/1000)
	}
	fmt.Fprintln(w)

	for i, s := range a.Metadata.Sources {
		if i == 5 {
			fmt.Fprintf(w, "  ... and %d more\n", len(a.Metadata.Sources)-i)
			break
		}
		fmt.Fprintf(w, "  %d. %s (%s, %.2f)\n     %s\n", i+1, s.Title, s.Source, s.CredibilityScore, s.URL)
	}

	if len(a.Metadata.FollowUpQuestions) > 0 {
		fmt.Fprintln(w, "\nYou might also ask:")
		for _, q := range a.Metadata.FollowUpQuestions {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}
}
