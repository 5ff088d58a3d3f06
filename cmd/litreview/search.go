// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/criteria"
	"github.com/pdiddy/litreview/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search arXiv for candidate papers",
	Long: `Search queries arXiv for papers on a topic without classifying them.
Queries come from the model unless --deterministic is set. Results are
deduplicated and printed as a table or as CSL-JSON, and can be saved for a
later review --from-saved run.`,
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.String("topic", "", "research topic (required)")
	f.StringArray("include", nil, "term a relevant paper should mention (repeatable)")
	f.StringArray("exclude", nil, "term that marks a paper as off topic (repeatable)")
	f.Int("max-results", 0, "number of papers to fetch per query (default search.max_results)")
	f.Bool("deterministic", false, "build the query from the topic and terms without the model")
	f.Bool("csl", false, "print results as CSL-JSON")
	f.String("save", "", "write results to a saved search file")
	searchCmd.MarkFlagRequired("topic")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	topic, _ := f.GetString("topic")
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return eris.New("topic must not be empty")
	}
	include, _ := f.GetStringArray("include")
	exclude, _ := f.GetStringArray("exclude")
	deterministic, _ := f.GetBool("deterministic")
	maxResults, _ := f.GetInt("max-results")
	if maxResults <= 0 {
		maxResults = cfg.Search.MaxResults
	}

	queries := []string{search.BuildQuery(topic, include, exclude)}
	if !deterministic && !cfg.Pipeline.Deterministic {
		client, err := newLLM(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		g := &criteria.Generator{Gen: client.Generator, Model: cfg.LLM.Model, MaxRetries: cfg.LLM.MaxRetries}
		c, err := g.Generate(cmd.Context(), topic)
		if err != nil {
			zap.L().Warn("criteria generation failed, using deterministic query", zap.Error(err))
		} else if len(c.Queries) > 0 {
			queries = c.Queries
		}
	}

	errOut := cmd.ErrOrStderr()
	for _, q := range queries {
		fmt.Fprintf(errOut, "query: %s\n", q)
	}
	papers, err := search.FetchAll(cmd.Context(), search.NewArxivSource(cfg.Search), queries, maxResults, errOut)
	if err != nil {
		return err
	}

	if path, _ := f.GetString("save"); path != "" {
		if err := search.WriteSavedSearch(path, topic, queries, papers); err != nil {
			return err
		}
		fmt.Fprintf(errOut, "saved %d papers to %s\n", len(papers), path)
	}

	if csl, _ := f.GetBool("csl"); csl {
		return search.FormatCSL(papers, cmd.OutOrStdout())
	}
	search.FormatTable(papers, cmd.OutOrStdout())
	return nil
}
