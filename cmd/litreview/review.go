// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/pipeline"
	"github.com/pdiddy/litreview/internal/protocol"
	"github.com/pdiddy/litreview/internal/search"
	"github.com/pdiddy/litreview/pkg/types"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run a full literature review for a topic",
	Long: `Review searches for papers on a topic, downloads and classifies them,
extracts relevant content and writes a cited report.

stdout carries the result blocks <search_query>, <papers> and <final_report>,
or a single <error> block on failure. Progress goes to stderr.`,
	RunE: runReview,
}

func init() {
	addReviewFlags(reviewCmd)
	reviewCmd.MarkFlagRequired("topic")

	rootCmd.AddCommand(reviewCmd)
}

func addReviewFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("topic", "", "research topic (required)")
	f.StringArray("include", nil, "term a relevant paper should mention (repeatable)")
	f.StringArray("exclude", nil, "term that marks a paper as off topic (repeatable)")
	f.Int("max-papers", 0, "number of papers to fetch (default search.max_results)")
	f.Int("year-from", 0, "keep papers published in or after this year")
	f.Int("year-to", 0, "keep papers published in or before this year")
	f.Bool("deterministic", false, "build the search query from the topic and terms without the model")
	f.Bool("classify-only", false, "stop after relevance classification")
	f.String("format", "", "report format: markdown or latex (default report.format)")
	f.String("from-saved", "", "replay papers from a saved search file instead of querying arXiv")
	f.String("save-search", "", "write the fetched papers to a saved search file")
	f.StringP("output", "o", "", "also write the report to this file")
}

// requestFromFlags builds the pipeline request from the review flags.
func requestFromFlags(cmd *cobra.Command) pipeline.Request {
	f := cmd.Flags()
	topic, _ := f.GetString("topic")
	req := pipeline.Request{Topic: strings.TrimSpace(topic)}
	req.Include, _ = f.GetStringArray("include")
	req.Exclude, _ = f.GetStringArray("exclude")
	req.MaxPapers, _ = f.GetInt("max-papers")
	req.YearFrom, _ = f.GetInt("year-from")
	req.YearTo, _ = f.GetInt("year-to")
	req.Deterministic, _ = f.GetBool("deterministic")
	req.ClassifyOnly, _ = f.GetBool("classify-only")
	return req
}

func runReview(cmd *cobra.Command, args []string) error {
	start := time.Now()
	f := cmd.Flags()
	req := requestFromFlags(cmd)
	if format, _ := f.GetString("format"); format != "" {
		cfg.Report.Format = types.OutputFormat(format)
	}

	stdout := cmd.OutOrStdout()
	fail := func(err error) error {
		if wErr := protocol.WriteError(stdout, err, time.Since(start)); wErr != nil {
			zap.L().Warn("writing error block", zap.Error(wErr))
		}
		return err
	}
	if req.Topic == "" {
		return fail(eris.New("topic must not be empty"))
	}

	client, err := newLLM(cmd.Context())
	if err != nil {
		return fail(err)
	}
	defer client.Close()

	savedPath, _ := f.GetString("from-saved")
	src, err := newSource(savedPath)
	if err != nil {
		return fail(err)
	}

	res, err := newPipeline(client, src, cmd.ErrOrStderr()).Run(cmd.Context(), req)
	if err != nil {
		return fail(err)
	}

	if path, _ := f.GetString("save-search"); path != "" {
		if err := search.WriteSavedSearch(path, req.Topic, res.Queries, res.Papers); err != nil {
			zap.L().Warn("saving search", zap.String("path", path), zap.Error(err))
		}
	}
	if path, _ := f.GetString("output"); path != "" && res.Report != "" {
		if err := os.WriteFile(path, []byte(res.Report), 0o644); err != nil {
			return fail(eris.Wrapf(err, "writing report to %s", path))
		}
	}
	return protocol.Write(stdout, res.Output(req))
}
