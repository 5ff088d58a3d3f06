// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one literature review end to end: search criteria,
// paper search, acquisition, relevance classification, content extraction,
// indexing, outline planning, section synthesis and report compilation.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/acquire"
	"github.com/pdiddy/litreview/internal/classify"
	"github.com/pdiddy/litreview/internal/convert"
	"github.com/pdiddy/litreview/internal/criteria"
	"github.com/pdiddy/litreview/internal/draft"
	"github.com/pdiddy/litreview/internal/extract"
	"github.com/pdiddy/litreview/internal/knowledge"
	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/outline"
	"github.com/pdiddy/litreview/internal/protocol"
	"github.com/pdiddy/litreview/internal/report"
	"github.com/pdiddy/litreview/internal/search"
	"github.com/pdiddy/litreview/pkg/types"
)

// Request describes one review run.
type Request struct {
	Topic   string
	Include []string
	Exclude []string

	// MaxPapers overrides search.max_results when positive.
	MaxPapers int

	// Deterministic skips criteria generation and searches with BuildQuery.
	Deterministic bool

	// YearFrom and YearTo keep only papers published in that range
	// (inclusive, 0 = unbounded).
	YearFrom int
	YearTo   int

	// ClassifyOnly stops after relevance classification.
	ClassifyOnly bool
}

// Result is the outcome of a run.
type Result struct {
	RunID    string
	Query    string
	Queries  []string
	Papers   []*types.Paper
	Relevant []*types.Paper
	Outline  *types.OutlineNode
	Report   string
	Elapsed  time.Duration
}

// Output returns the protocol form of the result: the relevant papers and
// the report, or every classified paper for classify-only runs.
func (r *Result) Output(req Request) protocol.Result {
	papers := r.Relevant
	if req.ClassifyOnly {
		papers = r.Papers
	}
	return protocol.Result{Query: r.Query, Papers: papers, Report: r.Report}
}

// Deps are the collaborators of a run. Source and LLM are required.
type Deps struct {
	Source search.Source
	LLM    *llm.Client

	// HTTP downloads PDFs. Defaults to a client with the acquisition timeout.
	HTTP *http.Client

	// Converter turns PDFs into text when the generator cannot read files.
	// Built from the convert config when nil.
	Converter convert.Converter

	// Backend builds the retrieval backend. Built from the index config when nil.
	Backend func() (knowledge.Backend, error)

	// Typesetter polishes LaTeX output. Built from the generator when nil and
	// report.typeset_with_model is set.
	Typesetter report.Typesetter
}

// Pipeline runs reviews with one configuration.
type Pipeline struct {
	cfg  *types.Config
	deps Deps
	w    io.Writer
}

// New returns a pipeline that writes progress lines to w.
func New(cfg *types.Config, deps Deps, w io.Writer) *Pipeline {
	if w == nil {
		w = io.Discard
	}
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{Timeout: cfg.Acquisition.Timeout}
	}
	return &Pipeline{cfg: cfg, deps: deps, w: w}
}

// Run executes req. Per-paper failures are logged and never abort the run;
// search and orchestration failures do. Cancellation between stages returns
// an error wrapping types.ErrCanceled.
func (pl *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	log := zap.L().With(zap.String("run", res.RunID), zap.String("topic", req.Topic))
	log.Info("review started")

	err := pl.run(ctx, req, res)
	res.Elapsed = time.Since(start)
	if err != nil {
		log.Error("review failed", zap.Duration("elapsed", res.Elapsed), zap.Error(err))
		return res, err
	}
	log.Info("review finished",
		zap.Int("fetched", len(res.Papers)),
		zap.Int("relevant", len(res.Relevant)),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (pl *Pipeline) run(ctx context.Context, req Request, res *Result) error {
	cfg := pl.cfg
	gen := pl.deps.LLM.Generator
	topic := types.Topic{Name: req.Topic, Include: req.Include, Exclude: req.Exclude}

	if err := checkpoint(ctx, "criteria"); err != nil {
		return err
	}
	res.Queries = pl.queries(ctx, req, &topic)
	res.Query = res.Queries[0]
	fmt.Fprintf(pl.w, "search query: %s\n", res.Query)

	if err := checkpoint(ctx, "search"); err != nil {
		return err
	}
	maxPapers := cfg.Search.MaxResults
	if req.MaxPapers > 0 {
		maxPapers = req.MaxPapers
	}
	papers, err := search.FetchAll(ctx, pl.deps.Source, res.Queries, maxPapers, pl.w)
	if err != nil {
		return stageErr(ctx, "search", err)
	}
	res.Papers = filterYears(papers, req.YearFrom, req.YearTo)
	fmt.Fprintf(pl.w, "found: %d papers\n", len(res.Papers))

	if err := checkpoint(ctx, "acquire"); err != nil {
		return err
	}
	if err := pl.acquire(ctx, res.Papers); err != nil {
		return stageErr(ctx, "acquire", err)
	}

	if err := checkpoint(ctx, "classify"); err != nil {
		return err
	}
	c := &classify.Classifier{Gen: gen, Model: cfg.LLM.Model, MaxChars: cfg.Classify.MaxChars, MaxRetries: cfg.LLM.MaxRetries}
	sum, err := classify.ClassifyAll(ctx, c, res.Papers, topic, cfg.Pipeline.Concurrency, pl.w)
	if err != nil {
		return stageErr(ctx, "classify", err)
	}
	res.Relevant = classify.Relevant(res.Papers)
	fmt.Fprintf(pl.w, "relevant: %d of %d papers (%d failed)\n", sum.Relevant, len(res.Papers), sum.Failed)
	if req.ClassifyOnly {
		return nil
	}

	if err := checkpoint(ctx, "extract"); err != nil {
		return err
	}
	e := &extract.Extractor{Gen: gen, Model: cfg.LLM.Model, MaxRetries: cfg.Extract.MaxRetries}
	if _, err := extract.ExtractAll(ctx, e, res.Relevant, topic, cfg.Pipeline.Concurrency, pl.w); err != nil {
		return stageErr(ctx, "extract", err)
	}

	if err := checkpoint(ctx, "index"); err != nil {
		return err
	}
	backend, err := pl.backend()
	if err != nil {
		return eris.Wrap(err, "index")
	}
	idx, err := knowledge.Build(ctx, res.Relevant, backend)
	if err != nil {
		backend.Close()
		return stageErr(ctx, "index", err)
	}
	defer idx.Close()
	fmt.Fprintf(pl.w, "indexed: %d papers\n", idx.Len())

	if err := checkpoint(ctx, "outline"); err != nil {
		return err
	}
	planner := &outline.Planner{Gen: gen, Model: cfg.LLM.Model, MaxDepth: cfg.Outline.MaxDepth}
	res.Outline = planner.Plan(ctx, req.Topic, res.Papers, cfg.Outline.MaxSections)
	fmt.Fprintf(pl.w, "outline: %s (%d sections)\n", res.Outline.Title, len(res.Outline.Children))

	if err := checkpoint(ctx, "synthesize"); err != nil {
		return err
	}
	s := &draft.Synthesizer{
		Gen:         gen,
		Model:       cfg.LLM.Model,
		MaxRetries:  cfg.LLM.MaxRetries,
		MaxDepth:    cfg.Outline.MaxDepth,
		Concurrency: cfg.Pipeline.Concurrency,
	}
	if _, err := s.SynthesizeTree(ctx, res.Outline, req.Topic, idx, cfg.Index.TopK, pl.w); err != nil {
		return stageErr(ctx, "synthesize", err)
	}

	if err := checkpoint(ctx, "report"); err != nil {
		return err
	}
	res.Report = report.Compile(res.Outline, cfg.Report.Format)
	if cfg.Report.Format == types.OutputLaTeX {
		if ts := pl.typesetter(); ts != nil {
			res.Report = ts.Typeset(ctx, res.Report)
		}
	}
	return nil
}

// queries returns the search queries for req. Generated criteria extend the
// topic's include and exclude terms. When generation is skipped or yields no
// queries, the deterministic BuildQuery query is used.
func (pl *Pipeline) queries(ctx context.Context, req Request, topic *types.Topic) []string {
	if !req.Deterministic && !pl.cfg.Pipeline.Deterministic {
		g := &criteria.Generator{Gen: pl.deps.LLM.Generator, Model: pl.cfg.LLM.Model, MaxRetries: pl.cfg.LLM.MaxRetries}
		c, err := g.Generate(ctx, req.Topic)
		if err != nil {
			zap.L().Warn("criteria generation failed, using deterministic query", zap.Error(err))
		}
		topic.Include = merge(topic.Include, c.Include)
		topic.Exclude = merge(topic.Exclude, c.Exclude)
		if len(c.Queries) > 0 {
			return c.Queries
		}
	}
	return []string{search.BuildQuery(req.Topic, req.Include, req.Exclude)}
}

// acquire downloads PDFs, then uploads them when the generator reads files
// or converts them to text otherwise.
func (pl *Pipeline) acquire(ctx context.Context, papers []*types.Paper) error {
	cfg := pl.cfg
	dl, err := acquire.DownloadAll(ctx, pl.deps.HTTP, papers, cfg.Acquisition, pl.w)
	if err != nil {
		return err
	}

	if up := pl.deps.LLM.Uploader; up != nil && llm.AcceptsFiles(pl.deps.LLM.Generator) {
		_, err := acquire.IngestAll(ctx, up, dl.Papers, cfg.Acquisition, cfg.Pipeline.Concurrency, pl.w)
		return err
	}

	conv := pl.deps.Converter
	if conv == nil {
		conv, err = convert.New(cfg.Convert)
		if err != nil {
			zap.L().Warn("no text converter available, papers will be unreadable", zap.Error(err))
			return nil
		}
	}
	_, err = convert.ConvertAll(ctx, conv, dl.Papers, cfg.Acquisition.PapersDir, cfg.Pipeline.Concurrency, pl.w)
	return err
}

func (pl *Pipeline) backend() (knowledge.Backend, error) {
	if pl.deps.Backend != nil {
		return pl.deps.Backend()
	}
	icfg := pl.cfg.Index
	if icfg.Backend != types.IndexFTS && pl.deps.LLM.Embedder == nil {
		zap.L().Warn("provider has no embeddings, using full-text index",
			zap.String("provider", string(pl.deps.LLM.Provider)))
		icfg.Backend = types.IndexFTS
	}
	return knowledge.NewBackend(icfg, pl.deps.LLM.Embedder)
}

func (pl *Pipeline) typesetter() report.Typesetter {
	if pl.deps.Typesetter != nil {
		return pl.deps.Typesetter
	}
	if !pl.cfg.Report.TypesetWithModel {
		return nil
	}
	return &report.ModelTypesetter{Gen: pl.deps.LLM.Generator, Model: pl.cfg.LLM.Model, MaxRetries: pl.cfg.LLM.MaxRetries}
}

// checkpoint reports cancellation before stage starts.
func checkpoint(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(types.ErrCanceled, "before %s: %v", stage, err)
	}
	return nil
}

func stageErr(ctx context.Context, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return eris.Wrapf(types.ErrCanceled, "during %s: %v", stage, ctxErr)
	}
	return eris.Wrap(err, stage)
}

func filterYears(papers []*types.Paper, from, to int) []*types.Paper {
	if from <= 0 && to <= 0 {
		return papers
	}
	var out []*types.Paper
	for _, p := range papers {
		y := p.Year()
		if (from > 0 && y < from) || (to > 0 && y > to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func merge(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
