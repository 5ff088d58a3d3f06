// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search is the paper source: it turns a topic or query into an
// ordered, deduplicated list of paper records with bibliographic metadata.
package search

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/pkg/types"
)

// Source fetches papers from one bibliographic service. Results keep the
// service's native order. A query matching nothing returns an empty slice
// and no error; an unreachable service returns an error wrapping
// types.ErrSourceUnavailable.
type Source interface {
	Name() string
	Fetch(ctx context.Context, query string, maxResults int) ([]*types.Paper, error)
}

// BuildQuery formats a deterministic arXiv query: the topic in title or
// abstract, AND any of the include terms, AND NOT each exclude term.
func BuildQuery(topic string, include, exclude []string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	q := field(topic)

	var inc []string
	for _, term := range include {
		if term = strings.TrimSpace(term); term != "" {
			inc = append(inc, field(term))
		}
	}
	if len(inc) > 0 {
		q += " AND (" + strings.Join(inc, " OR ") + ")"
	}

	for _, term := range exclude {
		if term = strings.TrimSpace(term); term != "" {
			q += " ANDNOT " + field(term)
		}
	}
	return q
}

// field matches term against title or abstract. Multi-word terms are quoted
// so arXiv treats them as phrases.
func field(term string) string {
	if strings.ContainsAny(term, " \t") {
		term = `"` + strings.ReplaceAll(term, `"`, "") + `"`
	}
	return fmt.Sprintf("(ti:%s OR abs:%s)", term, term)
}

// FetchAll runs each query against src and merges the results, dropping
// duplicates by ID and then by normalized title while keeping first-seen
// order. The merged list is capped at maxResults. Failed queries are logged
// and skipped; the error of the last failure is returned only when every
// query failed.
func FetchAll(ctx context.Context, src Source, queries []string, maxResults int, w io.Writer) ([]*types.Paper, error) {
	if len(queries) == 0 {
		return nil, eris.New("no search queries")
	}

	var all []*types.Paper
	var lastErr error
	failed := 0
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		papers, err := src.Fetch(ctx, q, maxResults)
		if err != nil {
			zap.L().Warn("search query failed",
				zap.String("source", src.Name()),
				zap.String("query", q),
				zap.Error(err),
			)
			fmt.Fprintf(w, "warning: %s query failed: %v\n", src.Name(), err)
			lastErr = err
			failed++
			continue
		}
		fmt.Fprintf(w, "fetched: %d papers for %s\n", len(papers), q)
		all = append(all, papers...)
	}
	if failed == len(queries) {
		return nil, lastErr
	}

	deduped, removed := deduplicate(all)
	if removed > 0 {
		zap.L().Debug("removed duplicate papers", zap.Int("removed", removed))
	}
	if maxResults > 0 && len(deduped) > maxResults {
		deduped = deduped[:maxResults]
	}
	return deduped, nil
}

// deduplicate drops papers that share an ID or normalized title with an
// earlier paper, filling empty metadata of the kept record from the dropped one.
func deduplicate(papers []*types.Paper) ([]*types.Paper, int) {
	seen := make(map[string]int)
	var deduped []*types.Paper
	removed := 0

	for _, p := range papers {
		idKey := ""
		if p.ID != "" {
			idKey = "id:" + p.ID
		}
		titleKey := ""
		if t := normalizeTitle(p.Title); t != "" {
			titleKey = "title:" + t
		}

		if idx, ok := lookup(seen, idKey, titleKey); ok {
			mergeInto(deduped[idx], p)
			removed++
			continue
		}

		idx := len(deduped)
		deduped = append(deduped, p)
		if idKey != "" {
			seen[idKey] = idx
		}
		if titleKey != "" {
			seen[titleKey] = idx
		}
	}
	return deduped, removed
}

func lookup(seen map[string]int, keys ...string) (int, bool) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if idx, ok := seen[k]; ok {
			return idx, true
		}
	}
	return 0, false
}

// mergeInto fills empty bibliographic fields of dst from src.
func mergeInto(dst, src *types.Paper) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if dst.Abstract == "" {
		dst.Abstract = src.Abstract
	}
	if dst.Published.IsZero() {
		dst.Published = src.Published
	}
	if len(dst.Categories) == 0 {
		dst.Categories = src.Categories
	}
	if dst.PDFURL == "" {
		dst.PDFURL = src.PDFURL
	}
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FormatTable writes papers as a human-readable table to w.
func FormatTable(papers []*types.Paper, w io.Writer) {
	if len(papers) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-12s  %-60s  %-20s  %-4s  %s\n",
		"Rank", "ID", "Title", "Authors", "Year", "Relevant")
	fmt.Fprintln(w, strings.Repeat("-", 118))

	for i, p := range papers {
		year := ""
		if y := p.Year(); y > 0 {
			year = fmt.Sprintf("%d", y)
		}
		fmt.Fprintf(w, "%-4d  %-12s  %-60s  %-20s  %-4s  %s\n",
			i+1, p.ID, truncate(p.Title, 60), formatAuthors(p.Authors), year, p.Relevance)
	}
	fmt.Fprintf(w, "\n%d results\n", len(papers))
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
