// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/litreview/internal/httputil"
	"github.com/pdiddy/litreview/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// DefaultSortBy orders results newest first.
const DefaultSortBy = "submittedDate"

// ArxivSource queries the arXiv Atom API.
type ArxivSource struct {
	Client    *http.Client
	UserAgent string

	// SortBy is submittedDate (default), lastUpdatedDate or relevance.
	SortBy string

	// MaxRetries bounds retries on HTTP 429.
	MaxRetries int
}

// NewArxivSource builds a source from the search configuration.
func NewArxivSource(cfg types.SearchConfig) *ArxivSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ArxivSource{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: cfg.UserAgent,
		SortBy:    cfg.SortBy,
	}
}

// Name returns the source identifier.
func (s *ArxivSource) Name() string { return "arxiv" }

// Fetch runs query against arXiv and returns up to maxResults papers in the
// order arXiv reports them.
func (s *ArxivSource) Fetch(ctx context.Context, query string, maxResults int) ([]*types.Paper, error) {
	if strings.TrimSpace(query) == "" {
		return nil, eris.New("empty arXiv query")
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	sortBy := s.SortBy
	if sortBy == "" {
		sortBy = DefaultSortBy
	}

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", sortBy)
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "creating request")
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, s.MaxRetries)
	if err != nil {
		return nil, eris.Wrapf(types.ErrSourceUnavailable, "arXiv API request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(types.ErrSourceUnavailable, "arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, eris.Wrapf(types.ErrSourceUnavailable, "parsing arXiv response: %v", err)
	}

	papers := make([]*types.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if p := entry.toPaper(); p != nil {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	Categories []arxivCategory `xml:"category"`
	Links      []arxivLink     `xml:"link"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// toPaper converts an entry, returning nil for entries without an arXiv ID
// (the API reports query errors as such entries).
func (e arxivEntry) toPaper() *types.Paper {
	id := extractArxivID(e.ID)
	if id == "" {
		return nil
	}
	p := &types.Paper{
		ID:       id,
		EntryID:  strings.TrimSpace(e.ID),
		Title:    collapseSpace(e.Title),
		Abstract: collapseSpace(e.Summary),
	}
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, c := range e.Categories {
		if c.Term != "" {
			p.Categories = append(p.Categories, c.Term)
		}
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		p.Published = t
	}
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			p.PDFURL = l.Href
			break
		}
	}
	if p.PDFURL == "" {
		p.PDFURL = strings.Replace(p.EntryID, "/abs/", "/pdf/", 1)
	}
	return p
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := strings.TrimSpace(idURL[idx+len(prefix):])

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
