// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// FileRef points at a file held by the file ingest service.
type FileRef struct {
	URI      string `json:"uri" yaml:"uri"`
	MIMEType string `json:"mimeType" yaml:"mimeType"`
}

// Paper is one candidate source tracked through the review pipeline.
//
// Bibliographic fields are filled by the paper source and never change.
// Derived fields are owned by exactly one stage each and are written through
// the transition methods below, which panic when a stage acts out of order.
type Paper struct {
	// ID is the short arXiv identifier without version (e.g. "2301.07041").
	ID string `json:"id" yaml:"id"`

	// EntryID is the canonical abstract URL reported by the source.
	EntryID string `json:"entryId" yaml:"entryId"`

	Title      string    `json:"title" yaml:"title"`
	Authors    []string  `json:"authors" yaml:"authors"`
	Abstract   string    `json:"abstract" yaml:"abstract"`
	Published  time.Time `json:"publishedDate" yaml:"publishedDate"`
	Categories []string  `json:"categories" yaml:"categories"`
	PDFURL     string    `json:"pdfUrl" yaml:"pdfUrl"`

	// PDFPath is the local path of the downloaded PDF, empty until acquired.
	PDFPath string `json:"-" yaml:"pdfPath,omitempty"`

	// Text is plain text converted from the PDF. Only used when the
	// generator cannot read file references directly.
	Text string `json:"-" yaml:"-"`

	Uploaded bool     `json:"uploaded" yaml:"uploaded"`
	File     *FileRef `json:"fileRef,omitempty" yaml:"fileRef,omitempty"`

	Relevance          Relevance `json:"isRelevant" yaml:"isRelevant"`
	RelevanceReasoning string    `json:"relevanceReasoning,omitempty" yaml:"relevanceReasoning,omitempty"`
	Summary            string    `json:"summary,omitempty" yaml:"summary,omitempty"`

	// RelevantContent holds the passages germane to the review topic.
	RelevantContent string `json:"relevantContent,omitempty" yaml:"relevantContent,omitempty"`
}

// AttachFile records the ingest reference. A paper that is already uploaded
// keeps its existing reference and AttachFile reports false.
func (p *Paper) AttachFile(ref FileRef) bool {
	if p.Uploaded && p.File != nil {
		return false
	}
	p.File = &ref
	p.Uploaded = true
	return true
}

// HasContentSource reports whether the classifier has something to read.
func (p *Paper) HasContentSource() bool {
	return p.File != nil || strings.TrimSpace(p.Text) != ""
}

// Classify records the relevance verdict. It panics if the paper has already
// been classified.
func (p *Paper) Classify(relevant bool, reasoning, summary string) {
	if p.Relevance != RelevanceUnknown {
		panic(fmt.Sprintf("paper %s: relevance already set to %s", p.ID, p.Relevance))
	}
	if relevant {
		p.Relevance = RelevanceYes
	} else {
		p.Relevance = RelevanceNo
	}
	p.RelevanceReasoning = reasoning
	p.Summary = summary
}

// SetRelevantContent stores extracted content. It panics unless the paper was
// classified as relevant.
func (p *Paper) SetRelevantContent(content string) {
	if p.Relevance != RelevanceYes {
		panic(fmt.Sprintf("paper %s: content extraction requires relevance yes, have %s", p.ID, p.Relevance))
	}
	p.RelevantContent = content
}

// Year returns the publication year, or 0 when unknown.
func (p *Paper) Year() int {
	if p.Published.IsZero() {
		return 0
	}
	return p.Published.Year()
}

// LeadAuthor returns the first author or "Unknown".
func (p *Paper) LeadAuthor() string {
	if len(p.Authors) == 0 {
		return "Unknown"
	}
	return p.Authors[0]
}

// CitationKey derives a key of the form SurnameYearWord, e.g.
// "Vaswani2017Attention". Only ASCII letters and digits survive.
func (p *Paper) CitationKey() string {
	fields := strings.Fields(p.LeadAuthor())
	surname := "Anon"
	if len(fields) > 0 {
		surname = fields[len(fields)-1]
	}

	word := ""
	for _, w := range strings.Fields(p.Title) {
		w = keyChars(w)
		if len(w) > 3 {
			word = w
			break
		}
		if word == "" {
			word = w
		}
	}

	key := keyChars(surname)
	if key == "" {
		key = "Anon"
	}
	if y := p.Year(); y > 0 {
		key += fmt.Sprintf("%d", y)
	} else {
		key += "0000"
	}
	if word != "" {
		key += strings.ToUpper(word[:1]) + word[1:]
	}
	return key
}

func keyChars(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BibTeX renders the arXiv-style BibTeX entry for the paper. It depends only
// on bibliographic metadata.
func (p *Paper) BibTeX() string {
	authors := "Unknown"
	if len(p.Authors) > 0 {
		authors = strings.Join(p.Authors, " and ")
	}
	primary := "Unknown"
	if len(p.Categories) > 0 {
		primary = p.Categories[0]
	}
	eprint := p.ID
	if i := strings.LastIndex(p.EntryID, "/"); i >= 0 && i < len(p.EntryID)-1 {
		eprint = p.EntryID[i+1:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@article{%s,\n", p.CitationKey())
	fmt.Fprintf(&b, "  title = {%s},\n", p.Title)
	fmt.Fprintf(&b, "  author = {%s},\n", authors)
	if y := p.Year(); y > 0 {
		fmt.Fprintf(&b, "  year = {%d},\n", y)
	}
	fmt.Fprintf(&b, "  eprint = {%s},\n", eprint)
	b.WriteString("  archivePrefix = {arXiv},\n")
	fmt.Fprintf(&b, "  primaryClass = {%s},\n", primary)
	fmt.Fprintf(&b, "  url = {%s}\n", p.PDFURL)
	b.WriteString("}")
	return b.String()
}

type paperAlias Paper

// MarshalJSON adds the derived bibtex entry to the transport form.
func (p Paper) MarshalJSON() ([]byte, error) {
	alias := paperAlias(p)
	return json.Marshal(struct {
		*paperAlias
		BibTeX string `json:"bibtex"`
	}{&alias, p.BibTeX()})
}
