// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package draft

import (
	"regexp"
	"strings"

	"github.com/pdiddy/litreview/pkg/types"
)

// citationPattern matches inline citations with an optional leading space:
// [Key] or [Key1; Key2].
var citationPattern = regexp.MustCompile(` ?\[([^\[\]]+)\]`)

// CitationKeys assigns each paper its citation key. Papers whose keys
// collide get suffixes a, b, ... in input order.
func CitationKeys(papers []*types.Paper) map[string]string {
	counts := make(map[string]int)
	for _, p := range papers {
		counts[p.CitationKey()]++
	}
	keys := make(map[string]string, len(papers))
	seen := make(map[string]int)
	for _, p := range papers {
		base := p.CitationKey()
		if counts[base] == 1 {
			keys[p.ID] = base
			continue
		}
		keys[p.ID] = base + suffix(seen[base])
		seen[base]++
	}
	return keys
}

// suffix returns a, b, ..., z, aa, ab, ...
func suffix(n int) string {
	s := ""
	for {
		s = string(rune('a'+n%26)) + s
		n = n/26 - 1
		if n < 0 {
			return s
		}
	}
}

// Cite returns the citation of p under key.
func Cite(p *types.Paper, key string) types.Citation {
	bib := p.BibTeX()
	if base := p.CitationKey(); base != key {
		bib = strings.Replace(bib, "{"+base+",", "{"+key+",", 1)
	}
	return types.Citation{
		Key:     key,
		PaperID: p.ID,
		Title:   p.Title,
		Authors: p.Authors,
		Year:    p.Year(),
		URL:     p.PDFURL,
		BibTeX:  bib,
	}
}

// validateCitations strips bracketed keys that are not in known and returns
// the cleaned text with the keys cited, in first-cited order. Bracket groups
// that do not look like citations are left alone.
func validateCitations(text string, known map[string]bool) (string, []string) {
	var cited []string
	seen := make(map[string]bool)
	out := citationPattern.ReplaceAllStringFunc(text, func(m string) string {
		lead, body := "", m
		if strings.HasPrefix(m, " ") {
			lead, body = " ", m[1:]
		}
		keys := splitKeys(body[1 : len(body)-1])
		if keys == nil {
			return m
		}
		var kept []string
		for _, k := range keys {
			if !known[k] {
				continue
			}
			kept = append(kept, k)
			if !seen[k] {
				seen[k] = true
				cited = append(cited, k)
			}
		}
		if len(kept) == 0 {
			return ""
		}
		return lead + "[" + strings.Join(kept, "; ") + "]"
	})
	return out, cited
}

// splitKeys splits a bracket body on ';' or ','. It returns nil unless every
// part looks like a citation key.
func splitKeys(inner string) []string {
	parts := strings.FieldsFunc(inner, func(r rune) bool { return r == ';' || r == ',' })
	if len(parts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		k := strings.TrimSpace(p)
		if !isCitationKey(k) {
			return nil
		}
		keys = append(keys, k)
	}
	return keys
}

// isCitationKey checks whether s looks like an AuthorYear key. It rejects
// Markdown links, indices and other bracket content.
func isCitationKey(s string) bool {
	hasLetter := false
	hasDigit := false
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
			hasDigit = true
		case c == '-', c == '_':
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}
