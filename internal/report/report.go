// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders a synthesized outline tree into a single Markdown
// or LaTeX document with a deduplicated reference list.
package report

import (
	"fmt"
	"strings"

	"github.com/pdiddy/litreview/pkg/types"
)

// maxLevels is the deepest heading either format can express.
const maxLevels = 5

const untitled = "Literature Review"

// Compile renders root in the given format. Unknown formats render as
// Markdown. Nodes deeper than the deepest heading level are not rendered.
func Compile(root *types.OutlineNode, format types.OutputFormat) string {
	if root == nil {
		root = &types.OutlineNode{}
	}
	visits := root.Walk(maxLevels)
	refs := references(visits)
	if format == types.OutputLaTeX {
		return latex(visits, refs)
	}
	return markdown(visits, refs)
}

// references collects every citation in walk order, keeping the first
// occurrence of each paper.
func references(visits []types.Visit) []types.Citation {
	var refs []types.Citation
	seen := make(map[string]bool)
	for _, v := range visits {
		for _, c := range v.Node.Citations {
			if seen[c.PaperID] {
				continue
			}
			seen[c.PaperID] = true
			refs = append(refs, c)
		}
	}
	return refs
}

func title(n *types.OutlineNode) string {
	if t := strings.TrimSpace(n.Title); t != "" {
		return t
	}
	return untitled
}

func markdown(visits []types.Visit, refs []types.Citation) string {
	var b strings.Builder
	for i, v := range visits {
		t := v.Node.Title
		if i == 0 {
			t = title(v.Node)
		}
		fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("#", v.Depth), t)
		if v.Node.Text != "" {
			b.WriteString(strings.TrimSpace(v.Node.Text))
			b.WriteString("\n\n")
		}
	}

	b.WriteString("## References\n")
	if len(refs) > 0 {
		b.WriteString("\n")
	}
	for _, c := range refs {
		fmt.Fprintf(&b, "- [%s] %s (%s). *%s*.", c.Key, authorList(c.Authors), year(c.Year), c.Title)
		if c.URL != "" {
			fmt.Fprintf(&b, " %s", c.URL)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func authorList(authors []string) string {
	switch len(authors) {
	case 0:
		return "Unknown"
	case 1:
		return authors[0]
	case 2:
		return authors[0] + " and " + authors[1]
	default:
		return strings.Join(authors[:len(authors)-1], ", ") + ", and " + authors[len(authors)-1]
	}
}

func year(y int) string {
	if y <= 0 {
		return "n.d."
	}
	return fmt.Sprint(y)
}
