// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DefaultMaxDepth bounds outline trees when no depth is configured.
const DefaultMaxDepth = 3

// Citation links synthesized text to the paper it cites. Key is unique
// within one run and may carry a suffix the paper's own CitationKey lacks.
type Citation struct {
	Key     string   `json:"key" yaml:"key"`
	PaperID string   `json:"paperId" yaml:"paperId"`
	Title   string   `json:"title" yaml:"title"`
	Authors []string `json:"authors" yaml:"authors"`
	Year    int      `json:"year,omitempty" yaml:"year,omitempty"`
	URL     string   `json:"url,omitempty" yaml:"url,omitempty"`
	BibTeX  string   `json:"bibtex" yaml:"bibtex"`
}

// OutlineNode is one section of the planned report. A node without a
// Question is a pure grouping node and never receives synthesized text.
type OutlineNode struct {
	Title     string         `json:"title" yaml:"title"`
	Question  string         `json:"question,omitempty" yaml:"question,omitempty"`
	Children  []*OutlineNode `json:"sections,omitempty" yaml:"sections,omitempty"`
	Text      string         `json:"text,omitempty" yaml:"text,omitempty"`
	Citations []Citation     `json:"citations,omitempty" yaml:"citations,omitempty"`
}

// Visit is one step of an outline walk.
type Visit struct {
	Node  *OutlineNode
	Depth int
}

// Walk returns the nodes of the tree in pre-order, root at depth 1. Nodes
// deeper than maxDepth are not visited. The traversal uses an explicit stack
// so malformed trees cannot exhaust the goroutine stack.
func (n *OutlineNode) Walk(maxDepth int) []Visit {
	if n == nil {
		return nil
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var out []Visit
	stack := []Visit{{Node: n, Depth: 1}}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, v)
		if v.Depth >= maxDepth {
			continue
		}
		for i := len(v.Node.Children) - 1; i >= 0; i-- {
			if c := v.Node.Children[i]; c != nil {
				stack = append(stack, Visit{Node: c, Depth: v.Depth + 1})
			}
		}
	}
	return out
}

// Depth returns the height of the tree explored up to limit, counting the
// root as 1.
func (n *OutlineNode) Depth(limit int) int {
	deepest := 0
	for _, v := range n.Walk(limit) {
		if v.Depth > deepest {
			deepest = v.Depth
		}
	}
	return deepest
}

// QuestionNodes returns every node within maxDepth that carries a question.
func (n *OutlineNode) QuestionNodes(maxDepth int) []*OutlineNode {
	var out []*OutlineNode
	for _, v := range n.Walk(maxDepth) {
		if v.Node.Question != "" {
			out = append(out, v.Node)
		}
	}
	return out
}
