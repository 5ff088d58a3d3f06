// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/litreview/pkg/types"
)

var sectionCommands = map[int]string{
	2: `\section`,
	3: `\subsection`,
	4: `\subsubsection`,
	5: `\paragraph`,
}

var bracketPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

func escape(s string) string {
	return latexEscaper.Replace(s)
}

func latex(visits []types.Visit, refs []types.Citation) string {
	known := make(map[string]bool, len(refs))
	for _, c := range refs {
		known[c.Key] = true
	}

	var b strings.Builder
	b.WriteString("\\documentclass{article}\n")
	b.WriteString("\\usepackage[utf8]{inputenc}\n")
	b.WriteString("\\usepackage{hyperref}\n\n")
	fmt.Fprintf(&b, "\\title{%s}\n", escape(title(visits[0].Node)))
	b.WriteString("\\date{\\today}\n\n")
	b.WriteString("\\begin{document}\n\\maketitle\n\n")

	for _, v := range visits {
		if cmd, ok := sectionCommands[v.Depth]; ok {
			fmt.Fprintf(&b, "%s{%s}\n\n", cmd, escape(v.Node.Title))
		}
		if v.Node.Text != "" {
			b.WriteString(latexText(strings.TrimSpace(v.Node.Text), known))
			b.WriteString("\n\n")
		}
	}

	if len(refs) == 0 {
		b.WriteString("\\section*{References}\n\n")
	} else {
		b.WriteString("\\begin{thebibliography}{99}\n")
		for _, c := range refs {
			fmt.Fprintf(&b, "\\bibitem{%s} %s. \\emph{%s}. %s.", c.Key, escape(authorList(c.Authors)), escape(c.Title), year(c.Year))
			if c.URL != "" {
				fmt.Fprintf(&b, " \\url{%s}", c.URL)
			}
			b.WriteString("\n")
		}
		b.WriteString("\\end{thebibliography}\n\n")
	}
	b.WriteString("\\end{document}\n")
	return b.String()
}

// latexText escapes text and turns bracketed citations of known keys into
// \cite commands.
func latexText(text string, known map[string]bool) string {
	var b strings.Builder
	last := 0
	for _, m := range bracketPattern.FindAllStringSubmatchIndex(text, -1) {
		keys := citedKeys(text[m[2]:m[3]], known)
		if keys == nil {
			continue
		}
		b.WriteString(escape(text[last:m[0]]))
		fmt.Fprintf(&b, `\cite{%s}`, strings.Join(keys, ","))
		last = m[1]
	}
	b.WriteString(escape(text[last:]))
	return b.String()
}

// citedKeys returns the keys of a bracket body, or nil unless every key is known.
func citedKeys(inner string, known map[string]bool) []string {
	parts := strings.FieldsFunc(inner, func(r rune) bool { return r == ';' || r == ',' })
	if len(parts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		k := strings.TrimSpace(p)
		if !known[k] {
			return nil
		}
		keys = append(keys, k)
	}
	return keys
}
