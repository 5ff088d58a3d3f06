// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/structured"
)

// Typesetter polishes a compiled document. Implementations return the input
// unchanged when they cannot improve it.
type Typesetter interface {
	Typeset(ctx context.Context, doc string) string
}

var typesetTmpl = template.Must(template.New("typeset").Parse(`You are a scientific document preparation expert. Improve the formatting of the following LaTeX literature review so it compiles cleanly and reads as a professional document.

Keep every section, every sentence and every \cite command. Keep the thebibliography entries and their keys. You may add packages, a table of contents and layout improvements.

Return only the complete LaTeX code without explanations or markdown formatting.

{{.}}
`))

// ModelTypesetter asks a generator to polish a LaTeX document.
type ModelTypesetter struct {
	Gen        llm.Generator
	Model      string
	MaxRetries int
}

// Typeset returns the polished document, or doc when the call fails or the
// reply is not a complete LaTeX document.
func (t *ModelTypesetter) Typeset(ctx context.Context, doc string) string {
	var buf bytes.Buffer
	if err := typesetTmpl.Execute(&buf, doc); err != nil {
		zap.L().Warn("rendering typeset prompt", zap.Error(err))
		return doc
	}
	prompt := buf.String()

	out, err := llm.Retry(ctx, t.MaxRetries, func(ctx context.Context) (string, error) {
		return t.Gen.Generate(ctx, t.Model, llm.Text(prompt))
	})
	if err != nil {
		zap.L().Warn("typesetting failed, keeping native document", zap.Error(err))
		return doc
	}
	out = structured.StripFences(out)
	if !strings.Contains(out, `\begin{document}`) || !strings.Contains(out, `\end{document}`) {
		zap.L().Warn("typesetter returned an incomplete document, keeping native document")
		return doc
	}
	return out + "\n"
}
