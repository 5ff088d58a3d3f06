// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/litreview/pkg/types"
)

// truncationMarker ends paper text cut at the character limit.
const truncationMarker = "... [truncated]"

var promptTmpl = template.Must(template.New("classify").Parse(`You are a research assistant conducting a literature review on the topic: "{{.Topic}}".

You need to evaluate the following research paper for its relevance to a literature review on this topic.

Inclusion criteria: {{.Include}}
Exclusion criteria: {{.Exclude}}

Indicate if this paper should be cited as part of a literature review on the topic.

PAPER ID: {{.PaperID}}
{{- if .Content}}
===== PAPER CONTENT =====
{{.Content}}
======= END PAPER =======
{{- else}}
The paper is attached as a file.
{{- end}}

First, provide a very brief summary of the paper.
Then, carefully assess if the paper is relevant to the topic, considering the inclusion and exclusion criteria.

Respond with a JSON object having the following fields:
- summary: A short summary of the paper (100 words max)
- is_relevant: "yes" or "no" indicating whether the paper is relevant
- reasoning: Brief explanation for your decision (50 words max)
`))

// renderPrompt fills the template. An empty content means the paper is
// passed as a separate file part.
func renderPrompt(topic types.Topic, paperID, content string) (string, error) {
	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, struct {
		Topic, Include, Exclude, PaperID, Content string
	}{
		Topic:   topic.Name,
		Include: types.Terms(topic.Include),
		Exclude: types.Terms(topic.Exclude),
		PaperID: paperID,
		Content: content,
	})
	return buf.String(), err
}

// truncate cuts text to maxChars runes and appends the truncation marker.
// maxChars <= 0 disables truncation.
func truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i] + truncationMarker
		}
		n++
	}
	return text
}
