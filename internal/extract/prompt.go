// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/litreview/pkg/types"
)

// noneMarker is the reply for a chunk with nothing germane to the topic.
const noneMarker = "NONE"

var promptTmpl = template.Must(template.New("extract").Parse(`You are a research assistant collecting evidence for a literature review on the topic: "{{.Topic}}".
Inclusion criteria: {{.Include}}

From the paper {{.PaperID}}{{if .Title}} ("{{.Title}}"){{end}}, extract the passages that are germane to the topic: claims, methods, results and definitions a review section would cite. Preserve the original wording. Separate passages with blank lines and do not add commentary.
{{- if .Part}}

This is part {{.Part}} of {{.Parts}} of the paper text. If nothing in this part is germane, reply with {{.None}} only.
{{- end}}
{{- if .Content}}

===== PAPER CONTENT =====
{{.Content}}
======= END PAPER =======
{{- else}}

The paper is attached as a file.
{{- end}}
`))

type promptData struct {
	Topic, Include, PaperID, Title string
	Part, Parts                    int
	None                           string
	Content                        string
}

func renderPrompt(topic types.Topic, p *types.Paper, content string, part, parts int) (string, error) {
	var buf bytes.Buffer
	data := promptData{
		Topic:   topic.Name,
		Include: types.Terms(topic.Include),
		PaperID: p.ID,
		Title:   p.Title,
		None:    noneMarker,
		Content: content,
	}
	if parts > 1 {
		data.Part, data.Parts = part, parts
	}
	err := promptTmpl.Execute(&buf, data)
	return buf.String(), err
}
