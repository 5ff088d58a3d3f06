// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package draft

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pdiddy/litreview/pkg/types"
)

// evidenceRunes truncates each evidence block's content.
const evidenceRunes = 4000

var promptTmpl = template.Must(template.New("section").Parse(`You are writing one section of a literature review on the topic: "{{.Topic}}".

Section title: {{.Title}}
Question this section answers: {{.Question}}

Evidence:
{{range .Evidence}}
[{{.Key}}] {{.Title}}
Authors: {{.Authors}}
{{.Content}}
{{end}}
Write the body of this section as academic prose that answers the question using only the evidence above. Cite evidence with its bracketed key, for example [{{.Example}}]; cite several at once as [Key1; Key2]. Do not cite anything that is not listed. Do not repeat the section title and do not add a reference list.
`))

type evidence struct {
	Key, Title, Authors, Content string
}

func newEvidence(p *types.Paper, key string) evidence {
	authors := "Unknown"
	if len(p.Authors) > 0 {
		authors = strings.Join(p.Authors, ", ")
	}
	content := p.RelevantContent
	if r := []rune(content); len(r) > evidenceRunes {
		content = string(r[:evidenceRunes]) + "..."
	}
	return evidence{Key: key, Title: p.Title, Authors: authors, Content: content}
}

func renderPrompt(topic string, node *types.OutlineNode, ev []evidence) (string, error) {
	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, struct {
		Topic, Title, Question, Example string
		Evidence                        []evidence
	}{topic, node.Title, node.Question, ev[0].Key, ev})
	return buf.String(), err
}
