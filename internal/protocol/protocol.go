// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package protocol writes and parses the sentinel-delimited result blocks the
// review command prints on stdout after its progress lines:
//
//	<search_query>...</search_query>
//	<papers>{"papers":[...]}</papers>
//	<final_report>...</final_report>
//
// On failure the command prints a single <error>{...}</error> block instead.
package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/litreview/pkg/types"
)

const (
	tagQuery  = "search_query"
	tagPapers = "papers"
	tagReport = "final_report"
	tagError  = "error"
)

// ErrMissingBlock is returned by Parse when a mandatory block is absent.
var ErrMissingBlock = eris.New("missing protocol block")

// Result is the content of a successful run's output.
type Result struct {
	Query  string
	Papers []*types.Paper
	Report string
}

type papersPayload struct {
	Papers []*types.Paper `json:"papers"`
}

// ErrorPayload is the body of an <error> block.
type ErrorPayload struct {
	Message   string  `json:"error"`
	QueryTime float64 `json:"queryTime"`
}

// Error implements error so a parsed failure can be returned as one.
func (e *ErrorPayload) Error() string {
	return e.Message
}

// Write prints the result blocks. The query block is omitted when empty.
func Write(w io.Writer, r Result) error {
	papers := r.Papers
	if papers == nil {
		papers = []*types.Paper{}
	}
	data, err := json.Marshal(papersPayload{Papers: papers})
	if err != nil {
		return eris.Wrap(err, "encoding papers")
	}

	var b strings.Builder
	if r.Query != "" {
		fmt.Fprintf(&b, "<%s>%s</%s>\n", tagQuery, r.Query, tagQuery)
	}
	fmt.Fprintf(&b, "<%s>%s</%s>\n", tagPapers, data, tagPapers)
	fmt.Fprintf(&b, "<%s>%s</%s>\n", tagReport, r.Report, tagReport)
	_, err = io.WriteString(w, b.String())
	return err
}

// WriteError prints an <error> block for err.
func WriteError(w io.Writer, err error, elapsed time.Duration) error {
	data, mErr := json.Marshal(ErrorPayload{
		Message:   err.Error(),
		QueryTime: Seconds(elapsed),
	})
	if mErr != nil {
		return eris.Wrap(mErr, "encoding error")
	}
	_, wErr := fmt.Fprintf(w, "<%s>%s</%s>\n", tagError, data, tagError)
	return wErr
}

// Seconds rounds d to tenths of a second.
func Seconds(d time.Duration) float64 {
	return float64(d.Round(100*time.Millisecond).Milliseconds()) / 1000
}

// Parse extracts the result blocks from output, ignoring everything outside
// them. An <error> block is returned as an *ErrorPayload error.
//
// Blocks are located by position: the papers block is the first <papers>
// tag followed by its JSON object, the query and error blocks must precede
// it, and the report block must follow it. The report is free text, so the
// sentinel tags it may contain are never mistaken for protocol blocks.
func Parse(output string) (Result, error) {
	papersAt := strings.Index(output, "<"+tagPapers+">{")
	head := output
	if papersAt >= 0 {
		head = output[:papersAt]
	}
	if body, ok := block(head, tagError); ok {
		var p ErrorPayload
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return Result{}, &ErrorPayload{Message: strings.TrimSpace(body)}
		}
		return Result{}, &p
	}
	if papersAt < 0 {
		return Result{}, eris.Wrapf(ErrMissingBlock, "<%s>", tagPapers)
	}

	var r Result
	r.Query, _ = block(head, tagQuery)

	// encoding/json escapes '<', so the first closing tag ends the papers block.
	rest := output[papersAt+len(tagPapers)+2:]
	end := strings.Index(rest, "</"+tagPapers+">")
	if end < 0 {
		return Result{}, eris.Wrapf(ErrMissingBlock, "<%s>", tagPapers)
	}
	var payload papersPayload
	if err := json.Unmarshal([]byte(rest[:end]), &payload); err != nil {
		return Result{}, eris.Wrap(err, "decoding papers block")
	}
	r.Papers = payload.Papers

	var ok bool
	r.Report, ok = block(rest[end:], tagReport)
	if !ok {
		return Result{}, eris.Wrapf(ErrMissingBlock, "<%s>", tagReport)
	}
	return r, nil
}

// block returns the text between the first opening tag and the last closing
// tag after it.
func block(s, tag string) (string, bool) {
	openTag, closeTag := "<"+tag+">", "</"+tag+">"
	start := strings.Index(s, openTag)
	if start < 0 {
		return "", false
	}
	start += len(openTag)
	end := strings.LastIndex(s[start:], closeTag)
	if end < 0 {
		return "", false
	}
	return s[start : start+end], true
}
