// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "github.com/rotisserie/eris"

// Error kinds shared across pipeline stages. Stages wrap these with eris so
// callers can test the kind with eris.Is.
var (
	// ErrSourceUnavailable means the bibliographic search service could not
	// be reached. It aborts the run.
	ErrSourceUnavailable = eris.New("paper source unavailable")

	ErrClassification   = eris.New("classification failed")
	ErrExtraction       = eris.New("extraction failed")
	ErrStructuredOutput = eris.New("unparsable structured output")
	ErrIngest           = eris.New("ingest failed")

	// ErrCanceled marks a run abandoned between stages.
	ErrCanceled = eris.New("run canceled")
)
