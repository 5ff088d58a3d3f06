// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/llm"
	"github.com/pdiddy/litreview/internal/workpool"
	"github.com/pdiddy/litreview/pkg/types"
)

// Ingest uploads the paper's PDF and attaches the returned reference. A
// paper that is already uploaded is left alone without calling up.
func Ingest(ctx context.Context, up llm.Uploader, p *types.Paper) error {
	if p.Uploaded {
		return nil
	}
	if p.PDFPath == "" {
		return eris.Wrapf(types.ErrIngest, "paper %s has no local PDF", p.ID)
	}
	ref, err := up.Upload(ctx, p.PDFPath)
	if err != nil {
		return eris.Wrapf(types.ErrIngest, "uploading %s: %v", p.ID, err)
	}
	p.AttachFile(ref)
	return nil
}

// IngestSummary counts the outcome of IngestAll.
type IngestSummary struct {
	Uploaded int
	Skipped  int
	Failed   int
}

// IngestAll uploads every downloaded paper on a bounded worker pool.
// Upload references are recorded in the metadata sidecars under
// cfg.PapersDir, and a reference recorded less than FileRefTTL ago is reused
// without uploading again. Per-paper failures are logged and counted; only
// cancellation is returned.
func IngestAll(ctx context.Context, up llm.Uploader, papers []*types.Paper, cfg types.AcquisitionConfig, limit int, w io.Writer) (IngestSummary, error) {
	type outcome int
	const (
		uploaded outcome = iota
		skipped
		failed
	)

	cache := cfg.PapersDir != ""
	w = workpool.Locked(w)
	outcomes, err := workpool.Map(ctx, papers, limit, func(ctx context.Context, _ int, p *types.Paper) outcome {
		if p.Uploaded || p.PDFPath == "" {
			return skipped
		}
		metaPath := MetadataPath(cfg, p.ID)
		if cache {
			if ref, ok := cachedUpload(metaPath, time.Now()); ok {
				p.AttachFile(ref)
				fmt.Fprintf(w, "skipped: %s (uploaded as %s)\n", p.ID, ref.URI)
				return skipped
			}
		}
		if err := Ingest(ctx, up, p); err != nil {
			zap.L().Warn("ingest failed", zap.String("paper", p.ID), zap.Error(err))
			fmt.Fprintf(w, "failed:  %s (%v)\n", p.ID, err)
			return failed
		}
		if cache {
			if err := recordUpload(p, metaPath, time.Now()); err != nil {
				zap.L().Warn("recording upload", zap.String("paper", p.ID), zap.Error(err))
			}
		}
		fmt.Fprintf(w, "uploaded: %s (%s)\n", p.ID, p.File.URI)
		return uploaded
	})
	if err != nil {
		return IngestSummary{}, err
	}

	var s IngestSummary
	for _, o := range outcomes {
		switch o {
		case uploaded:
			s.Uploaded++
		case skipped:
			s.Skipped++
		case failed:
			s.Failed++
		}
	}
	return s, nil
}
