// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded PDFs into plain text for generators that
// cannot read uploaded files. Backends are pluggable: pdftotext on the host
// or markitdown in a docker/podman container.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/workpool"
	"github.com/pdiddy/litreview/pkg/types"
)

// textDir is the subdirectory under the papers base for cached text.
const textDir = "text"

// Converter transforms a PDF file into text.
type Converter interface {
	// Convert reads a PDF at pdfPath and returns its text content.
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// New builds the converter selected by cfg.
func New(cfg types.ConvertConfig) (Converter, error) {
	switch cfg.Backend {
	case types.ConvertPdftotext, "":
		return NewPdftotextConverter(cfg.Binary, cfg.MaxPages), nil
	case types.ConvertMarkitdown:
		rt, err := DetectRuntime()
		if err != nil {
			return nil, err
		}
		return NewMarkitdownConverter(rt, cfg.Image)
	default:
		return nil, eris.Errorf("unknown converter backend %q", cfg.Backend)
	}
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of papers processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any papers failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

type status int

const (
	statusConverted status = iota
	statusSkipped
	statusFailed
)

// convertPaper fills p.Text from its PDF. Text cached under
// papersDir/text/ from an earlier run is reused without converting again.
func convertPaper(ctx context.Context, c Converter, p *types.Paper, papersDir string, w io.Writer) status {
	if strings.TrimSpace(p.Text) != "" {
		return statusSkipped
	}
	if p.PDFPath == "" {
		fmt.Fprintf(w, "skipped: %s (no PDF)\n", p.ID)
		return statusSkipped
	}

	base := strings.TrimSuffix(filepath.Base(p.PDFPath), filepath.Ext(p.PDFPath))
	txtPath := filepath.Join(papersDir, textDir, base+".txt")

	if data, err := os.ReadFile(txtPath); err == nil && len(data) > 0 {
		p.Text = string(data)
		fmt.Fprintf(w, "skipped: %s (already exists)\n", p.ID)
		return statusSkipped
	}

	text, err := c.Convert(ctx, p.PDFPath)
	if err != nil {
		zap.L().Warn("conversion failed", zap.String("paper", p.ID), zap.Error(err))
		fmt.Fprintf(w, "failed:  %s (%v)\n", p.ID, err)
		return statusFailed
	}
	if strings.TrimSpace(text) == "" {
		fmt.Fprintf(w, "failed:  %s (empty text)\n", p.ID)
		return statusFailed
	}
	p.Text = text

	if err := os.MkdirAll(filepath.Dir(txtPath), 0o755); err == nil {
		if err := os.WriteFile(txtPath, []byte(text), 0o644); err != nil {
			zap.L().Warn("caching converted text", zap.String("paper", p.ID), zap.Error(err))
		}
	}

	fmt.Fprintf(w, "converted: %s (%d chars)\n", p.ID, len(text))
	return statusConverted
}

// ConvertAll converts every paper on a bounded worker pool and returns a
// summary. Only cancellation is returned as an error.
func ConvertAll(ctx context.Context, c Converter, papers []*types.Paper, papersDir string, limit int, w io.Writer) (BatchResult, error) {
	w = workpool.Locked(w)
	statuses, err := workpool.Map(ctx, papers, limit, func(ctx context.Context, _ int, p *types.Paper) status {
		return convertPaper(ctx, c, p, papersDir, w)
	})
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for _, s := range statuses {
		switch s {
		case statusConverted:
			result.Converted++
		case statusSkipped:
			result.Skipped++
		case statusFailed:
			result.Failed++
		}
	}
	fmt.Fprintf(w, "\nConversion summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result, nil
}
