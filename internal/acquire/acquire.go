// Package acquire downloads paper PDFs into the local cache, keeps a YAML
// metadata sidecar next to each one, and hands PDFs to the file ingest
// service.
package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litreview/internal/httputil"
	"github.com/pdiddy/litreview/pkg/types"
)

const (
	rawDir      = "raw"
	metadataDir = "metadata"
)

// BatchResult holds the outcome of a batch download run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Papers     []*types.Paper
}

// Total returns the total number of papers processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any papers failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// PDFPath returns the cache location of a paper's PDF.
func PDFPath(cfg types.AcquisitionConfig, id string) string {
	return filepath.Join(cfg.PapersDir, rawDir, fileSlug(id)+".pdf")
}

// MetadataPath returns the cache location of a paper's YAML sidecar.
func MetadataPath(cfg types.AcquisitionConfig, id string) string {
	return filepath.Join(cfg.PapersDir, metadataDir, fileSlug(id)+".yaml")
}

// fileSlug makes old-style arXiv IDs such as "cs/0112017" safe as file names.
func fileSlug(id string) string {
	return strings.ReplaceAll(id, "/", "_")
}

// Download fetches the PDF of p into the cache and records its path. If the
// PDF already exists the download is skipped and empty bibliographic fields
// are filled from the sidecar. The skipped return value reports a cache hit.
// Failures wrap types.ErrIngest.
func Download(ctx context.Context, client *http.Client, p *types.Paper, cfg types.AcquisitionConfig, w io.Writer) (skipped bool, err error) {
	if p.ID == "" {
		return false, eris.Wrap(types.ErrIngest, "paper has no ID")
	}
	pdfPath := PDFPath(cfg, p.ID)
	metaPath := MetadataPath(cfg, p.ID)

	if _, err := os.Stat(pdfPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", p.ID)
		if cached, readErr := ReadMetadata(metaPath); readErr == nil {
			fillMissing(p, cached)
		}
		p.PDFPath = pdfPath
		return true, nil
	}

	if p.PDFURL == "" {
		return false, eris.Wrapf(types.ErrIngest, "no PDF URL for %s", p.ID)
	}

	for _, dir := range []string{filepath.Dir(pdfPath), filepath.Dir(metaPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, eris.Wrapf(types.ErrIngest, "creating directory %s: %v", dir, err)
		}
	}

	fmt.Fprintf(w, "downloading: %s\n", p.ID)
	if err := downloadFile(ctx, client, p.PDFURL, pdfPath, cfg); err != nil {
		return false, eris.Wrapf(types.ErrIngest, "downloading %s: %v", p.ID, err)
	}
	p.PDFPath = pdfPath

	if err := WriteMetadata(p, metaPath); err != nil {
		zap.L().Warn("writing metadata sidecar", zap.String("paper", p.ID), zap.Error(err))
	}
	return false, nil
}

// DownloadAll downloads every paper, pausing cfg.DownloadDelay between
// network downloads. It continues after individual failures; failed papers
// keep an empty PDFPath and are left out of the result's Papers.
func DownloadAll(ctx context.Context, client *http.Client, papers []*types.Paper, cfg types.AcquisitionConfig, w io.Writer) (BatchResult, error) {
	var result BatchResult
	fetched := false
	for _, p := range papers {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if fetched && cfg.DownloadDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(cfg.DownloadDelay):
			}
		}

		skipped, err := Download(ctx, client, p, cfg, w)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			zap.L().Warn("download failed", zap.String("paper", p.ID), zap.Error(err))
			fmt.Fprintf(w, "failed:  %s (%v)\n", p.ID, err)
			result.Failed++
			continue
		}
		if skipped {
			result.Skipped++
		} else {
			result.Downloaded++
			fetched = true
		}
		result.Papers = append(result.Papers, p)
	}
	fmt.Fprintf(w, "\nDownload summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result, nil
}

// downloadFile fetches url to destPath through a temporary file that is
// renamed into place only after the body was fully written.
func downloadFile(ctx context.Context, client *http.Client, url, destPath string, cfg types.AcquisitionConfig) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "creating request")
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf")

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return eris.Wrap(err, "creating temp file")
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return eris.Wrap(copyErr, "writing download")
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return eris.Wrap(closeErr, "closing temp file")
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return eris.Wrap(err, "renaming temp file")
	}
	return nil
}

// FileRefTTL is how long a recorded upload is reused. The file ingest
// service deletes uploads 48 hours after they are created.
var FileRefTTL = 47 * time.Hour

// sidecar is the cached form of a paper: bibliographic metadata plus the
// last upload reference, if any.
type sidecar struct {
	ID         string         `yaml:"id"`
	EntryID    string         `yaml:"entryId"`
	Title      string         `yaml:"title"`
	Authors    []string       `yaml:"authors"`
	Abstract   string         `yaml:"abstract"`
	Published  time.Time      `yaml:"publishedDate"`
	Categories []string       `yaml:"categories"`
	PDFURL     string         `yaml:"pdfUrl"`
	PDFPath    string         `yaml:"pdfPath"`
	FileRef    *types.FileRef `yaml:"fileRef,omitempty"`
	UploadedAt time.Time      `yaml:"uploadedAt,omitempty"`
}

func toSidecar(p *types.Paper) sidecar {
	return sidecar{
		ID:         p.ID,
		EntryID:    p.EntryID,
		Title:      p.Title,
		Authors:    p.Authors,
		Abstract:   p.Abstract,
		Published:  p.Published,
		Categories: p.Categories,
		PDFURL:     p.PDFURL,
		PDFPath:    p.PDFPath,
	}
}

func writeSidecar(s sidecar, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "marshaling metadata")
	}
	return os.WriteFile(path, data, 0o644)
}

func readSidecar(path string) (sidecar, error) {
	var s sidecar
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, eris.Wrapf(err, "parsing %s", path)
	}
	return s, nil
}

// WriteMetadata writes the bibliographic metadata of a paper to a YAML file.
func WriteMetadata(p *types.Paper, path string) error {
	return writeSidecar(toSidecar(p), path)
}

// ReadMetadata reads a sidecar back into an unclassified, unuploaded paper.
func ReadMetadata(path string) (*types.Paper, error) {
	s, err := readSidecar(path)
	if err != nil {
		return nil, err
	}
	return &types.Paper{
		ID:         s.ID,
		EntryID:    s.EntryID,
		Title:      s.Title,
		Authors:    s.Authors,
		Abstract:   s.Abstract,
		Published:  s.Published,
		Categories: s.Categories,
		PDFURL:     s.PDFURL,
		PDFPath:    s.PDFPath,
	}, nil
}

// recordUpload saves p's upload reference in its sidecar.
func recordUpload(p *types.Paper, path string, at time.Time) error {
	if p.File == nil {
		return nil
	}
	s := toSidecar(p)
	ref := *p.File
	s.FileRef = &ref
	s.UploadedAt = at
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "creating directory for %s", path)
	}
	return writeSidecar(s, path)
}

// cachedUpload returns the upload reference recorded in the sidecar when it
// is younger than FileRefTTL.
func cachedUpload(path string, now time.Time) (types.FileRef, bool) {
	s, err := readSidecar(path)
	if err != nil || s.FileRef == nil || s.FileRef.URI == "" || s.UploadedAt.IsZero() {
		return types.FileRef{}, false
	}
	if now.Sub(s.UploadedAt) >= FileRefTTL {
		return types.FileRef{}, false
	}
	return *s.FileRef, true
}

// fillMissing copies bibliographic fields of src into the empty fields of dst.
func fillMissing(dst, src *types.Paper) {
	if dst.EntryID == "" {
		dst.EntryID = src.EntryID
	}
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if dst.Abstract == "" {
		dst.Abstract = src.Abstract
	}
	if dst.Published.IsZero() {
		dst.Published = src.Published
	}
	if len(dst.Categories) == 0 {
		dst.Categories = src.Categories
	}
	if dst.PDFURL == "" {
		dst.PDFURL = src.PDFURL
	}
}
