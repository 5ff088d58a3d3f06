// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/litreview/pkg/types"
)

const fakePDF = "%PDF-1.4 fake content"

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if strings.HasPrefix(r.URL.Path, "/pdf/missing") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("User-Agent"); got != "litreview-test" {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, fakePDF)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(dir string) types.AcquisitionConfig {
	return types.AcquisitionConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "litreview-test"},
		PapersDir:  dir,
	}
}

func testPaper(ts *httptest.Server, id string) *types.Paper {
	return &types.Paper{
		ID:        id,
		EntryID:   "http://arxiv.org/abs/" + id + "v1",
		Title:     "Paper " + id,
		Authors:   []string{"Ada Lovelace"},
		Published: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		PDFURL:    ts.URL + "/pdf/" + id,
	}
}

func TestDownload(t *testing.T) {
	ts := newTestServer(t, nil)
	cfg := testConfig(t.TempDir())
	p := testPaper(ts, "2401.00001")

	var buf bytes.Buffer
	skipped, err := Download(context.Background(), ts.Client(), p, cfg, &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if skipped {
		t.Error("first download reported skipped")
	}
	if p.PDFPath != PDFPath(cfg, p.ID) {
		t.Errorf("PDFPath = %q", p.PDFPath)
	}
	data, err := os.ReadFile(p.PDFPath)
	if err != nil {
		t.Fatalf("reading PDF: %v", err)
	}
	if string(data) != fakePDF {
		t.Errorf("PDF content = %q", data)
	}

	meta, err := ReadMetadata(MetadataPath(cfg, p.ID))
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.Title != p.Title || meta.PDFPath != p.PDFPath {
		t.Errorf("metadata = %+v", meta)
	}
	if !strings.Contains(buf.String(), "downloading: 2401.00001") {
		t.Errorf("progress = %q", buf.String())
	}

	leftovers, _ := filepath.Glob(filepath.Join(cfg.PapersDir, rawDir, ".acquire-*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestDownloadSkipsExisting(t *testing.T) {
	var hits int32
	ts := newTestServer(t, &hits)
	cfg := testConfig(t.TempDir())

	first := testPaper(ts, "2401.00002")
	first.Abstract = "cached abstract"
	if _, err := Download(context.Background(), ts.Client(), first, cfg, io.Discard); err != nil {
		t.Fatalf("Download: %v", err)
	}

	// A later run sees the same paper with less metadata.
	again := &types.Paper{ID: "2401.00002"}
	skipped, err := Download(context.Background(), ts.Client(), again, cfg, io.Discard)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !skipped {
		t.Error("second download not skipped")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
	if again.Abstract != "cached abstract" || again.PDFPath == "" {
		t.Errorf("sidecar not reused: %+v", again)
	}
	if again.Relevance != types.RelevanceUnknown {
		t.Errorf("cached paper carries relevance %v", again.Relevance)
	}
}

func TestDownloadFailures(t *testing.T) {
	ts := newTestServer(t, nil)
	cfg := testConfig(t.TempDir())

	tests := []struct {
		name  string
		paper *types.Paper
	}{
		{"http 404", &types.Paper{ID: "missing", PDFURL: ts.URL + "/pdf/missing"}},
		{"no url", &types.Paper{ID: "nourl"}},
		{"no id", &types.Paper{PDFURL: ts.URL + "/pdf/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Download(context.Background(), ts.Client(), tt.paper, cfg, io.Discard)
			if !eris.Is(err, types.ErrIngest) {
				t.Errorf("err = %v, want ErrIngest", err)
			}
			if tt.paper.PDFPath != "" {
				t.Errorf("PDFPath set on failure: %q", tt.paper.PDFPath)
			}
		})
	}

	if _, err := os.Stat(PDFPath(cfg, "missing")); !os.IsNotExist(err) {
		t.Error("failed download left a PDF behind")
	}
}

func TestDownloadAll(t *testing.T) {
	ts := newTestServer(t, nil)
	cfg := testConfig(t.TempDir())
	cfg.DownloadDelay = time.Millisecond

	papers := []*types.Paper{
		testPaper(ts, "2401.00010"),
		{ID: "missing", PDFURL: ts.URL + "/pdf/missing"},
		testPaper(ts, "2401.00011"),
	}
	var buf bytes.Buffer
	result, err := DownloadAll(context.Background(), ts.Client(), papers, cfg, &buf)
	if err != nil {
		t.Fatalf("DownloadAll: %v", err)
	}
	if result.Downloaded != 2 || result.Failed != 1 || result.Total() != 3 {
		t.Errorf("result = %+v", result)
	}
	if !result.HasFailures() {
		t.Error("HasFailures = false")
	}
	if len(result.Papers) != 2 {
		t.Errorf("len(Papers) = %d, want 2", len(result.Papers))
	}
	if !strings.Contains(buf.String(), "2 downloaded, 0 skipped, 1 failed") {
		t.Errorf("summary missing: %q", buf.String())
	}

	// Re-running hits the cache for everything that succeeded.
	again, err := DownloadAll(context.Background(), ts.Client(), papers[:1], cfg, io.Discard)
	if err != nil {
		t.Fatalf("DownloadAll: %v", err)
	}
	if again.Skipped != 1 || again.Downloaded != 0 {
		t.Errorf("rerun = %+v", again)
	}
}

func TestDownloadAllCanceled(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DownloadAll(ctx, ts.Client(), []*types.Paper{testPaper(ts, "1")}, testConfig(t.TempDir()), io.Discard)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFileSlug(t *testing.T) {
	if got := fileSlug("cs/0112017"); got != "cs_0112017" {
		t.Errorf("fileSlug = %q", got)
	}
	if got := fileSlug("2401.00001"); got != "2401.00001" {
		t.Errorf("fileSlug = %q", got)
	}
}

// --- ingest ---

type countingUploader struct {
	calls int32
	err   error
}

func (u *countingUploader) Upload(_ context.Context, path string) (types.FileRef, error) {
	atomic.AddInt32(&u.calls, 1)
	if u.err != nil {
		return types.FileRef{}, u.err
	}
	return types.FileRef{URI: "files/" + filepath.Base(path), MIMEType: "application/pdf"}, nil
}

func TestIngestIsIdempotent(t *testing.T) {
	up := &countingUploader{}
	p := &types.Paper{ID: "1", PDFPath: "/tmp/1.pdf"}

	if err := Ingest(context.Background(), up, p); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !p.Uploaded || p.File == nil || p.File.URI != "files/1.pdf" {
		t.Fatalf("paper not attached: %+v", p)
	}
	if err := Ingest(context.Background(), up, p); err != nil {
		t.Fatalf("Ingest again: %v", err)
	}
	if up.calls != 1 {
		t.Errorf("upload calls = %d, want 1", up.calls)
	}
}

func TestIngestErrors(t *testing.T) {
	if err := Ingest(context.Background(), &countingUploader{}, &types.Paper{ID: "1"}); !eris.Is(err, types.ErrIngest) {
		t.Errorf("no PDF: err = %v", err)
	}
	up := &countingUploader{err: errors.New("quota")}
	p := &types.Paper{ID: "1", PDFPath: "/tmp/1.pdf"}
	if err := Ingest(context.Background(), up, p); !eris.Is(err, types.ErrIngest) {
		t.Errorf("upload failure: err = %v", err)
	}
	if p.Uploaded {
		t.Error("failed upload marked paper uploaded")
	}
}

func TestIngestAll(t *testing.T) {
	up := &countingUploader{}
	done := &types.Paper{ID: "a", PDFPath: "/tmp/a.pdf"}
	done.AttachFile(types.FileRef{URI: "files/a.pdf"})
	papers := []*types.Paper{
		done,
		{ID: "b", PDFPath: "/tmp/b.pdf"},
		{ID: "c"},
		{ID: "d", PDFPath: "/tmp/d.pdf"},
	}

	var buf bytes.Buffer
	s, err := IngestAll(context.Background(), up, papers, types.AcquisitionConfig{}, 2, &buf)
	if err != nil {
		t.Fatalf("IngestAll: %v", err)
	}
	if s.Uploaded != 2 || s.Skipped != 2 || s.Failed != 0 {
		t.Errorf("summary = %+v", s)
	}
	if up.calls != 2 {
		t.Errorf("upload calls = %d, want 2", up.calls)
	}
	if papers[0].File.URI != "files/a.pdf" {
		t.Errorf("existing reference replaced: %q", papers[0].File.URI)
	}
}

func TestIngestAllRecordsUpload(t *testing.T) {
	cfg := types.AcquisitionConfig{PapersDir: t.TempDir()}
	up := &countingUploader{}
	p := &types.Paper{ID: "2401.00001", Title: "Parsing", PDFPath: "/tmp/2401.00001.pdf"}

	if _, err := IngestAll(context.Background(), up, []*types.Paper{p}, cfg, 1, io.Discard); err != nil {
		t.Fatalf("IngestAll: %v", err)
	}
	ref, ok := cachedUpload(MetadataPath(cfg, p.ID), time.Now())
	if !ok || ref.URI != "files/2401.00001.pdf" {
		t.Fatalf("recorded upload = %+v, %v", ref, ok)
	}
	meta, err := ReadMetadata(MetadataPath(cfg, p.ID))
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.Title != "Parsing" || meta.Uploaded {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestIngestAllReusesRecentUpload(t *testing.T) {
	cfg := types.AcquisitionConfig{PapersDir: t.TempDir()}
	p := &types.Paper{ID: "2401.00002", PDFPath: "/tmp/2401.00002.pdf"}
	p.File = &types.FileRef{URI: "files/earlier", MIMEType: "application/pdf"}
	if err := recordUpload(p, MetadataPath(cfg, p.ID), time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("recordUpload: %v", err)
	}
	p.File = nil

	up := &countingUploader{}
	var buf bytes.Buffer
	s, err := IngestAll(context.Background(), up, []*types.Paper{p}, cfg, 1, &buf)
	if err != nil {
		t.Fatalf("IngestAll: %v", err)
	}
	if up.calls != 0 {
		t.Errorf("upload calls = %d, want 0", up.calls)
	}
	if s.Skipped != 1 || s.Uploaded != 0 {
		t.Errorf("summary = %+v", s)
	}
	if !p.Uploaded || p.File == nil || p.File.URI != "files/earlier" {
		t.Errorf("paper not attached to recorded upload: %+v", p)
	}
	if !strings.Contains(buf.String(), "skipped: 2401.00002") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestIngestAllReuploadsExpiredReference(t *testing.T) {
	cfg := types.AcquisitionConfig{PapersDir: t.TempDir()}
	p := &types.Paper{ID: "2401.00003", PDFPath: "/tmp/2401.00003.pdf"}
	p.File = &types.FileRef{URI: "files/stale", MIMEType: "application/pdf"}
	metaPath := MetadataPath(cfg, p.ID)
	if err := recordUpload(p, metaPath, time.Now().Add(-FileRefTTL-time.Minute)); err != nil {
		t.Fatalf("recordUpload: %v", err)
	}
	p.File = nil

	up := &countingUploader{}
	s, err := IngestAll(context.Background(), up, []*types.Paper{p}, cfg, 1, io.Discard)
	if err != nil {
		t.Fatalf("IngestAll: %v", err)
	}
	if up.calls != 1 || s.Uploaded != 1 {
		t.Errorf("upload calls = %d, summary = %+v", up.calls, s)
	}
	if p.File == nil || p.File.URI != "files/2401.00003.pdf" {
		t.Errorf("file = %+v", p.File)
	}
	ref, ok := cachedUpload(metaPath, time.Now())
	if !ok || ref.URI != "files/2401.00003.pdf" {
		t.Errorf("sidecar not refreshed: %+v, %v", ref, ok)
	}
}

func TestCachedUploadWithoutReference(t *testing.T) {
	cfg := types.AcquisitionConfig{PapersDir: t.TempDir()}
	p := &types.Paper{ID: "2401.00004"}
	path := MetadataPath(cfg, p.ID)
	if _, ok := cachedUpload(path, time.Now()); ok {
		t.Error("missing sidecar reported a cached upload")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := WriteMetadata(p, path); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if _, ok := cachedUpload(path, time.Now()); ok {
		t.Error("sidecar without reference reported a cached upload")
	}
}
