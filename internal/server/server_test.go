// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litreview/internal/pipeline"
	"github.com/pdiddy/litreview/internal/protocol"
	"github.com/pdiddy/litreview/pkg/types"
)

type fakeRunner struct {
	got pipeline.Request
	res protocol.Result
	err error
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (protocol.Result, error) {
	f.got = req
	return f.res, f.err
}

func post(t *testing.T, s *Server, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestSearchSuccess(t *testing.T) {
	runner := &fakeRunner{res: protocol.Result{
		Papers: []*types.Paper{{ID: "1", Title: "A"}, {ID: "2", Title: "B"}},
		Report: "# Review",
	}}
	s := New(runner, nil)

	rec, out := post(t, s, "/api/search", `{"query":"graph networks"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "graph networks", out["query"])
	assert.Equal(t, `(("graph networks"))`, out["formattedQuery"])
	assert.Equal(t, float64(2), out["totalResults"])
	assert.Equal(t, "# Review", out["finalReport"])
	assert.Len(t, out["papers"], 2)
	assert.Contains(t, out, "queryTime")
	assert.NotContains(t, out, "error")

	assert.Equal(t, "graph networks", runner.got.Topic)
	assert.False(t, runner.got.Deterministic)
	assert.False(t, runner.got.ClassifyOnly)
}

func TestSearchBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"blank query", `{"query":"   "}`},
		{"missing query", `{}`},
		{"invalid json", `{"query":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			rec, out := post(t, New(runner, nil), "/api/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, out["error"])
			assert.Equal(t, []any{}, out["papers"])
			assert.Equal(t, float64(0), out["totalResults"])
			assert.Empty(t, runner.got.Topic)
		})
	}
}

func TestSearchRunnerFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("source unavailable")}
	rec, out := post(t, New(runner, nil), "/api/search", `{"query":"q"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "source unavailable", out["error"])
	assert.Equal(t, "q", out["query"])
	assert.Equal(t, float64(0), out["totalResults"])
	assert.Equal(t, []any{}, out["papers"])
}

func TestFiltersRequest(t *testing.T) {
	runner := &fakeRunner{res: protocol.Result{Papers: []*types.Paper{{ID: "1"}}}}
	body := `{"query":"graph networks","include":["molecules"],"exclude":["images"],"maxPapers":3,"yearFrom":2020,"yearTo":2023}`
	rec, out := post(t, New(runner, nil), "/api/filters", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), out["totalResults"])
	assert.Equal(t, pipeline.Request{
		Topic:         "graph networks",
		Include:       []string{"molecules"},
		Exclude:       []string{"images"},
		MaxPapers:     3,
		YearFrom:      2020,
		YearTo:        2023,
		Deterministic: true,
		ClassifyOnly:  true,
	}, runner.got)
}

func TestStatusEndpoints(t *testing.T) {
	tests := []struct {
		path string
		want map[string]any
	}{
		{"/health", map[string]any{"status": "ok"}},
		{"/api/test", map[string]any{"status": "ok", "message": "server is running"}},
	}
	s := New(&fakeRunner{}, nil)
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			var out map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	s := New(&fakeRunner{}, []string{"http://localhost:3000"})
	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDPropagated(t *testing.T) {
	s := New(&fakeRunner{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}
