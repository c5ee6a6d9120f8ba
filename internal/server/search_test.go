package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fathom-ai/fathom-go/internal/retrieval"
)

// fakeSearcher implements the searcher interface for tests.
type fakeSearcher struct {
	// resp is returned verbatim on each Search call.
	resp *retrieval.Response
	// err is returned as the error value.
	err error
	// lastQuery records the query passed to the most recent call.
	lastQuery string
}

func (f *fakeSearcher) Search(_ context.Context, query string) (*retrieval.Response, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// newSearchTestServer builds a *Server wired with the given searcher fake
// and a fresh metrics registry.
func newSearchTestServer(sr searcher) *Server {
	return &Server{
		searcher: sr,
		cfg:      &Config{Port: 8080},
		log:      slog.Default(),
		metrics:  newServerMetrics(prometheus.NewRegistry()),
	}
}

func TestHandleSearch_MissingQuery(t *testing.T) {
	t.Parallel()

	s := newSearchTestServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleSearch_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newSearchTestServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`not-json`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestHandleSearch_Success verifies that a valid request returns the pipeline
// response as JSON with the results and stats intact.
func TestHandleSearch_Success(t *testing.T) {
	t.Parallel()

	sr := &fakeSearcher{resp: &retrieval.Response{
		Query: "replication lag",
		Results: []retrieval.Result{
			{ChildID: "c1", Text: "replication lag is reduced by parallel apply", Score: 0.9, FinalRank: 1},
		},
		Stats: retrieval.Stats{ResultCount: 1},
	}}
	s := newSearchTestServer(sr)

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"query":"replication lag"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if sr.lastQuery != "replication lag" {
		t.Errorf("searcher received query %q", sr.lastQuery)
	}

	var resp retrieval.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ChildID != "c1" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
	if resp.Stats.ResultCount != 1 {
		t.Errorf("stats must survive the round trip: %+v", resp.Stats)
	}
}

// TestHandleSearch_PipelineError verifies that a pipeline failure maps to
// 500 with a JSON error body.
func TestHandleSearch_PipelineError(t *testing.T) {
	t.Parallel()

	sr := &fakeSearcher{err: fmt.Errorf("store unavailable")}
	s := newSearchTestServer(sr)

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"query":"anything"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error == "" {
		t.Error("expected a JSON error message")
	}
}

// TestHandleSearch_Timeout verifies that a deadline-exceeded pipeline error
// maps to 504.
func TestHandleSearch_Timeout(t *testing.T) {
	t.Parallel()

	sr := &fakeSearcher{err: fmt.Errorf("search: %w", context.DeadlineExceeded)}
	s := newSearchTestServer(sr)

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"query":"anything"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", w.Code)
	}
}
