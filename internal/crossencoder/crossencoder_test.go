package crossencoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func Test_HTTPScorer_ScoresPairsInOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != DefaultModel {
			t.Errorf("want default model, got %s", req.Model)
		}
		// Score each pair by passage length so ordering is observable.
		resp := scoreResponse{}
		for _, p := range req.Pairs {
			if p[0] != "the query" {
				t.Errorf("pair missing query: %v", p)
			}
			resp.Scores = append(resp.Scores, float64(len(p[1])))
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(&Config{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}

	scores, err := s.Score(context.Background(), "the query", []string{"ab", "abcd"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(scores) != 2 || scores[0] != 2 || scores[1] != 4 {
		t.Errorf("want [2 4], got %v", scores)
	}
}

func Test_HTTPScorer_BatchesLargeCandidateSets(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Pairs) > 3 {
			t.Errorf("batch exceeds configured size: %d pairs", len(req.Pairs))
		}
		resp := scoreResponse{Scores: make([]float64, len(req.Pairs))}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(&Config{Endpoint: srv.URL, BatchSize: 3})
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}

	passages := make([]string, 7)
	for i := range passages {
		passages[i] = "passage"
	}
	scores, err := s.Score(context.Background(), "q", passages)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(scores) != 7 {
		t.Errorf("want 7 scores, got %d", len(scores))
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("want 3 batched requests, got %d", got)
	}
}

func Test_HTTPScorer_ServerErrorIsReturned(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(&Config{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	if _, err := s.Score(context.Background(), "q", []string{"p"}); err == nil {
		t.Fatal("want error from failing endpoint, got nil")
	}
}

func Test_HTTPScorer_ScoreCountMismatchIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{1}})
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(&Config{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	if _, err := s.Score(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatal("want error on score count mismatch, got nil")
	}
}

func Test_NewHTTPScorer_RequiresEndpoint(t *testing.T) {
	t.Parallel()
	if _, err := NewHTTPScorer(&Config{}); err == nil {
		t.Fatal("want error for empty endpoint, got nil")
	}
}
