package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fathom-ai/fathom-go/internal/docstore"
	"github.com/fathom-ai/fathom-go/internal/logging"
	"github.com/fathom-ai/fathom-go/internal/router"
)

// Pipeline orchestrates one search request through five sequential stages:
// Route, Retrieve, Fuse, Rerank, Expand. Each stage is timed independently
// and its output is the complete input of the next; empty output at any
// stage flows through to an empty (but well-formed) response. Only document
// store failures abort a request — every upstream-model failure degrades.
type Pipeline struct {
	// router expands the raw query; may be nil to skip expansion.
	router *router.Router
	// retriever fans out to the lexical and dense paths.
	retriever *DualRetriever
	// reranker re-scores the fused candidates.
	reranker *Reranker
	// store resolves parent context during the Expand stage.
	store docstore.Store
	// metrics records per-request observations; may be nil.
	metrics *Metrics
	// rrfK is the reciprocal-rank-fusion constant.
	rrfK int
	// timeout bounds the whole request; 0 disables the deadline.
	timeout time.Duration
}

// PipelineConfig holds the collaborators and tunables for a Pipeline.
type PipelineConfig struct {
	// Router expands queries; nil runs raw-query-only retrieval.
	Router *router.Router
	// Retriever executes the dual retrieval stage. Required.
	Retriever *DualRetriever
	// Reranker orders the fused candidates. Required.
	Reranker *Reranker
	// Store resolves parent chunks for context expansion. Required.
	Store docstore.Store
	// Metrics records Prometheus observations; nil disables them.
	Metrics *Metrics
	// RRFK is the fusion constant (default: DefaultRRFK).
	RRFK int
	// Timeout bounds each request end to end; 0 disables the deadline.
	Timeout time.Duration
}

// NewPipeline constructs a Pipeline from the given config.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retrieval: retriever must not be nil")
	}
	if cfg.Reranker == nil {
		return nil, fmt.Errorf("retrieval: reranker must not be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("retrieval: store must not be nil")
	}
	rrfK := cfg.RRFK
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}
	return &Pipeline{
		router:    cfg.Router,
		retriever: cfg.Retriever,
		reranker:  cfg.Reranker,
		store:     cfg.Store,
		metrics:   cfg.Metrics,
		rrfK:      rrfK,
		timeout:   cfg.Timeout,
	}, nil
}

// Search runs the full pipeline for one raw query. The response is always
// well-formed: no results is reported as an empty list plus stats, never as
// an error. The returned error is non-nil only for fatal store failures.
func (p *Pipeline) Search(ctx context.Context, rawQuery string) (*Response, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log := logging.FromContext(ctx)
	started := time.Now()
	resp := &Response{Query: rawQuery, Results: []Result{}}

	// Route.
	stageStart := time.Now()
	plan := p.route(ctx, rawQuery)
	resp.Stats.RouteMS = time.Since(stageStart).Milliseconds()
	resp.Stats.ExpansionDegraded = plan.Degraded

	// Retrieve: both paths in parallel, joined before fusion.
	stageStart = time.Now()
	lexResults, denseResults := p.retriever.Retrieve(ctx, plan.LexicalQueries(), plan.DenseQueries())
	resp.Stats.RetrieveMS = time.Since(stageStart).Milliseconds()
	resp.Stats.LexicalCount = len(lexResults)
	resp.Stats.DenseCount = len(denseResults)

	// Fuse.
	stageStart = time.Now()
	fused := Fuse(lexResults, denseResults, p.rrfK)
	resp.Stats.FuseMS = time.Since(stageStart).Milliseconds()
	resp.Stats.FusedCount = len(fused)

	// Rerank.
	stageStart = time.Now()
	results, rerankDegraded, err := p.reranker.Rerank(ctx, rawQuery, fused)
	resp.Stats.RerankMS = time.Since(stageStart).Milliseconds()
	resp.Stats.RerankDegraded = rerankDegraded
	if err != nil {
		resp.Stats.TotalMS = time.Since(started).Milliseconds()
		p.metrics.observe("error", resp.Stats)
		return nil, err
	}

	// Expand: reattach parent context to each surviving result.
	stageStart = time.Now()
	if err := p.expand(ctx, results); err != nil {
		resp.Stats.TotalMS = time.Since(started).Milliseconds()
		p.metrics.observe("error", resp.Stats)
		return nil, err
	}
	resp.Stats.ExpandMS = time.Since(stageStart).Milliseconds()

	if results != nil {
		resp.Results = results
	}
	resp.Stats.ResultCount = len(resp.Results)
	resp.Stats.TotalMS = time.Since(started).Milliseconds()

	outcome := "ok"
	if len(resp.Results) == 0 {
		outcome = "empty"
	}
	p.metrics.observe(outcome, resp.Stats)

	log.Debug("pipeline: search completed",
		"query_len", len(rawQuery),
		"results", resp.Stats.ResultCount,
		"lexical", resp.Stats.LexicalCount,
		"dense", resp.Stats.DenseCount,
		"total_ms", resp.Stats.TotalMS,
	)
	return resp, nil
}

// route expands the raw query, or produces a degraded single-query plan when
// no router is configured.
func (p *Pipeline) route(ctx context.Context, rawQuery string) router.Plan {
	if p.router == nil {
		return router.Plan{Raw: rawQuery, Degraded: true}
	}
	return p.router.Route(ctx, rawQuery)
}

// expand attaches each result's full parent text. A missing parent is not an
// error — the child's own text remains the displayed context. An expired
// request deadline is also soft: the ranking was already spent computing, so
// the results go out as-is rather than being discarded at the last stage.
// Any other store failure is fatal.
func (p *Pipeline) expand(ctx context.Context, results []Result) error {
	for i := range results {
		if results[i].ParentID == "" {
			continue
		}
		parent, err := p.store.GetParent(ctx, results[i].ParentID)
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			logging.FromContext(ctx).Warn("pipeline: deadline reached during context expansion — returning results without parent context",
				"expanded", i,
				"remaining", len(results)-i,
			)
			return nil
		}
		if err != nil {
			return fmt.Errorf("retrieval: expand parent %s: %w", results[i].ParentID, err)
		}
		results[i].ParentContext = parent.Text
	}
	return nil
}
