// Package router turns a raw user query into a family of routed queries for
// the downstream retrieval paths. An LLM call extracts lexical keywords and
// writes a short hypothetical answer (used for embedding-side retrieval);
// when no model is configured or the call fails, routing degrades to the raw
// query alone so search keeps working without an LLM.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/fathom-ai/fathom-go/internal/logging"
)

// DefaultTimeout bounds the expansion call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// expansionPrompt instructs the model to emit strict JSON so the response can
// be parsed without tool-calling support, which smaller local models lack.
const expansionPrompt = `You are a search query analyst. Given a user query, produce:
1. "keywords": 3-8 short search keywords covering the query's key terms and likely synonyms.
2. "hypothetical_answer": a 2-4 sentence passage written as if it were the ideal document answering the query.

Respond with ONLY a JSON object of the form:
{"keywords": ["..."], "hypothetical_answer": "..."}`

// Plan is the routed query family derived from one user query. The raw query
// is always present; the expanded fields are empty when routing degraded.
type Plan struct {
	// Raw is the original user query, always searched on both paths.
	Raw string
	// Keywords are LLM-extracted search terms for the lexical path.
	Keywords []string
	// Hypothetical is the LLM-written hypothetical answer, embedded and
	// searched on the dense path.
	Hypothetical string
	// Degraded is true when expansion was skipped or failed and the plan
	// contains only the raw query.
	Degraded bool
}

// LexicalQueries returns the query strings for the lexical path: the raw
// query first, then the joined keywords when present.
func (p Plan) LexicalQueries() []string {
	qs := []string{p.Raw}
	if len(p.Keywords) > 0 {
		qs = append(qs, strings.Join(p.Keywords, " "))
	}
	return qs
}

// DenseQueries returns the query strings for the dense path: the raw query
// first, then the hypothetical answer when present.
func (p Plan) DenseQueries() []string {
	qs := []string{p.Raw}
	if p.Hypothetical != "" {
		qs = append(qs, p.Hypothetical)
	}
	return qs
}

// Router expands user queries with an LLM. A nil model is valid and produces
// degraded plans, so callers never need a separate no-LLM code path.
type Router struct {
	// model is the expansion chat model, or nil to disable expansion.
	model model.BaseChatModel
	// timeout bounds each expansion call.
	timeout time.Duration
}

// New constructs a Router. model may be nil to run without expansion;
// timeout <= 0 selects DefaultTimeout.
func New(m model.BaseChatModel, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Router{model: m, timeout: timeout}
}

// expansionResult is the JSON object the expansion prompt asks for.
type expansionResult struct {
	Keywords     []string `json:"keywords"`
	Hypothetical string   `json:"hypothetical_answer"`
}

// Route expands the query into a Plan. Expansion failures are soft: the
// returned plan is degraded to the raw query and the error is logged, never
// returned, so a flaky LLM cannot take retrieval down with it.
func (r *Router) Route(ctx context.Context, query string) Plan {
	plan := Plan{Raw: query, Degraded: true}
	if r.model == nil || strings.TrimSpace(query) == "" {
		return plan
	}

	log := logging.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msgs := []*schema.Message{
		schema.SystemMessage(expansionPrompt),
		schema.UserMessage(query),
	}
	resp, err := r.model.Generate(ctx, msgs)
	if err != nil {
		log.Warn("router: query expansion failed — degrading to raw query",
			"error", err,
		)
		return plan
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		log.Warn("router: query expansion returned empty response — degrading to raw query")
		return plan
	}

	result, err := parseExpansion(resp.Content)
	if err != nil {
		log.Warn("router: could not parse expansion response — degrading to raw query",
			"error", err,
		)
		return plan
	}

	plan.Keywords = cleanKeywords(result.Keywords)
	plan.Hypothetical = strings.TrimSpace(result.Hypothetical)
	plan.Degraded = len(plan.Keywords) == 0 && plan.Hypothetical == ""
	return plan
}

// parseExpansion extracts the expansion JSON from the model output, tolerating
// markdown code fences and surrounding prose that smaller models tend to emit.
func parseExpansion(output string) (*expansionResult, error) {
	raw := strings.TrimSpace(output)
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	result := &expansionResult{}
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		return nil, fmt.Errorf("router: failed to unmarshal expansion output: %w", err)
	}
	return result, nil
}

// cleanKeywords trims and deduplicates keywords, dropping empties.
func cleanKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	var out []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	return out
}
