// Package retrieval issues filtered vector searches for every expanded query
// of every sub-question and merges the results into per-sub-question chunk
// sets with year histograms.
package retrieval

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/expand"
	"github.com/openparl/plenumqa/internal/llmclient"
	"github.com/openparl/plenumqa/internal/metrics"
	"github.com/openparl/plenumqa/internal/qa"
	"github.com/openparl/plenumqa/internal/vectordb"
)

// Embedder turns a query string into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs one filtered similarity search.
type Searcher interface {
	Search(ctx context.Context, vec []float32, spec vectordb.FilterSpec, limit int) ([]qa.Chunk, error)
}

// Reranker reorders merged chunks by relevance to the sub-question. Optional.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []llmclient.RerankDocument, topN int) ([]string, error)
}

// Config carries the retrieval tunables.
type Config struct {
	TopKPerQuery int
	RerankTopN   int
}

// Coordinator drives retrieval for a batch of expanded sub-questions.
// Tunables may be swapped at runtime via Reconfigure.
type Coordinator struct {
	mu       sync.RWMutex
	cfg      Config
	embedder Embedder
	searcher Searcher
	reranker Reranker
	log      *zap.Logger
}

func withDefaults(cfg Config) Config {
	if cfg.TopKPerQuery <= 0 {
		cfg.TopKPerQuery = 10
	}
	return cfg
}

// New creates a coordinator. reranker may be nil.
func New(cfg Config, embedder Embedder, searcher Searcher, reranker Reranker, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cfg: withDefaults(cfg), embedder: embedder, searcher: searcher, reranker: reranker, log: logger}
}

// Reconfigure swaps the tunables for subsequent batches.
func (c *Coordinator) Reconfigure(cfg Config) {
	cfg = withDefaults(cfg)
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

func (c *Coordinator) config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Batch is the outcome for the whole sub-question batch. NoMaterial is set
// only when the union of chunks across all sub-questions is empty.
type Batch struct {
	Results    []qa.RetrievalResult
	NoMaterial bool
}

// Retrieve runs all searches. The result slice is position-aligned with the
// expansions: sub-question order is significant downstream. A positive topK
// overrides the configured per-query limit for this call.
func (c *Coordinator) Retrieve(ctx context.Context, params qa.Parameters, expansions []expand.Expansion, topK int) (Batch, error) {
	limit := c.config().TopKPerQuery
	if topK > 0 {
		limit = topK
	}
	results := make([]qa.RetrievalResult, len(expansions))
	total := 0
	for i, exp := range expansions {
		res, err := c.retrieveOne(ctx, params, exp, limit)
		if err != nil {
			// One empty or failed sub-question does not abort the batch.
			c.log.Warn("retrieval failed for sub-question",
				zap.String("sub_question", exp.SubQuestion.Text),
				zap.Error(err))
			res = qa.RetrievalResult{
				SubQuestion:     exp.SubQuestion,
				YearDist:        map[int]int{},
				RetrievalMethod: "failed",
			}
		}
		results[i] = res
		total += len(res.Chunks)
	}
	return Batch{Results: results, NoMaterial: total == 0}, nil
}

// buildFilter derives the search filter for one sub-question. A bound target
// year always narrows to that year; otherwise the extracted time scope
// applies, explicit discrete sets before ranges.
func buildFilter(params qa.Parameters, sq qa.SubQuestion) vectordb.FilterSpec {
	spec := vectordb.FilterSpec{Party: sq.TargetParty}

	if sq.TargetYear != 0 {
		spec.Years = []int{sq.TargetYear}
	} else if len(params.TimeRange.SpecificYears) > 0 {
		spec.Years = append([]int(nil), params.TimeRange.SpecificYears...)
	} else {
		spec.StartYear = params.TimeRange.StartYear
		spec.EndYear = params.TimeRange.EndYear
	}

	switch len(params.Speakers) {
	case 0:
	case 1:
		spec.Speaker = params.Speakers[0]
	default:
		spec.Speakers = append([]string(nil), params.Speakers...)
	}
	return spec
}

func (c *Coordinator) retrieveOne(ctx context.Context, params qa.Parameters, exp expand.Expansion, limit int) (qa.RetrievalResult, error) {
	spec := buildFilter(params, exp.SubQuestion)

	res := qa.RetrievalResult{
		SubQuestion:     exp.SubQuestion,
		YearDist:        map[int]int{},
		RetrievalMethod: "vector_filtered",
	}
	seen := make(map[string]struct{})

	queries := exp.Queries()
	var firstErr error
	succeeded := 0
	for _, q := range queries {
		vec, err := c.embedder.Embed(ctx, q)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("embed %q: %w", q, err)
			}
			continue
		}
		chunks, err := c.searcher.Search(ctx, vec, spec, limit)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("search %q: %w", q, err)
			}
			continue
		}
		succeeded++
		// merge by chunk identity, first occurrence wins
		for _, ch := range chunks {
			if _, dup := seen[ch.ID]; dup {
				continue
			}
			seen[ch.ID] = struct{}{}
			res.Chunks = append(res.Chunks, ch)
			res.YearDist[ch.Metadata.Year]++
		}
	}
	if succeeded == 0 && firstErr != nil {
		return qa.RetrievalResult{}, firstErr
	}

	if c.reranker != nil && len(res.Chunks) > 1 {
		c.rerank(ctx, &res)
	}

	metrics.ChunksRetrieved.Observe(float64(len(res.Chunks)))
	return res, nil
}

// rerank reorders the merged set via the rerank service. Failures leave the
// similarity order untouched.
func (c *Coordinator) rerank(ctx context.Context, res *qa.RetrievalResult) {
	docs := make([]llmclient.RerankDocument, len(res.Chunks))
	byID := make(map[string]qa.Chunk, len(res.Chunks))
	for i, ch := range res.Chunks {
		docs[i] = llmclient.RerankDocument{ID: ch.ID, Text: ch.Text}
		byID[ch.ID] = ch
	}
	topN := c.config().RerankTopN
	if topN <= 0 {
		topN = len(docs)
	}
	ids, err := c.reranker.Rerank(ctx, res.SubQuestion.Text, docs, topN)
	if err != nil || len(ids) == 0 {
		return
	}
	ordered := make([]qa.Chunk, 0, len(res.Chunks))
	used := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if ch, ok := byID[id]; ok {
			ordered = append(ordered, ch)
			used[id] = struct{}{}
		}
	}
	// chunks the reranker did not mention keep their relative order at the tail
	for _, ch := range res.Chunks {
		if _, ok := used[ch.ID]; !ok {
			ordered = append(ordered, ch)
		}
	}
	res.Chunks = ordered
	res.RetrievalMethod = "vector_filtered+rerank"
}
