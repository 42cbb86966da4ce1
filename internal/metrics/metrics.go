package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plenumqa_pipeline_requests_total",
			Help: "Total number of pipeline requests by terminal stage",
		},
		[]string{"terminal", "error_type"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plenumqa_stage_duration_seconds",
			Help:    "Pipeline stage execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plenumqa_stage_errors_total",
			Help: "Total number of stage errors",
		},
		[]string{"stage"},
	)

	// Decomposition metrics
	SubQuestionsGenerated = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plenumqa_subquestions_generated",
			Help:    "Number of sub-questions produced per decomposition",
			Buckets: []float64{1, 2, 4, 8, 12, 16, 24, 32},
		},
		[]string{"template"},
	)

	// Expansion metrics
	ExpansionVariants = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plenumqa_expansion_variants",
			Help:    "Number of accepted query variants per sub-question",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 10},
		},
	)

	ExpansionFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plenumqa_expansion_fallbacks_total",
			Help: "Sub-questions that fell back to their untouched text",
		},
	)

	EntityQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plenumqa_entity_queries_total",
			Help: "Exact-match entity queries prepended during expansion",
		},
	)

	// Retrieval metrics
	VectorSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plenumqa_vector_searches_total",
			Help: "Vector searches issued, by status",
		},
		[]string{"collection", "status"},
	)

	VectorSearchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plenumqa_vector_search_duration_seconds",
			Help:    "Vector search latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	ChunksRetrieved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plenumqa_chunks_retrieved",
			Help:    "Deduplicated chunks per sub-question after merge",
			Buckets: []float64{0, 5, 10, 20, 40, 80, 160},
		},
	)

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plenumqa_embedding_requests_total",
			Help: "Embedding lookups by outcome (lru_hit, cache_hit, ok, error)",
		},
		[]string{"model", "status"},
	)

	EmbeddingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plenumqa_embedding_duration_seconds",
			Help:    "Embedding service latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	// Generation metrics
	GenerationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plenumqa_generation_calls_total",
			Help: "Calls to the generation service, by agent and status",
		},
		[]string{"agent", "status"},
	)

	GenerationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plenumqa_generation_duration_seconds",
			Help:    "Generation service latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"agent"},
	)

	// Synthesis metrics
	ExtractionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plenumqa_extraction_failures_total",
			Help: "Per-sub-question structured extractions that failed entirely",
		},
	)

	// Citation metrics
	CitationsParsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plenumqa_citations_parsed",
			Help:    "Citations parsed from the answer source list",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		},
	)

	CitationsUnmatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plenumqa_citations_unmatched_total",
			Help: "Parsed citations with no matching retrieved chunk",
		},
	)

	// Maintenance metrics
	MaintenanceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plenumqa_maintenance_updates_total",
			Help: "Bulk metadata updates applied, by status",
		},
		[]string{"status"},
	)
)

// RecordVectorSearch records one vector search outcome with latency.
func RecordVectorSearch(collection, status string, seconds float64) {
	VectorSearches.WithLabelValues(collection, status).Inc()
	if status == "ok" {
		VectorSearchLatency.WithLabelValues(collection).Observe(seconds)
	}
}

// RecordEmbedding records one embedding lookup outcome with latency.
func RecordEmbedding(model, status string, seconds float64) {
	EmbeddingRequests.WithLabelValues(model, status).Inc()
	if status == "ok" || status == "batch_ok" {
		EmbeddingLatency.WithLabelValues(model).Observe(seconds)
	}
}

// RecordGeneration records one generation call outcome with latency.
func RecordGeneration(agent, status string, seconds float64) {
	GenerationCalls.WithLabelValues(agent, status).Inc()
	if status == "ok" {
		GenerationLatency.WithLabelValues(agent).Observe(seconds)
	}
}
