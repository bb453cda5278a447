package metrics

import "github.com/prometheus/client_golang/prometheus"

// RAG pipeline Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsrag",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsrag",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsrag",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"model", "type"},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsrag",
			Name:      "generation_requests_total",
			Help:      "Total number of generation requests",
		},
		[]string{"task", "mode", "status"}, // mode: blocking / stream
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsrag",
			Name:      "generation_duration_seconds",
			Help:      "End-to-end generation duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"task", "mode"},
	)

	HallucinatedCitationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsrag",
			Name:      "hallucinated_citations_total",
			Help:      "Total citation markers referencing ids outside the retrieved set",
		},
	)

	ChunksIndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsrag",
			Name:      "chunks_indexed_total",
			Help:      "Total chunks written to the vector index",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(GenerationDuration)
	prometheus.MustRegister(HallucinatedCitationsTotal)
	prometheus.MustRegister(ChunksIndexedTotal)
	pipelineMetricsRegistered = true
}
