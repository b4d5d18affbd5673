package wikitrivia

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for generation runs. Registered on the default
// registry and exposed by the webserver's /metrics endpoint.
var (
	metricSparqlQueries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wikitrivia_sparql_queries_total",
		Help: "Total SPARQL queries issued against the knowledge graph",
	})
	metricSparqlErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wikitrivia_sparql_errors_total",
		Help: "Total SPARQL queries that failed",
	})
	metricQuestionsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wikitrivia_questions_generated_total",
		Help: "Questions generated per category",
	}, []string{"category"})
	metricEntitiesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wikitrivia_entities_rejected_total",
		Help: "Entities rejected during synthesis, by category and stage",
	}, []string{"category", "stage"})
	metricBatchSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wikitrivia_batch_questions",
		Help: "Size of the most recently generated question batch",
	})
)

func init() {
	prometheus.MustRegister(
		metricSparqlQueries,
		metricSparqlErrors,
		metricQuestionsGenerated,
		metricEntitiesRejected,
		metricBatchSize,
	)
}
