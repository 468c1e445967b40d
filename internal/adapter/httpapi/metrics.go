package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thesearch/internal/domain"
)

// Query outcomes recorded in thesearch_queries_total.
const (
	outcomeOK          = "ok"
	outcomeReplay      = "replay"
	outcomeSearchError = "search_error"
	outcomeLLMError    = "completion_error"
	outcomeStreamError = "stream_error"
	outcomeBadRequest  = "bad_request"
)

// Metrics holds the service's Prometheus collectors. It implements
// rag.Observer so the engine can report into it.
type Metrics struct {
	registry *prometheus.Registry

	queries        *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	searchErrors   *prometheus.CounterVec
	related        *prometheus.CounterVec
	tokens         prometheus.Counter
	storeHits      prometheus.Counter
}

// NewMetrics registers the collectors on reg. A nil reg gets a fresh
// registry so tests never share state.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thesearch",
			Name:      "queries_total",
			Help:      "Total number of /query requests by outcome",
		}, []string{"outcome"}),
		searchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "thesearch",
			Name:      "search_duration_seconds",
			Help:      "Duration of search backend calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		searchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thesearch",
			Name:      "search_errors_total",
			Help:      "Total number of failed search backend calls",
		}, []string{"backend", "code"}),
		related: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thesearch",
			Name:      "related_questions_total",
			Help:      "Related question generations by outcome",
		}, []string{"outcome"}),
		tokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: "thesearch",
			Name:      "stream_tokens_total",
			Help:      "Total number of answer chunks streamed to clients",
		}),
		storeHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "thesearch",
			Name:      "store_hits_total",
			Help:      "Total number of answers replayed from the result store",
		}),
	}
}

func (m *Metrics) ObserveSearch(backend string, elapsed time.Duration, err error) {
	m.searchDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
	if err != nil {
		m.searchErrors.WithLabelValues(backend, string(domain.ErrorCodeOf(err))).Inc()
	}
}

func (m *Metrics) ObserveTokens(n int) { m.tokens.Add(float64(n)) }

func (m *Metrics) ObserveRelated(outcome string) { m.related.WithLabelValues(outcome).Inc() }

func (m *Metrics) observeQuery(outcome string) { m.queries.WithLabelValues(outcome).Inc() }

func (m *Metrics) observeStoreHit() { m.storeHits.Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
