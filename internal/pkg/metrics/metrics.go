// Package metrics expõe a instrumentação Prometheus do catálogo.
//
// O registro é privado ao serviço (não usa o DefaultRegisterer global), e o
// roteador publica o endpoint /metrics com Handler().
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gocatalog"

var (
	// RequestDuration mede a latência HTTP por método, rota e status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	VariantsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "variants",
		Name:      "created_total",
		Help:      "Variants created successfully.",
	})

	VariantFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "variants",
		Name:      "failures_total",
		Help:      "Variant creations that were rolled back, by operation.",
	}, []string{"operation"}) // "single" | "matrix"

	HierarchyCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hierarchy",
		Name:      "cycles_detected_total",
		Help:      "Hierarchy walks aborted because of a cycle or depth bound.",
	})

	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits.",
	}, []string{"entity"})

	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses.",
	}, []string{"entity"})
)

// Registry é o registro Prometheus usado pelo catálogo.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(
		RequestDuration,
		VariantsCreated,
		VariantFailures,
		HierarchyCycles,
		CacheHits,
		CacheMisses,
	)
}

// Handler devolve o handler HTTP do endpoint /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRequest registra a duração de uma requisição já concluída.
func ObserveRequest(method, route string, status int, started time.Time) {
	RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(time.Since(started).Seconds())
}
