// internal/telemetry/telemetry.go
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus instruments on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	syncRuns    *prometheus.CounterVec
	reposSynced prometheus.Counter
	storeErrors *prometheus.CounterVec
	fetchesDeg  *prometheus.CounterVec
}

// New creates the metrics set with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "github_api_requests_total",
			Help: "GitHub API requests by resource and outcome.",
		}, []string{"resource", "outcome"}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "github_sync_runs_total",
			Help: "Completed sync runs by result.",
		}, []string{"result"}),
		reposSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "github_repos_synced_total",
			Help: "Repositories imported across all sync runs.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "github_store_errors_total",
			Help: "Storage write failures by operation.",
		}, []string{"operation"}),
		fetchesDeg: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "github_degraded_fetches_total",
			Help: "Metric sub-fetches degraded to empty results, by data class.",
		}, []string{"class"}),
	}

	registry.MustRegister(m.apiRequests, m.syncRuns, m.reposSynced, m.storeErrors, m.fetchesDeg)
	return m
}

// ObserveAPIRequest records one GitHub API call.
func (m *Metrics) ObserveAPIRequest(resource string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.apiRequests.WithLabelValues(resource, outcome).Inc()
}

// ObserveSyncRun records the result of one sync run.
func (m *Metrics) ObserveSyncRun(result string) {
	m.syncRuns.WithLabelValues(result).Inc()
}

// AddReposSynced records repositories imported by a sync run.
func (m *Metrics) AddReposSynced(n int) {
	m.reposSynced.Add(float64(n))
}

// ObserveStoreError records a failed storage write.
func (m *Metrics) ObserveStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

// ObserveDegradedFetch records a sub-fetch that fell back to empty data.
func (m *Metrics) ObserveDegradedFetch(class string) {
	m.fetchesDeg.WithLabelValues(class).Inc()
}

// Handler exposes the registry in prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
