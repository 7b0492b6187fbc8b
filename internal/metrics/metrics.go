// Package metrics defines the Prometheus collectors the bot exports on /metrics.
// Collectors live on a private registry so tests can build independent sets.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tripbot"

// Crawl failure stages.
const (
	StageGuilds  = "guilds"
	StageThreads = "threads"
	StagePins    = "pins"
	StageDecode  = "decode"
)

// Metrics holds every collector the bot updates.
type Metrics struct {
	registry *prometheus.Registry

	CrawlGuildsScanned  prometheus.Counter
	CrawlThreadsScanned prometheus.Counter
	CrawlTripsLoaded    prometheus.Counter
	CrawlFailures       *prometheus.CounterVec
	Commands            *prometheus.CounterVec
	SyncFailures        prometheus.Counter
	DetachedFailures    *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CrawlGuildsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_guilds_scanned_total",
			Help:      "Guilds visited by the recovery crawl.",
		}),
		CrawlThreadsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_threads_scanned_total",
			Help:      "Active threads visited by the recovery crawl.",
		}),
		CrawlTripsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_trips_loaded_total",
			Help:      "Trip records rebuilt from pinned messages.",
		}),
		CrawlFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_failures_total",
			Help:      "Recovery crawl failures by stage.",
		}, []string{"stage"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Slash commands handled, by command and outcome.",
		}, []string{"command", "outcome"}),
		SyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_failures_total",
			Help:      "Failed rewrites of an anchor message after a mutation.",
		}),
		DetachedFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detached_task_failures_total",
			Help:      "Background platform calls that failed, by task.",
		}, []string{"task"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CrawlGuildsScanned,
		m.CrawlThreadsScanned,
		m.CrawlTripsLoaded,
		m.CrawlFailures,
		m.Commands,
		m.SyncFailures,
		m.DetachedFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
