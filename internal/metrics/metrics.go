// Package metrics exposes Prometheus counters for the bridge. All
// observation methods are safe to call on a nil *Metrics, which keeps
// tests free of registry setup.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	platformFetches *prometheus.CounterVec
	postSyncs       *prometheus.CounterVec
	inboxActivities *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
}

// New creates a registry with the bridge counters plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		platformFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "platform_fetches_total",
			Help:      "Requests made to the source platform API.",
		}, []string{"kind", "result"}),
		postSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "post_syncs_total",
			Help:      "Post sync attempts by outcome.",
		}, []string{"outcome"}),
		inboxActivities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "inbox_activities_total",
			Help:      "Inbound activities by type and handling status.",
		}, []string{"type", "status"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "deliveries_total",
			Help:      "Outbound activity deliveries by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.platformFetches,
		m.postSyncs,
		m.inboxActivities,
		m.deliveries,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PlatformFetch counts one platform request; kind is "user" or "posts".
func (m *Metrics) PlatformFetch(kind string, err error) {
	if m == nil {
		return
	}
	m.platformFetches.WithLabelValues(kind, result(err)).Inc()
}

// PostSync counts one sync attempt by its outcome.
func (m *Metrics) PostSync(outcome string) {
	if m == nil {
		return
	}
	m.postSyncs.WithLabelValues(outcome).Inc()
}

// InboxActivity counts one inbound activity. The type comes from the
// remote sender, so anything but Follow and Undo is counted as "other".
func (m *Metrics) InboxActivity(activityType, status string) {
	if m == nil {
		return
	}
	m.inboxActivities.WithLabelValues(activityLabel(activityType), status).Inc()
}

func activityLabel(activityType string) string {
	switch activityType {
	case "Follow", "Undo":
		return activityType
	}
	return "other"
}

// Delivery counts one outbound delivery.
func (m *Metrics) Delivery(err error) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
