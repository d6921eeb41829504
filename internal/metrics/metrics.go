package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "webhook_activity"

// Metrics holds the service's collectors and the registry they are
// registered on.
type Metrics struct {
	Registry *prometheus.Registry

	WebhooksReceived *prometheus.CounterVec
	ActivitiesStored *prometheus.CounterVec
	StoreErrors      *prometheus.CounterVec
	PublishErrors    prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		WebhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Total number of webhook deliveries received, by X-GitHub-Event and outcome",
		}, []string{"event", "outcome"}),
		ActivitiesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_stored_total",
			Help:      "Total number of activity records stored, by action",
		}, []string{"action"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total number of failed store operations",
		}, []string{"operation"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of activity records that could not be published",
		}),
	}
	m.Registry.MustRegister(
		m.WebhooksReceived,
		m.ActivitiesStored,
		m.StoreErrors,
		m.PublishErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
