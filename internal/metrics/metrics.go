package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// Tracking groups the domain collectors of the tracking service.
// A nil *Tracking is valid and records nothing.
type Tracking struct {
	SamplesTotal        *prometheus.CounterVec
	TransitionsTotal    *prometheus.CounterVec
	EventsDroppedTotal  prometheus.Counter
	Subscribers         prometheus.Gauge
	EventsMirroredTotal *prometheus.CounterVec
}

// NewTracking creates unregistered tracking collectors.
func NewTracking() *Tracking {
	return &Tracking{
		SamplesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracking_samples_total",
			Help: "Location samples handled by ingestion, by result",
		}, []string{"result"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracking_transitions_total",
			Help: "Shipment status transitions, by target status and result",
		}, []string{"status", "result"}),
		EventsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distributor_events_dropped_total",
			Help: "Events dropped from full subscriber queues",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "distributor_subscribers",
			Help: "Active event subscriptions",
		}),
		EventsMirroredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_mirrored_total",
			Help: "Shipment events produced to Kafka, by result",
		}, []string{"result"}),
	}
}

// Collectors returns every collector for registration.
func (t *Tracking) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		t.SamplesTotal, t.TransitionsTotal, t.EventsDroppedTotal, t.Subscribers, t.EventsMirroredTotal,
	}
}

// Sample counts one ingestion outcome.
func (t *Tracking) Sample(result string) {
	if t == nil {
		return
	}
	t.SamplesTotal.WithLabelValues(result).Inc()
}

// Transition counts one transition outcome.
func (t *Tracking) Transition(status, result string) {
	if t == nil {
		return
	}
	t.TransitionsTotal.WithLabelValues(status, result).Inc()
}

// Dropped counts events dropped from a subscriber queue.
func (t *Tracking) Dropped(n int) {
	if t == nil || n <= 0 {
		return
	}
	t.EventsDroppedTotal.Add(float64(n))
}

// SubscriberDelta moves the subscriber gauge.
func (t *Tracking) SubscriberDelta(d int) {
	if t == nil {
		return
	}
	t.Subscribers.Add(float64(d))
}

// Mirrored counts one produced event outcome.
func (t *Tracking) Mirrored(result string) {
	if t == nil {
		return
	}
	t.EventsMirroredTotal.WithLabelValues(result).Inc()
}
