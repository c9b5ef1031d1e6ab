package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RangeCollector bundles Prometheus metrics for the range server and
// provides a ready-to-serve /metrics handler.
type RangeCollector struct {
	gatherer prometheus.Gatherer

	Events         *prometheus.CounterVec
	EventDurations *prometheus.HistogramVec

	DefensiveScore   prometheus.Gauge
	Operators        prometheus.Gauge
	NodesCompromised prometheus.Gauge
	ScenarioActive   prometheus.Gauge
	ConnectedClients prometheus.Gauge
}

// NewRangeCollector registers range metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewRangeCollector(reg prometheus.Registerer) (*RangeCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "range_events_total",
		Help: "Total number of inbound operator events handled, labeled by event type.",
	}, []string{"event"})
	events, err := registerCounterVec(reg, events, "range_events_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "range_event_duration_seconds",
		Help:    "Inbound event handling latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"event"})
	durations, err = registerHistogramVec(reg, durations, "range_event_duration_seconds")
	if err != nil {
		return nil, err
	}

	score, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "range_defensive_score",
		Help: "Current shared defensive score.",
	}), "range_defensive_score")
	if err != nil {
		return nil, err
	}
	operators, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "range_operators",
		Help: "Number of operator handles currently joined.",
	}), "range_operators")
	if err != nil {
		return nil, err
	}
	compromised, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "range_nodes_compromised",
		Help: "Number of nodes currently in compromised status.",
	}), "range_nodes_compromised")
	if err != nil {
		return nil, err
	}
	scenario, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "range_scenario_active",
		Help: "Whether a scenario is currently active (0 or 1).",
	}), "range_scenario_active")
	if err != nil {
		return nil, err
	}
	clients, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "range_connected_clients",
		Help: "Number of live observer connections.",
	}), "range_connected_clients")
	if err != nil {
		return nil, err
	}

	return &RangeCollector{
		gatherer:         gatherer,
		Events:           events,
		EventDurations:   durations,
		DefensiveScore:   score,
		Operators:        operators,
		NodesCompromised: compromised,
		ScenarioActive:   scenario,
		ConnectedClients: clients,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RangeCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetRangeCounts satisfies the state metrics recorder interface so RangeState
// can drive the gauges directly from its mutators.
func (c *RangeCollector) SetRangeCounts(score, operators, compromised int, scenarioActive bool) {
	if c == nil {
		return
	}
	if c.DefensiveScore != nil {
		c.DefensiveScore.Set(float64(score))
	}
	if c.Operators != nil {
		c.Operators.Set(float64(operators))
	}
	if c.NodesCompromised != nil {
		c.NodesCompromised.Set(float64(compromised))
	}
	if c.ScenarioActive != nil {
		if scenarioActive {
			c.ScenarioActive.Set(1)
		} else {
			c.ScenarioActive.Set(0)
		}
	}
}

// IncEvent records one handled inbound event.
func (c *RangeCollector) IncEvent(event string) {
	if c == nil || c.Events == nil {
		return
	}
	c.Events.WithLabelValues(event).Inc()
}

// ObserveEvent records an inbound event handling duration.
func (c *RangeCollector) ObserveEvent(event string, d time.Duration) {
	if c == nil || c.EventDurations == nil {
		return
	}
	c.EventDurations.WithLabelValues(event).Observe(d.Seconds())
}

// SetConnectedClients updates the live-connection gauge.
func (c *RangeCollector) SetConnectedClients(n int) {
	if c == nil || c.ConnectedClients == nil {
		return
	}
	c.ConnectedClients.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
