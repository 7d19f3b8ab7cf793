package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/workerservice/pkg/lifecycle"
)

// Prometheus implements Recorder with Prometheus collectors.
//
// All metrics use the workerservice_ prefix.
type Prometheus struct {
	// TicksTotal counts tick invocations by unit and result
	TicksTotal *prometheus.CounterVec

	// TickDuration tracks tick latency distribution
	TickDuration *prometheus.HistogramVec

	// UnitState holds the numeric lifecycle.State of each unit
	UnitState *prometheus.GaugeVec
}

// NewPrometheus creates the collectors and registers them with reg.
// Panics if registration fails (expected during initialization only).
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		TicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workerservice_ticks_total",
				Help: "Total tick invocations by unit and result",
			},
			[]string{"unit", "result"},
		),
		TickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workerservice_tick_duration_seconds",
				Help:    "Tick duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"unit"},
		),
		UnitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "workerservice_unit_state",
				Help: "Current lifecycle state per unit (0=Created 1=Starting 2=Running 3=Stopping 4=Stopped 5=Faulted)",
			},
			[]string{"unit"},
		),
	}

	if reg != nil {
		reg.MustRegister(p.TicksTotal, p.TickDuration, p.UnitState)
	}
	return p
}

// ObserveTick implements Recorder.
func (p *Prometheus) ObserveTick(unit, result string, duration time.Duration) {
	p.TicksTotal.WithLabelValues(unit, result).Inc()
	p.TickDuration.WithLabelValues(unit).Observe(duration.Seconds())
}

// SetState implements Recorder.
func (p *Prometheus) SetState(unit string, state lifecycle.State) {
	p.UnitState.WithLabelValues(unit).Set(float64(state))
}
