package obs

import (
	"sync/atomic"
	"time"

	"swapper/internal/adapter/enum"

	"github.com/prometheus/client_golang/prometheus"
)

// Cycle outcomes.
const (
	CycleActed    = "acted"
	CycleIdle     = "idle"
	CycleAnomaly  = "anomaly"
	CycleNoTick   = "no_tick"
	CycleFailed   = "failed"
	ActionPlace   = "place"
	ActionCancel  = "cancel"
	metricsPrefix = "quoter_"
)

// Metrics collects reconciliation counters and latency stats.
type Metrics struct {
	cycles         *prometheus.CounterVec
	actions        *prometheus.CounterVec
	cancelFailures prometheus.Counter
	restarts       prometheus.Counter
	journalDrops   prometheus.Counter
	cycleDuration  prometheus.Histogram

	cycleLatency   LatencyStats
	gatewayLatency LatencyStats
	restartCount   uint64
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the in-process stats for the exit log.
type Snapshot struct {
	Restarts       uint64
	CycleLatency   LatencySnapshot
	GatewayLatency LatencySnapshot
}

// NewMetrics creates the collectors and registers them when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "cycles_total",
			Help: "Reconciliation cycles by outcome",
		}, []string{"outcome"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "order_actions_total",
			Help: "Order actions issued to the exchange by kind and side",
		}, []string{"action", "side"}),
		cancelFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "cancel_failures_total",
			Help: "Cancel requests the exchange refused",
		}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "loop_restarts_total",
			Help: "Loop restarts after a transient timeout",
		}),
		journalDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "journal_drops_total",
			Help: "Journal entries dropped because the queue was full",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricsPrefix + "cycle_duration_seconds",
			Help:    "Wall time of one reconciliation cycle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.cycles, m.actions, m.cancelFailures, m.restarts, m.journalDrops, m.cycleDuration)
	}

	return m
}

// ObserveCycle records one cycle outcome and its duration.
func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.cycleLatency.Observe(d)
}

// Cycles returns the counter of one cycle outcome.
func (m *Metrics) Cycles(outcome string) prometheus.Counter {
	return m.cycles.WithLabelValues(outcome)
}

// ObserveAction records a completed order action and its gateway latency.
func (m *Metrics) ObserveAction(action string, side enum.OrderSide, d time.Duration) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, side.String()).Inc()
	m.gatewayLatency.Observe(d)
}

// IncCancelFailure records a cancel the exchange refused.
func (m *Metrics) IncCancelFailure() {
	if m == nil {
		return
	}
	m.cancelFailures.Inc()
}

// IncRestart records a supervisor restart.
func (m *Metrics) IncRestart() {
	if m == nil {
		return
	}
	m.restarts.Inc()
	atomic.AddUint64(&m.restartCount, 1)
}

// IncJournalDrop records a dropped journal entry.
func (m *Metrics) IncJournalDrop() {
	if m == nil {
		return
	}
	m.journalDrops.Inc()
}

// Snapshot returns a copy of the in-process stats.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Restarts:       atomic.LoadUint64(&m.restartCount),
		CycleLatency:   m.cycleLatency.Snapshot(),
		GatewayLatency: m.gatewayLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
