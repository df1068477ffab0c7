// Package kmetrics exposes live occupancy and activity counters for the
// PID table and open-file table via prometheus client_golang, the
// observability stack gcsfuse wires up for its own mount-level metrics.
package kmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the gauges/counters this module emits. A nil *Metrics is
// valid and every method on it is a no-op, so components can unconditionally
// call into it without a reference to whether metrics were configured.
type Metrics struct {
	pidOccupancy  prometheus.Gauge
	fileOccupancy prometheus.Gauge
	zombiesReaped prometheus.Counter
	syscallsTotal *prometheus.CounterVec
}

// New registers a fresh set of collectors against reg and returns the
// handle used to update them. Pass a new prometheus.Registry per Kernel in
// tests to avoid duplicate-registration panics across test cases.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pidOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "osk",
			Subsystem: "pidtable",
			Name:      "occupancy",
			Help:      "Number of PID table slots holding an entry, including reaped slots not yet reused.",
		}),
		fileOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "osk",
			Subsystem: "openfiletable",
			Name:      "occupancy",
			Help:      "Number of live open-file table slots.",
		}),
		zombiesReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osk",
			Subsystem: "pidtable",
			Name:      "zombies_reaped_total",
			Help:      "Number of zombie PID entries consumed by wait.",
		}),
		syscallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osk",
			Name:      "syscalls_total",
			Help:      "Syscall invocations by name and result.",
		}, []string{"syscall", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.pidOccupancy, m.fileOccupancy, m.zombiesReaped, m.syscallsTotal)
	}
	return m
}

func (m *Metrics) PidTableOccupancy(n int) {
	if m == nil {
		return
	}
	m.pidOccupancy.Set(float64(n))
}

func (m *Metrics) PidZombieReaped() {
	if m == nil {
		return
	}
	m.zombiesReaped.Inc()
}

func (m *Metrics) OpenFileTableOccupancy(n int) {
	if m == nil {
		return
	}
	m.fileOccupancy.Set(float64(n))
}

// Syscall records the outcome ("ok" or an errno name) of one syscall
// invocation.
func (m *Metrics) Syscall(name, result string) {
	if m == nil {
		return
	}
	m.syscallsTotal.WithLabelValues(name, result).Inc()
}
