// Package metrics exports Prometheus statistics about operation calls.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "client"

// CallMetrics tracks calls, attempts and retries per operation.
type CallMetrics struct {
	mu sync.RWMutex

	operations map[string]*OperationStats

	callsTotal      *prometheus.CounterVec
	attemptsTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	throttlesTotal  *prometheus.CounterVec
	quotaRejections *prometheus.CounterVec
	inFlight        *prometheus.GaugeVec
	callDuration    *prometheus.HistogramVec
	attemptsPerCall *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// OperationStats holds the running totals of one operation.
type OperationStats struct {
	Calls           uint64        `json:"calls"`
	Failures        uint64        `json:"failures"`
	Attempts        uint64        `json:"attempts"`
	Retries         uint64        `json:"retries"`
	Throttles       uint64        `json:"throttles"`
	QuotaRejections uint64        `json:"quota_rejections"`
	LastDuration    time.Duration `json:"last_duration"`
	LastCallAt      time.Time     `json:"last_call_at"`
}

// Snapshot is a point-in-time copy of all operation stats.
type Snapshot struct {
	TotalCalls    uint64                     `json:"total_calls"`
	TotalFailures uint64                     `json:"total_failures"`
	Operations    map[string]*OperationStats `json:"operations"`
	CollectedAt   time.Time                  `json:"collected_at"`
}

func newCounterVec(namespace, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newGaugeVec(namespace, name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newHistogramVec(namespace, name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// New creates a collector under namespace. A nil registerer means the
// Prometheus default registerer.
func New(namespace string, registerer prometheus.Registerer) *CallMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "opflow"
	}
	op := []string{"service", "operation"}

	return &CallMetrics{
		operations:      make(map[string]*OperationStats),
		registerer:      registerer,
		callsTotal:      newCounterVec(namespace, "calls_total", "Total number of operation calls by outcome", []string{"service", "operation", "outcome"}),
		attemptsTotal:   newCounterVec(namespace, "attempts_total", "Total number of transmitted attempts", op),
		retriesTotal:    newCounterVec(namespace, "retries_total", "Total number of retried attempts", op),
		throttlesTotal:  newCounterVec(namespace, "throttles_total", "Total number of throttled attempts", op),
		quotaRejections: newCounterVec(namespace, "retry_quota_rejections_total", "Retries refused because the retry quota was empty", op),
		inFlight:        newGaugeVec(namespace, "calls_in_flight", "Operation calls currently executing", []string{"service"}),
		callDuration:    newHistogramVec(namespace, "call_duration_seconds", "End to end duration of operation calls", prometheus.DefBuckets, op),
		attemptsPerCall: newHistogramVec(namespace, "attempts_per_call", "Attempts needed per call", []float64{1, 2, 3, 5, 10}, op),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *CallMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.callsTotal,
		m.attemptsTotal,
		m.retriesTotal,
		m.throttlesTotal,
		m.quotaRejections,
		m.inFlight,
		m.callDuration,
		m.attemptsPerCall,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// CallStarted marks a call as in flight.
func (m *CallMetrics) CallStarted(service string) {
	m.inFlight.WithLabelValues(service).Inc()
}

// CallFinished records the outcome of a call. outcome is "success" or the
// error kind.
func (m *CallMetrics) CallFinished(service, operation, outcome string, attempts int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreate(operation)
	stats.Calls++
	if outcome != "success" {
		stats.Failures++
	}
	stats.LastDuration = d
	stats.LastCallAt = time.Now()

	m.inFlight.WithLabelValues(service).Dec()
	m.callsTotal.WithLabelValues(service, operation, outcome).Inc()
	m.callDuration.WithLabelValues(service, operation).Observe(d.Seconds())
	m.attemptsPerCall.WithLabelValues(service, operation).Observe(float64(attempts))
}

// AttemptStarted records one transmitted attempt.
func (m *CallMetrics) AttemptStarted(service, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(operation).Attempts++
	m.attemptsTotal.WithLabelValues(service, operation).Inc()
}

// RetryScheduled records a retry; throttled marks retries caused by
// throttling errors.
func (m *CallMetrics) RetryScheduled(service, operation string, throttled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreate(operation)
	stats.Retries++
	m.retriesTotal.WithLabelValues(service, operation).Inc()
	if throttled {
		stats.Throttles++
		m.throttlesTotal.WithLabelValues(service, operation).Inc()
	}
}

// QuotaRejected records a retry refused by the token bucket.
func (m *CallMetrics) QuotaRejected(service, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(operation).QuotaRejections++
	m.quotaRejections.WithLabelValues(service, operation).Inc()
}

// Snapshot returns a copy of the per-operation stats.
func (m *CallMetrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		Operations:  make(map[string]*OperationStats, len(m.operations)),
		CollectedAt: time.Now(),
	}
	for name, stats := range m.operations {
		cp := *stats
		snapshot.Operations[name] = &cp
		snapshot.TotalCalls += stats.Calls
		snapshot.TotalFailures += stats.Failures
	}
	return snapshot
}

// Operation returns a copy of the stats of one operation, or nil.
func (m *CallMetrics) Operation(name string) *OperationStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if stats, ok := m.operations[name]; ok {
		cp := *stats
		return &cp
	}
	return nil
}

func (m *CallMetrics) getOrCreate(operation string) *OperationStats {
	if stats, ok := m.operations[operation]; ok {
		return stats
	}
	stats := &OperationStats{}
	m.operations[operation] = stats
	return stats
}
