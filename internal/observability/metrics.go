package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the monitor.
type Metrics struct {
	ChecksTotal     *prometheus.CounterVec // labels: trigger={scheduled,manual}
	CheckDuration   prometheus.Histogram
	MonitorRunning  prometheus.Gauge
	EmergencyActive prometheus.Gauge
	CurrentWindow   prometheus.Gauge // DayWindow ordinal, 0 = none

	// Probe metrics.
	ProbeRequests *prometheus.CounterVec   // labels: probe, outcome={success,error,status}
	ProbeDuration *prometheus.HistogramVec // labels: probe

	// Notification metrics.
	NotificationsSent  *prometheus.CounterVec // labels: window
	NotificationErrors *prometheus.CounterVec // labels: sink
	StaleDatesReplaced prometheus.Counter
}

// NewMetrics creates and registers all monitor metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates the monitor metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.ChecksTotal,
		m.CheckDuration,
		m.MonitorRunning,
		m.EmergencyActive,
		m.CurrentWindow,
		m.ProbeRequests,
		m.ProbeDuration,
		m.NotificationsSent,
		m.NotificationErrors,
		m.StaleDatesReplaced,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snow_monitor",
			Name:      "checks_total",
			Help:      "Completed emergency checks by trigger.",
		}, []string{"trigger"}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "snow_monitor",
			Name:      "check_duration_seconds",
			Help:      "Duration of a complete gather-reconcile-notify cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		MonitorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "snow_monitor",
			Name:      "monitor_running",
			Help:      "1 when the scheduled monitor loop is active, 0 when shut down.",
		}),
		EmergencyActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "snow_monitor",
			Name:      "emergency_active",
			Help:      "1 while a snow emergency is believed to be in effect.",
		}),
		CurrentWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "snow_monitor",
			Name:      "current_window",
			Help:      "Active rule window: 0 none, 1 declared, 2-4 day 1-3.",
		}),
		ProbeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snow_monitor",
			Name:      "probe_requests_total",
			Help:      "Page probes by name and outcome.",
		}, []string{"probe", "outcome"}),
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "snow_monitor",
			Name:      "probe_duration_seconds",
			Help:      "Page fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"probe"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snow_monitor",
			Name:      "notifications_sent_total",
			Help:      "Alerts dispatched by rule window.",
		}, []string{"window"}),
		NotificationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snow_monitor",
			Name:      "notification_errors_total",
			Help:      "Failed deliveries by sink.",
		}, []string{"sink"}),
		StaleDatesReplaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snow_monitor",
			Name:      "stale_dates_replaced_total",
			Help:      "Declaration dates discarded because their cycle had already ended.",
		}),
	}
}
