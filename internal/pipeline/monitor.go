package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
	"github.com/couchcryptid/snow-emergency-monitor/internal/observability"
)

const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Options are the behavioural switches of a Monitor.
type Options struct {
	Interval time.Duration
	// TestMode drops the @here mention from alerts. Reconciliation is
	// unaffected.
	TestMode       bool
	NotifyAllClear bool
}

// Report describes the outcome of one check.
type Report struct {
	Trigger     string                 `json:"trigger"`
	CheckedAt   time.Time              `json:"checked_at"`
	Unavailable bool                   `json:"unavailable,omitempty"`
	Active      bool                   `json:"active"`
	Window      domain.DayWindow       `json:"window"`
	Date        domain.DeclarationDate `json:"declaration_date"`
	DateSource  domain.DateSource      `json:"date_source,omitempty"`
	Sources     []string               `json:"sources,omitempty"`
	AlertKey    string                 `json:"alert_key,omitempty"`
	Replaced    bool                   `json:"replaced,omitempty"`
	Ended       bool                   `json:"ended,omitempty"`
	Notified    bool                   `json:"notified"`
	Alert       *domain.Alert          `json:"alert,omitempty"`
}

// Summary is a one-line rendering for logs and the CLI.
func (r Report) Summary() string {
	switch {
	case r.Unavailable:
		return "city website unavailable, state unchanged"
	case !r.Active:
		return "no snow emergency in effect"
	}
	s := fmt.Sprintf("snow emergency declared %s (%s): %s", r.Date.Display(), r.DateSource, r.Window.Label())
	if r.Notified {
		s += ", alert sent"
	}
	return s
}

// Status is a snapshot of the monitor for the status endpoint.
type Status struct {
	Ready        bool                   `json:"ready"`
	Active       bool                   `json:"active"`
	Window       domain.DayWindow       `json:"window"`
	Date         domain.DeclarationDate `json:"declaration_date"`
	DateSource   domain.DateSource      `json:"date_source,omitempty"`
	LastAlertKey string                 `json:"last_alert_key,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at"`
	LastCheck    *Report                `json:"last_check,omitempty"`
}

// Monitor owns the EmergencyState and runs the gather-reconcile-notify cycle.
type Monitor struct {
	gatherer   *Gatherer
	machine    *domain.StateMachine
	dispatcher *Dispatcher
	store      StateStore
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
	opts       Options

	// checkMu serializes checks; mu guards the snapshot fields below.
	checkMu sync.Mutex
	loaded  bool

	mu    sync.RWMutex
	state domain.EmergencyState
	last  *Report

	ready atomic.Bool
}

// New creates a Monitor with the given collaborators and observability.
func New(g *Gatherer, machine *domain.StateMachine, d *Dispatcher, store StateStore, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Monitor {
	return &Monitor{
		gatherer:   g,
		machine:    machine,
		dispatcher: d,
		store:      store,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
		opts:       opts,
	}
}

// CheckReadiness returns nil once the first check has completed and the
// state store, if it can be pinged, is reachable.
func (m *Monitor) CheckReadiness(ctx context.Context) error {
	if !m.ready.Load() {
		return errors.New("monitor has not completed a check yet")
	}
	if p, ok := m.store.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("state store unreachable: %w", err)
		}
	}
	return nil
}

// Run checks immediately, then once per interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started", "interval", m.opts.Interval, "test_mode", m.opts.TestMode)
	m.metrics.MonitorRunning.Set(1)
	defer m.metrics.MonitorRunning.Set(0)

	m.runCheck(ctx, TriggerScheduled)

	ticker := m.clock.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			m.runCheck(ctx, TriggerScheduled)
		}
	}
}

func (m *Monitor) runCheck(ctx context.Context, trigger string) {
	if _, err := m.Check(ctx, trigger); err != nil && ctx.Err() == nil {
		m.logger.Error("check failed", "trigger", trigger, "error", err)
	}
}

// Check runs one full cycle. Concurrent calls are serialized.
func (m *Monitor) Check(ctx context.Context, trigger string) (Report, error) {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	start := m.clock.Now()
	m.loadState(ctx)

	cal := m.machine.Calendar()
	now := start.In(cal.Location())

	ev := m.gatherer.Gather(ctx, now)
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("check interrupted: %w", err)
	}

	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()

	res := m.machine.Reconcile(&state, ev, now)

	report := Report{
		Trigger:     trigger,
		CheckedAt:   now,
		Unavailable: res.Unavailable,
		Active:      res.Active,
		Window:      res.Window,
		Date:        res.Date,
		DateSource:  res.DateSource,
		Sources:     ev.Sources,
		AlertKey:    res.AlertKey,
		Replaced:    res.Replaced,
		Ended:       res.Ended,
	}

	if alert, ok := m.alertFor(cal, res, now); ok {
		report.Alert = &alert
		report.Notified = true
		m.dispatcher.Dispatch(ctx, alert)
	}

	if !res.Unavailable {
		if err := m.store.Save(ctx, state); err != nil {
			m.logger.Error("save state failed", "error", err)
		}
	}

	m.mu.Lock()
	m.state = state
	m.last = &report
	m.mu.Unlock()

	m.observe(trigger, start, res)
	m.logCheck(report, res)
	m.ready.Store(true)
	return report, nil
}

// Status returns the current state and the last check's report.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Ready:        m.ready.Load(),
		Active:       m.state.Active,
		Date:         m.state.Date,
		DateSource:   m.state.DateSource,
		LastAlertKey: m.state.LastAlertKey,
		UpdatedAt:    m.state.UpdatedAt,
		LastCheck:    m.last,
	}
	if st.Active {
		st.Window = m.machine.Calendar().WindowFor(st.Date, m.clock.Now())
	}
	return st
}

// loadState restores persisted state before the first check.
func (m *Monitor) loadState(ctx context.Context) {
	if m.loaded {
		return
	}
	st, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("load state failed, starting empty", "error", err)
		st = domain.EmergencyState{}
	} else if st.Active {
		m.logger.Info("restored emergency state", "declaration_date", st.Date, "last_alert_key", st.LastAlertKey)
	}
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	m.loaded = true
}

func (m *Monitor) alertFor(cal domain.Calendar, res domain.ReconciliationResult, now time.Time) (domain.Alert, bool) {
	switch {
	case res.ShouldNotify:
		n := domain.Compose(cal, res.Window, res.Date, now)
		n.Estimated = !res.DateSource.Authoritative()
		return domain.NewAlert(res.AlertKey, n, m.mention()), true
	case res.Ended && m.opts.NotifyAllClear:
		return domain.NewAlert("", domain.ComposeAllClear(now), m.mention()), true
	default:
		return domain.Alert{}, false
	}
}

func (m *Monitor) mention() string {
	if m.opts.TestMode {
		return ""
	}
	return "@here"
}

func (m *Monitor) observe(trigger string, start time.Time, res domain.ReconciliationResult) {
	m.metrics.ChecksTotal.WithLabelValues(trigger).Inc()
	m.metrics.CheckDuration.Observe(m.clock.Since(start).Seconds())
	if res.Unavailable {
		return
	}
	active := 0.0
	if res.Active {
		active = 1
	}
	m.metrics.EmergencyActive.Set(active)
	m.metrics.CurrentWindow.Set(float64(res.Window))
	if res.Replaced {
		m.metrics.StaleDatesReplaced.Inc()
	}
}

func (m *Monitor) logCheck(r Report, res domain.ReconciliationResult) {
	if !res.IgnoredDate.IsZero() {
		m.logger.Info("scraped date differs from live declaration, keeping live date",
			"scraped", res.IgnoredDate, "declaration_date", res.Date)
	}
	if res.Replaced {
		m.logger.Warn("declaration date already expired, using today", "declaration_date", res.Date)
	}
	if res.Unavailable {
		m.logger.Warn("no probe could be read, state unchanged", "trigger", r.Trigger)
		return
	}
	m.logger.Info("check complete",
		"trigger", r.Trigger,
		"active", r.Active,
		"window", r.Window,
		"declaration_date", r.Date,
		"date_source", r.DateSource,
		"notified", r.Notified,
	)
}
