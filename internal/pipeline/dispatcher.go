package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
	"github.com/couchcryptid/snow-emergency-monitor/internal/observability"
)

const (
	sendAttempts = 3
	sendTimeout  = 30 * time.Second
)

// Notifier delivers an alert to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert domain.Alert) error
}

// Dispatcher fans alerts out to every notifier without blocking the caller.
// Delivery failures are retried, then logged; they never feed back into
// reconciliation.
type Dispatcher struct {
	notifiers []Notifier
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	backoff   time.Duration
	wg        sync.WaitGroup
}

func NewDispatcher(logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		backoff:   200 * time.Millisecond,
	}
}

// Dispatch starts delivery of alert to every notifier and returns at once.
// Cancelling ctx after Dispatch returns does not abort delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, alert domain.Alert) {
	base := context.WithoutCancel(ctx)
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go func(n Notifier) {
			defer d.wg.Done()
			d.send(base, n, alert)
		}(n)
	}
}

// Wait blocks until every delivery started so far has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, n Notifier, alert domain.Alert) {
	backoff := d.backoff
	maxBackoff := 5 * time.Second

	for attempt := 1; ; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := n.Notify(sendCtx, alert)
		cancel()
		if err == nil {
			d.metrics.NotificationsSent.WithLabelValues(alert.Panel.Window.String()).Inc()
			d.logger.Info("alert delivered", "sink", n.Name(), "key", alert.Key, "attempt", attempt)
			return
		}
		if attempt >= sendAttempts {
			d.metrics.NotificationErrors.WithLabelValues(n.Name()).Inc()
			d.logger.Error("alert delivery failed", "sink", n.Name(), "key", alert.Key, "attempts", attempt, "error", err)
			return
		}
		d.logger.Warn("alert delivery failed, retrying", "sink", n.Name(), "attempt", attempt, "error", err)
		if !sleepWithContext(ctx, d.clock, backoff) {
			return
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// LogNotifier writes alerts to the structured log. It is always installed so
// an alert is visible even with no external sink configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Notify(_ context.Context, alert domain.Alert) error {
	l.logger.Info("snow emergency alert",
		"key", alert.Key,
		"window", alert.Panel.Window,
		"declaration_date", alert.Panel.Date,
		"estimated", alert.Panel.Estimated,
		"content", alert.Content,
	)
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
