package pipeline_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
	"github.com/couchcryptid/snow-emergency-monitor/internal/pipeline"
)

func nov30(t *testing.T) domain.DeclarationDate {
	t.Helper()
	d, ok := domain.NewDeclarationDate(2025, time.November, 30)
	require.True(t, ok)
	return d
}

func TestMonitor_Check_NotifiesOncePerWindow(t *testing.T) {
	h := newHarness(t, pipeline.Options{}, nil)
	h.prober.set(declaredPages("Nov", "30")...)

	r := h.check(t)
	assert.True(t, r.Notified)
	assert.Equal(t, domain.WindowDeclaredPending, r.Window)
	assert.Equal(t, nov30(t), r.Date)
	assert.Equal(t, domain.DateSourceScraped, r.DateSource)
	assert.Equal(t, "2025-11-30/DECLARED_PENDING", r.AlertKey)

	r = h.check(t)
	assert.False(t, r.Notified, "same window must not alert twice")

	h.clock.Advance(7*time.Hour + 5*time.Minute)
	r = h.check(t)
	assert.True(t, r.Notified)
	assert.Equal(t, domain.WindowDay1, r.Window)

	alerts := h.notifier.received()
	require.Len(t, alerts, 2)
	assert.True(t, strings.HasPrefix(alerts[0].Content, "@here "))
	assert.False(t, alerts[0].Panel.Estimated)
	assert.Equal(t, "2025-11-30/DAY_1", alerts[1].Key)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.NotificationsSent.WithLabelValues("DAY_1")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(h.metrics.ChecksTotal.WithLabelValues(pipeline.TriggerManual)), 0)
	assert.InDelta(t, float64(domain.WindowDay1), testutil.ToFloat64(h.metrics.CurrentWindow), 0)
}

func TestMonitor_Check_TestModeSuppressesMention(t *testing.T) {
	h := newHarness(t, pipeline.Options{TestMode: true}, nil)
	h.prober.set(declaredPages("Nov", "30")...)

	r := h.check(t)
	require.True(t, r.Notified)

	alerts := h.notifier.received()
	require.Len(t, alerts, 1)
	assert.NotContains(t, alerts[0].Content, "@here")
}

func TestMonitor_Check_UnavailableLeavesStateAlone(t *testing.T) {
	h := newHarness(t, pipeline.Options{}, nil)
	h.prober.set(declaredPages("Nov", "30")...)
	h.check(t)
	before := h.monitor.Status()

	h.prober.set(down(pipeline.ProbeActive), down(pipeline.ProbeNews))
	h.clock.Advance(15 * time.Minute)
	r := h.check(t)

	assert.True(t, r.Unavailable)
	assert.True(t, r.Active)
	assert.False(t, r.Notified)
	after := h.monitor.Status()
	assert.Equal(t, before.Date, after.Date)
	assert.Equal(t, before.LastAlertKey, after.LastAlertKey)
	assert.Len(t, h.notifier.received(), 1)
	assert.Equal(t, "city website unavailable, state unchanged", r.Summary())
}

func TestMonitor_Check_EndedWithAllClear(t *testing.T) {
	tests := []struct {
		name       string
		allClear   bool
		wantAlerts int
	}{
		{"opted in", true, 2},
		{"default", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, pipeline.Options{NotifyAllClear: tt.allClear}, nil)
			h.prober.set(declaredPages("Nov", "30")...)
			h.check(t)

			h.prober.set(quietPages()...)
			h.clock.Advance(time.Hour)
			r := h.check(t)

			assert.True(t, r.Ended)
			assert.False(t, r.Active)
			assert.Equal(t, tt.allClear, r.Notified)

			alerts := h.notifier.received()
			require.Len(t, alerts, tt.wantAlerts)
			if tt.allClear {
				assert.True(t, alerts[1].Panel.AllClear)
			}
			assert.False(t, h.monitor.Status().Active)
			assert.Empty(t, h.monitor.Status().LastAlertKey)
		})
	}
}

func TestMonitor_Check_FallbackDateIsEstimated(t *testing.T) {
	h := newHarness(t, pipeline.Options{}, nil)
	h.prober.set(
		page(pipeline.ProbeActive, "A Snow Emergency is in effect.", nil),
		page(pipeline.ProbeNews, "Snow updates.", nil),
	)

	r := h.check(t)
	require.True(t, r.Notified)
	assert.Equal(t, domain.DateSourceFallback, r.DateSource)
	assert.Equal(t, nov30(t), r.Date)

	alerts := h.notifier.received()
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Panel.Estimated)
	assert.Contains(t, alerts[0].Panel.Text(), "Could not determine the declaration date")
}

func TestMonitor_Check_RestoresPersistedState(t *testing.T) {
	store := pipeline.NewMemoryStore()
	d := nov30(t)
	require.NoError(t, store.Save(context.Background(), domain.EmergencyState{
		Active:       true,
		Date:         d,
		DateSource:   domain.DateSourceScraped,
		LastAlertKey: domain.AlertKey(d, domain.WindowDeclaredPending),
	}))

	h := newHarness(t, pipeline.Options{}, store)
	h.prober.set(declaredPages("Nov", "30")...)

	r := h.check(t)
	assert.False(t, r.Notified, "restart must not repeat an alert already sent")
	assert.Empty(t, h.notifier.received())

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, d, saved.Date)
}

func TestMonitor_Check_StoreFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, pipeline.Options{}, failingStore{})
	h.prober.set(declaredPages("Nov", "30")...)

	r := h.check(t)
	assert.True(t, r.Notified)
	assert.True(t, h.monitor.Status().Active)
}

func TestMonitor_Check_CancelledContext(t *testing.T) {
	h := newHarness(t, pipeline.Options{}, nil)
	h.prober.set(declaredPages("Nov", "30")...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.monitor.Check(ctx, pipeline.TriggerManual)
	require.Error(t, err)
	assert.Empty(t, h.notifier.received())
	assert.Error(t, h.monitor.CheckReadiness(context.Background()))
}

func TestMonitor_Check_ConcurrentTriggersSerialized(t *testing.T) {
	h := newHarness(t, pipeline.Options{}, nil)
	h.prober.set(declaredPages("Nov", "30")...)
	entered, release := h.prober.hold()

	reports := make(chan pipeline.Report, 2)
	var wg sync.WaitGroup
	for _, trigger := range []string{pipeline.TriggerScheduled, pipeline.TriggerManual} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := h.monitor.Check(context.Background(), trigger)
			assert.NoError(t, err)
			reports <- r
		}()
	}

	// Both probes of the first check are in flight; the second check must
	// still be waiting for it.
	<-entered
	<-entered
	select {
	case name := <-entered:
		t.Fatalf("second check probed %q while the first was running", name)
	case <-time.After(50 * time.Millisecond):
	}

	release()
	wg.Wait()
	close(reports)
	h.dispatcher.Wait()

	notified := 0
	for r := range reports {
		if r.Notified {
			notified++
		}
	}
	assert.Equal(t, 1, notified)
	require.Len(t, h.notifier.received(), 1)
	assert.Equal(t, "2025-11-30/DECLARED_PENDING", h.notifier.received()[0].Key)
	assert.Equal(t, "2025-11-30/DECLARED_PENDING", h.monitor.Status().LastAlertKey)
	assert.Equal(t, 4, h.prober.callCount())
}

func TestMonitor_CheckReadiness(t *testing.T) {
	h := newHarness(t, pipeline.Options{}, nil)
	h.prober.set(quietPages()...)

	require.Error(t, h.monitor.CheckReadiness(context.Background()))
	h.check(t)
	require.NoError(t, h.monitor.CheckReadiness(context.Background()))
}

func TestMonitor_CheckReadiness_StoreUnreachable(t *testing.T) {
	h := newHarness(t, pipeline.Options{}, unreachableStore{pipeline.NewMemoryStore()})
	h.prober.set(quietPages()...)
	h.check(t)

	err := h.monitor.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state store unreachable")
}

func TestMonitor_Status(t *testing.T) {
	h := newHarness(t, pipeline.Options{}, nil)
	h.prober.set(declaredPages("Nov", "30")...)
	r := h.check(t)

	st := h.monitor.Status()
	want := pipeline.Status{
		Ready:        true,
		Active:       true,
		Window:       domain.WindowDeclaredPending,
		Date:         nov30(t),
		DateSource:   domain.DateSourceScraped,
		LastAlertKey: "2025-11-30/DECLARED_PENDING",
	}
	got := st
	got.UpdatedAt = time.Time{}
	got.LastCheck = nil
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, st.LastCheck)
	assert.Equal(t, r.AlertKey, st.LastCheck.AlertKey)
}

func TestMonitor_Run_ChecksOnSchedule(t *testing.T) {
	h := newHarness(t, pipeline.Options{Interval: 15 * time.Minute}, nil)
	h.prober.set(quietPages()...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.monitor.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, h.clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, 2, h.prober.callCount(), "one check runs before the first tick")
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.MonitorRunning), 0)

	h.clock.Advance(15 * time.Minute)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.ChecksTotal.WithLabelValues(pipeline.TriggerScheduled)) == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 4, h.prober.callCount())

	cancel()
	require.NoError(t, <-done)
	assert.InDelta(t, 0, testutil.ToFloat64(h.metrics.MonitorRunning), 0)
}

func TestReport_Summary(t *testing.T) {
	r := pipeline.Report{Active: true, Date: nov30(t), DateSource: domain.DateSourceScraped, Window: domain.WindowDay2, Notified: true}
	assert.Equal(t, "snow emergency declared November 30, 2025 (scraped): Day 2, alert sent", r.Summary())
	assert.Equal(t, "no snow emergency in effect", pipeline.Report{}.Summary())
}
