package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
	"github.com/couchcryptid/snow-emergency-monitor/internal/observability"
	"github.com/couchcryptid/snow-emergency-monitor/internal/pipeline"
)

// --- mocks ---

type fakeProber struct {
	mu      sync.Mutex
	results map[string]domain.ProbeResult
	calls   int

	entered chan string
	gate    chan struct{}
}

func newFakeProber() *fakeProber {
	return &fakeProber{results: make(map[string]domain.ProbeResult)}
}

func (f *fakeProber) set(results ...domain.ProbeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		f.results[r.Name] = r
	}
}

// hold makes every Probe report on entered and then block until release.
func (f *fakeProber) hold() (entered <-chan string, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered = make(chan string, 16)
	f.gate = make(chan struct{})
	gate := f.gate
	return f.entered, func() { close(gate) }
}

func (f *fakeProber) Probe(_ context.Context, name, url string) domain.ProbeResult {
	f.mu.Lock()
	entered, gate := f.entered, f.gate
	f.mu.Unlock()
	if gate != nil {
		entered <- name
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	r, ok := f.results[name]
	if !ok {
		return domain.ProbeResult{Name: name, URL: url, Err: errors.New("no fixture")}
	}
	r.URL = url
	return r
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(_ context.Context, alert domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *recordingNotifier) received() []domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Alert(nil), r.alerts...)
}

type failingStore struct{}

func (failingStore) Load(context.Context) (domain.EmergencyState, error) {
	return domain.EmergencyState{}, errors.New("disk on fire")
}

func (failingStore) Save(context.Context, domain.EmergencyState) error {
	return errors.New("disk on fire")
}

type unreachableStore struct {
	*pipeline.MemoryStore
}

func (unreachableStore) Ping(context.Context) error {
	return errors.New("database is locked")
}

// --- fixtures ---

func page(name, text string, frag *domain.DateFragment) domain.ProbeResult {
	return domain.ProbeResult{Name: name, OK: true, StatusCode: 200, Text: text, Fragment: frag}
}

func down(name string) domain.ProbeResult {
	return domain.ProbeResult{Name: name, StatusCode: 503, Err: errors.New("status 503")}
}

func declaredPages(month, day string) []domain.ProbeResult {
	return []domain.ProbeResult{
		page(pipeline.ProbeActive, "Snow Emergency declared. Learn the parking rules.", nil),
		page(pipeline.ProbeNews, "Snow updates. A Snow Emergency has been declared.", &domain.DateFragment{Month: month, Day: day}),
	}
}

func quietPages() []domain.ProbeResult {
	return []domain.ProbeResult{
		page(pipeline.ProbeActive, "Welcome to the City of Minneapolis.", nil),
		page(pipeline.ProbeNews, "Winter parking information and plowing updates.", nil),
	}
}

type harness struct {
	monitor    *pipeline.Monitor
	prober     *fakeProber
	notifier   *recordingNotifier
	dispatcher *pipeline.Dispatcher
	store      pipeline.StateStore
	clock      *clockwork.FakeClock
	metrics    *observability.Metrics
	loc        *time.Location
}

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func newHarness(t *testing.T, opts pipeline.Options, store pipeline.StateStore) *harness {
	t.Helper()
	loc := chicago(t)
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.November, 30, 14, 0, 0, 0, loc))
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(nil) })

	if opts.Interval == 0 {
		opts.Interval = 15 * time.Minute
	}
	if store == nil {
		store = pipeline.NewMemoryStore()
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	prober := newFakeProber()
	notifier := &recordingNotifier{}
	dispatcher := pipeline.NewDispatcher(logger, metrics, clock, notifier)
	gatherer := pipeline.NewGatherer(prober, "https://city.test/", "https://city.test/updates", logger)
	machine := domain.NewStateMachine(domain.NewCalendar(loc))

	h := &harness{
		monitor:    pipeline.New(gatherer, machine, dispatcher, store, clock, logger, metrics, opts),
		prober:     prober,
		notifier:   notifier,
		dispatcher: dispatcher,
		store:      store,
		clock:      clock,
		metrics:    metrics,
		loc:        loc,
	}
	t.Cleanup(dispatcher.Wait)
	return h
}

func (h *harness) check(t *testing.T) pipeline.Report {
	t.Helper()
	r, err := h.monitor.Check(context.Background(), pipeline.TriggerManual)
	require.NoError(t, err)
	h.dispatcher.Wait()
	return r
}
