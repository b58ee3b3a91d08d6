package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
)

const (
	ProbeActive = "homepage"
	ProbeNews   = "updates"
)

// Prober fetches one page and reduces it to a ProbeResult. Failures are
// reported in the result, never as an error.
type Prober interface {
	Probe(ctx context.Context, name, url string) domain.ProbeResult
}

// Gatherer runs the two page probes concurrently and folds them into
// evidence.
type Gatherer struct {
	prober    Prober
	activeURL string
	newsURL   string
	logger    *slog.Logger
}

func NewGatherer(p Prober, activeURL, newsURL string, logger *slog.Logger) *Gatherer {
	return &Gatherer{prober: p, activeURL: activeURL, newsURL: newsURL, logger: logger}
}

// Gather probes both pages and returns the evidence as of now.
func (g *Gatherer) Gather(ctx context.Context, now time.Time) domain.EmergencyEvidence {
	var active, news domain.ProbeResult

	var eg errgroup.Group
	eg.Go(func() error {
		active = g.prober.Probe(ctx, ProbeActive, g.activeURL)
		return nil
	})
	eg.Go(func() error {
		news = g.prober.Probe(ctx, ProbeNews, g.newsURL)
		return nil
	})
	_ = eg.Wait() // probes report failure in their result

	ev := domain.GatherEvidence(active, news, now)
	g.logger.Debug("evidence gathered",
		"active", ev.Active,
		"declaration_date", ev.Date,
		"day_hint", ev.DayHint,
		"unavailable", ev.Unavailable,
		"sources", ev.Sources,
	)
	return ev
}
