package domain

import "time"

// DateSource records how the canonical declaration date was chosen.
type DateSource string

const (
	DateSourceNone     DateSource = ""
	DateSourceScraped  DateSource = "scraped"
	DateSourceDayHint  DateSource = "day-hint"
	DateSourceFallback DateSource = "fallback"
)

// Authoritative reports whether the date came from a page rather than a guess.
func (s DateSource) Authoritative() bool { return s == DateSourceScraped }

// EmergencyState is the process-wide view of the current emergency. It is
// owned by one StateMachine caller and mutated only through Reconcile.
type EmergencyState struct {
	Active       bool            `json:"active"`
	Date         DeclarationDate `json:"declaration_date"`
	DateSource   DateSource      `json:"date_source,omitempty"`
	LastAlertKey string          `json:"last_alert_key,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Reset returns the state to "no emergency".
func (s *EmergencyState) Reset() {
	*s = EmergencyState{UpdatedAt: s.UpdatedAt}
}

// ReconciliationResult is the outcome of folding one check's evidence into
// the state.
type ReconciliationResult struct {
	ShouldNotify bool
	Active       bool
	Window       DayWindow
	Date         DeclarationDate
	DateSource   DateSource
	AlertKey     string
	// Replaced is set when the candidate date had already run its full
	// cycle and today's date was substituted.
	Replaced bool
	// Ended is set on an active -> inactive transition.
	Ended bool
	// Unavailable mirrors the evidence: no probe could be read and the
	// state was left untouched.
	Unavailable bool
	// IgnoredDate is a scraped date that disagreed with the live one.
	IgnoredDate DeclarationDate
}

// AlertKey identifies a notifiable (declaration date, window) pair.
func AlertKey(d DeclarationDate, w DayWindow) string {
	return d.String() + "/" + w.String()
}

// StateMachine applies the reconciliation policy. It performs no I/O.
type StateMachine struct {
	cal Calendar
}

func NewStateMachine(cal Calendar) *StateMachine {
	return &StateMachine{cal: cal}
}

func (m *StateMachine) Calendar() Calendar { return m.cal }

// Reconcile folds ev into state at instant now and reports whether a new
// notification is due.
func (m *StateMachine) Reconcile(state *EmergencyState, ev EmergencyEvidence, now time.Time) ReconciliationResult {
	if ev.Unavailable {
		res := ReconciliationResult{
			Active:      state.Active,
			Date:        state.Date,
			DateSource:  state.DateSource,
			Unavailable: true,
		}
		if state.Active {
			res.Window = m.cal.WindowFor(state.Date, now)
		}
		return res
	}

	if !ev.Active {
		wasActive := state.Active
		state.Reset()
		state.UpdatedAt = clock.Now()
		return ReconciliationResult{Ended: wasActive}
	}

	var res ReconciliationResult
	candidate, source := m.candidate(state, ev, now)
	if !ev.Date.IsZero() && candidate != ev.Date {
		res.IgnoredDate = ev.Date
	}

	window := m.cal.WindowFor(candidate, now)
	if window == WindowNone && m.cal.Expired(candidate, now) {
		candidate, source = m.cal.Today(now), DateSourceFallback
		window = m.cal.WindowFor(candidate, now)
		res.Replaced = true
	}

	state.Active = true
	state.Date = candidate
	state.DateSource = source
	state.UpdatedAt = clock.Now()

	res.Active = true
	res.Window = window
	res.Date = candidate
	res.DateSource = source
	if window == WindowNone {
		return res
	}

	res.AlertKey = AlertKey(candidate, window)
	if res.AlertKey != state.LastAlertKey {
		res.ShouldNotify = true
		state.LastAlertKey = res.AlertKey
	}
	return res
}

// candidate picks the declaration date to reason from. A live scraped date
// is sticky: another scraped date cannot replace it until its cycle ends or
// the emergency is called off. Guessed dates yield to any scraped one. A date
// whose cycle has not started yet is never live.
func (m *StateMachine) candidate(state *EmergencyState, ev EmergencyEvidence, now time.Time) (DeclarationDate, DateSource) {
	live := !state.Date.IsZero() &&
		!now.Before(m.cal.Boundaries(state.Date).Declared) &&
		!m.cal.Expired(state.Date, now)

	switch {
	case !ev.Date.IsZero():
		if live && ev.Date != state.Date && state.DateSource.Authoritative() {
			return state.Date, state.DateSource
		}
		return ev.Date, DateSourceScraped
	case live:
		return state.Date, state.DateSource
	case ev.DayHint >= 1 && ev.DayHint <= 3:
		return m.dateFromDayHint(ev.DayHint, now), DateSourceDayHint
	default:
		return m.cal.Today(now), DateSourceFallback
	}
}

// dateFromDayHint works backwards from a "Day N" banner. Day 1 runs past
// midnight, so before 08:00 it belongs to yesterday's declaration.
func (m *StateMachine) dateFromDayHint(day int, now time.Time) DeclarationDate {
	today := m.cal.Today(now)
	switch day {
	case 1:
		if now.In(m.cal.Location()).Hour() < 8 {
			return today.AddDays(-1)
		}
		return today
	case 2:
		return today.AddDays(-1)
	default:
		return today.AddDays(-2)
	}
}
