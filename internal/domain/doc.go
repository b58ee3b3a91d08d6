// Package domain models Minneapolis snow emergency declarations and the
// three-day parking rule cycle they trigger.
//
// # Data Source
//
// The city does not publish a machine-readable feed. Evidence comes from two
// HTML pages scraped on every check: the city homepage, which carries a
// banner while an emergency is in effect, and the snow updates page, which
// lists dated announcements. Both are noisy, so the package treats them as
// advisory signals and reduces them to [EmergencyEvidence].
//
// # Declaration Dates
//
// Announcements rarely include a year:
//
//	"Nov. 30"      → abbreviated month, optional period
//	"November 30"  → full month name
//	"December 19, 2024" → explicit year, taken as-is
//
// A missing year is inferred from the reference instant. Across the winter
// rollover the year is adjusted symmetrically: in January or February a
// late-season month (October–December) belongs to last year, and in
// October–December a January or February date belongs to next year.
//
// Unstructured page text often embeds stale example dates in help copy, so
// [ExtractLatestDate] keeps the chronologically latest candidate.
//
// # Rule Cycle
//
// Every boundary is computed in the civil timezone from the declaration
// date at midnight (D0):
//
//	DECLARED_PENDING  D0 00:00   → D0 21:00
//	DAY_1             D0 21:00   → D0+1 08:00
//	DAY_2             D0+1 08:00 → D0+1 20:00
//	(gap)             D0+1 20:00 → D0+2 08:00
//	DAY_3             D0+2 08:00 → D0+2 20:00
//
// Intervals are half-open. Boundaries are wall-clock times, so a DST change
// moves them in elapsed time rather than shifting the posted schedule.
//
// # Deduplication
//
// A notification is keyed by (declaration date, window). [StateMachine]
// remembers the last key it emitted, so re-observing the same window after
// a transient fetch failure never re-notifies. The day number is always
// derived forward from the declaration date; a scraped "Day N" banner is
// only a fallback for picking the date.
package domain
