package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DeclarationDate is the calendar day a snow emergency was announced. It has
// no time-of-day component; the zero value means "absent".
type DeclarationDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDeclarationDate returns the date, or false if it is not a real calendar
// day (e.g. February 30).
func NewDeclarationDate(year int, month time.Month, day int) (DeclarationDate, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return DeclarationDate{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return DeclarationDate{}, false
	}
	return DeclarationDate{Year: year, Month: month, Day: day}, true
}

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) DeclarationDate {
	y, m, d := t.In(loc).Date()
	return DeclarationDate{Year: y, Month: m, Day: d}
}

// ParseDeclarationDate parses the YYYY-MM-DD form produced by String.
func ParseDeclarationDate(s string) (DeclarationDate, error) {
	if s == "" {
		return DeclarationDate{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return DeclarationDate{}, fmt.Errorf("parse declaration date: %w", err)
	}
	return DeclarationDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d DeclarationDate) IsZero() bool { return d == DeclarationDate{} }

func (d DeclarationDate) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Display renders the date the way the city writes it, e.g. "November 30, 2025".
func (d DeclarationDate) Display() string {
	if d.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%s %d, %d", d.Month, d.Day, d.Year)
}

func (d DeclarationDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DeclarationDate) UnmarshalText(b []byte) error {
	parsed, err := ParseDeclarationDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Midnight returns civil midnight of the date in loc.
func (d DeclarationDate) Midnight(loc *time.Location) time.Time {
	return d.at(0, 0, loc)
}

// at builds a wall-clock instant offsetDays after d. time.Date normalizes
// day overflow and resolves the offset for the target day, which keeps
// boundaries on the posted hour across DST changes.
func (d DeclarationDate) at(offsetDays, hour int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day+offsetDays, hour, 0, 0, 0, loc)
}

// AddDays returns the date n calendar days later (or earlier for negative n).
func (d DeclarationDate) AddDays(n int) DeclarationDate {
	t := time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC)
	return DeclarationDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d DeclarationDate) compare(o DeclarationDate) int {
	switch {
	case d.Year != o.Year:
		return d.Year - o.Year
	case d.Month != o.Month:
		return int(d.Month) - int(o.Month)
	default:
		return d.Day - o.Day
	}
}

func (d DeclarationDate) Before(o DeclarationDate) bool { return d.compare(o) < 0 }
func (d DeclarationDate) After(o DeclarationDate) bool  { return d.compare(o) > 0 }

// DateFragment is a structured date widget with separate month and day
// sub-fields, e.g. <span class="month">Nov</span><span class="day">30</span>.
type DateFragment struct {
	Month string `json:"month"`
	Day   string `json:"day"`
}

const monthPattern = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var (
	// monthDayRe matches "Nov. 30", "November 30th" and "December 19, 2024".
	monthDayRe = regexp.MustCompile(`(?i)\b` + monthPattern + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s*(\d{4})\b)?`)

	// slashDateRe matches US numeric dates with a year, e.g. "12/01/2025".
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)

	// isoDateRe matches "2025-12-01".
	isoDateRe = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

	monthOnlyRe = regexp.MustCompile(`(?i)^\s*` + monthPattern + `\.?\s*$`)

	// dayTextRe accepts a widget's day slot, e.g. "30" or "1st".
	dayTextRe = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?:st|nd|rd|th)?\s*$`)
)

var monthPrefixes = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func parseMonth(token string) (time.Month, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if len(token) < 3 {
		return 0, false
	}
	m, ok := monthPrefixes[token[:3]]
	return m, ok
}

// inferYear applies the winter rollover rule to a month/day seen without a year.
func inferYear(month time.Month, ref time.Time) int {
	year := ref.Year()
	refMonth := ref.Month()
	switch {
	case refMonth <= time.February && month >= time.October:
		year--
	case refMonth >= time.October && month <= time.February:
		year++
	}
	return year
}

func dateFromParts(month time.Month, dayText, yearText string, ref time.Time) (DeclarationDate, bool) {
	m := dayTextRe.FindStringSubmatch(dayText)
	if m == nil {
		return DeclarationDate{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year := inferYear(month, ref)
	if yearText != "" {
		if y, err := strconv.Atoi(yearText); err == nil {
			year = y
		}
	}
	return NewDeclarationDate(year, month, day)
}

// ExtractDate parses the first month-name/day pair in fragment. The year is
// taken from the text when present, otherwise inferred from ref.
func ExtractDate(fragment string, ref time.Time) (DeclarationDate, bool) {
	for _, m := range monthDayRe.FindAllStringSubmatch(fragment, -1) {
		month, ok := parseMonth(m[1])
		if !ok {
			continue
		}
		if d, ok := dateFromParts(month, m[2], m[3], ref); ok {
			return d, true
		}
	}
	return DeclarationDate{}, false
}

// ExtractStructuredDate parses a date widget whose month and day live in
// separate elements.
func ExtractStructuredDate(f DateFragment, ref time.Time) (DeclarationDate, bool) {
	if !monthOnlyRe.MatchString(f.Month) {
		// Some widgets put "Nov 30" in the month slot.
		return ExtractDate(f.Month+" "+f.Day, ref)
	}
	month, ok := parseMonth(strings.TrimSuffix(strings.TrimSpace(f.Month), "."))
	if !ok {
		return DeclarationDate{}, false
	}
	return dateFromParts(month, f.Day, "", ref)
}

// ExtractLatestDate scans unstructured text for every date-like substring
// and returns the chronologically latest one that parses.
func ExtractLatestDate(text string, ref time.Time) (DeclarationDate, bool) {
	var best DeclarationDate
	consider := func(d DeclarationDate, ok bool) {
		if ok && (best.IsZero() || d.After(best)) {
			best = d
		}
	}

	for _, m := range monthDayRe.FindAllStringSubmatch(text, -1) {
		if month, ok := parseMonth(m[1]); ok {
			consider(dateFromParts(month, m[2], m[3], ref))
		}
	}
	for _, m := range slashDateRe.FindAllStringSubmatch(text, -1) {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		consider(NewDeclarationDate(year, time.Month(month), day))
	}
	for _, m := range isoDateRe.FindAllStringSubmatch(text, -1) {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		consider(NewDeclarationDate(year, time.Month(month), day))
	}

	return best, !best.IsZero()
}
