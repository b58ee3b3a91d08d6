package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ProbeResult is what one scraped page contributed to a check.
type ProbeResult struct {
	Name       string
	URL        string
	OK         bool
	StatusCode int
	Text       string        // visible page text
	Fragment   *DateFragment // structured date widget, if the page has one
	Err        error
}

// EmergencyEvidence is the per-check verdict produced from the probes.
type EmergencyEvidence struct {
	Active bool
	Date   DeclarationDate // zero when no date could be found
	// DayHint is a "Day N" number read from a banner (0 when absent). It is
	// only used to choose a declaration date when none was scraped.
	DayHint int
	// Unavailable is set when every probe failed, so Active=false is not
	// an explicit all-clear.
	Unavailable bool
	Sources     []string
}

// activePhrases are matched against normalized lower-case page text.
var activePhrases = []string{
	"snow emergency declared",
	"snow emergency has been declared",
	"declared a snow emergency",
	"snow emergency in effect",
	"snow emergency is in effect",
	"snow emergency is now in effect",
	"snow emergency remains in effect",
}

// dayHintRe only trusts a day number that sits in the same sentence as
// banner wording, so rule-sheet copy like "Day 1 rules" is not a hint.
var dayHintRe = regexp.MustCompile(`(?i)snow emergency[^.]{0,40}?\bday\s*([123])\b|\bday\s*([123])\b[^.]{0,20}?snow emergency`)

// NormalizeText folds a scraped string for phrase matching: compatibility
// normalization turns non-breaking spaces into spaces, combining marks are
// dropped, case is lowered and whitespace runs collapse to one space.
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// ContainsActivePhrase reports whether text announces an emergency in effect.
func ContainsActivePhrase(text string) bool {
	normalized := NormalizeText(text)
	for _, p := range activePhrases {
		if strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

// GatherEvidence reduces the two probes to one verdict. Failed probes count
// as "no evidence". The date comes from the most specific source available:
// a structured widget (news page, then active page), then the latest date in
// the news page text.
func GatherEvidence(active, news ProbeResult, now time.Time) EmergencyEvidence {
	if !active.OK && !news.OK {
		return EmergencyEvidence{Unavailable: true}
	}

	var ev EmergencyEvidence
	for _, p := range []ProbeResult{active, news} {
		if p.OK && ContainsActivePhrase(p.Text) {
			ev.Active = true
			ev.Sources = append(ev.Sources, p.Name)
		}
	}
	if !ev.Active {
		return ev
	}

	for _, p := range []ProbeResult{news, active} {
		if !p.OK || p.Fragment == nil {
			continue
		}
		if d, ok := ExtractStructuredDate(*p.Fragment, now); ok {
			ev.Date = d
			break
		}
	}
	if ev.Date.IsZero() && news.OK {
		if d, ok := ExtractLatestDate(news.Text, now); ok {
			ev.Date = d
		}
	}

	for _, p := range []ProbeResult{active, news} {
		if !p.OK {
			continue
		}
		if m := dayHintRe.FindStringSubmatch(p.Text); m != nil {
			ev.DayHint, _ = strconv.Atoi(m[1] + m[2])
			break
		}
	}
	return ev
}
