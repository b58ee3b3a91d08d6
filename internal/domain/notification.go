package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	InfoURL      = "https://www.minneapolismn.gov/getting-around/snow/snow-emergencies/"
	RulesURL     = "https://www.minneapolismn.gov/getting-around/snow/snow-emergencies/snow-parking-rules/"
	MapURL       = "https://www.minneapolismn.gov/getting-around/snow/snow-emergencies/snow-parking-rules/snow-emergency-map/"
	HotlineText  = "612-348-SNOW (7669)"
	boundaryTime = "Mon Jan 2 3:04 PM MST"
)

// BoundaryRow is one line of the schedule table attached to a notification.
type BoundaryRow struct {
	Label  string    `json:"label"`
	At     time.Time `json:"at"`
	Passed bool      `json:"passed"`
}

// Notification is the fixed-structure alert content for one window.
type Notification struct {
	Window     DayWindow       `json:"window"`
	Date       DeclarationDate `json:"declaration_date"`
	Headline   string          `json:"headline"`
	Body       string          `json:"body"`
	Rules      []string        `json:"rules,omitempty"`
	Boundaries []BoundaryRow   `json:"boundaries,omitempty"`
	// Estimated marks a declaration date that was not read from a page.
	Estimated bool      `json:"estimated,omitempty"`
	AllClear  bool      `json:"all_clear,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RuleSet is the posted parking rule text for one day of the cycle.
type RuleSet struct {
	Window DayWindow
	Hours  string
	Rules  []string
}

var ruleSets = []RuleSet{
	{
		Window: WindowDay1,
		Hours:  "9 PM - 8 AM next day",
		Rules:  []string{"No parking on EITHER side of Snow Emergency routes"},
	},
	{
		Window: WindowDay2,
		Hours:  "8 AM - 8 PM",
		Rules: []string{
			"No parking on the EVEN-numbered side of non-Snow Emergency routes",
			"No parking on EITHER side of parkways",
		},
	},
	{
		Window: WindowDay3,
		Hours:  "8 AM - 8 PM",
		Rules:  []string{"No parking on the ODD-numbered side of non-Snow Emergency routes"},
	},
}

// ParkingRules returns the rule sheet for all three days.
func ParkingRules() []RuleSet {
	out := make([]RuleSet, len(ruleSets))
	copy(out, ruleSets)
	return out
}

func rulesFor(w DayWindow) []string {
	for _, rs := range ruleSets {
		if rs.Window == w {
			return append([]string(nil), rs.Rules...)
		}
	}
	return nil
}

// Compose builds the notification for window w of d's cycle. WindowNone is
// never notifiable; passing it is a caller bug.
func Compose(cal Calendar, w DayWindow, d DeclarationDate, now time.Time) Notification {
	b := cal.Boundaries(d)
	n := Notification{
		Window:     w,
		Date:       d,
		Boundaries: boundaryRows(b, now),
		Timestamp:  now,
	}

	switch w {
	case WindowDeclaredPending:
		n.Headline = "❄️ SNOW EMERGENCY DECLARED ❄️"
		n.Body = fmt.Sprintf("A snow emergency was declared on %s. Day 1 begins at 9 PM tonight.", d.Display())
		n.Rules = rulesFor(WindowDay1)
	case WindowDay1:
		n.Headline = "❄️ Snow Emergency Day 1 in effect"
		n.Body = fmt.Sprintf("Day 1 rules apply from 9 PM until %s.", b.Day2Start.Format("Mon 3:04 PM"))
		n.Rules = rulesFor(WindowDay1)
	case WindowDay2:
		n.Headline = "❄️ Snow Emergency Day 2 in effect"
		n.Body = fmt.Sprintf("Day 2 rules apply from 8 AM until %s.", b.Day2End.Format("3:04 PM"))
		n.Rules = rulesFor(WindowDay2)
	case WindowDay3:
		n.Headline = "❄️ Snow Emergency Day 3 in effect"
		n.Body = fmt.Sprintf("Day 3 rules apply from 8 AM until %s.", b.Day3End.Format("3:04 PM"))
		n.Rules = rulesFor(WindowDay3)
	default:
		panic(fmt.Sprintf("domain: Compose called with non-notifiable window %s", w))
	}
	return n
}

// ComposeAllClear builds the message sent when an emergency is called off.
func ComposeAllClear(now time.Time) Notification {
	return Notification{
		Window:    WindowNone,
		Headline:  "✅ No Snow Emergency",
		Body:      "No snow emergency is currently in effect.",
		AllClear:  true,
		Timestamp: now,
	}
}

func boundaryRows(b Boundaries, now time.Time) []BoundaryRow {
	rows := []BoundaryRow{
		{Label: "Day 1 starts", At: b.Day1Start},
		{Label: "Day 1 ends / Day 2 starts", At: b.Day2Start},
		{Label: "Day 2 ends", At: b.Day2End},
		{Label: "Day 3 starts", At: b.Day3Start},
		{Label: "Day 3 ends", At: b.Day3End},
	}
	for i := range rows {
		rows[i].Passed = !now.Before(rows[i].At)
	}
	return rows
}

// Text renders the notification as plain text, for logs, the CLI and sinks
// without rich formatting.
func (n Notification) Text() string {
	var sb strings.Builder
	sb.WriteString(n.Headline)
	sb.WriteString("\n")
	sb.WriteString(n.Body)
	sb.WriteString("\n")
	if n.Estimated {
		sb.WriteString("Could not determine the declaration date from the city website; the schedule below is an estimate.\n")
	}
	for _, r := range n.Rules {
		sb.WriteString("• ")
		sb.WriteString(r)
		sb.WriteString("\n")
	}
	if len(n.Boundaries) > 0 {
		sb.WriteString("\nSchedule")
		if !n.Date.IsZero() {
			fmt.Fprintf(&sb, " (declared %s)", n.Date.Display())
		}
		sb.WriteString(":\n")
		sb.WriteString(n.BoundaryTable())
	}
	return sb.String()
}

// BoundaryTable renders the five schedule boundaries, one per line.
func (n Notification) BoundaryTable() string {
	var sb strings.Builder
	for _, r := range n.Boundaries {
		mark := " "
		if r.Passed {
			mark = "✓"
		}
		fmt.Fprintf(&sb, "%s %-26s %s\n", mark, r.Label, r.At.Format(boundaryTime))
	}
	return sb.String()
}

// Alert is what a notification channel receives: plain message content plus
// the structured panel.
type Alert struct {
	Key     string       `json:"key,omitempty"`
	Content string       `json:"content"`
	Panel   Notification `json:"panel"`
}

// NewAlert wraps n for dispatch. mention is prepended to the content, e.g.
// "@here"; pass "" to send without a ping.
func NewAlert(key string, n Notification, mention string) Alert {
	content := n.Headline
	if mention != "" {
		content = mention + " " + content
	}
	return Alert{Key: key, Content: content, Panel: n}
}
