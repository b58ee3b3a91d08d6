// Package discord delivers alerts to a Discord channel through an incoming
// webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
)

const (
	colorDeclared = 0x3498DB
	colorActive   = 0xE67E22
	colorAllClear = 0x2ECC71
)

// Webhook posts alerts as an embed with an optional @here mention.
// It implements pipeline.Notifier.
type Webhook struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewWebhook(url string, timeout time.Duration, logger *slog.Logger) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (w *Webhook) Name() string { return "discord" }

// Notify sends one alert. Discord answers 204 on success; anything outside
// 2xx is an error carrying the first part of the response body.
func (w *Webhook) Notify(ctx context.Context, alert domain.Alert) error {
	body, err := json.Marshal(buildPayload(alert))
	if err != nil {
		return fmt.Errorf("encode discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	w.logger.Debug("discord alert delivered", "key", alert.Key)
	return nil
}

type payload struct {
	Content         string          `json:"content"`
	Embeds          []embed         `json:"embeds"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

func buildPayload(alert domain.Alert) payload {
	n := alert.Panel
	e := embed{
		Title:       n.Headline,
		Description: n.Body,
		URL:         domain.InfoURL,
		Color:       colorFor(n),
		Footer:      &embedFooter{Text: "Snow hotline " + domain.HotlineText},
	}
	if !n.Timestamp.IsZero() {
		e.Timestamp = n.Timestamp.UTC().Format(time.RFC3339)
	}

	if n.Estimated {
		e.Fields = append(e.Fields, embedField{
			Name:  "⚠️ Estimated schedule",
			Value: "Could not determine the declaration date from the city website.",
		})
	}
	if len(n.Rules) > 0 {
		e.Fields = append(e.Fields, embedField{Name: "Parking rules", Value: "• " + strings.Join(n.Rules, "\n• ")})
	}
	if len(n.Boundaries) > 0 {
		name := "Schedule"
		if !n.Date.IsZero() {
			name = fmt.Sprintf("Schedule (declared %s)", n.Date.Display())
		}
		e.Fields = append(e.Fields, embedField{Name: name, Value: "```\n" + n.BoundaryTable() + "```"})
	}
	if !n.AllClear {
		e.Fields = append(e.Fields,
			embedField{Name: "Rules", Value: fmt.Sprintf("[Parking rules](%s)", domain.RulesURL), Inline: true},
			embedField{Name: "Map", Value: fmt.Sprintf("[Snow emergency map](%s)", domain.MapURL), Inline: true},
		)
	}

	// An empty parse list disables pings; @here is gated behind "everyone".
	parse := []string{}
	if strings.Contains(alert.Content, "@here") || strings.Contains(alert.Content, "@everyone") {
		parse = []string{"everyone"}
	}

	return payload{
		Content:         alert.Content,
		Embeds:          []embed{e},
		AllowedMentions: allowedMentions{Parse: parse},
	}
}

func colorFor(n domain.Notification) int {
	switch {
	case n.AllClear:
		return colorAllClear
	case n.Window == domain.WindowDeclaredPending:
		return colorDeclared
	default:
		return colorActive
	}
}
