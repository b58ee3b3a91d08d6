package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const (
	DefaultActiveProbeURL = "https://www.minneapolismn.gov/"
	DefaultNewsProbeURL   = "https://www.minneapolismn.gov/getting-around/snow/snow-emergencies/snow-updates/"
	DefaultUserAgent      = "snow-emergency-monitor/1.0 (+https://github.com/couchcryptid/snow-emergency-monitor)"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Location      *time.Location
	CheckInterval time.Duration
	FetchTimeout  time.Duration

	ActiveProbeURL string
	NewsProbeURL   string
	UserAgent      string

	// TestMode suppresses @here mentions in dispatched alerts. It never
	// affects reconciliation.
	TestMode       bool
	NotifyAllClear bool

	DiscordWebhookURL string

	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaAlertTopic string

	// StateDBPath is the SQLite file holding EmergencyState; empty keeps
	// state in memory only.
	StateDBPath string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("TIMEZONE", "America/Chicago"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	checkInterval, err := parsePositiveDuration("CHECK_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	testMode, err := parseBool("TEST_MODE", false)
	if err != nil {
		return nil, err
	}

	notifyAllClear, err := parseBool("NOTIFY_ALL_CLEAR", false)
	if err != nil {
		return nil, err
	}

	var kafkaBrokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		kafkaBrokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(kafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Location:      loc,
		CheckInterval: checkInterval,
		FetchTimeout:  fetchTimeout,

		ActiveProbeURL: sharedcfg.EnvOrDefault("ACTIVE_PROBE_URL", DefaultActiveProbeURL),
		NewsProbeURL:   sharedcfg.EnvOrDefault("NEWS_PROBE_URL", DefaultNewsProbeURL),
		UserAgent:      sharedcfg.EnvOrDefault("USER_AGENT", DefaultUserAgent),

		TestMode:       testMode,
		NotifyAllClear: notifyAllClear,

		DiscordWebhookURL: strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK_URL")),

		KafkaEnabled:    kafkaEnabled,
		KafkaBrokers:    kafkaBrokers,
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "snow-emergency-alerts"),

		StateDBPath: os.Getenv("STATE_DB_PATH"),
	}

	for name, raw := range map[string]string{
		"ACTIVE_PROBE_URL": cfg.ActiveProbeURL,
		"NEWS_PROBE_URL":   cfg.NewsProbeURL,
	} {
		if err := validateURL(name, raw); err != nil {
			return nil, err
		}
	}
	if cfg.DiscordWebhookURL != "" {
		if err := validateURL("DISCORD_WEBHOOK_URL", cfg.DiscordWebhookURL); err != nil {
			return nil, err
		}
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required when Kafka is enabled")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
