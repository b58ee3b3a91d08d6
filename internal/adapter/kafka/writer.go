package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/snow-emergency-monitor/internal/config"
	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
)

// Writer publishes alerts to a Kafka topic.
// It implements pipeline.Notifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaAlertTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Notify serializes and publishes one alert. Alerts for the same
// declaration window share a key and so land on the same partition.
func (w *Writer) Notify(ctx context.Context, alert domain.Alert) error {
	msg, err := serializeToMessage(alert)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	w.logger.Debug("alert published", "topic", w.writer.Topic, "key", alert.Key)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Alert into a Kafka message.
func serializeToMessage(alert domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	key := alert.Key
	if key == "" {
		key = alert.Panel.Window.String()
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "window", Value: []byte(alert.Panel.Window.String())},
			{Key: "declared_on", Value: []byte(alert.Panel.Date.String())},
		},
	}, nil
}
