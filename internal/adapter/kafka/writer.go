package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/config"
	"github.com/couchcryptid/storm-radar-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces scan result events to a Kafka topic.
// It implements pipeline.ResultPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured result topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishResult serializes one run summary and writes it keyed by scan id, so
// reprocessing a scan lands on the same partition.
func (w *Writer) PublishResult(ctx context.Context, result pipeline.ScanResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish scan result: %w", err)
	}
	w.logger.Debug("scan result published", "scan", result.Scan, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ScanResult into a Kafka message.
func serializeToMessage(result pipeline.ScanResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize scan result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.Scan),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "scan_id", Value: []byte(result.Scan)},
			{Key: "processed_at", Value: []byte(result.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
