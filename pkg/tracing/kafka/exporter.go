// Package kafka publishes runs to a Kafka topic. Messages are keyed by
// trace id so every run of a trace lands on the same partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/researcher/pkg/tracing"
)

// Writer is the subset of *kafka.Writer the exporter uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures the Kafka exporter.
type Config struct {
	Brokers []string
	Topic   string
}

// Exporter writes runs as JSON messages.
type Exporter struct {
	writer Writer
}

// NewExporter builds an exporter backed by a kafka-go writer.
func NewExporter(cfg Config) (*Exporter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka exporter requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka exporter requires a topic")
	}

	return NewExporterWithWriter(&kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}), nil
}

// NewExporterWithWriter wraps an existing writer.
func NewExporterWithWriter(w Writer) *Exporter {
	return &Exporter{writer: w}
}

// Export writes one message per run.
func (e *Exporter) Export(ctx context.Context, runs []*tracing.Run) error {
	msgs := make([]kafkago.Message, 0, len(runs))
	for _, run := range runs {
		if run == nil {
			return tracing.ErrNilRun
		}
		value, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("encoding run %s: %w", run.ID, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(run.TraceID),
			Value: value,
			Headers: []kafkago.Header{
				{Key: "run_type", Value: []byte(run.RunType)},
			},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := e.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("writing runs to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (e *Exporter) Close() error {
	return e.writer.Close()
}
