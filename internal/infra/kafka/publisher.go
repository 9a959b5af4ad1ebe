package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/ports"
)

// Ensure Publisher implements ports.RunReportPublisher.
var _ ports.RunReportPublisher = (*Publisher)(nil)

// PublisherConfig configures the Kafka-based run report publisher.
type PublisherConfig struct {
	Brokers []string
	Topic   string
	// RunID tags every message of one run. Empty generates a random id.
	RunID string
	// Async makes PublishRunReport return without waiting for the broker.
	// Delivery failures are then only logged.
	Async  bool
	Logger *slog.Logger
}

// Publisher publishes run reports to Kafka.
type Publisher struct {
	writer messageWriter
	runID  string
	now    func() time.Time
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewPublisher constructs a Publisher using the supplied configuration.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker must be provided")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic must be provided")
	}

	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		AllowAutoTopicCreation: true,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		Async:                  cfg.Async,
	}
	if cfg.Async {
		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}
		writer.Completion = deliveryLogger(cfg.Topic, logger)
	}

	return newPublisher(writer, cfg.RunID), nil
}

func newPublisher(writer messageWriter, runID string) *Publisher {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Publisher{writer: writer, runID: runID, now: time.Now}
}

// RunID returns the identifier attached to published messages.
func (p *Publisher) RunID() string {
	return p.runID
}

// PublishRunReport serializes and writes the supplied report to Kafka.
func (p *Publisher) PublishRunReport(ctx context.Context, report execution.RunReport) error {
	if p.writer == nil {
		return fmt.Errorf("publisher is not initialized")
	}

	now := p.now()
	payload, err := encodeRunReport(p.runID, report, now)
	if err != nil {
		return err
	}

	msg := kafkago.Message{
		Key:   messageKey(report),
		Value: payload,
		Time:  now,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

func deliveryLogger(topic string, logger *slog.Logger) func([]kafkago.Message, error) {
	return func(msgs []kafkago.Message, err error) {
		if err == nil {
			return
		}
		keys := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			keys = append(keys, string(msg.Key))
		}
		logger.Warn("failed to deliver run reports", "topic", topic, "keys", keys, "err", err)
	}
}

// Close flushes pending messages and releases the underlying Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
