//go:build integration

// Package testhelpers starts the external services used by integration tests.
package testhelpers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const (
	kafkaImage       = "confluentinc/confluent-local:7.7.0"
	brokerPollPeriod = 500 * time.Millisecond
	brokerWaitLimit  = 30 * time.Second
)

// StartKafka runs a single node Kafka container for the lifetime of t,
// creates topic on it and returns the bootstrap address. The test is
// skipped when the container cannot be started.
func StartKafka(ctx context.Context, t testing.TB, topic string) string {
	t.Helper()

	container, err := kafkatc.Run(ctx, kafkaImage)
	if err != nil {
		t.Skipf("kafka container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("obtain kafka brokers: %v", err)
	}
	if len(brokers) == 0 {
		t.Fatal("kafka container reported no brokers")
	}
	broker := brokers[0]

	if err := waitForBroker(ctx, broker); err != nil {
		t.Fatalf("wait for kafka broker: %v", err)
	}
	if err := createTopic(ctx, broker, topic); err != nil {
		t.Fatalf("create topic %q: %v", topic, err)
	}
	return broker
}

func waitForBroker(ctx context.Context, broker string) error {
	ctx, cancel := context.WithTimeout(ctx, brokerWaitLimit)
	defer cancel()

	ticker := time.NewTicker(brokerPollPeriod)
	defer ticker.Stop()

	for {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("broker %q not ready: %w", broker, err)
		}
	}
}

// createTopic creates a single partition topic through the cluster
// controller. An existing topic is not an error.
func createTopic(ctx context.Context, broker, topic string) error {
	conn, err := kafkago.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}

	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	ctrl, err := kafkago.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer ctrl.Close()

	err = ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if errors.Is(err, kafkago.TopicAlreadyExists) {
		return nil
	}
	return err
}
