package generator

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const tickPartitions = 4

// TopicCreator makes sure the tick topic exists before the generator writes.
type TopicCreator struct {
	logger *zap.Logger
	dialer KafkaDialer
	clock  Clock
}

func NewTopicCreator(logger *zap.Logger, dialer KafkaDialer, clock Clock) *TopicCreator {
	return &TopicCreator{
		logger: logger,
		dialer: dialer,
		clock:  clock,
	}
}

// Ensure creates topic through the cluster controller and waits until its
// partitions are visible. Failures are logged; the writer may still succeed
// against brokers that auto-create topics.
func (tc *TopicCreator) Ensure(ctx context.Context, brokers []string, topic string) bool {
	var conn KafkaConn
	var err error
	for _, addr := range brokers {
		if conn, err = tc.dialer.DialContext(ctx, "tcp", addr); err == nil {
			break
		}
	}
	if conn == nil {
		tc.logger.Warn("Failed to dial brokers", zap.Strings("brokers", brokers), zap.Error(err))
		return false
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		tc.logger.Warn("Failed to get controller", zap.Error(err))
		return false
	}

	controllerConn, err := tc.dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		tc.logger.Warn("Failed to dial controller", zap.Error(err))
		return false
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     tickPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		tc.logger.Info("Topic creation finished (might already exist)", zap.String("topic", topic), zap.Error(err))
	}

	return tc.waitForPartitions(conn, topic)
}

func (tc *TopicCreator) waitForPartitions(conn KafkaConn, topic string) bool {
	for i := 0; i < 5; i++ {
		partitions, err := conn.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			tc.logger.Info("Topic is ready", zap.String("topic", topic), zap.Int("partitions", len(partitions)))
			return true
		}
		tc.clock.Sleep(200 * time.Millisecond)
	}
	tc.logger.Warn("Timed out waiting for topic", zap.String("topic", topic))
	return false
}
