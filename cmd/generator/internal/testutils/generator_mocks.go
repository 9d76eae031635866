package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kothawaleganesh/signalr-stock-demo/cmd/generator/internal/generator"
)

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }

// MockClock advances virtual time on Sleep, yielding so cancellation is seen.
type MockClock struct {
	CurrentTime time.Time
	Mu          sync.Mutex
}

func (m *MockClock) Now() time.Time {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) Sleep(d time.Duration) {
	m.Mu.Lock()
	m.CurrentTime = m.CurrentTime.Add(d)
	m.Mu.Unlock()
	time.Sleep(time.Millisecond)
}

type MockRand struct {
	ValInt   int
	ValFloat float64
}

func (m *MockRand) Intn(n int) int   { return m.ValInt % n }
func (m *MockRand) Float64() float64 { return m.ValFloat }

type MockKafkaConn struct {
	CreatedTopics []string
	Partitions    int
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error { return nil }
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	for _, t := range topics {
		m.CreatedTopics = append(m.CreatedTopics, t.Topic)
		m.Partitions = t.NumPartitions
	}
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.Partitions == 0 {
		return nil, errors.New("unknown topic")
	}
	return make([]kafka.Partition, m.Partitions), nil
}

type MockKafkaDialer struct {
	ConnSpy *MockKafkaConn
	Fail    bool
	Dialed  []string
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (generator.KafkaConn, error) {
	m.Dialed = append(m.Dialed, address)
	if m.Fail {
		return nil, errors.New("connection refused")
	}
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{}
	}
	return m.ConnSpy, nil
}
