package testutils

import (
	"context"
	"io"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	// Closed simulates a closed connection or end of stream
	Closed bool
}

// ReadMessage replays Messages, then blocks like an idle topic until ctx ends.
func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	if m.Closed {
		m.Mu.Unlock()
		return kafka.Message{}, io.EOF
	}
	if m.Index < len(m.Messages) {
		msg := m.Messages[m.Index]
		m.Index++
		m.Mu.Unlock()
		return msg, nil
	}
	m.Mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

// MockPublisher records every publish.
type MockPublisher struct {
	Channels []string
	Payloads []string
	Fail     error
	Mu       sync.Mutex
}

func (m *MockPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	cmd := redis.NewIntCmd(ctx)
	if m.Fail != nil {
		cmd.SetErr(m.Fail)
		return cmd
	}
	m.Channels = append(m.Channels, channel)
	switch v := message.(type) {
	case []byte:
		m.Payloads = append(m.Payloads, string(v))
	case string:
		m.Payloads = append(m.Payloads, v)
	}
	cmd.SetVal(1)
	return cmd
}
