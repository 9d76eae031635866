package testutils

import (
	"context"
	"sync"
)

// MockClient simulates a connected dashboard
type MockClient struct {
	IDVal    string
	RawBytes []string // Stores raw records
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) Received() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]string(nil), m.RawBytes...)
}

// MockPriceFeed replays Messages into the hub, then blocks until ctx is done.
type MockPriceFeed struct {
	Messages [][2]string // symbol, payload
	Closed   bool
	Mu       sync.Mutex
}

func (m *MockPriceFeed) RunPubSub(ctx context.Context, onMessage func(symbol string, payload string)) error {
	m.Mu.Lock()
	msgs := append([][2]string(nil), m.Messages...)
	m.Mu.Unlock()

	for _, msg := range msgs {
		onMessage(msg[0], msg[1])
	}
	<-ctx.Done()
	return nil
}

func (m *MockPriceFeed) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}
