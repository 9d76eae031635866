package testutils

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kothawaleganesh/signalr-stock-demo/pkg/signalr"
)

// MockConnection records the lifecycle calls a view issues and lets tests
// push invocations as if they came from the hub.
type MockConnection struct {
	StartErr error
	StopErr  error

	Mu         sync.Mutex
	StartCalls int
	StopCalls  int
	Calls      []string // "on", "start", "stop" in call order
	Handlers   map[string][]signalr.Handler
}

func NewMockConnection() *MockConnection {
	return &MockConnection{Handlers: make(map[string][]signalr.Handler)}
}

func (m *MockConnection) Start(ctx context.Context) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.StartCalls++
	m.Calls = append(m.Calls, "start")
	return m.StartErr
}

func (m *MockConnection) Stop(ctx context.Context) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.StopCalls++
	m.Calls = append(m.Calls, "stop")
	return m.StopErr
}

func (m *MockConnection) On(target string, h signalr.Handler) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls = append(m.Calls, "on")
	m.Handlers[target] = append(m.Handlers[target], h)
}

// Push delivers an invocation of target with JSON-encoded args.
func (m *MockConnection) Push(target string, args ...interface{}) {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, _ := json.Marshal(a)
		raw = append(raw, b)
	}
	m.PushRaw(target, raw...)
}

func (m *MockConnection) PushRaw(target string, args ...json.RawMessage) {
	m.Mu.Lock()
	handlers := append([]signalr.Handler(nil), m.Handlers[target]...)
	m.Mu.Unlock()

	for _, h := range handlers {
		h(args)
	}
}

func (m *MockConnection) CallOrder() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]string(nil), m.Calls...)
}
