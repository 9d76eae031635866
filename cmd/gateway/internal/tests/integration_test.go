package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket" // Using Gorilla for the raw test CLIENT
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/cmd/gateway/internal/gateway"
	"github.com/kothawaleganesh/signalr-stock-demo/cmd/gateway/internal/hub"
	"github.com/kothawaleganesh/signalr-stock-demo/cmd/gateway/internal/repository"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/config"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/hubproto"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/signalr"
)

const event = "ReceiveStockUpdate"

func startServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis, *hub.Hub) {
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	feed := repository.NewRedisFeed(rdb)
	wsHub := hub.NewHub(feed, event, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go wsHub.Run(ctx)

	server := httptest.NewServer(gateway.NewHandler("/stockhub", []string{"http://localhost:3000"}, wsHub, zap.NewNop()))
	t.Cleanup(func() {
		server.Close()
		wsHub.Shutdown()
		cancel()
		feed.Close()
	})

	// PSUBSCRIBE is asynchronous; publishing before it lands loses the tick
	deadline := time.Now().Add(2 * time.Second)
	for mr.PubSubNumPat() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Gateway never subscribed to the price channels")
		}
		time.Sleep(10 * time.Millisecond)
	}

	return server, mr, wsHub
}

func waitForClients(t *testing.T, h *hub.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d registered clients, have %d", n, h.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEndToEnd_SignalRClientReceivesTicks(t *testing.T) {
	server, mr, wsHub := startServer(t)

	client := signalr.NewClient(config.HubConfig{
		URL:               server.URL + "/stockhub",
		KeepAliveInterval: time.Second,
		ServerTimeout:     5 * time.Second,
		HandshakeTimeout:  2 * time.Second,
	}, zap.NewNop())

	got := make(chan [2]string, 4)
	client.On(event, func(args []json.RawMessage) {
		got <- [2]string{hubproto.Text(args[0]), hubproto.Text(args[1])}
	})

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer client.Stop(context.Background())
	waitForClients(t, wsHub, 1)

	mr.Publish("prices.AAPL", `{"symbol":"AAPL","price":150.5,"seq_id":1}`)

	select {
	case update := <-got:
		if update != [2]string{"AAPL", "150.5"} {
			t.Errorf("Unexpected update %v", update)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Client never received the tick")
	}

	if err := client.Stop(context.Background()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	waitForClients(t, wsHub, 0)
}

func TestEndToEnd_UnknownConnectionID(t *testing.T) {
	server, _, _ := startServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stockhub?id=not-issued"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected the upgrade to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %v", resp)
	}
}

func TestEndToEnd_HandshakeRejected(t *testing.T) {
	server, _, wsHub := startServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stockhub"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	defer conn.Close()

	rec, _ := hubproto.Encode(hubproto.HandshakeRequest{Protocol: "messagepack", Version: 1})
	conn.WriteMessage(websocket.TextMessage, rec)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected handshake response, got %v", err)
	}
	if !strings.Contains(string(msg), "not supported") {
		t.Errorf("Expected protocol rejection, got %s", msg)
	}
	if wsHub.Count() != 0 {
		t.Error("Rejected client must not be registered")
	}
}

func TestEndToEnd_NegotiateCORS(t *testing.T) {
	server, _, _ := startServer(t)

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/stockhub/negotiate?negotiateVersion=1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Negotiate failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:3000" ||
		resp.Header.Get("Access-Control-Allow-Credentials") != "true" {
		t.Errorf("Missing credentialed CORS headers: %v", resp.Header)
	}

	var nr hubproto.NegotiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		t.Fatalf("Bad negotiate body: %v", err)
	}
	if nr.ConnectionToken == "" || !nr.SupportsWebSockets() {
		t.Errorf("Unexpected negotiate response %+v", nr)
	}
}

func TestEndToEnd_MaxMessageSize(t *testing.T) {
	server, _, _ := startServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stockhub"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to websocket: %v", err)
	}
	defer conn.Close()

	huge := strings.Repeat("a", 513*1024)
	err = conn.WriteMessage(websocket.TextMessage, []byte(huge))
	// Depending on timing, write might succeed, but Read should fail (Disconnect)
	if err == nil {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
