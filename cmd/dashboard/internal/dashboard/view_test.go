package dashboard_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kothawaleganesh/signalr-stock-demo/cmd/dashboard/internal/dashboard"
	"github.com/kothawaleganesh/signalr-stock-demo/cmd/dashboard/internal/testutils"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/models"
)

func setup() (*dashboard.View, *testutils.MockConnection, *[]models.PriceMap) {
	conn := testutils.NewMockConnection()
	var renders []models.PriceMap
	view := dashboard.NewView(conn, dashboard.UpdateEvent, func(p models.PriceMap) {
		renders = append(renders, p)
	}, zap.NewNop())
	return view, conn, &renders
}

func TestView_MountConnectsOnce(t *testing.T) {
	view, conn, renders := setup()

	view.Mount()
	view.Mount()
	view.Wait()

	if conn.StartCalls != 1 {
		t.Errorf("Expected exactly one start, got %d", conn.StartCalls)
	}
	if order := conn.CallOrder(); order[0] != "on" || order[1] != "start" {
		t.Errorf("Handler must be registered before connecting, got %v", order)
	}
	if len(*renders) != 1 || (*renders)[0].Len() != 0 {
		t.Errorf("Mount should draw one empty dashboard, got %d renders", len(*renders))
	}
}

func TestView_Scenario(t *testing.T) {
	view, conn, renders := setup()
	view.Mount()
	view.Wait()

	conn.Push(dashboard.UpdateEvent, "AAPL", 150)
	conn.Push(dashboard.UpdateEvent, "GOOG", 2800)
	conn.Push(dashboard.UpdateEvent, "AAPL", 151)

	prices := view.Prices()
	if prices.Len() != 2 {
		t.Fatalf("Expected 2 symbols, got %d", prices.Len())
	}
	if p, _ := prices.Get("AAPL"); p != "151" {
		t.Errorf("Expected AAPL 151, got %s", p)
	}
	if p, _ := prices.Get("GOOG"); p != "2800" {
		t.Errorf("Expected GOOG 2800, got %s", p)
	}

	// initial draw plus one per update
	if len(*renders) != 4 {
		t.Errorf("Expected 4 renders, got %d", len(*renders))
	}

	var out bytes.Buffer
	if err := dashboard.Render(&out, prices); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if n := strings.Count(out.String(), "Price: $"); n != 2 {
		t.Errorf("Expected two blocks, got %d:\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "Price: $151") || strings.Contains(out.String(), "Price: $150\n") {
		t.Errorf("AAPL should show only the latest price:\n%s", out.String())
	}
}

func TestView_EarlierSnapshotsUnchanged(t *testing.T) {
	view, conn, renders := setup()
	view.Mount()
	view.Wait()

	conn.Push(dashboard.UpdateEvent, "AAPL", 150)
	conn.Push(dashboard.UpdateEvent, "AAPL", 151)

	first := (*renders)[1]
	if p, _ := first.Get("AAPL"); p != "150" {
		t.Errorf("Rendered snapshot mutated after the fact: AAPL=%s", p)
	}
}

func TestView_PermissivePayloads(t *testing.T) {
	view, conn, _ := setup()
	view.Mount()
	view.Wait()

	conn.PushRaw(dashboard.UpdateEvent)
	conn.PushRaw(dashboard.UpdateEvent, json.RawMessage(`"MSFT"`))
	conn.PushRaw(dashboard.UpdateEvent, json.RawMessage(`"TSLA"`), json.RawMessage(`"n/a"`))
	conn.PushRaw(dashboard.UpdateEvent, json.RawMessage(`42`), json.RawMessage(`1e3`))

	prices := view.Prices()
	if prices.Len() != 3 {
		t.Fatalf("Expected 3 symbols, got %v", prices.Symbols())
	}
	if p, ok := prices.Get("MSFT"); !ok || p != "" {
		t.Errorf("Missing price should be kept empty, got %q (present=%v)", p, ok)
	}
	if p, _ := prices.Get("TSLA"); p != "n/a" {
		t.Errorf("Non-numeric price should be shown as received, got %q", p)
	}
	if p, _ := prices.Get("42"); p != "1000" {
		t.Errorf("Numeric price should print like a browser, got %q", p)
	}
}

func TestView_ConnectFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	conn := testutils.NewMockConnection()
	conn.StartErr = errors.New("connection refused")

	view := dashboard.NewView(conn, "", nil, zap.New(core))
	view.Mount()
	view.Wait()

	if view.Prices().Len() != 0 {
		t.Error("Price map should stay empty after a failed connect")
	}
	if n := logs.FilterMessage("Error connecting to hub").Len(); n != 1 {
		t.Errorf("Expected one connect diagnostic, got %d", n)
	}
	if n := logs.FilterMessage("Connected to hub").Len(); n != 0 {
		t.Errorf("Should not report success, got %d", n)
	}

	view.Unmount()
	view.Wait()
	if conn.StopCalls != 1 {
		t.Errorf("Unmount must still stop the connection, got %d stops", conn.StopCalls)
	}
}

func TestView_UnmountStopsOnce(t *testing.T) {
	view, conn, _ := setup()
	view.Mount()
	view.Unmount()
	view.Unmount()
	view.Wait()

	if conn.StopCalls != 1 {
		t.Errorf("Expected exactly one stop, got %d", conn.StopCalls)
	}
}

func TestView_UnmountWithoutMount(t *testing.T) {
	view, conn, _ := setup()
	view.Unmount()
	view.Wait()

	if conn.StopCalls != 1 || conn.StartCalls != 0 {
		t.Errorf("Expected 0 starts and 1 stop, got %d/%d", conn.StartCalls, conn.StopCalls)
	}
}

func TestView_DisconnectFailureLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	conn := testutils.NewMockConnection()
	conn.StopErr = errors.New("already closed")

	view := dashboard.NewView(conn, "", nil, zap.New(core))
	view.Mount()
	view.Unmount()
	view.Wait()

	if n := logs.FilterMessage("Error disconnecting from hub").Len(); n != 1 {
		t.Errorf("Expected one disconnect diagnostic, got %d", n)
	}
}
