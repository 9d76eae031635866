package dashboard

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/pkg/hubproto"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/models"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/signalr"
)

// UpdateEvent is the hub method carrying (symbol, price).
const UpdateEvent = "ReceiveStockUpdate"

// Connection is the slice of the hub client the view drives.
type Connection interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	On(target string, handler signalr.Handler)
}

// Renderer is called with every new price map the view produces.
type Renderer func(prices models.PriceMap)

// View is the live stock dashboard. It owns one connection for its lifetime
// and keeps the latest price per symbol seen since Mount.
type View struct {
	conn   Connection
	event  string
	render Renderer
	logger *zap.Logger

	mu     sync.Mutex
	prices models.PriceMap

	mountOnce   sync.Once
	unmountOnce sync.Once
	pending     sync.WaitGroup
}

func NewView(conn Connection, event string, render Renderer, logger *zap.Logger) *View {
	if event == "" {
		event = UpdateEvent
	}
	if render == nil {
		render = func(models.PriceMap) {}
	}
	return &View{conn: conn, event: event, render: render, logger: logger}
}

// Mount registers the update handler, draws the empty dashboard and starts
// the connection in the background. Only the first call has any effect.
func (v *View) Mount() {
	v.mountOnce.Do(func() {
		v.conn.On(v.event, v.HandleUpdate)
		v.render(v.Prices())

		v.pending.Add(1)
		go func() {
			defer v.pending.Done()
			if err := v.conn.Start(context.Background()); err != nil {
				v.logger.Error("Error connecting to hub", zap.Error(err))
				return
			}
			v.logger.Info("Connected to hub")
		}()
	})
}

// Unmount stops the connection in the background, whatever its state.
// Only the first call has any effect.
func (v *View) Unmount() {
	v.unmountOnce.Do(func() {
		v.pending.Add(1)
		go func() {
			defer v.pending.Done()
			if err := v.conn.Stop(context.Background()); err != nil {
				v.logger.Error("Error disconnecting from hub", zap.Error(err))
				return
			}
			v.logger.Info("Disconnected from hub")
		}()
	})
}

// Wait blocks until the background connect and disconnect calls have returned.
func (v *View) Wait() {
	v.pending.Wait()
}

// HandleUpdate merges one (symbol, price) invocation into the price map and
// re-renders. Values are taken as received; an invocation without any
// argument has no symbol to key on and is dropped.
func (v *View) HandleUpdate(args []json.RawMessage) {
	if len(args) == 0 {
		v.logger.Debug("Stock update without arguments", zap.String("event", v.event))
		return
	}

	symbol := hubproto.Text(args[0])
	var price models.Price
	if len(args) > 1 {
		price = hubproto.PriceText(args[1])
	}

	v.mu.Lock()
	v.prices = v.prices.With(symbol, price)
	snapshot := v.prices
	v.mu.Unlock()

	v.render(snapshot)
}

// Prices returns the current price map.
func (v *View) Prices() models.PriceMap {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.prices
}
