package repository

import (
	"context"
)

// PriceFeed delivers published ticks to the gateway.
type PriceFeed interface {
	// RunPubSub blocks, calling onMessage for every tick until ctx is done.
	RunPubSub(ctx context.Context, onMessage func(symbol string, payload string)) error
	Close() error
}
