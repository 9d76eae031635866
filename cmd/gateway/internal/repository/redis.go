package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ChannelPrefix is prepended to the symbol to name its Redis channel.
const ChannelPrefix = "prices."

// Compile-time check to ensure RedisFeed implements PriceFeed
var _ PriceFeed = (*RedisFeed)(nil)

// RedisFeed listens on every prices.<SYMBOL> channel.
type RedisFeed struct {
	client *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

func (r *RedisFeed) RunPubSub(ctx context.Context, onMessage func(symbol string, payload string)) error {
	ps := r.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer ps.Close()

	// Receive blocks until the subscription is confirmed
	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s*: %w", ChannelPrefix, err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			symbol := strings.TrimPrefix(msg.Channel, ChannelPrefix)
			if symbol == "" || symbol == msg.Channel {
				continue
			}
			onMessage(symbol, msg.Payload)
		}
	}
}

func (r *RedisFeed) Close() error {
	return r.client.Close()
}
