package tests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/cmd/processor/internal/processor"
	"github.com/kothawaleganesh/signalr-stock-demo/cmd/processor/internal/testutils"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/models"
)

func TestProcessor_EndToEnd_Flow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	sub := rdb.Subscribe(context.Background(), "prices.GOOG")
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	update := models.StockUpdate{Symbol: "GOOG", Price: 1500.50, SeqID: 100}
	val, _ := json.Marshal(update)

	// Use Mock Reader because spinning up real Kafka is heavy/complex for unit tests
	mockReader := &testutils.MockKafkaReader{Messages: []kafka.Message{{Key: []byte("GOOG"), Value: val}}}
	proc := processor.NewProcessor(1, zap.NewNop(), rdb, mockReader)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		proc.Run(ctx)
		close(done)
	}()

	select {
	case msg := <-sub.Channel():
		if msg.Payload != string(val) {
			t.Errorf("Payload mismatch.\nGot:  %s\nWant: %s", msg.Payload, val)
		}
	case <-time.After(time.Second):
		t.Fatal("Processor did not publish prices.GOOG")
	}

	cancel()
	<-done
}
