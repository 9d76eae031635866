package generator

import (
	"context"
	"math/rand"
	"time"

	"github.com/segmentio/kafka-go"
)

// Clock is swapped for a fake in tests
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Rand is swapped for a fixed sequence in tests
type Rand interface {
	Intn(n int) int
	Float64() float64
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaDialer interface {
	DialContext(ctx context.Context, network, address string) (KafkaConn, error)
}

type KafkaConn interface {
	Controller() (kafka.Broker, error)
	Close() error
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
}

type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

type RealRand struct{ *rand.Rand }

func NewRealRand() RealRand { return RealRand{rand.New(rand.NewSource(time.Now().UnixNano()))} }

// RealKafkaDialer adapts *kafka.Dialer; *kafka.Conn already has the KafkaConn methods.
type RealKafkaDialer struct{ *kafka.Dialer }

func (d RealKafkaDialer) DialContext(ctx context.Context, network, address string) (KafkaConn, error) {
	conn, err := d.Dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
