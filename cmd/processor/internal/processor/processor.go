package processor

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/pkg/models"
)

// ChannelPrefix names the Redis channel the gateway listens on per symbol.
const ChannelPrefix = "prices."

// Processor relays ticks from Kafka to Redis pub/sub. Ticks are sharded by
// symbol so each symbol is published in order by a single worker.
type Processor struct {
	logger     Logger
	pub        Publisher
	reader     KafkaReader
	numWorkers int
}

func NewProcessor(numWorkers int, logger Logger, pub Publisher, reader KafkaReader) *Processor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Processor{
		logger:     logger,
		pub:        pub,
		reader:     reader,
		numWorkers: numWorkers,
	}
}

// Run consumes until ctx is done, then drains the workers.
func (p *Processor) Run(ctx context.Context) error {
	shards := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := range shards {
		shards[i] = make(chan []byte, 100)
		wg.Add(1)
		go p.worker(i, shards[i], &wg)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			shard := shardFor(m.Key, p.numWorkers)
			select {
			case shards[shard] <- m.Value:
			case <-ctx.Done():
				return
			default:
				// a stale tick is worth less than a fresh one
				p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", shard))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")
	<-readerDone

	for _, ch := range shards {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) worker(id int, ticks <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	// Background so a shutdown does not cut a publish in half
	ctx := context.Background()

	// only valid because a symbol always lands on the same worker
	last := make(map[string]seqMark)

	for payload := range ticks {
		var update models.StockUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			p.logger.Error("JSON Unmarshal Error", zap.Error(err))
			continue
		}
		if update.Symbol == "" {
			p.logger.Warn("Dropping tick without symbol")
			continue
		}
		prev := last[update.Symbol]
		if update.SeqID <= prev.seq {
			if !prev.restartedBy(update) {
				p.logger.Debug("Skipping duplicate update", zap.String("symbol", update.Symbol), zap.Int64("seq_id", update.SeqID))
				continue
			}
			p.logger.Info("Sequence restarted", zap.String("symbol", update.Symbol),
				zap.Int64("seq_id", update.SeqID), zap.Int64("last_seq", prev.seq))
		}

		if err := p.pub.Publish(ctx, ChannelPrefix+update.Symbol, payload).Err(); err != nil {
			p.logger.Error("Redis Publish Error", zap.Error(err), zap.String("symbol", update.Symbol))
			continue
		}
		p.logger.Debug("Published", zap.String("symbol", update.Symbol), zap.Int("worker_id", id), zap.Int64("seq_id", update.SeqID))
		last[update.Symbol] = seqMark{seq: update.SeqID, ts: update.Timestamp}
	}
}

// seqMark is the last published tick of a symbol.
type seqMark struct {
	seq int64
	ts  int64
}

// restartedBy reports whether u comes from a restarted generator: its
// sequence went back while its clock moved forward. A redelivered tick
// carries its original, older timestamp.
func (m seqMark) restartedBy(u models.StockUpdate) bool {
	return u.SeqID > 0 && u.SeqID < m.seq && u.Timestamp > m.ts
}

func shardFor(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(numWorkers))
}
