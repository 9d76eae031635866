package generator

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/pkg/models"
)

const (
	defaultBasePrice = 100.0
	// maxStep bounds one tick's move as a fraction of the current price
	maxStep = 0.005
)

// StockGenerator emits a random walk per ticker to Kafka, keyed by symbol
// so each symbol stays on one partition.
type StockGenerator struct {
	logger      *zap.Logger
	writer      KafkaWriter
	tickers     []string
	prices      map[string]float64
	interval    time.Duration
	rand        Rand
	clock       Clock
	seqCounters map[string]int64
}

func NewStockGenerator(
	logger *zap.Logger,
	writer KafkaWriter,
	tickers []string,
	basePrices map[string]float64,
	interval time.Duration,
	rnd Rand,
	clock Clock,
) *StockGenerator {
	prices := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		p, ok := basePrices[t]
		if !ok || p <= 0 {
			p = defaultBasePrice
		}
		prices[t] = p
	}
	return &StockGenerator{
		logger:      logger,
		writer:      writer,
		tickers:     tickers,
		prices:      prices,
		interval:    interval,
		rand:        rnd,
		clock:       clock,
		seqCounters: make(map[string]int64),
	}
}

func (sg *StockGenerator) Run(ctx context.Context) {
	sg.logger.Info("Generator Started", zap.Strings("tickers", sg.tickers), zap.Duration("interval", sg.interval))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if len(sg.tickers) == 0 {
			sg.clock.Sleep(time.Second)
			continue
		}

		update := sg.Next()
		payload, err := json.Marshal(update)
		if err != nil {
			sg.logger.Error("JSON Marshal Error", zap.Error(err))
			continue
		}

		err = sg.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(update.Symbol),
			Value: payload,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sg.logger.Error("Kafka Write Error", zap.Error(err))
		} else {
			sg.logger.Debug("Sent update", zap.String("symbol", update.Symbol), zap.Float64("price", update.Price))
		}

		sg.clock.Sleep(sg.interval)
	}
}

// Next advances one random ticker by one step.
func (sg *StockGenerator) Next() models.StockUpdate {
	symbol := sg.tickers[sg.rand.Intn(len(sg.tickers))]

	// Float64 in [0,1) maps onto a move in [-maxStep, +maxStep)
	step := (sg.rand.Float64()*2 - 1) * maxStep
	price := math.Round(sg.prices[symbol]*(1+step)*100) / 100
	sg.prices[symbol] = price
	sg.seqCounters[symbol]++

	return models.StockUpdate{
		Symbol:    symbol,
		Price:     price,
		Timestamp: sg.clock.Now().UnixMicro(),
		SeqID:     sg.seqCounters[symbol],
	}
}
