// Package redis persists closed bars and trade signals to Redis:
// XADD streams for history, SET latest for point reads, and PUBLISH
// for live subscribers, all pipelined per event.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"quantenginev1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: ~10 days of 1min bars.
	barStreamMaxLen    = 15000
	signalStreamMaxLen = 5000
	defaultLatestTTL   = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Venue    string // key namespace, e.g. "huobi"
	Interval string // bar interval label, e.g. "1min"
}

// Writer writes bars and signals to Redis.
type Writer struct {
	client   *goredis.Client
	venue    string
	interval string

	// OnWrite is an optional metrics hook observing pipeline latency.
	OnWrite func(time.Duration)
}

func (w *Writer) exec(ctx context.Context, pipe goredis.Pipeliner) error {
	start := time.Now()
	_, err := pipe.Exec(ctx)
	if w.OnWrite != nil {
		w.OnWrite(time.Since(start))
	}
	return err
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client, venue: cfg.Venue, interval: cfg.Interval}, nil
}

// Run reads closed bars from barCh and writes them to Redis.
// Blocks until ctx is cancelled or barCh is closed.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			w.WriteBar(ctx, bar)
		}
	}
}

// RunSignals reads trade signals and writes them to Redis.
// Blocks until ctx is cancelled or the channel is closed.
func (w *Writer) RunSignals(ctx context.Context, sigCh <-chan model.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			w.WriteSignal(ctx, sig)
		}
	}
}

// WriteBar performs pipelined writes for one closed bar:
// SET latest with TTL, XADD to the bar stream, PUBLISH for live readers.
func (w *Writer) WriteBar(ctx context.Context, bar model.Bar) {
	latestKey := fmt.Sprintf("bar:%s:latest:%s:%s", w.interval, w.venue, bar.Symbol)
	streamKey := fmt.Sprintf("bar:%s:%s:%s", w.interval, w.venue, bar.Symbol)
	pubsubCh := fmt.Sprintf("pub:bar:%s:%s:%s", w.interval, w.venue, bar.Symbol)
	jsonData := string(bar.JSON())

	pipe := w.client.Pipeline()
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: barStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})
	pipe.Publish(ctx, pubsubCh, jsonData)

	if err := w.exec(ctx, pipe); err != nil {
		log.Printf("[redis] bar pipeline error for %s/%d: %v", bar.Symbol, bar.ID, err)
	}
}

// WriteSignal persists one trade signal: XADD + SET latest + PUBLISH.
func (w *Writer) WriteSignal(ctx context.Context, sig model.Signal) {
	streamKey := fmt.Sprintf("signal:%s:%s", w.venue, sig.Symbol)
	latestKey := fmt.Sprintf("signal:latest:%s:%s", w.venue, sig.Symbol)
	pubsubCh := fmt.Sprintf("pub:signal:%s:%s", w.venue, sig.Symbol)
	jsonData := string(sig.JSON())

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: signalStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, pubsubCh, jsonData)

	if err := w.exec(ctx, pipe); err != nil {
		log.Printf("[redis] signal pipeline error for %s %s: %v", sig.Symbol, sig.Kind, err)
	}
}

// WriteBarBatch writes multiple bars in a single pipeline, one network
// roundtrip for warmup backfills.
func (w *Writer) WriteBarBatch(ctx context.Context, bars []model.Bar) {
	if len(bars) == 0 {
		return
	}

	pipe := w.client.Pipeline()
	for i := range bars {
		bar := &bars[i]
		streamKey := fmt.Sprintf("bar:%s:%s:%s", w.interval, w.venue, bar.Symbol)
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: streamKey,
			MaxLen: barStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(bar.JSON())},
		})
	}

	if err := w.exec(ctx, pipe); err != nil {
		log.Printf("[redis] bar batch pipeline error (%d bars): %v", len(bars), err)
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
