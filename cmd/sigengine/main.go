// cmd/sigengine is the live signal engine: it streams klines from
// Huobi, warms indicators from REST history, runs the per-symbol
// position state machine, and fans bars and signals out to Redis,
// SQLite, notifications, and the order executor.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quantenginev1/config"
	"quantenginev1/internal/bus"
	"quantenginev1/internal/engine"
	"quantenginev1/internal/execution"
	"quantenginev1/internal/indicator"
	"quantenginev1/internal/ledger"
	"quantenginev1/internal/logger"
	"quantenginev1/internal/metrics"
	"quantenginev1/internal/model"
	"quantenginev1/internal/notification"
	"quantenginev1/internal/ringbuf"
	redisstore "quantenginev1/internal/store/redis"
	sqlitestore "quantenginev1/internal/store/sqlite"
	"quantenginev1/internal/stream"
	"quantenginev1/internal/venue/huobi"
)

// paperPlacer logs orders without touching the venue. Swapped for a
// real venue client in live deployments.
type paperPlacer struct {
	seq atomic.Int64
}

func (p *paperPlacer) PlaceOrder(_ context.Context, o execution.Order) (string, error) {
	id := fmt.Sprintf("paper-%d", p.seq.Add(1))
	log.Printf("[paper] %s %s/%s qty=%s price=%s id=%s", o.Symbol, o.Side, o.Offset, o.Quantity, o.Price, id)
	return id, nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if err := godotenv.Load(); err == nil {
		log.Printf("[main] loaded .env")
	}
	logger.Init("sigengine", slog.LevelInfo)

	cfg := config.Load()
	strat, err := config.LoadStrategy(cfg.StrategyPath)
	if err != nil {
		log.Fatalf("[main] strategy config: %v", err)
	}
	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[main] no symbols configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Observability
	m := metrics.New()
	health := metrics.NewHealthStatus()
	health.SetSymbols(symbols)
	msrv := metrics.NewServer(cfg.MetricsAddr, health)
	msrv.Start()

	// Stores
	rdb, err := redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Venue:    "huobi",
		Interval: cfg.KlineInterval,
	})
	if err != nil {
		log.Fatalf("[main] redis: %v", err)
	}
	defer rdb.Close()

	sq, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath, Venue: "huobi"})
	if err != nil {
		log.Fatalf("[main] sqlite: %v", err)
	}
	defer sq.Close()

	health.StartLivenessChecker(ctx, rdb.Client(), sq.DB(), 10*time.Second)

	// Notifications
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	notifier := notification.NewMulti(backends...)

	// Venue adapter
	adapter := huobi.New(huobi.Config{
		URL:         cfg.WSURL,
		Host:        cfg.WSHost,
		Path:        cfg.WSPath,
		AccessKey:   cfg.HuobiAccessKey,
		SecretKey:   cfg.HuobiSecretKey,
		HistoryBars: strat.HistoryBars,
	}, stream.Dial, stream.Options{})
	adapter.OnPong = m.PongsSent.Inc
	adapter.Client().OnReconnect = func() {
		m.WSReconnects.Inc()
		notifier.Send(ctx, notification.Reconnected("huobi", 1))
	}
	sq.OnCommit = func(took time.Duration) {
		m.SQLiteCommitDur.Observe(took.Seconds())
	}
	rdb.OnWrite = func(took time.Duration) {
		m.RedisWriteDur.Observe(took.Seconds())
	}

	// Frame counter taps the shared inbound stream.
	go func() {
		for range adapter.Client().Inbound() {
			m.FramesTotal.Inc()
		}
	}()

	if err := adapter.Connect(ctx); err != nil {
		log.Fatalf("[main] venue connect: %v", err)
	}
	defer adapter.Close()
	health.SetStreamConnected(true)

	// Executor consumes the merged signal stream.
	execCh := make(chan model.Signal, 256)
	executor := execution.New(&paperPlacer{}, strat.OrderQty, 256)
	go executor.Run(ctx, execCh)
	go func() {
		for res := range executor.Results() {
			m.OrdersTotal.WithLabelValues(res.Status).Inc()
		}
	}()

	history := huobi.NewHistoryClient(cfg.RESTBase)

	var engines []*engine.Engine
	for _, symbol := range symbols {
		eng := startSymbol(ctx, symbolDeps{
			symbol:   symbol,
			interval: cfg.KlineInterval,
			strat:    strat,
			adapter:  adapter,
			history:  history,
			metrics:  m,
			health:   health,
			redis:    rdb,
			sqlite:   sq,
			notifier: notifier,
			execCh:   execCh,
		})
		engines = append(engines, eng)
	}

	log.Printf("[main] sigengine running, %d symbol(s)", len(symbols))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("[main] shutting down")
	for _, eng := range engines {
		eng.Close()
	}
	adapter.Close()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	msrv.Stop(shutdownCtx)
}

type symbolDeps struct {
	symbol   string
	interval string
	strat    config.Strategy
	adapter  *huobi.Adapter
	history  *huobi.HistoryClient
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus
	redis    *redisstore.Writer
	sqlite   *sqlitestore.Writer
	notifier notification.Notifier
	execCh   chan<- model.Signal
}

// startSymbol wires one symbol's pipeline: kline view, SPSC ring,
// bar fan-out to engine and stores, then the signal consumers.
func startSymbol(ctx context.Context, d symbolDeps) *engine.Engine {
	bars := d.adapter.SubscribeKline(d.symbol, d.interval)

	ring := ringbuf.New(1024)
	fan := bus.New[model.Bar](256)
	fan.OnDrop = func(i int) {
		d.metrics.FanoutDropsTotal.WithLabelValues(fmt.Sprintf("%s-%d", d.symbol, i)).Inc()
		d.metrics.DroppedBars.Inc()
	}

	engineCh := fan.Subscribe()
	redisCh := fan.Subscribe()
	sqliteCh := fan.Subscribe()
	go d.redis.Run(ctx, redisCh)
	go d.sqlite.Run(ctx, sqliteCh)

	// Adapter view -> ring.
	upstreamDone := make(chan struct{})
	go func() {
		defer close(upstreamDone)
		for bar := range bars {
			if !ring.Push(bar) {
				d.metrics.RingBufOverflow.Inc()
			}
		}
	}()

	// Ring -> fan-out. Spins down when the upstream view completes
	// and the ring is drained.
	go func() {
		defer fan.Close()
		for {
			if bar, ok := ring.Pop(); ok {
				d.metrics.BarsTotal.WithLabelValues(d.symbol).Inc()
				d.health.SetLastBarTime(time.Now())
				fan.Publish(bar)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-upstreamDone:
				if ring.Len() == 0 {
					return
				}
			default:
			}
			time.Sleep(time.Millisecond)
		}
	}()

	ind := indicator.NewMACD(d.strat.MACD.Fast, d.strat.MACD.Slow, d.strat.MACD.Signal)
	eng := engine.New(engine.Config{
		Symbol:     d.symbol,
		Upper:      d.strat.Upper,
		Lower:      d.strat.Lower,
		LockWindow: d.strat.LockWindow,
	}, ind, func() {
		d.adapter.UnsubscribeKline(d.symbol, d.interval)
	})

	// Indicator warmup from REST history before live bars flow.
	warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
	hist, err := d.history.Klines(warmCtx, d.symbol, d.interval, d.strat.HistoryBars)
	warmCancel()
	if err != nil {
		log.Printf("[main] %s warmup fetch failed, starting cold: %v", d.symbol, err)
	} else {
		eng.Warmup(hist)
		d.metrics.WarmupBars.WithLabelValues(d.symbol).Set(float64(len(hist)))
		log.Printf("[main] %s warmed up with %d bars", d.symbol, len(hist))
		backfillBars(ctx, d, hist)
	}

	go eng.Run(ctx, engineCh)
	go consumeSignals(ctx, d, eng)
	return eng
}

// backfillBars pushes the warmup history into the Redis bar stream in
// one pipeline. Bars persisted by a previous run already made it into
// the stream, so only the gap past the newest stored bar is written.
func backfillBars(ctx context.Context, d symbolDeps, hist []model.Bar) {
	lastID, err := d.sqlite.LastBarID(d.symbol)
	if err != nil {
		log.Printf("[main] %s last stored bar lookup: %v", d.symbol, err)
	}

	var gap []model.Bar
	for _, bar := range hist {
		if bar.ID > lastID {
			gap = append(gap, bar)
		}
	}
	if len(gap) == 0 {
		return
	}
	d.redis.WriteBarBatch(ctx, gap)
	log.Printf("[main] %s backfilled %d bars past id %d", d.symbol, len(gap), lastID)
}

// consumeSignals drains one engine's signal stream into the ledger,
// stores, notifier, executor, and metrics.
func consumeSignals(ctx context.Context, d symbolDeps, eng *engine.Engine) {
	book := ledger.NewBook(d.symbol, d.strat.MaxOpen, d.strat.PnLWindow)

	redisSig := make(chan model.Signal, 64)
	sqliteSig := make(chan model.Signal, 64)
	go d.redis.RunSignals(ctx, redisSig)
	go d.sqlite.RunSignals(ctx, sqliteSig)
	defer close(redisSig)
	defer close(sqliteSig)

	for sig := range eng.Signals() {
		d.metrics.SignalsTotal.WithLabelValues(sig.Symbol, string(sig.Kind)).Inc()
		if eng.Lock().Locked() {
			d.metrics.LockActive.WithLabelValues(sig.Symbol).Set(1)
		} else {
			d.metrics.LockActive.WithLabelValues(sig.Symbol).Set(0)
		}

		if res, realized := book.Apply(sig, d.strat.OrderQty); realized {
			total, _ := book.RealizedSum().Float64()
			d.metrics.RealizedPnL.WithLabelValues(sig.Symbol).Set(total)
			if err := d.sqlite.InsertPnL(sig.Symbol, res.LastDelta, res.Sum); err != nil {
				log.Printf("[main] %s pnl insert: %v", sig.Symbol, err)
			}
		}

		select {
		case redisSig <- sig:
		case <-ctx.Done():
			return
		}
		select {
		case sqliteSig <- sig:
		case <-ctx.Done():
			return
		}
		d.notifier.Send(ctx, notification.FromSignal(sig))

		select {
		case d.execCh <- sig:
		case <-ctx.Done():
			return
		}
	}
}
