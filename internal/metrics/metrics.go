// Package metrics exposes Prometheus instrumentation and a health
// endpoint for the signal engine.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	FramesTotal  prometheus.Counter
	BarsTotal    *prometheus.CounterVec // labels: symbol
	WSReconnects prometheus.Counter
	PongsSent    prometheus.Counter
	DroppedBars  prometheus.Counter

	// Signal pipeline
	SignalsTotal *prometheus.CounterVec // labels: symbol, kind
	LockActive   *prometheus.GaugeVec   // labels: symbol
	RealizedPnL  *prometheus.GaugeVec   // labels: symbol
	OrdersTotal  *prometheus.CounterVec // labels: status
	WarmupBars   *prometheus.GaugeVec   // labels: symbol

	// Store latency
	RedisWriteDur   prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram

	// Backpressure
	RingBufOverflow  prometheus.Counter
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_frames_total",
			Help: "Total inbound frames received from the venue stream",
		}),
		BarsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_bars_total",
			Help: "Total closed bars emitted per symbol",
		}, []string{"symbol"}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_ws_reconnects_total",
			Help: "Total stream reconnection attempts",
		}),
		PongsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_pongs_sent_total",
			Help: "Total heartbeat pong frames sent",
		}),
		DroppedBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_dropped_bars_total",
			Help: "Bars dropped because a downstream channel was full",
		}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_signals_total",
			Help: "Trade signals emitted per symbol and kind",
		}, []string{"symbol", "kind"}),
		LockActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sigengine_profit_lock_active",
			Help: "Whether the profit lock currently suppresses opens (0/1)",
		}, []string{"symbol"}),
		RealizedPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sigengine_realized_pnl",
			Help: "Windowed realized P&L per symbol",
		}, []string{"symbol"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_orders_total",
			Help: "Order placement outcomes",
		}, []string{"status"}),
		WarmupBars: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sigengine_warmup_bars",
			Help: "Historical bars fed during indicator warmup",
		}, []string{"symbol"}),

		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_redis_write_duration_seconds",
			Help:    "Redis write latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigengine_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (dropped bars)",
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_fanout_drops_total",
			Help: "Bars dropped by the FanOut bus per subscriber",
		}, []string{"subscriber"}),
	}

	prometheus.MustRegister(
		m.FramesTotal,
		m.BarsTotal,
		m.WSReconnects,
		m.PongsSent,
		m.DroppedBars,
		m.SignalsTotal,
		m.LockActive,
		m.RealizedPnL,
		m.OrdersTotal,
		m.WarmupBars,
		m.RedisWriteDur,
		m.SQLiteCommitDur,
		m.RingBufOverflow,
		m.FanoutDropsTotal,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	StreamConnected bool      `json:"stream_connected"`
	LastBarTime     time.Time `json:"last_bar_time"`
	RedisConnected  bool      `json:"redis_connected"`
	SQLiteOK        bool      `json:"sqlite_ok"`
	Symbols         []string  `json:"symbols"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetStreamConnected(v bool) {
	h.mu.Lock()
	h.StreamConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastBarTime(t time.Time) {
	h.mu.Lock()
	h.LastBarTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetSymbols(symbols []string) {
	h.mu.Lock()
	h.Symbols = symbols
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.StreamConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.StreamConnected && !h.RedisConnected {
		overallStatus = "unhealthy"
	}

	barAge := ""
	if !h.LastBarTime.IsZero() {
		barAge = time.Since(h.LastBarTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		StreamConnected bool     `json:"stream_connected"`
		LastBarTime     string   `json:"last_bar_time"`
		BarAge          string   `json:"bar_age"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		Symbols         []string `json:"symbols"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		StreamConnected: h.StreamConnected,
		LastBarTime:     h.LastBarTime.Format(time.RFC3339),
		BarAge:          barAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Symbols:         h.Symbols,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
