package huobi

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"quantenginev1/internal/bus"
	"quantenginev1/internal/model"
	"quantenginev1/internal/stream"
	"quantenginev1/internal/window"
)

const defaultPongInterval = 6 * time.Second

// Config holds the venue connection parameters.
type Config struct {
	URL  string // e.g. "wss://api.huobi.pro/ws"
	Host string // e.g. "api.huobi.pro", used in the auth signature
	Path string // e.g. "/ws/v2"

	AccessKey string
	SecretKey string

	// PongInterval is the cadence of periodic pongs between inbound
	// pings. Defaults to 6s.
	PongInterval time.Duration

	// HistoryBars bounds the per-symbol bar history window.
	// Defaults to 600.
	HistoryBars int
}

// klineView de-duplicates consecutive frames carrying the same bar id
// (the venue resends the forming bar) and emits only the previous,
// now-closed bar when a new id arrives.
type klineView struct {
	last *model.Bar
	fan  *bus.FanOut[model.Bar]
}

// Adapter frames the Huobi websocket protocol over a stream.Client:
// it signs and sends the auth frame on every (re)open, inflates inbound
// frames, answers heartbeats, and routes data frames to per-channel
// subscription views. Transport failures are left to the stream
// supervisor; the adapter holds no retry logic of its own.
type Adapter struct {
	cfg    Config
	client *stream.Client

	mu        sync.Mutex
	klines    map[string]*klineView // channel -> view
	depths    map[string]*bus.FanOut[model.Depth]
	history   *window.SymbolTable[model.Bar]
	pingCh    chan int64
	done      chan struct{}
	closeOnce sync.Once

	// Metrics hooks (optional).
	OnProtocolError func()
	OnBar           func()
	OnPong          func()
}

// New creates an Adapter over the given socket factory.
func New(cfg Config, factory stream.Factory, opts stream.Options) *Adapter {
	if cfg.PongInterval <= 0 {
		cfg.PongInterval = defaultPongInterval
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = 600
	}

	a := &Adapter{
		cfg:     cfg,
		client:  stream.NewClient(cfg.URL, factory, opts),
		klines:  make(map[string]*klineView),
		depths:  make(map[string]*bus.FanOut[model.Depth]),
		history: window.NewSymbolTable[model.Bar](cfg.HistoryBars),
		pingCh:  make(chan int64, 8),
		done:    make(chan struct{}),
	}
	a.client.OnSessionOpen = a.sessionOpenFrames
	return a
}

// Client exposes the underlying stream client (reconnect hooks, state).
func (a *Adapter) Client() *stream.Client { return a.client }

// sessionOpenFrames builds the frames written the moment the transport
// opens. Auth goes first; the replayed subscriptions follow with jitter
// from the stream supervisor.
func (a *Adapter) sessionOpenFrames() [][]byte {
	if a.cfg.AccessKey == "" || a.cfg.SecretKey == "" {
		return nil
	}
	return [][]byte{AuthFrame(a.cfg.AccessKey, a.cfg.SecretKey, a.cfg.Host, a.cfg.Path, time.Now())}
}

// Connect dials the venue and starts the routing and heartbeat loops.
func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.client.Connect(); err != nil {
		return err
	}
	go a.route(ctx, a.client.Inbound())
	go a.heartbeat(ctx)
	return nil
}

// SubscribeKline subscribes to the symbol's kline channel and returns a
// view that emits only closed bars.
func (a *Adapter) SubscribeKline(symbol, interval string) <-chan model.Bar {
	topic := "market." + symbol + ".kline." + interval

	a.mu.Lock()
	view, ok := a.klines[topic]
	if !ok {
		view = &klineView{fan: bus.New[model.Bar](256)}
		a.klines[topic] = view
	}
	a.mu.Unlock()

	if !ok {
		frame, _ := json.Marshal(map[string]string{"sub": topic, "id": topic})
		a.client.Subscribe(stream.Record{Kind: "kline", Symbol: symbol, Params: interval, Frame: frame})
	}
	return view.fan.Subscribe()
}

// UnsubscribeKline sends the unsubscribe frame, prunes the replay
// record and completes the channel's views.
func (a *Adapter) UnsubscribeKline(symbol, interval string) {
	topic := "market." + symbol + ".kline." + interval
	rec := stream.Record{Kind: "kline", Symbol: symbol, Params: interval}

	a.mu.Lock()
	view, ok := a.klines[topic]
	delete(a.klines, topic)
	a.mu.Unlock()
	if !ok {
		return
	}

	frame, _ := json.Marshal(map[string]string{"unsub": topic, "id": topic})
	a.client.Unsubscribe(rec.Topic(), frame)
	view.fan.Close()
}

// SubscribeDepth subscribes to the symbol's depth channel and returns a
// view of order book snapshots.
func (a *Adapter) SubscribeDepth(symbol, depthType string) <-chan model.Depth {
	topic := "market." + symbol + ".depth." + depthType

	a.mu.Lock()
	fan, ok := a.depths[topic]
	if !ok {
		fan = bus.New[model.Depth](64)
		a.depths[topic] = fan
	}
	a.mu.Unlock()

	if !ok {
		frame, _ := json.Marshal(map[string]string{"sub": topic, "id": topic})
		a.client.Subscribe(stream.Record{Kind: "depth", Symbol: symbol, Params: depthType, Frame: frame})
	}
	return fan.Subscribe()
}

// UnsubscribeDepth mirrors UnsubscribeKline for depth channels.
func (a *Adapter) UnsubscribeDepth(symbol, depthType string) {
	topic := "market." + symbol + ".depth." + depthType
	rec := stream.Record{Kind: "depth", Symbol: symbol, Params: depthType}

	a.mu.Lock()
	fan, ok := a.depths[topic]
	delete(a.depths, topic)
	a.mu.Unlock()
	if !ok {
		return
	}

	frame, _ := json.Marshal(map[string]string{"unsub": topic, "id": topic})
	a.client.Unsubscribe(rec.Topic(), frame)
	fan.Close()
}

// History returns the most recent min(limit, stored) bars for a symbol
// in chronological order.
func (a *Adapter) History(symbol string, limit int) []model.Bar {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Find(symbol, limit)
}

// route is the single reader of the shared inbound stream. Malformed
// frames are dropped and logged; the stream continues.
func (a *Adapter) route(ctx context.Context, inbound <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case raw, ok := <-inbound:
			if !ok {
				return
			}
			a.handleFrame(raw)
		}
	}
}

func (a *Adapter) handleFrame(raw []byte) {
	data, err := Inflate(raw)
	if err != nil {
		// Some control frames arrive uncompressed.
		data = raw
	}

	env, err := parseEnvelope(data)
	if err != nil {
		log.Printf("[huobi] dropping undecodable frame: %v", err)
		if a.OnProtocolError != nil {
			a.OnProtocolError()
		}
		return
	}

	switch {
	case env.Ping != 0:
		a.handlePing(env.Ping)
	case env.Subbed != "" || env.Unsub != "":
		log.Printf("[huobi] ack: subbed=%q unsubbed=%q status=%s", env.Subbed, env.Unsub, env.Status)
	case env.ErrCode != "":
		log.Printf("[huobi] venue error %s: %s", env.ErrCode, env.ErrMsg)
	case env.channel() != "" && env.Tick != nil:
		a.handleTick(env)
	}
}

func (a *Adapter) handleTick(env *envelope) {
	channel := env.channel()
	symbol := symbolOf(channel)

	a.mu.Lock()
	view, isKline := a.klines[channel]
	depthFan, isDepth := a.depths[channel]
	a.mu.Unlock()

	switch {
	case isKline:
		var t klineTick
		if err := json.Unmarshal(env.Tick, &t); err != nil {
			log.Printf("[huobi] dropping malformed kline tick on %s: %v", channel, err)
			if a.OnProtocolError != nil {
				a.OnProtocolError()
			}
			return
		}
		a.onKline(view, barFromTick(symbol, t))
	case isDepth:
		var t depthTick
		if err := json.Unmarshal(env.Tick, &t); err != nil {
			log.Printf("[huobi] dropping malformed depth tick on %s: %v", channel, err)
			if a.OnProtocolError != nil {
				a.OnProtocolError()
			}
			return
		}
		depthFan.Publish(depthFromTick(symbol, env.TS, t))
	}
}

// onKline applies the pairwise close rule: a revision of the forming
// bar (same id) supersedes the held bar; a new id closes the held bar
// and emits it.
func (a *Adapter) onKline(view *klineView, bar model.Bar) {
	a.mu.Lock()
	switch {
	case view.last == nil:
		held := bar
		view.last = &held
		a.history.Upsert(bar.Symbol, bar)
	case view.last.ID == bar.ID:
		*view.last = bar
		if q := a.history.Queue(bar.Symbol); q != nil {
			q.ReplaceLast(bar)
		}
	default:
		closed := *view.last
		held := bar
		view.last = &held
		a.history.Upsert(bar.Symbol, bar)
		a.mu.Unlock()

		view.fan.Publish(closed)
		if a.OnBar != nil {
			a.OnBar()
		}
		return
	}
	a.mu.Unlock()
}

// handlePing answers immediately and nudges the periodic pong loop.
func (a *Adapter) handlePing(id int64) {
	a.sendPong(id)
	select {
	case a.pingCh <- id:
	default:
	}
}

func (a *Adapter) sendPong(id int64) {
	frame, _ := json.Marshal(map[string]int64{"pong": id})
	a.client.Send(frame)
	if a.OnPong != nil {
		a.OnPong()
	}
}

// heartbeat re-sends the last pong on a fixed period until the next
// ping arrives. It never touches the data path.
func (a *Adapter) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PongInterval)
	defer ticker.Stop()

	var lastPing int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case id := <-a.pingCh:
			lastPing = id
			ticker.Reset(a.cfg.PongInterval)
		case <-ticker.C:
			if lastPing != 0 {
				a.sendPong(lastPing)
			}
		}
	}
}

// Close tears down the adapter: stream client, routing loop and all
// channel views. Idempotent.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
		a.client.Close()

		a.mu.Lock()
		for topic, view := range a.klines {
			view.fan.Close()
			delete(a.klines, topic)
		}
		for topic, fan := range a.depths {
			fan.Close()
			delete(a.depths, topic)
		}
		a.mu.Unlock()
	})
}
