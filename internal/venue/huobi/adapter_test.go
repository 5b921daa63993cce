package huobi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"quantenginev1/internal/stream"

	"github.com/shopspring/decimal"
)

func decimalFrom(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

type fakeSocket struct {
	mu   sync.Mutex
	sent [][]byte
	h    stream.Handlers
}

func (f *fakeSocket) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeSocket) Close() error { return nil }

func (f *fakeSocket) frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, b := range f.sent {
		out[i] = string(b)
	}
	return out
}

func newFakeFactory() (*fakeSocket, stream.Factory) {
	fs := &fakeSocket{}
	return fs, func(url string, h stream.Handlers) (stream.Socket, error) {
		fs.mu.Lock()
		fs.h = h
		fs.mu.Unlock()
		if h.OnOpen != nil {
			h.OnOpen(fs)
		}
		return fs, nil
	}
}

func newTestAdapter(t *testing.T, cfg Config) (*Adapter, *fakeSocket, context.CancelFunc) {
	t.Helper()
	fs, factory := newFakeFactory()
	if cfg.URL == "" {
		cfg.URL = "wss://test/ws"
	}
	a := New(cfg, factory, stream.Options{
		ReconnectDelay: 10 * time.Millisecond,
		ReplayJitter:   time.Millisecond,
		InboundBuffer:  64,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := a.Connect(ctx); err != nil {
		cancel()
		t.Fatalf("connect: %v", err)
	}
	return a, fs, cancel
}

func gzipFrame(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(raw)
	zw.Close()
	return buf.Bytes()
}

func klineFrame(t *testing.T, symbol string, id int64, close float64) []byte {
	return gzipFrame(t, map[string]any{
		"ch": "market." + symbol + ".kline.1min",
		"ts": id * 1000,
		"tick": map[string]any{
			"id": id, "open": close - 1, "close": close,
			"low": close - 2, "high": close + 1, "vol": 10.5,
		},
	})
}

func TestAdapter_AuthFrameSentFirstOnOpen(t *testing.T) {
	a, fs, cancel := newTestAdapter(t, Config{
		Host: "api.huobi.pro", Path: "/ws/v2",
		AccessKey: "ak", SecretKey: "sk",
	})
	defer cancel()
	defer a.Close()

	a.SubscribeKline("btcusdt", "1min")

	frames := fs.frames()
	if len(frames) < 2 {
		t.Fatalf("expected auth + subscribe, got %v", frames)
	}
	if !strings.Contains(frames[0], `"op":"auth"`) {
		t.Fatalf("first frame must be auth, got %s", frames[0])
	}
	if !strings.Contains(frames[1], "market.btcusdt.kline.1min") {
		t.Fatalf("second frame must be the subscription, got %s", frames[1])
	}
}

func TestAdapter_KlineViewEmitsOnlyClosedBars(t *testing.T) {
	a, fs, cancel := newTestAdapter(t, Config{})
	defer cancel()
	defer a.Close()

	bars := a.SubscribeKline("btcusdt", "1min")

	// Three revisions of bar 100, then bar 160 opens.
	fs.h.OnMessage(klineFrame(t, "btcusdt", 100, 10.0))
	fs.h.OnMessage(klineFrame(t, "btcusdt", 100, 11.0))
	fs.h.OnMessage(klineFrame(t, "btcusdt", 100, 12.0))
	fs.h.OnMessage(klineFrame(t, "btcusdt", 160, 13.0))

	select {
	case bar := <-bars:
		if bar.ID != 100 {
			t.Fatalf("expected closed bar 100, got %d", bar.ID)
		}
		// The final revision supersedes earlier ones.
		if !bar.Close.Equal(decimalFrom(t, "12")) {
			t.Fatalf("expected close=12 from last revision, got %s", bar.Close)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for closed bar")
	}

	select {
	case bar := <-bars:
		t.Fatalf("forming bar must not be emitted, got %d", bar.ID)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestAdapter_HistoryReplacesFormingBar(t *testing.T) {
	a, fs, cancel := newTestAdapter(t, Config{})
	defer cancel()
	defer a.Close()

	a.SubscribeKline("btcusdt", "1min")
	fs.h.OnMessage(klineFrame(t, "btcusdt", 100, 10.0))
	fs.h.OnMessage(klineFrame(t, "btcusdt", 100, 11.0))
	fs.h.OnMessage(klineFrame(t, "btcusdt", 160, 13.0))

	waitCond(t, "history of 2 bars", func() bool { return len(a.History("btcusdt", 10)) == 2 })
	hist := a.History("btcusdt", 10)
	if hist[0].ID != 100 || !hist[0].Close.Equal(decimalFrom(t, "11")) {
		t.Fatalf("revision must replace, not append: %+v", hist[0])
	}
	if hist[1].ID != 160 {
		t.Fatalf("expected forming bar 160 last, got %d", hist[1].ID)
	}
}

func TestAdapter_DepthViewDeliversBookSnapshot(t *testing.T) {
	a, fs, cancel := newTestAdapter(t, Config{})
	defer cancel()
	defer a.Close()

	depths := a.SubscribeDepth("btcusdt", "step6")

	if frames := fs.frames(); len(frames) != 1 || !strings.Contains(frames[0], "market.btcusdt.depth.step6") {
		t.Fatalf("expected the depth subscribe frame, got %v", frames)
	}

	fs.h.OnMessage(gzipFrame(t, map[string]any{
		"ch": "market.btcusdt.depth.step6",
		"ts": int64(1700000000000),
		"tick": map[string]any{
			"bids": [][]float64{{100.1, 2}, {99.9, 1.5}},
			"asks": [][]float64{{100.3, 5}},
		},
	}))

	select {
	case d := <-depths:
		if d.Symbol != "btcusdt" || d.TS != 1700000000000 {
			t.Fatalf("unexpected snapshot header: %+v", d)
		}
		if len(d.Bids) != 2 || len(d.Asks) != 1 {
			t.Fatalf("expected 2 bids and 1 ask, got %d/%d", len(d.Bids), len(d.Asks))
		}
		if !d.Bids[0].Price.Equal(decimalFrom(t, "100.1")) || !d.Bids[0].Size.Equal(decimalFrom(t, "2")) {
			t.Fatalf("best bid: %s @ %s", d.Bids[0].Size, d.Bids[0].Price)
		}
		if !d.Bids[1].Price.Equal(decimalFrom(t, "99.9")) || !d.Bids[1].Size.Equal(decimalFrom(t, "1.5")) {
			t.Fatalf("second bid: %s @ %s", d.Bids[1].Size, d.Bids[1].Price)
		}
		if !d.Asks[0].Price.Equal(decimalFrom(t, "100.3")) || !d.Asks[0].Size.Equal(decimalFrom(t, "5")) {
			t.Fatalf("best ask: %s @ %s", d.Asks[0].Size, d.Asks[0].Price)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for depth snapshot")
	}

	// A short level (price only) is skipped, the rest still arrives.
	fs.h.OnMessage(gzipFrame(t, map[string]any{
		"ch": "market.btcusdt.depth.step6",
		"ts": int64(1700000001000),
		"tick": map[string]any{
			"bids": [][]float64{{100.2}},
			"asks": [][]float64{{100.4, 3}},
		},
	}))

	select {
	case d := <-depths:
		if len(d.Bids) != 0 || len(d.Asks) != 1 {
			t.Fatalf("expected the truncated bid dropped, got %d/%d", len(d.Bids), len(d.Asks))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second depth snapshot")
	}
}

func TestAdapter_PingAnsweredImmediately(t *testing.T) {
	a, fs, cancel := newTestAdapter(t, Config{})
	defer cancel()
	defer a.Close()

	fs.h.OnMessage(gzipFrame(t, map[string]int64{"ping": 42}))

	waitCond(t, "pong", func() bool {
		for _, f := range fs.frames() {
			if strings.Contains(f, `"pong":42`) {
				return true
			}
		}
		return false
	})
}

func TestAdapter_PeriodicPongUntilNextPing(t *testing.T) {
	a, fs, cancel := newTestAdapter(t, Config{PongInterval: 15 * time.Millisecond})
	defer cancel()
	defer a.Close()

	fs.h.OnMessage(gzipFrame(t, map[string]int64{"ping": 7}))

	waitCond(t, "repeated pongs", func() bool {
		count := 0
		for _, f := range fs.frames() {
			if strings.Contains(f, `"pong":7`) {
				count++
			}
		}
		return count >= 3
	})
}

func TestAdapter_MalformedFrameIsDroppedStreamContinues(t *testing.T) {
	a, fs, cancel := newTestAdapter(t, Config{})
	defer cancel()
	defer a.Close()

	drops := 0
	a.OnProtocolError = func() { drops++ }

	bars := a.SubscribeKline("btcusdt", "1min")

	fs.h.OnMessage([]byte("{not json"))
	fs.h.OnMessage(klineFrame(t, "btcusdt", 100, 10.0))
	fs.h.OnMessage(klineFrame(t, "btcusdt", 160, 11.0))

	select {
	case bar := <-bars:
		if bar.ID != 100 {
			t.Fatalf("expected bar 100 after bad frame, got %d", bar.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("stream must continue after a malformed frame")
	}
	if drops != 1 {
		t.Fatalf("expected 1 protocol error, got %d", drops)
	}
}

func TestAdapter_CloseIsIdempotent(t *testing.T) {
	a, _, cancel := newTestAdapter(t, Config{})
	defer cancel()

	a.SubscribeKline("btcusdt", "1min")
	a.Close()
	a.Close()
}

func TestInflate_GzipRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(`{"ping":1}`))
	zw.Close()

	out, err := Inflate(buf.Bytes())
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if string(out) != `{"ping":1}` {
		t.Fatalf("unexpected payload %q", out)
	}
}

func waitCond(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
