package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"quantenginev1/internal/model"

	"github.com/shopspring/decimal"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := New(WriterConfig{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Venue:  "huobi",
	})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func testBar(id int64, close string) model.Bar {
	c, _ := decimal.NewFromString(close)
	return model.Bar{
		Symbol: "btcusdt", ID: id,
		Open: c, High: c, Low: c, Close: c,
		Volume: decimal.NewFromInt(1),
	}
}

func TestWriter_RunFlushesAndLastBarID(t *testing.T) {
	w := newTestWriter(t)

	barCh := make(chan model.Bar, 3)
	barCh <- testBar(100, "10")
	barCh <- testBar(160, "11")
	barCh <- testBar(220, "12")
	close(barCh)
	w.Run(context.Background(), barCh)

	id, err := w.LastBarID("btcusdt")
	if err != nil {
		t.Fatalf("last bar id: %v", err)
	}
	if id != 220 {
		t.Fatalf("expected newest bar id 220, got %d", id)
	}

	// A symbol with no rows reads as 0, not an error.
	id, err = w.LastBarID("ethusdt")
	if err != nil || id != 0 {
		t.Fatalf("expected (0, nil) for unknown symbol, got (%d, %v)", id, err)
	}
}

func TestWriter_RunSignalsDrainsChannel(t *testing.T) {
	w := newTestWriter(t)

	sigCh := make(chan model.Signal, 2)
	sigCh <- model.Signal{
		Symbol: "btcusdt", Kind: model.OpenLong, BarID: 100,
		Price: decimal.NewFromInt(10),
	}
	sigCh <- model.Signal{
		Symbol: "btcusdt", Kind: model.CloseLong, BarID: 160,
		Price: decimal.NewFromInt(12), Delta: decimal.NewFromInt(2),
	}
	close(sigCh)
	w.RunSignals(context.Background(), sigCh)

	var count int
	if err := w.db.QueryRow(
		`SELECT COUNT(*) FROM signals WHERE venue = ? AND symbol = ?`,
		"huobi", "btcusdt",
	).Scan(&count); err != nil {
		t.Fatalf("count signals: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stored signals, got %d", count)
	}

	var kind string
	if err := w.db.QueryRow(
		`SELECT kind FROM signals WHERE bar_id = 160`,
	).Scan(&kind); err != nil {
		t.Fatalf("read signal: %v", err)
	}
	if kind != string(model.CloseLong) {
		t.Fatalf("expected CLOSE_LONG at bar 160, got %s", kind)
	}
}
