package huobi

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"quantenginev1/internal/model"

	"github.com/shopspring/decimal"
)

// Inflate decompresses a raw wire frame. The venue deflates payloads;
// depending on endpoint the framing is gzip or raw zlib, so both are
// tried before giving up, with bare DEFLATE as a last resort.
func Inflate(raw []byte) ([]byte, error) {
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("huobi: gzip reader: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	}
	if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
		defer zr.Close()
		return io.ReadAll(zr)
	}
	fr := flate.NewReader(bytes.NewReader(raw))
	defer fr.Close()
	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("huobi: inflate: %w", err)
	}
	return out, nil
}

// envelope is the post-inflation wire message shape. The ch/topic
// discriminator routes data frames to the matching channel view.
type envelope struct {
	Ch      string          `json:"ch"`
	Topic   string          `json:"topic"`
	Ping    int64           `json:"ping"`
	Subbed  string          `json:"subbed"`
	Unsub   string          `json:"unsubbed"`
	Status  string          `json:"status"`
	ErrCode string          `json:"err-code"`
	ErrMsg  string          `json:"err-msg"`
	Op      string          `json:"op"`
	TS      int64           `json:"ts"`
	Tick    json.RawMessage `json:"tick"`
}

// channel returns whichever discriminator field is set.
func (e *envelope) channel() string {
	if e.Ch != "" {
		return e.Ch
	}
	return e.Topic
}

type klineTick struct {
	ID    int64           `json:"id"`
	Open  decimal.Decimal `json:"open"`
	Close decimal.Decimal `json:"close"`
	Low   decimal.Decimal `json:"low"`
	High  decimal.Decimal `json:"high"`
	Vol   decimal.Decimal `json:"vol"`
}

type depthTick struct {
	Bids [][]decimal.Decimal `json:"bids"`
	Asks [][]decimal.Decimal `json:"asks"`
}

// parseEnvelope decodes one inflated frame.
func parseEnvelope(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("huobi: decode frame: %w", err)
	}
	return &env, nil
}

// symbolOf extracts the instrument from a "market.<symbol>.<kind>..."
// channel name, or "" when the shape is unexpected.
func symbolOf(channel string) string {
	parts := strings.Split(channel, ".")
	if len(parts) < 3 || parts[0] != "market" {
		return ""
	}
	return parts[1]
}

func barFromTick(symbol string, t klineTick) model.Bar {
	return model.Bar{
		Symbol: symbol,
		ID:     t.ID,
		Open:   t.Open,
		High:   t.High,
		Low:    t.Low,
		Close:  t.Close,
		Volume: t.Vol,
	}
}

func depthFromTick(symbol string, ts int64, t depthTick) model.Depth {
	d := model.Depth{Symbol: symbol, TS: ts}
	for _, lvl := range t.Bids {
		if len(lvl) >= 2 {
			d.Bids = append(d.Bids, model.DepthLevel{Price: lvl[0], Size: lvl[1]})
		}
	}
	for _, lvl := range t.Asks {
		if len(lvl) >= 2 {
			d.Asks = append(d.Asks, model.DepthLevel{Price: lvl[0], Size: lvl[1]})
		}
	}
	return d
}
