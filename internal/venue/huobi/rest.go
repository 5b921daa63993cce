package huobi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"quantenginev1/internal/model"
)

const defaultRESTBase = "https://api.huobi.pro"

// HistoryClient fetches historical klines over REST, used to warm up
// indicators before the live stream takes over.
type HistoryClient struct {
	base   string
	client *http.Client
}

// NewHistoryClient creates a HistoryClient. base defaults to the
// production endpoint when empty.
func NewHistoryClient(base string) *HistoryClient {
	if base == "" {
		base = defaultRESTBase
	}
	return &HistoryClient{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Klines returns up to size historical bars for symbol/period in
// chronological order.
func (h *HistoryClient) Klines(ctx context.Context, symbol, period string, size int) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("period", period)
	q.Set("size", fmt.Sprint(size))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		h.base+"/market/history/kline?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("huobi: history request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huobi: history fetch %s/%s: %w", symbol, period, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huobi: history fetch %s/%s: status %d", symbol, period, resp.StatusCode)
	}

	var body struct {
		Status  string      `json:"status"`
		ErrCode string      `json:"err-code"`
		ErrMsg  string      `json:"err-msg"`
		Data    []klineTick `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("huobi: history decode: %w", err)
	}
	if body.Status != "ok" {
		return nil, fmt.Errorf("huobi: history %s/%s: %s %s", symbol, period, body.ErrCode, body.ErrMsg)
	}

	bars := make([]model.Bar, 0, len(body.Data))
	for _, t := range body.Data {
		bars = append(bars, barFromTick(symbol, t))
	}
	// The venue returns newest first.
	sort.Slice(bars, func(i, j int) bool { return bars[i].ID < bars[j].ID })
	return bars, nil
}
