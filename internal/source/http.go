package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"stdref/internal/httpx"
	"stdref/internal/wire"
)

// Result is the payload served by a price feed.
type Result struct {
	RequestID   wire.UInt64Str `json:"request_id"`
	ResolveTime wire.UInt64Str `json:"resolve_time"`
	Responses   []Response     `json:"responses"`
}

// Response is one symbol of a Result. A non-zero ResponseCode marks a
// symbol the feed could not resolve.
type Response struct {
	Symbol       string         `json:"symbol"`
	ResponseCode uint8          `json:"response_code"`
	Rate         wire.UInt64Str `json:"rate"`
}

// Split separates resolved and failed responses.
func (r Result) Split() (valid, failed []Response) {
	valid = make([]Response, 0, len(r.Responses))
	for _, resp := range r.Responses {
		if resp.ResponseCode == 0 {
			valid = append(valid, resp)
		} else {
			failed = append(failed, resp)
		}
	}
	return valid, failed
}

type HTTPConfig struct {
	Name    string
	URL     string
	Headers map[string]string
}

// HTTP reads a Result from a JSON endpoint with GET ?symbols=A,B.
type HTTP struct {
	cfg    HTTPConfig
	client *httpx.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewHTTP(cfg HTTPConfig, hc *httpx.Client, logger *zap.Logger) *HTTP {
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{cfg: cfg, client: hc, logger: logger, now: time.Now}
}

func (h *HTTP) Name() string { return h.cfg.Name }

func (h *HTTP) Fetch(ctx context.Context, symbols []string) (PriceData, error) {
	u, err := url.Parse(h.cfg.URL)
	if err != nil {
		return PriceData{}, fmt.Errorf("%s: parse url: %w", h.cfg.Name, err)
	}
	if len(symbols) > 0 {
		q := u.Query()
		q.Set("symbols", strings.Join(symbols, ","))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return PriceData{}, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(ctx, req)
	if err != nil {
		return PriceData{}, fmt.Errorf("%s: %w", h.cfg.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return PriceData{}, fmt.Errorf("%s: status %d: %s", h.cfg.Name, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return PriceData{}, fmt.Errorf("%s: decode: %w", h.cfg.Name, err)
	}

	valid, failed := res.Split()
	for _, f := range failed {
		h.logger.Warn("symbol not resolved",
			zap.String("source", h.cfg.Name),
			zap.String("symbol", f.Symbol),
			zap.Uint8("response_code", f.ResponseCode),
		)
	}

	out := PriceData{
		Prices:      make([]wire.Price, 0, len(valid)),
		ResolveTime: res.ResolveTime.UInt64(),
		RequestID:   res.RequestID.UInt64(),
	}
	if out.ResolveTime == 0 {
		out.ResolveTime = uint64(h.now().Unix())
	}
	for _, v := range valid {
		out.Prices = append(out.Prices, wire.Price{Symbol: v.Symbol, Rate: v.Rate})
	}
	return out, nil
}
