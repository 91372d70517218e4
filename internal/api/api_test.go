package api_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stdref/internal/api"
	"stdref/internal/auth"
	"stdref/internal/metrics"
	"stdref/internal/oracle"
	"stdref/internal/storage/memory"
	"stdref/internal/wire"
)

const now = 1_700_000_000

type harness struct {
	handler http.Handler
	ref     *oracle.Reference
	signer  *auth.Signer
}

func newHarness(t *testing.T, opts ...api.Option) *harness {
	t.Helper()

	ref, err := oracle.New(context.Background(), "alice", memory.New(),
		oracle.WithClock(oracle.ClockFunc(func() uint64 { return now })))
	require.NoError(t, err)
	signer, err := auth.NewSigner("test-secret", "stdref")
	require.NoError(t, err)

	return &harness{
		handler: api.NewServer(ref, signer, opts...).Routes(),
		ref:     ref,
		signer:  signer,
	}
}

func (h *harness) do(t *testing.T, method, path, as string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if as != "" {
		tok, err := h.signer.Issue(oracle.Identity(as), time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCurrentAdminAndRelayer(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/admin", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", decodeBody[wire.AdminResponse](t, rec).Admin)

	rec = h.do(t, http.MethodGet, "/v1/relayers/alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decodeBody[wire.RelayerResponse](t, rec).IsRelayer)

	rec = h.do(t, http.MethodGet, "/v1/relayers/bob", "", nil)
	require.False(t, decodeBody[wire.RelayerResponse](t, rec).IsRelayer)
	require.NotEmpty(t, rec.Header().Get(api.RequestIDHeader))
}

func TestRelayThenQuery(t *testing.T) {
	h := newHarness(t)

	// Arrange
	rec := h.do(t, http.MethodPost, "/v1/relay", "alice", wire.RelayRequest{
		Prices:      []wire.Price{{Symbol: "BTC", Rate: wire.UInt64Str(2 * oracle.E9)}, {Symbol: "ETH", Rate: wire.UInt64Str(4 * oracle.E9)}},
		ResolveTime: 100,
		RequestID:   1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Act
	rec = h.do(t, http.MethodGet, "/v1/reference?base=BTC&quote=ETH", "", nil)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[wire.ReferenceData](t, rec)
	require.Equal(t, "500000000000000000", got.Rate)
	require.Equal(t, uint64(100), got.BaseResolveTime.UInt64())

	rec = h.do(t, http.MethodGet, "/v1/reference?base=BTC&quote=USD", "", nil)
	got = decodeBody[wire.ReferenceData](t, rec)
	require.Equal(t, "2000000000000000000", got.Rate)
	require.Equal(t, uint64(now), got.QuoteResolveTime.UInt64())
}

func TestRelay_StaleThenForce(t *testing.T) {
	h := newHarness(t)
	relay := func(path string, rate, ts uint64) {
		rec := h.do(t, http.MethodPost, path, "alice", wire.RelayRequest{
			Prices: []wire.Price{{Symbol: "BTC", Rate: wire.UInt64Str(rate)}}, ResolveTime: wire.UInt64Str(ts),
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	quote := func() wire.ReferenceData {
		return decodeBody[wire.ReferenceData](t, h.do(t, http.MethodGet, "/v1/reference?base=BTC&quote=USD", "", nil))
	}

	relay("/v1/relay", oracle.E9, 5)
	relay("/v1/relay", 2*oracle.E9, 2)
	require.Equal(t, "1000000000000000000", quote().Rate)

	relay("/v1/relay/force", 2*oracle.E9, 2)
	q := quote()
	require.Equal(t, "2000000000000000000", q.Rate)
	require.Equal(t, uint64(2), q.BaseResolveTime.UInt64())
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ref.Relay(context.Background(), "alice", []oracle.SymbolRate{{Symbol: "ZERO", Rate: 0}}, 1, 1))

	tests := []struct {
		name   string
		method string
		path   string
		as     string
		body   any
		want   int
	}{
		{name: "unknown symbol", method: http.MethodGet, path: "/v1/reference?base=NOPE&quote=USD", want: http.StatusNotFound},
		{name: "zero quote", method: http.MethodGet, path: "/v1/reference?base=USD&quote=ZERO", want: http.StatusUnprocessableEntity},
		{name: "missing query", method: http.MethodGet, path: "/v1/reference?base=USD", want: http.StatusBadRequest},
		{name: "no credentials", method: http.MethodPost, path: "/v1/relay", body: wire.RelayRequest{}, want: http.StatusUnauthorized},
		{name: "not relayer", method: http.MethodPost, path: "/v1/relay", as: "mallory", body: wire.RelayRequest{Prices: []wire.Price{{Symbol: "BTC", Rate: 1}}}, want: http.StatusForbidden},
		{name: "not admin", method: http.MethodPost, path: "/v1/relayers/grant", as: "mallory", body: wire.RelayersRequest{Relayers: []string{"mallory"}}, want: http.StatusForbidden},
		{name: "empty relayer", method: http.MethodPost, path: "/v1/relayers/grant", as: "alice", body: wire.RelayersRequest{Relayers: []string{" "}}, want: http.StatusBadRequest},
		{name: "empty symbol", method: http.MethodPost, path: "/v1/relay", as: "alice", body: wire.RelayRequest{Prices: []wire.Price{{Symbol: ""}}}, want: http.StatusBadRequest},
		{name: "empty new admin", method: http.MethodPost, path: "/v1/admin/transfer", as: "alice", body: wire.TransferAdminRequest{}, want: http.StatusBadRequest},
		{name: "bad hash", method: http.MethodPost, path: "/v1/upgrade", as: "alice", body: wire.UpgradeRequest{CodeHash: "abcd"}, want: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/v1/reference/bulk", body: map[string]any{"nope": 1}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, tt.method, tt.path, tt.as, tt.body)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			require.NotEmpty(t, decodeBody[wire.ErrorResponse](t, rec).Error)
		})
	}
}

func TestInvalidToken(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGrantRevokeTransfer(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/relayers/grant", "alice", wire.RelayersRequest{Relayers: []string{"bob", "carol"}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/relayers/revoke", "alice", wire.RelayersRequest{Relayers: []string{"carol"}})
	require.Equal(t, http.StatusOK, rec.Code)

	require.True(t, decodeBody[wire.RelayerResponse](t, h.do(t, http.MethodGet, "/v1/relayers/bob", "", nil)).IsRelayer)
	require.False(t, decodeBody[wire.RelayerResponse](t, h.do(t, http.MethodGet, "/v1/relayers/carol", "", nil)).IsRelayer)

	rec = h.do(t, http.MethodPost, "/v1/admin/transfer", "alice", wire.TransferAdminRequest{NewAdmin: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "bob", decodeBody[wire.AdminResponse](t, h.do(t, http.MethodGet, "/v1/admin", "", nil)).Admin)

	// alice keeps relayer membership after losing admin
	require.True(t, decodeBody[wire.RelayerResponse](t, h.do(t, http.MethodGet, "/v1/relayers/alice", "", nil)).IsRelayer)
	rec = h.do(t, http.MethodPost, "/v1/relayers/grant", "alice", wire.RelayersRequest{Relayers: []string{"dave"}})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBulk(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ref.Relay(context.Background(), "alice", []oracle.SymbolRate{{Symbol: "BTC", Rate: 2 * oracle.E9}}, 10, 1))

	rec := h.do(t, http.MethodPost, "/v1/reference/bulk", "", wire.BulkRequest{Pairs: []wire.Pair{
		{Base: "BTC", Quote: "USD"},
		{Base: "NOPE", Quote: "USD"},
		{Base: "USD", Quote: "BTC"},
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[wire.BulkResponse](t, rec)
	require.Len(t, got.Results, 3)
	require.Equal(t, "2000000000000000000", got.Results[0].Data.Rate)
	require.Nil(t, got.Results[1].Data)
	require.Equal(t, oracle.ErrPairDoesNotExist.Error(), got.Results[1].Error)
	require.Equal(t, "500000000000000000", got.Results[2].Data.Rate)
}

func TestBulk_TooMany(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/reference/bulk", "", wire.BulkRequest{Pairs: make([]wire.Pair, api.MaxBulkPairs+1)})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpgrade(t *testing.T) {
	h := newHarness(t)
	hash := strings.Repeat("ab", 32)

	rec := h.do(t, http.MethodGet, "/v1/upgrade", "", nil)
	require.Empty(t, decodeBody[wire.CodeHashResponse](t, rec).CodeHash)

	// Act: non-admin panics inside the facade and is recovered
	rec = h.do(t, http.MethodPost, "/v1/upgrade", "mallory", wire.UpgradeRequest{CodeHash: hash})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	_, ok := h.ref.CodeHash()
	require.False(t, ok)

	rec = h.do(t, http.MethodPost, "/v1/upgrade", "alice", wire.UpgradeRequest{CodeHash: "0x" + hash})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/upgrade", "", nil)
	require.Equal(t, hash, decodeBody[wire.CodeHashResponse](t, rec).CodeHash)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, api.WithRateLimiter(api.NewRateLimiter(0.001, 2)))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, h.do(t, http.MethodGet, "/v1/admin", "", nil).Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// a different caller has its own bucket
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/v1/admin", "alice", nil).Code)
}

func TestRateLimit_SkipsHealthAndMetrics(t *testing.T) {
	h := newHarness(t,
		api.WithRateLimiter(api.NewRateLimiter(0.001, 1)),
		api.WithMetrics(metrics.New(false)),
	)

	// Arrange: exhaust the anonymous bucket
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/v1/admin", "", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, h.do(t, http.MethodGet, "/v1/admin", "", nil).Code)

	// Act + Assert
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "", nil).Code)
		require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/metrics", "", nil).Code)
	}
}

func TestAuthorizationPrecedesValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{name: "relay blank symbol", path: "/v1/relay", body: wire.RelayRequest{Prices: []wire.Price{{Symbol: " ", Rate: 1}}}, want: http.StatusForbidden},
		{name: "force relay blank symbol", path: "/v1/relay/force", body: wire.RelayRequest{Prices: []wire.Price{{Symbol: ""}}}, want: http.StatusForbidden},
		{name: "grant blank id", path: "/v1/relayers/grant", body: wire.RelayersRequest{Relayers: []string{" "}}, want: http.StatusForbidden},
		{name: "revoke blank id", path: "/v1/relayers/revoke", body: wire.RelayersRequest{Relayers: []string{""}}, want: http.StatusForbidden},
		{name: "transfer blank admin", path: "/v1/admin/transfer", body: wire.TransferAdminRequest{}, want: http.StatusForbidden},
		{name: "upgrade bad hash", path: "/v1/upgrade", body: wire.UpgradeRequest{CodeHash: "zz"}, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, tt.path, "mallory", tt.body)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	// nothing changed
	_, ok := h.ref.CodeHash()
	require.False(t, ok)
	require.Equal(t, "alice", decodeBody[wire.AdminResponse](t, h.do(t, http.MethodGet, "/v1/admin", "", nil)).Admin)
}

func TestContractID(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/contract", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, h.ref.ContractID(), decodeBody[wire.ContractResponse](t, rec).ContractID)
}

func TestGzipAndMetrics(t *testing.T) {
	m := metrics.New(false)
	h := newHarness(t, api.WithMetrics(m))

	req := httptest.NewRequest(http.MethodGet, "/v1/admin", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.JSONEq(t, `{"admin":"alice"}`, string(raw))

	rec = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `stdref_http_requests_total{method="GET",path="/v1/admin",status="200"} 1`)
}

func TestParseCodeHash(t *testing.T) {
	h, err := api.ParseCodeHash("0x" + strings.Repeat("01", 32))
	require.NoError(t, err)
	require.Equal(t, byte(1), h[31])

	_, err = api.ParseCodeHash("zz")
	require.Error(t, err)
}
