// Package wire holds the JSON shapes shared by the HTTP API and its client.
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// UInt64Str is a uint64 encoded as a decimal string. It decodes from either
// a string or a JSON number.
type UInt64Str uint64

func (i UInt64Str) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(i), 10))
}

func (i *UInt64Str) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		*i = UInt64Str(v)
		return nil
	}
	return json.Unmarshal(b, (*uint64)(i))
}

func (i UInt64Str) UInt64() uint64 { return uint64(i) }

// Price is one (symbol, rate) element; Rate is scaled by 1e9.
type Price struct {
	Symbol string    `json:"symbol"`
	Rate   UInt64Str `json:"rate"`
}

// RelayRequest is the body of POST /v1/relay and /v1/relay/force.
type RelayRequest struct {
	Prices      []Price   `json:"prices"`
	ResolveTime UInt64Str `json:"resolve_time"`
	RequestID   UInt64Str `json:"request_id"`
}

// RelayersRequest is the body of the grant and revoke routes.
type RelayersRequest struct {
	Relayers []string `json:"relayers"`
}

// TransferAdminRequest is the body of POST /v1/admin/transfer.
type TransferAdminRequest struct {
	NewAdmin string `json:"new_admin"`
}

// UpgradeRequest is the body of POST /v1/upgrade. CodeHash is 32 bytes hex.
type UpgradeRequest struct {
	CodeHash string `json:"code_hash"`
}

type AdminResponse struct {
	Admin string `json:"admin"`
}

type RelayerResponse struct {
	Relayer   string `json:"relayer"`
	IsRelayer bool   `json:"is_relayer"`
}

type CodeHashResponse struct {
	CodeHash string `json:"code_hash,omitempty"`
}

type ContractResponse struct {
	ContractID string `json:"contract_id"`
}

// Pair is a (base, quote) query.
type Pair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

type BulkRequest struct {
	Pairs []Pair `json:"pairs"`
}

// ReferenceData is a cross rate. Rate is a decimal integer scaled by 1e18.
type ReferenceData struct {
	Base             string    `json:"base"`
	Quote            string    `json:"quote"`
	Rate             string    `json:"rate"`
	BaseResolveTime  UInt64Str `json:"base_resolve_time"`
	QuoteResolveTime UInt64Str `json:"quote_resolve_time"`
}

// BulkItem is one element of a bulk answer; exactly one of Data and Error is set.
type BulkItem struct {
	Data  *ReferenceData `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

type BulkResponse struct {
	Results []BulkItem `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse acknowledges a state-changing call.
type StatusResponse struct {
	Status string `json:"status"`
}

// ParseRate converts a human decimal such as "1.25" into a 1e9 scaled rate.
// It rejects negatives, more than 9 fractional digits and values above uint64.
func ParseRate(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse rate %q: negative", s)
	}
	scaled := d.Shift(9)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("parse rate %q: more than 9 decimals", s)
	}
	v, err := strconv.ParseUint(scaled.StringFixed(0), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", s, err)
	}
	return v, nil
}

// FormatRate renders a fixed-point integer string with the given number of decimals.
func FormatRate(raw string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", fmt.Errorf("format rate %q: %w", raw, err)
	}
	return d.Shift(-decimals).String(), nil
}
