// Package client is a typed Go client for the reference oracle HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"stdref/internal/oracle"
	"stdref/internal/wire"
)

const defaultBaseURL = "http://localhost:8080"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=client_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the oracle API.
type Client struct {
	// baseURL is the scheme and host of the API, without a trailing slash.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// Option is a configuration option for the client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithToken authenticates every request with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.header.Set("Authorization", "Bearer "+token)
	}
}

// New creates a client.
func New(options ...Option) (*Client, error) {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(c)
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	return c, nil
}

// StatusError is a non-2xx answer. It unwraps to the matching oracle
// sentinel so errors.Is works across the wire.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return oracle.ErrPairDoesNotExist
	case http.StatusUnprocessableEntity:
		return oracle.ErrInvalidValue
	case http.StatusForbidden:
		return oracle.ErrUnauthorized
	}
	return nil
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var e wire.ErrorResponse
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		if json.Unmarshal(b, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(b))
		}
		return &StatusError{Code: res.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) CurrentAdmin(ctx context.Context) (string, error) {
	var out wire.AdminResponse
	if err := c.do(ctx, http.MethodGet, "/v1/admin", nil, &out); err != nil {
		return "", err
	}
	return out.Admin, nil
}

func (c *Client) IsRelayer(ctx context.Context, id string) (bool, error) {
	var out wire.RelayerResponse
	if err := c.do(ctx, http.MethodGet, "/v1/relayers/"+url.PathEscape(id), nil, &out); err != nil {
		return false, err
	}
	return out.IsRelayer, nil
}

func (c *Client) TransferAdmin(ctx context.Context, newAdmin string) error {
	return c.do(ctx, http.MethodPost, "/v1/admin/transfer", wire.TransferAdminRequest{NewAdmin: newAdmin}, nil)
}

func (c *Client) GrantRelayers(ctx context.Context, ids []string) error {
	return c.do(ctx, http.MethodPost, "/v1/relayers/grant", wire.RelayersRequest{Relayers: ids}, nil)
}

func (c *Client) RevokeRelayers(ctx context.Context, ids []string) error {
	return c.do(ctx, http.MethodPost, "/v1/relayers/revoke", wire.RelayersRequest{Relayers: ids}, nil)
}

func (c *Client) Relay(ctx context.Context, req wire.RelayRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/relay", req, nil)
}

func (c *Client) ForceRelay(ctx context.Context, req wire.RelayRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/relay/force", req, nil)
}

func (c *Client) GetReferenceData(ctx context.Context, base, quote string) (wire.ReferenceData, error) {
	q := url.Values{}
	q.Set("base", base)
	q.Set("quote", quote)

	var out wire.ReferenceData
	err := c.do(ctx, http.MethodGet, "/v1/reference?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) GetReferenceDataBulk(ctx context.Context, pairs []wire.Pair) ([]wire.BulkItem, error) {
	var out wire.BulkResponse
	if err := c.do(ctx, http.MethodPost, "/v1/reference/bulk", wire.BulkRequest{Pairs: pairs}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// ReplaceCode submits a 32 byte hex code hash and returns the accepted hash.
func (c *Client) ReplaceCode(ctx context.Context, codeHash string) (string, error) {
	var out wire.CodeHashResponse
	if err := c.do(ctx, http.MethodPost, "/v1/upgrade", wire.UpgradeRequest{CodeHash: codeHash}, &out); err != nil {
		return "", err
	}
	return out.CodeHash, nil
}

// CodeHash returns the last accepted code hash, empty when none.
func (c *Client) CodeHash(ctx context.Context) (string, error) {
	var out wire.CodeHashResponse
	if err := c.do(ctx, http.MethodGet, "/v1/upgrade", nil, &out); err != nil {
		return "", err
	}
	return out.CodeHash, nil
}

// ContractID returns the oracle instance identifier.
func (c *Client) ContractID(ctx context.Context) (string, error) {
	var out wire.ContractResponse
	if err := c.do(ctx, http.MethodGet, "/v1/contract", nil, &out); err != nil {
		return "", err
	}
	return out.ContractID, nil
}
