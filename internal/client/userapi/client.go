// Package userapi is a thin client for the upstream user API that owns
// remote balances. It reports status codes as-is; callers decide what a
// non-2xx response means.
package userapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"go-user-template/internal/metrics"
)

const maxBodyBytes = 1 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) IsError() bool {
	return r.StatusCode >= http.StatusBadRequest
}

// Envelope is the wrapper the upstream API puts around every payload.
type Envelope[T any] struct {
	Data T `json:"data"`
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UpdateBalance sends PUT /users/{id}/balance with {"balance": <number>}.
func (c *Client) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) (*Response, error) {
	payload, err := json.Marshal(map[string]json.RawMessage{
		"balance": json.RawMessage(balance.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("encode balance payload: %w", err)
	}

	return c.do(ctx, "update_balance", http.MethodPut, "/users/"+strconv.FormatInt(id, 10)+"/balance", payload)
}

// GetByID sends GET /users/{id}.
func (c *Client) GetByID(ctx context.Context, id int64) (*Response, error) {
	return c.do(ctx, "get_user", http.MethodGet, "/users/"+strconv.FormatInt(id, 10), nil)
}

func (c *Client) do(ctx context.Context, operation string, method string, path string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UserAPIRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	metrics.UserAPIRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
