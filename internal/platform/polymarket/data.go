// Package polymarket is the client for the Polymarket public data API.
package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// DataClient is the REST client for the Polymarket data API, which serves a
// wallet's public activity history.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a new data API client.
//
// baseURL is the data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string, timeout time.Duration) *DataClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DataClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetActivity returns one page of a wallet's activity, newest first. A
// well-formed body that is not a JSON array is treated as an empty page.
func (c *DataClient) GetActivity(ctx context.Context, wallet string, limit, offset int) ([]domain.Activity, error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	body, err := c.doGet(ctx, "/activity?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get activity: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("polymarket/data: decode activity: invalid JSON body")
		}
		return nil, nil
	}

	var rows []APIActivity
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode activity: %w", err)
	}

	out := make([]domain.Activity, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomainActivity())
	}
	return out, nil
}

func (c *DataClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx responses onto domain sentinels.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	if len(bodyStr) > 256 {
		bodyStr = bodyStr[:256]
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
