// Package coingecko quotes the POL token in USD, preferring CoinGecko and
// falling back to Coinbase exchange rates.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// Sources recorded on a quote.
const (
	SourceCoinGecko = "coingecko"
	SourceCoinbase  = "coinbase-fallback"
)

// CoinIDs are tried in order; the token was renamed from MATIC to POL and
// CoinGecko has listed it under each of these ids.
var CoinIDs = []string{"polygon-ecosystem-token", "matic-network", "polygon"}

// errNoQuote is returned when no upstream carried a usable price.
var errNoQuote = errors.New("POL/MATIC price data not found in any endpoint")

// Client talks to the CoinGecko and Coinbase public REST APIs.
type Client struct {
	coingeckoURL string
	coinbaseURL  string
	httpClient   *http.Client
	now          func() time.Time
}

// NewClient creates a price client. Either base URL may be empty to skip that
// source.
func NewClient(coingeckoURL, coinbaseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		coingeckoURL: strings.TrimRight(coingeckoURL, "/"),
		coinbaseURL:  strings.TrimRight(coinbaseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		now:          time.Now,
	}
}

// simplePrice is one entry of the /simple/price response.
type simplePrice struct {
	USD       *float64 `json:"usd"`
	Change24h float64  `json:"usd_24h_change"`
}

// exchangeRates is the Coinbase /exchange-rates response.
type exchangeRates struct {
	Data struct {
		Rates map[string]string `json:"rates"`
	} `json:"data"`
}

// POLPrice returns the current quote. CoinGecko is asked for each of CoinIDs
// until one is present; any CoinGecko failure moves on to Coinbase, which
// carries no 24h change.
func (c *Client) POLPrice(ctx context.Context) (domain.POLPrice, error) {
	var errs []error

	if c.coingeckoURL != "" {
		p, err := c.fromCoinGecko(ctx)
		if err == nil {
			return p, nil
		}
		errs = append(errs, fmt.Errorf("coingecko: %w", err))
	}

	if c.coinbaseURL != "" {
		p, err := c.fromCoinbase(ctx)
		if err == nil {
			return p, nil
		}
		errs = append(errs, fmt.Errorf("coinbase: %w", err))
	}

	if len(errs) == 0 {
		return domain.POLPrice{}, fmt.Errorf("coingecko: no price source configured")
	}
	return domain.POLPrice{}, errors.Join(errs...)
}

func (c *Client) fromCoinGecko(ctx context.Context) (domain.POLPrice, error) {
	for _, id := range CoinIDs {
		params := url.Values{}
		params.Set("ids", id)
		params.Set("vs_currencies", "usd")
		params.Set("include_24hr_change", "true")

		body, err := c.doGet(ctx, c.coingeckoURL+"/simple/price?"+params.Encode())
		if err != nil {
			return domain.POLPrice{}, err
		}

		var resp map[string]simplePrice
		if err := json.Unmarshal(body, &resp); err != nil {
			return domain.POLPrice{}, fmt.Errorf("decode simple price: %w", err)
		}
		entry, ok := resp[id]
		if !ok || entry.USD == nil {
			continue
		}
		return domain.POLPrice{
			USD:       *entry.USD,
			Change24h: entry.Change24h,
			Source:    SourceCoinGecko,
			FetchedAt: c.now().UTC(),
		}, nil
	}
	return domain.POLPrice{}, errNoQuote
}

func (c *Client) fromCoinbase(ctx context.Context) (domain.POLPrice, error) {
	body, err := c.doGet(ctx, c.coinbaseURL+"/exchange-rates?currency=MATIC")
	if err != nil {
		return domain.POLPrice{}, err
	}

	var resp exchangeRates
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.POLPrice{}, fmt.Errorf("decode exchange rates: %w", err)
	}
	raw := resp.Data.Rates["USD"]
	if raw == "" {
		return domain.POLPrice{}, errNoQuote
	}
	usd, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return domain.POLPrice{}, fmt.Errorf("parse USD rate %q: %w", raw, err)
	}
	return domain.POLPrice{
		USD:       usd,
		Source:    SourceCoinbase,
		FetchedAt: c.now().UTC(),
	}, nil
}

func (c *Client) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
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

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: HTTP %d", domain.ErrRateLimited, resp.StatusCode)
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return body, nil
}
