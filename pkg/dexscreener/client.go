// Package dexscreener validates tokens against the DexScreener pairs API
package dexscreener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Default configuration values
const (
	DefaultBaseURL = "https://api.dexscreener.com"
	DefaultTimeout = 10 * time.Second
)

// Sentinel errors for token lookups
var (
	ErrRequestFailed    = errors.New("dexscreener request failed")
	ErrUnexpectedStatus = errors.New("dexscreener unexpected status")
	ErrDecodeFailed     = errors.New("dexscreener response decode failed")
)

// Client represents a DexScreener API client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new client with custom HTTP client and base URL
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// Pair is a liquidity pair as returned by the API. Numeric fields arrive as
// strings or numbers depending on the pair, so they are kept raw.
type Pair struct {
	PairAddress string          `json:"pairAddress"`
	PriceUsd    json.RawMessage `json:"priceUsd"`
	FDV         json.RawMessage `json:"fdv"`
	Liquidity   struct {
		USD json.RawMessage `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 json.RawMessage `json:"h24"`
	} `json:"volume"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
}

type tokensResponse struct {
	Pairs []Pair `json:"pairs"`
}

// GetPairs retrieves all pairs for a token address
func (c *Client) GetPairs(ctx context.Context, tokenAddress string) ([]Pair, error) {
	endpoint := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, url.PathEscape(tokenAddress))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body tokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}

	return body.Pairs, nil
}

// number parses a raw JSON value that may be a number or a numeric string
func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}
