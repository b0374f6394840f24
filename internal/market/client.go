package market

// HTTP client for the trending-data and narrative APIs
// Sends requests with retry, rate limiting and a circuit breaker
// Sets browser-like headers to get past Cloudflare
// Acts as transport layer - no notification logic lives here

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"trending-alert/internal/infra/log"
	"trending-alert/internal/infra/retry"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// TrendingAPI - base URL of the trending-data service
	TrendingAPI = "https://www.xxyy.io"
	// NarrativeAPI - base URL of the narrative service
	NarrativeAPI = "https://api.debot.ai"
)

var marketRetry = retry.Options{
	MaxRetries: 3,
	BaseDelay:  300 * time.Millisecond,
	MaxDelay:   5 * time.Second,
	Backoff:    2.0,
}

// Client talks to the market-data endpoints. Safe for concurrent use.
type Client struct {
	trendingBaseURL  string
	narrativeBaseURL string
	httpClient       *http.Client
	rateLimiter      *rate.Limiter
	circuitBreaker   *gobreaker.CircuitBreaker
	maxResponseSize  int64
}

// NewClient returns a Client ready to use against the production
// endpoints.
func NewClient() *Client {
	// 5 requests per second, burst up to 10. The scan loop fires a
	// handful of requests per cycle so this is headroom, not a cap.
	rateLimiter := rate.NewLimiter(rate.Limit(5), 10)

	circuitBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "MarketAPI",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		trendingBaseURL:  TrendingAPI,
		narrativeBaseURL: NarrativeAPI,
		rateLimiter:      rateLimiter,
		circuitBreaker:   circuitBreaker,
		maxResponseSize:  10 * 1024 * 1024,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DisableKeepAlives: false,
				MaxIdleConns:      10,
				IdleConnTimeout:   90 * time.Second,
			},
		},
	}
}

func setBrowserHeaders(req *http.Request, chain, referer string) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	if referer == "" {
		referer = TrendingAPI
	}
	req.Header.Set("Referer", referer)
	if chain != "" {
		req.Header.Set("x-chain", chain)
	}
}

// makeRequest runs one HTTP exchange through the rate limiter, the
// circuit breaker and the retry policy, in that order. Non-2xx status
// surfaces as *retry.HTTPError.
func (c *Client) makeRequest(ctx context.Context, method, rawURL string, body interface{}, chain, referer string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var jsonBody []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		jsonBody = data
	}

	var respBody []byte
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		err := retry.Do(ctx, marketRetry, func() error {
			var reqBody io.Reader
			if jsonBody != nil {
				reqBody = bytes.NewReader(jsonBody)
			}
			req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
			if err != nil {
				return err
			}
			setBrowserHeaders(req, chain, referer)
			if jsonBody != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
			if err != nil {
				return err
			}
			respBody = data

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return &retry.HTTPError{
					StatusCode: resp.StatusCode,
					Body:       data,
					RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return respBody, nil
	})
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

// FetchTrending returns the current trending leaderboard for a chain.
// period is the ranking window the site uses ("1M" by default).
func (c *Client) FetchTrending(ctx context.Context, chain string) ([]TrendingToken, error) {
	start := time.Now()
	payload := map[string]string{"period": "1M", "category": ""}

	respBody, err := c.makeRequest(ctx, "POST", c.trendingBaseURL+"/api/data/list/trending", payload, chain, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trending for %s: %w", chain, err)
	}

	var trendingResp TrendingResponse
	if err := json.Unmarshal(respBody, &trendingResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trending response: %w", err)
	}
	if trendingResp.Code != 0 {
		return nil, fmt.Errorf("trending API error (code %d): %s", trendingResp.Code, trendingResp.Msg)
	}

	log.LogDebug("Fetched trending leaderboard",
		zap.String("chain", chain),
		zap.Int("tokens", len(trendingResp.Data)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return trendingResp.Data, nil
}

// FetchKolHolders returns the KOL wallets currently holding a token.
// mint is the token address, pair the trading-pair address.
func (c *Client) FetchKolHolders(ctx context.Context, chain, mint, pair string) ([]KolHolder, error) {
	params := url.Values{}
	params.Set("mint", mint)
	params.Set("pair", pair)

	referer := fmt.Sprintf("%s/%s/%s", c.trendingBaseURL, chain, pair)
	endpoint := c.trendingBaseURL + "/api/data/holders/kol?" + params.Encode()

	respBody, err := c.makeRequest(ctx, "GET", endpoint, nil, chain, referer)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch KOL holders: %w", err)
	}

	var kolResp KolHoldersResponse
	if err := json.Unmarshal(respBody, &kolResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal KOL holders response: %w", err)
	}
	if kolResp.Code != 0 {
		return nil, fmt.Errorf("KOL holders API error (code %d): %s", kolResp.Code, kolResp.Msg)
	}

	return kolResp.Data, nil
}

// FetchNarrative returns the narrative story for a token, or nil when
// the service has none yet. A 404 is "no narrative", not an error.
func (c *Client) FetchNarrative(ctx context.Context, chain, tokenAddress string) (*Story, error) {
	params := url.Values{}
	params.Set("chain", chain)
	params.Set("token", tokenAddress)

	endpoint := c.narrativeBaseURL + "/api/dashboard/token/story?" + params.Encode()

	respBody, err := c.makeRequest(ctx, "GET", endpoint, nil, "", c.narrativeBaseURL)
	if err != nil {
		var httpErr *retry.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch narrative: %w", err)
	}

	var narrativeResp NarrativeResponse
	if err := json.Unmarshal(respBody, &narrativeResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal narrative response: %w", err)
	}

	return narrativeResp.Story(), nil
}
