package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"budvest_data_service/config"
	"budvest_data_service/services/normalize"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// StatusError is a non-2xx upstream response
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %s", e.Endpoint, e.Code, e.Body)
}

// Client talks to an AKTools-compatible HTTP API
// (GET {base}/api/public/{endpoint}).
type Client struct {
	baseURL       string
	httpClient    *http.Client
	limiter       *rate.Limiter
	maxRetries    int
	retryInterval time.Duration
}

// NewClient creates a provider client from configuration
func NewClient(cfg config.ProviderConfig) *Client {
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
		burst = cfg.RequestsPerSec
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:       rate.NewLimiter(limit, burst),
		maxRetries:    cfg.MaxRetries,
		retryInterval: 500 * time.Millisecond,
	}
}

// Func binds an endpoint into a FetchFunc
func (c *Client) Func(endpoint string) FetchFunc {
	return func(ctx context.Context, req Request) Result {
		return c.Fetch(ctx, endpoint, Query(endpoint, req))
	}
}

// Fetch calls endpoint with query and decodes the row array. Transport
// errors, 429 and 5xx responses are retried with exponential backoff.
func (c *Client) Fetch(ctx context.Context, endpoint string, query url.Values) Result {
	endpointURL := fmt.Sprintf("%s/api/public/%s", c.baseURL, endpoint)
	if encoded := query.Encode(); encoded != "" {
		endpointURL += "?" + encoded
	}

	var rows []normalize.Row
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		rows, err = c.get(ctx, endpoint, endpointURL)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	retries := c.maxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	notify := func(err error, wait time.Duration) {
		logrus.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"retry_in": wait,
		}).Warnf("Provider request failed, retrying: %v", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return Failed(fmt.Errorf("fetch %s: %w", endpoint, err))
	}
	return OK(rows)
}

func (c *Client) get(ctx context.Context, endpoint, endpointURL string) ([]normalize.Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var rows []normalize.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode %s response: %w", endpoint, err))
	}
	return rows, nil
}
