package sheetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diticoms/service-desk/internal/errs"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	DefaultTimeout    = 20 * time.Second
	DefaultRetryDelay = 1500 * time.Millisecond

	// One retry, only after a timeout.
	maxRetries = 1
)

var errAttemptTimeout = errors.New("attempt timed out")

// Caller is what the desk service needs from the sheet endpoint.
type Caller interface {
	Call(ctx context.Context, endpoint, action string, payload any) (json.RawMessage, error)
}

// Client posts actions to the spreadsheet script endpoint. It holds no per-call
// state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	retryDelay time.Duration
	log        *zap.Logger
}

type Options struct {
	Timeout    time.Duration
	RetryDelay time.Duration
	// HTTPClient must not set its own Timeout; the per-attempt deadline comes from Timeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func NewClient(opts Options) *Client {
	c := &Client{
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		retryDelay: opts.RetryDelay,
		log:        opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Call sends {...payload, action} to endpoint and returns the JSON value found in
// the response. Only a timed-out attempt is retried, once.
func (c *Client) Call(ctx context.Context, endpoint, action string, payload any) (json.RawMessage, error) {
	if err := ValidateEndpoint(endpoint); err != nil {
		return nil, err
	}
	body, err := buildBody(action, payload)
	if err != nil {
		return nil, err
	}

	var (
		out      json.RawMessage
		attempts int
	)
	backoff := retry.WithMaxRetries(maxRetries, retry.NewConstant(c.retryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		res, err := c.attempt(ctx, endpoint, action, body)
		if errors.Is(err, errAttemptTimeout) {
			if attempts <= maxRetries {
				c.log.Warn("sheet api: attempt timed out, retrying",
					zap.String("action", action),
					zap.Int("attempt", attempts),
					zap.Duration("delay", c.retryDelay))
			}
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if errors.Is(err, errAttemptTimeout) {
		return nil, &errs.TimeoutError{Action: action, Attempts: attempts}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) attempt(ctx context.Context, endpoint, action string, body []byte) (json.RawMessage, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &errs.ConfigurationError{URL: endpoint, Reason: err.Error()}
	}
	// text/plain keeps the Apps Script endpoint on its simple-request path.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, actx, action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &errs.TransportError{Action: action, StatusCode: resp.StatusCode}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(ctx, actx, action, err)
	}
	c.log.Debug("sheet api: response",
		zap.String("action", action),
		zap.Int("bytes", len(raw)),
		zap.Duration("latency", time.Since(start)))
	return decodeBody(action, raw)
}

// classify separates our own per-attempt deadline (retryable) from a cancelled
// caller context (not retryable) and plain network failures.
func (c *Client) classify(parent, attempt context.Context, action string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return errAttemptTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errAttemptTimeout
	}
	return &errs.TransportError{Action: action, Err: err}
}

// ValidateEndpoint accepts absolute http(s) URLs only.
func ValidateEndpoint(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return &errs.ConfigurationError{Reason: "endpoint URL is empty"}
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return &errs.ConfigurationError{URL: endpoint, Reason: "endpoint URL is invalid"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &errs.ConfigurationError{URL: endpoint, Reason: "endpoint URL must start with http:// or https://"}
	}
	if u.Host == "" {
		return &errs.ConfigurationError{URL: endpoint, Reason: "endpoint URL has no host"}
	}
	return nil
}

func buildBody(action string, payload any) ([]byte, error) {
	var fields map[string]json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("sheet api: %s: encode payload: %w", action, err)
		}
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, fmt.Errorf("sheet api: %s: payload is not a JSON object: %w", action, err)
		}
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	a, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("sheet api: encode action: %w", err)
	}
	fields["action"] = a
	return json.Marshal(fields)
}
