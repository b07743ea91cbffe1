// Package pagerduty implements the Events API v2 client used by the bridge.
package pagerduty

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"nearbridge/internal/model"
)

// DeliveryError describes a failed event delivery. Permanent errors (HTTP
// 4xx) are never retried: the payload or routing key is wrong and retrying
// cannot help.
type DeliveryError struct {
	StatusCode int
	Body       string
	Permanent  bool
}

func (e *DeliveryError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("pagerduty delivery failed (%s): status %d: %s", kind, e.StatusCode, e.Body)
}

// Response is the Events API acknowledgement body.
type Response struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	DedupKey string `json:"dedup_key,omitempty"`
}

// Client posts events to the PagerDuty Events API with bounded retries.
type Client struct {
	httpClient *http.Client
	eventsURL  string
	routingKey string
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// Options tunes the retry policy and endpoint.
type Options struct {
	EventsURL  string
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
}

func NewClient(routingKey string, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	eventsURL := opts.EventsURL
	if eventsURL == "" {
		eventsURL = "https://events.pagerduty.com/v2/enqueue"
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Client{
		httpClient: httpClient,
		eventsURL:  eventsURL,
		routingKey: routingKey,
		maxRetries: opts.MaxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// Trigger delivers one alert and reports the number of attempts made.
// Transport errors and 5xx responses are retried with doubling backoff up to
// the attempt ceiling; 4xx responses fail immediately.
func (c *Client) Trigger(ctx context.Context, alert model.Alert) (Response, int, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return Response{}, 0, fmt.Errorf("marshal alert: %w", err)
	}

	var resp Response
	attempts, err := withRetry(ctx, c.maxRetries, c.backoff, func(ctx context.Context) error {
		var err error
		resp, err = c.post(ctx, body)
		if err != nil {
			c.logger.Warn("pagerduty post failed",
				zap.String("dedup_key", alert.DedupKey),
				zap.Error(err),
			)
		}
		return err
	})
	if err != nil {
		return Response{}, attempts, err
	}

	c.logger.Info("pagerduty alert triggered",
		zap.String("status", resp.Status),
		zap.String("dedup_key", resp.DedupKey),
	)
	return resp, attempts, nil
}

// Acknowledge marks an open incident as acknowledged.
func (c *Client) Acknowledge(ctx context.Context, dedupKey string) (Response, error) {
	return c.sendAction(ctx, "acknowledge", dedupKey)
}

// Resolve closes an open incident.
func (c *Client) Resolve(ctx context.Context, dedupKey string) (Response, error) {
	return c.sendAction(ctx, "resolve", dedupKey)
}

func (c *Client) sendAction(ctx context.Context, action, dedupKey string) (Response, error) {
	body, err := json.Marshal(map[string]string{
		"routing_key":  c.routingKey,
		"event_action": action,
		"dedup_key":    dedupKey,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal %s event: %w", action, err)
	}

	var resp Response
	_, err = withRetry(ctx, c.maxRetries, c.backoff, func(ctx context.Context) error {
		var err error
		resp, err = c.post(ctx, body)
		if err != nil {
			c.logger.Warn("pagerduty post failed",
				zap.String("event_action", action),
				zap.String("dedup_key", dedupKey),
				zap.Error(err),
			)
		}
		return err
	})
	if err != nil {
		return Response{}, err
	}

	c.logger.Info("pagerduty event sent",
		zap.String("event_action", action),
		zap.String("status", resp.Status),
	)
	return resp, nil
}

func (c *Client) post(ctx context.Context, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.eventsURL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("post event: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	switch {
	case httpResp.StatusCode >= 200 && httpResp.StatusCode < 300:
		var resp Response
		if err := json.Unmarshal(respBody, &resp); err != nil {
			// Accepted but unparseable body: treat as delivered.
			return Response{Status: "accepted"}, nil
		}
		return resp, nil
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		return Response{}, &DeliveryError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	default:
		return Response{}, &DeliveryError{StatusCode: httpResp.StatusCode, Body: string(respBody), Permanent: true}
	}
}
