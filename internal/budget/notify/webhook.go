package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Channel delivers rendered content.
type Channel interface {
	Send(ctx context.Context, content string) error
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// WebhookChannel posts notifications to a chat webhook. Transient failures
// are retried; repeated failures open a circuit breaker and outgoing calls
// are rate limited.
type WebhookChannel struct {
	url      string
	client   *http.Client
	attempts uint
	delay    time.Duration
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithRetry sets the number of attempts and the base delay between them.
func WithRetry(attempts uint, delay time.Duration) WebhookOption {
	return func(ch *WebhookChannel) {
		if attempts > 0 {
			ch.attempts = attempts
		}
		if delay >= 0 {
			ch.delay = delay
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64, burst int) WebhookOption {
	return func(ch *WebhookChannel) {
		if perSecond > 0 && burst > 0 {
			ch.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	channel := &WebhookChannel{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: 3,
		delay:    500 * time.Millisecond,
		limiter:  rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(channel)
	}
	channel.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notify-webhook",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return channel, nil
}

// Send posts the content using a DingTalk/WeCom-compatible text payload.
func (w *WebhookChannel) Send(ctx context.Context, content string) error {
	if w == nil || w.url == "" {
		return errors.New("webhook channel: empty url")
	}
	body, err := json.Marshal(webhookPayload{MsgType: "text", Text: webhookText{Content: content}})
	if err != nil {
		return err
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook channel: rate limit: %w", err)
	}
	_, err = w.breaker.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.attempts),
			retry.Delay(w.delay),
			retry.LastErrorOnly(true),
		)
		return nil, r.Do(func() error {
			return w.post(ctx, body)
		})
	})
	return err
}

func (w *WebhookChannel) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook channel: non-2xx response %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return retry.Unrecoverable(fmt.Errorf("webhook channel: non-2xx response %d", resp.StatusCode))
	}
	return nil
}
