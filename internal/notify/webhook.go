// Package notify pushes domain events to merchant webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/fafa-store/internal/common"
	"github.com/noah-isme/fafa-store/internal/events"
)

// Endpoint is one webhook receiver. An empty Topics list subscribes to all.
type Endpoint struct {
	URL    string
	Secret string
	Topics []string
}

func (e Endpoint) wants(topic string) bool {
	return len(e.Topics) == 0 || slices.Contains(e.Topics, topic)
}

// Envelope is the JSON body posted to receivers.
type Envelope struct {
	EventID     string          `json:"eventId"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Data        json.RawMessage `json:"data"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Webhook posts signed event envelopes. It implements events.Publisher so
// the worker retries failed deliveries with the publish task.
type Webhook struct {
	Endpoints []Endpoint
	Client    *http.Client
	// Replay remembers delivered (endpoint, event) pairs so retries of a task
	// that partly succeeded do not post twice.
	Replay    *redis.Client
	ReplayTTL time.Duration
	Now       func() time.Time
}

// NewHTTPClient returns a traced client for webhook delivery.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// Publish delivers ev to every subscribed endpoint.
func (w *Webhook) Publish(ctx context.Context, ev events.Event) error {
	if w == nil {
		return nil
	}
	var joined error
	for _, ep := range w.Endpoints {
		if !ep.wants(ev.Topic) {
			continue
		}
		if err := w.deliver(ctx, ep, ev); err != nil {
			joined = errors.Join(joined, fmt.Errorf("webhook %s: %w", ep.URL, err))
		}
	}
	return joined
}

func (w *Webhook) deliver(ctx context.Context, ep Endpoint, ev events.Event) error {
	ctx, span := otel.Tracer("notify.Webhook").Start(ctx, "Webhook.deliver")
	defer span.End()
	span.SetAttributes(attribute.String("webhook.url", ep.URL), attribute.String("webhook.topic", ev.Topic))

	if err := ValidateURL(ep.URL); err != nil {
		return err
	}
	key := "wh:" + common.Sha256Hex(ep.URL) + ":" + ev.ID.String()
	if w.Replay != nil {
		ttl := w.ReplayTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := w.Replay.SetNX(ctx, key, 1, ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			span.AddEvent("delivery replay prevented")
			return nil
		}
	}

	body, err := json.Marshal(Envelope{
		EventID:     ev.ID.String(),
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID.String(),
		Data:        ev.Payload,
		OccurredAt:  ev.OccurredAt,
	})
	if err != nil {
		return err
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := strconv.FormatInt(now().Unix(), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return w.forget(ctx, key, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "fafa-store-webhooks/1.0")
	req.Header.Set("X-Event-ID", ev.ID.String())
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", Signature(ep.Secret, ts, ev.ID.String(), body))

	client := w.Client
	if client == nil {
		client = NewHTTPClient(0)
	}
	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		return w.forget(ctx, key, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return w.forget(ctx, key, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

func (w *Webhook) forget(ctx context.Context, key string, cause error) error {
	if w.Replay != nil {
		_ = w.Replay.Del(ctx, key).Err()
	}
	return cause
}

// Signature is HMAC-SHA256 over "<ts>.<eventID>.<body>" with the endpoint secret.
func Signature(secret, ts, eventID string, body []byte) string {
	return common.SignHex(secret, ts, eventID, string(body))
}

// ValidateURL accepts https URLs, and plain http only for loopback hosts.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		if h := parsed.Hostname(); h == "localhost" || h == "127.0.0.1" {
			return nil
		}
		return errors.New("http webhook only allowed for localhost")
	}
	return errors.New("webhook url must be http or https")
}
