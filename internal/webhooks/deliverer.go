package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
)

const (
	headerSignature = "X-Meridian-Signature"
	headerEvent     = "X-Meridian-Event"
	headerDelivery  = "X-Meridian-Delivery"

	deliveryTimeout = 10 * time.Second
)

// DeliveryLogStore is the subset of Repository the deliverer needs.
type DeliveryLogStore interface {
	MarkDelivered(ctx context.Context, logID string, responseCode int) error
	MarkFailed(ctx context.Context, logID string, responseCode int, cause string) error
}

// DeliveryMetrics counts delivery outcomes. Satisfied by *jobmetrics.Metrics.
type DeliveryMetrics interface {
	AddDelivery(event, status string)
}

// Deliverer executes queued webhook deliveries. A non-2xx response or
// transport error marks the log row failed and returns the error so
// Asynq retries with backoff.
type Deliverer struct {
	logs    DeliveryLogStore
	client  *http.Client
	logger  *slog.Logger
	metrics DeliveryMetrics
}

// NewDeliverer constructs a Deliverer. client and metrics may be nil.
func NewDeliverer(logs DeliveryLogStore, client *http.Client, logger *slog.Logger, metrics DeliveryMetrics) *Deliverer {
	if client == nil {
		client = &http.Client{Timeout: deliveryTimeout}
	}
	return &Deliverer{logs: logs, client: client, logger: logger, metrics: metrics}
}

// Handle processes a TaskTypeDeliver task.
func (d *Deliverer) Handle(ctx context.Context, task *asynq.Task) error {
	if d == nil || d.logs == nil {
		return errors.New("webhooks: deliverer not configured")
	}
	var payload DeliveryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	code, err := d.deliver(ctx, payload)
	if err != nil {
		if d.metrics != nil {
			d.metrics.AddDelivery(payload.Event, StatusFailed)
		}
		if markErr := d.logs.MarkFailed(ctx, payload.LogID, code, err.Error()); markErr != nil {
			d.log().Error("mark delivery failed", slog.String("log_id", payload.LogID), slog.Any("error", markErr))
		}
		d.log().Warn("webhook delivery failed",
			slog.String("log_id", payload.LogID),
			slog.String("url", payload.URL),
			slog.Int("status", code),
			slog.Any("error", err))
		return err
	}

	if d.metrics != nil {
		d.metrics.AddDelivery(payload.Event, StatusDelivered)
	}
	if err := d.logs.MarkDelivered(ctx, payload.LogID, code); err != nil {
		d.log().Error("mark delivered", slog.String("log_id", payload.LogID), slog.Any("error", err))
	}
	d.log().Info("webhook delivered",
		slog.String("log_id", payload.LogID),
		slog.String("event", payload.Event),
		slog.Int("status", code))
	return nil
}

func (d *Deliverer) deliver(ctx context.Context, payload DeliveryPayload) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, payload.URL, bytes.NewReader(payload.Body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEvent, payload.Event)
	req.Header.Set(headerDelivery, payload.LogID)
	req.Header.Set(headerSignature, "sha256="+Sign(payload.Secret, payload.Body))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (d *Deliverer) log() *slog.Logger {
	if d != nil && d.logger != nil {
		return d.logger
	}
	return slog.Default()
}
