package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueWebhooks is the queue name for webhook deliveries.
	QueueWebhooks = "webhooks"
	// TaskTypeDeliver is the task type for a single webhook delivery.
	TaskTypeDeliver = "webhooks:deliver"

	deliveryMaxRetry = 5
)

// DeliveryPayload carries everything a worker needs to deliver one
// webhook without touching the subscriber table again.
type DeliveryPayload struct {
	LogID        string          `json:"log_id"`
	TenantID     string          `json:"tenant_id"`
	SubscriberID string          `json:"subscriber_id"`
	Event        string          `json:"event"`
	URL          string          `json:"url"`
	Secret       string          `json:"secret"`
	Body         json.RawMessage `json:"body"`
}

// NewDeliveryTask constructs an Asynq task for one delivery.
func NewDeliveryTask(payload DeliveryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDeliver, data,
		asynq.Queue(QueueWebhooks),
		asynq.MaxRetry(deliveryMaxRetry),
	), nil
}

// Sign computes the hex HMAC-SHA256 of body under secret. Receivers
// verify it against the X-Meridian-Signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
