package webhooks

import "time"

// EventDailySalesSummary is emitted after a daily sales summary report
// has been computed.
const EventDailySalesSummary = "report.daily_sales_summary"

// Dispatch statuses recorded on dispatch log rows.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Subscriber is a tenant-registered webhook endpoint.
type Subscriber struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// DispatchLog records one delivery attempt chain for a subscriber.
type DispatchLog struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	SubscriberID string     `json:"subscriberId"`
	Event        string     `json:"event"`
	URL          string     `json:"url"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	ResponseCode int        `json:"responseCode,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	DeliveredAt  *time.Time `json:"deliveredAt,omitempty"`
}
