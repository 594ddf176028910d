package webhooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// ErrDuplicateSubscriber signals that the tenant already registered the URL.
var ErrDuplicateSubscriber = errors.New("webhooks: subscriber already registered")

const uniqueViolation = "23505"

// Repository persists webhook subscribers and dispatch logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSubscriber registers a webhook endpoint for a tenant.
func (r *Repository) CreateSubscriber(ctx context.Context, sub Subscriber) (Subscriber, error) {
	if r == nil || r.pool == nil {
		return Subscriber{}, errors.New("webhooks: repository not initialised")
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO webhook_subscribers (id, tenant_id, url, secret, events, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING created_at`
	err := r.pool.QueryRow(ctx, query, sub.ID, sub.TenantID, sub.URL, sub.Secret, sub.Events).
		Scan(&sub.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Subscriber{}, ErrDuplicateSubscriber
		}
		return Subscriber{}, fmt.Errorf("create subscriber: %w", err)
	}
	sub.Active = true
	return sub, nil
}

// ActiveSubscribers lists active endpoints subscribed to an event.
func (r *Repository) ActiveSubscribers(ctx context.Context, tenantID, event string) ([]Subscriber, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("webhooks: repository not initialised")
	}
	const query = `
		SELECT id, tenant_id, url, secret, events, active, created_at
		FROM webhook_subscribers
		WHERE tenant_id = $1
		  AND active = TRUE
		  AND $2 = ANY(events)
		ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, tenantID, event)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		var sub Subscriber
		if err := rows.Scan(&sub.ID, &sub.TenantID, &sub.URL, &sub.Secret, &sub.Events, &sub.Active, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SubscribedTenants lists tenants holding at least one active
// subscription to the event.
func (r *Repository) SubscribedTenants(ctx context.Context, event string) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("webhooks: repository not initialised")
	}
	const query = `
		SELECT DISTINCT tenant_id
		FROM webhook_subscribers
		WHERE active = TRUE AND $1 = ANY(events)
		ORDER BY tenant_id`
	rows, err := r.pool.Query(ctx, query, event)
	if err != nil {
		return nil, fmt.Errorf("list subscribed tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

// InsertLog creates a pending dispatch log row and returns its id.
func (r *Repository) InsertLog(ctx context.Context, log DispatchLog) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New("webhooks: repository not initialised")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO webhook_dispatch_logs (id, tenant_id, subscriber_id, event, url, status)
		VALUES ($1, $2, $3, $4, $5, $6)`
	status := log.Status
	if status == "" {
		status = StatusPending
	}
	_, err := r.pool.Exec(ctx, query, log.ID, log.TenantID, log.SubscriberID, log.Event, log.URL, status)
	if err != nil {
		return "", fmt.Errorf("insert dispatch log: %w", err)
	}
	return log.ID, nil
}

// MarkDelivered finalises a log row after a successful delivery.
func (r *Repository) MarkDelivered(ctx context.Context, logID string, responseCode int) error {
	if r == nil || r.pool == nil {
		return errors.New("webhooks: repository not initialised")
	}
	const query = `
		UPDATE webhook_dispatch_logs
		SET status = $2, attempts = attempts + 1, response_code = $3,
		    last_error = '', delivered_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, logID, StatusDelivered, responseCode)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt. The row stays failed until a
// retry succeeds.
func (r *Repository) MarkFailed(ctx context.Context, logID string, responseCode int, cause string) error {
	if r == nil || r.pool == nil {
		return errors.New("webhooks: repository not initialised")
	}
	const query = `
		UPDATE webhook_dispatch_logs
		SET status = $2, attempts = attempts + 1, response_code = $3, last_error = $4
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, logID, StatusFailed, responseCode, cause)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ListLogs returns a page of dispatch logs for a tenant, newest first,
// along with the total row count.
func (r *Repository) ListLogs(ctx context.Context, tenantID string, page shared.Pagination) ([]DispatchLog, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, errors.New("webhooks: repository not initialised")
	}
	const countQuery = `SELECT COUNT(*) FROM webhook_dispatch_logs WHERE tenant_id = $1`
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dispatch logs: %w", err)
	}

	const query = `
		SELECT id, tenant_id, subscriber_id, event, url, status,
		       attempts, COALESCE(response_code, 0), COALESCE(last_error, ''),
		       created_at, delivered_at
		FROM webhook_dispatch_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, tenantID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list dispatch logs: %w", err)
	}
	defer rows.Close()

	logs := make([]DispatchLog, 0, page.Limit)
	for rows.Next() {
		var log DispatchLog
		if err := rows.Scan(&log.ID, &log.TenantID, &log.SubscriberID, &log.Event, &log.URL,
			&log.Status, &log.Attempts, &log.ResponseCode, &log.LastError,
			&log.CreatedAt, &log.DeliveredAt); err != nil {
			return nil, 0, fmt.Errorf("scan dispatch log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, total, rows.Err()
}

// Subscriber fetches one subscriber by id.
func (r *Repository) Subscriber(ctx context.Context, id string) (Subscriber, error) {
	if r == nil || r.pool == nil {
		return Subscriber{}, errors.New("webhooks: repository not initialised")
	}
	const query = `
		SELECT id, tenant_id, url, secret, events, active, created_at
		FROM webhook_subscribers
		WHERE id = $1`
	var sub Subscriber
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&sub.ID, &sub.TenantID, &sub.URL, &sub.Secret, &sub.Events, &sub.Active, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscriber{}, fmt.Errorf("webhooks: subscriber %s not found", id)
	}
	if err != nil {
		return Subscriber{}, fmt.Errorf("load subscriber: %w", err)
	}
	return sub, nil
}
