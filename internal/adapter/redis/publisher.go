// Package redis implements the outbound alert collaborator on Redis
// pub/sub. Fan-out to clients is the subscriber's responsibility.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"propdesk/internal/domain"
)

// AlertPublisher publishes liquidation alerts on a per-account channel.
type AlertPublisher struct {
	client *redis.Client
}

// NewAlertPublisher creates a publisher from a Redis URL
// (redis://[:password@]host:port[/db]).
func NewAlertPublisher(url string) (*AlertPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &AlertPublisher{client: redis.NewClient(opts)}, nil
}

// PublishLiquidation emits a LiquidationAlert on channel alerts:<accountId>.
func (p *AlertPublisher) PublishLiquidation(ctx context.Context, alert domain.LiquidationAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal liquidation alert: %w", err)
	}

	channel := "alerts:" + alert.AccountID.String()
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish liquidation alert for account %s: %w", alert.AccountID, err)
	}

	return nil
}

// Close releases the underlying Redis connection.
func (p *AlertPublisher) Close() error {
	return p.client.Close()
}

// NopPublisher drops alerts, for single-instance setups without Redis.
type NopPublisher struct{}

// PublishLiquidation logs the alert and discards it.
func (NopPublisher) PublishLiquidation(_ context.Context, alert domain.LiquidationAlert) error {
	log.Printf("[ALERT] Liquidation (no publisher configured): account=%s position=%s symbol=%s reason=%s",
		alert.AccountID, alert.PositionID, alert.Symbol, alert.Reason)
	return nil
}
