// Package services implements the ledger operations: envelope transfers,
// transaction splits, allocation planning, credit-card cycle tracking, debt
// synchronization and income reconciliation. Each public operation runs in
// one storage transaction; ledger events go out only after commit.
package services

import (
	"context"
	"log/slog"

	"buste/internal/amqp"
)

// publishEvent sends a ledger event after a successful commit. The broker
// is optional and never fails the operation.
func publishEvent(ctx context.Context, client *amqp.Client, msg *amqp.LedgerEventMessage) {
	if client == nil {
		return
	}
	if err := client.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", msg.Type,
			"entity_id", msg.EntityID,
			"error", err)
	}
}
