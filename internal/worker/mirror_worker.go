// Package worker consumes committed ledger events and mirrors them to the
// spreadsheet audit trail. The mirror is eventually consistent; failed rows
// are redelivered by the broker.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"buste/internal/amqp"
	"buste/internal/sheets"
)

type MirrorWorker struct {
	writer   sheets.EventWriter
	mirrored atomic.Int64
}

func NewMirrorWorker(writer sheets.EventWriter) *MirrorWorker {
	return &MirrorWorker{writer: writer}
}

// HandleLedgerEvent appends one event to the mirror. Returning an error
// nacks the delivery so the broker redelivers it.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	ref, err := w.writer.Append(ctx, sheets.EventRow{
		Timestamp:   msg.Timestamp,
		OwnerID:     msg.OwnerID,
		EventType:   msg.Type,
		EntityID:    msg.EntityID,
		AmountCents: msg.AmountCents,
		Detail:      msg.Detail,
	})
	if err != nil {
		return fmt.Errorf("mirror ledger event %s: %w", msg.Type, err)
	}

	w.mirrored.Add(1)
	slog.InfoContext(ctx, "Ledger event mirrored",
		"type", msg.Type,
		"entity_id", msg.EntityID,
		"row_ref", ref)
	return nil
}

// Mirrored returns the number of events mirrored since start.
func (w *MirrorWorker) Mirrored() int64 {
	return w.mirrored.Load()
}

// Run consumes ledger events until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeLedgerEvents(ctx, w.HandleLedgerEvent)
}
