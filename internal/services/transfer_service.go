package services

import (
	"context"
	"fmt"
	"log/slog"

	"buste/internal/amqp"
	"buste/internal/core"
	"buste/internal/storage"
)

// TransferService moves money between envelopes atomically. Every transfer
// writes both balance updates and one append-only audit row in a single
// database transaction, so the sum of all envelope balances is invariant.
type TransferService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewTransferService(repo *storage.SQLiteRepository, amqpClient *amqp.Client) *TransferService {
	return &TransferService{
		storage:    repo,
		amqpClient: amqpClient,
	}
}

// Transfer moves amount from one envelope to another. The source must have
// sufficient funds unless its subtype permits a negative balance. Envelopes
// are read and written in id order so concurrent transfers over the same
// pair always take their locks the same way.
func (s *TransferService) Transfer(ctx context.Context, ownerID, fromID, toID string, amount core.Money, note string) (core.EnvelopeTransfer, error) {
	if fromID == toID {
		return core.EnvelopeTransfer{}, core.ErrSameEnvelope
	}
	if err := amount.Validate(); err != nil {
		return core.EnvelopeTransfer{}, err
	}

	var transfer core.EnvelopeTransfer
	err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}

		envelopes := make(map[string]core.Envelope, 2)
		for _, id := range []string{first, second} {
			e, err := q.GetEnvelope(ctx, ownerID, id)
			if err != nil {
				return fmt.Errorf("load envelope %s: %w", id, err)
			}
			envelopes[id] = e
		}
		from, to := envelopes[fromID], envelopes[toID]

		if from.Balance.LessThan(amount) && !from.CanGoNegative() {
			return core.ErrInsufficientFunds
		}

		transfer = core.EnvelopeTransfer{
			OwnerID:           ownerID,
			FromEnvelopeID:    fromID,
			ToEnvelopeID:      toID,
			Amount:            amount,
			FromBalanceBefore: from.Balance,
			FromBalanceAfter:  from.Balance.Sub(amount),
			ToBalanceBefore:   to.Balance,
			ToBalanceAfter:    to.Balance.Add(amount),
			Note:              note,
		}

		for _, id := range []string{first, second} {
			balance := transfer.FromBalanceAfter
			if id == toID {
				balance = transfer.ToBalanceAfter
			}
			if err := q.UpdateEnvelopeBalance(ctx, ownerID, id, balance); err != nil {
				return fmt.Errorf("update envelope %s: %w", id, err)
			}
		}

		var err error
		transfer, err = q.InsertEnvelopeTransfer(ctx, transfer)
		return err
	})
	if err != nil {
		return core.EnvelopeTransfer{}, err
	}

	slog.InfoContext(ctx, "Envelope transfer completed",
		"transfer_id", transfer.ID,
		"from_envelope_id", fromID,
		"to_envelope_id", toID,
		"amount_cents", amount.Cents)

	publishEvent(ctx, s.amqpClient, amqp.NewLedgerEvent(
		amqp.EventEnvelopeTransferred, ownerID, transfer.ID, amount.Cents,
		fmt.Sprintf("%s -> %s", fromID, toID)))

	return transfer, nil
}
