package services

import (
	"context"
	"fmt"
	"log/slog"

	"buste/internal/amqp"
	"buste/internal/core"
	"buste/internal/storage"
)

// SplitService replaces the envelope splits of a transaction. A save is
// all-or-nothing: the previous split set is deleted and the new one inserted
// in the same database transaction.
type SplitService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewSplitService(repo *storage.SQLiteRepository, amqpClient *amqp.Client) *SplitService {
	return &SplitService{
		storage:    repo,
		amqpClient: amqpClient,
	}
}

// SaveSplits validates and stores a full replacement split set for the
// transaction. Split amounts must sum to the transaction amount within one
// cent. A single-envelope set also stamps the envelope straight onto the
// transaction; an unmatched transaction moves to pending once split.
func (s *SplitService) SaveSplits(ctx context.Context, ownerID, transactionID string, inputs []core.SplitInput) ([]core.TransactionSplit, error) {
	var saved []core.TransactionSplit
	err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		tx, err := q.GetTransaction(ctx, ownerID, transactionID)
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}

		if err := core.ValidateSplits(tx.Amount, inputs); err != nil {
			return err
		}

		for _, in := range inputs {
			if _, err := q.GetEnvelope(ctx, ownerID, in.EnvelopeID); err != nil {
				return fmt.Errorf("split envelope %s: %w", in.EnvelopeID, core.ErrMissingEnvelope)
			}
		}

		if err := q.DeleteSplits(ctx, transactionID); err != nil {
			return err
		}
		saved = saved[:0]
		for _, in := range inputs {
			split, err := q.InsertSplit(ctx, core.TransactionSplit{
				TransactionID: transactionID,
				EnvelopeID:    in.EnvelopeID,
				Amount:        in.Amount,
			})
			if err != nil {
				return err
			}
			saved = append(saved, split)
		}

		// A one-envelope split is equivalent to assigning the transaction
		// directly; multi-envelope splits clear the direct assignment.
		envelopeID := ""
		if len(inputs) == 1 {
			envelopeID = inputs[0].EnvelopeID
		}
		if tx.EnvelopeID != envelopeID {
			if err := q.UpdateTransactionEnvelope(ctx, ownerID, transactionID, envelopeID); err != nil {
				return err
			}
		}

		if tx.Status == core.TransactionUnmatched {
			if err := q.UpdateTransactionStatus(ctx, ownerID, transactionID, core.TransactionPending); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Transaction splits saved",
		"transaction_id", transactionID,
		"split_count", len(saved))

	publishEvent(ctx, s.amqpClient, amqp.NewLedgerEvent(
		amqp.EventSplitsSaved, ownerID, transactionID, 0,
		fmt.Sprintf("%d splits", len(saved))))

	return saved, nil
}

// GetSplits returns the current split set of a transaction.
func (s *SplitService) GetSplits(ctx context.Context, ownerID, transactionID string) ([]core.TransactionSplit, error) {
	if _, err := s.storage.Queries().GetTransaction(ctx, ownerID, transactionID); err != nil {
		return nil, err
	}
	return s.storage.Queries().ListSplits(ctx, transactionID)
}
