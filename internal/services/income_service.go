package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"buste/internal/amqp"
	"buste/internal/core"
	"buste/internal/storage"
)

// IncomeService reconciles actual income transactions against expected
// income sources: it records amount and date variances, advances the next
// expected pay date and keeps an append-only event trail.
type IncomeService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewIncomeService(repo *storage.SQLiteRepository, amqpClient *amqp.Client) *IncomeService {
	return &IncomeService{
		storage:    repo,
		amqpClient: amqpClient,
	}
}

// Reconcile matches one income transaction to an income source. The same
// transaction reconciles against the same source at most once; duplicates
// fail with ErrDuplicateReconciliation. The next expected pay date advances
// from the actual date by the source's pay cycle, so a late salary does not
// drift the schedule.
func (s *IncomeService) Reconcile(ctx context.Context, ownerID, incomeSourceID, transactionID string) (core.IncomeReconciliationEvent, error) {
	var event core.IncomeReconciliationEvent
	err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		source, err := q.GetIncomeSource(ctx, ownerID, incomeSourceID)
		if err != nil {
			return fmt.Errorf("load income source: %w", err)
		}
		tx, err := q.GetTransaction(ctx, ownerID, transactionID)
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}
		if tx.Type != core.TransactionIncome {
			return fmt.Errorf("transaction %s is not income: %w", transactionID, core.ErrInvalidAmount)
		}

		exists, err := q.ReconciliationExists(ctx, incomeSourceID, transactionID)
		if err != nil {
			return err
		}
		if exists {
			return core.ErrDuplicateReconciliation
		}

		actualAmount := tx.Amount.Abs()
		actualDate := tx.OccurredOn
		newPayDate := core.AdvancePayDate(actualDate, source.PayCycle)

		rules, err := q.ListAllocationRules(ctx, ownerID, incomeSourceID)
		if err != nil {
			return err
		}

		event, err = q.InsertReconciliationEvent(ctx, core.IncomeReconciliationEvent{
			OwnerID:          ownerID,
			IncomeSourceID:   incomeSourceID,
			TransactionID:    transactionID,
			ExpectedAmount:   source.TypicalAmount,
			ActualAmount:     actualAmount,
			AmountVariance:   actualAmount.Sub(source.TypicalAmount),
			ExpectedDate:     source.NextPayDate,
			ActualDate:       actualDate,
			DateVarianceDays: daysBetween(source.NextPayDate, actualDate),
			PreviousPayDate:  source.NextPayDate,
			NewPayDate:       newPayDate,
			AllocationCount:  len(rules),
		})
		if err != nil {
			return err
		}

		if err := q.UpdateIncomeSourceReconciled(ctx, ownerID, incomeSourceID, newPayDate, actualDate, transactionID); err != nil {
			return err
		}
		if tx.IncomeSourceID == "" {
			if err := q.UpdateTransactionIncomeSource(ctx, ownerID, transactionID, incomeSourceID); err != nil {
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
		return core.IncomeReconciliationEvent{}, err
	}

	slog.InfoContext(ctx, "Income reconciled",
		"income_source_id", incomeSourceID,
		"transaction_id", transactionID,
		"amount_variance_cents", event.AmountVariance.Cents,
		"date_variance_days", event.DateVarianceDays)

	publishEvent(ctx, s.amqpClient, amqp.NewLedgerEvent(
		amqp.EventIncomeReconciled, ownerID, event.ID, event.ActualAmount.Cents,
		fmt.Sprintf("variance %s", event.AmountVariance)))

	return event, nil
}

// daysBetween counts calendar days from expected to actual, negative when
// the actual date came early. Timestamps are truncated to their UTC date so
// time-of-day never shifts the count.
func daysBetween(expected, actual time.Time) int {
	e := expected.UTC().Truncate(24 * time.Hour)
	a := actual.UTC().Truncate(24 * time.Hour)
	return int(a.Sub(e).Hours() / 24)
}
