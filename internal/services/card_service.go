package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"buste/internal/amqp"
	"buste/internal/core"
	"buste/internal/storage"
)

// PaymentSplit is the caller-supplied division of a card payment for the
// user_split reconciliation method.
type PaymentSplit struct {
	ToHolding  core.Money
	ToDebt     core.Money
	ToInterest core.Money
}

// CardService tracks credit-card billing cycles: spending and coverage per
// cycle, payment reconciliation against holding, debt and interest, and the
// cycle open/close lifecycle. Card account balances only move through this
// service, which re-syncs the linked debt item in the same transaction.
type CardService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewCardService(repo *storage.SQLiteRepository, amqpClient *amqp.Client) *CardService {
	return &CardService{
		storage:    repo,
		amqpClient: amqpClient,
	}
}

// getCardAccount loads an account and rejects non-card ids. Card operations
// address card accounts only; anything else is indistinguishable from a
// missing row.
func getCardAccount(ctx context.Context, q *storage.Queries, ownerID, accountID string) (core.Account, error) {
	account, err := q.GetAccount(ctx, ownerID, accountID)
	if err != nil {
		return core.Account{}, fmt.Errorf("load account: %w", err)
	}
	if account.Kind != core.AccountCredit {
		return core.Account{}, fmt.Errorf("account %s is not a credit card: %w", accountID, core.ErrNotFound)
	}
	return account, nil
}

// ensureCycleInTx returns the cycle a reference date falls into, creating
// the row on first touch. One row exists per account per cycle key.
func ensureCycleInTx(ctx context.Context, q *storage.Queries, account core.Account, ref time.Time) (core.CardCycle, error) {
	key := core.CurrentCycleKey(ref, account.StatementCloseDay)
	cycle, err := q.GetCycle(ctx, account.OwnerID, account.ID, key)
	if err == nil {
		return cycle, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.CardCycle{}, err
	}

	closeDate, dueDate, err := core.CycleDates(key, account.StatementCloseDay, account.PaymentDueDay)
	if err != nil {
		return core.CardCycle{}, err
	}
	return q.InsertCycle(ctx, core.CardCycle{
		OwnerID:        account.OwnerID,
		AccountID:      account.ID,
		CycleKey:       key,
		StatementClose: closeDate,
		PaymentDue:     dueDate,
	})
}

// EnsureCycle opens (or returns) the billing cycle the reference date falls
// into.
func (s *CardService) EnsureCycle(ctx context.Context, ownerID, accountID string, ref time.Time) (core.CardCycle, error) {
	var cycle core.CardCycle
	err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		account, err := getCardAccount(ctx, q, ownerID, accountID)
		if err != nil {
			return err
		}
		cycle, err = ensureCycleInTx(ctx, q, account, ref)
		return err
	})
	return cycle, err
}

// RecordCardSpend books a card charge into the cycle the spend date falls
// into: cycle spending grows, the card balance drops, and when the card has
// a holding envelope the charge is covered by moving money into it. The
// linked debt item re-syncs in the same transaction.
func (s *CardService) RecordCardSpend(ctx context.Context, ownerID, accountID string, amount core.Money, spentAt time.Time) (core.CardCycle, error) {
	if err := amount.Validate(); err != nil {
		return core.CardCycle{}, err
	}

	var cycle core.CardCycle
	err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		account, err := getCardAccount(ctx, q, ownerID, accountID)
		if err != nil {
			return err
		}

		cycle, err = ensureCycleInTx(ctx, q, account, spentAt)
		if err != nil {
			return err
		}
		if cycle.IsClosed {
			return core.ErrCycleClosed
		}

		cycle.Spending = cycle.Spending.Add(amount)

		holding, err := q.GetHoldingEnvelope(ctx, ownerID, accountID)
		switch {
		case err == nil:
			cycle.Covered = cycle.Covered.Add(amount)
			if err := q.UpdateEnvelopeBalance(ctx, ownerID, holding.ID, holding.Balance.Add(amount)); err != nil {
				return err
			}
		case errors.Is(err, core.ErrNotFound):
			// Card without envelope coverage; spending is tracked uncovered.
		default:
			return err
		}

		if err := q.UpdateCycleAmounts(ctx, ownerID, cycle.ID, cycle.Spending, cycle.Covered, cycle.Interest); err != nil {
			return err
		}

		newBalance := account.Balance.Sub(amount)
		if err := q.UpdateAccountBalance(ctx, ownerID, accountID, newBalance); err != nil {
			return err
		}
		_, err = syncDebtFromAccount(ctx, q, ownerID, accountID, newBalance)
		return err
	})
	if err != nil {
		return core.CardCycle{}, err
	}

	slog.InfoContext(ctx, "Card spend recorded",
		"account_id", accountID,
		"cycle_key", cycle.CycleKey,
		"amount_cents", amount.Cents)

	publishEvent(ctx, s.amqpClient, amqp.NewLedgerEvent(
		amqp.EventCardSpendRecorded, ownerID, accountID, amount.Cents, string(cycle.CycleKey)))

	return cycle, nil
}

// RecordInterest books an interest charge onto the current cycle and the
// card balance. Accrued interest is what the auto_split payment method pays
// down first.
func (s *CardService) RecordInterest(ctx context.Context, ownerID, accountID string, amount core.Money, chargedAt time.Time) (core.CardCycle, error) {
	if err := amount.Validate(); err != nil {
		return core.CardCycle{}, err
	}

	var cycle core.CardCycle
	err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		account, err := getCardAccount(ctx, q, ownerID, accountID)
		if err != nil {
			return err
		}
		cycle, err = ensureCycleInTx(ctx, q, account, chargedAt)
		if err != nil {
			return err
		}
		if cycle.IsClosed {
			return core.ErrCycleClosed
		}

		cycle.Interest = cycle.Interest.Add(amount)
		if err := q.UpdateCycleAmounts(ctx, ownerID, cycle.ID, cycle.Spending, cycle.Covered, cycle.Interest); err != nil {
			return err
		}

		newBalance := account.Balance.Sub(amount)
		if err := q.UpdateAccountBalance(ctx, ownerID, accountID, newBalance); err != nil {
			return err
		}
		_, err = syncDebtFromAccount(ctx, q, ownerID, accountID, newBalance)
		return err
	})
	return cycle, err
}

// ReconcilePayment splits one card payment into holding, debt and interest
// components and applies all effects atomically: the payment record, the
// holding envelope and coverage decrements, the card balance credit and the
// debt re-sync. The split depends on the method:
//
//   - auto_split: interest due first, then the outstanding debt balance,
//     any remainder to holding
//   - user_split: the caller's components, rejected with ErrOverPayment
//     when they exceed the payment total by more than one cent
//   - all_to_debt / all_to_holding: the whole total to one component
func (s *CardService) ReconcilePayment(ctx context.Context, ownerID, accountID, transactionID string,
	total core.Money, method core.PaymentMethod, userSplit *PaymentSplit) (core.PaymentReconciliation, error) {
	if err := total.Validate(); err != nil {
		return core.PaymentReconciliation{}, err
	}

	var (
		rec  core.PaymentReconciliation
		sync debtSyncResult
	)
	err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		account, err := getCardAccount(ctx, q, ownerID, accountID)
		if err != nil {
			return err
		}
		if _, err := q.GetTransaction(ctx, ownerID, transactionID); err != nil {
			return fmt.Errorf("payment transaction %s: %w", transactionID, err)
		}

		openCycles, err := q.ListOpenCycles(ctx, ownerID, accountID)
		if err != nil {
			return err
		}
		var interestDue core.Money
		for _, c := range openCycles {
			interestDue = interestDue.Add(c.Interest)
		}

		debtBalance := account.Balance.Abs()
		if debt, err := q.GetDebtItemByAccount(ctx, ownerID, accountID); err == nil {
			debtBalance = debt.CurrentBalance
		} else if !errors.Is(err, core.ErrNotFound) {
			return err
		}

		var toHolding, toDebt, toInterest core.Money
		switch method {
		case core.PaymentAllToDebt:
			toDebt = total
		case core.PaymentAllToHolding:
			toHolding = total
		case core.PaymentUserSplit:
			if userSplit == nil {
				return fmt.Errorf("user_split requires split components: %w", core.ErrInvalidAmount)
			}
			toHolding, toDebt, toInterest = userSplit.ToHolding, userSplit.ToDebt, userSplit.ToInterest
			for _, m := range []core.Money{toHolding, toDebt, toInterest} {
				if m.IsNegative() {
					return fmt.Errorf("negative payment component: %w", core.ErrInvalidAmount)
				}
			}
			sum := toHolding.Add(toDebt).Add(toInterest)
			if sum.Sub(total).Cents > 1 {
				return core.ErrOverPayment
			}
		case core.PaymentAutoSplit:
			remaining := total
			toInterest = minMoney(remaining, interestDue)
			remaining = remaining.Sub(toInterest)
			toDebt = minMoney(remaining, debtBalance)
			toHolding = remaining.Sub(toDebt)
		default:
			return fmt.Errorf("unknown payment method %q: %w", method, core.ErrInvalidAmount)
		}

		if toHolding.IsPositive() {
			holding, err := q.GetHoldingEnvelope(ctx, ownerID, accountID)
			if err != nil {
				return fmt.Errorf("holding portion without holding envelope: %w", err)
			}
			// The holding balance mirrors the open covered amounts; letting
			// it go negative would break that pairing.
			if holding.Balance.LessThan(toHolding) {
				return fmt.Errorf("holding portion %s exceeds holding balance %s: %w",
					toHolding, holding.Balance, core.ErrEnvelopeOverdraft)
			}
			if err := q.UpdateEnvelopeBalance(ctx, ownerID, holding.ID, holding.Balance.Sub(toHolding)); err != nil {
				return err
			}
			if err := drainCoverage(ctx, q, ownerID, openCycles, toHolding); err != nil {
				return err
			}
		}
		if toInterest.IsPositive() {
			if err := drainInterest(ctx, q, ownerID, openCycles, toInterest); err != nil {
				return err
			}
		}

		newBalance := account.Balance.Add(total)
		if err := q.UpdateAccountBalance(ctx, ownerID, accountID, newBalance); err != nil {
			return err
		}
		if sync, err = syncDebtFromAccount(ctx, q, ownerID, accountID, newBalance); err != nil {
			return err
		}

		rec, err = q.InsertPaymentReconciliation(ctx, core.PaymentReconciliation{
			OwnerID:          ownerID,
			AccountID:        accountID,
			TransactionID:    transactionID,
			TotalAmount:      total,
			AmountToHolding:  toHolding,
			AmountToDebt:     toDebt,
			AmountToInterest: toInterest,
			Method:           method,
		})
		return err
	})
	if err != nil {
		return core.PaymentReconciliation{}, err
	}

	slog.InfoContext(ctx, "Card payment reconciled",
		"account_id", accountID,
		"reconciliation_id", rec.ID,
		"method", method,
		"total_cents", total.Cents,
		"to_holding_cents", rec.AmountToHolding.Cents,
		"to_debt_cents", rec.AmountToDebt.Cents,
		"to_interest_cents", rec.AmountToInterest.Cents)

	publishEvent(ctx, s.amqpClient, amqp.NewLedgerEvent(
		amqp.EventPaymentReconciled, ownerID, rec.ID, total.Cents, string(method)))
	if sync.paidOff {
		publishEvent(ctx, s.amqpClient, amqp.NewLedgerEvent(
			amqp.EventDebtPaidOff, ownerID, sync.debt.ID, 0, sync.debt.Name))
	}

	return rec, nil
}

// drainCoverage reduces covered amounts across open cycles, oldest first,
// keeping the holding balance equal to the sum of open covered amounts.
func drainCoverage(ctx context.Context, q *storage.Queries, ownerID string, cycles []core.CardCycle, amount core.Money) error {
	for i := range cycles {
		if !amount.IsPositive() {
			return nil
		}
		take := minMoney(cycles[i].Covered, amount)
		if !take.IsPositive() {
			continue
		}
		cycles[i].Covered = cycles[i].Covered.Sub(take)
		if err := q.UpdateCycleAmounts(ctx, ownerID, cycles[i].ID, cycles[i].Spending, cycles[i].Covered, cycles[i].Interest); err != nil {
			return err
		}
		amount = amount.Sub(take)
	}
	return nil
}

// drainInterest reduces accrued interest across open cycles, oldest first.
func drainInterest(ctx context.Context, q *storage.Queries, ownerID string, cycles []core.CardCycle, amount core.Money) error {
	for i := range cycles {
		if !amount.IsPositive() {
			return nil
		}
		take := minMoney(cycles[i].Interest, amount)
		if !take.IsPositive() {
			continue
		}
		cycles[i].Interest = cycles[i].Interest.Sub(take)
		if err := q.UpdateCycleAmounts(ctx, ownerID, cycles[i].ID, cycles[i].Spending, cycles[i].Covered, cycles[i].Interest); err != nil {
			return err
		}
		amount = amount.Sub(take)
	}
	return nil
}

func minMoney(a, b core.Money) core.Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// CloseCycle freezes a cycle's totals. Closing an already-closed cycle
// fails with ErrCycleClosed and changes nothing.
func (s *CardService) CloseCycle(ctx context.Context, ownerID, accountID string, key core.CycleKey) (core.CardCycle, error) {
	var cycle core.CardCycle
	err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		var err error
		cycle, err = q.GetCycle(ctx, ownerID, accountID, key)
		if err != nil {
			return err
		}
		if cycle.IsClosed {
			return core.ErrCycleClosed
		}
		if err := q.MarkCycleClosed(ctx, ownerID, cycle.ID); err != nil {
			return err
		}
		cycle.IsClosed = true
		return nil
	})
	if err != nil {
		return core.CardCycle{}, err
	}

	slog.InfoContext(ctx, "Billing cycle closed",
		"account_id", accountID,
		"cycle_key", key,
		"spending_cents", cycle.Spending.Cents)

	publishEvent(ctx, s.amqpClient, amqp.NewLedgerEvent(
		amqp.EventCycleClosed, ownerID, cycle.ID, cycle.Spending.Cents, string(key)))

	return cycle, nil
}

// OpenCycles returns the open cycles of a card account, oldest first.
func (s *CardService) OpenCycles(ctx context.Context, ownerID, accountID string) ([]core.CardCycle, error) {
	q := s.storage.Queries()
	if _, err := getCardAccount(ctx, q, ownerID, accountID); err != nil {
		return nil, err
	}
	return q.ListOpenCycles(ctx, ownerID, accountID)
}

// RollCycles advances every card account: the current cycle is opened if
// missing and open cycles whose payment due date has passed are closed.
// The cycle worker calls this on a schedule. Returns the number of cycles
// closed.
func (s *CardService) RollCycles(ctx context.Context, now time.Time) (int, error) {
	accounts, err := s.storage.Queries().ListCardAccounts(ctx)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, account := range accounts {
		var justClosed []core.CardCycle
		err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
			if _, err := ensureCycleInTx(ctx, q, account, now); err != nil {
				return err
			}
			currentKey := core.CurrentCycleKey(now, account.StatementCloseDay)
			open, err := q.ListOpenCycles(ctx, account.OwnerID, account.ID)
			if err != nil {
				return err
			}
			for _, c := range open {
				if c.CycleKey == currentKey || !c.PaymentDue.Before(now) {
					continue
				}
				if err := q.MarkCycleClosed(ctx, account.OwnerID, c.ID); err != nil {
					return err
				}
				justClosed = append(justClosed, c)
			}
			return nil
		})
		if err != nil {
			return closed, fmt.Errorf("roll cycles for account %s: %w", account.ID, err)
		}

		for _, c := range justClosed {
			closed++
			publishEvent(ctx, s.amqpClient, amqp.NewLedgerEvent(
				amqp.EventCycleClosed, account.OwnerID, c.ID, c.Spending.Cents, string(c.CycleKey)))
		}
	}
	return closed, nil
}
