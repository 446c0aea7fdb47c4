package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"buste/internal/amqp"
	"buste/internal/cache"
	"buste/internal/core"
	"buste/internal/storage"
)

// DebtService keeps debt items in sync with their linked accounts and
// serves payoff projections. Sync is strictly one-way: the account balance
// is authoritative and the debt item mirrors its absolute value.
type DebtService struct {
	storage     *storage.SQLiteRepository
	amqpClient  *amqp.Client
	payoffCache *cache.LRUCache[core.PayoffProjection]
}

func NewDebtService(repo *storage.SQLiteRepository, amqpClient *amqp.Client) *DebtService {
	return &DebtService{
		storage:     repo,
		amqpClient:  amqpClient,
		payoffCache: cache.NewLRUCache[core.PayoffProjection](256, 15*time.Minute),
	}
}

// debtSyncResult reports what a sync pass did, so callers can emit the
// paid-off event after their transaction commits.
type debtSyncResult struct {
	debt     core.DebtItem
	synced   bool
	paidOff  bool
	reopened bool
}

// syncDebtFromAccount mirrors the account balance onto its linked debt item
// inside an already-open unit of work. Accounts without a linked debt item
// sync to nothing. Crossing to zero stamps paid_off_at; rising above zero
// clears it.
func syncDebtFromAccount(ctx context.Context, q *storage.Queries, ownerID, accountID string, balance core.Money) (debtSyncResult, error) {
	debt, err := q.GetDebtItemByAccount(ctx, ownerID, accountID)
	if errors.Is(err, core.ErrNotFound) {
		return debtSyncResult{}, nil
	}
	if err != nil {
		return debtSyncResult{}, err
	}

	newBalance := balance.Abs()
	paidOffAt := debt.PaidOffAt
	var res debtSyncResult
	if newBalance.IsZero() {
		if paidOffAt == nil {
			now := time.Now().UTC()
			paidOffAt = &now
			res.paidOff = true
		}
	} else if paidOffAt != nil {
		paidOffAt = nil
		res.reopened = true
	}

	if err := q.UpdateDebtBalance(ctx, ownerID, debt.ID, newBalance, paidOffAt); err != nil {
		return debtSyncResult{}, err
	}
	debt.CurrentBalance = newBalance
	debt.PaidOffAt = paidOffAt
	res.debt = debt
	res.synced = true
	return res, nil
}

// SyncFromAccount re-mirrors one account's linked debt item. The card
// service syncs inline whenever it moves an account balance; this entry
// point covers balance changes made outside the card path.
func (s *DebtService) SyncFromAccount(ctx context.Context, ownerID, accountID string) (core.DebtItem, error) {
	var res debtSyncResult
	err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		account, err := q.GetAccount(ctx, ownerID, accountID)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		res, err = syncDebtFromAccount(ctx, q, ownerID, accountID, account.Balance)
		return err
	})
	if err != nil {
		return core.DebtItem{}, err
	}
	if !res.synced {
		return core.DebtItem{}, core.ErrNotFound
	}

	if res.paidOff {
		slog.InfoContext(ctx, "Debt paid off", "debt_id", res.debt.ID, "account_id", accountID)
		publishEvent(ctx, s.amqpClient, amqp.NewLedgerEvent(
			amqp.EventDebtPaidOff, ownerID, res.debt.ID, 0, res.debt.Name))
	}
	return res.debt, nil
}

// Payoff projects how long the debt takes to clear at the given monthly
// payment, or at the debt's minimum payment when monthlyPayment is nil.
// Projections are pure functions of (balance, APR, payment) and are cached.
func (s *DebtService) Payoff(ctx context.Context, ownerID, debtID string, monthlyPayment *core.Money) (core.PayoffProjection, error) {
	debt, err := s.storage.Queries().GetDebtItem(ctx, ownerID, debtID)
	if err != nil {
		return core.PayoffProjection{}, err
	}

	payment := debt.MinimumPayment
	projectionType := core.ProjectionMinimumOnly
	if monthlyPayment != nil {
		payment = *monthlyPayment
		projectionType = core.ProjectionCustom
	}

	key := fmt.Sprintf("%d:%.4f:%d", debt.CurrentBalance.Cents, debt.APRPercent, payment.Cents)
	if cached, ok := s.payoffCache.Get(key); ok {
		cached.Type = projectionType
		return cached, nil
	}

	projection := core.ComputePayoff(debt.CurrentBalance, debt.APRPercent, payment)
	projection.Type = projectionType
	s.payoffCache.Set(key, projection)
	return projection, nil
}
