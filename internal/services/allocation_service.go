package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"buste/internal/amqp"
	"buste/internal/core"
	"buste/internal/storage"
)

// AllocationService proposes and applies plans distributing an income
// transaction across envelopes. Proposal is a pure computation persisted for
// review; application is the atomic batch of envelope credits.
type AllocationService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewAllocationService(repo *storage.SQLiteRepository, amqpClient *amqp.Client) *AllocationService {
	return &AllocationService{
		storage:    repo,
		amqpClient: amqpClient,
	}
}

// ProposePlan builds a pending plan for an income transaction from the
// recurring allocation rules of its income source, walked in priority order
// until the income runs out. Whatever remains is routed to the owner's
// Surplus envelope as a non-regular item.
func (s *AllocationService) ProposePlan(ctx context.Context, ownerID, transactionID string) (core.AllocationPlan, error) {
	var plan core.AllocationPlan
	err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		tx, err := q.GetTransaction(ctx, ownerID, transactionID)
		if err != nil {
			return fmt.Errorf("load transaction: %w", err)
		}
		if tx.Type != core.TransactionIncome {
			return fmt.Errorf("transaction %s is not income: %w", transactionID, core.ErrInvalidAmount)
		}
		if tx.IncomeSourceID == "" {
			return fmt.Errorf("transaction %s has no income source: %w", transactionID, core.ErrNotFound)
		}

		rules, err := q.ListAllocationRules(ctx, ownerID, tx.IncomeSourceID)
		if err != nil {
			return err
		}

		total := tx.Amount.Abs()
		remaining := total
		var items []core.AllocationPlanItem
		for _, rule := range rules {
			if remaining.IsZero() {
				break
			}
			amount := rule.Amount
			if remaining.LessThan(amount) {
				amount = remaining
			}
			items = append(items, core.AllocationPlanItem{
				EnvelopeID: rule.EnvelopeID,
				Amount:     amount,
				IsRegular:  true,
				Priority:   rule.Priority,
			})
			remaining = remaining.Sub(amount)
		}

		if remaining.IsPositive() {
			surplus, err := q.GetSurplusEnvelope(ctx, ownerID)
			if err != nil {
				return fmt.Errorf("load surplus envelope: %w", err)
			}
			priority := 0
			if len(items) > 0 {
				priority = items[len(items)-1].Priority + 1
			}
			items = append(items, core.AllocationPlanItem{
				EnvelopeID: surplus.ID,
				Amount:     remaining,
				IsRegular:  false,
				Priority:   priority,
			})
		}

		plan, err = q.InsertPlan(ctx, core.AllocationPlan{
			OwnerID:             ownerID,
			SourceTransactionID: transactionID,
			IncomeSourceID:      tx.IncomeSourceID,
			TotalAmount:         total,
			Status:              core.PlanPending,
			Items:               items,
		})
		return err
	})
	if err != nil {
		return core.AllocationPlan{}, err
	}

	slog.InfoContext(ctx, "Allocation plan proposed",
		"plan_id", plan.ID,
		"transaction_id", transactionID,
		"item_count", len(plan.Items),
		"total_cents", plan.TotalAmount.Cents)

	return plan, nil
}

// ApplyPlan credits every plan item's envelope and marks the plan applied,
// all in one database transaction. A plan applies at most once; applying an
// already-applied plan fails with ErrPlanAlreadyApplied and changes nothing.
func (s *AllocationService) ApplyPlan(ctx context.Context, ownerID, planID string) (core.AllocationPlan, error) {
	var plan core.AllocationPlan
	err := s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		var err error
		plan, err = q.GetPlan(ctx, ownerID, planID)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}
		switch plan.Status {
		case core.PlanApplied:
			return core.ErrPlanAlreadyApplied
		case core.PlanRejected:
			return core.ErrPlanRejected
		}

		// Envelopes are touched in id order regardless of item priority so
		// concurrent batch credits never deadlock on lock order.
		items := make([]core.AllocationPlanItem, len(plan.Items))
		copy(items, plan.Items)
		sort.Slice(items, func(i, j int) bool { return items[i].EnvelopeID < items[j].EnvelopeID })

		for _, item := range items {
			env, err := q.GetEnvelope(ctx, ownerID, item.EnvelopeID)
			if err != nil {
				return fmt.Errorf("load envelope %s: %w", item.EnvelopeID, err)
			}
			if err := q.UpdateEnvelopeBalance(ctx, ownerID, env.ID, env.Balance.Add(item.Amount)); err != nil {
				return fmt.Errorf("credit envelope %s: %w", env.ID, err)
			}
		}

		now := time.Now().UTC()
		if err := q.MarkPlanApplied(ctx, ownerID, planID, now); err != nil {
			return err
		}
		plan.Status = core.PlanApplied
		plan.AppliedAt = &now

		if err := q.UpdateTransactionPlan(ctx, ownerID, plan.SourceTransactionID, planID); err != nil {
			return err
		}
		if len(plan.Items) == 1 {
			if err := q.UpdateTransactionEnvelope(ctx, ownerID, plan.SourceTransactionID, plan.Items[0].EnvelopeID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.AllocationPlan{}, err
	}

	slog.InfoContext(ctx, "Allocation plan applied",
		"plan_id", planID,
		"item_count", len(plan.Items),
		"total_cents", plan.TotalAmount.Cents)

	publishEvent(ctx, s.amqpClient, amqp.NewLedgerEvent(
		amqp.EventPlanApplied, ownerID, planID, plan.TotalAmount.Cents,
		fmt.Sprintf("%d envelopes", len(plan.Items))))

	return plan, nil
}

// RejectPlan marks a pending plan rejected. Rejected plans are kept for
// history and can never be applied afterwards.
func (s *AllocationService) RejectPlan(ctx context.Context, ownerID, planID string) error {
	return s.storage.WithinTx(ctx, func(q *storage.Queries) error {
		plan, err := q.GetPlan(ctx, ownerID, planID)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}
		switch plan.Status {
		case core.PlanApplied:
			return core.ErrPlanAlreadyApplied
		case core.PlanRejected:
			return core.ErrPlanRejected
		}
		return q.MarkPlanRejected(ctx, ownerID, planID)
	})
}

// GetPlan returns a plan with its items.
func (s *AllocationService) GetPlan(ctx context.Context, ownerID, planID string) (core.AllocationPlan, error) {
	return s.storage.Queries().GetPlan(ctx, ownerID, planID)
}
