package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"buste/internal/core"
	"buste/internal/storage"
)

type cardWorld struct {
	repo    *storage.SQLiteRepository
	card    core.Account
	holding core.Envelope
	debt    core.DebtItem
	payment core.Transaction
}

// cardFixture seeds a credit card carrying 200.00 of debt with a linked
// debt item, a holding envelope and a recorded payment transaction.
// Statement closes on the 15th, payment due on the 5th.
func cardFixture(t *testing.T) (*CardService, *cardWorld) {
	t.Helper()
	repo := newTestRepo(t)
	ctx := context.Background()
	w := &cardWorld{repo: repo}

	w.card = seedAccount(t, repo, core.Account{
		OwnerID: "owner-1", Name: "Visa", Kind: core.AccountCredit,
		Balance: cents(-20000), StatementCloseDay: 15, PaymentDueDay: 5,
	})
	w.holding = seedEnvelope(t, repo, core.Envelope{
		OwnerID: "owner-1", Name: "Visa Holding", Subtype: core.EnvelopeTracking,
		LinkedAccountID: w.card.ID, IsSystem: true,
	})
	w.payment = seedTransaction(t, repo, core.Transaction{
		OwnerID: "owner-1", AccountID: w.card.ID,
		Amount: cents(-21000), Type: core.TransactionExpense,
		OccurredOn: date(2026, 8, 28),
	})
	var err error
	w.debt, err = repo.Queries().InsertDebtItem(ctx, core.DebtItem{
		OwnerID: "owner-1", Name: "Visa", Type: "credit_card",
		LinkedAccountID: w.card.ID,
		StartingBalance: cents(20000), CurrentBalance: cents(20000),
		APRPercent: 19.99, MinimumPayment: cents(2500),
	})
	if err != nil {
		t.Fatalf("seed debt item: %v", err)
	}
	return NewCardService(repo, nil), w
}

func mustDebt(t *testing.T, repo *storage.SQLiteRepository, ownerID, id string) core.DebtItem {
	t.Helper()
	d, err := repo.Queries().GetDebtItem(context.Background(), ownerID, id)
	if err != nil {
		t.Fatalf("get debt item: %v", err)
	}
	return d
}

func TestRecordCardSpendCoversAndSyncsDebt(t *testing.T) {
	svc, w := cardFixture(t)
	ctx := context.Background()

	cycle, err := svc.RecordCardSpend(ctx, "owner-1", w.card.ID, cents(5000), date(2026, 8, 10))
	if err != nil {
		t.Fatalf("RecordCardSpend: %v", err)
	}

	// 10 Aug is before the close day, so the spend lands in the August cycle.
	if cycle.CycleKey != core.CycleKey("2026-08") {
		t.Errorf("cycle key = %s, want 2026-08", cycle.CycleKey)
	}
	if cycle.Spending != cents(5000) || cycle.Covered != cents(5000) {
		t.Errorf("cycle spending/covered = %s/%s, want 50.00/50.00", cycle.Spending, cycle.Covered)
	}

	if got := mustEnvelope(t, w.repo, "owner-1", w.holding.ID).Balance; got != cents(5000) {
		t.Errorf("holding balance = %s, want 50.00", got)
	}
	if got := mustAccount(t, w.repo, "owner-1", w.card.ID).Balance; got != cents(-25000) {
		t.Errorf("card balance = %s, want -250.00", got)
	}
	if got := mustDebt(t, w.repo, "owner-1", w.debt.ID).CurrentBalance; got != cents(25000) {
		t.Errorf("debt balance = %s, want 250.00", got)
	}
}

func TestRecordCardSpendAfterCloseDayRollsForward(t *testing.T) {
	svc, w := cardFixture(t)

	cycle, err := svc.RecordCardSpend(context.Background(), "owner-1", w.card.ID, cents(1000), date(2026, 8, 20))
	if err != nil {
		t.Fatalf("RecordCardSpend: %v", err)
	}
	if cycle.CycleKey != core.CycleKey("2026-09") {
		t.Errorf("cycle key = %s, want 2026-09", cycle.CycleKey)
	}
	if !cycle.StatementClose.Equal(date(2026, 8, 15)) || !cycle.PaymentDue.Equal(date(2026, 9, 5)) {
		t.Errorf("cycle dates = %s / %s", cycle.StatementClose, cycle.PaymentDue)
	}
}

func TestRecordCardSpendWithoutHoldingEnvelope(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewCardService(repo, nil)
	ctx := context.Background()

	card := seedAccount(t, repo, core.Account{
		OwnerID: "owner-1", Name: "Plain card", Kind: core.AccountCredit,
		StatementCloseDay: 15, PaymentDueDay: 5,
	})
	cycle, err := svc.RecordCardSpend(ctx, "owner-1", card.ID, cents(3000), date(2026, 8, 1))
	if err != nil {
		t.Fatalf("RecordCardSpend: %v", err)
	}
	if cycle.Spending != cents(3000) || !cycle.Covered.IsZero() {
		t.Errorf("spending/covered = %s/%s, want 30.00/0.00", cycle.Spending, cycle.Covered)
	}
}

func TestRecordCardSpendRejectsNonCard(t *testing.T) {
	svc, w := cardFixture(t)
	checking := seedAccount(t, w.repo, core.Account{OwnerID: "owner-1", Name: "Checking", Kind: core.AccountChecking})

	if _, err := svc.RecordCardSpend(context.Background(), "owner-1", checking.ID, cents(100), date(2026, 8, 1)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReconcilePaymentAutoSplit(t *testing.T) {
	svc, w := cardFixture(t)
	ctx := context.Background()

	// 10.00 of interest accrues: debt grows to 210.00.
	if _, err := svc.RecordInterest(ctx, "owner-1", w.card.ID, cents(1000), date(2026, 8, 10)); err != nil {
		t.Fatalf("RecordInterest: %v", err)
	}

	// A 210.00 payment clears interest first, the rest goes to debt.
	rec, err := svc.ReconcilePayment(ctx, "owner-1", w.card.ID, w.payment.ID, cents(21000), core.PaymentAutoSplit, nil)
	if err != nil {
		t.Fatalf("ReconcilePayment: %v", err)
	}
	if rec.AmountToInterest != cents(1000) {
		t.Errorf("to interest = %s, want 10.00", rec.AmountToInterest)
	}
	if rec.AmountToDebt != cents(20000) {
		t.Errorf("to debt = %s, want 200.00", rec.AmountToDebt)
	}
	if !rec.AmountToHolding.IsZero() {
		t.Errorf("to holding = %s, want 0.00", rec.AmountToHolding)
	}

	// The card is settled and the debt item is marked paid off.
	if got := mustAccount(t, w.repo, "owner-1", w.card.ID).Balance; !got.IsZero() {
		t.Errorf("card balance = %s, want 0.00", got)
	}
	debt := mustDebt(t, w.repo, "owner-1", w.debt.ID)
	if !debt.CurrentBalance.IsZero() {
		t.Errorf("debt balance = %s, want 0.00", debt.CurrentBalance)
	}
	if debt.PaidOffAt == nil {
		t.Error("paid_off_at not set after debt cleared")
	}

	// The cycle's accrued interest was consumed by the payment.
	cycle, err := w.repo.Queries().GetCycle(ctx, "owner-1", w.card.ID, core.CycleKey("2026-08"))
	if err != nil {
		t.Fatalf("GetCycle: %v", err)
	}
	if !cycle.Interest.IsZero() {
		t.Errorf("cycle interest = %s, want 0.00", cycle.Interest)
	}
}

func TestReconcilePaymentAllToHoldingDrainsCoverage(t *testing.T) {
	svc, w := cardFixture(t)
	ctx := context.Background()

	if _, err := svc.RecordCardSpend(ctx, "owner-1", w.card.ID, cents(8000), date(2026, 8, 10)); err != nil {
		t.Fatalf("RecordCardSpend: %v", err)
	}

	rec, err := svc.ReconcilePayment(ctx, "owner-1", w.card.ID, w.payment.ID, cents(6000), core.PaymentAllToHolding, nil)
	if err != nil {
		t.Fatalf("ReconcilePayment: %v", err)
	}
	if rec.AmountToHolding != cents(6000) {
		t.Errorf("to holding = %s, want 60.00", rec.AmountToHolding)
	}

	// Holding balance and open coverage stay equal.
	holding := mustEnvelope(t, w.repo, "owner-1", w.holding.ID)
	cycle, err := w.repo.Queries().GetCycle(ctx, "owner-1", w.card.ID, core.CycleKey("2026-08"))
	if err != nil {
		t.Fatalf("GetCycle: %v", err)
	}
	if holding.Balance != cents(2000) || cycle.Covered != cents(2000) {
		t.Errorf("holding/covered = %s/%s, want 20.00/20.00", holding.Balance, cycle.Covered)
	}
}

func TestReconcilePaymentUserSplit(t *testing.T) {
	svc, w := cardFixture(t)
	ctx := context.Background()

	rec, err := svc.ReconcilePayment(ctx, "owner-1", w.card.ID, w.payment.ID, cents(10000), core.PaymentUserSplit,
		&PaymentSplit{ToDebt: cents(9000), ToInterest: cents(1000)})
	if err != nil {
		t.Fatalf("ReconcilePayment: %v", err)
	}
	if rec.AmountToDebt != cents(9000) || rec.AmountToInterest != cents(1000) {
		t.Errorf("split = %+v", rec)
	}
}

func TestReconcilePaymentUserSplitOverPayment(t *testing.T) {
	svc, w := cardFixture(t)

	_, err := svc.ReconcilePayment(context.Background(), "owner-1", w.card.ID, w.payment.ID,
		cents(10000), core.PaymentUserSplit,
		&PaymentSplit{ToHolding: cents(5000), ToDebt: cents(5002)})
	if !errors.Is(err, core.ErrOverPayment) {
		t.Fatalf("err = %v, want ErrOverPayment", err)
	}
}

func TestReconcilePaymentUserSplitToleratesOneCent(t *testing.T) {
	svc, w := cardFixture(t)

	_, err := svc.ReconcilePayment(context.Background(), "owner-1", w.card.ID, w.payment.ID,
		cents(10000), core.PaymentUserSplit,
		&PaymentSplit{ToDebt: cents(10001)})
	if err != nil {
		t.Fatalf("one-cent rounding rejected: %v", err)
	}
}

func TestReconcilePaymentUnknownTransaction(t *testing.T) {
	svc, w := cardFixture(t)

	_, err := svc.ReconcilePayment(context.Background(), "owner-1", w.card.ID, "missing",
		cents(1000), core.PaymentAllToDebt, nil)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// Nothing moved on the rejected payment.
	if got := mustAccount(t, w.repo, "owner-1", w.card.ID).Balance; got != cents(-20000) {
		t.Errorf("card balance = %s, want -200.00", got)
	}
}

func TestReconcilePaymentForeignTransactionIsNotFound(t *testing.T) {
	svc, w := cardFixture(t)

	foreign := seedTransaction(t, w.repo, core.Transaction{
		OwnerID: "owner-2", AccountID: w.card.ID,
		Amount: cents(-1000), Type: core.TransactionExpense,
	})
	_, err := svc.ReconcilePayment(context.Background(), "owner-1", w.card.ID, foreign.ID,
		cents(1000), core.PaymentAllToDebt, nil)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReconcilePaymentHoldingOverdraw(t *testing.T) {
	svc, w := cardFixture(t)
	ctx := context.Background()

	// 30.00 of spending puts 30.00 into the holding envelope.
	if _, err := svc.RecordCardSpend(ctx, "owner-1", w.card.ID, cents(3000), date(2026, 8, 10)); err != nil {
		t.Fatalf("RecordCardSpend: %v", err)
	}

	_, err := svc.ReconcilePayment(ctx, "owner-1", w.card.ID, w.payment.ID,
		cents(5000), core.PaymentAllToHolding, nil)
	if !errors.Is(err, core.ErrEnvelopeOverdraft) {
		t.Fatalf("err = %v, want ErrEnvelopeOverdraft", err)
	}
	if got := mustEnvelope(t, w.repo, "owner-1", w.holding.ID).Balance; got != cents(3000) {
		t.Errorf("holding balance = %s on failed reconcile, want 30.00", got)
	}
}

func TestCloseCycleFreezes(t *testing.T) {
	svc, w := cardFixture(t)
	ctx := context.Background()

	if _, err := svc.RecordCardSpend(ctx, "owner-1", w.card.ID, cents(5000), date(2026, 8, 10)); err != nil {
		t.Fatalf("RecordCardSpend: %v", err)
	}

	if _, err := svc.CloseCycle(ctx, "owner-1", w.card.ID, core.CycleKey("2026-08")); err != nil {
		t.Fatalf("CloseCycle: %v", err)
	}
	if _, err := svc.CloseCycle(ctx, "owner-1", w.card.ID, core.CycleKey("2026-08")); !errors.Is(err, core.ErrCycleClosed) {
		t.Fatalf("second close err = %v, want ErrCycleClosed", err)
	}

	// Closed cycles reject further spending.
	if _, err := svc.RecordCardSpend(ctx, "owner-1", w.card.ID, cents(100), date(2026, 8, 10)); !errors.Is(err, core.ErrCycleClosed) {
		t.Fatalf("spend into closed cycle err = %v, want ErrCycleClosed", err)
	}
}

func TestRollCyclesClosesPastDue(t *testing.T) {
	svc, w := cardFixture(t)
	ctx := context.Background()

	// A June spend opens the 2026-06 cycle, due 5 June.
	if _, err := svc.RecordCardSpend(ctx, "owner-1", w.card.ID, cents(4000), date(2026, 6, 1)); err != nil {
		t.Fatalf("RecordCardSpend: %v", err)
	}

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	closed, err := svc.RollCycles(ctx, now)
	if err != nil {
		t.Fatalf("RollCycles: %v", err)
	}
	if closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}

	june, err := w.repo.Queries().GetCycle(ctx, "owner-1", w.card.ID, core.CycleKey("2026-06"))
	if err != nil {
		t.Fatalf("GetCycle 2026-06: %v", err)
	}
	if !june.IsClosed {
		t.Error("past-due cycle still open")
	}

	// 31 Aug is past the close day, so the current cycle is 2026-09.
	current, err := w.repo.Queries().GetCycle(ctx, "owner-1", w.card.ID, core.CycleKey("2026-09"))
	if err != nil {
		t.Fatalf("GetCycle 2026-09: %v", err)
	}
	if current.IsClosed {
		t.Error("current cycle closed by roll")
	}
}
