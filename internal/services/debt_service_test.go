package services

import (
	"context"
	"errors"
	"testing"

	"buste/internal/core"
	"buste/internal/storage"
)

func debtFixture(t *testing.T, balanceCents int64) (*DebtService, *storage.SQLiteRepository, core.Account, core.DebtItem) {
	t.Helper()
	repo := newTestRepo(t)
	ctx := context.Background()

	account := seedAccount(t, repo, core.Account{
		OwnerID: "owner-1", Name: "Loan account", Kind: core.AccountCredit,
		Balance: cents(balanceCents), StatementCloseDay: 15, PaymentDueDay: 5,
	})
	debt, err := repo.Queries().InsertDebtItem(ctx, core.DebtItem{
		OwnerID: "owner-1", Name: "Car loan", Type: "loan",
		LinkedAccountID: account.ID,
		StartingBalance: cents(500000), CurrentBalance: cents(500000),
		APRPercent: 7.5, MinimumPayment: cents(15000),
	})
	if err != nil {
		t.Fatalf("seed debt item: %v", err)
	}
	return NewDebtService(repo, nil), repo, account, debt
}

func TestSyncFromAccountMirrorsAbsoluteBalance(t *testing.T) {
	svc, repo, account, _ := debtFixture(t, -123456)
	ctx := context.Background()

	debt, err := svc.SyncFromAccount(ctx, "owner-1", account.ID)
	if err != nil {
		t.Fatalf("SyncFromAccount: %v", err)
	}
	if debt.CurrentBalance != cents(123456) {
		t.Errorf("debt balance = %s, want 1234.56", debt.CurrentBalance)
	}
	if debt.PaidOffAt != nil {
		t.Error("paid_off_at set while balance outstanding")
	}

	// Paying the account to zero marks the debt paid off.
	if err := repo.Queries().UpdateAccountBalance(ctx, "owner-1", account.ID, cents(0)); err != nil {
		t.Fatalf("zero account: %v", err)
	}
	debt, err = svc.SyncFromAccount(ctx, "owner-1", account.ID)
	if err != nil {
		t.Fatalf("SyncFromAccount after zero: %v", err)
	}
	if !debt.CurrentBalance.IsZero() || debt.PaidOffAt == nil {
		t.Errorf("debt after payoff = balance %s, paid_off_at %v", debt.CurrentBalance, debt.PaidOffAt)
	}

	// New charges reopen the debt.
	if err := repo.Queries().UpdateAccountBalance(ctx, "owner-1", account.ID, cents(-2000)); err != nil {
		t.Fatalf("recharge account: %v", err)
	}
	debt, err = svc.SyncFromAccount(ctx, "owner-1", account.ID)
	if err != nil {
		t.Fatalf("SyncFromAccount after recharge: %v", err)
	}
	if debt.CurrentBalance != cents(2000) || debt.PaidOffAt != nil {
		t.Errorf("reopened debt = balance %s, paid_off_at %v", debt.CurrentBalance, debt.PaidOffAt)
	}
}

func TestSyncFromAccountWithoutLinkedDebt(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewDebtService(repo, nil)

	account := seedAccount(t, repo, core.Account{OwnerID: "owner-1", Name: "Checking", Kind: core.AccountChecking, Balance: cents(100)})
	if _, err := svc.SyncFromAccount(context.Background(), "owner-1", account.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPayoffDefaultsToMinimumPayment(t *testing.T) {
	svc, _, _, debt := debtFixture(t, -500000)
	ctx := context.Background()

	proj, err := svc.Payoff(ctx, "owner-1", debt.ID, nil)
	if err != nil {
		t.Fatalf("Payoff: %v", err)
	}
	if proj.Type != core.ProjectionMinimumOnly {
		t.Errorf("type = %q, want minimum_only", proj.Type)
	}
	if proj.MonthlyPayment != cents(15000) {
		t.Errorf("payment = %s, want minimum 150.00", proj.MonthlyPayment)
	}
	if proj.NeverPaysOff() {
		t.Error("150.00/month against 5000.00 at 7.5% should converge")
	}
	if proj.PayoffDate == nil {
		t.Error("converging projection missing payoff date")
	}
}

func TestPayoffCustomPayment(t *testing.T) {
	svc, _, _, debt := debtFixture(t, -500000)
	ctx := context.Background()

	custom := cents(50000)
	proj, err := svc.Payoff(ctx, "owner-1", debt.ID, &custom)
	if err != nil {
		t.Fatalf("Payoff: %v", err)
	}
	if proj.Type != core.ProjectionCustom {
		t.Errorf("type = %q, want custom", proj.Type)
	}
	if proj.MonthlyPayment != custom {
		t.Errorf("payment = %s, want 500.00", proj.MonthlyPayment)
	}

	// The cached projection answers the same inputs identically.
	again, err := svc.Payoff(ctx, "owner-1", debt.ID, &custom)
	if err != nil {
		t.Fatalf("second Payoff: %v", err)
	}
	if again.MonthsToPayoff != proj.MonthsToPayoff || again.TotalInterest != proj.TotalInterest {
		t.Errorf("cached projection differs: %+v vs %+v", again, proj)
	}
}

func TestPayoffUnknownDebt(t *testing.T) {
	svc, _, _, _ := debtFixture(t, -500000)
	if _, err := svc.Payoff(context.Background(), "owner-1", "missing", nil); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
