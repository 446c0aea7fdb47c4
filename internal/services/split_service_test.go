package services

import (
	"context"
	"errors"
	"testing"

	"buste/internal/core"
	"buste/internal/storage"
)

func splitFixture(t *testing.T) (*SplitService, *testSplitWorld) {
	t.Helper()
	repo := newTestRepo(t)
	w := &testSplitWorld{repo: repo}
	w.account = seedAccount(t, repo, core.Account{OwnerID: "owner-1", Name: "Checking", Kind: core.AccountChecking})
	w.groceries = seedEnvelope(t, repo, core.Envelope{OwnerID: "owner-1", Name: "Groceries", Subtype: core.EnvelopeSpending})
	w.household = seedEnvelope(t, repo, core.Envelope{OwnerID: "owner-1", Name: "Household", Subtype: core.EnvelopeSpending})
	w.tx = seedTransaction(t, repo, core.Transaction{
		OwnerID:   "owner-1",
		AccountID: w.account.ID,
		Amount:    cents(-5000),
		Type:      core.TransactionExpense,
	})
	return NewSplitService(repo, nil), w
}

type testSplitWorld struct {
	repo      *storage.SQLiteRepository
	account   core.Account
	groceries core.Envelope
	household core.Envelope
	tx        core.Transaction
}

func TestSaveSplitsReplacesWholesale(t *testing.T) {
	svc, w := splitFixture(t)
	ctx := context.Background()

	first, err := svc.SaveSplits(ctx, "owner-1", w.tx.ID, []core.SplitInput{
		{EnvelopeID: w.groceries.ID, Amount: cents(3000)},
		{EnvelopeID: w.household.ID, Amount: cents(2000)},
	})
	if err != nil {
		t.Fatalf("first SaveSplits: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("saved %d splits, want 2", len(first))
	}

	// Second save replaces the set entirely.
	second, err := svc.SaveSplits(ctx, "owner-1", w.tx.ID, []core.SplitInput{
		{EnvelopeID: w.household.ID, Amount: cents(5000)},
	})
	if err != nil {
		t.Fatalf("second SaveSplits: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("saved %d splits, want 1", len(second))
	}

	stored, err := svc.GetSplits(ctx, "owner-1", w.tx.ID)
	if err != nil {
		t.Fatalf("GetSplits: %v", err)
	}
	if len(stored) != 1 || stored[0].EnvelopeID != w.household.ID {
		t.Errorf("stored splits = %+v, want single household split", stored)
	}

	// A single split maps the whole transaction to that envelope and an
	// unmatched transaction moves to pending.
	tx, err := w.repo.Queries().GetTransaction(ctx, "owner-1", w.tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx.EnvelopeID != w.household.ID {
		t.Errorf("transaction envelope = %q, want %q", tx.EnvelopeID, w.household.ID)
	}
	if tx.Status != core.TransactionPending {
		t.Errorf("transaction status = %q, want pending", tx.Status)
	}
}

func TestSaveSplitsMultiClearsDirectEnvelope(t *testing.T) {
	svc, w := splitFixture(t)
	ctx := context.Background()

	if _, err := svc.SaveSplits(ctx, "owner-1", w.tx.ID, []core.SplitInput{
		{EnvelopeID: w.groceries.ID, Amount: cents(5000)},
	}); err != nil {
		t.Fatalf("single split: %v", err)
	}
	if _, err := svc.SaveSplits(ctx, "owner-1", w.tx.ID, []core.SplitInput{
		{EnvelopeID: w.groceries.ID, Amount: cents(2500)},
		{EnvelopeID: w.household.ID, Amount: cents(2500)},
	}); err != nil {
		t.Fatalf("multi split: %v", err)
	}

	tx, err := w.repo.Queries().GetTransaction(ctx, "owner-1", w.tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx.EnvelopeID != "" {
		t.Errorf("transaction envelope = %q, want cleared", tx.EnvelopeID)
	}
}

func TestSaveSplitsSumMismatch(t *testing.T) {
	svc, w := splitFixture(t)
	ctx := context.Background()

	_, err := svc.SaveSplits(ctx, "owner-1", w.tx.ID, []core.SplitInput{
		{EnvelopeID: w.groceries.ID, Amount: cents(3000)},
		{EnvelopeID: w.household.ID, Amount: cents(1000)},
	})
	var mismatch *core.SplitMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want SplitMismatchError", err)
	}
	if mismatch.Expected != cents(5000) || mismatch.Actual != cents(4000) {
		t.Errorf("mismatch = %+v", mismatch)
	}

	// The failed save left no splits behind.
	stored, err := svc.GetSplits(ctx, "owner-1", w.tx.ID)
	if err != nil {
		t.Fatalf("GetSplits: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("stored %d splits after failed save", len(stored))
	}
}

func TestSaveSplitsToleratesOneCent(t *testing.T) {
	svc, w := splitFixture(t)

	_, err := svc.SaveSplits(context.Background(), "owner-1", w.tx.ID, []core.SplitInput{
		{EnvelopeID: w.groceries.ID, Amount: cents(3000)},
		{EnvelopeID: w.household.ID, Amount: cents(2001)},
	})
	if err != nil {
		t.Fatalf("one-cent rounding rejected: %v", err)
	}
}

func TestSaveSplitsErrors(t *testing.T) {
	svc, w := splitFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		txID    string
		splits  []core.SplitInput
		wantErr error
	}{
		{"empty set", w.tx.ID, nil, core.ErrEmptySplits},
		{"unknown transaction", "missing", []core.SplitInput{{EnvelopeID: w.groceries.ID, Amount: cents(5000)}}, core.ErrNotFound},
		{"unknown envelope", w.tx.ID, []core.SplitInput{{EnvelopeID: "missing", Amount: cents(5000)}}, core.ErrMissingEnvelope},
		{"negative split", w.tx.ID, []core.SplitInput{{EnvelopeID: w.groceries.ID, Amount: cents(-5000)}}, core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SaveSplits(ctx, "owner-1", tt.txID, tt.splits); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
