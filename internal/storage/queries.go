package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"buste/internal/core"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so every query can run either
// standalone or inside a unit of work.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries bundles the typed SQL of the ledger. All lookups are owner-scoped;
// a row belonging to another owner is indistinguishable from a missing one.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Timestamps are stored as RFC3339 UTC text.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func newID() string {
	return uuid.NewString()
}

// ---- accounts ----

const accountColumns = `id, owner_id, name, kind, balance_cents, is_credit_card_holding,
	is_wallet, statement_close_day, payment_due_day, created_at`

func (q *Queries) scanAccount(row *sql.Row) (core.Account, error) {
	var a core.Account
	var createdAt string
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Kind, &a.Balance.Cents,
		&a.IsCreditCardHolding, &a.IsWallet, &a.StatementCloseDay, &a.PaymentDueDay, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func (q *Queries) GetAccount(ctx context.Context, ownerID, id string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
	return q.scanAccount(row)
}

func (q *Queries) InsertAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = time.Now().UTC()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Name, a.Kind, a.Balance.Cents, a.IsCreditCardHolding,
		a.IsWallet, a.StatementCloseDay, a.PaymentDueDay, fmtTime(a.CreatedAt))
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

func (q *Queries) UpdateAccountBalance(ctx context.Context, ownerID, id string, balance core.Money) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = ? WHERE id = ? AND owner_id = ?`,
		balance.Cents, id, ownerID)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	return requireRow(res)
}

// ListCardAccounts returns all credit-card accounts for every owner; the
// cycle worker uses it to open and close billing cycles.
func (q *Queries) ListCardAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE kind = ? ORDER BY created_at`, core.AccountCredit)
	if err != nil {
		return nil, fmt.Errorf("list card accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		var createdAt string
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Kind, &a.Balance.Cents,
			&a.IsCreditCardHolding, &a.IsWallet, &a.StatementCloseDay, &a.PaymentDueDay, &createdAt); err != nil {
			return nil, fmt.Errorf("scan card account: %w", err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- envelopes ----

const envelopeColumns = `id, owner_id, name, subtype, balance_cents, target_cents,
	linked_account_id, linked_debt_id, is_system, allow_overdraft, created_at`

func scanEnvelopeRow(scan func(dest ...any) error) (core.Envelope, error) {
	var e core.Envelope
	var createdAt string
	err := scan(&e.ID, &e.OwnerID, &e.Name, &e.Subtype, &e.Balance.Cents, &e.TargetAmount.Cents,
		&e.LinkedAccountID, &e.LinkedDebtID, &e.IsSystem, &e.AllowOverdraft, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Envelope{}, core.ErrNotFound
	}
	if err != nil {
		return core.Envelope{}, fmt.Errorf("scan envelope: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Envelope{}, err
	}
	return e, nil
}

func (q *Queries) GetEnvelope(ctx context.Context, ownerID, id string) (core.Envelope, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+envelopeColumns+` FROM envelopes WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanEnvelopeRow(row.Scan)
}

// GetHoldingEnvelope returns the credit-card-holding envelope linked to an
// account. Missing rows surface as ErrNotFound; a card set up for envelope
// coverage must have one.
func (q *Queries) GetHoldingEnvelope(ctx context.Context, ownerID, accountID string) (core.Envelope, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+envelopeColumns+` FROM envelopes
		 WHERE owner_id = ? AND linked_account_id = ? AND is_system = 1`,
		ownerID, accountID)
	return scanEnvelopeRow(row.Scan)
}

// GetSurplusEnvelope returns the owner's system Surplus envelope.
func (q *Queries) GetSurplusEnvelope(ctx context.Context, ownerID string) (core.Envelope, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+envelopeColumns+` FROM envelopes
		 WHERE owner_id = ? AND is_system = 1 AND name = 'Surplus'`,
		ownerID)
	return scanEnvelopeRow(row.Scan)
}

func (q *Queries) InsertEnvelope(ctx context.Context, e core.Envelope) (core.Envelope, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	e.CreatedAt = time.Now().UTC()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO envelopes (`+envelopeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Name, e.Subtype, e.Balance.Cents, e.TargetAmount.Cents,
		e.LinkedAccountID, e.LinkedDebtID, e.IsSystem, e.AllowOverdraft, fmtTime(e.CreatedAt))
	if err != nil {
		return core.Envelope{}, fmt.Errorf("insert envelope: %w", err)
	}
	return e, nil
}

func (q *Queries) UpdateEnvelopeBalance(ctx context.Context, ownerID, id string, balance core.Money) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE envelopes SET balance_cents = ? WHERE id = ? AND owner_id = ?`,
		balance.Cents, id, ownerID)
	if err != nil {
		return fmt.Errorf("update envelope balance: %w", err)
	}
	return requireRow(res)
}

// ---- envelope transfers ----

func (q *Queries) InsertEnvelopeTransfer(ctx context.Context, t core.EnvelopeTransfer) (core.EnvelopeTransfer, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = time.Now().UTC()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO envelope_transfers (id, owner_id, from_envelope_id, to_envelope_id,
		   amount_cents, from_balance_before_cents, from_balance_after_cents,
		   to_balance_before_cents, to_balance_after_cents, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.FromEnvelopeID, t.ToEnvelopeID,
		t.Amount.Cents, t.FromBalanceBefore.Cents, t.FromBalanceAfter.Cents,
		t.ToBalanceBefore.Cents, t.ToBalanceAfter.Cents, t.Note, fmtTime(t.CreatedAt))
	if err != nil {
		return core.EnvelopeTransfer{}, fmt.Errorf("insert envelope transfer: %w", err)
	}
	return t, nil
}

// ---- transactions ----

const transactionColumns = `id, owner_id, account_id, amount_cents, type, status,
	envelope_id, parent_transaction_id, allocation_plan_id, income_source_id, occurred_on, created_at`

func (q *Queries) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)

	var t core.Transaction
	var occurredOn, createdAt string
	err := row.Scan(&t.ID, &t.OwnerID, &t.AccountID, &t.Amount.Cents, &t.Type, &t.Status,
		&t.EnvelopeID, &t.ParentTransactionID, &t.AllocationPlanID, &t.IncomeSourceID,
		&occurredOn, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	if t.OccurredOn, err = parseTime(occurredOn); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Status == "" {
		t.Status = core.TransactionUnmatched
	}
	if t.OccurredOn.IsZero() {
		t.OccurredOn = time.Now().UTC()
	}
	t.CreatedAt = time.Now().UTC()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.AccountID, t.Amount.Cents, t.Type, t.Status,
		t.EnvelopeID, t.ParentTransactionID, t.AllocationPlanID, t.IncomeSourceID,
		fmtTime(t.OccurredOn), fmtTime(t.CreatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

func (q *Queries) UpdateTransactionEnvelope(ctx context.Context, ownerID, id, envelopeID string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET envelope_id = ? WHERE id = ? AND owner_id = ?`,
		envelopeID, id, ownerID)
	if err != nil {
		return fmt.Errorf("update transaction envelope: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) UpdateTransactionStatus(ctx context.Context, ownerID, id string, status core.TransactionStatus) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ? AND owner_id = ?`,
		status, id, ownerID)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) UpdateTransactionIncomeSource(ctx context.Context, ownerID, id, incomeSourceID string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET income_source_id = ? WHERE id = ? AND owner_id = ?`,
		incomeSourceID, id, ownerID)
	if err != nil {
		return fmt.Errorf("update transaction income source: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) UpdateTransactionPlan(ctx context.Context, ownerID, id, planID string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET allocation_plan_id = ? WHERE id = ? AND owner_id = ?`,
		planID, id, ownerID)
	if err != nil {
		return fmt.Errorf("update transaction plan: %w", err)
	}
	return requireRow(res)
}

// ---- transaction splits ----

func (q *Queries) DeleteSplits(ctx context.Context, transactionID string) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM transaction_splits WHERE transaction_id = ?`, transactionID); err != nil {
		return fmt.Errorf("delete splits: %w", err)
	}
	return nil
}

func (q *Queries) InsertSplit(ctx context.Context, s core.TransactionSplit) (core.TransactionSplit, error) {
	if s.ID == "" {
		s.ID = newID()
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO transaction_splits (id, transaction_id, envelope_id, amount_cents)
		 VALUES (?, ?, ?, ?)`,
		s.ID, s.TransactionID, s.EnvelopeID, s.Amount.Cents)
	if err != nil {
		return core.TransactionSplit{}, fmt.Errorf("insert split: %w", err)
	}
	return s, nil
}

func (q *Queries) ListSplits(ctx context.Context, transactionID string) ([]core.TransactionSplit, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, transaction_id, envelope_id, amount_cents
		 FROM transaction_splits WHERE transaction_id = ? ORDER BY rowid`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list splits: %w", err)
	}
	defer rows.Close()

	var out []core.TransactionSplit
	for rows.Next() {
		var s core.TransactionSplit
		if err := rows.Scan(&s.ID, &s.TransactionID, &s.EnvelopeID, &s.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---- allocation plans ----

func (q *Queries) InsertPlan(ctx context.Context, p core.AllocationPlan) (core.AllocationPlan, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.Status == "" {
		p.Status = core.PlanPending
	}
	p.CreatedAt = time.Now().UTC()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO allocation_plans (id, owner_id, source_transaction_id, income_source_id,
		   total_cents, status, created_at, applied_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		p.ID, p.OwnerID, p.SourceTransactionID, p.IncomeSourceID,
		p.TotalAmount.Cents, p.Status, fmtTime(p.CreatedAt))
	if err != nil {
		return core.AllocationPlan{}, fmt.Errorf("insert allocation plan: %w", err)
	}
	for i := range p.Items {
		p.Items[i].PlanID = p.ID
		item, err := q.insertPlanItem(ctx, p.Items[i])
		if err != nil {
			return core.AllocationPlan{}, err
		}
		p.Items[i] = item
	}
	return p, nil
}

func (q *Queries) insertPlanItem(ctx context.Context, it core.AllocationPlanItem) (core.AllocationPlanItem, error) {
	if it.ID == "" {
		it.ID = newID()
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO allocation_plan_items (id, plan_id, envelope_id, amount_cents, is_regular, priority)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		it.ID, it.PlanID, it.EnvelopeID, it.Amount.Cents, it.IsRegular, it.Priority)
	if err != nil {
		return core.AllocationPlanItem{}, fmt.Errorf("insert plan item: %w", err)
	}
	return it, nil
}

func (q *Queries) GetPlan(ctx context.Context, ownerID, id string) (core.AllocationPlan, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, owner_id, source_transaction_id, income_source_id, total_cents, status, created_at, applied_at
		 FROM allocation_plans WHERE id = ? AND owner_id = ?`, id, ownerID)

	var p core.AllocationPlan
	var createdAt string
	var appliedAt sql.NullString
	err := row.Scan(&p.ID, &p.OwnerID, &p.SourceTransactionID, &p.IncomeSourceID,
		&p.TotalAmount.Cents, &p.Status, &createdAt, &appliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AllocationPlan{}, core.ErrNotFound
	}
	if err != nil {
		return core.AllocationPlan{}, fmt.Errorf("scan allocation plan: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.AllocationPlan{}, err
	}
	if p.AppliedAt, err = parseNullTime(appliedAt); err != nil {
		return core.AllocationPlan{}, err
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT id, plan_id, envelope_id, amount_cents, is_regular, priority
		 FROM allocation_plan_items WHERE plan_id = ? ORDER BY priority, rowid`, p.ID)
	if err != nil {
		return core.AllocationPlan{}, fmt.Errorf("list plan items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it core.AllocationPlanItem
		if err := rows.Scan(&it.ID, &it.PlanID, &it.EnvelopeID, &it.Amount.Cents, &it.IsRegular, &it.Priority); err != nil {
			return core.AllocationPlan{}, fmt.Errorf("scan plan item: %w", err)
		}
		p.Items = append(p.Items, it)
	}
	return p, rows.Err()
}

// MarkPlanApplied transitions a pending plan to applied. The status guard in
// the WHERE clause makes double application impossible even under races.
func (q *Queries) MarkPlanApplied(ctx context.Context, ownerID, id string, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE allocation_plans SET status = ?, applied_at = ?
		 WHERE id = ? AND owner_id = ? AND status = ?`,
		core.PlanApplied, fmtTime(at), id, ownerID, core.PlanPending)
	if err != nil {
		return fmt.Errorf("mark plan applied: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) MarkPlanRejected(ctx context.Context, ownerID, id string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE allocation_plans SET status = ? WHERE id = ? AND owner_id = ? AND status = ?`,
		core.PlanRejected, id, ownerID, core.PlanPending)
	if err != nil {
		return fmt.Errorf("mark plan rejected: %w", err)
	}
	return requireRow(res)
}

// ---- allocation rules ----

func (q *Queries) InsertAllocationRule(ctx context.Context, r core.IncomeAllocationRule) (core.IncomeAllocationRule, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO envelope_income_allocations (id, owner_id, income_source_id, envelope_id, amount_cents, priority)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, r.IncomeSourceID, r.EnvelopeID, r.Amount.Cents, r.Priority)
	if err != nil {
		return core.IncomeAllocationRule{}, fmt.Errorf("insert allocation rule: %w", err)
	}
	return r, nil
}

func (q *Queries) ListAllocationRules(ctx context.Context, ownerID, incomeSourceID string) ([]core.IncomeAllocationRule, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, owner_id, income_source_id, envelope_id, amount_cents, priority
		 FROM envelope_income_allocations
		 WHERE owner_id = ? AND income_source_id = ?
		 ORDER BY priority, rowid`, ownerID, incomeSourceID)
	if err != nil {
		return nil, fmt.Errorf("list allocation rules: %w", err)
	}
	defer rows.Close()

	var out []core.IncomeAllocationRule
	for rows.Next() {
		var r core.IncomeAllocationRule
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.IncomeSourceID, &r.EnvelopeID, &r.Amount.Cents, &r.Priority); err != nil {
			return nil, fmt.Errorf("scan allocation rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- income sources ----

func (q *Queries) GetIncomeSource(ctx context.Context, ownerID, id string) (core.IncomeSource, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, pay_cycle, typical_amount_cents, next_pay_date,
		        last_reconciled_date, last_reconciled_transaction_id, created_at
		 FROM income_sources WHERE id = ? AND owner_id = ?`, id, ownerID)

	var s core.IncomeSource
	var nextPay, createdAt string
	var lastDate sql.NullString
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.PayCycle, &s.TypicalAmount.Cents,
		&nextPay, &lastDate, &s.LastReconciledTransactionID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.IncomeSource{}, core.ErrNotFound
	}
	if err != nil {
		return core.IncomeSource{}, fmt.Errorf("scan income source: %w", err)
	}
	if s.NextPayDate, err = parseTime(nextPay); err != nil {
		return core.IncomeSource{}, err
	}
	if s.LastReconciledDate, err = parseNullTime(lastDate); err != nil {
		return core.IncomeSource{}, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.IncomeSource{}, err
	}
	return s, nil
}

func (q *Queries) InsertIncomeSource(ctx context.Context, s core.IncomeSource) (core.IncomeSource, error) {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.PayCycle == "" {
		s.PayCycle = core.PayMonthly
	}
	s.CreatedAt = time.Now().UTC()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO income_sources (id, owner_id, name, pay_cycle, typical_amount_cents,
		   next_pay_date, last_reconciled_date, last_reconciled_transaction_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULL, '', ?)`,
		s.ID, s.OwnerID, s.Name, s.PayCycle, s.TypicalAmount.Cents,
		fmtTime(s.NextPayDate), fmtTime(s.CreatedAt))
	if err != nil {
		return core.IncomeSource{}, fmt.Errorf("insert income source: %w", err)
	}
	return s, nil
}

func (q *Queries) UpdateIncomeSourceReconciled(ctx context.Context, ownerID, id string,
	nextPayDate, reconciledDate time.Time, transactionID string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE income_sources
		 SET next_pay_date = ?, last_reconciled_date = ?, last_reconciled_transaction_id = ?
		 WHERE id = ? AND owner_id = ?`,
		fmtTime(nextPayDate), fmtTime(reconciledDate), transactionID, id, ownerID)
	if err != nil {
		return fmt.Errorf("update income source: %w", err)
	}
	return requireRow(res)
}

// ---- income reconciliation events ----

func (q *Queries) ReconciliationExists(ctx context.Context, incomeSourceID, transactionID string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM income_reconciliation_events
		 WHERE income_source_id = ? AND transaction_id = ?`,
		incomeSourceID, transactionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check reconciliation: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) InsertReconciliationEvent(ctx context.Context, e core.IncomeReconciliationEvent) (core.IncomeReconciliationEvent, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	e.CreatedAt = time.Now().UTC()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO income_reconciliation_events (id, owner_id, income_source_id, transaction_id,
		   expected_cents, actual_cents, amount_variance_cents, expected_date, actual_date,
		   date_variance_days, previous_pay_date, new_pay_date, allocation_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.IncomeSourceID, e.TransactionID,
		e.ExpectedAmount.Cents, e.ActualAmount.Cents, e.AmountVariance.Cents,
		fmtTime(e.ExpectedDate), fmtTime(e.ActualDate),
		e.DateVarianceDays, fmtTime(e.PreviousPayDate), fmtTime(e.NewPayDate),
		e.AllocationCount, fmtTime(e.CreatedAt))
	if err != nil {
		return core.IncomeReconciliationEvent{}, fmt.Errorf("insert reconciliation event: %w", err)
	}
	return e, nil
}

// ---- credit-card cycles ----

const cycleColumns = `id, owner_id, account_id, cycle_key, statement_close, payment_due,
	spending_cents, covered_cents, interest_cents, is_closed, created_at`

func scanCycleRow(scan func(dest ...any) error) (core.CardCycle, error) {
	var c core.CardCycle
	var closeDate, dueDate, createdAt string
	err := scan(&c.ID, &c.OwnerID, &c.AccountID, &c.CycleKey, &closeDate, &dueDate,
		&c.Spending.Cents, &c.Covered.Cents, &c.Interest.Cents, &c.IsClosed, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CardCycle{}, core.ErrNotFound
	}
	if err != nil {
		return core.CardCycle{}, fmt.Errorf("scan card cycle: %w", err)
	}
	if c.StatementClose, err = parseTime(closeDate); err != nil {
		return core.CardCycle{}, err
	}
	if c.PaymentDue, err = parseTime(dueDate); err != nil {
		return core.CardCycle{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.CardCycle{}, err
	}
	return c, nil
}

func (q *Queries) GetCycle(ctx context.Context, ownerID, accountID string, key core.CycleKey) (core.CardCycle, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM credit_card_cycle_holdings
		 WHERE owner_id = ? AND account_id = ? AND cycle_key = ?`,
		ownerID, accountID, key)
	return scanCycleRow(row.Scan)
}

// ListOpenCycles returns the open cycles of an account, oldest first.
func (q *Queries) ListOpenCycles(ctx context.Context, ownerID, accountID string) ([]core.CardCycle, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+cycleColumns+` FROM credit_card_cycle_holdings
		 WHERE owner_id = ? AND account_id = ? AND is_closed = 0
		 ORDER BY cycle_key`, ownerID, accountID)
	if err != nil {
		return nil, fmt.Errorf("list open cycles: %w", err)
	}
	defer rows.Close()

	var out []core.CardCycle
	for rows.Next() {
		c, err := scanCycleRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) InsertCycle(ctx context.Context, c core.CardCycle) (core.CardCycle, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO credit_card_cycle_holdings (`+cycleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.AccountID, c.CycleKey, fmtTime(c.StatementClose), fmtTime(c.PaymentDue),
		c.Spending.Cents, c.Covered.Cents, c.Interest.Cents, c.IsClosed, fmtTime(c.CreatedAt))
	if err != nil {
		return core.CardCycle{}, fmt.Errorf("insert card cycle: %w", err)
	}
	return c, nil
}

func (q *Queries) UpdateCycleAmounts(ctx context.Context, ownerID, id string, spending, covered, interest core.Money) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE credit_card_cycle_holdings
		 SET spending_cents = ?, covered_cents = ?, interest_cents = ?
		 WHERE id = ? AND owner_id = ? AND is_closed = 0`,
		spending.Cents, covered.Cents, interest.Cents, id, ownerID)
	if err != nil {
		return fmt.Errorf("update cycle amounts: %w", err)
	}
	return requireRow(res)
}

// MarkCycleClosed freezes a cycle. The is_closed guard keeps a concurrent
// close from reporting success twice.
func (q *Queries) MarkCycleClosed(ctx context.Context, ownerID, id string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE credit_card_cycle_holdings SET is_closed = 1
		 WHERE id = ? AND owner_id = ? AND is_closed = 0`,
		id, ownerID)
	if err != nil {
		return fmt.Errorf("mark cycle closed: %w", err)
	}
	return requireRow(res)
}

// ---- payment reconciliations ----

func (q *Queries) InsertPaymentReconciliation(ctx context.Context, p core.PaymentReconciliation) (core.PaymentReconciliation, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = time.Now().UTC()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO credit_card_payment_reconciliations (id, owner_id, account_id, transaction_id,
		   total_cents, to_holding_cents, to_debt_cents, to_interest_cents, method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.AccountID, p.TransactionID,
		p.TotalAmount.Cents, p.AmountToHolding.Cents, p.AmountToDebt.Cents, p.AmountToInterest.Cents,
		p.Method, fmtTime(p.CreatedAt))
	if err != nil {
		return core.PaymentReconciliation{}, fmt.Errorf("insert payment reconciliation: %w", err)
	}
	return p, nil
}

// ---- debt items ----

const debtColumns = `id, owner_id, envelope_id, name, type, linked_account_id,
	starting_cents, current_cents, apr_percent, minimum_payment_cents, paid_off_at, created_at`

func scanDebtRow(scan func(dest ...any) error) (core.DebtItem, error) {
	var d core.DebtItem
	var paidOff sql.NullString
	var createdAt string
	err := scan(&d.ID, &d.OwnerID, &d.EnvelopeID, &d.Name, &d.Type, &d.LinkedAccountID,
		&d.StartingBalance.Cents, &d.CurrentBalance.Cents, &d.APRPercent,
		&d.MinimumPayment.Cents, &paidOff, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DebtItem{}, core.ErrNotFound
	}
	if err != nil {
		return core.DebtItem{}, fmt.Errorf("scan debt item: %w", err)
	}
	if d.PaidOffAt, err = parseNullTime(paidOff); err != nil {
		return core.DebtItem{}, err
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.DebtItem{}, err
	}
	return d, nil
}

func (q *Queries) GetDebtItem(ctx context.Context, ownerID, id string) (core.DebtItem, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+debtColumns+` FROM debt_items WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanDebtRow(row.Scan)
}

func (q *Queries) GetDebtItemByAccount(ctx context.Context, ownerID, accountID string) (core.DebtItem, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+debtColumns+` FROM debt_items WHERE owner_id = ? AND linked_account_id = ?`,
		ownerID, accountID)
	return scanDebtRow(row.Scan)
}

func (q *Queries) InsertDebtItem(ctx context.Context, d core.DebtItem) (core.DebtItem, error) {
	if d.ID == "" {
		d.ID = newID()
	}
	d.CreatedAt = time.Now().UTC()
	var paidOff any
	if d.PaidOffAt != nil {
		paidOff = fmtTime(*d.PaidOffAt)
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO debt_items (`+debtColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OwnerID, d.EnvelopeID, d.Name, d.Type, d.LinkedAccountID,
		d.StartingBalance.Cents, d.CurrentBalance.Cents, d.APRPercent,
		d.MinimumPayment.Cents, paidOff, fmtTime(d.CreatedAt))
	if err != nil {
		return core.DebtItem{}, fmt.Errorf("insert debt item: %w", err)
	}
	return d, nil
}

// UpdateDebtBalance writes the synced balance and the paid-off marker in one
// statement; the sync engine is the only caller allowed to touch paid_off_at.
func (q *Queries) UpdateDebtBalance(ctx context.Context, ownerID, id string, balance core.Money, paidOffAt *time.Time) error {
	var paidOff any
	if paidOffAt != nil {
		paidOff = fmtTime(*paidOffAt)
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE debt_items SET current_cents = ?, paid_off_at = ? WHERE id = ? AND owner_id = ?`,
		balance.Cents, paidOff, id, ownerID)
	if err != nil {
		return fmt.Errorf("update debt balance: %w", err)
	}
	return requireRow(res)
}

// requireRow converts a zero-row update into ErrNotFound so guarded updates
// (status transitions, owner-scoped writes) surface the right error.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
