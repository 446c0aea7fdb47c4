package core

import (
	"time"
)

// Account kinds. Holding and wallet accounts are system-managed.
const (
	AccountChecking AccountKind = "checking"
	AccountSavings  AccountKind = "savings"
	AccountCredit   AccountKind = "credit"
	AccountHolding  AccountKind = "holding"
	AccountWallet   AccountKind = "wallet"
)

// Envelope subtypes.
const (
	EnvelopeBill     EnvelopeSubtype = "bill"
	EnvelopeSpending EnvelopeSubtype = "spending"
	EnvelopeSavings  EnvelopeSubtype = "savings"
	EnvelopeGoal     EnvelopeSubtype = "goal"
	EnvelopeTracking EnvelopeSubtype = "tracking"
	EnvelopeDebt     EnvelopeSubtype = "debt"
)

// Transaction types and statuses.
const (
	TransactionIncome   TransactionType = "income"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer"

	TransactionUnmatched TransactionStatus = "unmatched"
	TransactionPending   TransactionStatus = "pending"
	TransactionCleared   TransactionStatus = "cleared"
)

// Allocation plan statuses. A plan is immutable once applied.
const (
	PlanPending  PlanStatus = "pending"
	PlanApplied  PlanStatus = "applied"
	PlanRejected PlanStatus = "rejected"
)

// Payment reconciliation methods.
const (
	PaymentAutoSplit    PaymentMethod = "auto_split"
	PaymentUserSplit    PaymentMethod = "user_split"
	PaymentAllToDebt    PaymentMethod = "all_to_debt"
	PaymentAllToHolding PaymentMethod = "all_to_holding"
)

type (
	AccountKind       string
	EnvelopeSubtype   string
	TransactionType   string
	TransactionStatus string
	PlanStatus        string
	PaymentMethod     string

	// Account is a bank, credit-card, holding or wallet account. Its balance
	// is only ever mutated together with a ledger-visible cause (a transfer,
	// a transaction or a reconciliation).
	Account struct {
		ID                  string
		OwnerID             string
		Name                string
		Kind                AccountKind
		Balance             Money
		IsCreditCardHolding bool
		IsWallet            bool
		StatementCloseDay   int // day of month the card statement closes, 0 if not a card
		PaymentDueDay       int // day of month the payment is due, 0 if not a card
		CreatedAt           time.Time
	}

	// Envelope is a named sub-allocation of budgeted money with its own
	// balance, independent of the bank account holding the cash.
	Envelope struct {
		ID              string
		OwnerID         string
		Name            string
		Subtype         EnvelopeSubtype
		Balance         Money
		TargetAmount    Money
		LinkedAccountID string // credit-card-holding envelopes only
		LinkedDebtID    string
		IsSystem        bool // Surplus, Credit-Card Holding
		AllowOverdraft  bool
		CreatedAt       time.Time
	}

	// EnvelopeTransfer is one row of the append-only transfer log. It is
	// written exclusively by the transfer engine and never updated.
	EnvelopeTransfer struct {
		ID                string
		OwnerID           string
		FromEnvelopeID    string
		ToEnvelopeID      string
		Amount            Money
		FromBalanceBefore Money
		FromBalanceAfter  Money
		ToBalanceBefore   Money
		ToBalanceAfter    Money
		Note              string
		CreatedAt         time.Time
	}

	// Transaction is a bank transaction. Amount is signed: income positive,
	// expense negative.
	Transaction struct {
		ID                  string
		OwnerID             string
		AccountID           string
		Amount              Money
		Type                TransactionType
		Status              TransactionStatus
		EnvelopeID          string // set when the whole amount maps to one envelope
		ParentTransactionID string // auto-allocated children
		AllocationPlanID    string
		IncomeSourceID      string
		OccurredOn          time.Time
		CreatedAt           time.Time
	}

	// TransactionSplit divides one transaction across envelopes. The set of
	// splits for a transaction is replaced wholesale on every save.
	TransactionSplit struct {
		ID            string
		TransactionID string
		EnvelopeID    string
		Amount        Money
	}

	// SplitInput is the caller-supplied shape for SaveSplits.
	SplitInput struct {
		EnvelopeID string
		Amount     Money
	}

	// AllocationPlan proposes distributing one income transaction across
	// envelopes. Proposal and application are separate steps so user review
	// never holds a database transaction open.
	AllocationPlan struct {
		ID                  string
		OwnerID             string
		SourceTransactionID string
		IncomeSourceID      string
		TotalAmount         Money
		Status              PlanStatus
		Items               []AllocationPlanItem
		CreatedAt           time.Time
		AppliedAt           *time.Time
	}

	// AllocationPlanItem is one envelope's share of a plan. Regular items
	// come from recurring allocation rules; the remainder is routed to the
	// Surplus envelope as a non-regular item.
	AllocationPlanItem struct {
		ID         string
		PlanID     string
		EnvelopeID string
		Amount     Money
		IsRegular  bool
		Priority   int
	}

	// IncomeAllocationRule is a recurring per-envelope allocation tied to an
	// income source, consumed by the planner.
	IncomeAllocationRule struct {
		ID             string
		OwnerID        string
		IncomeSourceID string
		EnvelopeID     string
		Amount         Money
		Priority       int
	}

	// IncomeSource is an expected recurring income (a salary, typically).
	IncomeSource struct {
		ID                          string
		OwnerID                     string
		Name                        string
		PayCycle                    PayCycle
		TypicalAmount               Money
		NextPayDate                 time.Time
		LastReconciledDate          *time.Time
		LastReconciledTransactionID string
		CreatedAt                   time.Time
	}

	// IncomeReconciliationEvent is the append-only record of matching an
	// actual income transaction to an expected one.
	IncomeReconciliationEvent struct {
		ID               string
		OwnerID          string
		IncomeSourceID   string
		TransactionID    string
		ExpectedAmount   Money
		ActualAmount     Money
		AmountVariance   Money
		ExpectedDate     time.Time
		ActualDate       time.Time
		DateVarianceDays int
		PreviousPayDate  time.Time
		NewPayDate       time.Time
		AllocationCount  int
		CreatedAt        time.Time
	}

	// CardCycle is one billing cycle of a credit-card account. One row per
	// account per cycle key; a closed cycle is frozen.
	CardCycle struct {
		ID             string
		OwnerID        string
		AccountID      string
		CycleKey       CycleKey
		StatementClose time.Time
		PaymentDue     time.Time
		Spending       Money
		Covered        Money
		Interest       Money
		IsClosed       bool
		CreatedAt      time.Time
	}

	// PaymentReconciliation is the append-only record of splitting one card
	// payment into holding, debt and interest components.
	PaymentReconciliation struct {
		ID               string
		OwnerID          string
		AccountID        string
		TransactionID    string
		TotalAmount      Money
		AmountToHolding  Money
		AmountToDebt     Money
		AmountToInterest Money
		Method           PaymentMethod
		CreatedAt        time.Time
	}

	// DebtItem tracks one debt. When linked to an account its balance is a
	// one-way mirror of abs(account balance); the account is authoritative.
	DebtItem struct {
		ID              string
		OwnerID         string
		EnvelopeID      string
		Name            string
		Type            string
		LinkedAccountID string
		StartingBalance Money
		CurrentBalance  Money
		APRPercent      float64
		MinimumPayment  Money
		PaidOffAt       *time.Time
		CreatedAt       time.Time
	}
)

// CanGoNegative reports whether the envelope may be driven below zero.
// Only envelopes explicitly marked allow-overdraft may; everything else
// fails with insufficient funds when a debit would overdraw it.
func (e Envelope) CanGoNegative() bool {
	return e.AllowOverdraft
}

// IsApplied reports whether the plan has been applied already.
func (p AllocationPlan) IsApplied() bool { return p.Status == PlanApplied }

// Validate checks a split input set against the owning transaction amount.
// The sum must match within one cent; splits of income transactions are
// positive while the transaction amount is signed, so comparison happens on
// absolute values.
func ValidateSplits(txAmount Money, splits []SplitInput) error {
	if len(splits) == 0 {
		return ErrEmptySplits
	}
	var sum Money
	for _, s := range splits {
		if err := s.Amount.Validate(); err != nil {
			return err
		}
		sum = sum.Add(s.Amount)
	}
	if !sum.WithinOneCent(txAmount.Abs()) {
		return &SplitMismatchError{Expected: txAmount.Abs(), Actual: sum}
	}
	return nil
}
