package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxPayoffMonths caps the amortization simulation at 50 years. Reaching
// the cap means the payment never retires the balance; the result is the
// non-convergence sentinel, not an error.
const MaxPayoffMonths = 600

// NeverPaysOffMonths is the sentinel month count returned when a payment
// can never pay the balance off (payment not above monthly interest).
const NeverPaysOffMonths = 9999

// Projection types.
const (
	ProjectionMinimumOnly    ProjectionType = "minimum_only"
	ProjectionCurrentPayment ProjectionType = "current_payment"
	ProjectionCustom         ProjectionType = "custom"
)

type ProjectionType string

// PayoffProjection is the derived result of simulating monthly payments
// against a debt balance. It is recomputed on demand and never
// authoritative.
type PayoffProjection struct {
	StartingBalance Money
	APRPercent      float64
	MonthlyPayment  Money
	MonthsToPayoff  int
	TotalInterest   Money
	TotalPayments   Money
	PayoffDate      *time.Time // nil when the debt never pays off
	Type            ProjectionType
}

// NeverPaysOff reports whether the projection is the non-convergence
// sentinel.
func (p PayoffProjection) NeverPaysOff() bool {
	return p.MonthsToPayoff == NeverPaysOffMonths
}

// ComputePayoff simulates paying monthlyPayment against balance at the
// given APR, month by month: interest accrues on the running balance, the
// payment is applied, and the loop stops when the balance reaches zero or
// MaxPayoffMonths is hit.
//
// A balance of zero or less returns immediately with zero months and zero
// interest. A payment of zero or less, or a payment the first month's
// interest swallows entirely, returns the sentinel result instead of
// looping: MonthsToPayoff = NeverPaysOffMonths and a nil PayoffDate.
//
// The simulation runs on decimals rather than cents so rounding error does
// not accumulate across up to 600 iterations; results are rounded to cents
// once at the end.
func ComputePayoff(balance Money, aprPercent float64, monthlyPayment Money) PayoffProjection {
	proj := PayoffProjection{
		StartingBalance: balance,
		APRPercent:      aprPercent,
		MonthlyPayment:  monthlyPayment,
		Type:            ProjectionCustom,
	}

	if balance.Cents <= 0 {
		now := time.Now().UTC()
		proj.PayoffDate = &now
		return proj
	}
	if monthlyPayment.Cents <= 0 {
		proj.MonthsToPayoff = NeverPaysOffMonths
		return proj
	}

	monthlyRate := decimal.NewFromFloat(aprPercent).
		Div(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(12))
	remaining := decimal.New(balance.Cents, -2)
	payment := decimal.New(monthlyPayment.Cents, -2)
	totalInterest := decimal.Zero

	firstInterest := remaining.Mul(monthlyRate)
	if payment.LessThanOrEqual(firstInterest) {
		proj.MonthsToPayoff = NeverPaysOffMonths
		return proj
	}

	months := 0
	for remaining.IsPositive() && months < MaxPayoffMonths {
		interest := remaining.Mul(monthlyRate)
		totalInterest = totalInterest.Add(interest)
		remaining = remaining.Add(interest).Sub(payment)
		months++
	}

	if remaining.IsPositive() {
		// Cap reached without retiring the balance.
		proj.MonthsToPayoff = NeverPaysOffMonths
		return proj
	}

	// The last payment overshoots; give the overshoot back so total
	// payments equal balance plus interest.
	overshoot := remaining.Neg()
	totalPaid := payment.Mul(decimal.NewFromInt(int64(months))).Sub(overshoot)

	proj.MonthsToPayoff = months
	proj.TotalInterest = Money{Cents: totalInterest.Round(2).Shift(2).IntPart()}
	proj.TotalPayments = Money{Cents: totalPaid.Round(2).Shift(2).IntPart()}
	payoff := time.Now().UTC().AddDate(0, months, 0)
	proj.PayoffDate = &payoff
	return proj
}
