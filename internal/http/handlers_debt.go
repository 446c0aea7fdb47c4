package http

import (
	"net/http"
	"strconv"
	"time"

	"buste/internal/core"
)

type debtResponse struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	LinkedAccountID      string     `json:"linked_account_id,omitempty"`
	StartingBalanceCents int64      `json:"starting_balance_cents"`
	CurrentBalanceCents  int64      `json:"current_balance_cents"`
	APRPercent           float64    `json:"apr_percent"`
	MinimumPaymentCents  int64      `json:"minimum_payment_cents"`
	PaidOffAt            *time.Time `json:"paid_off_at,omitempty"`
}

type projectionResponse struct {
	StartingBalanceCents int64      `json:"starting_balance_cents"`
	APRPercent           float64    `json:"apr_percent"`
	MonthlyPaymentCents  int64      `json:"monthly_payment_cents"`
	MonthsToPayoff       int        `json:"months_to_payoff"`
	TotalInterestCents   int64      `json:"total_interest_cents"`
	TotalPaymentsCents   int64      `json:"total_payments_cents"`
	PayoffDate           *time.Time `json:"payoff_date,omitempty"`
	NeverPaysOff         bool       `json:"never_pays_off"`
	Type                 string     `json:"type"`
}

func toDebtResponse(d core.DebtItem) debtResponse {
	return debtResponse{
		ID:                   d.ID,
		Name:                 d.Name,
		LinkedAccountID:      d.LinkedAccountID,
		StartingBalanceCents: d.StartingBalance.Cents,
		CurrentBalanceCents:  d.CurrentBalance.Cents,
		APRPercent:           d.APRPercent,
		MinimumPaymentCents:  d.MinimumPayment.Cents,
		PaidOffAt:            d.PaidOffAt,
	}
}

func (s *Server) handleDebtSync(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	debt, err := s.debts.SyncFromAccount(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Body(toDebtResponse(debt)).Write(w)
}

func (s *Server) handleDebtProjection(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	monthlyPayment, err := ParseOptionalAmount(r.URL.Query().Get("monthly_payment"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	proj, err := s.debts.Payoff(r.Context(), owner, r.PathValue("id"), monthlyPayment)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeProjection(w, proj)
}

// handlePayoffPreview computes a what-if projection from raw parameters,
// without touching any stored debt.
func (s *Server) handlePayoffPreview(w http.ResponseWriter, r *http.Request) {
	if _, ok := ownerOr401(w, r); !ok {
		return
	}

	q := r.URL.Query()
	balance, err := ParseAmount(q.Get("balance"))
	if err != nil {
		BadRequest(w, "balance: "+err.Error())
		return
	}
	payment, err := ParseAmount(q.Get("payment"))
	if err != nil {
		BadRequest(w, "payment: "+err.Error())
		return
	}
	apr, err := strconv.ParseFloat(q.Get("apr"), 64)
	if err != nil || apr < 0 {
		BadRequest(w, "apr: must be a non-negative percentage")
		return
	}

	writeProjection(w, core.ComputePayoff(balance, apr, payment))
}

func writeProjection(w http.ResponseWriter, proj core.PayoffProjection) {
	NewJSONResponse().Body(projectionResponse{
		StartingBalanceCents: proj.StartingBalance.Cents,
		APRPercent:           proj.APRPercent,
		MonthlyPaymentCents:  proj.MonthlyPayment.Cents,
		MonthsToPayoff:       proj.MonthsToPayoff,
		TotalInterestCents:   proj.TotalInterest.Cents,
		TotalPaymentsCents:   proj.TotalPayments.Cents,
		PayoffDate:           proj.PayoffDate,
		NeverPaysOff:         proj.NeverPaysOff(),
		Type:                 string(proj.Type),
	}).Write(w)
}
