package http

import (
	"net/http"
	"time"

	"buste/internal/core"
	"buste/internal/services"
)

type cardSpendRequest struct {
	Amount  string `json:"amount"`
	SpentAt string `json:"spent_at"`
}

type cardInterestRequest struct {
	Amount    string `json:"amount"`
	ChargedAt string `json:"charged_at"`
}

type cardPaymentRequest struct {
	TransactionID string `json:"transaction_id"`
	Total         string `json:"total"`
	Method        string `json:"method"`
	ToHolding     string `json:"to_holding,omitempty"`
	ToDebt        string `json:"to_debt,omitempty"`
	ToInterest    string `json:"to_interest,omitempty"`
}

type cycleResponse struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	CycleKey       string    `json:"cycle_key"`
	StatementClose time.Time `json:"statement_close"`
	PaymentDue     time.Time `json:"payment_due"`
	SpendingCents  int64     `json:"spending_cents"`
	CoveredCents   int64     `json:"covered_cents"`
	InterestCents  int64     `json:"interest_cents"`
	IsClosed       bool      `json:"is_closed"`
}

type paymentResponse struct {
	ID                    string    `json:"id"`
	AccountID             string    `json:"account_id"`
	TransactionID         string    `json:"transaction_id"`
	TotalAmountCents      int64     `json:"total_amount_cents"`
	AmountToHoldingCents  int64     `json:"amount_to_holding_cents"`
	AmountToDebtCents     int64     `json:"amount_to_debt_cents"`
	AmountToInterestCents int64     `json:"amount_to_interest_cents"`
	Method                string    `json:"method"`
	CreatedAt             time.Time `json:"created_at"`
}

func toCycleResponse(c core.CardCycle) cycleResponse {
	return cycleResponse{
		ID:             c.ID,
		AccountID:      c.AccountID,
		CycleKey:       string(c.CycleKey),
		StatementClose: c.StatementClose,
		PaymentDue:     c.PaymentDue,
		SpendingCents:  c.Spending.Cents,
		CoveredCents:   c.Covered.Cents,
		InterestCents:  c.Interest.Cents,
		IsClosed:       c.IsClosed,
	}
}

func (s *Server) handleCardSpend(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	var req cardSpendRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	spentAt, err := ParseDate(req.SpentAt)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	cycle, err := s.cards.RecordCardSpend(r.Context(), owner, r.PathValue("id"), amount, spentAt)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Body(toCycleResponse(cycle)).Write(w)
}

func (s *Server) handleCardInterest(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	var req cardInterestRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	chargedAt, err := ParseDate(req.ChargedAt)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	cycle, err := s.cards.RecordInterest(r.Context(), owner, r.PathValue("id"), amount, chargedAt)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Body(toCycleResponse(cycle)).Write(w)
}

func (s *Server) handleCardPayment(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	var req cardPaymentRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	total, err := ParseAmount(req.Total)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	method := core.PaymentMethod(req.Method)
	var userSplit *services.PaymentSplit
	if method == core.PaymentUserSplit {
		split := services.PaymentSplit{}
		for _, part := range []struct {
			raw string
			dst *core.Money
		}{
			{req.ToHolding, &split.ToHolding},
			{req.ToDebt, &split.ToDebt},
			{req.ToInterest, &split.ToInterest},
		} {
			if part.raw == "" {
				continue
			}
			amount, err := ParseAmount(part.raw)
			if err != nil {
				BadRequest(w, err.Error())
				return
			}
			*part.dst = amount
		}
		userSplit = &split
	}

	rec, err := s.cards.ReconcilePayment(r.Context(), owner, r.PathValue("id"), req.TransactionID, total, method, userSplit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(paymentResponse{
		ID:                    rec.ID,
		AccountID:             rec.AccountID,
		TransactionID:         rec.TransactionID,
		TotalAmountCents:      rec.TotalAmount.Cents,
		AmountToHoldingCents:  rec.AmountToHolding.Cents,
		AmountToDebtCents:     rec.AmountToDebt.Cents,
		AmountToInterestCents: rec.AmountToInterest.Cents,
		Method:                string(rec.Method),
		CreatedAt:             rec.CreatedAt,
	}).Write(w)
}

func (s *Server) handleOpenCycles(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	cycles, err := s.cards.OpenCycles(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	out := make([]cycleResponse, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, toCycleResponse(c))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCloseCycle(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	cycle, err := s.cards.CloseCycle(r.Context(), owner, r.PathValue("id"), core.CycleKey(r.PathValue("key")))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Body(toCycleResponse(cycle)).Write(w)
}
