package http

import (
	"net/http"
	"time"

	"buste/internal/core"
)

type incomeReconcileRequest struct {
	TransactionID string `json:"transaction_id"`
}

type incomeReconcileResponse struct {
	ID                  string    `json:"id"`
	IncomeSourceID      string    `json:"income_source_id"`
	TransactionID       string    `json:"transaction_id"`
	ExpectedAmountCents int64     `json:"expected_amount_cents"`
	ActualAmountCents   int64     `json:"actual_amount_cents"`
	AmountVarianceCents int64     `json:"amount_variance_cents"`
	ExpectedDate        time.Time `json:"expected_date"`
	ActualDate          time.Time `json:"actual_date"`
	DateVarianceDays    int       `json:"date_variance_days"`
	PreviousPayDate     time.Time `json:"previous_pay_date"`
	NewPayDate          time.Time `json:"new_pay_date"`
	AllocationCount     int       `json:"allocation_count"`
	CreatedAt           time.Time `json:"created_at"`
}

func toIncomeReconcileResponse(e core.IncomeReconciliationEvent) incomeReconcileResponse {
	return incomeReconcileResponse{
		ID:                  e.ID,
		IncomeSourceID:      e.IncomeSourceID,
		TransactionID:       e.TransactionID,
		ExpectedAmountCents: e.ExpectedAmount.Cents,
		ActualAmountCents:   e.ActualAmount.Cents,
		AmountVarianceCents: e.AmountVariance.Cents,
		ExpectedDate:        e.ExpectedDate,
		ActualDate:          e.ActualDate,
		DateVarianceDays:    e.DateVarianceDays,
		PreviousPayDate:     e.PreviousPayDate,
		NewPayDate:          e.NewPayDate,
		AllocationCount:     e.AllocationCount,
		CreatedAt:           e.CreatedAt,
	}
}

func (s *Server) handleIncomeReconcile(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	var req incomeReconcileRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	event, err := s.incomes.Reconcile(r.Context(), owner, r.PathValue("id"), req.TransactionID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toIncomeReconcileResponse(event)).Write(w)
}
