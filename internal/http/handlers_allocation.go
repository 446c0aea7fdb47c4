package http

import (
	"net/http"
	"time"

	"buste/internal/core"
)

type planItemResponse struct {
	ID          string `json:"id"`
	EnvelopeID  string `json:"envelope_id"`
	AmountCents int64  `json:"amount_cents"`
	IsRegular   bool   `json:"is_regular"`
	Priority    int    `json:"priority"`
}

type planResponse struct {
	ID                  string             `json:"id"`
	SourceTransactionID string             `json:"source_transaction_id"`
	IncomeSourceID      string             `json:"income_source_id"`
	TotalAmountCents    int64              `json:"total_amount_cents"`
	Status              string             `json:"status"`
	Items               []planItemResponse `json:"items"`
	CreatedAt           time.Time          `json:"created_at"`
	AppliedAt           *time.Time         `json:"applied_at,omitempty"`
}

func toPlanResponse(p core.AllocationPlan) planResponse {
	items := make([]planItemResponse, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, planItemResponse{
			ID:          item.ID,
			EnvelopeID:  item.EnvelopeID,
			AmountCents: item.Amount.Cents,
			IsRegular:   item.IsRegular,
			Priority:    item.Priority,
		})
	}
	return planResponse{
		ID:                  p.ID,
		SourceTransactionID: p.SourceTransactionID,
		IncomeSourceID:      p.IncomeSourceID,
		TotalAmountCents:    p.TotalAmount.Cents,
		Status:              string(p.Status),
		Items:               items,
		CreatedAt:           p.CreatedAt,
		AppliedAt:           p.AppliedAt,
	}
}

func (s *Server) handleProposePlan(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	plan, err := s.allocations.ProposePlan(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toPlanResponse(plan)).Write(w)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	plan, err := s.allocations.GetPlan(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Body(toPlanResponse(plan)).Write(w)
}

func (s *Server) handleApplyPlan(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	plan, err := s.allocations.ApplyPlan(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Body(toPlanResponse(plan)).Write(w)
}

func (s *Server) handleRejectPlan(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	if err := s.allocations.RejectPlan(r.Context(), owner, r.PathValue("id")); err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
