package http

import (
	"net/http"
	"time"

	"buste/internal/core"
)

type transferRequest struct {
	FromEnvelopeID string `json:"from_envelope_id"`
	ToEnvelopeID   string `json:"to_envelope_id"`
	Amount         string `json:"amount"`
	Note           string `json:"note"`
}

type transferResponse struct {
	ID                     string    `json:"id"`
	FromEnvelopeID         string    `json:"from_envelope_id"`
	ToEnvelopeID           string    `json:"to_envelope_id"`
	AmountCents            int64     `json:"amount_cents"`
	FromBalanceBeforeCents int64     `json:"from_balance_before_cents"`
	FromBalanceAfterCents  int64     `json:"from_balance_after_cents"`
	ToBalanceBeforeCents   int64     `json:"to_balance_before_cents"`
	ToBalanceAfterCents    int64     `json:"to_balance_after_cents"`
	Note                   string    `json:"note,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

func toTransferResponse(t core.EnvelopeTransfer) transferResponse {
	return transferResponse{
		ID:                     t.ID,
		FromEnvelopeID:         t.FromEnvelopeID,
		ToEnvelopeID:           t.ToEnvelopeID,
		AmountCents:            t.Amount.Cents,
		FromBalanceBeforeCents: t.FromBalanceBefore.Cents,
		FromBalanceAfterCents:  t.FromBalanceAfter.Cents,
		ToBalanceBeforeCents:   t.ToBalanceBefore.Cents,
		ToBalanceAfterCents:    t.ToBalanceAfter.Cents,
		Note:                   t.Note,
		CreatedAt:              t.CreatedAt,
	}
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	transfer, err := s.transfers.Transfer(r.Context(), owner, req.FromEnvelopeID, req.ToEnvelopeID, amount, req.Note)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toTransferResponse(transfer)).Write(w)
}
