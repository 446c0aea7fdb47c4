package http

import (
	"net/http"

	"buste/internal/core"
)

type splitInput struct {
	EnvelopeID string `json:"envelope_id"`
	Amount     string `json:"amount"`
}

type saveSplitsRequest struct {
	Splits []splitInput `json:"splits"`
}

type splitResponse struct {
	ID          string `json:"id"`
	EnvelopeID  string `json:"envelope_id"`
	AmountCents int64  `json:"amount_cents"`
}

func toSplitResponses(splits []core.TransactionSplit) []splitResponse {
	out := make([]splitResponse, 0, len(splits))
	for _, s := range splits {
		out = append(out, splitResponse{ID: s.ID, EnvelopeID: s.EnvelopeID, AmountCents: s.Amount.Cents})
	}
	return out
}

func (s *Server) handleSaveSplits(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}
	transactionID := r.PathValue("id")

	var req saveSplitsRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	inputs := make([]core.SplitInput, 0, len(req.Splits))
	for _, in := range req.Splits {
		amount, err := ParseAmount(in.Amount)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		inputs = append(inputs, core.SplitInput{EnvelopeID: in.EnvelopeID, Amount: amount})
	}

	saved, err := s.splits.SaveSplits(r.Context(), owner, transactionID, inputs)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Body(toSplitResponses(saved)).Write(w)
}

func (s *Server) handleGetSplits(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOr401(w, r)
	if !ok {
		return
	}

	splits, err := s.splits.GetSplits(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	NewJSONResponse().Body(toSplitResponses(splits)).Write(w)
}
