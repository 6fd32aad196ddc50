package handlers

import (
	"net/http"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/services"
)

// handleEvaluate scores a team's candidate recipe
func (h *Handlers) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req services.EvaluationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.Log, &APIError{
			Status:  http.StatusBadRequest,
			Code:    services.CodeInvalidRequest,
			Message: err.Error(),
		})
		return
	}

	result, err := h.Evaluation.Evaluate(r.Context(), clientAddr(r), req)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleGetReference(w http.ResponseWriter, r *http.Request) {
	steps, err := h.Reference.GetReference(r.Context())
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, ReferenceResponse{Steps: steps})
}

func (h *Handlers) handleReplaceReference(w http.ResponseWriter, r *http.Request) {
	var req ReferenceUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.Log, err)
		return
	}

	if err := h.Reference.ReplaceReference(r.Context(), req.Steps); err != nil {
		respondError(w, h.Log, err)
		return
	}
	h.Log.Info("Reference recipe replaced", "steps", len(req.Steps))
	h.handleGetReference(w, r)
}
