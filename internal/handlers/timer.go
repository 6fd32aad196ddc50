package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
)

type timerAction func(ctx context.Context, gameID string) (*models.TimerView, error)

// timerHandler adapts a body-less staff action to an HTTP handler
func (h *Handlers) timerHandler(action timerAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := action(r.Context(), chi.URLParam(r, "gameID"))
		if err != nil {
			respondError(w, h.Log, err)
			return
		}
		respondOK(w, view)
	}
}

func (h *Handlers) handleGetTimer(w http.ResponseWriter, r *http.Request) {
	h.timerHandler(h.Timer.GetTimerState)(w, r)
}

func (h *Handlers) handleStartGame(w http.ResponseWriter, r *http.Request) {
	h.timerHandler(h.Timer.StartGame)(w, r)
}

func (h *Handlers) handleTogglePause(w http.ResponseWriter, r *http.Request) {
	h.timerHandler(h.Timer.TogglePause)(w, r)
}

func (h *Handlers) handleResetPhase(w http.ResponseWriter, r *http.Request) {
	h.timerHandler(h.Timer.ResetPhaseTimer)(w, r)
}

func (h *Handlers) handleAdvanceCycle(w http.ResponseWriter, r *http.Request) {
	h.timerHandler(h.Timer.AdvanceCycle)(w, r)
}

func (h *Handlers) handleResetInstance(w http.ResponseWriter, r *http.Request) {
	h.timerHandler(h.Timer.ResetInstance)(w, r)
}

func (h *Handlers) handleSelectPhase(w http.ResponseWriter, r *http.Request) {
	var req PhaseSelectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.Log, err)
		return
	}

	view, err := h.Timer.SelectPhase(r.Context(), chi.URLParam(r, "gameID"), req.Phase)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, view)
}

func (h *Handlers) handleAdjustTime(w http.ResponseWriter, r *http.Request) {
	var req AdjustTimeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.Log, err)
		return
	}

	view, err := h.Timer.AdjustTime(r.Context(), chi.URLParam(r, "gameID"), req.DeltaSeconds)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, view)
}

func (h *Handlers) handleAssignContest(w http.ResponseWriter, r *http.Request) {
	var req ContestAssignRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.Log, err)
		return
	}

	view, err := h.Timer.AssignContest(r.Context(), chi.URLParam(r, "gameID"), chi.URLParam(r, "contestID"), req.Rank, req.TeamID)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, view)
}

func (h *Handlers) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.GameSettings
	if err := decodeJSON(r, &settings); err != nil {
		respondError(w, h.Log, err)
		return
	}

	game, err := h.Timer.UpdateSettings(r.Context(), chi.URLParam(r, "gameID"), settings)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, game)
}
