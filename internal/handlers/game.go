package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ==================== Health ====================

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok"}
	if h.Hub != nil {
		resp.Clients = h.Hub.ClientCount()
	}
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Log.Error("Health check failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "unreachable"
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	respondOK(w, resp)
}

// ==================== Games ====================

func (h *Handlers) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.Game.ListGames(r.Context())
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, games)
}

func (h *Handlers) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req GameCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.Log, err)
		return
	}

	game, err := h.Game.CreateGame(r.Context(), req.Name, req.Settings)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondCreated(w, game)
}

func (h *Handlers) handleGetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.Game.GetGame(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, game)
}

func (h *Handlers) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, h.Log, BadRequest("Invalid limit parameter"))
			return
		}
		limit = n
	}

	logs, err := h.Game.ListLogs(r.Context(), chi.URLParam(r, "gameID"), limit)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, logs)
}

// ==================== Teams ====================

func (h *Handlers) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.Game.ListTeams(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, teams)
}

func (h *Handlers) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req TeamCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.Log, err)
		return
	}

	team, err := h.Game.CreateTeam(r.Context(), chi.URLParam(r, "gameID"), req.Name)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondCreated(w, team)
}

// handleTeamQR serves the join link of a team as a PNG
func (h *Handlers) handleTeamQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.Game.TeamQR(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		respondError(w, h.Log, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(png)
}

func (h *Handlers) handleResetAttempts(w http.ResponseWriter, r *http.Request) {
	n, err := h.Game.ResetAttempts(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, ResetAttemptsResponse{Deleted: n})
}

// ==================== Players ====================

func (h *Handlers) handleJoin(w http.ResponseWriter, r *http.Request) {
	team, err := h.Game.GetTeamByJoinCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	respondOK(w, JoinResponse{TeamID: team.ID, TeamName: team.Name, GameID: team.GameID})
}

func (h *Handlers) handleGetAttempts(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	attempts, err := h.Game.ListAttempts(r.Context(), teamID)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}

	respondOK(w, AttemptsResponse{
		TeamID:            teamID,
		Attempts:          attempts,
		AttemptsRemaining: max(0, h.Evaluation.MaxAttempts()-len(attempts)),
	})
}
