package handlers

import "github.com/JEECE-SI/the-glitch-kitchen/internal/models"

// JoinResponse is returned to a player opening a join link
type JoinResponse struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	GameID   string `json:"game_id"`
}

// AttemptsResponse lists the attempts of a team
type AttemptsResponse struct {
	TeamID            string                     `json:"team_id"`
	Attempts          []models.RecipeTestAttempt `json:"attempts"`
	AttemptsRemaining int                        `json:"attempts_remaining"`
}

// ResetAttemptsResponse reports how many attempts were cleared
type ResetAttemptsResponse struct {
	Deleted int64 `json:"deleted"`
}

// ReferenceResponse wraps the reference recipe
type ReferenceResponse struct {
	Steps []models.RecipeStep `json:"steps"`
}

// HealthResponse is the body of /healthz
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Clients  int    `json:"websocket_clients"`
}
