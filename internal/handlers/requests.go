package handlers

import "github.com/JEECE-SI/the-glitch-kitchen/internal/models"

// LoginRequest represents a staff login
type LoginRequest struct {
	Password string `json:"password"`
}

// GameCreateRequest represents a request to create a game
type GameCreateRequest struct {
	Name     string               `json:"name"`
	Settings *models.GameSettings `json:"settings,omitempty"`
}

// TeamCreateRequest represents a request to add a team to a game
type TeamCreateRequest struct {
	Name string `json:"name"`
}

// PhaseSelectRequest represents a jump to a phase of the current cycle
type PhaseSelectRequest struct {
	Phase string `json:"phase"`
}

// AdjustTimeRequest represents a countdown correction in seconds
type AdjustTimeRequest struct {
	DeltaSeconds int `json:"delta_seconds"`
}

// ContestAssignRequest represents a contest ranking. An empty team_id clears the rank.
type ContestAssignRequest struct {
	Rank   string `json:"rank"`
	TeamID string `json:"team_id"`
}

// ReferenceUpdateRequest replaces the reference recipe
type ReferenceUpdateRequest struct {
	Steps []models.RecipeStep `json:"steps"`
}
