package models

import "time"

// GameSettings holds the default phase durations of a game, in minutes.
type GameSettings struct {
	AnnonceMinutes    int `json:"annonce"`
	ContestsMinutes   int `json:"contests"`
	TempsLibreMinutes int `json:"temps_libre"`
}

// DefaultGameSettings returns the durations used when a game is created without settings.
func DefaultGameSettings() GameSettings {
	return GameSettings{AnnonceMinutes: 5, ContestsMinutes: 20, TempsLibreMinutes: 10}
}

// TimerSnapshot is the persisted timer state of a game. Readers reconstruct the
// live countdown from it; nobody trusts a local interval.
type TimerSnapshot struct {
	TimeLeftSeconds      int                          `json:"time_left_seconds"`
	GlobalElapsedSeconds int                          `json:"global_elapsed_seconds"`
	PhaseElapsedSeconds  int                          `json:"phase_elapsed_seconds,omitempty"` // counted down since the phase was entered
	TimerActive          bool                         `json:"timer_active"`
	UpdatedAt            time.Time                    `json:"updated_at"`
	PerPhaseRemaining    map[string]int               `json:"per_phase_remaining,omitempty"`
	ContestAssignments   map[string]map[string]string `json:"contest_assignments,omitempty"` // contest -> rank -> team
}

// GameInstance is one running (or provisioned) game session.
type GameInstance struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	Settings  GameSettings  `json:"settings"`
	Timer     TimerSnapshot `json:"timer_snapshot"`
	CreatedAt time.Time     `json:"created_at"`
}

// TimerView is the reconstructed timer state sent to clients.
type TimerView struct {
	GameID               string                       `json:"game_id"`
	Status               string                       `json:"status"`
	Phase                string                       `json:"phase,omitempty"`
	Cycle                int                          `json:"cycle,omitempty"`
	TimeLeftSeconds      int                          `json:"time_left_seconds"`
	GlobalElapsedSeconds int                          `json:"global_elapsed_seconds"`
	TimerActive          bool                         `json:"timer_active"`
	UpdatedAt            time.Time                    `json:"updated_at"`
	ServerTime           time.Time                    `json:"server_time"`
	ContestAssignments   map[string]map[string]string `json:"contest_assignments,omitempty"`
}

// Team is a brigade playing a game.
type Team struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	Name      string    `json:"name"`
	JoinCode  string    `json:"join_code"`
	CreatedAt time.Time `json:"created_at"`
}

// RecipeStep is one step of the reference or a candidate recipe.
type RecipeStep struct {
	StepIndex  int    `json:"step_index" yaml:"step"`
	Ingredient string `json:"ingredient" yaml:"ingredient"`
	Technique  string `json:"technique" yaml:"technique"`
	Tool       string `json:"tool" yaml:"tool"`
}

// StepScore is the scored result of one candidate step.
type StepScore struct {
	Step            int     `json:"step"`
	IngredientScore float64 `json:"ingredient_score"`
	TechniqueScore  float64 `json:"technique_score"`
	ToolScore       float64 `json:"tool_score"`
	StepScore       float64 `json:"step_score"`
	IngredientLabel string  `json:"ingredient_label"`
	TechniqueLabel  string  `json:"technique_label"`
	ToolLabel       string  `json:"tool_label"`
	Feedback        string  `json:"feedback"`
}

// EvaluationResult is returned to the team and stored as the attempt details.
type EvaluationResult struct {
	Steps             []StepScore `json:"steps"`
	GlobalScore       float64     `json:"global_score"`
	GlobalFeedback    string      `json:"global_feedback"`
	AttemptNumber     int         `json:"attempt_number"`
	AttemptsRemaining int         `json:"attempts_remaining"`
}

// RecipeTestAttempt is one persisted evaluation.
type RecipeTestAttempt struct {
	ID            int64            `json:"id"`
	TeamID        string           `json:"team_id"`
	AttemptNumber int              `json:"attempt_number"`
	GlobalScore   float64          `json:"global_score"`
	Details       EvaluationResult `json:"details"`
	CreatedAt     time.Time        `json:"created_at"`
}

// GameLog is an append-only audit entry.
type GameLog struct {
	ID        int64     `json:"id"`
	GameID    string    `json:"game_id"`
	TeamID    string    `json:"team_id,omitempty"`
	EventType string    `json:"event_type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	GameID  string      `json:"game_id,omitempty"`
	Payload interface{} `json:"payload"`
}

// AttemptNotice announces a recorded attempt to the team's game.
type AttemptNotice struct {
	TeamID            string  `json:"team_id"`
	TeamName          string  `json:"team_name"`
	AttemptNumber     int     `json:"attempt_number"`
	GlobalScore       float64 `json:"global_score"`
	AttemptsRemaining int     `json:"attempts_remaining"`
}
