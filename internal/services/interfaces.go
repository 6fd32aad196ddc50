package services

import (
	"context"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/timer"
)

// Broadcaster pushes committed changes to connected clients and peer processes
type Broadcaster interface {
	TimerChanged(gameID string, state timer.State, settings models.GameSettings)
	AttemptRecorded(gameID string, notice models.AttemptNotice)
}

// Tracker keeps the local countdown of each game in step with committed state
type Tracker interface {
	Track(gameID string, state timer.State, settings models.GameSettings)
	State(gameID string) (timer.State, bool)
}

// GameServicer defines the interface for game and team administration
type GameServicer interface {
	CreateGame(ctx context.Context, name string, settings *models.GameSettings) (*models.GameInstance, error)
	ListGames(ctx context.Context) ([]models.GameInstance, error)
	GetGame(ctx context.Context, id string) (*models.GameInstance, error)
	ListLogs(ctx context.Context, gameID string, limit int) ([]models.GameLog, error)
	CreateTeam(ctx context.Context, gameID, name string) (*models.Team, error)
	ListTeams(ctx context.Context, gameID string) ([]models.Team, error)
	GetTeamByJoinCode(ctx context.Context, code string) (*models.Team, error)
	TeamQR(ctx context.Context, teamID string) ([]byte, error)
	ListAttempts(ctx context.Context, teamID string) ([]models.RecipeTestAttempt, error)
	ResetAttempts(ctx context.Context, teamID string) (int64, error)
}

// TimerServicer defines the staff control surface of the phase timer
type TimerServicer interface {
	GetTimerState(ctx context.Context, gameID string) (*models.TimerView, error)
	StartGame(ctx context.Context, gameID string) (*models.TimerView, error)
	SelectPhase(ctx context.Context, gameID, phase string) (*models.TimerView, error)
	TogglePause(ctx context.Context, gameID string) (*models.TimerView, error)
	AdjustTime(ctx context.Context, gameID string, deltaSeconds int) (*models.TimerView, error)
	ResetPhaseTimer(ctx context.Context, gameID string) (*models.TimerView, error)
	AdvanceCycle(ctx context.Context, gameID string) (*models.TimerView, error)
	ResetInstance(ctx context.Context, gameID string) (*models.TimerView, error)
	AssignContest(ctx context.Context, gameID, contestID, rank, teamID string) (*models.TimerView, error)
	UpdateSettings(ctx context.Context, gameID string, settings models.GameSettings) (*models.GameInstance, error)
}

// ReferenceServicer defines the interface for the reference recipe
type ReferenceServicer interface {
	GetReference(ctx context.Context) ([]models.RecipeStep, error)
	ReplaceReference(ctx context.Context, steps []models.RecipeStep) error
}

// EvaluationServicer defines the interface for recipe evaluation
type EvaluationServicer interface {
	Evaluate(ctx context.Context, clientAddr string, req EvaluationRequest) (*models.EvaluationResult, error)
	MaxAttempts() int
}

// Ensure concrete types implement interfaces
var (
	_ GameServicer       = (*GameService)(nil)
	_ TimerServicer      = (*TimerService)(nil)
	_ ReferenceServicer  = (*ReferenceService)(nil)
	_ EvaluationServicer = (*EvaluationService)(nil)
	_ timer.Committer    = (*TimerService)(nil)
)
