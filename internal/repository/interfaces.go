package repository

import (
	"context"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
)

// GameRepository defines game instance data operations
type GameRepository interface {
	CreateGame(ctx context.Context, g *models.GameInstance) error
	GetGame(ctx context.Context, id string) (*models.GameInstance, error)
	ListGames(ctx context.Context) ([]models.GameInstance, error)
	UpdateGameSettings(ctx context.Context, id string, settings models.GameSettings) error
	SaveTimerState(ctx context.Context, id, status string, snap models.TimerSnapshot) error
}

// TeamRepository defines team data operations
type TeamRepository interface {
	CreateTeam(ctx context.Context, t *models.Team) error
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	GetTeamByJoinCode(ctx context.Context, code string) (*models.Team, error)
	ListTeams(ctx context.Context, gameID string) ([]models.Team, error)
}

// RecipeRepository defines reference recipe data operations
type RecipeRepository interface {
	GetReference(ctx context.Context) ([]models.RecipeStep, error)
	ReplaceReference(ctx context.Context, steps []models.RecipeStep) error
}

// AttemptRepository defines recipe test attempt data operations
type AttemptRepository interface {
	CountAttempts(ctx context.Context, teamID string) (int, error)
	CreateAttempt(ctx context.Context, a *models.RecipeTestAttempt) (int64, error)
	ListAttempts(ctx context.Context, teamID string) ([]models.RecipeTestAttempt, error)
	DeleteAttempts(ctx context.Context, teamID string) (int64, error)
}

// LogRepository defines audit log data operations
type LogRepository interface {
	AppendLog(ctx context.Context, l *models.GameLog) error
	ListLogs(ctx context.Context, gameID string, limit int) ([]models.GameLog, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	GameRepository
	TeamRepository
	RecipeRepository
	AttemptRepository
	LogRepository
	Ping(ctx context.Context) error
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
