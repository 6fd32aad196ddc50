package mock

import (
	"context"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.CreateAttemptError = errors.New("disk I/O error")
//	svc := services.NewEvaluationService(log, mockRepo, classifier, clock, opts)
//	_, err := svc.Evaluate(ctx, "10.0.0.1", req)
//	// err is now a save_failed evaluation error carrying the computed result
type Repository struct {
	repository.FullRepository

	// ===== Game Errors =====
	CreateGameError         error
	GetGameError            error
	ListGamesError          error
	UpdateGameSettingsError error
	SaveTimerStateError     error

	// ===== Team Errors =====
	CreateTeamError        error
	GetTeamError           error
	GetTeamByJoinCodeError error
	ListTeamsError         error

	// ===== Recipe Errors =====
	GetReferenceError     error
	ReplaceReferenceError error

	// ===== Attempt Errors =====
	CountAttemptsError  error
	CreateAttemptError  error
	ListAttemptsError   error
	DeleteAttemptsError error

	// ===== Log Errors =====
	AppendLogError error
	ListLogsError  error

	// SaveTimerStateCalls counts SaveTimerState calls, failed ones included.
	SaveTimerStateCalls int
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// ===== Game Methods =====

func (m *Repository) CreateGame(ctx context.Context, g *models.GameInstance) error {
	if m.CreateGameError != nil {
		return m.CreateGameError
	}
	return m.FullRepository.CreateGame(ctx, g)
}

func (m *Repository) GetGame(ctx context.Context, id string) (*models.GameInstance, error) {
	if m.GetGameError != nil {
		return nil, m.GetGameError
	}
	return m.FullRepository.GetGame(ctx, id)
}

func (m *Repository) ListGames(ctx context.Context) ([]models.GameInstance, error) {
	if m.ListGamesError != nil {
		return nil, m.ListGamesError
	}
	return m.FullRepository.ListGames(ctx)
}

func (m *Repository) UpdateGameSettings(ctx context.Context, id string, settings models.GameSettings) error {
	if m.UpdateGameSettingsError != nil {
		return m.UpdateGameSettingsError
	}
	return m.FullRepository.UpdateGameSettings(ctx, id, settings)
}

func (m *Repository) SaveTimerState(ctx context.Context, id, status string, snap models.TimerSnapshot) error {
	m.SaveTimerStateCalls++
	if m.SaveTimerStateError != nil {
		return m.SaveTimerStateError
	}
	return m.FullRepository.SaveTimerState(ctx, id, status, snap)
}

// ===== Team Methods =====

func (m *Repository) CreateTeam(ctx context.Context, t *models.Team) error {
	if m.CreateTeamError != nil {
		return m.CreateTeamError
	}
	return m.FullRepository.CreateTeam(ctx, t)
}

func (m *Repository) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	if m.GetTeamError != nil {
		return nil, m.GetTeamError
	}
	return m.FullRepository.GetTeam(ctx, id)
}

func (m *Repository) GetTeamByJoinCode(ctx context.Context, code string) (*models.Team, error) {
	if m.GetTeamByJoinCodeError != nil {
		return nil, m.GetTeamByJoinCodeError
	}
	return m.FullRepository.GetTeamByJoinCode(ctx, code)
}

func (m *Repository) ListTeams(ctx context.Context, gameID string) ([]models.Team, error) {
	if m.ListTeamsError != nil {
		return nil, m.ListTeamsError
	}
	return m.FullRepository.ListTeams(ctx, gameID)
}

// ===== Recipe Methods =====

func (m *Repository) GetReference(ctx context.Context) ([]models.RecipeStep, error) {
	if m.GetReferenceError != nil {
		return nil, m.GetReferenceError
	}
	return m.FullRepository.GetReference(ctx)
}

func (m *Repository) ReplaceReference(ctx context.Context, steps []models.RecipeStep) error {
	if m.ReplaceReferenceError != nil {
		return m.ReplaceReferenceError
	}
	return m.FullRepository.ReplaceReference(ctx, steps)
}

// ===== Attempt Methods =====

func (m *Repository) CountAttempts(ctx context.Context, teamID string) (int, error) {
	if m.CountAttemptsError != nil {
		return 0, m.CountAttemptsError
	}
	return m.FullRepository.CountAttempts(ctx, teamID)
}

func (m *Repository) CreateAttempt(ctx context.Context, a *models.RecipeTestAttempt) (int64, error) {
	if m.CreateAttemptError != nil {
		return 0, m.CreateAttemptError
	}
	return m.FullRepository.CreateAttempt(ctx, a)
}

func (m *Repository) ListAttempts(ctx context.Context, teamID string) ([]models.RecipeTestAttempt, error) {
	if m.ListAttemptsError != nil {
		return nil, m.ListAttemptsError
	}
	return m.FullRepository.ListAttempts(ctx, teamID)
}

func (m *Repository) DeleteAttempts(ctx context.Context, teamID string) (int64, error) {
	if m.DeleteAttemptsError != nil {
		return 0, m.DeleteAttemptsError
	}
	return m.FullRepository.DeleteAttempts(ctx, teamID)
}

// ===== Log Methods =====

func (m *Repository) AppendLog(ctx context.Context, l *models.GameLog) error {
	if m.AppendLogError != nil {
		return m.AppendLogError
	}
	return m.FullRepository.AppendLog(ctx, l)
}

func (m *Repository) ListLogs(ctx context.Context, gameID string, limit int) ([]models.GameLog, error) {
	if m.ListLogsError != nil {
		return nil, m.ListLogsError
	}
	return m.FullRepository.ListLogs(ctx, gameID, limit)
}
