package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/skip2/go-qrcode"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/errors"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/repository"
)

// Join codes avoid characters that are easy to misread on a printed QR label.
const (
	joinCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	joinCodeLength   = 8
	joinCodeRetries  = 5
	maxPhaseMinutes  = 120
)

// GameStore is the storage used by GameService
type GameStore interface {
	repository.GameRepository
	repository.TeamRepository
	repository.AttemptRepository
	repository.LogRepository
}

// GameService handles game provisioning, teams and their attempts
type GameService struct {
	log     logger.Logger
	repo    GameStore
	clock   clockwork.Clock
	baseURL string
}

// NewGameService creates a new GameService
func NewGameService(log logger.Logger, repo GameStore, clock clockwork.Clock) *GameService {
	return &GameService{log: log, repo: repo, clock: clock}
}

// SetBaseURL sets the public URL printed in team join QR codes
func (s *GameService) SetBaseURL(url string) {
	s.baseURL = strings.TrimSuffix(url, "/")
}

// ValidateSettings checks that every phase duration is usable
func ValidateSettings(settings models.GameSettings) error {
	for _, m := range []int{settings.AnnonceMinutes, settings.ContestsMinutes, settings.TempsLibreMinutes} {
		if m < 1 || m > maxPhaseMinutes {
			return ErrInvalidDuration
		}
	}
	return nil
}

// CreateGame provisions a game in setup. Nil settings take the defaults.
func (s *GameService) CreateGame(ctx context.Context, name string, settings *models.GameSettings) (*models.GameInstance, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrGameNameRequired
	}
	cfg := models.DefaultGameSettings()
	if settings != nil {
		if err := ValidateSettings(*settings); err != nil {
			return nil, err
		}
		cfg = *settings
	}

	now := s.clock.Now().UTC()
	g := &models.GameInstance{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    "setup",
		Settings:  cfg,
		Timer:     models.TimerSnapshot{UpdatedAt: now},
		CreatedAt: now,
	}
	if err := s.repo.CreateGame(ctx, g); err != nil {
		return nil, err
	}
	s.log.Info("Game created", "game", g.ID, "name", g.Name)
	return g, nil
}

// ListGames returns every game, newest first
func (s *GameService) ListGames(ctx context.Context) ([]models.GameInstance, error) {
	return s.repo.ListGames(ctx)
}

// GetGame returns one game
func (s *GameService) GetGame(ctx context.Context, id string) (*models.GameInstance, error) {
	g, err := s.repo.GetGame(ctx, id)
	if err == repository.ErrNotFound {
		return nil, errors.NotFound("game not found")
	}
	return g, err
}

// ListLogs returns the most recent audit entries of a game
func (s *GameService) ListLogs(ctx context.Context, gameID string, limit int) ([]models.GameLog, error) {
	return s.repo.ListLogs(ctx, gameID, limit)
}

// CreateTeam registers a brigade in a game and gives it a join code
func (s *GameService) CreateTeam(ctx context.Context, gameID, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}
	if _, err := s.GetGame(ctx, gameID); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListTeams(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for _, t := range existing {
		if strings.EqualFold(t.Name, name) {
			return nil, ErrTeamNameTaken
		}
	}

	team := &models.Team{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Name:      name,
		CreatedAt: s.clock.Now().UTC(),
	}

	// A duplicate here can only be a join code collision since the name was checked.
	for i := 0; i < joinCodeRetries; i++ {
		code, err := gonanoid.Generate(joinCodeAlphabet, joinCodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate join code: %w", err)
		}
		team.JoinCode = code

		err = s.repo.CreateTeam(ctx, team)
		if err == nil {
			s.log.Info("Team created", "game", gameID, "team", team.ID, "name", team.Name)
			return team, nil
		}
		if err != repository.ErrDuplicate {
			return nil, err
		}
		s.log.Debug("Join code collision, retrying", "code", code, "attempt", i+1)
	}
	return nil, ErrJoinCodeExhausted
}

// ListTeams returns the teams of a game
func (s *GameService) ListTeams(ctx context.Context, gameID string) ([]models.Team, error) {
	return s.repo.ListTeams(ctx, gameID)
}

// GetTeamByJoinCode resolves a scanned join code
func (s *GameService) GetTeamByJoinCode(ctx context.Context, code string) (*models.Team, error) {
	t, err := s.repo.GetTeamByJoinCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err == repository.ErrNotFound {
		return nil, errors.NotFound("unknown join code")
	}
	return t, err
}

// TeamQR renders the join URL of a team as a PNG QR code
func (s *GameService) TeamQR(ctx context.Context, teamID string) ([]byte, error) {
	t, err := s.repo.GetTeam(ctx, teamID)
	if err == repository.ErrNotFound {
		return nil, errors.NotFound("team not found")
	}
	if err != nil {
		return nil, err
	}
	if s.baseURL == "" {
		return nil, ErrBaseURLMissing
	}
	return qrcode.Encode(fmt.Sprintf("%s/join/%s", s.baseURL, t.JoinCode), qrcode.Medium, 256)
}

// ListAttempts returns the recorded attempts of a team
func (s *GameService) ListAttempts(ctx context.Context, teamID string) ([]models.RecipeTestAttempt, error) {
	if _, err := s.repo.GetTeam(ctx, teamID); err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NotFound("team not found")
		}
		return nil, err
	}
	return s.repo.ListAttempts(ctx, teamID)
}

// ResetAttempts deletes every attempt of a team so it can submit again
func (s *GameService) ResetAttempts(ctx context.Context, teamID string) (int64, error) {
	t, err := s.repo.GetTeam(ctx, teamID)
	if err == repository.ErrNotFound {
		return 0, errors.NotFound("team not found")
	}
	if err != nil {
		return 0, err
	}

	n, err := s.repo.DeleteAttempts(ctx, teamID)
	if err != nil {
		return 0, err
	}

	entry := &models.GameLog{
		GameID:    t.GameID,
		TeamID:    t.ID,
		EventType: "attempts_reset",
		Message:   fmt.Sprintf("%d attempts of %s cleared by staff", n, t.Name),
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		s.log.Warn("Failed to write game log", "game", t.GameID, "error", err)
	}
	return n, nil
}
