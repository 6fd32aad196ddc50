package services

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/errors"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/repository"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/timer"
)

// TimerStore is the storage used by TimerService
type TimerStore interface {
	repository.GameRepository
	repository.TeamRepository
	repository.LogRepository
}

// TimerService applies staff timer actions and commits the transitions the
// countdown driver makes on expiry.
type TimerService struct {
	log         logger.Logger
	repo        TimerStore
	clock       clockwork.Clock
	tracker     Tracker
	broadcaster Broadcaster

	// mu serializes load-transition-save sequences within the process.
	mu sync.Mutex
}

// NewTimerService creates a new TimerService
func NewTimerService(log logger.Logger, repo TimerStore, clock clockwork.Clock) *TimerService {
	return &TimerService{log: log, repo: repo, clock: clock}
}

// SetTracker sets the countdown driver kept in step with every commit
func (s *TimerService) SetTracker(t Tracker) {
	s.tracker = t
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *TimerService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

type transition func(st timer.State, settings models.GameSettings) (timer.State, timer.Event, error)

func (s *TimerService) loadGame(ctx context.Context, gameID string) (*models.GameInstance, timer.State, error) {
	g, err := s.repo.GetGame(ctx, gameID)
	if err == repository.ErrNotFound {
		return nil, timer.State{}, errors.NotFound("game not found")
	}
	if err != nil {
		return nil, timer.State{}, err
	}

	st, err := timer.FromGame(g)
	if err != nil {
		return nil, timer.State{}, errors.Wrap(err, errors.ErrInternal, "corrupt game status")
	}

	// The driver holds a newer state when an expiry commit is still pending.
	if s.tracker != nil {
		if local, ok := s.tracker.State(gameID); ok && local.Snapshot.UpdatedAt.After(st.Snapshot.UpdatedAt) {
			st = local
		}
	}
	return g, st, nil
}

func (s *TimerService) apply(ctx context.Context, gameID string, fn transition) (*models.TimerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, st, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	next, ev, err := fn(st, g.Settings)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, gameID, next, ev, g.Settings); err != nil {
		return nil, err
	}

	if s.tracker != nil {
		s.tracker.Track(gameID, next, g.Settings)
	}
	view := next.View(gameID, s.clock.Now())
	return &view, nil
}

func (s *TimerService) commit(ctx context.Context, gameID string, next timer.State, ev timer.Event, settings models.GameSettings) error {
	if err := s.repo.SaveTimerState(ctx, gameID, next.Status.String(), next.Snapshot); err != nil {
		return err
	}

	entry := &models.GameLog{
		GameID:    gameID,
		EventType: string(ev.Type),
		Message:   ev.Message,
		CreatedAt: next.Snapshot.UpdatedAt,
	}
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		s.log.Warn("Failed to write game log", "game", gameID, "event", ev.Type, "error", err)
	}

	s.log.Info("Timer transition", "game", gameID, "event", ev.Type, "status", next.Status.String())
	if s.broadcaster != nil {
		s.broadcaster.TimerChanged(gameID, next, settings)
	}
	return nil
}

// CommitTransition persists a transition the driver already applied locally.
// It is skipped when the stored snapshot is newer.
func (s *TimerService) CommitTransition(ctx context.Context, gameID string, next timer.State, ev timer.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if g.Timer.UpdatedAt.After(next.Snapshot.UpdatedAt) {
		s.log.Debug("Skipping stale expiry commit", "game", gameID, "status", next.Status.String())
		return nil
	}
	return s.commit(ctx, gameID, next, ev, g.Settings)
}

// GetTimerState returns the reconstructed timer of a game
func (s *TimerService) GetTimerState(ctx context.Context, gameID string) (*models.TimerView, error) {
	_, st, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	view := st.View(gameID, s.clock.Now())
	return &view, nil
}

// StartGame leaves setup for the first announcement
func (s *TimerService) StartGame(ctx context.Context, gameID string) (*models.TimerView, error) {
	return s.apply(ctx, gameID, func(st timer.State, settings models.GameSettings) (timer.State, timer.Event, error) {
		return st.Start(settings, s.clock.Now())
	})
}

// SelectPhase jumps to a phase of the current cycle
func (s *TimerService) SelectPhase(ctx context.Context, gameID, phase string) (*models.TimerView, error) {
	p, err := timer.ParsePhase(phase)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, gameID, func(st timer.State, settings models.GameSettings) (timer.State, timer.Event, error) {
		return st.SelectPhase(p, settings, s.clock.Now())
	})
}

// TogglePause pauses or resumes the countdown
func (s *TimerService) TogglePause(ctx context.Context, gameID string) (*models.TimerView, error) {
	return s.apply(ctx, gameID, func(st timer.State, _ models.GameSettings) (timer.State, timer.Event, error) {
		return st.TogglePause(s.clock.Now())
	})
}

// AdjustTime adds or removes seconds from the countdown
func (s *TimerService) AdjustTime(ctx context.Context, gameID string, deltaSeconds int) (*models.TimerView, error) {
	if deltaSeconds == 0 {
		return nil, errors.Validation("adjustment must not be zero")
	}
	return s.apply(ctx, gameID, func(st timer.State, _ models.GameSettings) (timer.State, timer.Event, error) {
		return st.Adjust(deltaSeconds, s.clock.Now())
	})
}

// ResetPhaseTimer reloads the current phase duration, paused
func (s *TimerService) ResetPhaseTimer(ctx context.Context, gameID string) (*models.TimerView, error) {
	return s.apply(ctx, gameID, func(st timer.State, settings models.GameSettings) (timer.State, timer.Event, error) {
		return st.ResetPhase(settings, s.clock.Now())
	})
}

// AdvanceCycle moves to the next cycle, or finishes the game after the last
func (s *TimerService) AdvanceCycle(ctx context.Context, gameID string) (*models.TimerView, error) {
	return s.apply(ctx, gameID, func(st timer.State, settings models.GameSettings) (timer.State, timer.Event, error) {
		return st.AdvanceCycle(settings, s.clock.Now())
	})
}

// ResetInstance returns the game to setup
func (s *TimerService) ResetInstance(ctx context.Context, gameID string) (*models.TimerView, error) {
	return s.apply(ctx, gameID, func(st timer.State, _ models.GameSettings) (timer.State, timer.Event, error) {
		next, ev := st.Reset(s.clock.Now())
		return next, ev, nil
	})
}

// AssignContest records a team's rank in a contest. An empty teamID clears the rank.
func (s *TimerService) AssignContest(ctx context.Context, gameID, contestID, rank, teamID string) (*models.TimerView, error) {
	if teamID != "" {
		t, err := s.repo.GetTeam(ctx, teamID)
		if err == repository.ErrNotFound {
			return nil, errors.NotFound("team not found")
		}
		if err != nil {
			return nil, err
		}
		if t.GameID != gameID {
			return nil, ErrTeamNotInGame
		}
	}
	return s.apply(ctx, gameID, func(st timer.State, _ models.GameSettings) (timer.State, timer.Event, error) {
		return st.AssignContest(contestID, rank, teamID, s.clock.Now())
	})
}

// UpdateSettings replaces the phase durations of a game. The running phase
// keeps its countdown; new durations apply from the next phase entered.
func (s *TimerService) UpdateSettings(ctx context.Context, gameID string, settings models.GameSettings) (*models.GameInstance, error) {
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.UpdateGameSettings(ctx, gameID, settings); err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NotFound("game not found")
		}
		return nil, err
	}
	g, st, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	// Retracking drops a pending expiry commit, so write the local state first.
	if st.Snapshot.UpdatedAt.After(g.Timer.UpdatedAt) {
		if err := s.repo.SaveTimerState(ctx, gameID, st.Status.String(), st.Snapshot); err != nil {
			return nil, err
		}
	}
	if s.tracker != nil {
		s.tracker.Track(gameID, st, g.Settings)
	}
	s.log.Info("Game settings updated", "game", gameID, "settings", settings)
	return g, nil
}

// ResumeAll hands every running game to the tracker, typically at startup.
func (s *TimerService) ResumeAll(ctx context.Context) (int, error) {
	if s.tracker == nil {
		return 0, nil
	}
	games, err := s.repo.ListGames(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for i := range games {
		st, err := timer.FromGame(&games[i])
		if err != nil {
			s.log.Warn("Skipping game with corrupt status", "game", games[i].ID, "status", games[i].Status)
			continue
		}
		if !st.Status.Running() {
			continue
		}
		s.tracker.Track(games[i].ID, st, games[i].Settings)
		n++
	}
	return n, nil
}
