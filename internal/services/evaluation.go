package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/repository"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/scoring"
	"github.com/JEECE-SI/the-glitch-kitchen/pkg/classifier"
)

// EvaluationRequest is a team's candidate recipe
type EvaluationRequest struct {
	TeamID string              `json:"team_id"`
	Steps  []models.RecipeStep `json:"candidate_recipe"`
}

// EvaluationOptions tunes the evaluation pipeline
type EvaluationOptions struct {
	MaxAttempts       int
	RateLimit         int
	RateWindow        time.Duration
	DedupGrace        time.Duration
	ClassifierTimeout time.Duration
	RequestTimeout    time.Duration
}

// DefaultEvaluationOptions returns the production limits
func DefaultEvaluationOptions() EvaluationOptions {
	return EvaluationOptions{
		MaxAttempts:       3,
		RateLimit:         3,
		RateWindow:        time.Minute,
		DedupGrace:        2 * time.Second,
		ClassifierTimeout: 25 * time.Second,
		RequestTimeout:    60 * time.Second,
	}
}

// EvaluationStore is the storage used by EvaluationService
type EvaluationStore interface {
	repository.TeamRepository
	repository.RecipeRepository
	repository.AttemptRepository
	repository.LogRepository
}

// EvaluationService scores candidate recipes against the reference
type EvaluationService struct {
	log         logger.Logger
	repo        EvaluationStore
	classifier  classifier.Client
	clock       clockwork.Clock
	opts        EvaluationOptions
	limiter     *RateLimiter
	inflight    *inflightGuard
	broadcaster Broadcaster
}

// NewEvaluationService creates a new EvaluationService
func NewEvaluationService(log logger.Logger, repo EvaluationStore, client classifier.Client, clock clockwork.Clock, opts EvaluationOptions) *EvaluationService {
	return &EvaluationService{
		log:        log,
		repo:       repo,
		classifier: client,
		clock:      clock,
		opts:       opts,
		limiter:    NewRateLimiter(clock, opts.RateLimit, opts.RateWindow),
		inflight:   newInflightGuard(clock, opts.DedupGrace),
	}
}

// MaxAttempts returns the number of evaluations each team is allowed
func (s *EvaluationService) MaxAttempts() int {
	return s.opts.MaxAttempts
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *EvaluationService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func validateRequest(req EvaluationRequest) error {
	if strings.TrimSpace(req.TeamID) == "" {
		return evalErr(CodeInvalidRequest, "team_id is required", nil)
	}
	seen := make(map[int]bool, len(req.Steps))
	for _, st := range req.Steps {
		if st.StepIndex < 1 || st.StepIndex > ReferenceSteps {
			return evalErr(CodeInvalidRequest, fmt.Sprintf("step_index %d is out of range 1-%d", st.StepIndex, ReferenceSteps), nil)
		}
		if seen[st.StepIndex] {
			return evalErr(CodeInvalidRequest, fmt.Sprintf("step_index %d appears twice", st.StepIndex), nil)
		}
		seen[st.StepIndex] = true
	}
	return nil
}

// Evaluate scores a candidate recipe and records it as the team's next
// attempt. Concurrent submissions for the same team share one evaluation.
func (s *EvaluationService) Evaluate(ctx context.Context, clientAddr string, req EvaluationRequest) (*models.EvaluationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if ok, wait := s.limiter.Allow(clientAddr); !ok {
		s.log.Warn("Evaluation rate limited", "client", clientAddr, "team", req.TeamID)
		return nil, &EvaluationError{
			Code:       CodeRateLimited,
			Message:    "too many evaluation requests, try again later",
			RetryAfter: wait,
		}
	}

	result, shared, err := s.inflight.do(ctx, req.TeamID, func() (*models.EvaluationResult, error) {
		// The work outlives the caller that started it since others may be waiting on it.
		ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RequestTimeout)
		defer cancel()
		return s.evaluate(ectx, req)
	})
	if shared {
		s.log.Debug("Joined in-flight evaluation", "team", req.TeamID)
	}
	if err != nil {
		var evErr *EvaluationError
		if stderrors.As(err, &evErr) {
			return nil, err
		}
		return nil, evalErr(CodeInternal, "evaluation was interrupted", err)
	}
	return result, nil
}

func (s *EvaluationService) evaluate(ctx context.Context, req EvaluationRequest) (*models.EvaluationResult, error) {
	team, err := s.repo.GetTeam(ctx, req.TeamID)
	if err == repository.ErrNotFound {
		return nil, evalErr(CodeTeamNotFound, "team not found", nil)
	}
	if err != nil {
		return nil, evalErr(CodeInternal, "failed to load team", err)
	}

	count, err := s.repo.CountAttempts(ctx, team.ID)
	if err != nil {
		return nil, evalErr(CodeInternal, "failed to count attempts", err)
	}
	if count >= s.opts.MaxAttempts {
		remaining := 0
		e := evalErr(CodeMaxAttemptsReached, fmt.Sprintf("the %d attempts of this team are used", s.opts.MaxAttempts), nil)
		e.AttemptsRemaining = &remaining
		return nil, e
	}

	reference, err := s.repo.GetReference(ctx)
	if err != nil {
		return nil, evalErr(CodeReferenceUnavailable, "reference recipe is unavailable", err)
	}
	if len(reference) == 0 {
		return nil, evalErr(CodeReferenceUnavailable, "reference recipe is not configured", nil)
	}

	candidates := make(map[int]models.RecipeStep, len(req.Steps))
	for _, st := range req.Steps {
		candidates[st.StepIndex] = st
	}

	creq := classifier.Request{Steps: make([]classifier.StepPair, 0, len(reference))}
	for _, ref := range reference {
		cand := candidates[ref.StepIndex]
		creq.Steps = append(creq.Steps, classifier.StepPair{
			Step:      ref.StepIndex,
			Reference: classifier.Fields{Ingredient: ref.Ingredient, Technique: ref.Technique, Tool: ref.Tool},
			Candidate: classifier.Fields{Ingredient: cand.Ingredient, Technique: cand.Technique, Tool: cand.Tool},
		})
	}

	cctx, cancel := context.WithTimeout(ctx, s.opts.ClassifierTimeout)
	verdict, err := s.classifier.Classify(cctx, creq)
	cancel()
	if err != nil {
		s.log.Warn("Classifier call failed", "team", team.ID, "error", err)
		if stderrors.Is(err, classifier.ErrInvalidResponse) {
			return nil, evalErr(CodeInvalidClassifierResponse, "the judge answered in an unreadable format, please retry", err)
		}
		return nil, evalErr(CodeClassifierUnavailable, "the judge is unavailable, please retry", err)
	}

	result := merge(creq, verdict)
	result.AttemptNumber = count + 1
	result.AttemptsRemaining = s.opts.MaxAttempts - result.AttemptNumber

	attempt := &models.RecipeTestAttempt{
		TeamID:        team.ID,
		AttemptNumber: result.AttemptNumber,
		GlobalScore:   result.GlobalScore,
		Details:       *result,
		CreatedAt:     s.clock.Now().UTC(),
	}
	id, err := s.repo.CreateAttempt(ctx, attempt)
	if stderrors.Is(err, repository.ErrDuplicate) {
		s.log.Warn("Attempt number already taken", "team", team.ID, "attempt", result.AttemptNumber)
		remaining := max(0, s.opts.MaxAttempts-result.AttemptNumber)
		e := evalErr(CodeAttemptConflict, fmt.Sprintf("attempt %d of this team was already recorded", result.AttemptNumber), err)
		e.AttemptsRemaining = &remaining
		return nil, e
	}
	if err != nil {
		s.log.Error("Failed to save attempt", "team", team.ID, "attempt", result.AttemptNumber, "error", err)
		e := evalErr(CodeSaveFailed, "the recipe was scored but the attempt could not be saved", err)
		e.Result = result
		return nil, e
	}
	s.log.Info("Attempt recorded", "team", team.ID, "attempt_id", id, "attempt", result.AttemptNumber, "score", result.GlobalScore)

	entry := &models.GameLog{
		GameID:    team.GameID,
		TeamID:    team.ID,
		EventType: "recipe_attempt",
		Message:   fmt.Sprintf("%s attempt %d scored %.2f", team.Name, result.AttemptNumber, result.GlobalScore),
		CreatedAt: attempt.CreatedAt,
	}
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		s.log.Warn("Failed to write game log", "game", team.GameID, "error", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.AttemptRecorded(team.GameID, models.AttemptNotice{
			TeamID:            team.ID,
			TeamName:          team.Name,
			AttemptNumber:     result.AttemptNumber,
			GlobalScore:       result.GlobalScore,
			AttemptsRemaining: result.AttemptsRemaining,
		})
	}
	return result, nil
}

// merge combines the lexical base of every field with the classifier's label.
// Blank candidate fields score zero whatever the label.
func merge(req classifier.Request, verdict *classifier.Verdict) *models.EvaluationResult {
	byStep := verdict.ByStep()
	result := &models.EvaluationResult{
		Steps:          make([]models.StepScore, 0, len(req.Steps)),
		GlobalFeedback: strings.TrimSpace(verdict.GlobalFeedback),
	}

	stepScores := make([]float64, 0, len(req.Steps))
	for _, pair := range req.Steps {
		v := byStep[pair.Step]
		ingScore, ingLabel := fieldScore(pair.Reference.Ingredient, pair.Candidate.Ingredient, v.Ingredient)
		techScore, techLabel := fieldScore(pair.Reference.Technique, pair.Candidate.Technique, v.Technique)
		toolScore, toolLabel := fieldScore(pair.Reference.Tool, pair.Candidate.Tool, v.Tool)

		ss := models.StepScore{
			Step:            pair.Step,
			IngredientScore: ingScore,
			TechniqueScore:  techScore,
			ToolScore:       toolScore,
			StepScore:       scoring.Mean(ingScore, techScore, toolScore),
			IngredientLabel: string(ingLabel),
			TechniqueLabel:  string(techLabel),
			ToolLabel:       string(toolLabel),
			Feedback:        strings.TrimSpace(v.Feedback),
		}
		result.Steps = append(result.Steps, ss)
		stepScores = append(stepScores, ss.StepScore)
	}
	result.GlobalScore = scoring.Mean(stepScores...)
	return result
}

func fieldScore(reference, candidate, label string) (float64, scoring.Label) {
	if strings.TrimSpace(candidate) == "" {
		return 0, scoring.LabelAucun
	}
	l := scoring.NormalizeLabel(label)
	return scoring.FieldScore(scoring.LexicalBase(reference, candidate), l), l
}
