package services

import (
	"fmt"
	"time"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
)

// Service errors
var (
	ErrGameNameRequired  = &ServiceError{Message: "game name is required"}
	ErrTeamNameRequired  = &ServiceError{Message: "team name is required"}
	ErrTeamNameTaken     = &ServiceError{Message: "a team with this name already exists in the game"}
	ErrInvalidDuration   = &ServiceError{Message: "phase durations must be between 1 and 120 minutes"}
	ErrInvalidReference  = &ServiceError{Message: "reference recipe must have steps 1 to 10 with every field filled"}
	ErrTeamNotInGame     = &ServiceError{Message: "team does not belong to this game"}
	ErrBaseURLMissing    = &ServiceError{Message: "base URL is not configured"}
	ErrJoinCodeExhausted = &ServiceError{Message: "could not generate a unique join code"}
)

// ServiceError represents a service-level error
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Evaluation error codes
const (
	CodeInvalidRequest            = "invalid_request"
	CodeRateLimited               = "rate_limited"
	CodeMaxAttemptsReached        = "max_attempts_reached"
	CodeTeamNotFound              = "team_not_found"
	CodeReferenceUnavailable      = "reference_unavailable"
	CodeClassifierUnavailable     = "classifier_unavailable"
	CodeInvalidClassifierResponse = "invalid_classifier_response"
	CodeAttemptConflict           = "attempt_conflict"
	CodeSaveFailed                = "save_failed"
	CodeInternal                  = "internal_error"
)

// EvaluationError is returned by the evaluation pipeline. Result is set when
// scoring succeeded but the attempt could not be stored.
type EvaluationError struct {
	Code              string
	Message           string
	RetryAfter        time.Duration
	AttemptsRemaining *int
	Result            *models.EvaluationResult
	Err               error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same submission may succeed later without
// staff intervention.
func (e *EvaluationError) Retryable() bool {
	switch e.Code {
	case CodeRateLimited, CodeClassifierUnavailable, CodeInvalidClassifierResponse:
		return true
	}
	return false
}

func evalErr(code, msg string, err error) *EvaluationError {
	return &EvaluationError{Code: code, Message: msg, Err: err}
}
