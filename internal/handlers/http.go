package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/errors"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/repository"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/services"
)

// Error codes for standardized API error responses
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"
	ErrCodeInternalServer  = "INTERNAL_SERVER_ERROR"
)

// APIError represents an error with an HTTP status code and error code.
// Evaluation failures fill the optional fields.
type APIError struct {
	Status            int                      `json:"-"`
	Code              string                   `json:"code"`
	Message           string                   `json:"error"`
	RetryAfterSeconds int                      `json:"retry_after_seconds,omitempty"`
	AttemptsRemaining *int                     `json:"attempts_remaining,omitempty"`
	Result            *models.EvaluationResult `json:"result,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Common errors
var (
	ErrBadRequest     = &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: "Bad request"}
	ErrUnauthorized   = &APIError{Status: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: "Unauthorized"}
	ErrNotFound       = &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: "Not found"}
	ErrInternalServer = &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternalServer, Message: "Internal server error"}
)

// NewAPIError creates a new API error with custom message and code
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// BadRequest creates a 400 error with custom message
func BadRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message}
}

// Unauthorized creates a 401 error with custom message
func Unauthorized(message string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: message}
}

// NotFound creates a 404 error with custom message
func NotFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: message}
}

// Conflict creates a 409 error with custom message
func Conflict(message string) *APIError {
	return &APIError{Status: http.StatusConflict, Code: ErrCodeConflict, Message: message}
}

// InternalError creates a 500 error
func InternalError() *APIError {
	return &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternalServer, Message: "Internal server error"}
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondOK writes a 200 OK JSON response
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, data)
}

// respondCreated writes a 201 Created JSON response
func respondCreated(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusCreated, data)
}

// respondSuccess writes a 200 OK with a message
func respondSuccess(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// respondError writes an error response. Internal errors are logged, never echoed.
func respondError(w http.ResponseWriter, log logger.Logger, err error) {
	apiErr, ok := err.(*APIError)
	if !ok {
		apiErr = ToAPIError(err)
	}
	if apiErr.Status >= http.StatusInternalServerError && log != nil {
		log.Error("Request failed", "code", apiErr.Code, "error", err)
	}
	if apiErr.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfterSeconds))
	}
	respondJSON(w, apiErr.Status, apiErr)
}

// decodeJSON decodes JSON from request body into the target
func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if err == io.EOF {
			return BadRequest("Request body is empty")
		}
		return BadRequest("Invalid JSON: " + err.Error())
	}
	return nil
}

// clientAddr returns the caller's IP without the port
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

var evaluationStatus = map[string]int{
	services.CodeInvalidRequest:            http.StatusBadRequest,
	services.CodeRateLimited:               http.StatusTooManyRequests,
	services.CodeMaxAttemptsReached:        http.StatusConflict,
	services.CodeTeamNotFound:              http.StatusNotFound,
	services.CodeReferenceUnavailable:      http.StatusServiceUnavailable,
	services.CodeClassifierUnavailable:     http.StatusServiceUnavailable,
	services.CodeInvalidClassifierResponse: http.StatusBadGateway,
	services.CodeAttemptConflict:           http.StatusConflict,
	services.CodeSaveFailed:                http.StatusInternalServerError,
	services.CodeInternal:                  http.StatusInternalServerError,
}

// ToAPIError converts service errors to appropriate API errors
func ToAPIError(err error) *APIError {
	var evalErr *services.EvaluationError
	if stderrors.As(err, &evalErr) {
		status, ok := evaluationStatus[evalErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		apiErr := &APIError{
			Status:            status,
			Code:              evalErr.Code,
			Message:           evalErr.Message,
			AttemptsRemaining: evalErr.AttemptsRemaining,
			Result:            evalErr.Result,
		}
		if evalErr.RetryAfter > 0 {
			apiErr.RetryAfterSeconds = int(math.Ceil(evalErr.RetryAfter.Seconds()))
		}
		return apiErr
	}

	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		switch appErr.Kind {
		case errors.ErrNotFound:
			return NotFound(appErr.Message)
		case errors.ErrValidation, errors.ErrInvalidInput:
			return &APIError{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: appErr.Message}
		case errors.ErrConflict:
			return Conflict(appErr.Message)
		case errors.ErrUnavailable:
			return &APIError{Status: http.StatusServiceUnavailable, Code: ErrCodeUnavailable, Message: appErr.Message}
		case errors.ErrTooManyRequests:
			return &APIError{Status: http.StatusTooManyRequests, Code: ErrCodeTooManyRequests, Message: appErr.Message}
		default:
			return InternalError()
		}
	}

	var svcErr *services.ServiceError
	if stderrors.As(err, &svcErr) {
		if svcErr == services.ErrTeamNameTaken {
			return Conflict(svcErr.Message)
		}
		return &APIError{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: svcErr.Message}
	}

	if stderrors.Is(err, repository.ErrNotFound) {
		return NotFound("Not found")
	}

	return InternalError()
}
