package handlers

import (
	"context"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/auth"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/services"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/websocket"
)

// Pinger reports whether the record store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Game        services.GameServicer
	Timer       services.TimerServicer
	Reference   services.ReferenceServicer
	Evaluation  services.EvaluationServicer
	Auth        *auth.Auth
	Hub         *websocket.Hub
	Health      Pinger
	Log         logger.Logger
	CORSOrigins []string
	// TrustProxy takes the client address from proxy headers. The evaluation
	// rate limit is keyed on it, so leave it off unless a proxy sets them.
	TrustProxy bool
}

// Options carries the optional dependencies of New
type Options struct {
	Hub         *websocket.Hub
	Health      Pinger
	CORSOrigins []string
	TrustProxy  bool
}

// New creates a new Handlers instance with all dependencies
func New(
	game services.GameServicer,
	timer services.TimerServicer,
	reference services.ReferenceServicer,
	evaluation services.EvaluationServicer,
	staffAuth *auth.Auth,
	log logger.Logger,
	opts Options,
) *Handlers {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Handlers{
		Game:        game,
		Timer:       timer,
		Reference:   reference,
		Evaluation:  evaluation,
		Auth:        staffAuth,
		Hub:         opts.Hub,
		Health:      opts.Health,
		Log:         log,
		CORSOrigins: origins,
		TrustProxy:  opts.TrustProxy,
	}
}

// NewForTesting creates a Handlers instance with a known staff password
// ("test-password") and a silent logger.
func NewForTesting(
	game services.GameServicer,
	timer services.TimerServicer,
	reference services.ReferenceServicer,
	evaluation services.EvaluationServicer,
) *Handlers {
	return New(game, timer, reference, evaluation, auth.New("test-password"), logger.Nop(), Options{})
}
