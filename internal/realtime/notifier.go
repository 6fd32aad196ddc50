package realtime

import (
	"github.com/jonboulle/clockwork"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/timer"
)

// Peers receives committed states for other processes
type Peers interface {
	Publish(gameID string, state timer.State, settings models.GameSettings) error
}

// Notifier delivers committed changes to local clients and, when set, to peers.
type Notifier struct {
	log   logger.Logger
	clock clockwork.Clock
	local Pusher
	peers Peers
}

// NewNotifier creates a Notifier. peers may be nil.
func NewNotifier(log logger.Logger, clock clockwork.Clock, local Pusher, peers Peers) *Notifier {
	return &Notifier{log: log, clock: clock, local: local, peers: peers}
}

// TimerChanged pushes a committed timer state
func (n *Notifier) TimerChanged(gameID string, state timer.State, settings models.GameSettings) {
	n.local.BroadcastTimerState(state.View(gameID, n.clock.Now()))
	if n.peers == nil {
		return
	}
	if err := n.peers.Publish(gameID, state, settings); err != nil {
		n.log.Warn("Failed to publish timer state to peers", "game", gameID, "error", err)
	}
}

// AttemptRecorded tells the staff screens of a game about a new attempt
func (n *Notifier) AttemptRecorded(gameID string, notice models.AttemptNotice) {
	n.local.BroadcastAttempt(gameID, notice)
}
