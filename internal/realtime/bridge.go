// Package realtime fans committed timer changes out to websocket clients and,
// when NATS is configured, to the other processes serving the same games.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/timer"
)

// SubjectPrefix is followed by the game ID.
const SubjectPrefix = "glitchkitchen.timer."

// Envelope is the wire form of a committed timer state. Receivers replace
// their state with it; it never carries deltas.
type Envelope struct {
	Origin   string               `json:"origin"`
	GameID   string               `json:"game_id"`
	Status   string               `json:"status"`
	Snapshot models.TimerSnapshot `json:"snapshot"`
	Settings models.GameSettings  `json:"settings"`
	SentAt   time.Time            `json:"sent_at"`
}

// Subject returns the subject a game's snapshots are published on
func Subject(gameID string) string {
	return SubjectPrefix + gameID
}

// Encode builds the message for a committed state
func Encode(origin, gameID string, state timer.State, settings models.GameSettings, now time.Time) ([]byte, error) {
	return json.Marshal(Envelope{
		Origin:   origin,
		GameID:   gameID,
		Status:   state.Status.String(),
		Snapshot: state.Snapshot,
		Settings: settings,
		SentAt:   now,
	})
}

// Decode parses a message back into machine state
func Decode(data []byte) (Envelope, timer.State, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, timer.State{}, fmt.Errorf("decode timer envelope: %w", err)
	}
	if env.GameID == "" {
		return Envelope{}, timer.State{}, fmt.Errorf("decode timer envelope: missing game_id")
	}
	st, err := timer.ParseStatus(env.Status)
	if err != nil {
		return Envelope{}, timer.State{}, err
	}
	return env, timer.State{Status: st, Snapshot: env.Snapshot}, nil
}

// Reconciler accepts a state committed by another process
type Reconciler interface {
	Reconcile(gameID string, state timer.State, settings models.GameSettings) bool
}

// Pusher delivers messages to the websocket clients of this process
type Pusher interface {
	BroadcastTimerState(view models.TimerView)
	BroadcastAttempt(gameID string, notice models.AttemptNotice)
}

// BridgeConfig configures the NATS connection
type BridgeConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultBridgeConfig reconnects forever every two seconds
func DefaultBridgeConfig(url string) BridgeConfig {
	return BridgeConfig{
		URL:           url,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Bridge publishes local commits to NATS and applies the commits of peers
type Bridge struct {
	log        logger.Logger
	clock      clockwork.Clock
	nc         *nats.Conn
	sub        *nats.Subscription
	origin     string
	reconciler Reconciler
	pusher     Pusher
}

// Connect dials NATS. Subscribe must be called to receive peer commits.
func Connect(cfg BridgeConfig, log logger.Logger, clock clockwork.Clock) (*Bridge, error) {
	log = log.With("component", "nats")
	opts := []nats.Option{
		nats.Name("glitchkitchen"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("NATS error", "error", err)
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return newBridge(nc, log, clock), nil
}

func newBridge(nc *nats.Conn, log logger.Logger, clock clockwork.Clock) *Bridge {
	return &Bridge{
		log:    log,
		clock:  clock,
		nc:     nc,
		origin: uuid.NewString(),
	}
}

// Origin identifies this process in published envelopes
func (b *Bridge) Origin() string {
	return b.origin
}

// Subscribe starts applying peer commits through r and pushing them to p
func (b *Bridge) Subscribe(r Reconciler, p Pusher) error {
	b.reconciler = r
	b.pusher = p

	sub, err := b.nc.Subscribe(SubjectPrefix+"*", func(msg *nats.Msg) {
		b.apply(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s*: %w", SubjectPrefix, err)
	}
	b.sub = sub
	b.log.Info("Listening for peer timer commits", "subject", SubjectPrefix+"*", "origin", b.origin)
	return nil
}

// Publish sends a committed state to the peers
func (b *Bridge) Publish(gameID string, state timer.State, settings models.GameSettings) error {
	data, err := Encode(b.origin, gameID, state, settings, b.clock.Now())
	if err != nil {
		return err
	}
	return b.nc.Publish(Subject(gameID), data)
}

// apply handles one peer message. Own messages and stale snapshots are dropped.
func (b *Bridge) apply(data []byte) bool {
	env, st, err := Decode(data)
	if err != nil {
		b.log.Warn("Dropping malformed timer envelope", "error", err)
		return false
	}
	if env.Origin == b.origin {
		return false
	}
	if b.reconciler == nil || !b.reconciler.Reconcile(env.GameID, st, env.Settings) {
		return false
	}

	b.log.Debug("Applied peer timer commit", "game", env.GameID, "status", env.Status, "origin", env.Origin)
	if b.pusher != nil {
		b.pusher.BroadcastTimerState(st.View(env.GameID, b.clock.Now()))
	}
	return true
}

// Close drains the subscription and closes the connection
func (b *Bridge) Close() error {
	if b.nc == nil {
		return nil
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return err
	}
	return nil
}
