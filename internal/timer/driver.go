package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
)

// Committer persists a transition the driver applied on expiry.
type Committer interface {
	CommitTransition(ctx context.Context, gameID string, next State, ev Event) error
}

// Publisher receives the reconstructed countdown on every tick.
type Publisher interface {
	PublishCountdown(view models.TimerView)
}

// DriverOptions tunes the countdown driver.
type DriverOptions struct {
	TickInterval   time.Duration
	SuppressWindow time.Duration
	CommitTimeout  time.Duration
}

// DefaultDriverOptions ticks every second and suppresses foreign snapshots
// for three seconds after a local expiry.
func DefaultDriverOptions() DriverOptions {
	return DriverOptions{
		TickInterval:   time.Second,
		SuppressWindow: 3 * time.Second,
		CommitTimeout:  5 * time.Second,
	}
}

type countdown struct {
	state         State
	settings      models.GameSettings
	stop          chan struct{} // nil when no ticker runs
	suppressUntil time.Time
	pending       *Event // expiry whose commit failed
}

type commitJob struct {
	state State
	ev    Event
}

// Driver runs one countdown per active game. Every (re)track starts a fresh
// ticker and stops the previous one.
type Driver struct {
	clock     clockwork.Clock
	log       logger.Logger
	committer Committer
	publisher Publisher
	opts      DriverOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	games map[string]*countdown
}

// NewDriver creates a Driver. Zero option fields take their defaults.
func NewDriver(clock clockwork.Clock, log logger.Logger, committer Committer, publisher Publisher, opts DriverOptions) *Driver {
	def := DefaultDriverOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.SuppressWindow <= 0 {
		opts.SuppressWindow = def.SuppressWindow
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = def.CommitTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		clock:     clock,
		log:       log,
		committer: committer,
		publisher: publisher,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		games:     make(map[string]*countdown),
	}
}

// Run blocks until ctx is done and then stops every countdown.
func (d *Driver) Run(ctx context.Context) error {
	<-ctx.Done()
	d.Close()
	return nil
}

// Close stops every countdown and waits for the tickers to exit.
func (d *Driver) Close() {
	d.cancel()
	d.mu.Lock()
	for _, cd := range d.games {
		d.stopTicker(cd)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Track makes state the local truth for gameID. A running, active game gets
// a fresh ticker; anything else has its ticker stopped.
func (d *Driver) Track(gameID string, state State, settings models.GameSettings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trackLocked(gameID, state, settings)
}

func (d *Driver) trackLocked(gameID string, state State, settings models.GameSettings) {
	cd, ok := d.games[gameID]
	if !ok {
		cd = &countdown{}
		d.games[gameID] = cd
	}
	cd.state = state
	cd.settings = settings
	cd.pending = nil

	d.stopTicker(cd)
	if d.ctx.Err() == nil && state.Status.Running() && state.Snapshot.TimerActive {
		d.startTicker(gameID, cd)
	}
}

// Reconcile applies a snapshot written elsewhere. It is ignored during the
// suppression window that follows a local expiry and when it is older than
// the local state. It reports whether the snapshot was applied.
func (d *Driver) Reconcile(gameID string, state State, settings models.GameSettings) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cd, ok := d.games[gameID]; ok {
		now := d.clock.Now()
		local := cd.state.Snapshot
		switch {
		case now.Before(cd.suppressUntil):
			d.log.Debug("Ignoring snapshot during suppression window", "game", gameID, "status", state.Status.String())
			return false
		case state.Snapshot.UpdatedAt.Before(local.UpdatedAt):
			d.log.Debug("Ignoring stale snapshot", "game", gameID, "status", state.Status.String())
			return false
		case state.Snapshot.UpdatedAt.Equal(local.UpdatedAt) &&
			state.Status == cd.state.Status &&
			state.Snapshot.TimerActive == local.TimerActive &&
			state.Snapshot.TimeLeftSeconds == local.TimeLeftSeconds:
			return false
		}
	}

	d.trackLocked(gameID, state, settings)
	return true
}

// Forget stops and drops the countdown of gameID.
func (d *Driver) Forget(gameID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cd, ok := d.games[gameID]; ok {
		d.stopTicker(cd)
		delete(d.games, gameID)
	}
}

// State returns the local state of gameID.
func (d *Driver) State(gameID string) (State, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cd, ok := d.games[gameID]
	if !ok {
		return State{}, false
	}
	return cd.state, true
}

func (d *Driver) startTicker(gameID string, cd *countdown) {
	stop := make(chan struct{})
	cd.stop = stop
	t := d.clock.NewTicker(d.opts.TickInterval)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-d.ctx.Done():
				return
			case <-stop:
				return
			case <-t.Chan():
				d.tick(gameID, stop)
			}
		}
	}()
}

func (d *Driver) stopTicker(cd *countdown) {
	if cd.stop != nil {
		close(cd.stop)
		cd.stop = nil
	}
}

// tick publishes the countdown of gameID and, when it reached zero, applies
// the next state locally before committing it. token identifies the ticker
// that fired; ticks from a replaced ticker are dropped.
func (d *Driver) tick(gameID string, token chan struct{}) {
	d.mu.Lock()
	cd, ok := d.games[gameID]
	if !ok || cd.stop != token {
		d.mu.Unlock()
		return
	}

	now := d.clock.Now()
	var job *commitJob

	if cd.pending != nil {
		cd.state.Snapshot = Rebase(cd.state.Snapshot, now)
		job = &commitJob{state: cd.state, ev: *cd.pending}
		cd.pending = nil
	}

	if cd.state.Expired(now) {
		next, ev, err := cd.state.Expire(cd.settings, now)
		if err != nil {
			d.log.Error("Failed to expire phase", "game", gameID, "error", err)
		} else {
			cd.state = next
			cd.suppressUntil = now.Add(d.opts.SuppressWindow)
			job = &commitJob{state: next, ev: ev}
			d.log.Info("Phase expired", "game", gameID, "status", next.Status.String())
		}
	}

	view := cd.state.View(gameID, now)
	d.mu.Unlock()

	d.publisher.PublishCountdown(view)

	if job == nil {
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.opts.CommitTimeout)
	err := d.committer.CommitTransition(ctx, gameID, job.state, job.ev)
	cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.games[gameID] != cd || cd.stop != token {
		return
	}
	if err != nil {
		d.log.Warn("Failed to write timer snapshot, retrying on next tick", "game", gameID, "error", err)
		ev := job.ev
		cd.pending = &ev
		return
	}
	if !cd.state.Snapshot.TimerActive {
		d.stopTicker(cd)
	}
}
