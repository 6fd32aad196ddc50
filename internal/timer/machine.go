package timer

import (
	"fmt"
	"maps"
	"time"

	apperrors "github.com/JEECE-SI/the-glitch-kitchen/internal/errors"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
)

// MaxAdjustSeconds bounds a single manual adjustment and the time left it can produce.
const MaxAdjustSeconds = 24 * 60 * 60

var (
	ErrNotStarted     = apperrors.Conflict("game has not started")
	ErrFinished       = apperrors.Conflict("game is finished")
	ErrAlreadyStarted = apperrors.Conflict("game has already started")
)

// EventType names an audit log entry.
type EventType string

const (
	EventGameStart       EventType = "game_start"
	EventPhaseChange     EventType = "phase_change"
	EventCycleChange     EventType = "cycle_change"
	EventGameFinish      EventType = "game_finish"
	EventTimerPaused     EventType = "timer_paused"
	EventTimerResumed    EventType = "timer_resumed"
	EventTimerAdjusted   EventType = "timer_adjusted"
	EventTimerReset      EventType = "timer_reset"
	EventInstanceReset   EventType = "instance_reset"
	EventContestAssigned EventType = "contest_assigned"
)

// Event describes a transition for the audit log.
type Event struct {
	Type    EventType
	Message string
}

// State is a game's status together with its persisted snapshot. Transitions
// never mutate the receiver.
type State struct {
	Status   Status
	Snapshot models.TimerSnapshot
}

// FromGame builds the machine state of a persisted game.
func FromGame(g *models.GameInstance) (State, error) {
	st, err := ParseStatus(g.Status)
	if err != nil {
		return State{}, err
	}
	return State{Status: st, Snapshot: g.Timer}, nil
}

// Remaining reconstructs the time left at now.
func Remaining(snap models.TimerSnapshot, now time.Time) int {
	if !snap.TimerActive {
		return snap.TimeLeftSeconds
	}
	return max(0, snap.TimeLeftSeconds-elapsedSeconds(snap, now))
}

// GlobalElapsed reconstructs the game-wide elapsed time at now.
func GlobalElapsed(snap models.TimerSnapshot, now time.Time) int {
	return snap.GlobalElapsedSeconds + (snap.TimeLeftSeconds - Remaining(snap, now))
}

func elapsedSeconds(snap models.TimerSnapshot, now time.Time) int {
	d := now.Sub(snap.UpdatedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// Rebase folds the time counted down since the last write into the snapshot
// and stamps it with now.
func Rebase(snap models.TimerSnapshot, now time.Time) models.TimerSnapshot {
	out := cloneSnapshot(snap)
	remaining := Remaining(snap, now)
	out.GlobalElapsedSeconds += snap.TimeLeftSeconds - remaining
	out.PhaseElapsedSeconds += snap.TimeLeftSeconds - remaining
	out.TimeLeftSeconds = remaining
	out.UpdatedAt = now
	return out
}

// View renders the reconstructed state for clients.
func (s State) View(gameID string, now time.Time) models.TimerView {
	return models.TimerView{
		GameID:               gameID,
		Status:               s.Status.String(),
		Phase:                string(s.Status.Phase),
		Cycle:                s.Status.Cycle,
		TimeLeftSeconds:      Remaining(s.Snapshot, now),
		GlobalElapsedSeconds: GlobalElapsed(s.Snapshot, now),
		TimerActive:          s.Snapshot.TimerActive,
		UpdatedAt:            s.Snapshot.UpdatedAt,
		ServerTime:           now,
		ContestAssignments:   s.Snapshot.ContestAssignments,
	}
}

// Expired reports whether an active countdown has reached zero at now.
func (s State) Expired(now time.Time) bool {
	return s.Status.Running() && s.Snapshot.TimerActive && Remaining(s.Snapshot, now) == 0
}

func (s State) requireRunning() error {
	switch {
	case s.Status.Setup:
		return ErrNotStarted
	case s.Status.Finished:
		return ErrFinished
	}
	return nil
}

// Start leaves setup for the first announcement, with the countdown running.
func (s State) Start(settings models.GameSettings, now time.Time) (State, Event, error) {
	switch {
	case s.Status.Finished:
		return s, Event{}, ErrFinished
	case !s.Status.Setup:
		return s, Event{}, ErrAlreadyStarted
	}

	next := State{
		Status: Status{Phase: PhaseAnnonce, Cycle: 1},
		Snapshot: models.TimerSnapshot{
			TimeLeftSeconds:    DefaultSeconds(settings, PhaseAnnonce),
			TimerActive:        true,
			UpdatedAt:          now,
			ContestAssignments: maps.Clone(s.Snapshot.ContestAssignments),
		},
	}
	return next, Event{Type: EventGameStart, Message: "Game started: annonce, cycle 1"}, nil
}

// SelectPhase jumps to p within the current cycle. The remaining time of the
// phase being left is banked and a banked value for p is resumed.
func (s State) SelectPhase(p Phase, settings models.GameSettings, now time.Time) (State, Event, error) {
	if err := s.requireRunning(); err != nil {
		return s, Event{}, err
	}
	if _, err := ParsePhase(string(p)); err != nil {
		return s, Event{}, err
	}

	snap := Rebase(s.Snapshot, now)
	if snap.PerPhaseRemaining == nil {
		snap.PerPhaseRemaining = make(map[string]int)
	}
	snap.PerPhaseRemaining[string(s.Status.Phase)] = snap.TimeLeftSeconds

	if banked, ok := snap.PerPhaseRemaining[string(p)]; ok {
		snap.TimeLeftSeconds = banked
		delete(snap.PerPhaseRemaining, string(p))
	} else {
		snap.TimeLeftSeconds = DefaultSeconds(settings, p)
	}
	snap.PhaseElapsedSeconds = 0

	next := State{Status: Status{Phase: p, Cycle: s.Status.Cycle}, Snapshot: snap}
	return next, Event{
		Type:    EventPhaseChange,
		Message: fmt.Sprintf("Phase changed from %s to %s (cycle %d)", s.Status.Phase, p, s.Status.Cycle),
	}, nil
}

// TogglePause pauses a running countdown or resumes a paused one.
func (s State) TogglePause(now time.Time) (State, Event, error) {
	if err := s.requireRunning(); err != nil {
		return s, Event{}, err
	}

	snap := Rebase(s.Snapshot, now)
	snap.TimerActive = !snap.TimerActive

	ev := Event{Type: EventTimerPaused, Message: fmt.Sprintf("Timer paused with %ds left", snap.TimeLeftSeconds)}
	if snap.TimerActive {
		ev = Event{Type: EventTimerResumed, Message: fmt.Sprintf("Timer resumed with %ds left", snap.TimeLeftSeconds)}
	}
	return State{Status: s.Status, Snapshot: snap}, ev, nil
}

// Adjust adds delta seconds to the countdown. delta is clamped to
// ±MaxAdjustSeconds and the result to [0, MaxAdjustSeconds].
func (s State) Adjust(delta int, now time.Time) (State, Event, error) {
	if err := s.requireRunning(); err != nil {
		return s, Event{}, err
	}

	delta = min(max(delta, -MaxAdjustSeconds), MaxAdjustSeconds)
	snap := Rebase(s.Snapshot, now)
	snap.TimeLeftSeconds = min(max(0, snap.TimeLeftSeconds+delta), MaxAdjustSeconds)

	return State{Status: s.Status, Snapshot: snap}, Event{
		Type:    EventTimerAdjusted,
		Message: fmt.Sprintf("Timer adjusted by %+ds, %ds left", delta, snap.TimeLeftSeconds),
	}, nil
}

// ResetPhase reloads the phase default, pauses, and removes the time already
// counted down in this phase occurrence from the global elapsed counter.
func (s State) ResetPhase(settings models.GameSettings, now time.Time) (State, Event, error) {
	if err := s.requireRunning(); err != nil {
		return s, Event{}, err
	}

	snap := Rebase(s.Snapshot, now)
	def := DefaultSeconds(settings, s.Status.Phase)
	snap.GlobalElapsedSeconds = max(0, snap.GlobalElapsedSeconds-snap.PhaseElapsedSeconds)
	snap.PhaseElapsedSeconds = 0
	snap.TimeLeftSeconds = def
	snap.TimerActive = false

	return State{Status: s.Status, Snapshot: snap}, Event{
		Type:    EventTimerReset,
		Message: fmt.Sprintf("Timer of %s reset to %ds", s.Status.Phase, def),
	}, nil
}

// Expire moves to the next phase in rotation. It is what happens when the
// countdown reaches zero.
func (s State) Expire(settings models.GameSettings, now time.Time) (State, Event, error) {
	if err := s.requireRunning(); err != nil {
		return s, Event{}, err
	}

	snap := Rebase(s.Snapshot, now)
	if p, ok := s.Status.Phase.next(); ok {
		delete(snap.PerPhaseRemaining, string(s.Status.Phase))
		if banked, ok := snap.PerPhaseRemaining[string(p)]; ok {
			snap.TimeLeftSeconds = banked
			delete(snap.PerPhaseRemaining, string(p))
		} else {
			snap.TimeLeftSeconds = DefaultSeconds(settings, p)
		}
		snap.PhaseElapsedSeconds = 0
		return State{Status: Status{Phase: p, Cycle: s.Status.Cycle}, Snapshot: snap}, Event{
			Type:    EventPhaseChange,
			Message: fmt.Sprintf("Phase changed from %s to %s (cycle %d)", s.Status.Phase, p, s.Status.Cycle),
		}, nil
	}
	return s.nextCycle(snap, settings)
}

// AdvanceCycle jumps to the announcement of the next cycle, or finishes the
// game from the last one.
func (s State) AdvanceCycle(settings models.GameSettings, now time.Time) (State, Event, error) {
	if err := s.requireRunning(); err != nil {
		return s, Event{}, err
	}
	return s.nextCycle(Rebase(s.Snapshot, now), settings)
}

func (s State) nextCycle(snap models.TimerSnapshot, settings models.GameSettings) (State, Event, error) {
	snap.PerPhaseRemaining = nil
	snap.PhaseElapsedSeconds = 0

	if s.Status.Cycle >= MaxCycles {
		snap.TimeLeftSeconds = 0
		snap.TimerActive = false
		return State{Status: finishedStatus(), Snapshot: snap}, Event{
			Type:    EventGameFinish,
			Message: fmt.Sprintf("Game finished after %d cycles", MaxCycles),
		}, nil
	}

	cycle := s.Status.Cycle + 1
	snap.TimeLeftSeconds = DefaultSeconds(settings, PhaseAnnonce)
	return State{Status: Status{Phase: PhaseAnnonce, Cycle: cycle}, Snapshot: snap}, Event{
		Type:    EventCycleChange,
		Message: fmt.Sprintf("Cycle %d started", cycle),
	}, nil
}

// Reset returns any state to setup with banks and contest assignments cleared.
func (s State) Reset(now time.Time) (State, Event) {
	next := State{Status: setupStatus(), Snapshot: models.TimerSnapshot{UpdatedAt: now}}
	return next, Event{Type: EventInstanceReset, Message: fmt.Sprintf("Instance reset from %s", s.Status)}
}

// AssignContest records teamID at rank for contestID. An empty teamID clears the rank.
func (s State) AssignContest(contestID, rank, teamID string, now time.Time) (State, Event, error) {
	if contestID == "" || rank == "" {
		return s, Event{}, apperrors.Validation("contest and rank are required")
	}

	snap := Rebase(s.Snapshot, now)
	if snap.ContestAssignments == nil {
		snap.ContestAssignments = make(map[string]map[string]string)
	}
	ranks := snap.ContestAssignments[contestID]
	if ranks == nil {
		ranks = make(map[string]string)
		snap.ContestAssignments[contestID] = ranks
	}

	msg := fmt.Sprintf("Contest %s rank %s assigned to team %s", contestID, rank, teamID)
	if teamID == "" {
		delete(ranks, rank)
		msg = fmt.Sprintf("Contest %s rank %s cleared", contestID, rank)
		if len(ranks) == 0 {
			delete(snap.ContestAssignments, contestID)
		}
	} else {
		ranks[rank] = teamID
	}

	return State{Status: s.Status, Snapshot: snap}, Event{Type: EventContestAssigned, Message: msg}, nil
}

func cloneSnapshot(snap models.TimerSnapshot) models.TimerSnapshot {
	out := snap
	out.PerPhaseRemaining = maps.Clone(snap.PerPhaseRemaining)
	if snap.ContestAssignments != nil {
		out.ContestAssignments = make(map[string]map[string]string, len(snap.ContestAssignments))
		for k, v := range snap.ContestAssignments {
			out.ContestAssignments[k] = maps.Clone(v)
		}
	}
	return out
}
