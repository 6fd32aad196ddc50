// Package timer implements the phase/cycle state machine of a game and the
// countdown driver that advances it on expiry.
package timer

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/JEECE-SI/the-glitch-kitchen/internal/errors"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
)

// Phase is a timed sub-period of a cycle.
type Phase string

const (
	PhaseAnnonce    Phase = "annonce"
	PhaseContests   Phase = "contests"
	PhaseTempsLibre Phase = "temps_libre"
)

// MaxCycles is the number of cycles in a game.
const MaxCycles = 4

const (
	StatusSetup    = "setup"
	StatusFinished = "finished"
)

// Phases returns the phases of a cycle in order.
func Phases() []Phase {
	return []Phase{PhaseAnnonce, PhaseContests, PhaseTempsLibre}
}

// ParsePhase validates a phase name.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(strings.TrimSpace(strings.ToLower(s))); p {
	case PhaseAnnonce, PhaseContests, PhaseTempsLibre:
		return p, nil
	}
	return "", apperrors.Validationf("unknown phase %q", s)
}

// next returns the phase that follows p in a cycle, and false after temps_libre.
func (p Phase) next() (Phase, bool) {
	switch p {
	case PhaseAnnonce:
		return PhaseContests, true
	case PhaseContests:
		return PhaseTempsLibre, true
	}
	return "", false
}

// DefaultSeconds returns the configured duration of p.
func DefaultSeconds(settings models.GameSettings, p Phase) int {
	var minutes int
	switch p {
	case PhaseAnnonce:
		minutes = settings.AnnonceMinutes
	case PhaseContests:
		minutes = settings.ContestsMinutes
	case PhaseTempsLibre:
		minutes = settings.TempsLibreMinutes
	}
	return max(0, minutes*60)
}

// Status is the lifecycle position of a game.
type Status struct {
	Setup    bool
	Finished bool
	Phase    Phase
	Cycle    int
}

// Running reports whether the game is inside a phase.
func (s Status) Running() bool {
	return !s.Setup && !s.Finished
}

func (s Status) String() string {
	switch {
	case s.Setup:
		return StatusSetup
	case s.Finished:
		return StatusFinished
	}
	return fmt.Sprintf("%s_c%d", s.Phase, s.Cycle)
}

func setupStatus() Status    { return Status{Setup: true} }
func finishedStatus() Status { return Status{Finished: true} }

// ParseStatus reads "setup", "finished" or "<phase>_c<cycle>".
func ParseStatus(s string) (Status, error) {
	switch s {
	case StatusSetup, "":
		return setupStatus(), nil
	case StatusFinished:
		return finishedStatus(), nil
	}

	i := strings.LastIndex(s, "_c")
	if i <= 0 {
		return Status{}, apperrors.Validationf("invalid game status %q", s)
	}
	phase, err := ParsePhase(s[:i])
	if err != nil {
		return Status{}, apperrors.Validationf("invalid game status %q", s)
	}
	cycle, err := strconv.Atoi(s[i+2:])
	if err != nil || cycle < 1 || cycle > MaxCycles {
		return Status{}, apperrors.Validationf("invalid cycle in game status %q", s)
	}
	return Status{Phase: phase, Cycle: cycle}, nil
}
