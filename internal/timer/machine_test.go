package timer

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
)

var (
	t0       = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	settings = models.GameSettings{AnnonceMinutes: 5, ContestsMinutes: 20, TempsLibreMinutes: 10}
)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func started(t *testing.T) State {
	t.Helper()
	s, _, err := State{Status: setupStatus()}.Start(settings, t0)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return s
}

func TestRemaining_Reconstruction(t *testing.T) {
	active := models.TimerSnapshot{TimeLeftSeconds: 100, TimerActive: true, UpdatedAt: t0}
	paused := models.TimerSnapshot{TimeLeftSeconds: 100, TimerActive: false, UpdatedAt: t0}

	tests := []struct {
		name string
		snap models.TimerSnapshot
		now  time.Time
		want int
	}{
		{"active after 30s", active, at(30), 70},
		{"active floors partial seconds", active, t0.Add(30900 * time.Millisecond), 70},
		{"active past zero", active, at(500), 0},
		{"clock behind snapshot", active, at(-20), 100},
		{"paused ignores wall time", paused, at(30), 100},
		{"paused long after", paused, at(86400), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Remaining(tt.snap, tt.now); got != tt.want {
				t.Errorf("Remaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGlobalElapsed(t *testing.T) {
	snap := models.TimerSnapshot{TimeLeftSeconds: 100, GlobalElapsedSeconds: 40, TimerActive: true, UpdatedAt: t0}
	if got := GlobalElapsed(snap, at(30)); got != 70 {
		t.Errorf("GlobalElapsed() = %d, want 70", got)
	}
	if got := GlobalElapsed(snap, at(1000)); got != 140 {
		t.Errorf("GlobalElapsed() = %d, want 140", got)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"setup", Status{Setup: true}, false},
		{"", Status{Setup: true}, false},
		{"finished", Status{Finished: true}, false},
		{"annonce_c1", Status{Phase: PhaseAnnonce, Cycle: 1}, false},
		{"temps_libre_c4", Status{Phase: PhaseTempsLibre, Cycle: 4}, false},
		{"contests_c2", Status{Phase: PhaseContests, Cycle: 2}, false},
		{"annonce_c5", Status{}, true},
		{"annonce_c0", Status{}, true},
		{"dessert_c1", Status{}, true},
		{"annonce", Status{}, true},
		{"_c1", Status{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseStatus(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if !tt.wantErr && tt.in != "" && got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestStart(t *testing.T) {
	s := started(t)

	if s.Status.String() != "annonce_c1" {
		t.Errorf("status = %s, want annonce_c1", s.Status)
	}
	if s.Snapshot.TimeLeftSeconds != 300 || !s.Snapshot.TimerActive || s.Snapshot.GlobalElapsedSeconds != 0 {
		t.Errorf("unexpected snapshot %+v", s.Snapshot)
	}
	if !s.Snapshot.UpdatedAt.Equal(t0) {
		t.Errorf("updated_at = %v, want %v", s.Snapshot.UpdatedAt, t0)
	}

	if _, _, err := s.Start(settings, at(1)); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestSetup_RejectsTimerActions(t *testing.T) {
	s := State{Status: setupStatus()}

	if _, _, err := s.SelectPhase(PhaseContests, settings, t0); !errors.Is(err, ErrNotStarted) {
		t.Errorf("SelectPhase error = %v", err)
	}
	if _, _, err := s.TogglePause(t0); !errors.Is(err, ErrNotStarted) {
		t.Errorf("TogglePause error = %v", err)
	}
	if _, _, err := s.Expire(settings, t0); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expire error = %v", err)
	}
}

func TestSelectPhase_BanksRemainingTime(t *testing.T) {
	s := started(t)

	s, ev, err := s.SelectPhase(PhaseContests, settings, at(100))
	if err != nil {
		t.Fatalf("SelectPhase(contests) error = %v", err)
	}
	if ev.Type != EventPhaseChange {
		t.Errorf("event = %s, want phase_change", ev.Type)
	}
	if s.Snapshot.TimeLeftSeconds != 1200 {
		t.Errorf("contests time left = %d, want default 1200", s.Snapshot.TimeLeftSeconds)
	}
	if s.Snapshot.PerPhaseRemaining["annonce"] != 200 {
		t.Errorf("annonce bank = %d, want 200", s.Snapshot.PerPhaseRemaining["annonce"])
	}

	s, _, err = s.SelectPhase(PhaseAnnonce, settings, at(160))
	if err != nil {
		t.Fatalf("SelectPhase(annonce) error = %v", err)
	}
	if s.Snapshot.TimeLeftSeconds != 200 {
		t.Errorf("annonce resumed at %d, want banked 200", s.Snapshot.TimeLeftSeconds)
	}
	if _, ok := s.Snapshot.PerPhaseRemaining["annonce"]; ok {
		t.Error("expected annonce bank to be consumed")
	}
	if s.Snapshot.PerPhaseRemaining["contests"] != 1140 {
		t.Errorf("contests bank = %d, want 1140", s.Snapshot.PerPhaseRemaining["contests"])
	}
	if s.Snapshot.GlobalElapsedSeconds != 160 {
		t.Errorf("global elapsed = %d, want 160", s.Snapshot.GlobalElapsedSeconds)
	}
	if !s.Snapshot.TimerActive {
		t.Error("expected active flag to be preserved")
	}
}

func TestSelectPhase_RejectsUnknownPhase(t *testing.T) {
	if _, _, err := started(t).SelectPhase(Phase("dessert"), settings, at(1)); err == nil {
		t.Error("expected error for unknown phase")
	}
}

func TestTogglePause(t *testing.T) {
	s := started(t)

	s, ev, err := s.TogglePause(at(10))
	if err != nil {
		t.Fatalf("pause error = %v", err)
	}
	if ev.Type != EventTimerPaused || s.Snapshot.TimerActive {
		t.Fatalf("expected paused state, got %s active=%v", ev.Type, s.Snapshot.TimerActive)
	}
	if s.Snapshot.TimeLeftSeconds != 290 || s.Snapshot.GlobalElapsedSeconds != 10 {
		t.Errorf("unexpected snapshot after pause %+v", s.Snapshot)
	}
	if got := Remaining(s.Snapshot, at(5000)); got != 290 {
		t.Errorf("paused remaining = %d, want 290", got)
	}

	s, ev, err = s.TogglePause(at(5000))
	if err != nil {
		t.Fatalf("resume error = %v", err)
	}
	if ev.Type != EventTimerResumed || !s.Snapshot.TimerActive {
		t.Fatalf("expected resumed state, got %s", ev.Type)
	}
	if got := Remaining(s.Snapshot, at(5030)); got != 260 {
		t.Errorf("remaining 30s after resume = %d, want 260", got)
	}
}

func TestAdjust(t *testing.T) {
	s := started(t)

	up, _, err := s.Adjust(60, t0)
	if err != nil {
		t.Fatalf("Adjust error = %v", err)
	}
	if up.Snapshot.TimeLeftSeconds != 360 || !up.Snapshot.TimerActive {
		t.Errorf("unexpected snapshot %+v", up.Snapshot)
	}

	down, ev, _ := s.Adjust(-1000, at(5))
	if down.Snapshot.TimeLeftSeconds != 0 {
		t.Errorf("time left = %d, want floored 0", down.Snapshot.TimeLeftSeconds)
	}
	if ev.Type != EventTimerAdjusted {
		t.Errorf("event = %s", ev.Type)
	}
	if down.Status != s.Status {
		t.Error("expected phase to be unchanged")
	}
}

func TestResetPhase(t *testing.T) {
	s := started(t)

	s, ev, err := s.ResetPhase(settings, at(100))
	if err != nil {
		t.Fatalf("ResetPhase error = %v", err)
	}
	if ev.Type != EventTimerReset {
		t.Errorf("event = %s", ev.Type)
	}
	if s.Snapshot.TimeLeftSeconds != 300 || s.Snapshot.TimerActive {
		t.Errorf("expected default paused timer, got %+v", s.Snapshot)
	}
	if s.Snapshot.GlobalElapsedSeconds != 0 {
		t.Errorf("global elapsed = %d, want 0", s.Snapshot.GlobalElapsedSeconds)
	}
}

func TestAdjust_ClampsLargeDeltas(t *testing.T) {
	s := started(t)

	up, ev, err := s.Adjust(math.MaxInt, t0)
	if err != nil {
		t.Fatalf("Adjust error = %v", err)
	}
	if up.Snapshot.TimeLeftSeconds != MaxAdjustSeconds {
		t.Errorf("time left = %d, want %d", up.Snapshot.TimeLeftSeconds, MaxAdjustSeconds)
	}
	if up.Expired(at(1)) {
		t.Error("a large positive adjustment must not expire the phase")
	}
	if ev.Message != fmt.Sprintf("Timer adjusted by +%ds, %ds left", MaxAdjustSeconds, MaxAdjustSeconds) {
		t.Errorf("event message = %q", ev.Message)
	}

	down, _, _ := s.Adjust(math.MinInt, t0)
	if down.Snapshot.TimeLeftSeconds != 0 {
		t.Errorf("time left = %d, want 0", down.Snapshot.TimeLeftSeconds)
	}
}

func TestResetPhase_RemovesOnlyTimeCountedInThisOccurrence(t *testing.T) {
	tests := []struct {
		name        string
		run         func(t *testing.T) State
		wantElapsed int
	}{
		{
			name: "manual reduction is not counted",
			run: func(t *testing.T) State {
				s, _, _ := started(t).SelectPhase(PhaseContests, settings, at(100))
				s, _, _ = s.Adjust(-600, at(100))
				s, _, err := s.ResetPhase(settings, at(130))
				if err != nil {
					t.Fatal(err)
				}
				return s
			},
			wantElapsed: 100,
		},
		{
			name: "time before banking stays counted",
			run: func(t *testing.T) State {
				s := started(t)
				s, _, _ = s.SelectPhase(PhaseContests, settings, at(100))
				s, _, _ = s.SelectPhase(PhaseAnnonce, settings, at(160))
				s, _, err := s.ResetPhase(settings, at(190))
				if err != nil {
					t.Fatal(err)
				}
				return s
			},
			wantElapsed: 160,
		},
		{
			name: "time after a previous reset only",
			run: func(t *testing.T) State {
				s := started(t)
				s, _, _ = s.ResetPhase(settings, at(40))
				s, _, _ = s.TogglePause(at(40))
				s, _, err := s.ResetPhase(settings, at(70))
				if err != nil {
					t.Fatal(err)
				}
				return s
			},
			wantElapsed: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.run(t)
			if s.Snapshot.GlobalElapsedSeconds != tt.wantElapsed {
				t.Errorf("global elapsed = %d, want %d", s.Snapshot.GlobalElapsedSeconds, tt.wantElapsed)
			}
			if s.Snapshot.TimeLeftSeconds != DefaultSeconds(settings, s.Status.Phase) || s.Snapshot.PhaseElapsedSeconds != 0 {
				t.Errorf("unexpected snapshot %+v", s.Snapshot)
			}
		})
	}
}

func TestExpire_RotatesThroughFourCycles(t *testing.T) {
	s := started(t)

	want := []string{
		"contests_c1", "temps_libre_c1", "annonce_c2",
		"contests_c2", "temps_libre_c2", "annonce_c3",
		"contests_c3", "temps_libre_c3", "annonce_c4",
		"contests_c4", "temps_libre_c4", "finished",
	}

	now := t0
	for i, status := range want {
		now = now.Add(time.Duration(s.Snapshot.TimeLeftSeconds) * time.Second)
		if !s.Expired(now) {
			t.Fatalf("step %d: expected %s to be expired", i, s.Status)
		}

		var ev Event
		var err error
		s, ev, err = s.Expire(settings, now)
		if err != nil {
			t.Fatalf("step %d: Expire error = %v", i, err)
		}
		if s.Status.String() != status {
			t.Fatalf("step %d: status = %s, want %s", i, s.Status, status)
		}

		switch {
		case status == "finished":
			if ev.Type != EventGameFinish {
				t.Errorf("final event = %s, want game_finish", ev.Type)
			}
		case s.Status.Phase == PhaseAnnonce:
			if ev.Type != EventCycleChange {
				t.Errorf("step %d: event = %s, want cycle_change", i, ev.Type)
			}
		default:
			if ev.Type != EventPhaseChange {
				t.Errorf("step %d: event = %s, want phase_change", i, ev.Type)
			}
		}
	}

	if s.Snapshot.TimerActive || s.Snapshot.TimeLeftSeconds != 0 {
		t.Errorf("finished snapshot = %+v", s.Snapshot)
	}
	wantGlobal := 4 * (300 + 1200 + 600)
	if s.Snapshot.GlobalElapsedSeconds != wantGlobal {
		t.Errorf("global elapsed = %d, want %d", s.Snapshot.GlobalElapsedSeconds, wantGlobal)
	}
}

func TestCycleChange_ClearsBanks(t *testing.T) {
	s := started(t)
	s, _, _ = s.SelectPhase(PhaseTempsLibre, settings, at(10))
	if len(s.Snapshot.PerPhaseRemaining) == 0 {
		t.Fatal("expected a banked annonce")
	}

	s, ev, err := s.Expire(settings, at(10+600))
	if err != nil {
		t.Fatalf("Expire error = %v", err)
	}
	if s.Status.String() != "annonce_c2" || ev.Type != EventCycleChange {
		t.Fatalf("status = %s event = %s", s.Status, ev.Type)
	}
	if len(s.Snapshot.PerPhaseRemaining) != 0 {
		t.Errorf("expected banks cleared, got %v", s.Snapshot.PerPhaseRemaining)
	}
	if s.Snapshot.TimeLeftSeconds != 300 {
		t.Errorf("time left = %d, want annonce default", s.Snapshot.TimeLeftSeconds)
	}
}

func TestAdvanceCycle(t *testing.T) {
	s := State{
		Status:   Status{Phase: PhaseContests, Cycle: 2},
		Snapshot: models.TimerSnapshot{TimeLeftSeconds: 500, TimerActive: true, UpdatedAt: t0, PerPhaseRemaining: map[string]int{"annonce": 12}},
	}

	next, ev, err := s.AdvanceCycle(settings, at(20))
	if err != nil {
		t.Fatalf("AdvanceCycle error = %v", err)
	}
	if next.Status.String() != "annonce_c3" || ev.Type != EventCycleChange {
		t.Errorf("status = %s event = %s", next.Status, ev.Type)
	}
	if next.Snapshot.PerPhaseRemaining != nil {
		t.Errorf("expected banks cleared, got %v", next.Snapshot.PerPhaseRemaining)
	}
	if s.Snapshot.PerPhaseRemaining["annonce"] != 12 {
		t.Error("expected receiver snapshot to be untouched")
	}

	last := State{Status: Status{Phase: PhaseAnnonce, Cycle: 4}, Snapshot: models.TimerSnapshot{TimeLeftSeconds: 30, UpdatedAt: t0}}
	fin, ev, err := last.AdvanceCycle(settings, at(1))
	if err != nil {
		t.Fatalf("AdvanceCycle error = %v", err)
	}
	if !fin.Status.Finished || ev.Type != EventGameFinish {
		t.Errorf("status = %s event = %s", fin.Status, ev.Type)
	}
}

func TestFinished_IsAbsorbing(t *testing.T) {
	s := State{
		Status: finishedStatus(),
		Snapshot: models.TimerSnapshot{
			UpdatedAt:          t0,
			PerPhaseRemaining:  map[string]int{"contests": 10},
			ContestAssignments: map[string]map[string]string{"c1": {"1": "team-a"}},
		},
	}

	actions := map[string]func() error{
		"start":         func() error { _, _, err := s.Start(settings, t0); return err },
		"select_phase":  func() error { _, _, err := s.SelectPhase(PhaseAnnonce, settings, t0); return err },
		"toggle_pause":  func() error { _, _, err := s.TogglePause(t0); return err },
		"adjust":        func() error { _, _, err := s.Adjust(30, t0); return err },
		"reset_phase":   func() error { _, _, err := s.ResetPhase(settings, t0); return err },
		"expire":        func() error { _, _, err := s.Expire(settings, t0); return err },
		"advance_cycle": func() error { _, _, err := s.AdvanceCycle(settings, t0); return err },
	}
	for name, fn := range actions {
		if err := fn(); !errors.Is(err, ErrFinished) {
			t.Errorf("%s: error = %v, want ErrFinished", name, err)
		}
	}

	reset, ev := s.Reset(at(5))
	if !reset.Status.Setup || ev.Type != EventInstanceReset {
		t.Fatalf("status = %s event = %s", reset.Status, ev.Type)
	}
	if reset.Snapshot.PerPhaseRemaining != nil || reset.Snapshot.ContestAssignments != nil {
		t.Errorf("expected cleared snapshot, got %+v", reset.Snapshot)
	}
	if !reset.Snapshot.UpdatedAt.Equal(at(5)) {
		t.Errorf("updated_at = %v", reset.Snapshot.UpdatedAt)
	}
}

func TestAssignContest(t *testing.T) {
	s := started(t)

	s, ev, err := s.AssignContest("souffle", "1", "team-a", at(3))
	if err != nil {
		t.Fatalf("AssignContest error = %v", err)
	}
	if ev.Type != EventContestAssigned {
		t.Errorf("event = %s", ev.Type)
	}
	if s.Snapshot.ContestAssignments["souffle"]["1"] != "team-a" {
		t.Errorf("assignments = %v", s.Snapshot.ContestAssignments)
	}
	if s.Snapshot.TimeLeftSeconds != 297 {
		t.Errorf("time left = %d, want 297", s.Snapshot.TimeLeftSeconds)
	}

	s, _, _ = s.AssignContest("souffle", "1", "", at(4))
	if _, ok := s.Snapshot.ContestAssignments["souffle"]; ok {
		t.Errorf("expected contest cleared, got %v", s.Snapshot.ContestAssignments)
	}

	if _, _, err := s.AssignContest("", "1", "team-a", at(5)); err == nil {
		t.Error("expected validation error")
	}
}

func TestView(t *testing.T) {
	s := started(t)
	v := s.View("g1", at(30))

	if v.TimeLeftSeconds != 270 || v.GlobalElapsedSeconds != 30 {
		t.Errorf("view = %+v", v)
	}
	if v.Status != "annonce_c1" || v.Phase != "annonce" || v.Cycle != 1 {
		t.Errorf("view status = %s %s %d", v.Status, v.Phase, v.Cycle)
	}
}
