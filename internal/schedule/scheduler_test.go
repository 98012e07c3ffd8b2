package schedule

import (
	"sync"
	"testing"
	"time"

	"hornbot/internal/timer"
)

func mustTimer(t *testing.T, seed timer.Seed) *timer.Timer {
	t.Helper()
	tm, err := timer.New(seed)
	if err != nil {
		t.Fatalf("building timer: %v", err)
	}
	return tm
}

func TestInitialWake(t *testing.T) {
	hourly := mustTimer(t, timer.Seed{
		Area:    "fg",
		SubArea: "open",
		Repeat:  "1h",
		Anchor:  "2026-01-01T00:00:00Z",
		Advance: "15m",
	})

	cases := []struct {
		name     string
		now      time.Time
		wantWake time.Time
		wantOcc  time.Time
	}{
		{
			name:     "notice point still ahead",
			now:      time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC),
			wantWake: time.Date(2026, 1, 1, 0, 45, 0, 0, time.UTC),
			wantOcc:  time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
		},
		{
			name:     "notice point already past slides to next occurrence",
			now:      time.Date(2026, 1, 1, 0, 50, 0, 0, time.UTC),
			wantWake: time.Date(2026, 1, 1, 1, 45, 0, 0, time.UTC),
			wantOcc:  time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC),
		},
		{
			name:     "exactly at the notice point slides forward",
			now:      time.Date(2026, 1, 1, 0, 45, 0, 0, time.UTC),
			wantWake: time.Date(2026, 1, 1, 1, 45, 0, 0, time.UTC),
			wantOcc:  time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wake, occ, ok := initialWake(hourly, tc.now)
			if !ok {
				t.Fatal("expected a wake")
			}
			if !wake.Equal(tc.wantWake) {
				t.Errorf("wake = %v, want %v", wake, tc.wantWake)
			}
			if !occ.Equal(tc.wantOcc) {
				t.Errorf("occurrence = %v, want %v", occ, tc.wantOcc)
			}
		})
	}
}

func TestInitialWakeZeroAdvance(t *testing.T) {
	tm := mustTimer(t, timer.Seed{
		Area:   "fg",
		Repeat: "1h",
		Anchor: "2026-01-01T00:00:00Z",
	})

	now := time.Date(2026, 1, 1, 0, 50, 0, 0, time.UTC)
	wake, occ, ok := initialWake(tm, now)
	if !ok {
		t.Fatal("expected a wake")
	}
	if !wake.Equal(occ) {
		t.Errorf("wake = %v, occurrence = %v, want them equal without advance notice", wake, occ)
	}
	if !occ.Equal(time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)) {
		t.Errorf("occurrence = %v, want 01:00", occ)
	}
}

func TestInitialWakeCron(t *testing.T) {
	daily := mustTimer(t, timer.Seed{
		Area:    "reset",
		Cron:    "0 0 * * *",
		Advance: "15m",
	})

	// 23:50 is past the 23:45 notice point for tonight's midnight, so the
	// wake slides to tomorrow's.
	now := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)
	wake, occ, ok := initialWake(daily, now)
	if !ok {
		t.Fatal("expected a wake")
	}
	if !wake.Equal(time.Date(2026, 3, 15, 23, 45, 0, 0, time.UTC)) {
		t.Errorf("wake = %v, want 2026-03-15 23:45 UTC", wake)
	}
	if !occ.Equal(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("occurrence = %v, want 2026-03-16 00:00 UTC", occ)
	}
}

func TestInitialWakeNoSchedule(t *testing.T) {
	static := mustTimer(t, timer.Seed{Area: "relic_hunter", Silent: true})
	if _, _, ok := initialWake(static, time.Now()); ok {
		t.Fatal("schedule-less timer produced a wake")
	}
}

func TestSchedulerFiresAtNoticePoint(t *testing.T) {
	firings := make(chan Firing, 8)
	s := New(func(f Firing) { firings <- f })
	defer s.Stop()

	tm := mustTimer(t, timer.Seed{
		Area:    "fg",
		Repeat:  "600ms",
		Anchor:  time.Now().UTC().Format(time.RFC3339Nano),
		Advance: "300ms",
	})
	if !s.ArmTimer(tm) {
		t.Fatal("ArmTimer refused a schedulable timer")
	}

	select {
	case f := <-firings:
		if f.Timer.Key() != "fg" {
			t.Errorf("fired timer %s, want fg", f.Timer.Key())
		}
		// The wake happens a full advance notice before the occurrence.
		if !f.Occurrence.After(time.Now()) {
			t.Errorf("occurrence %v is not in the future at notice time", f.Occurrence)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestSchedulerReArmsAfterFiring(t *testing.T) {
	var mu sync.Mutex
	var occurrences []time.Time
	s := New(func(f Firing) {
		mu.Lock()
		occurrences = append(occurrences, f.Occurrence)
		mu.Unlock()
	})
	defer s.Stop()

	period := 150 * time.Millisecond
	tm := mustTimer(t, timer.Seed{
		Area:   "cove",
		Repeat: period.String(),
		Anchor: time.Now().UTC().Format(time.RFC3339Nano),
	})
	s.ArmTimer(tm)

	time.Sleep(700 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(occurrences) < 2 {
		t.Fatalf("expected repeated firings, got %d", len(occurrences))
	}
	for i := 1; i < len(occurrences); i++ {
		gap := occurrences[i].Sub(occurrences[i-1])
		if gap <= 0 || gap%period != 0 {
			t.Errorf("occurrences %d and %d are %v apart, want a positive multiple of %v",
				i-1, i, gap, period)
		}
	}
}

func TestSilentTimerNotArmed(t *testing.T) {
	fired := 0
	s := New(func(Firing) { fired++ })
	defer s.Stop()

	tm := mustTimer(t, timer.Seed{
		Area:   "cove",
		Repeat: "50ms",
		Anchor: time.Now().UTC().Format(time.RFC3339Nano),
		Silent: true,
	})
	if s.ArmTimer(tm) {
		t.Fatal("ArmTimer accepted a silent timer")
	}

	time.Sleep(200 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("silent timer fired %d times", fired)
	}
}

func TestRemoveCancelsPendingWake(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	s := New(func(Firing) {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	defer s.Stop()

	tm := mustTimer(t, timer.Seed{
		Area:   "sg",
		Repeat: "600ms",
		Anchor: time.Now().UTC().Format(time.RFC3339Nano),
	})
	s.ArmTimer(tm)

	// Let the add drain, then cancel well before the first wake.
	time.Sleep(50 * time.Millisecond)
	s.Remove(tm.Key())

	time.Sleep(800 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Fatalf("timer fired %d times after removal", fired)
	}
}

func TestStopIsTerminal(t *testing.T) {
	s := New(func(Firing) {})
	s.Stop()
	s.Stop()

	tm := mustTimer(t, timer.Seed{
		Area:   "fg",
		Repeat: "1h",
		Anchor: "2026-01-01T00:00:00Z",
	})
	if s.ArmTimer(tm) {
		t.Fatal("ArmTimer succeeded on a stopped scheduler")
	}
}

func TestTaskReArmsItself(t *testing.T) {
	var mu sync.Mutex
	var runs []time.Time
	s := New(func(Firing) {})
	defer s.Stop()

	armed := s.ArmTask("hunter-reset",
		func(now time.Time) time.Time { return now.Add(120 * time.Millisecond) },
		func(at time.Time) {
			mu.Lock()
			runs = append(runs, at)
			mu.Unlock()
		})
	if !armed {
		t.Fatal("ArmTask refused the task")
	}

	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(runs) < 2 {
		t.Fatalf("expected the task to re-arm and run again, got %d runs", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if !runs[i].After(runs[i-1]) {
			t.Errorf("run times out of order: %v then %v", runs[i-1], runs[i])
		}
	}
}

func TestTaskOneShot(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	s := New(func(Firing) {})
	defer s.Stop()

	first := true
	s.ArmTask("once",
		func(now time.Time) time.Time {
			if first {
				first = false
				return now.Add(80 * time.Millisecond)
			}
			return time.Time{}
		},
		func(time.Time) {
			mu.Lock()
			runs++
			mu.Unlock()
		})

	time.Sleep(400 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Fatalf("one-shot task ran %d times, want 1", runs)
	}
}
