package timer

import (
	"testing"
	"time"
)

var testAnchor = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func hourly(t *testing.T) *Timer {
	t.Helper()
	tm, err := New(Seed{Area: "fg", SubArea: "open", Repeat: "1h", Anchor: "2026-01-01T00:00:00Z", Advance: "15m"})
	if err != nil {
		t.Fatalf("building hourly timer: %v", err)
	}
	return tm
}

func TestNextOnLattice(t *testing.T) {
	tm := hourly(t)
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		// Mid-cycle rounds up to the next lattice point.
		{testAnchor.Add(50 * time.Minute), testAnchor.Add(time.Hour)},
		// Exactly on an occurrence: strictly greater, so the next one.
		{testAnchor.Add(time.Hour), testAnchor.Add(2 * time.Hour)},
		{testAnchor, testAnchor.Add(time.Hour)},
		// Before the anchor the first occurrence is the anchor itself.
		{testAnchor.Add(-30 * time.Minute), testAnchor},
		{testAnchor.Add(-90 * time.Minute), testAnchor.Add(-time.Hour)},
		// Far from the anchor in either direction.
		{testAnchor.Add(1000*time.Hour + 10*time.Minute), testAnchor.Add(1001 * time.Hour)},
		{testAnchor.Add(-1000*time.Hour - 10*time.Minute), testAnchor.Add(-1000 * time.Hour)},
	}
	for _, c := range cases {
		got, ok := tm.Next(c.now)
		if !ok {
			t.Fatalf("Next(%v) reported no occurrence", c.now)
		}
		if !got.Equal(c.want) {
			t.Errorf("Next(%v) = %v, want %v", c.now, got, c.want)
		}
		if !got.After(c.now) {
			t.Errorf("Next(%v) = %v is not strictly after now", c.now, got)
		}
	}
}

func TestNextIsStable(t *testing.T) {
	tm := hourly(t)
	now := testAnchor.Add(7*time.Hour + 13*time.Minute)
	first, _ := tm.Next(now)
	for i := 0; i < 5; i++ {
		again, _ := tm.Next(now)
		if !again.Equal(first) {
			t.Fatalf("Next drifted on repeated calls: %v then %v", first, again)
		}
	}
}

func TestUpcoming(t *testing.T) {
	tm := hourly(t)
	now := testAnchor.Add(50 * time.Minute)
	until := testAnchor.Add(4 * time.Hour)

	got := tm.Upcoming(now, until)
	want := []time.Time{
		testAnchor.Add(1 * time.Hour),
		testAnchor.Add(2 * time.Hour),
		testAnchor.Add(3 * time.Hour),
		testAnchor.Add(4 * time.Hour), // until is inclusive
	}
	if len(got) != len(want) {
		t.Fatalf("Upcoming returned %d occurrences, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("occurrence %d = %v, want %v", i, got[i], want[i])
		}
		if i > 0 && !got[i].After(got[i-1]) {
			t.Errorf("occurrences not strictly ascending at %d", i)
		}
	}

	// First element always matches Next.
	next, _ := tm.Next(now)
	if !got[0].Equal(next) {
		t.Errorf("Upcoming[0] = %v, want Next = %v", got[0], next)
	}

	// Restartable: the same inputs produce the same sequence.
	again := tm.Upcoming(now, until)
	if len(again) != len(got) {
		t.Errorf("Upcoming is not restartable: %d then %d occurrences", len(got), len(again))
	}
}

func TestUpcomingEmptyWindow(t *testing.T) {
	tm := hourly(t)
	now := testAnchor.Add(10 * time.Minute)
	if got := tm.Upcoming(now, now.Add(time.Minute)); len(got) != 0 {
		t.Errorf("expected no occurrences in an empty window, got %d", len(got))
	}
}

func TestCronTimer(t *testing.T) {
	tm, err := New(Seed{Area: "reset", Cron: "0 0 * * *", Announce: "Daily reset."})
	if err != nil {
		t.Fatalf("building cron timer: %v", err)
	}
	now := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
	got, ok := tm.Next(now)
	if !ok {
		t.Fatal("cron timer reported no occurrence")
	}
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}

	ups := tm.Upcoming(now, now.Add(48*time.Hour))
	if len(ups) != 2 {
		t.Fatalf("expected 2 daily occurrences in 48h, got %d", len(ups))
	}
}

func TestNewRejectsMalformedSeeds(t *testing.T) {
	cases := []struct {
		name string
		seed Seed
	}{
		{"missing area", Seed{Repeat: "1h", Anchor: "2026-01-01T00:00:00Z"}},
		{"missing repeat", Seed{Area: "fg"}},
		{"zero repeat", Seed{Area: "fg", Repeat: "0s", Anchor: "2026-01-01T00:00:00Z"}},
		{"negative repeat", Seed{Area: "fg", Repeat: "-1h", Anchor: "2026-01-01T00:00:00Z"}},
		{"unparsable repeat", Seed{Area: "fg", Repeat: "soon", Anchor: "2026-01-01T00:00:00Z"}},
		{"missing anchor", Seed{Area: "fg", Repeat: "1h"}},
		{"bad anchor", Seed{Area: "fg", Repeat: "1h", Anchor: "yesterday"}},
		{"both schedule kinds", Seed{Area: "fg", Repeat: "1h", Anchor: "2026-01-01T00:00:00Z", Cron: "0 0 * * *"}},
		{"bad cron", Seed{Area: "fg", Cron: "not a cron"}},
		{"negative advance", Seed{Area: "fg", Repeat: "1h", Anchor: "2026-01-01T00:00:00Z", Advance: "-5m"}},
	}
	for _, c := range cases {
		if _, err := New(c.seed); err == nil {
			t.Errorf("%s: expected a validation error", c.name)
		}
	}
}

func TestNewAllowsStaticSilentTimer(t *testing.T) {
	tm, err := New(Seed{Area: "cove", SubArea: "mid", Silent: true})
	if err != nil {
		t.Fatalf("silent schedule-less timer should be valid: %v", err)
	}
	if _, ok := tm.Next(time.Now()); ok {
		t.Error("schedule-less timer must report no occurrence")
	}
}

func TestKey(t *testing.T) {
	withSub := hourly(t)
	if withSub.Key() != "fg/open" {
		t.Errorf("Key = %q, want fg/open", withSub.Key())
	}
	plain, err := New(Seed{Area: "reset", Cron: "0 0 * * *"})
	if err != nil {
		t.Fatal(err)
	}
	if plain.Key() != "reset" {
		t.Errorf("Key = %q, want reset", plain.Key())
	}
}

func TestParseSeedsJSONC(t *testing.T) {
	data := []byte(`[
		// The grove gate.
		{
			"area": "fg",
			"sub_area": "open",
			"repeat": "20h",
			"anchor": "2026-01-01T00:00:00Z",
			"advance": "15m", // trailing comma below is fine too
		},
	]`)
	seeds, err := ParseSeeds(data)
	if err != nil {
		t.Fatalf("ParseSeeds: %v", err)
	}
	if len(seeds) != 1 {
		t.Fatalf("expected 1 seed, got %d", len(seeds))
	}
	if seeds[0].Area != "fg" || seeds[0].Advance != "15m" {
		t.Errorf("unexpected seed contents: %+v", seeds[0])
	}
}

func TestParseSeedsMalformed(t *testing.T) {
	if _, err := ParseSeeds([]byte(`{"area": "fg"`)); err == nil {
		t.Error("expected an error for malformed seed data")
	}
}
