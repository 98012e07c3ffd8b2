package timer

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Cap on the number of occurrences Upcoming will produce for a single
// timer, so a tiny interval with a huge window cannot blow up a listing.
const maxUpcoming = 10000

// Timer is one recurring event definition: an area (event category), an
// optional sub-area, and a schedule. The schedule is either a lattice
// (anchor + k*repeat for integer k) or a cron expression. Timers are
// immutable once constructed; all occurrence math is free of side effects.
type Timer struct {
	area     string
	subArea  string
	repeat   time.Duration
	anchor   time.Time
	cron     string
	advance  time.Duration
	announce string
	demand   string
	silent   bool
}

// SeedError reports why a seed record was rejected at construction time.
type SeedError struct {
	Area   string
	Sub    string
	Reason string
}

func (e *SeedError) Error() string {
	if e.Sub != "" {
		return fmt.Sprintf("timer seed %s/%s: %s", e.Area, e.Sub, e.Reason)
	}
	return fmt.Sprintf("timer seed %s: %s", e.Area, e.Reason)
}

// New validates a seed record and builds a Timer from it. Malformed seeds
// produce a SeedError; the registry builder skips those and keeps loading.
func New(seed Seed) (*Timer, error) {

	reject := func(reason string) (*Timer, error) {
		return nil, &SeedError{Area: seed.Area, Sub: seed.SubArea, Reason: reason}
	}

	if seed.Area == "" {
		return reject("missing area")
	}

	// Area and sub-area names are matched against lowercased user tokens,
	// so they are stored canonically lowercased.
	t := Timer{
		area:     strings.ToLower(seed.Area),
		subArea:  strings.ToLower(seed.SubArea),
		cron:     seed.Cron,
		announce: seed.Announce,
		demand:   seed.Demand,
		silent:   seed.Silent,
	}

	if seed.Repeat != "" && seed.Cron != "" {
		return reject("repeat and cron are mutually exclusive")
	}

	switch {
	case seed.Repeat != "":
		repeat, err := time.ParseDuration(seed.Repeat)
		if err != nil {
			return reject(fmt.Sprintf("bad repeat interval %q", seed.Repeat))
		}
		if repeat <= 0 {
			return reject(fmt.Sprintf("repeat interval %q is not positive", seed.Repeat))
		}
		if seed.Anchor == "" {
			return reject("lattice timer needs an anchor")
		}
		anchor, err := time.Parse(time.RFC3339, seed.Anchor)
		if err != nil {
			return reject(fmt.Sprintf("bad anchor %q", seed.Anchor))
		}
		t.repeat = repeat
		t.anchor = anchor
	case seed.Cron != "":
		if !gronx.New().IsValid(seed.Cron) {
			return reject(fmt.Sprintf("bad cron expression %q", seed.Cron))
		}
	default:
		// Schedule-less timers are allowed only as silent, queryable entries.
		if !seed.Silent {
			return reject("missing repeat interval")
		}
	}

	if seed.Advance != "" {
		advance, err := time.ParseDuration(seed.Advance)
		if err != nil || advance < 0 {
			return reject(fmt.Sprintf("bad advance notice %q", seed.Advance))
		}
		t.advance = advance
	}

	return &t, nil
}

// Next returns the smallest occurrence strictly greater than now. The
// result is deterministic: repeated calls with the same now yield the same
// instant. ok is false for schedule-less timers.
func (t *Timer) Next(now time.Time) (time.Time, bool) {
	switch {
	case t.repeat > 0:
		return t.nextOnLattice(now), true
	case t.cron != "":
		next, err := gronx.NextTickAfter(t.cron, now, false)
		if err != nil {
			return time.Time{}, false
		}
		return next, true
	default:
		return time.Time{}, false
	}
}

// nextOnLattice projects now onto anchor + k*repeat and takes the ceiling.
func (t *Timer) nextOnLattice(now time.Time) time.Time {
	elapsed := now.Sub(t.anchor)
	k := int64(elapsed / t.repeat)
	if elapsed%t.repeat < 0 {
		k--
	}
	return t.anchor.Add(time.Duration(k+1) * t.repeat)
}

// Upcoming returns every occurrence in (now, until], strictly ascending.
// It is a pure function of its inputs: no internal cursor, restartable.
func (t *Timer) Upcoming(now time.Time, until time.Time) []time.Time {

	var out []time.Time
	at, ok := t.Next(now)
	for ok && !at.After(until) && len(out) < maxUpcoming {
		out = append(out, at)
		at, ok = t.Next(at)
	}
	return out
}

func (t *Timer) Area() string                  { return t.area }
func (t *Timer) SubArea() string               { return t.subArea }
func (t *Timer) RepeatInterval() time.Duration { return t.repeat }
func (t *Timer) AdvanceNotice() time.Duration  { return t.advance }
func (t *Timer) Announce() string              { return t.announce }
func (t *Timer) Demand() string                { return t.demand }
func (t *Timer) Silent() bool                  { return t.silent }

// Key identifies the timer in logs, dispatch destination tables and
// user-facing listings: "area" or "area/subArea".
func (t *Timer) Key() string {
	if t.subArea == "" {
		return t.area
	}
	return t.area + "/" + t.subArea
}
