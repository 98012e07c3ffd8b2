package timer

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Registry holds every configured timer in seed-file order, plus the alias
// tables used to resolve free-text tokens to (area, subArea) pairs.
type Registry struct {
	timers      []*Timer
	areas       []string
	areaSet     map[string]struct{}
	subAreas    map[string]string      // sub-area name -> its area
	areaAliases map[string]string      // alias -> area
	subAliases  map[string]aliasTarget // alias -> (area, subArea)
}

type aliasTarget struct {
	area    string
	subArea string
}

// Request is the result of resolving a token sequence: any field may remain
// unset. HasCount distinguishes "count 0" from "no count given".
type Request struct {
	Area     string
	SubArea  string
	Count    int
	HasCount bool
}

// Occurrence pairs a timer with one of its occurrence times.
type Occurrence struct {
	Timer *Timer
	At    time.Time
}

// NewRegistry builds a registry from seed records. Malformed seeds are
// skipped with a logged rejection; the rest of the load continues. Alias
// conflicts keep the first binding and log the duplicate.
func NewRegistry(seeds []Seed) *Registry {

	r := Registry{
		areaSet:     map[string]struct{}{},
		subAreas:    map[string]string{},
		areaAliases: map[string]string{},
		subAliases:  map[string]aliasTarget{},
	}

	for _, seed := range seeds {
		t, err := New(seed)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping malformed timer seed")
			continue
		}
		r.timers = append(r.timers, t)

		area := t.Area()
		if _, ok := r.areaSet[area]; !ok {
			r.areaSet[area] = struct{}{}
			r.areas = append(r.areas, area)
		}
		if sub := t.SubArea(); sub != "" {
			r.bindSubArea(sub, area, sub)
		}
		for _, alias := range seed.AreaAliases {
			r.bindAreaAlias(strings.ToLower(alias), area)
		}
		for _, alias := range seed.SubAreaAliases {
			r.bindSubAlias(strings.ToLower(alias), area, t.SubArea())
		}
	}

	return &r
}

func (r *Registry) bindSubArea(name, area, sub string) {
	if have, ok := r.subAreas[name]; ok {
		if have != area {
			log.Warn().Msgf("Sub-area name %q already bound to area %q, ignoring binding to %q", name, have, area)
		}
		return
	}
	r.subAreas[name] = area
	// A sub-area's own name resolves like an alias for it.
	if _, ok := r.subAliases[name]; !ok {
		r.subAliases[name] = aliasTarget{area: area, subArea: sub}
	}
}

func (r *Registry) bindAreaAlias(alias, area string) {
	if have, ok := r.areaAliases[alias]; ok {
		if have != area {
			log.Warn().Msgf("Area alias %q already bound to %q, ignoring binding to %q", alias, have, area)
		}
		return
	}
	r.areaAliases[alias] = area
}

func (r *Registry) bindSubAlias(alias, area, sub string) {
	if sub == "" {
		log.Warn().Msgf("Sub-area alias %q declared on a timer without a sub-area, ignoring", alias)
		return
	}
	if have, ok := r.subAliases[alias]; ok {
		if have.area != area || have.subArea != sub {
			log.Warn().Msgf("Sub-area alias %q already bound to %s/%s, ignoring binding to %s/%s", alias, have.area, have.subArea, area, sub)
		}
		return
	}
	r.subAliases[alias] = aliasTarget{area: area, subArea: sub}
}

// ResolveTokens interprets a free-text token sequence. Per token, the first
// interpretation that succeeds wins: exact area name, exact sub-area name
// (which also fixes the area), area alias, sub-area alias (also fixing the
// area), then a count. Fields already set are never overwritten by a later
// token; unmatched tokens are ignored.
func (r *Registry) ResolveTokens(tokens []string) Request {

	var req Request
	for _, token := range tokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}

		if _, ok := r.areaSet[token]; ok {
			if req.Area == "" {
				req.Area = token
			}
			continue
		}
		if area, ok := r.subAreas[token]; ok {
			if req.SubArea == "" {
				req.SubArea = token
			}
			if req.Area == "" {
				req.Area = area
			}
			continue
		}
		if area, ok := r.areaAliases[token]; ok {
			if req.Area == "" {
				req.Area = area
			}
			continue
		}
		if target, ok := r.subAliases[token]; ok {
			if req.SubArea == "" {
				req.SubArea = target.subArea
			}
			if req.Area == "" {
				req.Area = target.area
			}
			continue
		}
		if count, ok := parseCount(token); ok {
			if !req.HasCount {
				req.Count = count
				req.HasCount = true
			}
			continue
		}
	}
	return req
}

// parseCount interprets a token as a reminder count: number words, the
// unlimited/stop words, or a literal integer. Negative and unrepresentable
// integers clamp to -1 (unlimited).
func parseCount(token string) (int, bool) {
	switch token {
	case "once":
		return 1, true
	case "twice":
		return 2, true
	case "thrice":
		return 3, true
	case "always", "forever", "unlimited":
		return -1, true
	case "never", "stop", "quit":
		return 0, true
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return -1, true
		}
		return 0, false
	}
	if n < 0 {
		return -1, true
	}
	return n, true
}

// FindNext returns the matching timer whose next occurrence is earliest,
// together with that occurrence. Ties keep the earlier registry entry. An
// empty area means "all areas" and excludes silent timers; an explicit area
// includes them (silent timers may still be queried).
func (r *Registry) FindNext(now time.Time, area string, subArea string) (*Timer, time.Time, bool) {

	var best *Timer
	var bestAt time.Time
	for _, t := range r.timers {
		if area == "" && t.Silent() {
			continue
		}
		if area != "" && t.Area() != area {
			continue
		}
		if subArea != "" && t.SubArea() != subArea {
			continue
		}
		at, ok := t.Next(now)
		if !ok {
			continue
		}
		if best == nil || at.Before(bestAt) {
			best, bestAt = t, at
		}
	}
	if best == nil {
		return nil, time.Time{}, false
	}
	return best, bestAt, true
}

// FindUpcoming returns every occurrence of matching, non-silent timers in
// (now, until], sorted ascending by time. Capping the display volume is the
// caller's concern.
func (r *Registry) FindUpcoming(now time.Time, area string, until time.Time) []Occurrence {

	var out []Occurrence
	for _, t := range r.timers {
		if t.Silent() {
			continue
		}
		if area != "" && t.Area() != area {
			continue
		}
		for _, at := range t.Upcoming(now, until) {
			out = append(out, Occurrence{Timer: t, At: at})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Timers returns the registry's timers in seed-file order.
func (r *Registry) Timers() []*Timer {
	return r.timers
}

// Areas returns the known area names in seed-file order.
func (r *Registry) Areas() []string {
	return r.areas
}

// KnowsArea reports whether area is a configured area name.
func (r *Registry) KnowsArea(area string) bool {
	_, ok := r.areaSet[area]
	return ok
}
