package hunter

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"hornbot/internal/timeutil"
)

// Unknown is the location between sightings and after the daily reset.
const Unknown = "unknown"

// Where a location value came from.
const (
	SourceWebhook = "webhook"
	SourceReset   = "reset"
	SourceHint    = "hint"
	SourceMap     = "map"
)

// State is the persisted relic hunter sighting.
type State struct {
	Location string    `json:"location"`
	Source   string    `json:"source"`
	LastSeen time.Time `json:"last_seen"`
}

// Tracker holds the process-wide relic hunter state. The hunter moves once
// per calendar day (UTC), so the location goes back to unknown at every
// UTC midnight no matter how it was learned.
type Tracker struct {
	mu    sync.Mutex
	state State
}

func NewTracker() *Tracker {
	return &Tracker{state: State{Location: Unknown, Source: SourceReset}}
}

// Set records a sighting. An empty location counts as unknown.
func (tr *Tracker) Set(location string, source string, at time.Time) {
	if location == "" {
		location = Unknown
	}
	tr.mu.Lock()
	tr.state = State{Location: location, Source: source, LastSeen: at}
	tr.mu.Unlock()
	log.Info().Msgf("Relic hunter seen in %s (source %s)", location, source)
}

// Reset clears the location for the new day.
func (tr *Tracker) Reset(at time.Time) {
	tr.mu.Lock()
	tr.state = State{Location: Unknown, Source: SourceReset, LastSeen: at}
	tr.mu.Unlock()
	log.Info().Msg("Relic hunter location reset for the new day")
}

// Current returns the state as of now.
func (tr *Tracker) Current() State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.state
}

// Known reports whether there is a usable location.
func (tr *Tracker) Known() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.state.Location != "" && tr.state.Location != Unknown
}

// Snapshot returns the state for persistence.
func (tr *Tracker) Snapshot() State {
	return tr.Current()
}

// Restore loads a persisted state. A sighting from before today's UTC
// midnight already expired while the process was down, so it comes back
// as unknown.
func (tr *Tracker) Restore(state State, now time.Time) {
	if state.Location == "" || state.LastSeen.Before(timeutil.StartOfUTCDay(now)) {
		state = State{Location: Unknown, Source: SourceReset, LastSeen: state.LastSeen}
	}
	tr.mu.Lock()
	tr.state = state
	tr.mu.Unlock()
}
