package netutil

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// A Restriction allows at most Requests requests per sliding Window.
type Restriction struct {
	Requests int
	Window   time.Duration
}

// analyse checks the recent history against this restriction. history is
// chronological; counting from the end stops at the first request that
// already fell out of the window.
func (r *Restriction) analyse(history []time.Time, now time.Time) verdict {
	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		if now.Sub(history[i]) > r.Window {
			break
		}
		count++
	}
	if count < r.Requests {
		return verdict{allowed: true}
	}
	// The slot frees when the oldest in-window request leaves the window.
	oldest := history[len(history)-count]
	return verdict{wait: oldest.Add(r.Window).Sub(now)}
}

type verdict struct {
	allowed bool
	wait    time.Duration // minimal wait until the request could be allowed
}

// RateLimiter admits requests under a set of restrictions plus any
// cooldown the remote imposed with a 429. Vital requests wait for their
// slot; non-vital ones are rejected outright when a slot is not free or
// vital requests are queued.
type RateLimiter struct {
	mu            sync.Mutex
	restrictions  []Restriction
	history       []time.Time
	span          time.Duration // widest restriction window
	cooldownUntil time.Time
	pendingVital  map[uuid.UUID]struct{}
}

func NewRateLimiter(restrictions []Restriction) *RateLimiter {
	rl := &RateLimiter{
		restrictions: append([]Restriction(nil), restrictions...),
		pendingVital: make(map[uuid.UUID]struct{}),
	}
	for _, r := range restrictions {
		if r.Window > rl.span {
			rl.span = r.Window
		}
	}
	return rl
}

// Allow reports whether a request may go out now. Vital requests block
// until they are admitted; non-vital requests never wait.
func (rl *RateLimiter) Allow(vital bool) bool {
	id := uuid.New()
	for {
		now := time.Now()
		rl.mu.Lock()
		rl.trim(now)
		v := rl.analyse(now)

		if v.allowed {
			if !vital && len(rl.pendingVital) > 0 {
				rl.mu.Unlock()
				log.Warn().Msg("Rejecting non-vital request, vital requests are waiting")
				return false
			}
			delete(rl.pendingVital, id)
			rl.history = append(rl.history, now)
			rl.mu.Unlock()
			return true
		}

		if !vital {
			rl.mu.Unlock()
			log.Warn().Msg("Rejecting non-vital request, rate limited")
			return false
		}

		rl.pendingVital[id] = struct{}{}
		rl.mu.Unlock()

		wait := v.wait
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		log.Debug().Msgf("Vital request %s delayed %s", id, wait)
		time.Sleep(wait)
	}
}

// ReceivedRateLimit records that the remote answered 429. Nothing goes out
// until the widest restriction window has passed.
func (rl *RateLimiter) ReceivedRateLimit() {
	rl.mu.Lock()
	rl.cooldownUntil = time.Now().Add(rl.span)
	rl.mu.Unlock()
	log.Warn().Msgf("Remote rate limit received, cooling down for %s", rl.span)
}

// trim drops history entries too old to matter to any restriction.
// Callers hold the lock.
func (rl *RateLimiter) trim(now time.Time) {
	cut := 0
	for i := len(rl.history) - 1; i >= 0; i-- {
		if now.Sub(rl.history[i]) > rl.span {
			cut = i + 1
			break
		}
	}
	rl.history = rl.history[cut:]
}

// analyse merges the verdicts of every restriction and the 429 cooldown.
// Callers hold the lock.
func (rl *RateLimiter) analyse(now time.Time) verdict {
	merged := verdict{allowed: true}
	for i := range rl.restrictions {
		v := rl.restrictions[i].analyse(rl.history, now)
		merged.allowed = merged.allowed && v.allowed
		if v.wait > merged.wait {
			merged.wait = v.wait
		}
	}
	if now.Before(rl.cooldownUntil) {
		merged.allowed = false
		if wait := rl.cooldownUntil.Sub(now); wait > merged.wait {
			merged.wait = wait
		}
	}
	return merged
}
