package reminder

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Count values with special meaning.
const (
	Unlimited = -1 // perpetual reminder
	Inactive  = 0  // expired; removed on the next prune
)

// Reminder is one per-user subscription: notify this user whenever a timer
// of the given area (and sub-area, when set) fires. An empty SubArea means
// "every sub-area of this area". Count is the remaining number of
// notifications, Unlimited for perpetual ones.
type Reminder struct {
	ID           uuid.UUID `json:"id"`
	User         string    `json:"user"`
	Area         string    `json:"area"`
	SubArea      string    `json:"sub_area,omitempty"`
	Count        int       `json:"count"`
	FailureCount int       `json:"failure_count,omitempty"`
}

// Store holds every reminder record in insertion order. All methods are
// safe for concurrent use: user commands and dispatch run on different
// goroutines.
type Store struct {
	mu      sync.Mutex
	records []*Reminder
}

func NewStore() *Store {
	return &Store{}
}

// Add registers count notifications for (user, area, subArea). If a record
// for that exact tuple already exists, active or not, its count is
// overwritten instead of a second record being created; passing count 0 is
// how reminders are turned off. Reports whether an existing record was
// updated. Counts below Unlimited clamp to Unlimited.
func (s *Store) Add(user string, area string, subArea string, count int) bool {
	if count < Unlimited {
		count = Unlimited
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.find(user, area, subArea); rec != nil {
		rec.Count = count
		rec.FailureCount = 0
		return true
	}
	s.records = append(s.records, &Reminder{
		ID:      uuid.New(),
		User:    user,
		Area:    area,
		SubArea: subArea,
		Count:   count,
	})
	return false
}

// TurnOff deactivates the reminder for the exact tuple. The record stays in
// place with count 0 until the next prune, so positions never shift under a
// concurrent dispatch iteration. Reports whether a record existed.
func (s *Store) TurnOff(user string, area string, subArea string) bool {
	return s.Add(user, area, subArea, Inactive)
}

// find returns the record for the exact tuple, counting "no sub-area" as
// its own match. Callers hold the lock.
func (s *Store) find(user string, area string, subArea string) *Reminder {
	for _, rec := range s.records {
		if rec.User == user && rec.Area == area && rec.SubArea == subArea {
			return rec
		}
	}
	return nil
}

// List returns copies of the user's records with nonzero count, in storage
// order.
func (s *Store) List(user string) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Reminder
	for _, rec := range s.records {
		if rec.User == user && rec.Count != Inactive {
			out = append(out, *rec)
		}
	}
	return out
}

// Prune removes every record whose count is exactly 0, preserving the
// relative order of the survivors. Returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.Count != Inactive {
			kept = append(kept, rec)
		}
	}
	removed := len(s.records) - len(kept)
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = nil
	}
	s.records = kept
	return removed
}

// MatchFiring returns copies of every nonzero-count record matching the
// firing: same area, and either no sub-area on the record (matches all) or
// the exact sub-area. Records come back in delivery priority order:
// ascending count with Unlimited last, and for equal counts a record with a
// specific sub-area before one without. Beyond that the order is stable.
func (s *Store) MatchFiring(area string, subArea string) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Reminder
	for _, rec := range s.records {
		if rec.Count == Inactive || rec.Area != area {
			continue
		}
		if rec.SubArea != "" && rec.SubArea != subArea {
			continue
		}
		out = append(out, *rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Count == Unlimited) != (b.Count == Unlimited) {
			return b.Count == Unlimited
		}
		if a.Count != b.Count {
			return a.Count < b.Count
		}
		aSpecific, bSpecific := a.SubArea != "", b.SubArea != ""
		if aSpecific != bSpecific {
			return aSpecific
		}
		return false
	})
	return out
}

// Decrement reduces the record's remaining count by one. Unlimited and
// already-inactive records are left alone.
func (s *Store) Decrement(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.byID(id); rec != nil && rec.Count > 0 {
		rec.Count--
	}
}

// ResetFailures clears the consecutive-failure counter after a successful
// delivery.
func (s *Store) ResetFailures(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.byID(id); rec != nil {
		rec.FailureCount = 0
	}
}

// RecordFailure bumps the consecutive-failure counter and returns the new
// value.
func (s *Store) RecordFailure(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.byID(id); rec != nil {
		rec.FailureCount++
		return rec.FailureCount
	}
	return 0
}

// ForceLastShot sets the record's count to 1 so the next successful
// delivery is its last. Used when failures pile up past the threshold.
func (s *Store) ForceLastShot(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.byID(id); rec != nil {
		rec.Count = 1
	}
}

func (s *Store) byID(id uuid.UUID) *Reminder {
	for _, rec := range s.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

// Snapshot returns a copy of every record for persistence.
func (s *Store) Snapshot() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Reminder, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	return out
}

// Restore replaces the store's contents with previously persisted records.
// Records from older data files may lack an ID; they get a fresh one.
func (s *Store) Restore(records []Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]*Reminder, 0, len(records))
	for _, rec := range records {
		rec := rec
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		if rec.Count < Unlimited {
			rec.Count = Unlimited
		}
		s.records = append(s.records, &rec)
	}
}

// Len reports the number of records, active or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
