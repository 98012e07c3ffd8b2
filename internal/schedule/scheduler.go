package schedule

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"hornbot/internal/timer"
)

const maxSleepCap = 60 * time.Second

// Firing is one timer occurrence whose notice point has been reached.
// Occurrence is the event instant itself, still AdvanceNotice in the
// future when the callback runs.
type Firing struct {
	Timer      *timer.Timer
	Occurrence time.Time
}

// task is a named self-rescheduling job, such as the daily hunter reset.
type task struct {
	next func(now time.Time) time.Time
	fire func(at time.Time)
}

type entry struct {
	key    string
	wakeAt time.Time
	occ    time.Time
	timer  *timer.Timer
	task   *task
}

// Scheduler wakes shortly before each armed timer's occurrences and hands
// the firing to a callback. A single goroutine owns the wake heap; arming
// and removal go through channels. onFire runs on that goroutine, so
// callbacks that block should hand off to their own.
type Scheduler struct {
	addChan    chan entry
	removeChan chan string
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	stopOnce   sync.Once
}

// New creates and starts a scheduler.
func New(onFire func(Firing)) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		addChan:    make(chan entry, 64),
		removeChan: make(chan string, 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go s.run(onFire)
	return s
}

// ArmTimer schedules wakes for the timer's occurrences, the first one at
// the notice point of the next occurrence whose notice point is still
// ahead. Silent timers and timers without a schedule are not armed.
// Re-arming a key replaces its pending wake. Reports whether the timer
// was armed.
func (s *Scheduler) ArmTimer(t *timer.Timer) bool {
	if t.Silent() {
		return false
	}
	wake, occ, ok := initialWake(t, time.Now())
	if !ok {
		return false
	}
	if !s.submit(entry{key: t.Key(), wakeAt: wake, occ: occ, timer: t}) {
		return false
	}
	log.Debug().Msgf("Armed timer %s: occurrence %s, waking %s",
		t.Key(), occ.Format(time.RFC3339), wake.Format(time.RFC3339))
	return true
}

// ArmTask schedules a named job. next must return a wake time strictly
// after its argument for the task to stay armed; the task re-arms itself
// after every run until next stops doing so. fire receives the scheduled
// wake time.
func (s *Scheduler) ArmTask(name string, next func(now time.Time) time.Time, fire func(at time.Time)) bool {
	now := time.Now()
	wake := next(now)
	if !wake.After(now) {
		return false
	}
	if !s.submit(entry{key: name, wakeAt: wake, task: &task{next: next, fire: fire}}) {
		return false
	}
	log.Debug().Msgf("Armed task %s: waking %s", name, wake.Format(time.RFC3339))
	return true
}

// submit hands an entry to the run goroutine. Sends to the buffered
// channel succeed even after shutdown, so a stopped scheduler is checked
// for explicitly first.
func (s *Scheduler) submit(e entry) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	select {
	case s.addChan <- e:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Remove unschedules the timer or task with the given key.
func (s *Scheduler) Remove(key string) {
	select {
	case s.removeChan <- key:
	case <-s.ctx.Done():
	}
}

// Stop shuts the scheduler down and waits for its goroutine to exit.
// Stopping twice is harmless; a stopped scheduler stays stopped.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(s.cancel)
	<-s.done
}

// initialWake finds the first wake strictly in the future: the notice
// point of the next occurrence, slid forward occurrence by occurrence
// while the notice point is already past. A timer checked at 00:50 with
// hourly occurrences and 15m notice wakes at 01:45 for the 02:00
// occurrence, not at the already-missed 00:45.
func initialWake(t *timer.Timer, now time.Time) (wake time.Time, occ time.Time, ok bool) {
	occ, ok = t.Next(now)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	for {
		wake = occ.Add(-t.AdvanceNotice())
		if wake.After(now) {
			return wake, occ, true
		}
		occ, ok = t.Next(occ)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
	}
}

// run is the scheduler goroutine. It keeps a min-heap of pending wakes
// and sleeps until the earliest one, capped at 60s so a wall-clock jump
// never strands it.
func (s *Scheduler) run(onFire func(Firing)) {
	defer close(s.done)

	h := &wakeHeap{}
	heap.Init(h)

	var wakeTimer *time.Timer
	defer func() {
		if wakeTimer != nil {
			wakeTimer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if wakeTimer != nil {
			wakeTimer.Stop()
		}
		if h.Len() == 0 {
			// Nothing armed; block on the channels alone.
			return nil
		}
		dur := time.Until((*h)[0].wakeAt)
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		wakeTimer = time.NewTimer(dur)
		return wakeTimer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-s.ctx.Done():
			return

		case e := <-s.addChan:
			heapRemoveByKey(h, e.key)
			heapPush(h, e)
			timerCh = resetTimer()

		case key := <-s.removeChan:
			heapRemoveByKey(h, key)
			timerCh = resetTimer()

		case <-timerCh:
			now := time.Now()
			for h.Len() > 0 && !(*h)[0].wakeAt.After(now) {
				e := heapPop(h)
				if e.task != nil {
					e.task.fire(e.wakeAt)
					ref := time.Now()
					if next := e.task.next(ref); next.After(ref) {
						e.wakeAt = next
						heapPush(h, e)
					}
					continue
				}
				log.Info().Msgf("Timer %s fired for occurrence %s",
					e.key, e.occ.Format(time.RFC3339))
				onFire(Firing{Timer: e.timer, Occurrence: e.occ})
				if wake, occ, ok := initialWake(e.timer, time.Now()); ok {
					heapPush(h, entry{key: e.key, wakeAt: wake, occ: occ, timer: e.timer})
				}
			}
			timerCh = resetTimer()
		}
	}
}
