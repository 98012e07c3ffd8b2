package dispatch

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize/english"
	"github.com/rs/zerolog/log"

	"hornbot/internal/reminder"
	"hornbot/internal/schedule"
	"hornbot/internal/timer"
	"hornbot/internal/timeutil"
)

// A reminder whose deliveries keep failing gets one forced last shot once
// the consecutive-failure count passes this threshold.
const failureThreshold = 10

// Notifier delivers a direct message to a user.
type Notifier interface {
	Notify(user string, message string) error
}

// Announcer posts a message to a public channel.
type Announcer interface {
	Announce(channel string, message string) error
}

// destinations are the announce channels for one timer key. Channels that
// fail a delivery move from active to inactive and are not retried.
type destinations struct {
	active   []string
	inactive []string
}

// Dispatcher turns scheduler firings into channel announcements and
// per-user reminders. Safe for concurrent firings.
type Dispatcher struct {
	store     *reminder.Store
	notifier  Notifier
	announcer Announcer
	prefix    string

	mu    sync.Mutex
	dests map[string]*destinations
}

func New(store *reminder.Store, notifier Notifier, announcer Announcer, prefix string) *Dispatcher {
	return &Dispatcher{
		store:     store,
		notifier:  notifier,
		announcer: announcer,
		prefix:    prefix,
		dests:     make(map[string]*destinations),
	}
}

// RegisterDestinations sets the announce channels for a timer key,
// replacing any previous set and reviving channels that had failed.
func (d *Dispatcher) RegisterDestinations(key string, channels []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dests[key] = &destinations{active: append([]string(nil), channels...)}
}

// HandleFiring announces the upcoming occurrence and walks the matching
// reminders in delivery priority order, sending each user at most one
// direct message per firing.
func (d *Dispatcher) HandleFiring(f schedule.Firing) {
	t := f.Timer
	body := announceText(t)

	d.announce(t.Key(), body)

	matched := d.store.MatchFiring(t.Area(), t.SubArea())
	log.Info().Msgf("Dispatching %s: %d reminders matched", t.Key(), len(matched))

	notified := make(map[string]bool, len(matched))
	for _, rec := range matched {
		if notified[rec.User] {
			continue
		}
		notified[rec.User] = true

		if err := d.notifier.Notify(rec.User, body+" "+reminderTail(d.prefix, rec)); err != nil {
			failures := d.store.RecordFailure(rec.ID)
			log.Warn().Err(err).Msgf("Could not remind user %s about %s (failure %d)",
				rec.User, t.Key(), failures)
			if failures > failureThreshold {
				d.store.ForceLastShot(rec.ID)
				log.Warn().Msgf("Reminder %s for user %s keeps failing, downgrading to one last shot",
					rec.ID, rec.User)
			}
			continue
		}
		d.store.Decrement(rec.ID)
		d.store.ResetFailures(rec.ID)
	}
}

// announce posts to every active destination for the key. A destination
// that errors is moved aside so one dead channel cannot stall the rest
// forever; the bot keeps running degraded.
func (d *Dispatcher) announce(key string, body string) {
	d.mu.Lock()
	dest := d.dests[key]
	if dest == nil {
		d.mu.Unlock()
		return
	}
	active := append([]string(nil), dest.active...)
	d.mu.Unlock()

	var failed []string
	for _, channel := range active {
		if err := d.announcer.Announce(channel, body); err != nil {
			log.Warn().Err(err).Msgf("Could not announce %s on channel %s", key, channel)
			failed = append(failed, channel)
		}
	}
	if len(failed) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, channel := range failed {
		for i, c := range dest.active {
			if c == channel {
				dest.active = append(dest.active[:i], dest.active[i+1:]...)
				dest.inactive = append(dest.inactive, channel)
				break
			}
		}
	}
}

// announceText renders the firing message: the timer's announce line plus
// how far away the occurrence is, which at wake time is the advance notice.
func announceText(t *timer.Timer) string {
	tmpl := t.Announce()
	if tmpl == "" {
		tmpl = fmt.Sprintf("%s is coming up", t.Key())
	}
	if adv := t.AdvanceNotice(); adv > 0 {
		return fmt.Sprintf("%s in %s.", tmpl, timeutil.Remaining(adv))
	}
	return tmpl + "."
}

// reminderTail tells the user where their subscription stands after this
// delivery and how to change it.
func reminderTail(prefix string, rec reminder.Reminder) string {
	cmd := prefix + " remind " + rec.Area
	if rec.SubArea != "" {
		cmd += " " + rec.SubArea
	}
	switch {
	case rec.Count == reminder.Unlimited:
		return fmt.Sprintf("You are set to be reminded every time, say %q to stop.", cmd+" stop")
	case rec.Count-1 <= 0:
		return fmt.Sprintf("That was your last reminder, say %q if you want more.", cmd)
	default:
		return fmt.Sprintf("You will be reminded %s more, say %q to stop.",
			english.Plural(rec.Count-1, "time", ""), cmd+" stop")
	}
}
