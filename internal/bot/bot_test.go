package bot

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"hornbot/internal/config"
	"hornbot/internal/hunter"
	"hornbot/internal/lookup"
	"hornbot/internal/netutil"
	"hornbot/internal/reminder"
	"hornbot/internal/storage"
	"hornbot/internal/timer"
)

func testSeeds() []timer.Seed {
	return []timer.Seed{
		{
			Area:           "fg",
			SubArea:        "open",
			Repeat:         "20h",
			Anchor:         "2026-01-01T00:00:00Z",
			Demand:         "The Forbidden Grove opens",
			AreaAliases:    []string{"grove"},
			SubAreaAliases: []string{"opens"},
		},
		{
			Area:    "fg",
			SubArea: "close",
			Repeat:  "20h",
			Anchor:  "2026-01-01T04:00:00Z",
			Demand:  "The Forbidden Grove closes",
		},
		{
			Area:   "cove",
			Repeat: "1h",
			Anchor: "2026-01-01T00:00:00Z",
			Demand: "The tide turns",
		},
	}
}

func newTestBot(t *testing.T, lookupConfig lookup.Config) *Bot {
	t.Helper()

	settings := config.Default()
	settings.Discord.Token = "token"

	store, err := storage.New(afero.NewMemMapFs(), "data")
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	nicks := lookup.NewNicknames()
	proxy := netutil.NewProxy(nil, nil)
	client := lookup.NewClient(lookupConfig, proxy, nicks)
	return CreateBot(settings, timer.NewRegistry(testSeeds()), reminder.NewStore(), hunter.NewTracker(), nicks, client, proxy, store)
}

func TestNextCommandResolvesAliases(t *testing.T) {

	bot := newTestBot(t, lookup.Config{})
	content := asString(t, bot.next([]string{"grove", "opens"}))
	if !strings.Contains(content, "The Forbidden Grove opens") {
		t.Fatalf("message %q does not name the grove opening", content)
	}
	if !strings.Contains(content, "(in ") {
		t.Fatalf("message %q misses the remaining time", content)
	}
}

func TestNextCommandWithEmptyRegistry(t *testing.T) {

	bot := newTestBot(t, lookup.Config{})
	bot.registry = timer.NewRegistry(nil)
	if content := asString(t, bot.next(nil)); !strings.Contains(content, "nothing on the schedule") {
		t.Fatalf("message = %q", content)
	}
}

func TestScheduleCommandClampsWindow(t *testing.T) {

	bot := newTestBot(t, lookup.Config{})
	embed := asEmbed(t, bot.schedule([]string{"cove", "500"}))
	if !strings.Contains(embed.Title, "168 hours") {
		t.Fatalf("window not clamped, title = %q", embed.Title)
	}
	if embed.Footer == nil {
		t.Fatal("an hourly timer over a week must overflow the display cap")
	}
}

func TestScheduleCommandDefaultWindow(t *testing.T) {

	bot := newTestBot(t, lookup.Config{})
	embed := asEmbed(t, bot.schedule(nil))
	if !strings.Contains(embed.Title, "24 hours") {
		t.Fatalf("title = %q, want the default 24 hour window", embed.Title)
	}
}

func TestRemindCommandLifecycle(t *testing.T) {

	bot := newTestBot(t, lookup.Config{})
	user := "u1"

	content := asString(t, bot.remind(user, []string{"fg", "open", "3"}))
	if !strings.Contains(content, "Reminder set") || !strings.Contains(content, "3 times") {
		t.Fatalf("create message = %q", content)
	}
	records := bot.reminders.List(user)
	if len(records) != 1 || records[0].Count != 3 {
		t.Fatalf("store after create: %+v", records)
	}

	// The same tuple via aliases updates in place
	content = asString(t, bot.remind(user, []string{"grove", "opens", "always"}))
	if !strings.Contains(content, "Reminder updated") || !strings.Contains(content, "every time") {
		t.Fatalf("update message = %q", content)
	}
	records = bot.reminders.List(user)
	if len(records) != 1 || records[0].Count != reminder.Unlimited {
		t.Fatalf("store after update: %+v", records)
	}

	embed := asEmbed(t, bot.remind(user, nil))
	if !strings.Contains(embed.Description, "**fg/open**: every time") {
		t.Fatalf("listing = %q", embed.Description)
	}

	content = asString(t, bot.remind(user, []string{"fg", "open", "stop"}))
	if !strings.Contains(content, "no more reminders for **fg/open**") {
		t.Fatalf("stop message = %q", content)
	}
	if records := bot.reminders.List(user); len(records) != 0 {
		t.Fatalf("active records after stop: %+v", records)
	}
}

func TestRemindCommandDefaultsToOneTime(t *testing.T) {

	bot := newTestBot(t, lookup.Config{})
	content := asString(t, bot.remind("u2", []string{"cove"}))
	if !strings.Contains(content, "1 time") {
		t.Fatalf("message = %q", content)
	}
	records := bot.reminders.List("u2")
	if len(records) != 1 || records[0].Count != 1 {
		t.Fatalf("store: %+v", records)
	}
}

func TestRemindCommandNeedsAnArea(t *testing.T) {

	bot := newTestBot(t, lookup.Config{})
	content := asString(t, bot.remind("u3", []string{"3"}))
	if !strings.HasPrefix(content, "Input not valid") {
		t.Fatalf("message = %q", content)
	}
	if bot.reminders.Len() != 0 {
		t.Fatalf("store has %d records, want none", bot.reminders.Len())
	}
}

func TestSearchFallsBackAcrossKinds(t *testing.T) {

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/mice":
			w.Write([]byte(`[]`))
		case "/items":
			w.Write([]byte(`[{"location":"Acolyte Realm","cheese":"Runic","rate":12.5,"total_hunts":40}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	bot := newTestBot(t, lookup.Config{
		MouseSearchURL: server.URL + "/mice?q=%s",
		ItemSearchURL:  server.URL + "/items?q=%s",
	})

	embed := asEmbed(t, bot.search(lookup.KindMouse, "rune"))
	if !strings.Contains(embed.Title, "item `rune`") {
		t.Fatalf("title = %q, want an item result", embed.Title)
	}
	if len(embed.Fields) != 1 || !strings.Contains(embed.Fields[0].Value, "/items?q=rune") {
		t.Fatalf("source link fields: %+v", embed.Fields)
	}
}

func TestSearchNothingAnywhere(t *testing.T) {

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	bot := newTestBot(t, lookup.Config{
		MouseSearchURL: server.URL + "/mice?q=%s",
		ItemSearchURL:  server.URL + "/items?q=%s",
	})

	if content := asString(t, bot.search(lookup.KindItem, "nothing")); !strings.Contains(content, "could not find anything") {
		t.Fatalf("message = %q", content)
	}
}

func TestHunterCommandLooksUpOnlyWhileUnknown(t *testing.T) {

	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte(`{"location":"Fort Rox"}`))
	}))
	defer server.Close()

	bot := newTestBot(t, lookup.Config{HunterHintURL: server.URL + "/hint"})

	content := asString(t, bot.hunterStatus())
	if !strings.Contains(content, "**Fort Rox**") {
		t.Fatalf("message = %q", content)
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Fatalf("lookup hit %d times, want 1", got)
	}

	// A second ask answers from the tracker
	content = asString(t, bot.hunterStatus())
	if !strings.Contains(content, "**Fort Rox**") {
		t.Fatalf("second message = %q", content)
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Fatalf("lookup hit %d times after the second ask, want still 1", got)
	}
}

func TestSaveDataPersistsDatasets(t *testing.T) {

	bot := newTestBot(t, lookup.Config{})
	bot.reminders.Add("u1", "fg", "open", 2)
	bot.reminders.Add("u1", "cove", "", 1)
	bot.reminders.TurnOff("u1", "cove", "")
	bot.tracker.Set("Fort Rox", hunter.SourceWebhook, time.Now())

	bot.saveData()

	var records []reminder.Reminder
	if err := bot.store.Load("reminders", &records); err != nil {
		t.Fatalf("loading reminders: %v", err)
	}
	if len(records) != 1 || records[0].Area != "fg" || records[0].Count != 2 {
		t.Fatalf("persisted reminders: %+v", records)
	}

	var state hunter.State
	if err := bot.store.Load("hunters", &state); err != nil {
		t.Fatalf("loading hunter state: %v", err)
	}
	if state.Location != "Fort Rox" || state.Source != hunter.SourceWebhook {
		t.Fatalf("persisted hunter state: %+v", state)
	}
}
