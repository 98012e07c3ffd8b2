package bot

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"hornbot/internal/config"
	"hornbot/internal/dispatch"
	"hornbot/internal/hunter"
	"hornbot/internal/lookup"
	"hornbot/internal/netutil"
	"hornbot/internal/reminder"
	"hornbot/internal/schedule"
	"hornbot/internal/storage"
	"hornbot/internal/timer"
	"hornbot/internal/timeutil"
)

// How long the orderly shutdown path may take before the process exits
// forcibly.
const shutdownGrace = 10 * time.Second

// Default reminder quota when the user names an area but no count.
const defaultReminderCount = 1

const defaultScheduleHours = 24
const maxScheduleHours = 168

type Bot struct {
	settings  *config.Settings
	registry  *timer.Registry
	reminders *reminder.Store
	tracker   *hunter.Tracker
	nicks     *lookup.Nicknames
	lookup    *lookup.Client
	proxy     *netutil.Proxy
	store     *storage.Store

	session    *discordgo.Session
	scheduler  *schedule.Scheduler
	dispatcher *dispatch.Dispatcher
	executors  []*timeutil.Executor
}

func CreateBot(settings *config.Settings, registry *timer.Registry, reminders *reminder.Store, tracker *hunter.Tracker, nicks *lookup.Nicknames, client *lookup.Client, proxy *netutil.Proxy, store *storage.Store) *Bot {

	bot := Bot{
		settings:  settings,
		registry:  registry,
		reminders: reminders,
		tracker:   tracker,
		nicks:     nicks,
		lookup:    client,
		proxy:     proxy,
		store:     store,
	}

	// Periodic maintenance, polled from the main cycle
	bot.executors = []*timeutil.Executor{
		timeutil.NewExecutor(settings.Cadence.Save.Std(), bot.saveData),
		timeutil.NewExecutor(settings.Cadence.Nicknames.Std(), bot.refreshNicknames),
		timeutil.NewExecutor(settings.Cadence.Hunter.Std(), bot.refreshHunter),
	}

	return &bot
}

func (bot *Bot) Run() error {

	// Create session
	discord, err := discordgo.New("Bot " + bot.settings.Discord.Token)
	if err != nil {
		return fmt.Errorf("could not create discord session: %w", err)
	}
	discord.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	bot.session = discord

	// Event handler
	discord.AddHandler(bot.Receive)

	// Open session
	if err := discord.Open(); err != nil {
		return fmt.Errorf("could not open discord session: %w", err)
	}
	log.Info().Msg("Discord session open")

	// Firings flow through the dispatcher, which announces to channels
	// and messages users with matching reminders
	bot.dispatcher = dispatch.New(bot.reminders, bot, bot, bot.settings.Discord.Prefix)
	bot.scheduler = schedule.New(func(firing schedule.Firing) { go bot.dispatcher.HandleFiring(firing) })
	bot.armTimers()

	// The relic hunter forgets its location at every UTC midnight
	bot.scheduler.ArmTask("relic_hunter_reset", timeutil.NextUTCMidnight, func(at time.Time) {
		log.Info().Msg("Daily reset, the relic hunter is on the move")
		bot.tracker.Reset(at)
	})

	// First maintenance pass right away, then once per main cycle
	bot.poll(time.Now())
	ticker := time.NewTicker(bot.settings.Cadence.MainCycle.Std())

	// Keep the bot running until an OS signal asks otherwise
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	for {
		select {
		case now := <-ticker.C:
			bot.poll(now)
		case sig := <-signals:
			log.Info().Msgf("Received signal %s, shutting down", sig)
			bot.shutdown(ticker)
			return nil
		}
	}
}

// armTimers schedules every non-silent timer and points its announcements
// at the configured channels.
func (bot *Bot) armTimers() {

	channels := bot.settings.Discord.AnnounceChannels
	armed := 0
	for _, t := range bot.registry.Timers() {
		if !bot.scheduler.ArmTimer(t) {
			continue
		}
		bot.dispatcher.RegisterDestinations(t.Key(), channels)
		armed++
	}
	log.Info().Msgf("Armed %d of %d timers", armed, len(bot.registry.Timers()))
}

func (bot *Bot) poll(now time.Time) {
	for _, executor := range bot.executors {
		executor.Execute(now)
	}
}

// shutdown runs the orderly exit path: persist state, stop the periodic
// maintenance, clear every timer and task wake-up, close the session. A
// watchdog force-exits the process if any of that wedges.
func (bot *Bot) shutdown(ticker *time.Ticker) {

	watchdog := time.AfterFunc(shutdownGrace, func() {
		log.Error().Msgf("Shutdown did not complete within %s, forcing exit", shutdownGrace)
		os.Exit(1)
	})

	bot.saveData()
	ticker.Stop()
	bot.scheduler.Stop()
	if err := bot.session.Close(); err != nil {
		log.Warn().Err(err).Msg("Could not close the discord session cleanly")
	}

	watchdog.Stop()
}

// saveData persists every mutable dataset. Failed writes are retried on
// the next cycle, never fatal.
func (bot *Bot) saveData() {

	if pruned := bot.reminders.Prune(); pruned > 0 {
		log.Info().Msgf("Pruned %d expired reminders", pruned)
	}
	if err := bot.store.Save("reminders", bot.reminders.Snapshot()); err != nil {
		log.Warn().Err(err).Msg("Could not save reminders")
	}
	if err := bot.store.Save("hunters", bot.tracker.Snapshot()); err != nil {
		log.Warn().Err(err).Msg("Could not save the hunter state")
	}
	if err := bot.store.Save("nicknames", bot.nicks.Snapshot()); err != nil {
		log.Warn().Err(err).Msg("Could not save the nickname tables")
	}
}

func (bot *Bot) refreshNicknames() {
	if url := bot.settings.Lookup.NicknamesURL; url != "" {
		bot.nicks.Refresh(bot.proxy, url)
	}
}

// refreshHunter polls the lookup services for the relic hunter while its
// location is unknown. Once found, the location holds until the daily
// reset.
func (bot *Bot) refreshHunter() {

	if bot.tracker.Known() {
		return
	}
	if location, source := bot.lookup.HunterLocation(); location != "" {
		bot.tracker.Set(location, source, time.Now())
	}
}

// Notify implements dispatch.Notifier by direct message.
func (bot *Bot) Notify(user string, message string) error {

	channel, err := bot.session.UserChannelCreate(user)
	if err != nil {
		return fmt.Errorf("could not open a private channel with user %s: %w", user, err)
	}
	if _, err := bot.session.ChannelMessageSend(channel.ID, message); err != nil {
		return fmt.Errorf("could not message user %s: %w", user, err)
	}
	return nil
}

// Announce implements dispatch.Announcer.
func (bot *Bot) Announce(channel string, message string) error {

	if _, err := bot.session.ChannelMessageSend(channel, message); err != nil {
		return fmt.Errorf("could not announce to channel %s: %w", channel, err)
	}
	return nil
}

func (bot *Bot) Receive(discord *discordgo.Session, message *discordgo.MessageCreate) {

	// Reject my own messages
	if message.Author.ID == discord.State.User.ID {
		return
	}

	// Parse the input provided and call the appropriate handler
	parseResult := Parse(bot.settings.Discord.Prefix, message.Content)
	switch parseResult.parseid {
	case PARSEID_NO_BOT_PREFIX:
		return
	case PARSEID_OK:
		log.Info().Msgf("Command understood: %s", message.Content)
		var responses []Response
		switch parseResult.command {
		case COMMAND_NEXT:
			responses = bot.next(tokens(parseResult))
		case COMMAND_SCHEDULE:
			responses = bot.schedule(tokens(parseResult))
		case COMMAND_REMIND:
			responses = bot.remind(message.Author.ID, tokens(parseResult))
		case COMMAND_FIND:
			switch name := parseResult.arguments.(type) {
			default:
				panic(fmt.Sprintf("unexpected type of search term %T", name))
			case string:
				responses = bot.search(lookup.KindMouse, name)
			}
		case COMMAND_IFIND:
			switch name := parseResult.arguments.(type) {
			default:
				panic(fmt.Sprintf("unexpected type of search term %T", name))
			case string:
				responses = bot.search(lookup.KindItem, name)
			}
		case COMMAND_HUNTER:
			responses = bot.hunterStatus()
		case COMMAND_HELP:
			responses = HelpMessage(bot.settings.Discord.Prefix)
		default:
			panic(fmt.Sprintf("Command %d is not one of the possible ones", parseResult.command))
		}
		bot.sendResponses(discord, message.ChannelID, responses)
	default:
		// The input is invalid, so the parse result carries an error message
		errorMessage := parseResult.errorMessage
		log.Debug().Msgf("Wrong input %q: %s", message.Content, errorMessage)
		bot.sendResponses(discord, message.ChannelID, InputNotValid(errorMessage))
	}
}

func (bot *Bot) sendResponses(discord *discordgo.Session, channelId string, responses []Response) {
	for _, response := range responses {
		response.Send(channelId, discord)
	}
}

func tokens(parseResult ParseResult) []string {
	switch args := parseResult.arguments.(type) {
	default:
		panic(fmt.Sprintf("unexpected type of arguments %T", args))
	case nil:
		return nil
	case []string:
		return args
	}
}

func (bot *Bot) next(tokens []string) []Response {

	request := bot.registry.ResolveTokens(tokens)
	now := time.Now()
	t, at, ok := bot.registry.FindNext(now, request.Area, request.SubArea)
	if !ok {
		return NothingScheduled(request.Area)
	}
	return NextOccurrence(t, at, now)
}

func (bot *Bot) schedule(tokens []string) []Response {

	request := bot.registry.ResolveTokens(tokens)

	// The count slot doubles as the window size in hours
	hours := defaultScheduleHours
	if request.HasCount && request.Count > 0 {
		hours = request.Count
	}
	if hours > maxScheduleHours {
		hours = maxScheduleHours
	}

	now := time.Now()
	occurrences := bot.registry.FindUpcoming(now, request.Area, now.Add(time.Duration(hours)*time.Hour))
	if len(occurrences) == 0 {
		return NothingScheduled(request.Area)
	}
	return ScheduleMessage(occurrences, hours, now)
}

func (bot *Bot) remind(user string, tokens []string) []Response {

	// Bare "remind" lists what the user has
	if len(tokens) == 0 {
		return ReminderList(bot.reminders.List(user))
	}

	request := bot.registry.ResolveTokens(tokens)
	if request.Area == "" {
		return InputNotValid("I could not find a known area in your request")
	}

	count := defaultReminderCount
	if request.HasCount {
		count = request.Count
	}

	if count == reminder.Inactive {
		existed := bot.reminders.TurnOff(user, request.Area, request.SubArea)
		return ReminderStopped(request.Area, request.SubArea, existed)
	}

	updated := bot.reminders.Add(user, request.Area, request.SubArea, count)
	var next string
	if _, at, ok := bot.registry.FindNext(time.Now(), request.Area, request.SubArea); ok {
		next = timeutil.Remaining(time.Until(at))
	}
	return ReminderSet(request.Area, request.SubArea, count, updated, next)
}

// search answers find and ifind, trying the other kind before giving up.
func (bot *Bot) search(kind string, name string) []Response {

	rows := bot.findRows(kind, name)
	if len(rows) == 0 {
		other := lookup.KindItem
		if kind == lookup.KindItem {
			other = lookup.KindMouse
		}
		if rows = bot.findRows(other, name); len(rows) == 0 {
			return NothingFound(name)
		}
		log.Debug().Msgf("Search for %s %q matched as %s instead", kind, name, other)
		kind = other
	}

	link := bot.lookup.Shorten(bot.lookup.SearchURL(kind, name))
	return SearchResults(kind, name, rows, link)
}

func (bot *Bot) findRows(kind string, name string) []lookup.Row {
	if kind == lookup.KindItem {
		return bot.lookup.FindItem(name)
	}
	return bot.lookup.FindMouse(name)
}

// hunterStatus reports the tracked relic hunter location, asking the
// lookup services first when it is still unknown.
func (bot *Bot) hunterStatus() []Response {

	if !bot.tracker.Known() {
		if location, source := bot.lookup.HunterLocation(); location != "" {
			bot.tracker.Set(location, source, time.Now())
		}
	}
	return HunterMessage(bot.tracker.Current(), time.Now())
}
