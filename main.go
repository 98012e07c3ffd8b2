package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"hornbot/internal/bot"
	"hornbot/internal/config"
	"hornbot/internal/hunter"
	"hornbot/internal/lookup"
	"hornbot/internal/netutil"
	"hornbot/internal/reminder"
	"hornbot/internal/storage"
	"hornbot/internal/timer"
)

var (
	settingsPath string
	logLevel     string
)

func main() {
	app := cli.App{
		Name:     "hornbot",
		HelpName: "hornbot",
		Usage:    "a discord bot that watches the game clock so you do not have to",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:        "settings, s",
				Usage:       "path to the settings file",
				Value:       "settings.yaml",
				EnvVar:      "HORNBOT_SETTINGS",
				Destination: &settingsPath,
			},
			cli.StringFlag{
				Name:        "log-level, l",
				Usage:       "log level (trace, debug, info, warn, error)",
				Value:       "info",
				EnvVar:      "HORNBOT_LOG_LEVEL",
				Destination: &logLevel,
			},
		},
		Action:      run,
		HideVersion: true,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Printf("hornbot: %s\n", err.Error())
		os.Exit(1)
	}
}

func run(*cli.Context) error {

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("bad log level %q", logLevel)
	}
	zerolog.SetGlobalLevel(level)

	// Settings are the one thing the bot cannot start without
	settings, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("settings %s: %w", settingsPath, err)
	}

	store, err := storage.New(afero.NewOsFs(), settings.Data.Dir)
	if err != nil {
		return fmt.Errorf("preparing data directory: %w", err)
	}

	// Timers come from their seed file. A missing or broken file leaves
	// an empty registry and the bot still runs.
	seeds, err := timer.LoadSeeds(settings.Data.TimersFile)
	if err != nil {
		log.Warn().Err(err).Msg("No timer seeds loaded, starting with an empty registry")
	}
	registry := timer.NewRegistry(seeds)
	log.Info().Msgf("Loaded %d timers", len(registry.Timers()))

	reminders := reminder.NewStore()
	var records []reminder.Reminder
	switch err := store.Load("reminders", &records); {
	case err == nil:
		reminders.Restore(records)
		log.Info().Msgf("Restored %d reminders", reminders.Len())
	case !errors.Is(err, storage.ErrNotFound):
		log.Warn().Err(err).Msg("Could not load reminders, starting empty")
	}

	tracker := hunter.NewTracker()
	var state hunter.State
	switch err := store.Load("hunters", &state); {
	case err == nil:
		tracker.Restore(state, time.Now())
	case !errors.Is(err, storage.ErrNotFound):
		log.Warn().Err(err).Msg("Could not load the hunter state, starting unknown")
	}

	nicks := lookup.NewNicknames()
	var tables map[string]map[string]string
	switch err := store.Load("nicknames", &tables); {
	case err == nil:
		nicks.Restore(tables)
		log.Info().Msgf("Restored %d nicknames", nicks.Len())
	case !errors.Is(err, storage.ErrNotFound):
		log.Warn().Err(err).Msg("Could not load nicknames, starting empty")
	}

	header := map[string]string{}
	if settings.Lookup.UserAgent != "" {
		header["User-Agent"] = settings.Lookup.UserAgent
	}
	proxy := netutil.NewProxy(header, settings.Restrictions())
	client := lookup.NewClient(settings.Lookup.Config, proxy, nicks)

	return bot.CreateBot(settings, registry, reminders, tracker, nicks, client, proxy, store).Run()
}
