package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hornbot/internal/lookup"
	"hornbot/internal/netutil"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "90s" or "24h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration value.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Settings is everything the bot needs to run, read from one YAML file at
// startup. A file that cannot be read or parsed is fatal; everything else
// the bot loads later degrades gracefully.
type Settings struct {
	Discord DiscordSettings `yaml:"discord"`
	Data    DataSettings    `yaml:"data"`
	Lookup  LookupSettings  `yaml:"lookup"`
	Cadence CadenceSettings `yaml:"cadence"`
}

// DiscordSettings configures the chat connection.
type DiscordSettings struct {
	// Token is the bot token. Required.
	Token string `yaml:"token"`

	// Prefix is the word that addresses the bot in a channel.
	Prefix string `yaml:"prefix"`

	// AnnounceChannels receive timer announcements.
	AnnounceChannels []string `yaml:"announce_channels"`
}

// DataSettings configures where state lives on disk.
type DataSettings struct {
	// Dir holds the persisted datasets (reminders, hunters, nicknames).
	Dir string `yaml:"dir"`

	// TimersFile is the JSONC file with the timer seed records.
	TimersFile string `yaml:"timers_file"`
}

// LookupSettings configures the external data services.
type LookupSettings struct {
	lookup.Config `yaml:",inline"`

	// NicknamesURL serves the community nickname CSV.
	NicknamesURL string `yaml:"nicknames_url"`

	// UserAgent is sent with every outgoing lookup request.
	UserAgent string `yaml:"user_agent"`

	// Restrictions bound the outgoing request rate.
	Restrictions []RestrictionSettings `yaml:"restrictions"`
}

// RestrictionSettings is one rate limit: at most Requests per Window.
type RestrictionSettings struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// CadenceSettings are the periodic maintenance intervals.
type CadenceSettings struct {
	// MainCycle is how often the maintenance loop polls its executors.
	MainCycle Duration `yaml:"main_cycle"`

	// Save is how often the datasets are persisted.
	Save Duration `yaml:"save"`

	// Nicknames is how often the nickname tables are refreshed.
	Nicknames Duration `yaml:"nicknames"`

	// Hunter is how often the relic hunter location is re-checked while
	// unknown.
	Hunter Duration `yaml:"hunter"`
}

// Default returns the settings used as a base before loading the file, so
// every optional field has a workable value.
func Default() *Settings {
	return &Settings{
		Discord: DiscordSettings{
			Prefix: "horn",
		},
		Data: DataSettings{
			Dir:        "data",
			TimersFile: "config/timers.jsonc",
		},
		Lookup: LookupSettings{
			UserAgent: "hornbot",
			Restrictions: []RestrictionSettings{
				{Requests: 20, Window: Duration(time.Second)},
				{Requests: 100, Window: Duration(2 * time.Minute)},
			},
		},
		Cadence: CadenceSettings{
			MainCycle: Duration(30 * time.Second),
			Save:      Duration(10 * time.Minute),
			Nicknames: Duration(24 * time.Hour),
			Hunter:    Duration(time.Hour),
		},
	}
}

// Load reads the settings file over the defaults.
func Load(path string) (*Settings, error) {
	settings := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return settings, nil
}

// Validate checks the settings for errors.
func (s *Settings) Validate() error {
	var errs []error

	if s.Discord.Token == "" {
		errs = append(errs, fmt.Errorf("discord.token is required"))
	}
	if s.Discord.Prefix == "" {
		errs = append(errs, fmt.Errorf("discord.prefix is required"))
	}
	if s.Data.Dir == "" {
		errs = append(errs, fmt.Errorf("data.dir is required"))
	}
	if s.Data.TimersFile == "" {
		errs = append(errs, fmt.Errorf("data.timers_file is required"))
	}
	if s.Cadence.MainCycle.Std() <= 0 {
		errs = append(errs, fmt.Errorf("cadence.main_cycle must be positive"))
	}
	if s.Cadence.Save.Std() <= 0 {
		errs = append(errs, fmt.Errorf("cadence.save must be positive"))
	}
	if s.Cadence.Nicknames.Std() <= 0 {
		errs = append(errs, fmt.Errorf("cadence.nicknames must be positive"))
	}
	if s.Cadence.Hunter.Std() <= 0 {
		errs = append(errs, fmt.Errorf("cadence.hunter must be positive"))
	}
	for i, r := range s.Lookup.Restrictions {
		if r.Requests <= 0 || r.Window.Std() <= 0 {
			errs = append(errs, fmt.Errorf("lookup.restrictions[%d] must have positive requests and window", i))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Restrictions converts the configured rate limits for the proxy.
func (s *Settings) Restrictions() []netutil.Restriction {
	out := make([]netutil.Restriction, 0, len(s.Lookup.Restrictions))
	for _, r := range s.Lookup.Restrictions {
		out = append(out, netutil.Restriction{Requests: r.Requests, Window: r.Window.Std()})
	}
	return out
}
