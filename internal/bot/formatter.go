package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize/english"

	"hornbot/internal/hunter"
	"hornbot/internal/lookup"
	"hornbot/internal/reminder"
	"hornbot/internal/timer"
	"hornbot/internal/timeutil"
)

// Use "teal" color for the bot
const color int = 0x008080

// Display caps, so a single reply never floods a channel
const maxScheduleEntries int = 24
const maxSearchRows int = 8

// Occurrence times are always shown in game time, which is UTC
const clockFormat = "Mon 15:04 MST"

func InputNotValid(errorMessage string) []Response {

	return []Response{ResponseString{fmt.Sprintf("Input not valid: \n> %s", errorMessage)}}
}

func HelpMessage(prefix string) []Response {

	embed := discordgo.MessageEmbed{Title: "Commands available", Color: color}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s next [area]`", prefix),
		Value:  "Show the next event coming up, optionally only for the given area",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s schedule [area] [hours]`", prefix),
		Value:  "List the events of the next 24 hours, or of the given window",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s remind [area] [count|stop]`", prefix),
		Value:  "Get a private message when an event is coming up. Without arguments, list your reminders",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s find <mouse>`", prefix),
		Value:  "Look up where a mouse can be found",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s ifind <item>`", prefix),
		Value:  "Look up where an item drops",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s hunter`", prefix),
		Value:  "Show where the Relic Hunter was spotted today",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s help`", prefix),
		Value:  "Print the usage of the different commands",
		Inline: false,
	})
	return []Response{ResponseEmbed{embed}}
}

func NextOccurrence(t *timer.Timer, at time.Time, now time.Time) []Response {

	content := fmt.Sprintf("%s at %s (in %s)", timerLabel(t), at.UTC().Format(clockFormat), timeutil.Remaining(at.Sub(now)))
	return []Response{ResponseString{content}}
}

func NothingScheduled(area string) []Response {

	if area == "" {
		return []Response{ResponseString{"There is nothing on the schedule"}}
	}
	return []Response{ResponseString{fmt.Sprintf("There is nothing on the schedule for `%s`", area)}}
}

func ScheduleMessage(occurrences []timer.Occurrence, hours int, now time.Time) []Response {

	embed := discordgo.MessageEmbed{
		Title: fmt.Sprintf("Events in the next %s", english.Plural(hours, "hour", "")),
		Color: color,
	}

	shown := occurrences
	if len(shown) > maxScheduleEntries {
		shown = shown[:maxScheduleEntries]
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Showing the first %d of %d events", maxScheduleEntries, len(occurrences)),
		}
	}
	lines := make([]string, 0, len(shown))
	for _, occurrence := range shown {
		line := fmt.Sprintf("`%s` %s (in %s)",
			occurrence.At.UTC().Format(clockFormat), timerLabel(occurrence.Timer), timeutil.Remaining(occurrence.At.Sub(now)))
		lines = append(lines, line)
	}
	embed.Description = strings.Join(lines, "\n")
	return []Response{ResponseEmbed{embed}}
}

func ReminderList(records []reminder.Reminder) []Response {

	if len(records) == 0 {
		return []Response{ResponseString{"You have no reminders set"}}
	}
	embed := discordgo.MessageEmbed{Title: "Your reminders", Color: color}
	lines := make([]string, 0, len(records))
	for _, record := range records {
		quota := "every time"
		if record.Count != reminder.Unlimited {
			quota = fmt.Sprintf("%s left", english.Plural(record.Count, "time", ""))
		}
		lines = append(lines, fmt.Sprintf("**%s**: %s", reminderKey(record.Area, record.SubArea), quota))
	}
	embed.Description = strings.Join(lines, "\n")
	return []Response{ResponseEmbed{embed}}
}

func ReminderSet(area string, subArea string, count int, updated bool, next string) []Response {

	verb := "set"
	if updated {
		verb = "updated"
	}
	quota := "every time"
	if count != reminder.Unlimited {
		quota = english.Plural(count, "time", "")
	}
	content := fmt.Sprintf("Reminder %s for **%s**: %s", verb, reminderKey(area, subArea), quota)
	if next != "" {
		content += fmt.Sprintf(". Next up in %s", next)
	}
	return []Response{ResponseString{content}}
}

func ReminderStopped(area string, subArea string, existed bool) []Response {

	key := reminderKey(area, subArea)
	if !existed {
		return []Response{ResponseString{fmt.Sprintf("You had no reminder for **%s** anyway", key)}}
	}
	return []Response{ResponseString{fmt.Sprintf("Alright, no more reminders for **%s**", key)}}
}

func SearchResults(kind string, name string, rows []lookup.Row, link string) []Response {

	embed := discordgo.MessageEmbed{
		Title: fmt.Sprintf("Best locations for %s `%s`", kind, name),
		Color: color,
	}

	shown := rows
	if len(shown) > maxSearchRows {
		shown = shown[:maxSearchRows]
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Showing the best %d of %d locations", maxSearchRows, len(rows)),
		}
	}
	lines := make([]string, 0, len(shown))
	for _, row := range shown {
		place := row.Location
		if row.Stage != "" {
			place = fmt.Sprintf("%s (%s)", row.Location, row.Stage)
		}
		lines = append(lines, fmt.Sprintf("**%s** with %s: %.2f%% over %s",
			place, row.Cheese, row.Rate, english.Plural(row.Hunts, "hunt", "")))
	}
	embed.Description = strings.Join(lines, "\n")
	if link != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Source", Value: link, Inline: false})
	}
	return []Response{ResponseEmbed{embed}}
}

func NothingFound(name string) []Response {

	return []Response{ResponseString{fmt.Sprintf("I could not find anything for `%s`", name)}}
}

func HunterMessage(state hunter.State, now time.Time) []Response {

	if state.Location == hunter.Unknown {
		return []Response{ResponseString{"The Relic Hunter has not been spotted yet today"}}
	}
	content := fmt.Sprintf("The Relic Hunter is in **%s** (%s, seen %s)",
		state.Location, sourceLabel(state.Source), timeutil.Ago(state.LastSeen, now))
	return []Response{ResponseString{content}}
}

// timerLabel is the on-demand description of a timer, falling back to its
// key for seeds that carry no demand text.
func timerLabel(t *timer.Timer) string {
	if demand := t.Demand(); demand != "" {
		return demand
	}
	return fmt.Sprintf("**%s**", t.Key())
}

func reminderKey(area string, subArea string) string {
	if subArea == "" {
		return area
	}
	return area + "/" + subArea
}

func sourceLabel(source string) string {
	switch source {
	case hunter.SourceHint:
		return "from the daily hint"
	case hunter.SourceMap:
		return "from the community map"
	case hunter.SourceWebhook:
		return "reported live"
	default:
		return "unconfirmed"
	}
}
