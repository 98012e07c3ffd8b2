package bot

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	COMMAND_HELP     = iota
	COMMAND_NEXT     = iota
	COMMAND_SCHEDULE = iota
	COMMAND_REMIND   = iota
	COMMAND_FIND     = iota
	COMMAND_IFIND    = iota
	COMMAND_HUNTER   = iota
)

const (
	PARSEID_OK            = iota
	PARSEID_NO_BOT_PREFIX = iota
	PARSEID_NO_COMMAND    = iota
	PARSEID_NO_INPUT      = iota
)

var errorMessages map[int]string = map[int]string{
	PARSEID_NO_COMMAND: "No command provided",
	PARSEID_NO_INPUT:   "Command `%s` requires something to search for",
}

// The command words form a closed set; anything else falls back to help.
var commands map[string]int = map[string]int{
	"help":     COMMAND_HELP,
	"next":     COMMAND_NEXT,
	"schedule": COMMAND_SCHEDULE,
	"remind":   COMMAND_REMIND,
	"find":     COMMAND_FIND,
	"ifind":    COMMAND_IFIND,
	"hunter":   COMMAND_HUNTER,
}

type ParseResult struct {
	command      int
	parseid      int
	errorMessage string
	arguments    interface{}
}

func Parse(prefix string, message string) ParseResult {

	// The message has to start with the bot prefix, as a word of its own
	if !strings.HasPrefix(message, prefix) {
		return ParseResult{parseid: PARSEID_NO_BOT_PREFIX}
	}
	rest := message[len(prefix):]
	if rest != "" && !strings.ContainsRune(" \t\n", rune(rest[0])) {
		return ParseResult{parseid: PARSEID_NO_BOT_PREFIX}
	}

	// Get the command if present
	words := strings.Fields(rest)
	if len(words) == 0 {
		parseid := PARSEID_NO_COMMAND
		return ParseResult{command: COMMAND_HELP, parseid: parseid, errorMessage: errorMessages[parseid]}
	}
	commandString := strings.ToLower(words[0])
	words = words[1:]

	// Match the command
	command, ok := commands[commandString]
	if !ok {
		log.Debug().Msgf("Command %q not recognised, answering with the help", commandString)
		return ParseResult{command: COMMAND_HELP, parseid: PARSEID_OK}
	}

	switch command {
	case COMMAND_FIND, COMMAND_IFIND:
		// hornbot find <name>
		if len(words) == 0 {
			parseid := PARSEID_NO_INPUT
			return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString)}
		}
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: strings.Join(words, " ")}
	default:
		// The remaining commands take free-form tokens that only the
		// timer registry can interpret, so they pass through as-is
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: words}
	}
}
