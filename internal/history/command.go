package history

import "strings"

// Prefix marks a message addressed to the bot.
const Prefix = "!chaz"

// commandMarker starts any bot command, regardless of the bot addressed.
const commandMarker = "!"

// reserved is the full set of commands the bot handles itself. Reserved
// commands are dropped from context; anything else carrying the prefix is
// kept with the prefix stripped.
var reserved = map[string]bool{
	"help":   true,
	"party":  true,
	"send":   true,
	"list":   true,
	"rename": true,
	"print":  true,
	"model":  true,
	"clear":  true,
}

// IsCommand reports whether the text is command-marked. A doubled marker
// escapes to a literal line, even if the remainder looks like a command.
func IsCommand(text string) bool {
	return strings.HasPrefix(text, commandMarker) &&
		!strings.HasPrefix(text, commandMarker+commandMarker)
}

// ReservedCommand reports whether name is one of the bot's own commands.
func ReservedCommand(name string) bool {
	return reserved[strings.ToLower(name)]
}
