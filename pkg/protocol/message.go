package protocol

import (
	"strings"
	"unicode"
)

// CommandPrefix marks a frame as a command invocation.
const CommandPrefix = '/'

const (
	// LabelServer prefixes notices broadcast to every connection.
	LabelServer = "Server"
	// LabelSystem prefixes replies sent only to the caller.
	LabelSystem = "System"
)

// Kind identifies what a client frame asks the server to do.
type Kind int

const (
	KindChat Kind = iota
	KindHelp
	KindName
	KindWhoAmI
	KindUnknown
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindChat:
		return "CHAT"
	case KindHelp:
		return "HELP"
	case KindName:
		return "NAME"
	case KindWhoAmI:
		return "WHOAMI"
	default:
		return "UNKNOWN"
	}
}

// Message is a parsed client frame.
//
// Text holds the chat body for KindChat, the requested name for KindName
// (possibly empty), and the unrecognized command name for KindUnknown.
type Message struct {
	Kind Kind
	Text string
}

// Command describes a recognized command for help output.
type Command struct {
	Name        string
	Usage       string
	Description string
}

// Commands lists every recognized command in help order.
var Commands = []Command{
	{Name: "help", Description: "Show this help"},
	{Name: "name", Usage: "<nickname>", Description: "Change your nickname"},
	{Name: "whoami", Description: "Show your current name"},
}

// Parse classifies a decoded frame. A frame starting with CommandPrefix is
// split on the first run of whitespace into a command name and its argument.
func Parse(frame string) Message {
	if frame == "" || frame[0] != CommandPrefix {
		return Message{Kind: KindChat, Text: frame}
	}

	rest := frame[1:]
	name, arg := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		name = rest[:i]
		arg = strings.TrimSpace(rest[i:])
	}

	switch name {
	case "help":
		return Message{Kind: KindHelp}
	case "name":
		return Message{Kind: KindName, Text: arg}
	case "whoami":
		return Message{Kind: KindWhoAmI}
	default:
		return Message{Kind: KindUnknown, Text: name}
	}
}

// HelpText joins every command and its description with " | ".
func HelpText() string {
	parts := make([]string, 0, len(Commands))
	for _, c := range Commands {
		usage := string(CommandPrefix) + c.Name
		if c.Usage != "" {
			usage += " " + c.Usage
		}
		parts = append(parts, usage+" - "+c.Description)
	}
	return strings.Join(parts, " | ")
}
