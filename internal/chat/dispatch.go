package chat

import (
	"fmt"

	"github.com/omochice/caret-chat/pkg/protocol"
)

// Outcome is what the hub must do in response to one client frame.
// Empty fields mean nothing to do.
type Outcome struct {
	// Reply goes back to the calling connection only.
	Reply string
	// Notice is broadcast under protocol.LabelServer.
	Notice string
	// Chat is broadcast under the caller's display name.
	Chat string
	// Rename is the caller's new display name.
	Rename string
}

// Dispatch decides the outcome of msg sent by a connection named name.
func Dispatch(name string, msg protocol.Message) Outcome {
	switch msg.Kind {
	case protocol.KindChat:
		return Outcome{Chat: msg.Text}
	case protocol.KindHelp:
		return Outcome{Reply: protocol.HelpText()}
	case protocol.KindName:
		if msg.Text == "" {
			return Outcome{}
		}
		return Outcome{
			Rename: msg.Text,
			Notice: fmt.Sprintf("%s changed to %s", name, msg.Text),
		}
	case protocol.KindWhoAmI:
		return Outcome{Reply: "Your name is " + name}
	default:
		return Outcome{Reply: "Unknown command: " + msg.Text}
	}
}
