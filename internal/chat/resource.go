package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/stepline/stepline/internal/core/client"
	"github.com/stepline/stepline/internal/core/permission"
	"github.com/stepline/stepline/internal/packets"
)

const commandPrefix = "/"

// Resource is the single entry point for text input on a connection. It
// decides between plain chat and command dispatch and enforces the chat
// permission before either.
type Resource struct {
	Registry *Registry
}

// ParseCommand splits a chat line into a command name and argument. ok is
// false for plain messages, including a bare prefix with no name.
func ParseCommand(message string) (name, arg string, ok bool) {
	if !strings.HasPrefix(message, commandPrefix) {
		return "", "", false
	}

	name, arg, _ = strings.Cut(message[len(commandPrefix):], " ")
	if name == "" {
		return "", "", false
	}

	return name, strings.TrimSpace(arg), true
}

// Post handles one line of chat input. Plain messages are broadcast to the
// sender's room, to every roomless user when the sender is roomless, or to
// target alone when given. Command input is dispatched through the registry.
// The returned strings are for the invoking connection only.
func (r *Resource) Post(ctx *Context, message string, target *client.Client) ([]string, error) {
	if !ctx.Permissions.Can(permission.Chat, ctx.User(), ctx.RoomID()) {
		return []string{"You are not authorized to post messages"}, nil
	}

	if name, arg, ok := ParseCommand(message); ok {
		return r.dispatch(ctx, name, arg)
	}

	line := fmt.Sprintf("%s: %s", ColoredName(ctx.User()), message)

	if target != nil {
		return nil, SendMessage(target, line)
	}

	var recipients []*client.Client
	if ctx.Room != nil {
		recipients = ctx.Server.ClientsInRoom(ctx.Room.ID)
	} else {
		recipients = ctx.Server.RoomlessClients()
	}

	// Broadcast is fire-and-forget per connection; one dead peer must not
	// block delivery to the rest.
	for _, recipient := range recipients {
		if err := SendMessage(recipient, line); err != nil && ctx.Logger != nil {
			ctx.Logger.Warnf("error delivering chat to %s: %v", recipient.IPAddr(), err)
		}
	}
	return nil, nil
}

func (r *Resource) dispatch(ctx *Context, name, arg string) ([]string, error) {
	cmd, ok := r.Registry.Lookup(name)
	if !ok {
		return []string{"Unknown command " + name}, nil
	}
	if !cmd.Authorized(ctx) {
		return []string{"Unauthorized command " + name}, nil
	}
	return cmd.Invoke(ctx, arg)
}

// SendMessage delivers one line of chat to a connection, prefixed with a
// timestamp when that connection has the toggle enabled.
func SendMessage(c *client.Client, line string) error {
	if c.ChatTimestamp() {
		line = time.Now().Format("[15:04] ") + line
	}

	pkt := &packets.ChatMessage{Header: packets.Header{Type: packets.ChatMessageType}}
	packets.CopyString(pkt.Message[:], line)
	return c.Send(pkt)
}
