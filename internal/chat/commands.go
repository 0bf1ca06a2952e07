package chat

import (
	"fmt"

	"github.com/stepline/stepline/internal/core/data"
)

// maximum number of users listed by /users.
const userListingLimit = 20

// DefaultRegistry returns a registry holding the standard command set.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(
		&usersCommand{},
		&timestampCommand{},
		&friendNotifCommand{},
		&addFriendCommand{},
		&removeFriendCommand{},
		&ignoreCommand{},
		&unignoreCommand{},
		&friendListCommand{},
		&pmCommand{},
	)
	r.Register(&helpCommand{registry: r})
	return r
}

// helpCommand lists the available commands or describes one of them.
type helpCommand struct {
	loginRequired
	registry *Registry
}

func (c *helpCommand) Name() string { return "help" }
func (c *helpCommand) Help() string { return "Show help" }

func (c *helpCommand) Invoke(ctx *Context, arg string) ([]string, error) {
	if arg != "" {
		cmd, ok := c.registry.Lookup(arg)
		if !ok || !cmd.Authorized(ctx) {
			return []string{"Unknown command " + arg}, nil
		}
		return []string{fmt.Sprintf("/%s: %s", cmd.Name(), cmd.Help())}, nil
	}

	var response []string
	for _, cmd := range c.registry.Authorized(ctx) {
		response = append(response, fmt.Sprintf("/%s: %s", cmd.Name(), cmd.Help()))
	}
	return response, nil
}

// usersCommand lists the online users, scoped to the sender's room when they
// are in one.
type usersCommand struct {
	loginRequired
}

func (c *usersCommand) Name() string { return "users" }
func (c *usersCommand) Help() string { return "List users" }

func (c *usersCommand) Invoke(ctx *Context, arg string) ([]string, error) {
	var users []*data.User
	var capacity int
	var err error

	if ctx.Room != nil {
		users, err = data.OnlineUsersInRoom(ctx.DB, ctx.Room.ID)
		capacity = ctx.Room.MaxUsers
	} else {
		users, err = data.OnlineUsers(ctx.DB)
		capacity = ctx.Server.Capacity()
	}
	if err != nil {
		return nil, err
	}

	response := []string{fmt.Sprintf("%d/%d players online", len(users), capacity)}
	for i, user := range users {
		if i >= userListingLimit {
			break
		}
		response = append(response, fmt.Sprintf("%s (in %s)",
			ColoredName(user), data.StatusName(user.Status)))
	}
	return response, nil
}

// timestampCommand toggles the chat timestamp prefix for the connection and
// every profile logged in on it.
type timestampCommand struct {
	loginRequired
}

func (c *timestampCommand) Name() string { return "timestamp" }
func (c *timestampCommand) Help() string { return "Show timestamp" }

func (c *timestampCommand) Invoke(ctx *Context, arg string) ([]string, error) {
	enabled := ctx.Client.ToggleChatTimestamp()

	for _, user := range ctx.Users {
		user.ChatTimestamp = enabled
		if err := data.SaveUser(ctx.DB, user); err != nil {
			return nil, err
		}
	}

	if enabled {
		return []string{"Chat timestamp enabled"}, nil
	}
	return []string{"Chat timestamp disabled"}, nil
}

// friendNotifCommand toggles online/offline notifications for the user's
// friends.
type friendNotifCommand struct {
	loginRequired
}

func (c *friendNotifCommand) Name() string { return "friendnotif" }
func (c *friendNotifCommand) Help() string {
	return "Enable notifications whenever a friend gets on/off line. /friendnotif"
}

func (c *friendNotifCommand) Invoke(ctx *Context, arg string) ([]string, error) {
	var response []string
	for _, user := range ctx.Users {
		user.FriendNotifications = !user.FriendNotifications
		if err := data.SaveUser(ctx.DB, user); err != nil {
			return nil, err
		}
		if user.FriendNotifications {
			response = append(response, "Friend notifications enabled")
		} else {
			response = append(response, "Friend notifications disabled")
		}
	}
	return response, nil
}
