// Package chat implements the text-input funnel for a connection: plain
// messages are broadcast, slash-prefixed input is dispatched to registered
// commands.
package chat

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/stepline/stepline/internal/core/client"
	"github.com/stepline/stepline/internal/core/data"
	"github.com/stepline/stepline/internal/core/permission"
)

// Transport exposes the connection set to chat handlers. The lobby server
// implements it.
type Transport interface {
	// ClientForUser returns the connection on which a user is authenticated,
	// or nil if they are not connected.
	ClientForUser(userID uint64) *client.Client
	// ClientsInRoom returns every connection currently in a room.
	ClientsInRoom(roomID uint64) []*client.Client
	// RoomlessClients returns every connection not in any room.
	RoomlessClients() []*client.Client
	// Capacity returns the server-wide user limit.
	Capacity() int
}

// Context carries the state a command invocation may act on.
type Context struct {
	DB          *gorm.DB
	Client      *client.Client
	Users       []*data.User
	Room        *data.Room
	Server      Transport
	Permissions *permission.Evaluator
	Logger      *logrus.Logger
}

// User returns the connection's primary profile, or nil if none is logged in.
func (c *Context) User() *data.User {
	if len(c.Users) == 0 {
		return nil
	}
	return c.Users[0]
}

// RoomID returns the id of the context's room, or zero in the lobby.
func (c *Context) RoomID() uint64 {
	if c.Room == nil {
		return 0
	}
	return c.Room.ID
}

// Command is one chat command. Implementations are stateless; any state they
// act on arrives through the Context.
type Command interface {
	// Name is the token following the slash prefix.
	Name() string
	// Help is the one-line description shown by /help.
	Help() string
	// Authorized reports whether the invoking connection may run the command.
	Authorized(ctx *Context) bool
	// Invoke runs the command. The returned strings are delivered to the
	// invoking connection only; an error indicates an internal fault, not a
	// user-visible denial.
	Invoke(ctx *Context, arg string) ([]string, error)
}

// loginRequired is the authorization predicate shared by most commands.
type loginRequired struct{}

func (loginRequired) Authorized(ctx *Context) bool {
	return ctx.User() != nil
}
