// Package lobby implements the game server backend: packet dispatch,
// room/game orchestration, and the chat surface.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/stepline/stepline/internal/chat"
	"github.com/stepline/stepline/internal/core"
	"github.com/stepline/stepline/internal/core/bytes"
	"github.com/stepline/stepline/internal/core/client"
	"github.com/stepline/stepline/internal/core/data"
	"github.com/stepline/stepline/internal/core/permission"
	"github.com/stepline/stepline/internal/packets"
)

// Server is the lobby backend. One instance serves every connection; all
// shared state it guards must assume fully concurrent handler invocations.
type Server struct {
	Name   string
	Config *core.Config
	Logger *logrus.Logger
	DB     *gorm.DB
	// Policy overrides the capability grant rules. Nil selects the default.
	Policy permission.Policy

	clients     *clientList
	evaluator   *permission.Evaluator
	chat        *chat.Resource
	songCache   *cache.Cache
	titler      cases.Caser
	controllers map[uint16]controllerEntry

	roomLocks struct {
		sync.Mutex
		locks map[uint64]*sync.Mutex
	}
}

// controllerEntry binds a packet type to its controller. The table is built
// once during Init and read-only afterwards.
type controllerEntry struct {
	requireLogin bool
	handle       func(*Context) error
}

// Context carries the state handed to a controller for one packet.
type Context struct {
	Client *client.Client
	Packet []byte
	// Users holds the profiles authenticated on the connection.
	Users []*data.User
	// Room is nil while the connection is in the lobby.
	Room *data.Room
}

// User returns the connection's primary profile, or nil.
func (ctx *Context) User() *data.User {
	if len(ctx.Users) == 0 {
		return nil
	}
	return ctx.Users[0]
}

func (s *Server) Identifier() string {
	return s.Name
}

func (s *Server) Init(ctx context.Context) error {
	if s.DB == nil {
		return errors.New("lobby: no database handle")
	}

	s.clients = &clientList{}
	s.songCache = cache.New(10*time.Minute, 30*time.Minute)
	s.evaluator = permission.NewEvaluator(s.Policy)
	s.chat = &chat.Resource{Registry: chat.DefaultRegistry()}
	s.titler = cases.Title(language.English)
	s.roomLocks.locks = make(map[uint64]*sync.Mutex)

	s.controllers = map[uint16]controllerEntry{
		packets.HelloType:        {handle: s.handleHello},
		packets.LoginType:        {handle: s.handleLogin},
		packets.ScreenStatusType: {requireLogin: true, handle: s.handleScreenStatus},
		packets.EnterRoomType:    {requireLogin: true, handle: s.handleEnterRoom},
		packets.ChatType:         {requireLogin: true, handle: s.handleChat},
		packets.SongRequestType:  {requireLogin: true, handle: s.handleSongRequest},
		packets.GameOverType:     {requireLogin: true, handle: s.handleGameOver},
	}

	return nil
}

func (s *Server) SetUpClient(c *client.Client) {
	c.Debug = s.Config.Debugging.PacketLoggingEnabled
	s.clients.add(c)
}

// Handshake is a no-op; the client speaks first with its hello packet.
func (s *Server) Handshake(c *client.Client) error {
	return nil
}

// Handle routes an inbound packet to the controller bound to its type.
// Unknown packet types are ignored; packets requiring a login are dropped
// when the connection has none.
func (s *Server) Handle(ctx context.Context, c *client.Client, raw []byte) error {
	var header packets.Header
	bytes.StructFromBytes(raw[:packets.HeaderSize], &header)

	entry, ok := s.controllers[header.Type]
	if !ok {
		s.Logger.Debugf("ignoring unknown packet %02x from %s", header.Type, c.IPAddr())
		return nil
	}

	userIDs := c.Users()
	if entry.requireLogin && len(userIDs) == 0 {
		s.Logger.Debugf("dropping packet %02x from unauthenticated client %s", header.Type, c.IPAddr())
		return nil
	}

	hctx := &Context{Client: c, Packet: raw}

	var err error
	if hctx.Users, err = data.FindUsersByIDs(s.DB, userIDs); err != nil {
		return fmt.Errorf("loading users for %s: %w", c.IPAddr(), err)
	}
	if roomID := c.Room(); roomID != 0 {
		if hctx.Room, err = data.FindRoomByID(s.DB, roomID); err != nil {
			return fmt.Errorf("loading room %d: %w", roomID, err)
		}
	}

	return entry.handle(hctx)
}

// Disconnect flips the connection's profiles offline and cleans up its room
// membership. Called exactly once per connection by the frontend.
func (s *Server) Disconnect(c *client.Client) {
	s.clients.remove(c)

	users, err := data.FindUsersByIDs(s.DB, c.Users())
	if err != nil {
		s.Logger.Errorf("error loading users for disconnecting client %s: %v", c.IPAddr(), err)
		return
	}

	for _, user := range users {
		user.Online = false
		user.RoomID = nil
		user.Status = data.StatusUnknown
		if err := data.SaveUser(s.DB, user); err != nil {
			s.Logger.Errorf("error saving user %s on disconnect: %v", user.Name, err)
			continue
		}
		s.notifyFriends(user, "is now offline")
	}

	if roomID := c.Room(); roomID != 0 {
		s.cleanUpRoom(roomID)
	}

	s.refreshLobby()
}

// lockRoom acquires the exclusive lock serializing state transitions for a
// room and returns the function releasing it. It must not be held across a
// client send.
func (s *Server) lockRoom(roomID uint64) (unlock func()) {
	s.roomLocks.Lock()
	mu, ok := s.roomLocks.locks[roomID]
	if !ok {
		mu = &sync.Mutex{}
		s.roomLocks.locks[roomID] = mu
	}
	s.roomLocks.Unlock()

	mu.Lock()
	return mu.Unlock
}

// chatContext adapts a controller context for the chat resource.
func (s *Server) chatContext(ctx *Context) *chat.Context {
	return &chat.Context{
		DB:          s.DB,
		Client:      ctx.Client,
		Users:       ctx.Users,
		Room:        ctx.Room,
		Server:      s,
		Permissions: s.evaluator,
		Logger:      s.Logger,
	}
}

// ClientForUser implements chat.Transport.
func (s *Server) ClientForUser(userID uint64) *client.Client {
	return s.clients.forUser(userID)
}

// ClientsInRoom implements chat.Transport.
func (s *Server) ClientsInRoom(roomID uint64) []*client.Client {
	return s.clients.forRoom(roomID)
}

// RoomlessClients implements chat.Transport.
func (s *Server) RoomlessClients() []*client.Client {
	return s.clients.roomless()
}

// Capacity implements chat.Transport.
func (s *Server) Capacity() int {
	return s.Config.Server.MaxUsers
}
