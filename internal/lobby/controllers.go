package lobby

import (
	"errors"
	"fmt"

	"github.com/stepline/stepline/internal/chat"
	"github.com/stepline/stepline/internal/core/auth"
	"github.com/stepline/stepline/internal/core/bytes"
	"github.com/stepline/stepline/internal/core/client"
	"github.com/stepline/stepline/internal/core/data"
	"github.com/stepline/stepline/internal/core/permission"
	"github.com/stepline/stepline/internal/packets"
)

// serverProtocolVersion is reported to clients in the welcome packet.
const serverProtocolVersion = 5

// handleHello records the client's protocol version and answers with the
// server's identity and message of the day.
func (s *Server) handleHello(ctx *Context) error {
	var pkt packets.Hello
	bytes.StructFromBytes(ctx.Packet, &pkt)

	ctx.Client.SetVersion(int(pkt.Version))
	s.Logger.Infof("client %s connected with %s (protocol %d)",
		ctx.Client.IPAddr(), packets.String(pkt.Name[:]), pkt.Version)

	welcome := &packets.Welcome{
		Header:  packets.Header{Type: packets.WelcomeType},
		Version: serverProtocolVersion,
	}
	packets.CopyString(welcome.Name[:], s.Config.Server.Name)
	packets.CopyString(welcome.Motd[:], s.Config.Server.Motd)
	return ctx.Client.Send(welcome)
}

// handleLogin authenticates one player profile on the connection.
func (s *Server) handleLogin(ctx *Context) error {
	var pkt packets.Login
	bytes.StructFromBytes(ctx.Packet, &pkt)

	name := packets.String(pkt.Name[:])
	password := packets.String(pkt.Password[:])

	user, err := auth.VerifyOrCreate(s.DB, name, password, s.Config.Server.AllowUserCreation)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrUserCreationDisabled) {
			return s.sendLoginResponse(ctx.Client, false, s.titler.String(err.Error()))
		}
		return fmt.Errorf("authenticating %s: %w", name, err)
	}

	user.Online = true
	user.LastIP = ctx.Client.IPAddr()
	user.ProtocolVersion = ctx.Client.Version()
	user.Status = data.StatusRoomSelection
	if err := data.SaveUser(s.DB, user); err != nil {
		return fmt.Errorf("saving user %s on login: %w", name, err)
	}

	ctx.Client.AddUser(user.ID)
	s.Logger.Infof("user %s logged in from %s (slot %d)", user.Name, ctx.Client.IPAddr(), pkt.Slot)

	if err := s.sendLoginResponse(ctx.Client, true, "Welcome to "+s.Config.Server.Name); err != nil {
		return err
	}
	if s.Config.Server.Motd != "" {
		if err := s.sendChat(ctx.Client, s.Config.Server.Motd); err != nil {
			return err
		}
	}

	s.notifyFriends(user, "is now online")
	s.refreshLobby()
	return nil
}

func (s *Server) sendLoginResponse(c *client.Client, approved bool, message string) error {
	pkt := &packets.LoginResponse{Header: packets.Header{Type: packets.LoginResponseType}}
	if approved {
		pkt.Approved = 1
	}
	packets.CopyString(pkt.Message[:], message)
	return c.Send(pkt)
}

// handleScreenStatus tracks the client's progress through the game UI.
func (s *Server) handleScreenStatus(ctx *Context) error {
	var pkt packets.ScreenStatus
	bytes.StructFromBytes(ctx.Packet, &pkt)

	status := pkt.Status
	if status > data.StatusEvaluation {
		status = data.StatusUnknown
	}

	for _, user := range ctx.Users {
		user.Status = status
		if err := data.SaveUser(s.DB, user); err != nil {
			return fmt.Errorf("saving status for %s: %w", user.Name, err)
		}
	}
	return nil
}

// handleEnterRoom joins or leaves a room by name.
func (s *Server) handleEnterRoom(ctx *Context) error {
	var pkt packets.EnterRoom
	bytes.StructFromBytes(ctx.Packet, &pkt)

	if pkt.Enter == 0 {
		return s.leaveRoom(ctx)
	}

	name := packets.String(pkt.Name[:])
	password := packets.String(pkt.Password[:])

	room, err := data.FindRoomByName(s.DB, name)
	if err != nil {
		return fmt.Errorf("looking up room %s: %w", name, err)
	}

	if room == nil {
		if !s.evaluator.Can(permission.CreateRoom, ctx.User(), 0) {
			return s.sendChat(ctx.Client, "You do not have permission to create a room")
		}
		room, _, err = data.FindOrCreateRoom(s.DB, name, password, defaultRoomCapacity)
		if err != nil {
			return fmt.Errorf("creating room %s: %w", name, err)
		}
	} else {
		if room.Password != "" && room.Password != password {
			return s.sendChat(ctx.Client, "Wrong password for room "+chat.WithColor(room.Name))
		}
		members, err := data.OnlineUsersInRoom(s.DB, room.ID)
		if err != nil {
			return fmt.Errorf("counting members of %s: %w", room.Name, err)
		}
		if len(members)+len(ctx.Users) > room.MaxUsers {
			return s.sendChat(ctx.Client, "Room "+chat.WithColor(room.Name)+" is full")
		}
	}

	for _, user := range ctx.Users {
		user.RoomID = &room.ID
		user.Status = data.StatusMusicSelection
		if err := data.SaveUser(s.DB, user); err != nil {
			return fmt.Errorf("saving room membership for %s: %w", user.Name, err)
		}
	}
	ctx.Client.SetRoom(room.ID)

	s.sendChatToRoom(room.ID, chat.ColoredName(ctx.User())+" joined the room")
	s.refreshLobby()
	return nil
}

func (s *Server) leaveRoom(ctx *Context) error {
	roomID := ctx.Client.Room()
	if roomID == 0 {
		return nil
	}

	for _, user := range ctx.Users {
		user.RoomID = nil
		user.Status = data.StatusRoomSelection
		if err := data.SaveUser(s.DB, user); err != nil {
			return fmt.Errorf("saving room departure for %s: %w", user.Name, err)
		}
	}
	ctx.Client.SetRoom(0)

	s.cleanUpRoom(roomID)
	s.refreshLobby()
	return nil
}

// handleChat funnels a line of text input through the chat resource and
// delivers the responses to the sender.
func (s *Server) handleChat(ctx *Context) error {
	var pkt packets.Chat
	bytes.StructFromBytes(ctx.Packet, &pkt)

	responses, err := s.chat.Post(s.chatContext(ctx), packets.String(pkt.Message[:]), nil)
	if err != nil {
		// Internal fault: surface a readable line to the sender and
		// propagate so the connection worker can log it.
		_ = s.sendChat(ctx.Client, chat.WithColor(s.titler.String("an internal error occurred")))
		return fmt.Errorf("chat input from %s: %w", ctx.Client.IPAddr(), err)
	}

	for _, line := range responses {
		if err := s.sendChat(ctx.Client, line); err != nil {
			return err
		}
	}
	return nil
}

// handleGameOver returns the room to idle once its song finishes.
func (s *Server) handleGameOver(ctx *Context) error {
	if ctx.Room == nil {
		return nil
	}

	finished, err := s.finishGame(ctx.Room.ID)
	if err != nil {
		return err
	}
	if finished {
		s.refreshLobby()
	}
	return nil
}

// finishGame performs the in-progress to idle transition under the room
// lock, reporting whether this call completed it.
func (s *Server) finishGame(roomID uint64) (bool, error) {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := data.FindRoomByID(s.DB, roomID)
	if err != nil || room == nil {
		return false, err
	}
	if room.Status != data.RoomStatusPlaying {
		// Another member's game-over already completed the transition.
		return false, nil
	}

	songID := room.ActiveSongID
	room.Status = data.RoomStatusIdle
	room.InGame = false
	room.ActiveSongID = nil
	room.ActiveSongHash = ""
	if err := data.SaveRoom(s.DB, room); err != nil {
		return false, fmt.Errorf("saving room %s after game: %w", room.Name, err)
	}

	if songID != nil {
		song, err := data.FindSongByID(s.DB, *songID)
		if err != nil {
			return false, err
		}
		if song != nil {
			song.TimePlayed++
			if err := data.SaveSong(s.DB, song); err != nil {
				return false, fmt.Errorf("saving play count for %s: %w", song.FullName(), err)
			}
			s.songCache.SetDefault(songCacheKey(song.Title, song.Subtitle, song.Artist), song)
		}
	}

	return true, nil
}
