package lobby

import (
	"fmt"

	"github.com/stepline/stepline/internal/chat"
	"github.com/stepline/stepline/internal/core/bytes"
	"github.com/stepline/stepline/internal/core/data"
	"github.com/stepline/stepline/internal/core/permission"
	"github.com/stepline/stepline/internal/packets"
)

const bestScoreLimit = 5

func songCacheKey(title, subtitle, artist string) string {
	return title + "\x00" + subtitle + "\x00" + artist
}

// findSong resolves a song reported by a client, consulting the in-memory
// cache before the database.
func (s *Server) findSong(title, subtitle, artist string) (*data.Song, error) {
	key := songCacheKey(title, subtitle, artist)
	if cached, ok := s.songCache.Get(key); ok {
		return cached.(*data.Song), nil
	}

	song, err := data.FindOrCreateSong(s.DB, title, subtitle, artist)
	if err != nil {
		return nil, err
	}
	s.songCache.SetDefault(key, song)
	return song, nil
}

// handleSongRequest routes the three client-side uses of the song request
// packet: reporting that a song is present, reporting that it is missing,
// and selecting a song on the wheel.
func (s *Server) handleSongRequest(ctx *Context) error {
	if ctx.Room == nil {
		return nil
	}

	var pkt packets.SongRequest
	if ctx.Client.Version() < packets.HashCapableVersion {
		var old packets.SongRequestNoHash
		bytes.StructFromBytes(ctx.Packet, &old)
		pkt.Usage = old.Usage
		pkt.Title = old.Title
		pkt.Subtitle = old.Subtitle
		pkt.Artist = old.Artist
	} else {
		bytes.StructFromBytes(ctx.Packet, &pkt)
	}

	song, err := s.findSong(
		packets.String(pkt.Title[:]),
		packets.String(pkt.Subtitle[:]),
		packets.String(pkt.Artist[:]),
	)
	if err != nil {
		return fmt.Errorf("resolving song: %w", err)
	}

	switch pkt.Usage {
	case packets.SongUsageSelect:
		return s.selectSong(ctx, song, packets.String(pkt.Hash[:]))
	case packets.SongUsageHave, packets.SongUsageMissing:
		return s.recordSongPresence(ctx, song, pkt.Usage == packets.SongUsageHave)
	default:
		s.Logger.Debugf("ignoring song request usage %d from %s", pkt.Usage, ctx.Client.IPAddr())
		return nil
	}
}

// recordSongPresence caches the client's report of whether it has a song.
// Missing songs are called out to the room so members know a launch with the
// song requirement enabled would be refused.
func (s *Server) recordSongPresence(ctx *Context, song *data.Song, have bool) error {
	ctx.Client.SetSongPresence(song.ID, have)

	if !have {
		s.sendChatToRoom(ctx.Room.ID, fmt.Sprintf("%s does %s have the song (%s)!",
			chat.ColoredName(ctx.User()),
			chat.WithColor("not", "ff0000"),
			song.FullName()))
	}
	return nil
}

// selectSong handles a song chosen on the wheel. The first selection of a
// song announces it to the room and puts the room into negotiation; selecting
// the same song again is the launch request.
func (s *Server) selectSong(ctx *Context, song *data.Song, hash string) error {
	if ctx.Client.MarkSongSelected(song.ID) {
		return s.requestLaunch(ctx, song, hash)
	}

	room := ctx.Room
	room.Status = data.RoomStatusNegotiating
	room.ActiveSongID = &song.ID
	room.ActiveSongHash = hash
	if err := data.SaveRoom(s.DB, room); err != nil {
		return fmt.Errorf("saving room %s on selection: %w", room.Name, err)
	}

	s.sendChatToRoom(room.ID, fmt.Sprintf("%s selected %s which has been played %d times.",
		chat.ColoredName(ctx.User()), chat.WithColor(song.FullName()), song.TimePlayed))

	if room.ShowBests {
		scores, err := data.BestScores(s.DB, song.ID, bestScoreLimit)
		if err != nil {
			return fmt.Errorf("loading best scores for %s: %w", song.FullName(), err)
		}
		for _, score := range scores {
			s.sendChatToRoom(room.ID, score.Render(room.ShowPoints))
		}
	}

	s.broadcastSongRequest(room.ID, packets.SongUsageAnnounce, song, hash)
	return nil
}

// requestLaunch attempts the negotiating-to-playing transition. The room
// state is re-read under the room lock so concurrent launch requests observe
// each other; at most one caller starts a game per negotiation.
func (s *Server) requestLaunch(ctx *Context, song *data.Song, hash string) error {
	if !ctx.Room.Free && !s.evaluator.Can(permission.StartGame, ctx.User(), ctx.Room.ID) {
		return s.sendChat(ctx.Client, "You don't have the permission to start a game")
	}

	denials, err := s.launchGame(ctx, song, hash)
	if err != nil {
		return err
	}
	if len(denials) > 0 {
		for _, line := range denials {
			if err := s.sendChat(ctx.Client, line); err != nil {
				return err
			}
		}
		return nil
	}

	s.sendChatToRoom(ctx.Room.ID, fmt.Sprintf("%s started the song %s",
		chat.ColoredName(ctx.User()), chat.WithColor(song.FullName())))
	s.broadcastSongRequest(ctx.Room.ID, packets.SongUsageLaunch, song, hash)
	s.refreshLobby()
	return nil
}

// launchGame checks the launch preconditions and commits the playing
// transition under the room lock. A non-empty return lists the denials to
// report to the requester.
func (s *Server) launchGame(ctx *Context, song *data.Song, hash string) ([]string, error) {
	unlock := s.lockRoom(ctx.Room.ID)
	defer unlock()

	room, err := data.FindRoomByID(s.DB, ctx.Room.ID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return []string{"The room no longer exists"}, nil
	}

	members, err := data.OnlineUsersInRoom(s.DB, room.ID)
	if err != nil {
		return nil, fmt.Errorf("loading members of %s: %w", room.Name, err)
	}

	var denials []string
	for _, member := range members {
		switch {
		case member.Status == data.StatusMusicSelection &&
			room.ActiveSongID != nil && room.InGame && room.Status != data.RoomStatusIdle:
			active, err := data.FindSongByID(s.DB, *room.ActiveSongID)
			if err != nil {
				return nil, err
			}
			name := ""
			if active != nil {
				name = active.FullName()
			}
			denials = append(denials, fmt.Sprintf("Room %s is already playing %s.",
				chat.WithColor(room.Name), chat.WithColor(name)))
			return denials, nil
		case member.Status == data.StatusOption || member.Status == data.StatusEvaluation:
			denials = append(denials, fmt.Sprintf("User %s is busy.", member.Name))
		case room.ReqSong && !s.memberHasSong(member.ID, song.ID):
			denials = append(denials, fmt.Sprintf("User %s does not have the song.", member.Name))
		}
	}
	if len(denials) > 0 {
		return denials, nil
	}

	if err := data.CreateGame(s.DB, &data.Game{RoomID: room.ID, SongID: song.ID}); err != nil {
		return nil, fmt.Errorf("recording game for %s: %w", room.Name, err)
	}

	room.Status = data.RoomStatusPlaying
	room.InGame = true
	room.ActiveSongID = &song.ID
	room.ActiveSongHash = hash
	if err := data.SaveRoom(s.DB, room); err != nil {
		return nil, fmt.Errorf("saving room %s on launch: %w", room.Name, err)
	}
	return nil, nil
}

// memberHasSong reports whether a member's connection has confirmed it has
// the song. Members with no connection or no report count as not having it.
func (s *Server) memberHasSong(userID, songID uint64) bool {
	c := s.clients.forUser(userID)
	if c == nil {
		return false
	}
	have, known := c.SongPresence(songID)
	return known && have
}
