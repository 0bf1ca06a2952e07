package lobby

import (
	"github.com/stepline/stepline/internal/chat"
	"github.com/stepline/stepline/internal/core/client"
	"github.com/stepline/stepline/internal/core/data"
	"github.com/stepline/stepline/internal/packets"
)

const defaultRoomCapacity = 8

// sendChat delivers one line of server chat to a single connection.
func (s *Server) sendChat(c *client.Client, line string) error {
	return chat.SendMessage(c, line)
}

// sendChatToRoom broadcasts one line of server chat to every connection in a
// room. Broadcast is fire-and-forget per connection.
func (s *Server) sendChatToRoom(roomID uint64, line string) {
	for _, c := range s.clients.forRoom(roomID) {
		if err := chat.SendMessage(c, line); err != nil {
			s.Logger.Warnf("error delivering chat to %s: %v", c.IPAddr(), err)
		}
	}
}

// broadcastSongRequest echoes a song selection or launch to every connection
// in the room, choosing the hash-bearing or hash-less variant per the
// recipient's protocol version.
func (s *Server) broadcastSongRequest(roomID uint64, usage uint8, song *data.Song, hash string) {
	withHash := &packets.SongRequest{
		Header: packets.Header{Type: packets.SongRequestType},
		Usage:  usage,
	}
	packets.CopyString(withHash.Title[:], song.Title)
	packets.CopyString(withHash.Subtitle[:], song.Subtitle)
	packets.CopyString(withHash.Artist[:], song.Artist)
	packets.CopyString(withHash.Hash[:], hash)

	noHash := &packets.SongRequestNoHash{
		Header: packets.Header{Type: packets.SongRequestType},
		Usage:  usage,
	}
	packets.CopyString(noHash.Title[:], song.Title)
	packets.CopyString(noHash.Subtitle[:], song.Subtitle)
	packets.CopyString(noHash.Artist[:], song.Artist)

	for _, c := range s.clients.forRoom(roomID) {
		var err error
		if c.Version() < packets.HashCapableVersion {
			err = c.Send(noHash)
		} else {
			err = c.Send(withHash)
		}
		if err != nil {
			s.Logger.Warnf("error sending song request to %s: %v", c.IPAddr(), err)
		}
	}
}

// refreshLobby pushes the current room and user rosters to every connection
// still in the lobby.
func (s *Server) refreshLobby() {
	roomList, err := s.roomListPacket()
	if err != nil {
		s.Logger.Errorf("error building room list: %v", err)
		return
	}
	userList, err := s.userListPacket()
	if err != nil {
		s.Logger.Errorf("error building user list: %v", err)
		return
	}

	for _, c := range s.clients.roomless() {
		if err := c.Send(roomList); err != nil {
			s.Logger.Warnf("error sending room list to %s: %v", c.IPAddr(), err)
			continue
		}
		if err := c.Send(userList); err != nil {
			s.Logger.Warnf("error sending user list to %s: %v", c.IPAddr(), err)
		}
	}
}

func (s *Server) roomListPacket() (*packets.RoomList, error) {
	rooms, err := data.OpenRooms(s.DB)
	if err != nil {
		return nil, err
	}

	pkt := &packets.RoomList{Header: packets.Header{Type: packets.RoomListType}}
	for i, room := range rooms {
		if i >= packets.MaxListedRooms {
			break
		}
		members, err := data.OnlineUsersInRoom(s.DB, room.ID)
		if err != nil {
			return nil, err
		}
		entry := packets.RoomEntry{
			Status:     room.Status,
			Players:    uint8(len(members)),
			MaxPlayers: uint8(room.MaxUsers),
		}
		packets.CopyString(entry.Name[:], room.Name)
		pkt.Rooms[i] = entry
		pkt.NumRooms++
	}
	return pkt, nil
}

func (s *Server) userListPacket() (*packets.UserList, error) {
	users, err := data.OnlineUsers(s.DB)
	if err != nil {
		return nil, err
	}

	pkt := &packets.UserList{
		Header:     packets.Header{Type: packets.UserListType},
		MaxPlayers: uint16(s.Config.Server.MaxUsers),
		NumPlayers: uint16(len(users)),
	}
	for i, user := range users {
		if i >= packets.MaxListedUsers {
			break
		}
		entry := packets.UserEntry{Status: user.Status}
		packets.CopyString(entry.Name[:], user.Name)
		pkt.Users[i] = entry
	}
	return pkt, nil
}

// cleanUpRoom deletes a room once its last online member is gone.
func (s *Server) cleanUpRoom(roomID uint64) {
	members, err := data.OnlineUsersInRoom(s.DB, roomID)
	if err != nil {
		s.Logger.Errorf("error checking members of room %d: %v", roomID, err)
		return
	}
	if len(members) > 0 {
		return
	}

	room, err := data.FindRoomByID(s.DB, roomID)
	if err != nil || room == nil {
		return
	}
	if err := data.DeleteRoom(s.DB, room); err != nil {
		s.Logger.Errorf("error deleting empty room %s: %v", room.Name, err)
	}
}

// notifyFriends tells a user's online friends with notifications enabled
// that the user's presence changed.
func (s *Server) notifyFriends(user *data.User, event string) {
	rels, err := data.RelationshipsForUser(s.DB, user.ID)
	if err != nil {
		s.Logger.Errorf("error loading relationships for %s: %v", user.Name, err)
		return
	}

	var friendIDs []uint64
	for _, rel := range rels {
		if rel.State == data.RelationshipAccepted {
			friendIDs = append(friendIDs, rel.Other(user.ID))
		}
	}

	friends, err := data.FindUsersByIDs(s.DB, friendIDs)
	if err != nil {
		s.Logger.Errorf("error loading friends of %s: %v", user.Name, err)
		return
	}

	for _, friend := range friends {
		if !friend.Online || !friend.FriendNotifications {
			continue
		}
		if c := s.clients.forUser(friend.ID); c != nil {
			if err := chat.SendMessage(c, chat.ColoredName(user)+" "+event); err != nil {
				s.Logger.Warnf("error notifying %s: %v", friend.Name, err)
			}
		}
	}
}
