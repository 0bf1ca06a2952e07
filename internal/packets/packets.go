// Packet definitions for the stepline client protocol.
package packets

import (
	"github.com/stepline/stepline/internal/core/bytes"
)

const HeaderSize = 0x04

// HashCapableVersion is the lowest client protocol version that understands
// the song hash field on launch/start packets. Older clients must receive
// the hash-less variants.
const HashCapableVersion = 4

// Header precedes every packet in both directions. Size is the total packet
// size in bytes, including the header itself.
type Header struct {
	Size uint16
	Type uint16
}

// Packet types sent by the game client.
const (
	HelloType uint16 = iota + 0x01
	LoginType
	ScreenStatusType
	EnterRoomType
	ChatType
	SongRequestType
	GameOverType
)

// Packet types sent by the server. SongRequestType is reused for the
// server's start/launch echoes.
const (
	WelcomeType uint16 = iota + 0x81
	LoginResponseType
	ChatMessageType
	UserListType
	RoomListType
)

// Usage codes for client SongRequest packets.
const (
	SongUsageHave    uint8 = 0 // availability probe: the client has the song
	SongUsageMissing uint8 = 1 // availability probe: the client lacks the song
	SongUsageSelect  uint8 = 2 // set the room's pending song or request launch
)

// Usage codes for server SongRequest echoes.
const (
	SongUsageAnnounce uint8 = 1 // the room's pending song changed
	SongUsageLaunch   uint8 = 2 // the game is starting
)

// Hello is the first packet sent by a connecting client and carries its
// protocol version.
type Hello struct {
	Header
	Version uint16
	Name    [32]byte
}

// Welcome is the server's response to a Hello.
type Welcome struct {
	Header
	Version uint16
	Name    [32]byte
	Motd    [128]byte
}

// Login authenticates one player profile on the connection. Slot
// distinguishes the players on a two-player cabinet.
type Login struct {
	Header
	Slot     uint8
	Name     [32]byte
	Password [64]byte
}

type LoginResponse struct {
	Header
	Approved uint8
	Message  [128]byte
}

// ScreenStatus reports the client moving between game UI screens.
type ScreenStatus struct {
	Header
	Status uint8
}

// EnterRoom joins (Enter=1) or leaves (Enter=0) a room.
type EnterRoom struct {
	Header
	Enter    uint8
	Name     [64]byte
	Password [64]byte
}

// Chat carries one line of text input from the client.
type Chat struct {
	Header
	Message [256]byte
}

// ChatMessage carries one line of text from the server to a client.
type ChatMessage struct {
	Header
	Message [256]byte
}

// SongRequest is sent by clients to probe for or select a song and echoed by
// the server to announce selections and launches.
type SongRequest struct {
	Header
	Usage    uint8
	Title    [128]byte
	Subtitle [128]byte
	Artist   [128]byte
	Hash     [40]byte
}

// SongRequestNoHash is the variant of SongRequest sent to clients below
// HashCapableVersion.
type SongRequestNoHash struct {
	Header
	Usage    uint8
	Title    [128]byte
	Subtitle [128]byte
	Artist   [128]byte
}

type GameOver struct {
	Header
}

const MaxListedUsers = 32

type UserEntry struct {
	Status uint8
	Name   [32]byte
}

// UserList is the lobby roster broadcast to clients outside of any room.
type UserList struct {
	Header
	MaxPlayers uint16
	NumPlayers uint16
	Users      [MaxListedUsers]UserEntry
}

const MaxListedRooms = 16

type RoomEntry struct {
	Status     uint8
	Players    uint8
	MaxPlayers uint8
	Name       [64]byte
}

// RoomList advertises the open rooms to clients outside of any room.
type RoomList struct {
	Header
	NumRooms uint16
	Rooms    [MaxListedRooms]RoomEntry
}

// CopyString writes src into the fixed-size field dst, truncating if needed.
// The remainder of dst is left zeroed as string padding.
func CopyString(dst []byte, src string) {
	copy(dst, src)
}

// String converts a fixed-size packet field to a string, stripping padding.
func String(b []byte) string {
	return string(bytes.StripPadding(b))
}
