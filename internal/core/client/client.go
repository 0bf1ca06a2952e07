// Package client holds the per-connection session state shared by every
// controller. All mutable fields sit behind accessors that take the
// connection's lock; the lock is never held across a network send or a
// database round-trip.
package client

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/stepline/stepline/internal/core/bytes"
	"github.com/stepline/stepline/internal/core/debug"
)

// Client represents one connected game client. A single connection may have
// multiple player profiles authenticated at once (two-player cabinets), and
// multiple handler invocations may be in flight for it concurrently.
type Client struct {
	connection net.Conn
	ipAddr     string
	port       string

	// Debug enables packet dumps of outbound traffic.
	Debug bool

	mu            sync.Mutex
	userIDs       []uint64
	roomID        uint64
	version       int
	songs         map[uint64]bool
	proposedSong  uint64
	chatTimestamp bool
}

func NewClient(connection net.Conn) *Client {
	ipAddr, port, err := net.SplitHostPort(connection.RemoteAddr().String())
	if err != nil {
		// Non-TCP conns (net.Pipe in tests) have no host:port form.
		ipAddr = connection.RemoteAddr().String()
	}

	return &Client{
		connection: connection,
		ipAddr:     ipAddr,
		port:       port,
		songs:      make(map[uint64]bool),
	}
}

func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

// AddUser records a newly authenticated profile on the connection.
func (c *Client) AddUser(userID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.userIDs {
		if id == userID {
			return
		}
	}
	c.userIDs = append(c.userIDs, userID)
}

// Users returns the ids of the profiles authenticated on the connection.
func (c *Client) Users() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint64, len(c.userIDs))
	copy(ids, c.userIDs)
	return ids
}

// SetRoom records the room the connection has joined; zero means the lobby.
func (c *Client) SetRoom(roomID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

func (c *Client) Room() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) SetVersion(version int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version = version
}

// Version returns the protocol version reported in the client's hello.
func (c *Client) Version() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// SetSongPresence records whether the client has a song locally.
func (c *Client) SetSongPresence(songID uint64, have bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.songs[songID] = have
}

// SongPresence returns the cached presence for a song. known is false if the
// client has never reported on it.
func (c *Client) SongPresence(songID uint64) (have bool, known bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	have, known = c.songs[songID]
	return have, known
}

// MarkSongSelected records a song selection in one critical section: the
// song is marked as present and reported as the connection's proposal. The
// return value is true when the song was already the proposal, i.e. the
// selection is a launch request for the currently negotiated song.
func (c *Client) MarkSongSelected(songID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.songs[songID] = true
	if c.proposedSong == songID {
		return true
	}
	c.proposedSong = songID
	return false
}

// ProposedSong returns the song id last selected on this connection.
func (c *Client) ProposedSong() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proposedSong
}

// ToggleChatTimestamp flips the timestamp display flag, returning the new value.
func (c *Client) ToggleChatTimestamp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatTimestamp = !c.chatTimestamp
	return c.chatTimestamp
}

func (c *Client) ChatTimestamp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatTimestamp
}

// Read consumes the available bytes directly from the client's connection.
func (c *Client) Read(b []byte) (int, error) {
	return c.connection.Read(b)
}

// Write directly sends data to the client over its connection.
func (c *Client) Write(b []byte) (int, error) {
	return c.connection.Write(b)
}

// Close the connection.
func (c *Client) Close() error {
	return c.connection.Close()
}

// Send serializes a packet struct and writes it to the client, fixing up the
// size field in the header first.
func (c *Client) Send(packet interface{}) error {
	data, size := bytes.BytesFromStruct(packet)

	data[0] = byte(size & 0xFF)
	data[1] = byte((size & 0xFF00) >> 8)

	if c.Debug {
		debug.PrintPacket(os.Stdout, "server->client", data)
	}

	return c.transmit(data, size)
}

// transmit writes the contents of data to the connection until the number
// of bytes written >= length.
func (c *Client) transmit(data []byte, length int) error {
	bytesSent := 0

	for bytesSent < length {
		b, err := c.Write(data[bytesSent:length])
		if err != nil {
			return fmt.Errorf("failed to send to client %v: %s", c.IPAddr(), err.Error())
		}
		bytesSent += b
	}

	return nil
}
