package lobby

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/stepline/stepline/internal/core"
	"github.com/stepline/stepline/internal/core/bytes"
	"github.com/stepline/stepline/internal/core/client"
	"github.com/stepline/stepline/internal/core/data"
	"github.com/stepline/stepline/internal/packets"
)

func setUpServer(t *testing.T) *Server {
	t.Helper()

	testDBFile := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(testDBFile))
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}
	if err = db.AutoMigrate(
		&data.User{},
		&data.Room{},
		&data.Song{},
		&data.Score{},
		&data.Game{},
		&data.Relationship{},
	); err != nil {
		t.Fatalf("error auto migrating db: %s", err)
	}

	config := &core.Config{}
	config.Server.Name = "TEST"
	config.Server.MaxUsers = 16
	config.Server.AllowUserCreation = true

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := &Server{Name: "LOBBY", Config: config, Logger: logger, DB: db}
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("error initializing server: %v", err)
	}
	return s
}

// connectClient attaches a piped connection to the server and returns it
// along with a channel of the complete packets the server sends to it.
func connectClient(t *testing.T, s *Server) (*client.Client, <-chan []byte) {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	t.Cleanup(func() {
		serverSide.Close()
		clientSide.Close()
	})

	frames := make(chan []byte, 64)
	go func() {
		for {
			frame, err := readFrame(clientSide)
			if err != nil {
				return
			}
			frames <- frame
		}
	}()

	c := client.NewClient(serverSide)
	s.SetUpClient(c)
	return c, frames
}

func readFrame(conn net.Conn) ([]byte, error) {
	header := make([]byte, packets.HeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}

	size := int(binary.LittleEndian.Uint16(header[:2]))
	if size < packets.HeaderSize {
		size = packets.HeaderSize
	}

	frame := make([]byte, size)
	copy(frame, header)
	if _, err := io.ReadFull(conn, frame[packets.HeaderSize:]); err != nil {
		return nil, err
	}
	return frame, nil
}

func packetType(frame []byte) uint16 {
	return binary.LittleEndian.Uint16(frame[2:4])
}

func unmarshalFrame(t *testing.T, frame []byte, pkt interface{}) {
	t.Helper()
	bytes.StructFromBytes(frame, pkt)
}

// packetBytes serializes a packet the way a client would put it on the wire.
func packetBytes(t *testing.T, pkt interface{}) []byte {
	t.Helper()
	data, size := bytes.BytesFromStruct(pkt)
	data[0] = byte(size & 0xFF)
	data[1] = byte((size & 0xFF00) >> 8)
	return data
}

// loginUser registers a user straight into the database and binds them to
// the connection, skipping the hello/login packet exchange.
func loginUser(t *testing.T, s *Server, c *client.Client, name string) *data.User {
	t.Helper()

	user := &data.User{Name: name, Online: true, Status: data.StatusRoomSelection}
	if err := data.CreateUser(s.DB, user); err != nil {
		t.Fatalf("error creating user %s: %v", name, err)
	}
	c.AddUser(user.ID)
	return user
}

// joinRoom puts a logged-in user and their connection into a room.
func joinRoom(t *testing.T, s *Server, c *client.Client, user *data.User, room *data.Room) {
	t.Helper()

	user.RoomID = &room.ID
	user.Status = data.StatusMusicSelection
	if err := data.SaveUser(s.DB, user); err != nil {
		t.Fatalf("error saving user %s: %v", user.Name, err)
	}
	c.SetRoom(room.ID)
}

func createRoom(t *testing.T, s *Server, name string) *data.Room {
	t.Helper()
	room, _, err := data.FindOrCreateRoom(s.DB, name, "", defaultRoomCapacity)
	if err != nil {
		t.Fatalf("error creating room %s: %v", name, err)
	}
	return room
}

func createSong(t *testing.T, s *Server, title string) *data.Song {
	t.Helper()
	song, err := data.FindOrCreateSong(s.DB, title, "", "test artist")
	if err != nil {
		t.Fatalf("error creating song %s: %v", title, err)
	}
	return song
}

// roomContext builds the controller context a handler would receive for a
// packet from this connection.
func roomContext(t *testing.T, s *Server, c *client.Client, user *data.User) *Context {
	t.Helper()

	ctx := &Context{Client: c, Users: []*data.User{user}}
	if roomID := c.Room(); roomID != 0 {
		room, err := data.FindRoomByID(s.DB, roomID)
		if err != nil {
			t.Fatalf("error loading room %d: %v", roomID, err)
		}
		ctx.Room = room
	}
	return ctx
}
