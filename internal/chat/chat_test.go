package chat

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/stepline/stepline/internal/core/client"
	"github.com/stepline/stepline/internal/core/data"
	"github.com/stepline/stepline/internal/core/permission"
)

func setUpDatabase(t *testing.T) *gorm.DB {
	testDBFile := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(testDBFile))
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}

	if err = db.AutoMigrate(
		&data.User{},
		&data.Room{},
		&data.Relationship{},
	); err != nil {
		t.Fatalf("error auto migrating db: %s", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, name string) *data.User {
	t.Helper()
	user := &data.User{Name: name, Online: true, Status: data.StatusRoomSelection}
	if err := data.CreateUser(db, user); err != nil {
		t.Fatalf("error creating test user %s: %v", name, err)
	}
	return user
}

// newTestClient returns a client backed by one side of a pipe with the other
// side drained, so sends never block.
func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	t.Cleanup(func() {
		serverSide.Close()
		clientSide.Close()
	})

	go func() {
		buf := make([]byte, 1024)
		for {
			if _, err := clientSide.Read(buf); err != nil {
				return
			}
		}
	}()

	return client.NewClient(serverSide)
}

// fakeTransport satisfies Transport with a fixed user-to-connection table.
type fakeTransport struct {
	connections map[uint64]*client.Client
	capacity    int
}

func (f *fakeTransport) ClientForUser(userID uint64) *client.Client {
	return f.connections[userID]
}

func (f *fakeTransport) ClientsInRoom(roomID uint64) []*client.Client { return nil }
func (f *fakeTransport) RoomlessClients() []*client.Client            { return nil }
func (f *fakeTransport) Capacity() int                                { return f.capacity }

func newTestContext(t *testing.T, db *gorm.DB, user *data.User) *Context {
	t.Helper()
	return &Context{
		DB:          db,
		Client:      newTestClient(t),
		Users:       []*data.User{user},
		Server:      &fakeTransport{connections: make(map[uint64]*client.Client), capacity: 64},
		Permissions: permission.NewEvaluator(nil),
	}
}
