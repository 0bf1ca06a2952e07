package lobby

import (
	"sync"

	"github.com/stepline/stepline/internal/core/client"
)

// clientList is a concurrency-safe collection of the connected clients,
// queryable by room or by authenticated user.
type clientList struct {
	sync.RWMutex
	clients []*client.Client
}

func (cl *clientList) add(c *client.Client) {
	cl.Lock()
	cl.clients = append(cl.clients, c)
	cl.Unlock()
}

func (cl *clientList) remove(c *client.Client) {
	cl.Lock()
	for i, existing := range cl.clients {
		if existing == c {
			cl.clients = append(cl.clients[:i], cl.clients[i+1:]...)
			break
		}
	}
	cl.Unlock()
}

func (cl *clientList) len() int {
	cl.RLock()
	defer cl.RUnlock()
	return len(cl.clients)
}

// forRoom returns the connections currently in a room.
func (cl *clientList) forRoom(roomID uint64) []*client.Client {
	cl.RLock()
	defer cl.RUnlock()

	var matched []*client.Client
	for _, c := range cl.clients {
		if c.Room() == roomID {
			matched = append(matched, c)
		}
	}
	return matched
}

// roomless returns the connections not in any room.
func (cl *clientList) roomless() []*client.Client {
	return cl.forRoom(0)
}

// forUser returns the connection on which a user is authenticated, or nil.
func (cl *clientList) forUser(userID uint64) *client.Client {
	cl.RLock()
	defer cl.RUnlock()

	for _, c := range cl.clients {
		for _, id := range c.Users() {
			if id == userID {
				return c
			}
		}
	}
	return nil
}
