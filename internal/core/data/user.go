package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// The game UI screens a player progresses through, reported by the client
// via screen status packets.
const (
	StatusUnknown uint8 = iota
	StatusRoomSelection
	StatusMusicSelection
	StatusOption
	StatusEvaluation
)

var statusNames = map[uint8]string{
	StatusUnknown:        "unknown",
	StatusRoomSelection:  "room selection",
	StatusMusicSelection: "music selection",
	StatusOption:         "options",
	StatusEvaluation:     "evaluation",
}

// StatusName returns a printable name for a user status value.
func StatusName(status uint8) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return statusNames[StatusUnknown]
}

// User is one registered player profile. A profile is created on first
// successful login and never hard-deleted; Online tracks whether any
// connection currently has it authenticated.
type User struct {
	ID                  uint64 `gorm:"primaryKey"`
	Name                string `gorm:"uniqueIndex; not null"`
	Password            string
	Email               string
	Rank                int `gorm:"default:0"`
	XP                  int `gorm:"default:0"`
	LastIP              string
	ProtocolVersion     int
	Online              bool
	Status              uint8 `gorm:"default:1"`
	ChatTimestamp       bool
	FriendNotifications bool

	RoomID *uint64
	Room   *Room

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FindUserByName returns the user with the given name or nil if none exists.
func FindUserByName(db *gorm.DB, name string) (*User, error) {
	var user User
	err := db.Where("name = ?", name).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// FindOnlineUserByName returns the online user with the given name or nil.
func FindOnlineUserByName(db *gorm.DB, name string) (*User, error) {
	var user User
	err := db.Where("name = ? AND online = ?", name, true).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// FindUsersByIDs returns the users with the given ids, in no particular order.
func FindUsersByIDs(db *gorm.DB, ids []uint64) ([]*User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []*User
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// OnlineUsers returns every online user ordered by name.
func OnlineUsers(db *gorm.DB) ([]*User, error) {
	var users []*User
	if err := db.Where("online = ?", true).Order("name").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// OnlineUsersInRoom returns the online members of a room ordered by name.
func OnlineUsersInRoom(db *gorm.DB, roomID uint64) ([]*User, error) {
	var users []*User
	err := db.Where("online = ? AND room_id = ?", true, roomID).Order("name").Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser persists the User record to the database.
func CreateUser(db *gorm.DB, user *User) error {
	return db.Create(user).Error
}

// SaveUser writes any changes to an existing User record.
func SaveUser(db *gorm.DB, user *User) error {
	return db.Save(user).Error
}

// DisconnectAllUsers flips every user offline. Called on startup since any
// online flags left over from a previous run are stale.
func DisconnectAllUsers(db *gorm.DB) error {
	return db.Model(&User{}).Where("online = ?", true).
		Updates(map[string]interface{}{"online": false, "room_id": nil}).Error
}
