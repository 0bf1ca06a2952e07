package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Room lifecycle. A room idles until a member proposes a song, negotiates
// until a launch request succeeds, and returns to idle when the song ends.
const (
	RoomStatusIdle uint8 = iota
	RoomStatusNegotiating
	RoomStatusPlaying
)

// Room is a named grouping of users that negotiates and plays one song at a
// time. ActiveSongID is only set while the room is negotiating or playing.
type Room struct {
	ID          uint64 `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex; not null"`
	Password    string
	Description string
	MaxUsers    int `gorm:"default:8"`
	// Free marks a free-for-all room in which any member may start a game
	// regardless of permissions.
	Free   bool
	Status uint8 `gorm:"default:0"`
	InGame bool

	ActiveSongID   *uint64
	ActiveSong     *Song
	ActiveSongHash string

	// Negotiation flags: show prior best scores on selection, include point
	// totals in those scores, and require every member to own the song
	// before a launch may proceed.
	ShowBests  bool
	ShowPoints bool
	ReqSong    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FindRoomByID returns the room with the given id or nil if none exists.
func FindRoomByID(db *gorm.DB, id uint64) (*Room, error) {
	var room Room
	err := db.First(&room, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &room, nil
}

// FindRoomByName returns the room with the given name or nil if none exists.
func FindRoomByName(db *gorm.DB, name string) (*Room, error) {
	var room Room
	err := db.Where("name = ?", name).First(&room).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &room, nil
}

// FindOrCreateRoom looks up a room by name, creating it with the provided
// password and capacity if it does not exist. The second return value
// reports whether the room was created.
func FindOrCreateRoom(db *gorm.DB, name, password string, maxUsers int) (*Room, bool, error) {
	var room Room
	err := db.Where("name = ?", name).First(&room).Error

	if err == nil {
		return &room, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	room = Room{Name: name, Password: password, MaxUsers: maxUsers}
	if err := db.Create(&room).Error; err != nil {
		return nil, false, err
	}
	return &room, true, nil
}

// OpenRooms returns every room ordered by name.
func OpenRooms(db *gorm.DB) ([]*Room, error) {
	var rooms []*Room
	if err := db.Order("name").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// SaveRoom writes any changes to an existing Room record.
func SaveRoom(db *gorm.DB, room *Room) error {
	return db.Save(room).Error
}

// DeleteRoom removes a room record. Callers are responsible for only
// deleting rooms with no remaining members.
func DeleteRoom(db *gorm.DB, room *Room) error {
	return db.Delete(room).Error
}
