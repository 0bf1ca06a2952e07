package data

import (
	"time"

	"gorm.io/gorm"
)

// Game is an immutable record of one play, created exactly once per
// successful launch.
type Game struct {
	ID     uint64 `gorm:"primaryKey"`
	RoomID uint64 `gorm:"index; not null"`
	SongID uint64 `gorm:"not null"`

	CreatedAt time.Time
}

// CreateGame persists the Game record to the database.
func CreateGame(db *gorm.DB, game *Game) error {
	return db.Create(game).Error
}

// CountGamesForRoom returns how many games have been recorded for a room.
func CountGamesForRoom(db *gorm.DB, roomID uint64) (int64, error) {
	var count int64
	err := db.Model(&Game{}).Where("room_id = ?", roomID).Count(&count).Error
	return count, err
}
