package data

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Song is one playable chart identified by its (title, subtitle, artist)
// tuple. Rows are created idempotently the first time a client reports the
// song to the server.
type Song struct {
	ID         uint64 `gorm:"primaryKey"`
	Title      string `gorm:"uniqueIndex:idx_song_identity"`
	Subtitle   string `gorm:"uniqueIndex:idx_song_identity"`
	Artist     string `gorm:"uniqueIndex:idx_song_identity"`
	TimePlayed int    `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName renders the song for chat messages.
func (s *Song) FullName() string {
	name := s.Title
	if s.Subtitle != "" {
		name += " " + s.Subtitle
	}
	if s.Artist != "" {
		name += " (" + s.Artist + ")"
	}
	return name
}

// FindSongByID returns the song with the given id or nil if none exists.
func FindSongByID(db *gorm.DB, id uint64) (*Song, error) {
	var song Song
	err := db.First(&song, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &song, nil
}

// FindOrCreateSong resolves a song by its identity tuple, inserting a new
// row if no match exists.
func FindOrCreateSong(db *gorm.DB, title, subtitle, artist string) (*Song, error) {
	var song Song
	err := db.Where("title = ? AND subtitle = ? AND artist = ?", title, subtitle, artist).
		First(&song).Error

	if err == nil {
		return &song, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	song = Song{Title: title, Subtitle: subtitle, Artist: artist}
	if err := db.Create(&song).Error; err != nil {
		return nil, err
	}
	return &song, nil
}

// SaveSong writes any changes to an existing Song record.
func SaveSong(db *gorm.DB, song *Song) error {
	return db.Save(song).Error
}

// Score is one recorded result for a song, kept for the best-score summary
// broadcast during song negotiation.
type Score struct {
	ID      uint64 `gorm:"primaryKey"`
	SongID  uint64 `gorm:"index; not null"`
	UserID  uint64 `gorm:"not null"`
	User    *User
	Points  int
	Percent float64

	CreatedAt time.Time
}

// Render formats the score for a chat broadcast.
func (sc *Score) Render(showPoints bool) string {
	name := "?"
	if sc.User != nil {
		name = sc.User.Name
	}
	if showPoints {
		return fmt.Sprintf("%s: %.2f%% (%d points)", name, sc.Percent, sc.Points)
	}
	return fmt.Sprintf("%s: %.2f%%", name, sc.Percent)
}

// BestScores returns the top scores for a song, highest percentage first.
func BestScores(db *gorm.DB, songID uint64, limit int) ([]*Score, error) {
	var scores []*Score
	err := db.Where("song_id = ?", songID).
		Order("percent desc").
		Limit(limit).
		Preload("User").
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}
