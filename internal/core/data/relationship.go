package data

import (
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Relationship states. Directionality matters: for pending rows User1 is the
// requester, for ignored rows User1 is the user who imposed the ignore and
// the only one who may lift it.
const (
	RelationshipPending  = 0
	RelationshipAccepted = 1
	RelationshipIgnored  = 2
)

// ErrDuplicateRelationship is returned when more than one row exists for a
// user pair. The pair locking discipline makes this unreachable; seeing it
// means the data is corrupt, so it is surfaced rather than papered over.
var ErrDuplicateRelationship = errors.New("multiple relationship rows exist for one user pair")

// Relationship links two users as pending friends, accepted friends, or
// ignored. At most one row exists per unordered user pair.
type Relationship struct {
	ID      uint64 `gorm:"primaryKey"`
	User1ID uint64 `gorm:"index; not null"`
	User2ID uint64 `gorm:"index; not null"`
	State   int    `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Other returns the id of the user on the opposite side of the row.
func (r *Relationship) Other(userID uint64) uint64 {
	if r.User1ID == userID {
		return r.User2ID
	}
	return r.User1ID
}

// FindRelationship resolves the single relationship row for the unordered
// pair {a, b}, matching either direction. Returns nil if no row exists and
// ErrDuplicateRelationship if more than one does.
func FindRelationship(db *gorm.DB, a, b uint64) (*Relationship, error) {
	var rels []Relationship
	err := db.Where("(user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?)",
		a, b, b, a).Find(&rels).Error
	if err != nil {
		return nil, err
	}

	switch len(rels) {
	case 0:
		return nil, nil
	case 1:
		return &rels[0], nil
	default:
		return nil, ErrDuplicateRelationship
	}
}

// IsIgnored reports whether an ignore exists between a and b in either
// direction.
func IsIgnored(db *gorm.DB, a, b uint64) (bool, error) {
	rel, err := FindRelationship(db, a, b)
	if err != nil {
		return false, err
	}
	return rel != nil && rel.State == RelationshipIgnored, nil
}

// RelationshipsForUser returns every relationship row touching the user.
func RelationshipsForUser(db *gorm.DB, userID uint64) ([]Relationship, error) {
	var rels []Relationship
	err := db.Where("user1_id = ? OR user2_id = ?", userID, userID).Find(&rels).Error
	if err != nil {
		return nil, err
	}
	return rels, nil
}

// CreateRelationship persists the Relationship record to the database.
func CreateRelationship(db *gorm.DB, rel *Relationship) error {
	return db.Create(rel).Error
}

// SaveRelationship writes any changes to an existing Relationship record.
func SaveRelationship(db *gorm.DB, rel *Relationship) error {
	return db.Save(rel).Error
}

// DeleteRelationship removes a relationship row.
func DeleteRelationship(db *gorm.DB, rel *Relationship) error {
	return db.Delete(rel).Error
}

// Per-pair locks serializing resolve-or-insert sequences so that concurrent
// requests from both sides of a pair cannot create a second row.
var relationshipPairs = struct {
	sync.Mutex
	locks map[[2]uint64]*sync.Mutex
}{locks: make(map[[2]uint64]*sync.Mutex)}

// LockRelationshipPair acquires the lock for the unordered pair {a, b} and
// returns the function releasing it. Every read-modify-write of a pair's
// relationship row must run under this lock.
func LockRelationshipPair(a, b uint64) (unlock func()) {
	if a > b {
		a, b = b, a
	}
	key := [2]uint64{a, b}

	relationshipPairs.Lock()
	mu, ok := relationshipPairs.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		relationshipPairs.locks[key] = mu
	}
	relationshipPairs.Unlock()

	mu.Lock()
	return mu.Unlock
}
