package data

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Creates a database for testing. For the sake of simplicity, this only uses
// the SQLite engine and creates a new database on every invocation since it
// is relatively cheap to do so.
func setUpDatabase(t *testing.T) *gorm.DB {
	testDBFile := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(testDBFile))
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}

	if err = db.AutoMigrate(
		&User{},
		&Room{},
		&Song{},
		&Score{},
		&Game{},
		&Relationship{},
	); err != nil {
		t.Fatalf("error auto migrating db: %s", err)
	}
	return db
}

func generateUser(t *testing.T) *User {
	t.Helper()
	return &User{
		Name:     strconv.Itoa(rand.Int()),
		Password: strconv.Itoa(rand.Int()),
		Email:    fmt.Sprintf("%d@%d.c", rand.Int(), rand.Int()),
		Status:   StatusRoomSelection,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, mutate func(*User)) *User {
	t.Helper()
	user := generateUser(t)
	if mutate != nil {
		mutate(user)
	}
	if err := CreateUser(db, user); err != nil {
		t.Fatalf("error creating test user: %v", err)
	}
	return user
}
