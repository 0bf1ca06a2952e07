package auth

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/stepline/stepline/internal/core/data"
)

func setUpDatabase(t *testing.T) *gorm.DB {
	testDBFile := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(testDBFile))
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}
	if err = db.AutoMigrate(&data.User{}); err != nil {
		t.Fatalf("error auto migrating db: %s", err)
	}
	return db
}

func TestVerifyOrCreateRegistersNewUser(t *testing.T) {
	db := setUpDatabase(t)

	user, err := VerifyOrCreate(db, "newcomer", "secret", true)
	if err != nil {
		t.Fatalf("VerifyOrCreate() error = %v", err)
	}
	if user.Name != "newcomer" {
		t.Errorf("user name = %s", user.Name)
	}
	if user.Password == "secret" {
		t.Error("password stored in plaintext")
	}
	if user.Status != data.StatusRoomSelection {
		t.Errorf("new user status = %d, want room selection", user.Status)
	}

	// Logging in again verifies against the stored hash.
	again, err := VerifyOrCreate(db, "newcomer", "secret", true)
	if err != nil {
		t.Fatalf("VerifyOrCreate() error on second login = %v", err)
	}
	if again.ID != user.ID {
		t.Errorf("second login resolved user %d, want %d", again.ID, user.ID)
	}
}

func TestVerifyOrCreateRejectsBadPassword(t *testing.T) {
	db := setUpDatabase(t)

	if _, err := VerifyOrCreate(db, "player", "right", true); err != nil {
		t.Fatalf("VerifyOrCreate() error = %v", err)
	}

	_, err := VerifyOrCreate(db, "player", "wrong", true)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("VerifyOrCreate() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyOrCreateCreationDisabled(t *testing.T) {
	db := setUpDatabase(t)

	_, err := VerifyOrCreate(db, "stranger", "whatever", false)
	if !errors.Is(err, ErrUserCreationDisabled) {
		t.Errorf("VerifyOrCreate() error = %v, want ErrUserCreationDisabled", err)
	}
}
