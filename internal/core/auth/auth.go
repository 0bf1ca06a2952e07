package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"gorm.io/gorm"

	"github.com/stepline/stepline/internal/core/data"
)

var (
	ErrInvalidCredentials  = errors.New("invalid username/password combination")
	ErrUserCreationDisabled = errors.New("unknown user and account creation is disabled")
)

// VerifyOrCreate checks the users table for the specified credentials,
// registering the profile on first login when allowCreation is set.
func VerifyOrCreate(db *gorm.DB, name, password string, allowCreation bool) (*data.User, error) {
	user, err := data.FindUserByName(db, name)
	if err != nil {
		return nil, err
	}

	if user == nil {
		if !allowCreation {
			return nil, ErrUserCreationDisabled
		}
		user = &data.User{
			Name:     name,
			Password: HashPassword(password),
			Status:   data.StatusRoomSelection,
		}
		if err := data.CreateUser(db, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	if user.Password != HashPassword(password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// HashPassword returns a version of password with stepline's chosen hashing strategy.
func HashPassword(password string) string {
	hash := sha256.New()
	hash.Write([]byte(password))
	return hex.EncodeToString(hash.Sum(nil))
}
