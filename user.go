package wall

import (
	"errors"
	"time"

	"github.com/rs/xid"
)

type UserRepository interface {
	FindByName(username string) (*User, error)
	FindByID(id ID) (*User, error)
	Store(u *User) error
}

type ID string

type User struct {
	ID        ID `bson:"_id"`
	Username  string
	Email     string
	CreatedAt time.Time
}

var (
	ErrInvalidID       = errors.New("invalid user id")
	ErrInvalidUsername = errors.New("invalid username")
	ErrNotFound        = errors.New("user not found")
	ErrExistingUser    = errors.New("username in use")
)

// Author returns the snapshot of u that is embedded in posts.
func (u *User) Author() Author {
	return Author{UserID: u.ID, Username: u.Username}
}

func nextID() ID {
	return ID(xid.New().String())
}

//IsValidID checks if a given id is valid based on the xid library definition of a valid id
func IsValidID(id string) bool {
	if _, err := xid.FromString(id); err != nil {
		return false
	}
	return true
}
