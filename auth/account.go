// Package auth registers accounts and exchanges credentials for signed tokens.
// The token subject is the account id, which is also the wall user id.
package auth

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/xid"
	"golang.org/x/crypto/bcrypt"
)

type ID string

// Account is the sign-in identity of a wall user. PasswordHash is a bcrypt hash.
type Account struct {
	ID           ID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrExistingUsername   = errors.New("username in use")
	ErrExistingEmail      = errors.New("email in use")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrNotFound           = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

var (
	usernamePattern = regexp.MustCompile(`^\w{1,24}$`)
	emailPattern    = regexp.MustCompile(`^\S+@\S+\.\S+$`)
)

const minPasswordLength = 8

// NewAccount checks a registration request and returns an unsaved account with a
// fresh id and the hashed password.
func NewAccount(r registerAccountRequest, now time.Time) (*Account, error) {
	switch {
	case !usernamePattern.MatchString(r.Username):
		return nil, ErrInvalidUsername
	case !emailPattern.MatchString(r.Email):
		return nil, ErrInvalidEmail
	case len(r.Password) < minPasswordLength:
		return nil, ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	return &Account{
		ID:           ID(xid.New().String()),
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: string(hash),
		CreatedAt:    now.UTC(),
	}, nil
}

func (a *Account) PasswordMatches(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}
