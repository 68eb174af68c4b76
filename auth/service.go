package auth

import (
	"errors"
	"fmt"
	"log"
	"time"
)

type service struct {
	accounts Repository
	events   Events
	now      func() time.Time
}

// NewService returns the account service. events may be nil.
func NewService(accounts Repository, events Events) Service {
	return &service{accounts: accounts, events: events, now: time.Now}
}

func (svc *service) RegisterAccount(r registerAccountRequest) (ID, error) {
	acc, err := NewAccount(r, svc.now())
	if err != nil {
		return "", err
	}

	if err := svc.accounts.Store(acc); err != nil {
		if errors.Is(err, ErrExistingUsername) || errors.Is(err, ErrExistingEmail) {
			return "", err
		}
		return "", fmt.Errorf("error saving account: %w", err)
	}
	log.Printf("[auth] registered %s as %s", acc.Username, acc.ID)

	if svc.events != nil {
		svc.events.AccountCreated(string(acc.ID), acc.Username, acc.Email)
	}
	return acc.ID, nil
}

func (svc *service) ValidateCredentials(r validateCredentialsRequest) (ID, error) {
	acc, err := svc.accounts.FindByName(r.Username)
	if err != nil || !acc.PasswordMatches(r.Password) {
		return "", ErrInvalidCredentials
	}
	return acc.ID, nil
}
