package auth

import "sync"

type accountRepository struct {
	mu       sync.RWMutex
	accounts map[ID]*Account
}

func NewAccountRepository() Repository {
	return &accountRepository{accounts: map[ID]*Account{}}
}

func (repo *accountRepository) Store(acc *Account) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, a := range repo.accounts {
		switch {
		case a.Username == acc.Username:
			return ErrExistingUsername
		case a.Email == acc.Email:
			return ErrExistingEmail
		}
	}

	a := *acc
	repo.accounts[acc.ID] = &a
	return nil
}

func (repo *accountRepository) FindByName(username string) (*Account, error) {
	return repo.first(func(a *Account) bool { return a.Username == username })
}

func (repo *accountRepository) FindByEmail(email string) (*Account, error) {
	return repo.first(func(a *Account) bool { return a.Email == email })
}

func (repo *accountRepository) first(match func(*Account) bool) (*Account, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	for _, a := range repo.accounts {
		if match(a) {
			found := *a
			return &found, nil
		}
	}
	return nil, ErrNotFound
}
