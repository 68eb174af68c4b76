package auth

type Service interface {
	RegisterAccount(r registerAccountRequest) (ID, error)
	ValidateCredentials(r validateCredentialsRequest) (ID, error)
}

// Events is notified after an account is stored, so that other parts of the
// system can create their own profile for it.
type Events interface {
	AccountCreated(id string, username string, email string)
}

// Repository stores accounts. Store fails with ErrExistingUsername or ErrExistingEmail
// when either is taken, checked atomically with the insert.
type Repository interface {
	FindByName(username string) (*Account, error)
	FindByEmail(email string) (*Account, error)
	Store(acc *Account) error
}

type registerAccountRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type validateCredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
