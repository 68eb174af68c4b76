package wall

// DuplicateUser stores a copy of u under a fresh id and the given username.
func DuplicateUser(users UserRepository, u User, username string) *User {
	u1 := u
	u1.ID = nextID()
	u1.Username = username
	_ = users.Store(&u1)

	return &u1
}
