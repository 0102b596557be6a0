package domain

import "time"

// User is an account in the knowledge base. The auth core only ever reads
// users; mutation belongs to the users module.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Source       string
	Role         Role
	RoleID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public returns a copy with the password hash removed, safe to hand to
// transport code.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
