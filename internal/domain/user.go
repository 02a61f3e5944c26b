package domain

import "time"

// User is the domain entity for a user account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is what the authentication collaborator hands to the board core.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

func (u User) Identity() Identity {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	return Identity{ID: u.ID, DisplayName: name}
}
