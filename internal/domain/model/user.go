package model

import (
	"time"
)

type User struct {
	ID             string    `json:"_id" bson:"_id"`
	Username       string    `json:"username" bson:"username"`
	HashedPassword string    `json:"-" bson:"password"` // Not exposed
	CreatedAt      time.Time `json:"created_at" bson:"createdAt"`
}

// Public returns a copy without the password hash.
func (u User) Public() User {
	u.HashedPassword = ""
	return u
}

// Principal is the identity carried by a verified bearer token.
type Principal struct {
	UserID   string `json:"_id"`
	Username string `json:"username"`
}

// Session is the server-side record written next to the token at login.
type Session struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}
