package models

import "time"

// User represents a registered account
// PasswordHash is bcrypt output; never returned in JSON responses
type User struct {
	ID           int64     `json:"id" db:"id" bson:"_id"`
	Username     string    `json:"username" db:"username" bson:"username"`
	PasswordHash string    `json:"-" db:"password" bson:"password"`
	CreatedAt    time.Time `json:"created_at" db:"created_at" bson:"created_at"`
}

// CredentialsRequest is the body of POST /register and POST /login
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token issued on login
type LoginResponse struct {
	Token string `json:"token"`
}

// MessageResponse is the generic {message} body
type MessageResponse struct {
	Message string `json:"message"`
}
