// Package model defines the data structures used throughout the application.
package model

import "time"

// Roles a user can hold. Anything else is rejected at registration.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account.
//
// Accounts are created either by password registration or on the first
// successful Google login. Both Username and Email are UNIQUE in the store;
// Email is the join key for external logins.
//
// PasswordHash is never serialised. Accounts created through Google get a
// hash of random bytes, so the password path can never authenticate them.
type User struct {
	ID           string    `json:"id"           db:"id"`
	Username     string    `json:"username"     db:"username"`
	Email        string    `json:"email"        db:"email"`
	FirstName    string    `json:"first_name"   db:"first_name"`
	LastName     string    `json:"last_name"    db:"last_name"`
	PhoneNumber  string    `json:"phone_number" db:"phone_number"`
	Address      string    `json:"address"      db:"address"`
	PasswordHash string    `json:"-"            db:"password_hash"`
	Role         string    `json:"role"         db:"role"`
	IsActive     bool      `json:"is_active"    db:"is_active"`
	CreatedAt    time.Time `json:"created_at"   db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"   db:"updated_at"`
}
