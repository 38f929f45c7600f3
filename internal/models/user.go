package models

import "time"

// User represents a user in the system
type User struct {
	ID           int64     `json:"id"`
	Alias        string    `json:"alias"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not serialized
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
