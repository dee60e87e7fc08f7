package domain

import "time"

// User is the domain model for registered accounts. The password hash is
// opaque to every layer above the auth service and never serialized.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
