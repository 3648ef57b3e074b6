package identity

import "time"

// User is the credential record behind a custody account identifier.
type User struct {
	ID           string
	PINHash      []byte
	DeviceID     string
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    time.Time
}

// Credentials request structure.
type Credentials struct {
	Account  string
	PIN      string
	DeviceID string
}
