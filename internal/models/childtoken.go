package models

import "time"

// ChildAccessToken stores only the SHA-256 hash of the opaque token handed to
// the child. Expiry is absolute; there is no revocation before it.
type ChildAccessToken struct {
	ID        string
	CaseID    string
	TokenHash []byte
	IssuedBy  string
	ExpiresAt time.Time
	CreatedAt time.Time
}
