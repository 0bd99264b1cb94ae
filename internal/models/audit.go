package models

import "time"

// AuditLogEntry rows are append-only; nothing updates or deletes them.
type AuditLogEntry struct {
	ID         string
	Action     string
	ActorID    *string
	TargetType string
	TargetID   string
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}
