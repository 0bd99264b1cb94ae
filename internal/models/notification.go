package models

import "time"

type PushToken struct {
	ID        string
	ProfileID string
	DeviceID  string
	Token     string
	Platform  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

type NotificationRecord struct {
	ID          string
	RecipientID string
	Type        string
	Title       string
	Body        string
	Status      NotificationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type NotificationPreferences struct {
	ProfileID      string
	NewMessage     bool
	PlacementState bool
	UpdatedAt      time.Time
}
