package models

import "time"

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// Message belongs to a case thread. A nil SenderID means the child wrote it
// through a token link; a nil RecipientID means it is addressed to the child.
type Message struct {
	ID          string
	CaseID      string
	SenderID    *string
	SenderLabel string
	RecipientID *string
	Content     string
	Urgent      bool
	Status      MessageStatus
	CreatedAt   time.Time
}
