package models

import "time"

type Role string

const (
	RoleSocialWorker Role = "social_worker"
	RoleFosterCarer  Role = "foster_carer"
	RoleAdmin        Role = "admin"
)

type ProfileStatus string

const (
	ProfileStatusActive      ProfileStatus = "active"
	ProfileStatusDeactivated ProfileStatus = "deactivated"
)

type Profile struct {
	ID             string
	Email          string
	PasswordHash   []byte
	FullName       string
	Role           Role
	OrganizationID string
	HouseholdID    *string
	Status         ProfileStatus
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Session struct {
	ID               string
	ProfileID        string
	DeviceID         string
	DeviceName       string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}
