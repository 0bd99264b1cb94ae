package models

import "time"

type CaseStatus string

const (
	CaseStatusPending CaseStatus = "pending"
	CaseStatusActive  CaseStatus = "active"
	CaseStatusClosed  CaseStatus = "closed"
)

type PlacementType string

const (
	PlacementRespite   PlacementType = "respite"
	PlacementLongTerm  PlacementType = "long_term"
	PlacementEmergency PlacementType = "emergency"
)

type Case struct {
	ID              string
	CaseNumber      string
	Status          CaseStatus
	OrganizationID  string
	SocialWorkerID  string
	FosterCarerID   *string
	HouseholdID     *string
	ChildDescriptor string
	PlacementType   PlacementType
	RoomSharingOK   bool
	RequestKey      *string
	ActivatedAt     *time.Time
	ClosedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type RequestOutcome string

const (
	OutcomePending  RequestOutcome = "pending"
	OutcomeAccepted RequestOutcome = "accepted"
	OutcomeDeclined RequestOutcome = "declined"
	OutcomeExpired  RequestOutcome = "expired"
)

type PlacementRequest struct {
	ID             string
	CaseID         string
	HouseholdID    string
	SocialWorkerID string
	Message        string
	Outcome        RequestOutcome
	ExpiresAt      time.Time
	DecidedAt      *time.Time
	CreatedAt      time.Time
}
