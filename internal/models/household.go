package models

import "time"

type HouseholdAvailability string

const (
	HouseholdAvailable HouseholdAvailability = "available"
	HouseholdAway      HouseholdAvailability = "away"
	HouseholdFull      HouseholdAvailability = "full"
)

type Household struct {
	ID             string
	DisplayName    string
	AddressLine1   string
	AddressLine2   string
	City           string
	Postcode       string
	OrganizationID string
	Bedrooms       int
	SharingAllowed bool
	Availability   HouseholdAvailability
	PhotoKeys      []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type HouseholdMember struct {
	ID          string
	HouseholdID string
	ProfileID   string
	Primary     bool
	CreatedAt   time.Time
}

// HouseholdMatch is a search result row: a household plus its computed
// available-bed count (bedrooms minus active cases).
type HouseholdMatch struct {
	Household     Household
	ActiveCases   int
	AvailableBeds int
}
