package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"whosehouse/api/internal/models"
)

var ErrHouseholdNotFound = errors.New("household not found")

type HouseholdRepository struct {
	pool *pgxpool.Pool
}

func NewHouseholdRepository(pool *pgxpool.Pool) *HouseholdRepository {
	return &HouseholdRepository{pool: pool}
}

const householdColumns = `
	id, display_name, address_line1, address_line2, city, postcode, organization_id,
	bedrooms, sharing_allowed, availability, photo_keys, created_at, updated_at
`

func scanHousehold(row pgx.Row) (models.Household, error) {
	var h models.Household
	if err := row.Scan(
		&h.ID,
		&h.DisplayName,
		&h.AddressLine1,
		&h.AddressLine2,
		&h.City,
		&h.Postcode,
		&h.OrganizationID,
		&h.Bedrooms,
		&h.SharingAllowed,
		&h.Availability,
		&h.PhotoKeys,
		&h.CreatedAt,
		&h.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Household{}, ErrHouseholdNotFound
		}
		return models.Household{}, err
	}
	return h, nil
}

func (r *HouseholdRepository) Create(ctx context.Context, h models.Household) error {
	const query = `
		INSERT INTO households (
			id, display_name, address_line1, address_line2, city, postcode, organization_id,
			bedrooms, sharing_allowed, availability, photo_keys, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		h.ID,
		h.DisplayName,
		h.AddressLine1,
		h.AddressLine2,
		h.City,
		h.Postcode,
		h.OrganizationID,
		h.Bedrooms,
		h.SharingAllowed,
		h.Availability,
		h.PhotoKeys,
	)
	return err
}

func (r *HouseholdRepository) GetByID(ctx context.Context, id string) (models.Household, error) {
	const query = `SELECT` + householdColumns + `FROM households WHERE id = $1`
	return scanHousehold(r.pool.QueryRow(ctx, query, id))
}

func (r *HouseholdRepository) Update(ctx context.Context, h models.Household) error {
	const query = `
		UPDATE households
		SET display_name = $2,
		    address_line1 = $3,
		    address_line2 = $4,
		    city = $5,
		    postcode = $6,
		    bedrooms = $7,
		    sharing_allowed = $8,
		    availability = $9,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query,
		h.ID,
		h.DisplayName,
		h.AddressLine1,
		h.AddressLine2,
		h.City,
		h.Postcode,
		h.Bedrooms,
		h.SharingAllowed,
		h.Availability,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrHouseholdNotFound
	}
	return nil
}

func (r *HouseholdRepository) AppendPhotoKey(ctx context.Context, id string, key string) error {
	const query = `
		UPDATE households
		SET photo_keys = array_append(photo_keys, $2), updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, key)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrHouseholdNotFound
	}
	return nil
}

// Search lists households in an organization that can take a new placement,
// ranked by computed available beds. Households marked away or full are
// excluded, as are households that do not allow sharing when the case
// requires a shared room.
func (r *HouseholdRepository) Search(ctx context.Context, organizationID string, needsSharing bool, limit int) ([]models.HouseholdMatch, error) {
	const query = `
		SELECT` + householdColumns + `,
		       COALESCE(active.count, 0) AS active_cases
		FROM households h
		LEFT JOIN (
			SELECT household_id, COUNT(*) AS count
			FROM cases
			WHERE status = 'active'
			GROUP BY household_id
		) active ON active.household_id = h.id
		WHERE h.organization_id = $1
		  AND h.availability = 'available'
		  AND ($2 = false OR h.sharing_allowed = true)
		  AND h.bedrooms > COALESCE(active.count, 0)
		ORDER BY h.bedrooms - COALESCE(active.count, 0) DESC, h.display_name
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, organizationID, needsSharing, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []models.HouseholdMatch
	for rows.Next() {
		var m models.HouseholdMatch
		h := &m.Household
		if err := rows.Scan(
			&h.ID,
			&h.DisplayName,
			&h.AddressLine1,
			&h.AddressLine2,
			&h.City,
			&h.Postcode,
			&h.OrganizationID,
			&h.Bedrooms,
			&h.SharingAllowed,
			&h.Availability,
			&h.PhotoKeys,
			&h.CreatedAt,
			&h.UpdatedAt,
			&m.ActiveCases,
		); err != nil {
			return nil, err
		}
		m.AvailableBeds = h.Bedrooms - m.ActiveCases
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *HouseholdRepository) AddMember(ctx context.Context, m models.HouseholdMember) error {
	const query = `
		INSERT INTO household_members (id, household_id, profile_id, is_primary, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.pool.Exec(ctx, query, m.ID, m.HouseholdID, m.ProfileID, m.Primary)
	return err
}

func (r *HouseholdRepository) Members(ctx context.Context, householdID string) ([]models.HouseholdMember, error) {
	const query = `
		SELECT id, household_id, profile_id, is_primary, created_at
		FROM household_members
		WHERE household_id = $1
		ORDER BY is_primary DESC, created_at
	`
	rows, err := r.pool.Query(ctx, query, householdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.HouseholdMember
	for rows.Next() {
		var m models.HouseholdMember
		if err := rows.Scan(&m.ID, &m.HouseholdID, &m.ProfileID, &m.Primary, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// PrimaryCarer returns the profile id of the household's primary carer.
func (r *HouseholdRepository) PrimaryCarer(ctx context.Context, householdID string) (string, error) {
	const query = `
		SELECT profile_id FROM household_members
		WHERE household_id = $1 AND is_primary = true
		LIMIT 1
	`
	var profileID string
	if err := r.pool.QueryRow(ctx, query, householdID).Scan(&profileID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrHouseholdNotFound
		}
		return "", err
	}
	return profileID, nil
}
