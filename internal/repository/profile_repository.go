package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"whosehouse/api/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = `
	id, email, password_hash, full_name, role, organization_id, household_id,
	status, last_login_at, created_at, updated_at
`

func scanProfile(row pgx.Row) (models.Profile, error) {
	var p models.Profile
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.FullName,
		&p.Role,
		&p.OrganizationID,
		&p.HouseholdID,
		&p.Status,
		&p.LastLoginAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrProfileNotFound
		}
		return models.Profile{}, err
	}
	return p, nil
}

func (r *ProfileRepository) Create(ctx context.Context, profile models.Profile) error {
	const query = `
		INSERT INTO profiles (
			id, email, password_hash, full_name, role, organization_id, household_id,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		profile.ID,
		profile.Email,
		profile.PasswordHash,
		profile.FullName,
		profile.Role,
		profile.OrganizationID,
		profile.HouseholdID,
		profile.Status,
	)
	return err
}

func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (models.Profile, error) {
	const query = `SELECT` + profileColumns + `FROM profiles WHERE email = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, email))
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (models.Profile, error) {
	const query = `SELECT` + profileColumns + `FROM profiles WHERE id = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, id))
}

func (r *ProfileRepository) UpdateStatus(ctx context.Context, id string, status models.ProfileStatus) error {
	const query = `UPDATE profiles SET status = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) UpdateName(ctx context.Context, id string, fullName string) error {
	const query = `UPDATE profiles SET full_name = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, fullName)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) SetHousehold(ctx context.Context, id string, householdID *string) error {
	const query = `UPDATE profiles SET household_id = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, householdID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) TouchLastLogin(ctx context.Context, id string) error {
	const query = `UPDATE profiles SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *ProfileRepository) ListByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]models.Profile, error) {
	const query = `
		SELECT` + profileColumns + `
		FROM profiles
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, organizationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
