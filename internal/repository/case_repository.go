package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"whosehouse/api/internal/models"
)

var ErrCaseNotFound = errors.New("case not found")

type CaseRepository struct {
	pool *pgxpool.Pool
}

func NewCaseRepository(pool *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{pool: pool}
}

const caseColumns = `
	id, case_number, status, organization_id, social_worker_id, foster_carer_id,
	household_id, child_descriptor, placement_type, room_sharing_ok, request_key,
	activated_at, closed_at, created_at, updated_at
`

func scanCase(row pgx.Row) (models.Case, error) {
	var c models.Case
	if err := row.Scan(
		&c.ID,
		&c.CaseNumber,
		&c.Status,
		&c.OrganizationID,
		&c.SocialWorkerID,
		&c.FosterCarerID,
		&c.HouseholdID,
		&c.ChildDescriptor,
		&c.PlacementType,
		&c.RoomSharingOK,
		&c.RequestKey,
		&c.ActivatedAt,
		&c.ClosedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Case{}, ErrCaseNotFound
		}
		return models.Case{}, err
	}
	return c, nil
}

func (r *CaseRepository) Create(ctx context.Context, c models.Case) error {
	const query = `
		INSERT INTO cases (
			id, case_number, status, organization_id, social_worker_id, foster_carer_id,
			household_id, child_descriptor, placement_type, room_sharing_ok, request_key,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.CaseNumber,
		c.Status,
		c.OrganizationID,
		c.SocialWorkerID,
		c.FosterCarerID,
		c.HouseholdID,
		c.ChildDescriptor,
		c.PlacementType,
		c.RoomSharingOK,
		c.RequestKey,
	)
	return err
}

func (r *CaseRepository) GetByID(ctx context.Context, id string) (models.Case, error) {
	const query = `SELECT` + caseColumns + `FROM cases WHERE id = $1`
	return scanCase(r.pool.QueryRow(ctx, query, id))
}

// FindByRequestKey resolves an idempotent create: a replayed submission with
// the same key returns the case it created the first time.
func (r *CaseRepository) FindByRequestKey(ctx context.Context, socialWorkerID string, requestKey string) (models.Case, error) {
	const query = `SELECT` + caseColumns + `FROM cases WHERE social_worker_id = $1 AND request_key = $2`
	return scanCase(r.pool.QueryRow(ctx, query, socialWorkerID, requestKey))
}

func (r *CaseRepository) ListBySocialWorker(ctx context.Context, socialWorkerID string, limit, offset int) ([]models.Case, error) {
	const query = `
		SELECT` + caseColumns + `
		FROM cases
		WHERE social_worker_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, socialWorkerID, limit, offset)
}

func (r *CaseRepository) ListByHousehold(ctx context.Context, householdID string, limit, offset int) ([]models.Case, error) {
	const query = `
		SELECT` + caseColumns + `
		FROM cases
		WHERE household_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, householdID, limit, offset)
}

func (r *CaseRepository) ListByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]models.Case, error) {
	const query = `
		SELECT` + caseColumns + `
		FROM cases
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, organizationID, limit, offset)
}

func (r *CaseRepository) list(ctx context.Context, query string, key string, limit, offset int) ([]models.Case, error) {
	rows, err := r.pool.Query(ctx, query, key, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (r *CaseRepository) Close(ctx context.Context, id string) error {
	const query = `
		UPDATE cases
		SET status = 'closed', closed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status != 'closed'
	`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCaseNotFound
	}
	return nil
}

func (r *CaseRepository) CountActiveByHousehold(ctx context.Context, householdID string) (int, error) {
	const query = `SELECT COUNT(*) FROM cases WHERE household_id = $1 AND status = 'active'`
	var count int
	if err := r.pool.QueryRow(ctx, query, householdID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
