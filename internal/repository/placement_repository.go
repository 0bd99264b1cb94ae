package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"whosehouse/api/internal/models"
)

var (
	ErrRequestNotFound = errors.New("placement request not found")
	ErrRequestExpired  = errors.New("placement request expired")
	ErrRequestDecided  = errors.New("placement request already decided")
	// ErrCaseConflict is returned when the case was taken by a concurrent
	// accept and is no longer pending.
	ErrCaseConflict = errors.New("case no longer pending")
)

type PlacementRepository struct {
	pool *pgxpool.Pool
}

func NewPlacementRepository(pool *pgxpool.Pool) *PlacementRepository {
	return &PlacementRepository{pool: pool}
}

const requestColumns = `
	id, case_id, household_id, social_worker_id, message, outcome, expires_at, decided_at, created_at
`

func scanRequest(row pgx.Row) (models.PlacementRequest, error) {
	var pr models.PlacementRequest
	if err := row.Scan(
		&pr.ID,
		&pr.CaseID,
		&pr.HouseholdID,
		&pr.SocialWorkerID,
		&pr.Message,
		&pr.Outcome,
		&pr.ExpiresAt,
		&pr.DecidedAt,
		&pr.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PlacementRequest{}, ErrRequestNotFound
		}
		return models.PlacementRequest{}, err
	}
	return pr, nil
}

func (r *PlacementRepository) Create(ctx context.Context, pr models.PlacementRequest) error {
	const query = `
		INSERT INTO placement_requests (
			id, case_id, household_id, social_worker_id, message, outcome, expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		pr.ID,
		pr.CaseID,
		pr.HouseholdID,
		pr.SocialWorkerID,
		pr.Message,
		pr.Outcome,
		pr.ExpiresAt,
	)
	return err
}

func (r *PlacementRepository) GetByID(ctx context.Context, id string) (models.PlacementRequest, error) {
	const query = `SELECT` + requestColumns + `FROM placement_requests WHERE id = $1`
	return scanRequest(r.pool.QueryRow(ctx, query, id))
}

func (r *PlacementRepository) ListByHousehold(ctx context.Context, householdID string, limit, offset int) ([]models.PlacementRequest, error) {
	const query = `
		SELECT` + requestColumns + `
		FROM placement_requests
		WHERE household_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, householdID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.PlacementRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, pr)
	}
	return requests, rows.Err()
}

func (r *PlacementRepository) ListByCase(ctx context.Context, caseID string) ([]models.PlacementRequest, error) {
	const query = `
		SELECT` + requestColumns + `
		FROM placement_requests
		WHERE case_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.PlacementRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, pr)
	}
	return requests, rows.Err()
}

// Accept performs the whole acceptance as one transaction:
//
//  1. lock the request row; fail distinctly if missing, decided or expired,
//  2. close any active case the household currently holds,
//  3. activate the case and assign the carer and household, but only if the
//     case is still pending (a concurrent accept for the same case loses
//     here and rolls back),
//  4. mark the request accepted and write the audit row.
//
// Either everything commits or nothing does, so a household can never end up
// with two active cases.
func (r *PlacementRepository) Accept(ctx context.Context, requestID string, carerID string, now time.Time) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		caseID      string
		householdID string
		outcome     models.RequestOutcome
		expiresAt   time.Time
	)
	const lockQuery = `
		SELECT case_id, household_id, outcome, expires_at
		FROM placement_requests
		WHERE id = $1
		FOR UPDATE
	`
	if err := tx.QueryRow(ctx, lockQuery, requestID).Scan(&caseID, &householdID, &outcome, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRequestNotFound
		}
		return "", err
	}

	switch {
	case outcome == models.OutcomeExpired:
		return "", ErrRequestExpired
	case outcome != models.OutcomePending:
		return "", ErrRequestDecided
	case !expiresAt.After(now):
		// Flip and commit so the request is terminally expired, then
		// report the distinct expiry error.
		const expireQuery = `UPDATE placement_requests SET outcome = 'expired', decided_at = $2 WHERE id = $1`
		if _, err := tx.Exec(ctx, expireQuery, requestID, now); err != nil {
			return "", err
		}
		if err := tx.Commit(ctx); err != nil {
			return "", err
		}
		return "", ErrRequestExpired
	}

	const closePriorQuery = `
		UPDATE cases
		SET status = 'closed', closed_at = $2, updated_at = NOW()
		WHERE household_id = $1 AND status = 'active'
	`
	if _, err := tx.Exec(ctx, closePriorQuery, householdID, now); err != nil {
		return "", err
	}

	const activateQuery = `
		UPDATE cases
		SET status = 'active',
		    household_id = $2,
		    foster_carer_id = $3,
		    activated_at = $4,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	cmd, err := tx.Exec(ctx, activateQuery, caseID, householdID, carerID, now)
	if err != nil {
		return "", err
	}
	if cmd.RowsAffected() == 0 {
		return "", ErrCaseConflict
	}

	const acceptQuery = `UPDATE placement_requests SET outcome = 'accepted', decided_at = $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, acceptQuery, requestID, now); err != nil {
		return "", err
	}

	const auditQuery = `
		INSERT INTO audit_logs (id, action, actor_id, target_type, target_id, created_at)
		VALUES (gen_random_uuid()::text, 'placement_request.accepted', $1, 'placement_request', $2, $3)
	`
	if _, err := tx.Exec(ctx, auditQuery, carerID, requestID, now); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return caseID, nil
}

// Decline marks a pending, unexpired request declined and writes the audit
// row in the same transaction. The same distinct errors as Accept apply.
func (r *PlacementRepository) Decline(ctx context.Context, requestID string, carerID string, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		outcome   models.RequestOutcome
		expiresAt time.Time
	)
	const lockQuery = `
		SELECT outcome, expires_at
		FROM placement_requests
		WHERE id = $1
		FOR UPDATE
	`
	if err := tx.QueryRow(ctx, lockQuery, requestID).Scan(&outcome, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRequestNotFound
		}
		return err
	}

	switch {
	case outcome == models.OutcomeExpired:
		return ErrRequestExpired
	case outcome != models.OutcomePending:
		return ErrRequestDecided
	case !expiresAt.After(now):
		const expireQuery = `UPDATE placement_requests SET outcome = 'expired', decided_at = $2 WHERE id = $1`
		if _, err := tx.Exec(ctx, expireQuery, requestID, now); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		return ErrRequestExpired
	}

	const declineQuery = `UPDATE placement_requests SET outcome = 'declined', decided_at = $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, declineQuery, requestID, now); err != nil {
		return err
	}

	const auditQuery = `
		INSERT INTO audit_logs (id, action, actor_id, target_type, target_id, created_at)
		VALUES (gen_random_uuid()::text, 'placement_request.declined', $1, 'placement_request', $2, $3)
	`
	if _, err := tx.Exec(ctx, auditQuery, carerID, requestID, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SweepExpired flips overdue pending requests to expired. Reporting hygiene
// only: Accept and Decline re-check expiry themselves.
func (r *PlacementRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE placement_requests
		SET outcome = 'expired', decided_at = $1
		WHERE outcome = 'pending' AND expires_at <= $1
	`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
