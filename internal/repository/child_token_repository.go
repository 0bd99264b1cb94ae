package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"whosehouse/api/internal/models"
)

var ErrChildTokenNotFound = errors.New("child access token not found")

type ChildTokenRepository struct {
	pool *pgxpool.Pool
}

func NewChildTokenRepository(pool *pgxpool.Pool) *ChildTokenRepository {
	return &ChildTokenRepository{pool: pool}
}

func (r *ChildTokenRepository) Create(ctx context.Context, t models.ChildAccessToken) error {
	const query = `
		INSERT INTO child_access_tokens (id, case_id, token_hash, issued_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.pool.Exec(ctx, query, t.ID, t.CaseID, t.TokenHash, t.IssuedBy, t.ExpiresAt)
	return err
}

func (r *ChildTokenRepository) FindByHash(ctx context.Context, tokenHash []byte) (models.ChildAccessToken, error) {
	const query = `
		SELECT id, case_id, token_hash, issued_by, expires_at, created_at
		FROM child_access_tokens
		WHERE token_hash = $1
	`
	var t models.ChildAccessToken
	if err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.CaseID,
		&t.TokenHash,
		&t.IssuedBy,
		&t.ExpiresAt,
		&t.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChildAccessToken{}, ErrChildTokenNotFound
		}
		return models.ChildAccessToken{}, err
	}
	return t, nil
}

func (r *ChildTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM child_access_tokens WHERE expires_at <= $1`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
