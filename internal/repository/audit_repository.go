package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"whosehouse/api/internal/models"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Insert appends an entry. There is deliberately no update or delete.
func (r *AuditRepository) Insert(ctx context.Context, e models.AuditLogEntry) error {
	const query = `
		INSERT INTO audit_logs (id, action, actor_id, target_type, target_id, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.Action,
		e.ActorID,
		e.TargetType,
		e.TargetID,
		e.IPAddress,
		e.UserAgent,
	)
	return err
}

func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]models.AuditLogEntry, error) {
	const query = `
		SELECT id, action, actor_id, target_type, target_id,
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(
			&e.ID,
			&e.Action,
			&e.ActorID,
			&e.TargetType,
			&e.TargetID,
			&e.IPAddress,
			&e.UserAgent,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
