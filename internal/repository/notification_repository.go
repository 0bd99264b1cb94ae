package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"whosehouse/api/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) UpsertPushToken(ctx context.Context, t models.PushToken) error {
	const query = `
		INSERT INTO push_tokens (id, profile_id, device_id, token, platform, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (profile_id, device_id)
		DO UPDATE SET token = EXCLUDED.token, platform = EXCLUDED.platform, updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, t.ID, t.ProfileID, t.DeviceID, t.Token, t.Platform)
	return err
}

func (r *NotificationRepository) PushTokensByProfile(ctx context.Context, profileID string) ([]models.PushToken, error) {
	const query = `
		SELECT id, profile_id, device_id, token, platform, created_at, updated_at
		FROM push_tokens
		WHERE profile_id = $1
	`
	rows, err := r.pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.PushToken
	for rows.Next() {
		var t models.PushToken
		if err := rows.Scan(&t.ID, &t.ProfileID, &t.DeviceID, &t.Token, &t.Platform, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *NotificationRepository) InsertRecord(ctx context.Context, n models.NotificationRecord) error {
	const query = `
		INSERT INTO notifications (id, recipient_id, type, title, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query, n.ID, n.RecipientID, n.Type, n.Title, n.Body, n.Status)
	return err
}

func (r *NotificationRepository) UpdateRecordStatus(ctx context.Context, id string, status models.NotificationStatus) error {
	const query = `UPDATE notifications SET status = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) RecordsByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.NotificationRecord, error) {
	const query = `
		SELECT id, recipient_id, type, title, body, status, created_at, updated_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		var n models.NotificationRecord
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Body, &n.Status, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, n)
	}
	return records, rows.Err()
}

func (r *NotificationRepository) GetPreferences(ctx context.Context, profileID string) (models.NotificationPreferences, error) {
	const query = `
		SELECT profile_id, new_message, placement_state, updated_at
		FROM notification_preferences
		WHERE profile_id = $1
	`
	var p models.NotificationPreferences
	if err := r.pool.QueryRow(ctx, query, profileID).Scan(&p.ProfileID, &p.NewMessage, &p.PlacementState, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Default everything on until the user opts out.
			return models.NotificationPreferences{ProfileID: profileID, NewMessage: true, PlacementState: true}, nil
		}
		return models.NotificationPreferences{}, err
	}
	return p, nil
}

func (r *NotificationRepository) UpsertPreferences(ctx context.Context, p models.NotificationPreferences) error {
	const query = `
		INSERT INTO notification_preferences (profile_id, new_message, placement_state, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (profile_id)
		DO UPDATE SET new_message = EXCLUDED.new_message, placement_state = EXCLUDED.placement_state, updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, p.ProfileID, p.NewMessage, p.PlacementState)
	return err
}
