package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"whosehouse/api/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotRecipient is returned when someone other than the addressee
	// tries to mark a message read.
	ErrNotRecipient = errors.New("not the message recipient")
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageColumns = `
	id, case_id, sender_id, sender_label, recipient_id, content, urgent, status, created_at
`

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	if err := row.Scan(
		&m.ID,
		&m.CaseID,
		&m.SenderID,
		&m.SenderLabel,
		&m.RecipientID,
		&m.Content,
		&m.Urgent,
		&m.Status,
		&m.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Message{}, ErrMessageNotFound
		}
		return models.Message{}, err
	}
	return m, nil
}

func (r *MessageRepository) Create(ctx context.Context, m models.Message) error {
	const query = `
		INSERT INTO messages (
			id, case_id, sender_id, sender_label, recipient_id, content, urgent, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		m.ID,
		m.CaseID,
		m.SenderID,
		m.SenderLabel,
		m.RecipientID,
		m.Content,
		m.Urgent,
		m.Status,
	)
	return err
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (models.Message, error) {
	const query = `SELECT` + messageColumns + `FROM messages WHERE id = $1`
	return scanMessage(r.pool.QueryRow(ctx, query, id))
}

func (r *MessageRepository) ListByCase(ctx context.Context, caseID string, limit, offset int) ([]models.Message, error) {
	const query = `
		SELECT` + messageColumns + `
		FROM messages
		WHERE case_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, caseID, limit, offset)
}

// ListChildThread returns only the messages the child is a party to: rows the
// child wrote (nil sender) or rows addressed to the child (nil recipient).
func (r *MessageRepository) ListChildThread(ctx context.Context, caseID string, limit, offset int) ([]models.Message, error) {
	const query = `
		SELECT` + messageColumns + `
		FROM messages
		WHERE case_id = $1 AND (sender_id IS NULL OR recipient_id IS NULL)
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, caseID, limit, offset)
}

func (r *MessageRepository) list(ctx context.Context, query string, caseID string, limit, offset int) ([]models.Message, error) {
	rows, err := r.pool.Query(ctx, query, caseID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkDelivered transitions the recipient's fetched messages from sent to
// delivered. Read rows are never touched.
func (r *MessageRepository) MarkDelivered(ctx context.Context, caseID string, recipientID string) error {
	const query = `
		UPDATE messages
		SET status = 'delivered'
		WHERE case_id = $1 AND recipient_id = $2 AND status = 'sent'
	`
	_, err := r.pool.Exec(ctx, query, caseID, recipientID)
	return err
}

// MarkRead sets a message read. Only the addressee may do it; read is
// terminal so a repeat is a no-op rather than an error.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID string, recipientID string) (models.Message, error) {
	const query = `
		UPDATE messages
		SET status = 'read'
		WHERE id = $1 AND recipient_id = $2
		RETURNING` + messageColumns + `
	`
	m, err := scanMessage(r.pool.QueryRow(ctx, query, messageID, recipientID))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrMessageNotFound) {
		return models.Message{}, err
	}

	if _, getErr := r.GetByID(ctx, messageID); getErr != nil {
		return models.Message{}, getErr
	}
	return models.Message{}, ErrNotRecipient
}

// CountUnread is the authoritative unread aggregate: messages addressed to
// the profile whose status is not read.
func (r *MessageRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM messages
		WHERE recipient_id = $1 AND status != 'read'
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MessageRepository) CountUnreadByCase(ctx context.Context, recipientID string, caseID string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM messages
		WHERE recipient_id = $1 AND case_id = $2 AND status != 'read'
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, recipientID, caseID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
