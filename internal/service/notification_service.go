package service

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"whosehouse/api/internal/ids"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/repository"
)

// notifyStream feeds whatever delivers pushes downstream; this service only
// records the intent and enqueues it.
const notifyStream = "notify:outbound"

type NotificationService struct {
	repo  *repository.NotificationRepository
	queue *redis.Client
	log   zerolog.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, queue *redis.Client, log zerolog.Logger) *NotificationService {
	return &NotificationService{repo: repo, queue: queue, log: log}
}

func (s *NotificationService) RegisterPushToken(ctx context.Context, profileID string, deviceID string, token string, platform string) error {
	return s.repo.UpsertPushToken(ctx, models.PushToken{
		ID:        ids.New(),
		ProfileID: profileID,
		DeviceID:  deviceID,
		Token:     token,
		Platform:  platform,
	})
}

func (s *NotificationService) Preferences(ctx context.Context, profileID string) (models.NotificationPreferences, error) {
	return s.repo.GetPreferences(ctx, profileID)
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, prefs models.NotificationPreferences) error {
	return s.repo.UpsertPreferences(ctx, prefs)
}

func (s *NotificationService) List(ctx context.Context, profileID string, limit, offset int) ([]models.NotificationRecord, error) {
	return s.repo.RecordsByRecipient(ctx, profileID, limit, offset)
}

// Notify records the notification and enqueues it for delivery. Best-effort
// end to end: a failure is logged, never propagated to the action that
// triggered it.
func (s *NotificationService) Notify(ctx context.Context, recipientID string, kind string, title string, body string) {
	prefs, err := s.repo.GetPreferences(ctx, recipientID)
	if err != nil {
		s.log.Warn().Err(err).Str("recipient_id", recipientID).Msg("load notification preferences")
		return
	}
	if kind == "new_message" && !prefs.NewMessage {
		return
	}
	if (kind == "placement_request" || kind == "placement_accepted" || kind == "placement_declined") && !prefs.PlacementState {
		return
	}

	record := models.NotificationRecord{
		ID:          ids.New(),
		RecipientID: recipientID,
		Type:        kind,
		Title:       title,
		Body:        body,
		Status:      models.NotificationPending,
	}
	if err := s.repo.InsertRecord(ctx, record); err != nil {
		s.log.Warn().Err(err).Str("recipient_id", recipientID).Msg("record notification")
		return
	}

	if s.queue == nil {
		return
	}
	if err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: notifyStream,
		Values: map[string]any{
			"notification_id": record.ID,
			"recipient_id":    recipientID,
			"type":            kind,
			"title":           title,
			"body":            body,
		},
	}).Err(); err != nil {
		s.log.Warn().Err(err).Str("notification_id", record.ID).Msg("enqueue notification")
	}
}
