package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"whosehouse/api/internal/authz"
	"whosehouse/api/internal/ids"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/realtime"
)

var (
	ErrNoRecipient      = errors.New("case has no counterpart to message")
	ErrDuplicateMessage = errors.New("message already submitted")
)

type MessageStore interface {
	Create(ctx context.Context, m models.Message) error
	GetByID(ctx context.Context, id string) (models.Message, error)
	ListByCase(ctx context.Context, caseID string, limit, offset int) ([]models.Message, error)
	ListChildThread(ctx context.Context, caseID string, limit, offset int) ([]models.Message, error)
	MarkDelivered(ctx context.Context, caseID string, recipientID string) error
	MarkRead(ctx context.Context, messageID string, recipientID string) (models.Message, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	CountUnreadByCase(ctx context.Context, recipientID string, caseID string) (int, error)
}

type CaseGetter interface {
	GetByID(ctx context.Context, id string) (models.Case, error)
}

const unreadCacheTTL = 5 * time.Minute

type MessagingService struct {
	messages  MessageStore
	cases     CaseGetter
	evaluator *authz.Evaluator
	cache     *redis.Client
	hub       *realtime.Hub
	notifier  Notifier
	log       zerolog.Logger
}

func NewMessagingService(
	messages MessageStore,
	cases CaseGetter,
	evaluator *authz.Evaluator,
	cache *redis.Client,
	hub *realtime.Hub,
	notifier Notifier,
	log zerolog.Logger,
) *MessagingService {
	return &MessagingService{
		messages:  messages,
		cases:     cases,
		evaluator: evaluator,
		cache:     cache,
		hub:       hub,
		notifier:  notifier,
		log:       log,
	}
}

type SendInput struct {
	CaseID  string
	Content string
	Urgent  bool
}

// Send appends a message to the case thread, addressed to the other human
// party. The urgency flag is honoured only for social workers; anyone else
// sends plain messages.
func (s *MessagingService) Send(ctx context.Context, id authz.Identity, input SendInput) (models.Message, error) {
	if input.Content == "" {
		return models.Message{}, fmt.Errorf("message content required")
	}

	c, err := s.cases.GetByID(ctx, input.CaseID)
	if err != nil {
		return models.Message{}, err
	}
	if err := s.authorizeThread(ctx, id, c); err != nil {
		return models.Message{}, err
	}

	recipientID, err := counterpart(c, id.UserID)
	if err != nil {
		return models.Message{}, err
	}

	urgent := input.Urgent && id.Role == models.RoleSocialWorker
	senderID := id.UserID
	m := models.Message{
		ID:          ids.New(),
		CaseID:      input.CaseID,
		SenderID:    &senderID,
		RecipientID: &recipientID,
		Content:     input.Content,
		Urgent:      urgent,
		Status:      models.MessageStatusSent,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return models.Message{}, err
	}

	s.afterAppend(ctx, m, recipientID)
	return m, nil
}

// SendFromChild appends a token-authenticated child message: nil sender, a
// descriptive label, addressed to the assigned social worker. A non-empty
// nonce is claimed once per case; a replayed nonce fails instead of
// duplicating the message, since the token link has no authenticated device
// to dedupe on.
func (s *MessagingService) SendFromChild(ctx context.Context, caseID string, label string, content string, nonce string) (models.Message, error) {
	if content == "" {
		return models.Message{}, fmt.Errorf("message content required")
	}
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return models.Message{}, err
	}

	// The nonce is claimed only once the message is certain to be
	// attempted, so a failed insert releases it and a retry goes through.
	nonceClaimed := false
	if nonce != "" && s.cache != nil {
		claimed, err := s.cache.SetNX(ctx, childNonceKey(caseID, nonce), 1, 24*time.Hour).Result()
		if err != nil {
			s.log.Warn().Err(err).Str("case_id", caseID).Msg("claim child message nonce")
		} else if !claimed {
			return models.Message{}, ErrDuplicateMessage
		} else {
			nonceClaimed = true
		}
	}

	recipientID := c.SocialWorkerID
	if label == "" {
		label = "Child"
	}
	m := models.Message{
		ID:          ids.New(),
		CaseID:      caseID,
		SenderLabel: label,
		RecipientID: &recipientID,
		Content:     content,
		Status:      models.MessageStatusSent,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		if nonceClaimed {
			if delErr := s.cache.Del(ctx, childNonceKey(caseID, nonce)).Err(); delErr != nil {
				s.log.Warn().Err(delErr).Str("case_id", caseID).Msg("release child message nonce")
			}
		}
		return models.Message{}, err
	}

	s.afterAppend(ctx, m, recipientID)
	return m, nil
}

func (s *MessagingService) afterAppend(ctx context.Context, m models.Message, recipientID string) {
	s.invalidateUnread(ctx, recipientID)

	unread, err := s.messages.CountUnread(ctx, recipientID)
	if err != nil {
		s.log.Warn().Err(err).Str("recipient_id", recipientID).Msg("count unread after send")
	}
	if s.hub != nil {
		s.hub.PublishToUser(ctx, recipientID, realtime.Event{
			Type:      realtime.EventMessageCreated,
			CaseID:    m.CaseID,
			MessageID: m.ID,
			Urgent:    m.Urgent,
			Unread:    unread,
		})
	}
	if s.notifier != nil {
		title := "New message"
		if m.Urgent {
			title = "Urgent message"
		}
		s.notifier.Notify(ctx, recipientID, "new_message", title, "You have a new message on one of your cases.")
	}
}

// Thread returns the case's messages and transitions the caller's fetched
// inbound messages from sent to delivered.
func (s *MessagingService) Thread(ctx context.Context, id authz.Identity, caseID string, limit, offset int) ([]models.Message, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeThread(ctx, id, c); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	messages, err := s.messages.ListByCase(ctx, caseID, limit, offset)
	if err != nil {
		return nil, err
	}

	if err := s.messages.MarkDelivered(ctx, caseID, id.UserID); err != nil {
		s.log.Warn().Err(err).Str("case_id", caseID).Msg("mark delivered failed")
	}
	return messages, nil
}

// ChildThread returns only the messages the child is a party to.
func (s *MessagingService) ChildThread(ctx context.Context, caseID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	return s.messages.ListChildThread(ctx, caseID, limit, offset)
}

// MarkRead sets a message read on behalf of its recipient. Read is terminal:
// repeating the call neither fails nor bumps any counter back up.
func (s *MessagingService) MarkRead(ctx context.Context, id authz.Identity, messageID string) error {
	m, err := s.messages.MarkRead(ctx, messageID, id.UserID)
	if err != nil {
		return err
	}

	s.invalidateUnread(ctx, id.UserID)

	if s.hub != nil && m.SenderID != nil {
		s.hub.PublishToUser(ctx, *m.SenderID, realtime.Event{
			Type:      realtime.EventMessageRead,
			CaseID:    m.CaseID,
			MessageID: m.ID,
		})
	}
	return nil
}

// UnreadCount serves the badge: redis first, SQL on miss. The cache is
// dropped on every send and read so it can only ever lag behind by a TTL
// after a direct database change.
func (s *MessagingService) UnreadCount(ctx context.Context, profileID string) (int, error) {
	key := unreadKey(profileID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil {
			if n, convErr := strconv.Atoi(cached); convErr == nil {
				return n, nil
			}
		}
	}

	count, err := s.messages.CountUnread(ctx, profileID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, strconv.Itoa(count), unreadCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Msg("cache unread count")
		}
	}
	return count, nil
}

func (s *MessagingService) UnreadCountByCase(ctx context.Context, profileID string, caseID string) (int, error) {
	return s.messages.CountUnreadByCase(ctx, profileID, caseID)
}

func (s *MessagingService) invalidateUnread(ctx context.Context, profileID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, unreadKey(profileID)).Err(); err != nil {
		s.log.Warn().Err(err).Str("profile_id", profileID).Msg("invalidate unread cache")
	}
}

func unreadKey(profileID string) string {
	return "unread:" + profileID
}

func childNonceKey(caseID string, nonce string) string {
	return "child:nonce:" + caseID + ":" + nonce
}

func (s *MessagingService) authorizeThread(ctx context.Context, id authz.Identity, c models.Case) error {
	row := authz.Row{SocialWorkerID: c.SocialWorkerID}
	if c.HouseholdID != nil {
		row.HouseholdID = *c.HouseholdID
	}
	ok, err := s.evaluator.Allow(ctx, id, "messages", authz.ActionWrite, row)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAllowed
	}
	return nil
}

// counterpart picks the other human participant of the thread.
func counterpart(c models.Case, senderID string) (string, error) {
	if senderID == c.SocialWorkerID {
		if c.FosterCarerID == nil {
			return "", ErrNoRecipient
		}
		return *c.FosterCarerID, nil
	}
	return c.SocialWorkerID, nil
}
