package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whosehouse/api/internal/authz"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/repository"
)

type fakeMessageStore struct {
	messages  map[string]models.Message
	order     []string
	delivered []string
	createErr error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string]models.Message)}
}

func (s *fakeMessageStore) Create(_ context.Context, m models.Message) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.messages[m.ID] = m
	s.order = append(s.order, m.ID)
	return nil
}

func (s *fakeMessageStore) GetByID(_ context.Context, id string) (models.Message, error) {
	m, ok := s.messages[id]
	if !ok {
		return models.Message{}, repository.ErrMessageNotFound
	}
	return m, nil
}

func (s *fakeMessageStore) ListByCase(_ context.Context, caseID string, _, _ int) ([]models.Message, error) {
	var out []models.Message
	for _, id := range s.order {
		if s.messages[id].CaseID == caseID {
			out = append(out, s.messages[id])
		}
	}
	return out, nil
}

func (s *fakeMessageStore) ListChildThread(_ context.Context, caseID string, _, _ int) ([]models.Message, error) {
	var out []models.Message
	for _, id := range s.order {
		m := s.messages[id]
		if m.CaseID == caseID && (m.SenderID == nil || m.RecipientID == nil) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) MarkDelivered(_ context.Context, caseID string, recipientID string) error {
	s.delivered = append(s.delivered, caseID+":"+recipientID)
	for id, m := range s.messages {
		if m.CaseID == caseID && m.RecipientID != nil && *m.RecipientID == recipientID && m.Status == models.MessageStatusSent {
			m.Status = models.MessageStatusDelivered
			s.messages[id] = m
		}
	}
	return nil
}

func (s *fakeMessageStore) MarkRead(_ context.Context, messageID string, recipientID string) (models.Message, error) {
	m, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, repository.ErrMessageNotFound
	}
	if m.RecipientID == nil || *m.RecipientID != recipientID {
		return models.Message{}, repository.ErrNotRecipient
	}
	m.Status = models.MessageStatusRead
	s.messages[messageID] = m
	return m, nil
}

func (s *fakeMessageStore) CountUnread(_ context.Context, recipientID string) (int, error) {
	count := 0
	for _, m := range s.messages {
		if m.RecipientID != nil && *m.RecipientID == recipientID && m.Status != models.MessageStatusRead {
			count++
		}
	}
	return count, nil
}

func (s *fakeMessageStore) CountUnreadByCase(_ context.Context, recipientID string, caseID string) (int, error) {
	count := 0
	for _, m := range s.messages {
		if m.CaseID == caseID && m.RecipientID != nil && *m.RecipientID == recipientID && m.Status != models.MessageStatusRead {
			count++
		}
	}
	return count, nil
}

func activeCaseWithCarer(id string) models.Case {
	c := pendingCase(id)
	c.Status = models.CaseStatusActive
	fc := carerID
	hh := household
	c.FosterCarerID = &fc
	c.HouseholdID = &hh
	return c
}

func newMessagingFixture(t *testing.T, cases ...models.Case) (*MessagingService, *fakeMessageStore, *recordingNotifier) {
	t.Helper()

	messageStore := newFakeMessageStore()
	notifier := &recordingNotifier{}
	svc := NewMessagingService(
		messageStore,
		newFakeCaseStore(cases...),
		authz.Default(staticEnv{}),
		nil,
		nil,
		notifier,
		zerolog.Nop(),
	)
	return svc, messageStore, notifier
}

func TestSendRoutesToCounterpart(t *testing.T) {
	svc, store, notifier := newMessagingFixture(t, activeCaseWithCarer("c1"))

	m, err := svc.Send(context.Background(), worker, SendInput{CaseID: "c1", Content: "checking in"})
	require.NoError(t, err)
	require.NotNil(t, m.RecipientID)
	assert.Equal(t, carerID, *m.RecipientID)

	reply, err := svc.Send(context.Background(), carer, SendInput{CaseID: "c1", Content: "all well"})
	require.NoError(t, err)
	require.NotNil(t, reply.RecipientID)
	assert.Equal(t, workerID, *reply.RecipientID)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "new_message", notifier.sent[0].Kind)
	assert.Len(t, store.messages, 2)
}

func TestSendWithoutCarerHasNoRecipient(t *testing.T) {
	svc, _, _ := newMessagingFixture(t, pendingCase("c1"))

	_, err := svc.Send(context.Background(), worker, SendInput{CaseID: "c1", Content: "hello?"})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestUrgencyIsWorkerOnly(t *testing.T) {
	svc, _, _ := newMessagingFixture(t, activeCaseWithCarer("c1"))

	fromWorker, err := svc.Send(context.Background(), worker, SendInput{CaseID: "c1", Content: "call me", Urgent: true})
	require.NoError(t, err)
	assert.True(t, fromWorker.Urgent)

	fromCarer, err := svc.Send(context.Background(), carer, SendInput{CaseID: "c1", Content: "call me", Urgent: true})
	require.NoError(t, err)
	assert.False(t, fromCarer.Urgent)
}

func TestSendDeniedForOutsiders(t *testing.T) {
	svc, _, _ := newMessagingFixture(t, activeCaseWithCarer("c1"))

	outsider := authz.Identity{UserID: "fc9", Role: models.RoleFosterCarer, HouseholdID: "hh9"}
	_, err := svc.Send(context.Background(), outsider, SendInput{CaseID: "c1", Content: "hi"})
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestSendFromChildAddressesTheWorker(t *testing.T) {
	svc, _, _ := newMessagingFixture(t, activeCaseWithCarer("c1"))

	m, err := svc.SendFromChild(context.Background(), "c1", "", "I like the garden", "")
	require.NoError(t, err)

	assert.Nil(t, m.SenderID)
	assert.Equal(t, "Child", m.SenderLabel)
	require.NotNil(t, m.RecipientID)
	assert.Equal(t, workerID, *m.RecipientID)

	thread, err := svc.ChildThread(context.Background(), "c1", 0, 0)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, m.ID, thread[0].ID)
}

func newChildMessagingFixture(t *testing.T, cases ...models.Case) (*MessagingService, *fakeMessageStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	messageStore := newFakeMessageStore()
	svc := NewMessagingService(
		messageStore,
		newFakeCaseStore(cases...),
		authz.Default(staticEnv{}),
		client,
		nil,
		nil,
		zerolog.Nop(),
	)
	return svc, messageStore
}

func TestSendFromChildRejectsRepeatedNonce(t *testing.T) {
	svc, store := newChildMessagingFixture(t, activeCaseWithCarer("c1"))

	_, err := svc.SendFromChild(context.Background(), "c1", "Sam", "sent once", "n1")
	require.NoError(t, err)

	_, err = svc.SendFromChild(context.Background(), "c1", "Sam", "sent once", "n1")
	assert.ErrorIs(t, err, ErrDuplicateMessage)
	assert.Len(t, store.messages, 1)
}

func TestSendFromChildReleasesNonceWhenInsertFails(t *testing.T) {
	svc, store := newChildMessagingFixture(t, activeCaseWithCarer("c1"))

	store.createErr = errors.New("connection reset")
	_, err := svc.SendFromChild(context.Background(), "c1", "Sam", "first try", "n1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateMessage)

	// The nonce must be usable again once the failure clears.
	store.createErr = nil
	m, err := svc.SendFromChild(context.Background(), "c1", "Sam", "first try", "n1")
	require.NoError(t, err)
	assert.Len(t, store.messages, 1)
	assert.Equal(t, "first try", m.Content)
}

func TestChildThreadExcludesAdultOnlyMessages(t *testing.T) {
	svc, _, _ := newMessagingFixture(t, activeCaseWithCarer("c1"))

	_, err := svc.Send(context.Background(), worker, SendInput{CaseID: "c1", Content: "adult to adult"})
	require.NoError(t, err)
	_, err = svc.SendFromChild(context.Background(), "c1", "Sam", "from the child", "")
	require.NoError(t, err)

	thread, err := svc.ChildThread(context.Background(), "c1", 0, 0)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, "Sam", thread[0].SenderLabel)
}

func TestThreadMarksInboundDelivered(t *testing.T) {
	svc, store, _ := newMessagingFixture(t, activeCaseWithCarer("c1"))

	m, err := svc.Send(context.Background(), worker, SendInput{CaseID: "c1", Content: "hello"})
	require.NoError(t, err)

	_, err = svc.Thread(context.Background(), carer, "c1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusDelivered, store.messages[m.ID].Status)
}

func TestMarkReadDropsUnreadAndIsTerminal(t *testing.T) {
	svc, _, _ := newMessagingFixture(t, activeCaseWithCarer("c1"))

	m, err := svc.Send(context.Background(), worker, SendInput{CaseID: "c1", Content: "one"})
	require.NoError(t, err)

	count, err := svc.UnreadCount(context.Background(), carerID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, svc.MarkRead(context.Background(), carer, m.ID))

	count, err = svc.UnreadCount(context.Background(), carerID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Read is terminal: repeating the call neither errors nor resurrects
	// the counter.
	require.NoError(t, svc.MarkRead(context.Background(), carer, m.ID))
	count, err = svc.UnreadCount(context.Background(), carerID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMarkReadRejectsNonRecipient(t *testing.T) {
	svc, _, _ := newMessagingFixture(t, activeCaseWithCarer("c1"))

	m, err := svc.Send(context.Background(), worker, SendInput{CaseID: "c1", Content: "one"})
	require.NoError(t, err)

	err = svc.MarkRead(context.Background(), worker, m.ID)
	assert.ErrorIs(t, err, repository.ErrNotRecipient)
}

func TestUnreadCountByCaseScopesToThread(t *testing.T) {
	svc, _, _ := newMessagingFixture(t, activeCaseWithCarer("c1"), activeCaseWithCarer("c2"))

	_, err := svc.Send(context.Background(), worker, SendInput{CaseID: "c1", Content: "one"})
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), worker, SendInput{CaseID: "c2", Content: "two"})
	require.NoError(t, err)

	count, err := svc.UnreadCountByCase(context.Background(), carerID, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	total, err := svc.UnreadCount(context.Background(), carerID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
