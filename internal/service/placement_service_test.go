package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whosehouse/api/internal/authz"
	"whosehouse/api/internal/config"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/repository"
)

type staticEnv map[string]models.Role

func (e staticEnv) RoleOf(_ context.Context, userID string) (models.Role, error) {
	return e[userID], nil
}

type fakeCaseStore struct {
	cases map[string]models.Case
}

func newFakeCaseStore(cases ...models.Case) *fakeCaseStore {
	s := &fakeCaseStore{cases: make(map[string]models.Case)}
	for _, c := range cases {
		s.cases[c.ID] = c
	}
	return s
}

func (s *fakeCaseStore) Create(_ context.Context, c models.Case) error {
	s.cases[c.ID] = c
	return nil
}

func (s *fakeCaseStore) GetByID(_ context.Context, id string) (models.Case, error) {
	c, ok := s.cases[id]
	if !ok {
		return models.Case{}, repository.ErrCaseNotFound
	}
	return c, nil
}

func (s *fakeCaseStore) FindByRequestKey(_ context.Context, socialWorkerID string, requestKey string) (models.Case, error) {
	for _, c := range s.cases {
		if c.SocialWorkerID == socialWorkerID && c.RequestKey != nil && *c.RequestKey == requestKey {
			return c, nil
		}
	}
	return models.Case{}, repository.ErrCaseNotFound
}

func (s *fakeCaseStore) Close(_ context.Context, id string) error {
	c, ok := s.cases[id]
	if !ok {
		return repository.ErrCaseNotFound
	}
	c.Status = models.CaseStatusClosed
	s.cases[id] = c
	return nil
}

func (s *fakeCaseStore) ListBySocialWorker(_ context.Context, socialWorkerID string, _, _ int) ([]models.Case, error) {
	var out []models.Case
	for _, c := range s.cases {
		if c.SocialWorkerID == socialWorkerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCaseStore) ListByHousehold(_ context.Context, householdID string, _, _ int) ([]models.Case, error) {
	var out []models.Case
	for _, c := range s.cases {
		if c.HouseholdID != nil && *c.HouseholdID == householdID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCaseStore) ListByOrganization(_ context.Context, organizationID string, _, _ int) ([]models.Case, error) {
	var out []models.Case
	for _, c := range s.cases {
		if c.OrganizationID == organizationID {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakeRequestStore mirrors the transactional accept semantics: a decided
// request fails, a taken case fails, and accepting closes the household's
// prior active cases before activating the new one.
type fakeRequestStore struct {
	requests map[string]models.PlacementRequest
	cases    *fakeCaseStore
	clock    func() time.Time
}

func newFakeRequestStore(cases *fakeCaseStore, clock func() time.Time, requests ...models.PlacementRequest) *fakeRequestStore {
	s := &fakeRequestStore{requests: make(map[string]models.PlacementRequest), cases: cases, clock: clock}
	for _, pr := range requests {
		s.requests[pr.ID] = pr
	}
	return s
}

func (s *fakeRequestStore) Create(_ context.Context, pr models.PlacementRequest) error {
	s.requests[pr.ID] = pr
	return nil
}

func (s *fakeRequestStore) GetByID(_ context.Context, id string) (models.PlacementRequest, error) {
	pr, ok := s.requests[id]
	if !ok {
		return models.PlacementRequest{}, repository.ErrRequestNotFound
	}
	return pr, nil
}

func (s *fakeRequestStore) ListByHousehold(_ context.Context, householdID string, _, _ int) ([]models.PlacementRequest, error) {
	var out []models.PlacementRequest
	for _, pr := range s.requests {
		if pr.HouseholdID == householdID {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (s *fakeRequestStore) ListByCase(_ context.Context, caseID string) ([]models.PlacementRequest, error) {
	var out []models.PlacementRequest
	for _, pr := range s.requests {
		if pr.CaseID == caseID {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (s *fakeRequestStore) Accept(_ context.Context, requestID string, carerID string, now time.Time) (string, error) {
	pr, ok := s.requests[requestID]
	if !ok {
		return "", repository.ErrRequestNotFound
	}
	if pr.Outcome != models.OutcomePending {
		return "", repository.ErrRequestDecided
	}
	if !pr.ExpiresAt.After(now) {
		pr.Outcome = models.OutcomeExpired
		s.requests[requestID] = pr
		return "", repository.ErrRequestExpired
	}

	target, ok := s.cases.cases[pr.CaseID]
	if !ok {
		return "", repository.ErrCaseNotFound
	}
	if target.Status != models.CaseStatusPending {
		return "", repository.ErrCaseConflict
	}

	for id, c := range s.cases.cases {
		if c.Status == models.CaseStatusActive && c.HouseholdID != nil && *c.HouseholdID == pr.HouseholdID {
			c.Status = models.CaseStatusClosed
			closedAt := now
			c.ClosedAt = &closedAt
			s.cases.cases[id] = c
		}
	}

	target.Status = models.CaseStatusActive
	target.FosterCarerID = &carerID
	householdID := pr.HouseholdID
	target.HouseholdID = &householdID
	activatedAt := now
	target.ActivatedAt = &activatedAt
	s.cases.cases[pr.CaseID] = target

	pr.Outcome = models.OutcomeAccepted
	pr.DecidedAt = &now
	s.requests[requestID] = pr
	return pr.CaseID, nil
}

func (s *fakeRequestStore) Decline(_ context.Context, requestID string, _ string, now time.Time) error {
	pr, ok := s.requests[requestID]
	if !ok {
		return repository.ErrRequestNotFound
	}
	if pr.Outcome == models.OutcomeExpired {
		return repository.ErrRequestExpired
	}
	if pr.Outcome != models.OutcomePending {
		return repository.ErrRequestDecided
	}
	if !pr.ExpiresAt.After(now) {
		pr.Outcome = models.OutcomeExpired
		pr.DecidedAt = &now
		s.requests[requestID] = pr
		return repository.ErrRequestExpired
	}
	pr.Outcome = models.OutcomeDeclined
	pr.DecidedAt = &now
	s.requests[requestID] = pr
	return nil
}

type fakeHouseholdStore struct {
	households map[string]models.Household
	primary    map[string]string
	matches    []models.HouseholdMatch
}

func (s *fakeHouseholdStore) GetByID(_ context.Context, id string) (models.Household, error) {
	h, ok := s.households[id]
	if !ok {
		return models.Household{}, repository.ErrHouseholdNotFound
	}
	return h, nil
}

func (s *fakeHouseholdStore) Search(_ context.Context, _ string, _ bool, _ int) ([]models.HouseholdMatch, error) {
	return s.matches, nil
}

func (s *fakeHouseholdStore) PrimaryCarer(_ context.Context, householdID string) (string, error) {
	id, ok := s.primary[householdID]
	if !ok {
		return "", repository.ErrHouseholdNotFound
	}
	return id, nil
}

type recordedNotification struct {
	RecipientID string
	Kind        string
}

type recordingNotifier struct {
	sent []recordedNotification
}

func (n *recordingNotifier) Notify(_ context.Context, recipientID string, kind string, _ string, _ string) {
	n.sent = append(n.sent, recordedNotification{RecipientID: recipientID, Kind: kind})
}

var (
	workerID  = "sw1"
	carerID   = "fc1"
	household = "hh1"

	worker = authz.Identity{UserID: workerID, Role: models.RoleSocialWorker, OrganizationID: "org1"}
	carer  = authz.Identity{UserID: carerID, Role: models.RoleFosterCarer, OrganizationID: "org1", HouseholdID: household}
)

func newPlacementFixture(t *testing.T, base time.Time, cases ...models.Case) (*PlacementService, *fakeCaseStore, *fakeRequestStore, *recordingNotifier) {
	t.Helper()

	caseStore := newFakeCaseStore(cases...)
	clock := func() time.Time { return base }
	requestStore := newFakeRequestStore(caseStore, clock)
	households := &fakeHouseholdStore{
		households: map[string]models.Household{
			household: {ID: household, OrganizationID: "org1", Bedrooms: 2, SharingAllowed: true},
		},
		primary: map[string]string{household: carerID},
	}
	notifier := &recordingNotifier{}

	cfg := &config.AppConfig{}
	cfg.Placement.RequestTTL = 48 * time.Hour

	svc := NewPlacementService(
		caseStore,
		requestStore,
		households,
		authz.Default(staticEnv{}),
		nil,
		notifier,
		cfg,
		zerolog.Nop(),
	).WithClock(clock)

	return svc, caseStore, requestStore, notifier
}

func pendingCase(id string) models.Case {
	return models.Case{
		ID:             id,
		CaseNumber:     "WH-" + id,
		Status:         models.CaseStatusPending,
		OrganizationID: "org1",
		SocialWorkerID: workerID,
		PlacementType:  models.PlacementRespite,
	}
}

func pendingRequest(id, caseID string, expiresAt time.Time) models.PlacementRequest {
	return models.PlacementRequest{
		ID:             id,
		CaseID:         caseID,
		HouseholdID:    household,
		SocialWorkerID: workerID,
		Outcome:        models.OutcomePending,
		ExpiresAt:      expiresAt,
	}
}

func TestCreateCaseRequiresSocialWorker(t *testing.T) {
	svc, _, _, _ := newPlacementFixture(t, time.Now())

	_, err := svc.CreateCase(context.Background(), carer, CreateCaseInput{PlacementType: models.PlacementRespite})
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestCreateCaseReplayedKeyReturnsOriginal(t *testing.T) {
	svc, _, _, _ := newPlacementFixture(t, time.Now())
	input := CreateCaseInput{PlacementType: models.PlacementEmergency, RequestKey: "retry-123"}

	first, err := svc.CreateCase(context.Background(), worker, input)
	require.NoError(t, err)

	second, err := svc.CreateCase(context.Background(), worker, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSendRequestStampsExpiryAndNotifiesCarer(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, _, requestStore, notifier := newPlacementFixture(t, base, pendingCase("c1"))

	pr, err := svc.SendRequest(context.Background(), worker, "c1", household, "urgent respite needed")
	require.NoError(t, err)

	assert.Equal(t, base.Add(48*time.Hour), pr.ExpiresAt)
	assert.Equal(t, models.OutcomePending, pr.Outcome)
	assert.Contains(t, requestStore.requests, pr.ID)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, carerID, notifier.sent[0].RecipientID)
	assert.Equal(t, "placement_request", notifier.sent[0].Kind)
}

func TestSendRequestRejectsNonPendingCase(t *testing.T) {
	active := pendingCase("c1")
	active.Status = models.CaseStatusActive
	svc, _, _, _ := newPlacementFixture(t, time.Now(), active)

	_, err := svc.SendRequest(context.Background(), worker, "c1", household, "")
	assert.Error(t, err)
}

func TestAcceptActivatesCaseAndClosesPriorPlacement(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	prior := pendingCase("old")
	prior.Status = models.CaseStatusActive
	hh := household
	prior.HouseholdID = &hh

	svc, caseStore, requestStore, notifier := newPlacementFixture(t, base, prior, pendingCase("c1"))
	requestStore.requests["r1"] = pendingRequest("r1", "c1", base.Add(time.Hour))

	activated, err := svc.Accept(context.Background(), carer, "r1")
	require.NoError(t, err)

	assert.Equal(t, models.CaseStatusActive, activated.Status)
	require.NotNil(t, activated.FosterCarerID)
	assert.Equal(t, carerID, *activated.FosterCarerID)
	require.NotNil(t, activated.HouseholdID)
	assert.Equal(t, household, *activated.HouseholdID)

	// One household, one active placement: the previous case closed.
	assert.Equal(t, models.CaseStatusClosed, caseStore.cases["old"].Status)
	assert.Equal(t, models.OutcomeAccepted, requestStore.requests["r1"].Outcome)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, workerID, notifier.sent[0].RecipientID)
	assert.Equal(t, "placement_accepted", notifier.sent[0].Kind)
}

func TestAcceptExpiredRequestFailsDistinctly(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, caseStore, requestStore, _ := newPlacementFixture(t, base, pendingCase("c1"))
	requestStore.requests["r1"] = pendingRequest("r1", "c1", base.Add(-time.Minute))

	_, err := svc.Accept(context.Background(), carer, "r1")
	assert.ErrorIs(t, err, repository.ErrRequestExpired)
	assert.Equal(t, models.CaseStatusPending, caseStore.cases["c1"].Status)
}

func TestAcceptOtherHouseholdsRequestDenied(t *testing.T) {
	base := time.Now()
	svc, _, requestStore, _ := newPlacementFixture(t, base, pendingCase("c1"))
	requestStore.requests["r1"] = pendingRequest("r1", "c1", base.Add(time.Hour))

	other := authz.Identity{UserID: "fc9", Role: models.RoleFosterCarer, HouseholdID: "hh9"}
	_, err := svc.Accept(context.Background(), other, "r1")
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestAcceptDecidedRequestConflicts(t *testing.T) {
	base := time.Now()
	svc, _, requestStore, _ := newPlacementFixture(t, base, pendingCase("c1"))
	pr := pendingRequest("r1", "c1", base.Add(time.Hour))
	pr.Outcome = models.OutcomeDeclined
	requestStore.requests["r1"] = pr

	_, err := svc.Accept(context.Background(), carer, "r1")
	assert.ErrorIs(t, err, repository.ErrRequestDecided)
}

func TestAcceptTakenCaseConflicts(t *testing.T) {
	base := time.Now()
	taken := pendingCase("c1")
	taken.Status = models.CaseStatusActive
	svc, _, requestStore, _ := newPlacementFixture(t, base, taken)
	requestStore.requests["r1"] = pendingRequest("r1", "c1", base.Add(time.Hour))

	_, err := svc.Accept(context.Background(), carer, "r1")
	assert.ErrorIs(t, err, repository.ErrCaseConflict)
}

func TestDeclineRecordsOutcomeAndNotifiesWorker(t *testing.T) {
	base := time.Now()
	svc, _, requestStore, notifier := newPlacementFixture(t, base, pendingCase("c1"))
	requestStore.requests["r1"] = pendingRequest("r1", "c1", base.Add(time.Hour))

	require.NoError(t, svc.Decline(context.Background(), carer, "r1"))

	assert.Equal(t, models.OutcomeDeclined, requestStore.requests["r1"].Outcome)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "placement_declined", notifier.sent[0].Kind)
}

func TestDeclineExpiredRequestReportsExpiry(t *testing.T) {
	base := time.Now()
	svc, _, requestStore, notifier := newPlacementFixture(t, base, pendingCase("c1"))
	requestStore.requests["r1"] = pendingRequest("r1", "c1", base.Add(-time.Minute))

	err := svc.Decline(context.Background(), carer, "r1")
	assert.ErrorIs(t, err, repository.ErrRequestExpired)
	assert.Empty(t, notifier.sent)
}

func TestGetCaseEnforcesRowPolicy(t *testing.T) {
	svc, _, _, _ := newPlacementFixture(t, time.Now(), pendingCase("c1"))

	_, err := svc.GetCase(context.Background(), worker, "c1")
	require.NoError(t, err)

	stranger := authz.Identity{UserID: "sw9", Role: models.RoleSocialWorker, OrganizationID: "org9"}
	_, err = svc.GetCase(context.Background(), stranger, "c1")
	assert.ErrorIs(t, err, ErrNotAllowed)
}
