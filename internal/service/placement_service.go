package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"whosehouse/api/internal/authz"
	"whosehouse/api/internal/config"
	"whosehouse/api/internal/ids"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/realtime"
	"whosehouse/api/internal/repository"
)

var ErrNotAllowed = errors.New("not allowed")

type CaseStore interface {
	Create(ctx context.Context, c models.Case) error
	GetByID(ctx context.Context, id string) (models.Case, error)
	FindByRequestKey(ctx context.Context, socialWorkerID string, requestKey string) (models.Case, error)
	Close(ctx context.Context, id string) error
	ListBySocialWorker(ctx context.Context, socialWorkerID string, limit, offset int) ([]models.Case, error)
	ListByHousehold(ctx context.Context, householdID string, limit, offset int) ([]models.Case, error)
	ListByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]models.Case, error)
}

type RequestStore interface {
	Create(ctx context.Context, pr models.PlacementRequest) error
	GetByID(ctx context.Context, id string) (models.PlacementRequest, error)
	ListByHousehold(ctx context.Context, householdID string, limit, offset int) ([]models.PlacementRequest, error)
	ListByCase(ctx context.Context, caseID string) ([]models.PlacementRequest, error)
	Accept(ctx context.Context, requestID string, carerID string, now time.Time) (string, error)
	Decline(ctx context.Context, requestID string, carerID string, now time.Time) error
}

type HouseholdStore interface {
	GetByID(ctx context.Context, id string) (models.Household, error)
	Search(ctx context.Context, organizationID string, needsSharing bool, limit int) ([]models.HouseholdMatch, error)
	PrimaryCarer(ctx context.Context, householdID string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, recipientID string, kind string, title string, body string)
}

type PlacementService struct {
	cases      CaseStore
	requests   RequestStore
	households HouseholdStore
	evaluator  *authz.Evaluator
	hub        *realtime.Hub
	notifier   Notifier
	cfg        *config.AppConfig
	log        zerolog.Logger
	now        func() time.Time
}

func NewPlacementService(
	cases CaseStore,
	requests RequestStore,
	households HouseholdStore,
	evaluator *authz.Evaluator,
	hub *realtime.Hub,
	notifier Notifier,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *PlacementService {
	return &PlacementService{
		cases:      cases,
		requests:   requests,
		households: households,
		evaluator:  evaluator,
		hub:        hub,
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// WithClock overrides the service clock. Tests use it to cross expiry
// boundaries deterministically.
func (s *PlacementService) WithClock(now func() time.Time) *PlacementService {
	s.now = now
	return s
}

type CreateCaseInput struct {
	PlacementType   models.PlacementType
	RoomSharingOK   bool
	ChildDescriptor string
	// RequestKey deduplicates retried submissions; a replayed key returns
	// the case created the first time instead of a duplicate.
	RequestKey string
}

func (s *PlacementService) CreateCase(ctx context.Context, id authz.Identity, input CreateCaseInput) (models.Case, error) {
	if id.Role != models.RoleSocialWorker {
		return models.Case{}, ErrNotAllowed
	}
	switch input.PlacementType {
	case models.PlacementRespite, models.PlacementLongTerm, models.PlacementEmergency:
	default:
		return models.Case{}, fmt.Errorf("invalid placement type %q", input.PlacementType)
	}

	if input.RequestKey != "" {
		existing, err := s.cases.FindByRequestKey(ctx, id.UserID, input.RequestKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repository.ErrCaseNotFound) {
			return models.Case{}, err
		}
	}

	now := s.now()
	c := models.Case{
		ID:              ids.New(),
		CaseNumber:      fmt.Sprintf("WH-%s", now.Format("20060102-150405")),
		Status:          models.CaseStatusPending,
		OrganizationID:  id.OrganizationID,
		SocialWorkerID:  id.UserID,
		ChildDescriptor: input.ChildDescriptor,
		PlacementType:   input.PlacementType,
		RoomSharingOK:   input.RoomSharingOK,
	}
	if input.RequestKey != "" {
		c.RequestKey = &input.RequestKey
	}

	if err := s.cases.Create(ctx, c); err != nil {
		return models.Case{}, err
	}
	return c, nil
}

func (s *PlacementService) GetCase(ctx context.Context, id authz.Identity, caseID string) (models.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return models.Case{}, err
	}
	if err := s.authorizeCase(ctx, id, c, authz.ActionRead); err != nil {
		return models.Case{}, err
	}
	return c, nil
}

func (s *PlacementService) ListCases(ctx context.Context, id authz.Identity, limit, offset int) ([]models.Case, error) {
	switch id.Role {
	case models.RoleAdmin:
		return s.cases.ListByOrganization(ctx, id.OrganizationID, limit, offset)
	case models.RoleSocialWorker:
		return s.cases.ListBySocialWorker(ctx, id.UserID, limit, offset)
	case models.RoleFosterCarer:
		if id.HouseholdID == "" {
			return nil, nil
		}
		return s.cases.ListByHousehold(ctx, id.HouseholdID, limit, offset)
	default:
		return nil, ErrNotAllowed
	}
}

func (s *PlacementService) CloseCase(ctx context.Context, id authz.Identity, caseID string) error {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return err
	}
	if id.Role != models.RoleAdmin && c.SocialWorkerID != id.UserID {
		return ErrNotAllowed
	}
	return s.cases.Close(ctx, caseID)
}

// SearchHouseholds is step two of the flow: rank available households for a
// pending case. Sharing-incompatible households are filtered out when the
// case needs a shared room.
func (s *PlacementService) SearchHouseholds(ctx context.Context, id authz.Identity, caseID string, limit int) ([]models.HouseholdMatch, error) {
	if id.Role != models.RoleSocialWorker {
		return nil, ErrNotAllowed
	}
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.SocialWorkerID != id.UserID {
		return nil, ErrNotAllowed
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.households.Search(ctx, id.OrganizationID, c.RoomSharingOK, limit)
}

// SendRequest is step three: offer the case to the chosen household for a
// fixed window.
func (s *PlacementService) SendRequest(ctx context.Context, id authz.Identity, caseID string, householdID string, message string) (models.PlacementRequest, error) {
	if id.Role != models.RoleSocialWorker {
		return models.PlacementRequest{}, ErrNotAllowed
	}
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return models.PlacementRequest{}, err
	}
	if c.SocialWorkerID != id.UserID {
		return models.PlacementRequest{}, ErrNotAllowed
	}
	if c.Status != models.CaseStatusPending {
		return models.PlacementRequest{}, fmt.Errorf("case is %s, not pending", c.Status)
	}
	if _, err := s.households.GetByID(ctx, householdID); err != nil {
		return models.PlacementRequest{}, err
	}

	pr := models.PlacementRequest{
		ID:             ids.New(),
		CaseID:         caseID,
		HouseholdID:    householdID,
		SocialWorkerID: id.UserID,
		Message:        message,
		Outcome:        models.OutcomePending,
		ExpiresAt:      s.now().Add(s.cfg.Placement.RequestTTL),
	}
	if err := s.requests.Create(ctx, pr); err != nil {
		return models.PlacementRequest{}, err
	}

	if s.notifier != nil {
		if carerID, err := s.households.PrimaryCarer(ctx, householdID); err == nil {
			s.notifier.Notify(ctx, carerID, "placement_request", "New placement request",
				fmt.Sprintf("A %s placement has been offered to your household.", c.PlacementType))
		} else {
			s.log.Warn().Err(err).Str("household_id", householdID).Msg("resolve primary carer")
		}
	}
	return pr, nil
}

func (s *PlacementService) ListRequestsForHousehold(ctx context.Context, id authz.Identity, limit, offset int) ([]models.PlacementRequest, error) {
	if id.Role != models.RoleFosterCarer || id.HouseholdID == "" {
		return nil, ErrNotAllowed
	}
	return s.requests.ListByHousehold(ctx, id.HouseholdID, limit, offset)
}

// Accept hands the decision to the store's transactional accept, then fans
// out the state change. Only a carer of the target household may accept, and
// an expired request is re-checked here before touching the store so the
// distinct expiry error always wins over a conflict.
func (s *PlacementService) Accept(ctx context.Context, id authz.Identity, requestID string) (models.Case, error) {
	pr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return models.Case{}, err
	}
	if id.Role != models.RoleFosterCarer || id.HouseholdID != pr.HouseholdID {
		return models.Case{}, ErrNotAllowed
	}
	if pr.Outcome == models.OutcomePending && !pr.ExpiresAt.After(s.now()) {
		return models.Case{}, repository.ErrRequestExpired
	}

	caseID, err := s.requests.Accept(ctx, requestID, id.UserID, s.now())
	if err != nil {
		return models.Case{}, err
	}

	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return models.Case{}, err
	}

	if s.hub != nil {
		s.hub.PublishToUser(ctx, pr.SocialWorkerID, realtime.Event{
			Type:   realtime.EventPlacementUpdated,
			CaseID: caseID,
		})
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, pr.SocialWorkerID, "placement_accepted", "Placement accepted",
			fmt.Sprintf("Case %s was accepted.", c.CaseNumber))
	}
	return c, nil
}

func (s *PlacementService) Decline(ctx context.Context, id authz.Identity, requestID string) error {
	pr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if id.Role != models.RoleFosterCarer || id.HouseholdID != pr.HouseholdID {
		return ErrNotAllowed
	}
	if pr.Outcome == models.OutcomePending && !pr.ExpiresAt.After(s.now()) {
		return repository.ErrRequestExpired
	}

	if err := s.requests.Decline(ctx, requestID, id.UserID, s.now()); err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, pr.SocialWorkerID, "placement_declined", "Placement declined",
			"The household declined the placement request. Search again to find another match.")
	}
	return nil
}

func (s *PlacementService) authorizeCase(ctx context.Context, id authz.Identity, c models.Case, action authz.Action) error {
	row := authz.Row{
		OrganizationID: c.OrganizationID,
		SocialWorkerID: c.SocialWorkerID,
	}
	if c.HouseholdID != nil {
		row.HouseholdID = *c.HouseholdID
	}
	ok, err := s.evaluator.Allow(ctx, id, "cases", action, row)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAllowed
	}
	return nil
}
