package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"whosehouse/api/internal/authz"
	"whosehouse/api/internal/config"
	"whosehouse/api/internal/ids"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/security"
)

// ErrAccessDenied is the single failure a token holder ever sees. Not-found,
// expired and inactive-case all collapse into it so nothing leaks about
// which one applied.
var ErrAccessDenied = errors.New("access denied")

type ChildTokenStore interface {
	Create(ctx context.Context, t models.ChildAccessToken) error
	FindByHash(ctx context.Context, tokenHash []byte) (models.ChildAccessToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ChildAccessService struct {
	tokens ChildTokenStore
	cases  CaseGetter
	cfg    *config.AppConfig
	now    func() time.Time
}

func NewChildAccessService(tokens ChildTokenStore, cases CaseGetter, cfg *config.AppConfig) *ChildAccessService {
	return &ChildAccessService{
		tokens: tokens,
		cases:  cases,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (s *ChildAccessService) WithClock(now func() time.Time) *ChildAccessService {
	s.now = now
	return s
}

type ExpiryWindow string

const (
	WindowShort  ExpiryWindow = "short"
	WindowMedium ExpiryWindow = "medium"
)

type IssueResult struct {
	Token     string
	URL       string
	QRPNG     []byte
	ExpiresAt time.Time
}

// Issue creates a token for an active case. Only the assigned social worker
// may issue one, and the expiry window comes from the fixed set.
func (s *ChildAccessService) Issue(ctx context.Context, id authz.Identity, caseID string, window ExpiryWindow) (IssueResult, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return IssueResult{}, err
	}
	if id.Role != models.RoleSocialWorker || c.SocialWorkerID != id.UserID {
		return IssueResult{}, ErrNotAllowed
	}
	if c.Status != models.CaseStatusActive {
		return IssueResult{}, fmt.Errorf("case is %s; tokens are issued for active cases only", c.Status)
	}

	var ttl time.Duration
	switch window {
	case WindowShort:
		ttl = s.cfg.ChildAccess.ShortTTL
	case WindowMedium:
		ttl = s.cfg.ChildAccess.MediumTTL
	default:
		return IssueResult{}, fmt.Errorf("invalid expiry window %q", window)
	}

	token, hash, err := security.GenerateOpaqueToken(32)
	if err != nil {
		return IssueResult{}, err
	}

	expiresAt := s.now().Add(ttl)
	if err := s.tokens.Create(ctx, models.ChildAccessToken{
		ID:        ids.New(),
		CaseID:    caseID,
		TokenHash: hash,
		IssuedBy:  id.UserID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return IssueResult{}, err
	}

	url := fmt.Sprintf("%s/%s", s.cfg.ChildAccess.LinkBase, token)
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return IssueResult{}, fmt.Errorf("encode qr: %w", err)
	}

	return IssueResult{
		Token:     token,
		URL:       url,
		QRPNG:     png,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate is the single use-time check: the token's hash resolves, the
// expiry has not passed, and the case is still active. Every failure is
// ErrAccessDenied.
func (s *ChildAccessService) Validate(ctx context.Context, token string) (models.Case, error) {
	t, err := s.tokens.FindByHash(ctx, security.HashOpaqueToken(token))
	if err != nil {
		return models.Case{}, ErrAccessDenied
	}
	if !s.now().Before(t.ExpiresAt) {
		return models.Case{}, ErrAccessDenied
	}

	c, err := s.cases.GetByID(ctx, t.CaseID)
	if err != nil {
		return models.Case{}, ErrAccessDenied
	}
	if c.Status != models.CaseStatusActive {
		return models.Case{}, ErrAccessDenied
	}
	return c, nil
}

// PurgeExpired removes lapsed tokens. Validation never depends on it.
func (s *ChildAccessService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}
