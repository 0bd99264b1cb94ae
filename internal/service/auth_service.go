package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whosehouse/api/internal/config"
	"whosehouse/api/internal/ids"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/repository"
	"whosehouse/api/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrProfileInactive    = errors.New("profile deactivated")
)

type AuthService struct {
	profiles   *repository.ProfileRepository
	sessions   *repository.SessionRepository
	households *repository.HouseholdRepository
	audit      *repository.AuditRepository
	cfg        *config.AppConfig
	log        zerolog.Logger
}

func NewAuthService(
	profiles *repository.ProfileRepository,
	sessions *repository.SessionRepository,
	households *repository.HouseholdRepository,
	audit *repository.AuditRepository,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		profiles:   profiles,
		sessions:   sessions,
		households: households,
		audit:      audit,
		cfg:        cfg,
		log:        log,
	}
}

type RegisterInput struct {
	Email          string
	Password       string
	FullName       string
	Role           models.Role
	OrganizationID string
	// HouseholdName seeds the household a foster carer signs up with.
	HouseholdName string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	Profile      models.Profile
	DeviceID     string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || input.Password == "" {
		return AuthResult{}, fmt.Errorf("email and password required")
	}
	switch input.Role {
	case models.RoleSocialWorker, models.RoleFosterCarer:
	default:
		return AuthResult{}, fmt.Errorf("role %q cannot self-register", input.Role)
	}

	if _, err := s.profiles.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, fmt.Errorf("email already registered")
	} else if !errors.Is(err, repository.ErrProfileNotFound) {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	profile := models.Profile{
		ID:             ids.New(),
		Email:          input.Email,
		PasswordHash:   passwordHash,
		FullName:       input.FullName,
		Role:           input.Role,
		OrganizationID: input.OrganizationID,
		Status:         models.ProfileStatusActive,
	}

	// A foster carer brings a household into existence; they become its
	// primary carer.
	if input.Role == models.RoleFosterCarer {
		household := models.Household{
			ID:             ids.New(),
			DisplayName:    input.HouseholdName,
			OrganizationID: input.OrganizationID,
			Bedrooms:       1,
			Availability:   models.HouseholdAvailable,
		}
		if household.DisplayName == "" {
			household.DisplayName = input.FullName
		}
		if err := s.households.Create(ctx, household); err != nil {
			return AuthResult{}, err
		}
		if err := s.households.AddMember(ctx, models.HouseholdMember{
			ID:          ids.New(),
			HouseholdID: household.ID,
			ProfileID:   profile.ID,
			Primary:     true,
		}); err != nil {
			return AuthResult{}, err
		}
		profile.HouseholdID = &household.ID
	}

	if err := s.profiles.Create(ctx, profile); err != nil {
		return AuthResult{}, err
	}

	return s.createSession(ctx, profile, ids.New(), "New Device", "", "")
}

type LoginInput struct {
	Email      string
	Password   string
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	profile, err := s.profiles.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if profile.Status != models.ProfileStatusActive {
		return AuthResult{}, ErrProfileInactive
	}

	ok, err := security.VerifyPassword(input.Password, profile.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	deviceID := input.DeviceID
	if deviceID == "" {
		deviceID = ids.New()
	}
	deviceName := input.DeviceName
	if deviceName == "" {
		deviceName = "Unknown Device"
	}

	result, err := s.createSession(ctx, profile, deviceID, deviceName, input.IPAddress, input.UserAgent)
	if err != nil {
		return AuthResult{}, err
	}

	_ = s.profiles.TouchLastLogin(ctx, profile.ID)
	if err := s.audit.Insert(ctx, models.AuditLogEntry{
		ID:         ids.New(),
		Action:     "auth.login",
		ActorID:    &profile.ID,
		TargetType: "profile",
		TargetID:   profile.ID,
		IPAddress:  input.IPAddress,
		UserAgent:  input.UserAgent,
	}); err != nil {
		s.log.Warn().Err(err).Str("profile_id", profile.ID).Msg("audit login failed")
	}

	return result, nil
}

func (s *AuthService) createSession(
	ctx context.Context,
	profile models.Profile,
	deviceID string,
	deviceName string,
	ipAddress string,
	userAgent string,
) (AuthResult, error) {
	refreshToken, refreshHash, err := security.GenerateOpaqueToken(64)
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:               ids.New(),
		ProfileID:        profile.ID,
		DeviceID:         deviceID,
		DeviceName:       deviceName,
		RefreshTokenHash: refreshHash,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		ExpiresAt:        time.Now().Add(s.cfg.Security.JWTRefreshTTL),
	}

	accessToken, err := s.mintAccessToken(profile, session.ID, deviceID)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	if err := s.enforceSessionLimit(ctx, profile.ID); err != nil {
		s.log.Warn().Err(err).Str("profile_id", profile.ID).Msg("enforce session limit failed")
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Profile:      profile,
		DeviceID:     deviceID,
	}, nil
}

// mintAccessToken bakes role, organization and household into the claims.
// Authorization predicates read identity from these claims instead of from
// the profiles table, which is what keeps policy evaluation cycle-free.
func (s *AuthService) mintAccessToken(profile models.Profile, sessionID string, deviceID string) (string, error) {
	claims := security.AccessClaims{
		UserID:         profile.ID,
		SessionID:      sessionID,
		DeviceID:       deviceID,
		Role:           string(profile.Role),
		OrganizationID: profile.OrganizationID,
	}
	if profile.HouseholdID != nil {
		claims.HouseholdID = *profile.HouseholdID
	}
	return security.GenerateAccessToken(s.cfg.Security.JWTAccessSecret, claims, s.cfg.Security.JWTAccessTTL)
}

func (s *AuthService) enforceSessionLimit(ctx context.Context, profileID string) error {
	count, err := s.sessions.CountByProfile(ctx, profileID)
	if err != nil {
		return err
	}
	if count <= s.cfg.Security.MaxSessions {
		return nil
	}
	return s.sessions.DeleteOldest(ctx, profileID, s.cfg.Security.MaxSessions)
}

type RefreshInput struct {
	ProfileID    string
	RefreshToken string
	DeviceID     string
}

func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (AuthResult, error) {
	profile, err := s.profiles.GetByID(ctx, input.ProfileID)
	if err != nil {
		return AuthResult{}, err
	}
	if profile.Status != models.ProfileStatusActive {
		return AuthResult{}, ErrProfileInactive
	}

	refreshHash := security.HashOpaqueToken(input.RefreshToken)
	session, err := s.sessions.FindByRefreshHash(ctx, input.ProfileID, refreshHash)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	if session.DeviceID != input.DeviceID {
		return AuthResult{}, ErrInvalidCredentials
	}

	if session.ExpiresAt.Before(time.Now()) {
		_ = s.sessions.DeleteByID(ctx, session.ID)
		return AuthResult{}, ErrInvalidCredentials
	}

	refreshToken, newHash, err := security.GenerateOpaqueToken(64)
	if err != nil {
		return AuthResult{}, err
	}

	session.RefreshTokenHash = newHash
	session.ExpiresAt = time.Now().Add(s.cfg.Security.JWTRefreshTTL)

	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	accessToken, err := s.mintAccessToken(profile, session.ID, session.DeviceID)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Profile:      profile,
		DeviceID:     session.DeviceID,
	}, nil
}

// Logout clears the device's session. Sign-out is the teardown edge of the
// identity lifecycle; derived state (unread cache) expires on its own TTL.
func (s *AuthService) Logout(ctx context.Context, profileID string, deviceID string) error {
	return s.sessions.DeleteByDevice(ctx, profileID, deviceID)
}
