package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whosehouse/api/internal/config"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/repository"
	"whosehouse/api/internal/security"
)

type fakeProfileGetter struct {
	profiles map[string]models.Profile
	err      error
}

func (f *fakeProfileGetter) GetByID(_ context.Context, id string) (models.Profile, error) {
	if f.err != nil {
		return models.Profile{}, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return models.Profile{}, repository.ErrProfileNotFound
	}
	return p, nil
}

type fakeSessionStore struct {
	sessions map[string]models.Session
	err      error
}

func (f *fakeSessionStore) GetByID(_ context.Context, id string) (models.Session, error) {
	if f.err != nil {
		return models.Session{}, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessionStore) Touch(_ context.Context, _ string, _ string, _ string) error {
	return nil
}

const testSecret = "test-access-secret"

func newAuthFixture(t *testing.T, profiles *fakeProfileGetter, sessions *fakeSessionStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{Security: config.SecurityConfig{JWTAccessSecret: testSecret}}
	r := gin.New()
	r.GET("/me", Auth(cfg, profiles, sessions), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func mintToken(t *testing.T) string {
	t.Helper()
	token, err := security.GenerateAccessToken(testSecret, security.AccessClaims{
		UserID:         "u1",
		SessionID:      "s1",
		DeviceID:       "d1",
		Role:           string(models.RoleSocialWorker),
		OrganizationID: "org1",
	}, time.Minute)
	require.NoError(t, err)
	return token
}

func doRequest(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func activeSession() models.Session {
	return models.Session{ID: "s1", ProfileID: "u1", DeviceID: "d1"}
}

func activeProfile() models.Profile {
	return models.Profile{ID: "u1", Role: models.RoleSocialWorker, Status: models.ProfileStatusActive}
}

func TestAuthAcceptsLiveSession(t *testing.T) {
	r := newAuthFixture(t,
		&fakeProfileGetter{profiles: map[string]models.Profile{"u1": activeProfile()}},
		&fakeSessionStore{sessions: map[string]models.Session{"s1": activeSession()}},
	)

	w := doRequest(r, mintToken(t))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMissingProfileIsUnauthorized(t *testing.T) {
	r := newAuthFixture(t,
		&fakeProfileGetter{profiles: map[string]models.Profile{}},
		&fakeSessionStore{sessions: map[string]models.Session{"s1": activeSession()}},
	)

	w := doRequest(r, mintToken(t))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "profile_missing")
}

func TestAuthProfileStoreErrorIsNotASignOut(t *testing.T) {
	r := newAuthFixture(t,
		&fakeProfileGetter{err: errors.New("connection refused")},
		&fakeSessionStore{sessions: map[string]models.Session{"s1": activeSession()}},
	)

	w := doRequest(r, mintToken(t))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "profile_missing")
}

func TestAuthSessionStoreErrorIsNotASignOut(t *testing.T) {
	r := newAuthFixture(t,
		&fakeProfileGetter{profiles: map[string]models.Profile{"u1": activeProfile()}},
		&fakeSessionStore{err: errors.New("connection refused")},
	)

	w := doRequest(r, mintToken(t))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAuthDeadSessionIsUnauthorized(t *testing.T) {
	r := newAuthFixture(t,
		&fakeProfileGetter{profiles: map[string]models.Profile{"u1": activeProfile()}},
		&fakeSessionStore{sessions: map[string]models.Session{}},
	)

	w := doRequest(r, mintToken(t))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "session_not_found")
}

func TestAuthDeactivatedProfileIsForbidden(t *testing.T) {
	deactivated := activeProfile()
	deactivated.Status = models.ProfileStatusDeactivated
	r := newAuthFixture(t,
		&fakeProfileGetter{profiles: map[string]models.Profile{"u1": deactivated}},
		&fakeSessionStore{sessions: map[string]models.Session{"s1": activeSession()}},
	)

	w := doRequest(r, mintToken(t))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
