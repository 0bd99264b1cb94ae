package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whosehouse/api/internal/config"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/repository"
)

type fakeChildTokenStore struct {
	tokens map[string]models.ChildAccessToken
}

func newFakeChildTokenStore() *fakeChildTokenStore {
	return &fakeChildTokenStore{tokens: make(map[string]models.ChildAccessToken)}
}

func (s *fakeChildTokenStore) Create(_ context.Context, t models.ChildAccessToken) error {
	s.tokens[t.ID] = t
	return nil
}

func (s *fakeChildTokenStore) FindByHash(_ context.Context, tokenHash []byte) (models.ChildAccessToken, error) {
	for _, t := range s.tokens {
		if bytes.Equal(t.TokenHash, tokenHash) {
			return t, nil
		}
	}
	return models.ChildAccessToken{}, repository.ErrChildTokenNotFound
}

func (s *fakeChildTokenStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, t := range s.tokens {
		if !now.Before(t.ExpiresAt) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

func newChildAccessFixture(t *testing.T, base time.Time, cases ...models.Case) (*ChildAccessService, *fakeCaseStore, *fakeChildTokenStore) {
	t.Helper()

	caseStore := newFakeCaseStore(cases...)
	tokenStore := newFakeChildTokenStore()

	cfg := &config.AppConfig{}
	cfg.ChildAccess.ShortTTL = 24 * time.Hour
	cfg.ChildAccess.MediumTTL = 72 * time.Hour
	cfg.ChildAccess.LinkBase = "https://app.whosehouse.test/c"

	svc := NewChildAccessService(tokenStore, caseStore, cfg).
		WithClock(func() time.Time { return base })
	return svc, caseStore, tokenStore
}

func TestIssueRequiresAssignedWorkerAndActiveCase(t *testing.T) {
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newChildAccessFixture(t, base, activeCaseWithCarer("c1"), pendingCase("c2"))

	_, err := svc.Issue(context.Background(), carer, "c1", WindowShort)
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = svc.Issue(context.Background(), worker, "c2", WindowShort)
	assert.Error(t, err)

	result, err := svc.Issue(context.Background(), worker, "c1", WindowShort)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, result.URL, result.Token)
	assert.NotEmpty(t, result.QRPNG)
	assert.Equal(t, base.Add(24*time.Hour), result.ExpiresAt)
}

func TestIssueRejectsUnknownWindow(t *testing.T) {
	base := time.Now()
	svc, _, _ := newChildAccessFixture(t, base, activeCaseWithCarer("c1"))

	_, err := svc.Issue(context.Background(), worker, "c1", ExpiryWindow("forever"))
	assert.Error(t, err)
}

func TestValidateHonoursTheExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newChildAccessFixture(t, issuedAt, activeCaseWithCarer("c1"))

	result, err := svc.Issue(context.Background(), worker, "c1", WindowShort)
	require.NoError(t, err)

	svc.WithClock(func() time.Time { return issuedAt.Add(23 * time.Hour) })
	c, err := svc.Validate(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)

	svc.WithClock(func() time.Time { return issuedAt.Add(25 * time.Hour) })
	_, err = svc.Validate(context.Background(), result.Token)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestMediumWindowOutlivesShort(t *testing.T) {
	issuedAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newChildAccessFixture(t, issuedAt, activeCaseWithCarer("c1"))

	result, err := svc.Issue(context.Background(), worker, "c1", WindowMedium)
	require.NoError(t, err)

	svc.WithClock(func() time.Time { return issuedAt.Add(71 * time.Hour) })
	_, err = svc.Validate(context.Background(), result.Token)
	require.NoError(t, err)

	svc.WithClock(func() time.Time { return issuedAt.Add(73 * time.Hour) })
	_, err = svc.Validate(context.Background(), result.Token)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestValidateFailuresAreUniform(t *testing.T) {
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	svc, caseStore, _ := newChildAccessFixture(t, base, activeCaseWithCarer("c1"))

	// Unknown token.
	_, err := svc.Validate(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrAccessDenied)

	// Valid token whose case has since closed.
	result, err := svc.Issue(context.Background(), worker, "c1", WindowShort)
	require.NoError(t, err)
	require.NoError(t, caseStore.Close(context.Background(), "c1"))

	_, err = svc.Validate(context.Background(), result.Token)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestPurgeExpiredDropsOnlyLapsedTokens(t *testing.T) {
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newChildAccessFixture(t, base, activeCaseWithCarer("c1"))

	short, err := svc.Issue(context.Background(), worker, "c1", WindowShort)
	require.NoError(t, err)
	medium, err := svc.Issue(context.Background(), worker, "c1", WindowMedium)
	require.NoError(t, err)

	svc.WithClock(func() time.Time { return base.Add(48 * time.Hour) })
	n, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Validate(context.Background(), short.Token)
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = svc.Validate(context.Background(), medium.Token)
	assert.NoError(t, err)
}
