package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	claims := AccessClaims{
		UserID:         "u1",
		SessionID:      "s1",
		DeviceID:       "d1",
		Role:           "social_worker",
		OrganizationID: "org1",
		HouseholdID:    "hh1",
	}

	signed, err := GenerateAccessToken("test-secret", claims, time.Minute)
	require.NoError(t, err)

	parsed, err := ParseAccessToken(signed, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", parsed.UserID)
	assert.Equal(t, "s1", parsed.SessionID)
	assert.Equal(t, "d1", parsed.DeviceID)
	assert.Equal(t, "social_worker", parsed.Role)
	assert.Equal(t, "org1", parsed.OrganizationID)
	assert.Equal(t, "hh1", parsed.HouseholdID)
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	signed, err := GenerateAccessToken("good-secret", AccessClaims{UserID: "u1"}, time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(signed, "bad-secret")
	assert.Error(t, err)
}

func TestAccessTokenRejectsExpired(t *testing.T) {
	signed, err := GenerateAccessToken("secret", AccessClaims{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(signed, "secret")
	assert.Error(t, err)
}

func TestOpaqueTokensAreUniqueAndHashStable(t *testing.T) {
	token1, hash1, err := GenerateOpaqueToken(32)
	require.NoError(t, err)
	token2, hash2, err := GenerateOpaqueToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, token1, token2)
	assert.NotEqual(t, hash1, hash2)
	assert.Equal(t, hash1, HashOpaqueToken(token1))
	assert.Len(t, hash1, 32)
}
