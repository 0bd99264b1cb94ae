package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("incorrect horse", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	first, err := HashPassword("same password")
	require.NoError(t, err)
	second, err := HashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyParsesAllHashFields(t *testing.T) {
	hash, err := HashPasswordWithParams("field delimiters", Argon2Params{
		Time:    1,
		Memory:  16 * 1024,
		Threads: 1,
		KeyLen:  32,
		SaltLen: 16,
	})
	require.NoError(t, err)

	// The salt and digest are separate dollar-delimited fields and must
	// not be consumed as a single token.
	ok, err := VerifyPassword("field delimiters", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	for _, input := range []string{
		"not-an-encoded-hash",
		"$argon2i$v=19$t=3,m=65536,p=2$c2FsdA==$aGFzaA==",
		"$argon2id$v=19$t=3,m=65536,p=2$c2FsdA==",
	} {
		_, err := VerifyPassword("anything", []byte(input))
		assert.Error(t, err, input)
	}
}
