package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("secret123")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	// Repeated verification is stable in both directions.
	for i := 0; i < 3; i++ {
		ok, err := Verify("secret123", hash)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = Verify("wrong-password", hash)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("secret123")
	require.NoError(t, err)
	second, err := Hash("secret123")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVerifyMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536,t=3,p=2$salt",
		"$bcrypt$v=19$m=65536,t=3,p=2$AAAA$BBBB",
		"$argon2id$v=18$m=65536,t=3,p=2$AAAA$BBBB",
		"$argon2id$v=19$m=65536,t=3$AAAA$BBBB",
		"$argon2id$v=19$m=65536,t=3,p=2$!!$BBBB",
	} {
		ok, err := Verify("secret123", encoded)
		require.ErrorIs(t, err, ErrMalformedHash, "input %q", encoded)
		require.False(t, ok)
	}
}
