package password_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lockboxlabs/warden/internal/password"
)

func testHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(password.Params{Time: 1, Memory: 8 * 1024})
	require.NoError(t, err)
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher(t)

	digest, err := h.Hash("password123")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(digest, "$argon2id$"))

	require.True(t, h.Verify("password123", digest))
	require.False(t, h.Verify("password124", digest))
}

func TestHashUsesRandomSalt(t *testing.T) {
	h := testHasher(t)

	first, err := h.Hash("password123")
	require.NoError(t, err)
	second, err := h.Hash("password123")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, h.Verify("password123", first))
	require.True(t, h.Verify("password123", second))
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := testHasher(t)

	for _, digest := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=8192,t=1,p=2$notbase64!!$alsonot",
		"$bcrypt$v=19$m=8192,t=1,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=2$c2FsdA$aGFzaA",
	} {
		require.False(t, h.Verify("password123", digest), "digest %q must not verify", digest)
	}
}

func TestVerifyAcrossCostParameters(t *testing.T) {
	// Digests embed their own parameters, so a hasher with different
	// configured costs must still verify older digests.
	slow, err := password.NewHasher(password.Params{Time: 2, Memory: 16 * 1024})
	require.NoError(t, err)
	fast := testHasher(t)

	digest, err := slow.Hash("password123")
	require.NoError(t, err)
	require.True(t, fast.Verify("password123", digest))
}

func TestDummyVerifyAlwaysFailsSilently(t *testing.T) {
	h := testHasher(t)
	h.DummyVerify("anything")
	h.DummyVerify("")
}
