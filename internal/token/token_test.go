package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lockboxlabs/warden/internal/domain"
	"github.com/lockboxlabs/warden/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndVerify(t *testing.T) {
	issuer := token.NewIssuer(testSecret, time.Hour)
	tokenID := uuid.NewString()

	signed, payload, err := issuer.Issue(42, tokenID)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.Equal(t, int64(42), payload.UserID)
	require.Equal(t, tokenID, payload.TokenID)
	require.WithinDuration(t, time.Now().Add(time.Hour), payload.ExpiresAt, time.Minute)

	verified, err := issuer.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, payload.UserID, verified.UserID)
	require.Equal(t, payload.TokenID, verified.TokenID)
}

func TestVerifyTamperedToken(t *testing.T) {
	issuer := token.NewIssuer(testSecret, time.Hour)

	signed, _, err := issuer.Issue(42, uuid.NewString())
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = issuer.Verify(tampered)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)

	_, err = issuer.Verify("not-a-token")
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := token.NewIssuer(testSecret, time.Hour)
	other := token.NewIssuer([]byte("ffffffffffffffffffffffffffffffff"), time.Hour)

	signed, _, err := issuer.Issue(42, uuid.NewString())
	require.NoError(t, err)

	_, err = other.Verify(signed)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestVerifyExpiredToken(t *testing.T) {
	issuer := token.NewIssuer(testSecret, time.Hour)

	past := time.Now().Add(-2 * time.Hour)
	issuer.WithClock(func() time.Time { return past })
	signed, _, err := issuer.Issue(42, uuid.NewString())
	require.NoError(t, err)

	issuer.WithClock(time.Now)
	_, err = issuer.Verify(signed)
	require.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestVerifyHonorsLeeway(t *testing.T) {
	issuer := token.NewIssuer(testSecret, time.Hour)

	// Expired 10s ago: inside the 30s leeway, so still accepted.
	skewed := time.Now().Add(-time.Hour - 10*time.Second)
	issuer.WithClock(func() time.Time { return skewed })
	signed, _, err := issuer.Issue(42, uuid.NewString())
	require.NoError(t, err)

	issuer.WithClock(time.Now)
	_, err = issuer.Verify(signed)
	require.NoError(t, err)
}

func TestExtractIgnoresExpiry(t *testing.T) {
	issuer := token.NewIssuer(testSecret, time.Hour)
	tokenID := uuid.NewString()

	past := time.Now().Add(-2 * time.Hour)
	issuer.WithClock(func() time.Time { return past })
	signed, _, err := issuer.Issue(42, tokenID)
	require.NoError(t, err)

	issuer.WithClock(time.Now)
	payload, err := issuer.Extract(signed)
	require.NoError(t, err)
	require.Equal(t, tokenID, payload.TokenID)
	require.Equal(t, int64(42), payload.UserID)

	_, err = issuer.Extract("garbage")
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}
