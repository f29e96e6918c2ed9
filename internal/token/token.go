package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/lockboxlabs/warden/internal/domain"
)

// ExpiryLeeway absorbs clock skew between the issuer and verifiers. The
// session registry applies the same window to its stored expiry so the two
// checks agree on when a token stops being merely expired.
const ExpiryLeeway = 30 * time.Second

// Issuer signs and verifies session tokens with a process-wide HS256 secret.
// The secret is loaded once at startup and never mutated.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer. The now function is injectable for tests
// and defaults to time.Now.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// WithClock overrides the issuer's clock. Test use only.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// TTL reports the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue produces a compact signed token carrying the subject, tokenID,
// issued-at, and expiry claims.
func (i *Issuer) Issue(userID int64, tokenID string) (string, domain.TokenPayload, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: i.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", domain.TokenPayload{}, fmt.Errorf("new signer: %w", err)
	}

	now := i.now().UTC()
	expires := now.Add(i.ttl)
	claims := gojwt.Claims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        tokenID,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(expires),
	}

	signed, err := gojwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", domain.TokenPayload{}, fmt.Errorf("serialize token: %w", err)
	}

	payload := domain.TokenPayload{
		UserID:    userID,
		TokenID:   tokenID,
		IssuedAt:  now,
		ExpiresAt: expires,
	}
	return signed, payload, nil
}

// Verify checks signature integrity first, then expiry, and returns the
// payload. Any tamper or malformed input fails ErrTokenInvalid without
// revealing which part failed; a well-signed token past its expiry fails
// ErrTokenExpired.
func (i *Issuer) Verify(signed string) (domain.TokenPayload, error) {
	payload, claims, err := i.parse(signed)
	if err != nil {
		return domain.TokenPayload{}, err
	}

	if err := claims.ValidateWithLeeway(gojwt.Expected{Time: i.now()}, ExpiryLeeway); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return domain.TokenPayload{}, domain.ErrTokenExpired
		}
		return domain.TokenPayload{}, domain.ErrTokenInvalid
	}

	return payload, nil
}

// Extract validates the signature only and returns the payload regardless of
// expiry. Logout uses this so expired tokens remain revocable.
func (i *Issuer) Extract(signed string) (domain.TokenPayload, error) {
	payload, _, err := i.parse(signed)
	return payload, err
}

func (i *Issuer) parse(signed string) (domain.TokenPayload, gojwt.Claims, error) {
	parsed, err := gojwt.ParseSigned(signed, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return domain.TokenPayload{}, gojwt.Claims{}, domain.ErrTokenInvalid
	}

	var claims gojwt.Claims
	if err := parsed.Claims(i.secret, &claims); err != nil {
		return domain.TokenPayload{}, gojwt.Claims{}, domain.ErrTokenInvalid
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || claims.ID == "" {
		return domain.TokenPayload{}, gojwt.Claims{}, domain.ErrTokenInvalid
	}

	payload := domain.TokenPayload{
		UserID:  userID,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time()
	}
	if claims.Expiry != nil {
		payload.ExpiresAt = claims.Expiry.Time()
	}
	return payload, claims, nil
}
