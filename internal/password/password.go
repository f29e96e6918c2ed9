package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/lockboxlabs/warden/internal/domain"
)

const (
	hashThreads uint8  = 2
	hashKeyLen  uint32 = 32
	hashSaltLen        = 16
)

// Params controls the argon2id work factor. Values come from configuration
// at startup and never change for the process lifetime.
type Params struct {
	Time   uint32
	Memory uint32
}

// DefaultParams matches an interactive-login latency target.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024}

// Hasher produces and verifies argon2id digests with a fixed cost.
type Hasher struct {
	params Params
	// dummy is verified against when the user lookup misses, so response
	// latency does not leak account existence.
	dummy string
}

// NewHasher builds a Hasher. Zero-value params fall back to DefaultParams.
func NewHasher(params Params) (*Hasher, error) {
	if params.Time == 0 {
		params.Time = DefaultParams.Time
	}
	if params.Memory == 0 {
		params.Memory = DefaultParams.Memory
	}
	h := &Hasher{params: params}
	dummy, err := h.Hash("warden-dummy-password")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Hash returns an argon2id hash string including parameters and salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: generate salt: %v", domain.ErrHashing, err)
	}

	sum := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, hashThreads, hashKeyLen)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(sum)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		hashThreads,
		encodedSalt,
		encodedHash,
	), nil
}

// Verify checks a password against the encoded argon2id hash. Malformed
// digests verify false rather than erroring.
func (h *Hasher) Verify(password, hash string) bool {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	version, err := parseVersion(parts[2])
	if err != nil || version != argon2.Version {
		return false
	}

	mem, timeCost, threads, err := parseParams(parts[3])
	if err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	actual := argon2.IDKey([]byte(password), salt, timeCost, mem, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// DummyVerify burns the same work as a real verification and always fails.
// Callers run this when the user lookup misses.
func (h *Hasher) DummyVerify(password string) {
	_ = h.Verify(password, h.dummy)
}

func parseVersion(value string) (int, error) {
	if !strings.HasPrefix(value, "v=") {
		return 0, fmt.Errorf("invalid version segment")
	}
	return strconv.Atoi(strings.TrimPrefix(value, "v="))
}

func parseParams(value string) (uint32, uint32, uint8, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid params segment")
	}

	mem, err := parseUint32Param(parts[0], "m=")
	if err != nil {
		return 0, 0, 0, err
	}
	timeCost, err := parseUint32Param(parts[1], "t=")
	if err != nil {
		return 0, 0, 0, err
	}
	threadsVal, err := parseUint32Param(parts[2], "p=")
	if err != nil || threadsVal > 255 {
		return 0, 0, 0, fmt.Errorf("invalid thread count")
	}
	return mem, timeCost, uint8(threadsVal), nil
}

func parseUint32Param(value, prefix string) (uint32, error) {
	if !strings.HasPrefix(value, prefix) {
		return 0, fmt.Errorf("missing prefix %q", prefix)
	}
	parsed, err := strconv.ParseUint(strings.TrimPrefix(value, prefix), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(parsed), nil
}
