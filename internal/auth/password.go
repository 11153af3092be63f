package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hashing algorithms understood by the Hasher.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// Argon2id parameters, OWASP 2025 recommendation.
const (
	argonTime    = 3         // iterations
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 1         // parallelism
	argonKeyLen  = 32        // output hash length
	argonSaltLen = 16        // salt length
)

// Upper bounds accepted when decoding a stored hash. Anything above is
// treated as malformed so a tampered row cannot make verification unbounded.
const (
	maxArgonMemory  = 1024 * 1024 // 1 GiB
	maxArgonTime    = 16
	minArgonSaltLen = 8
	maxArgonKeyLen  = 128
)

// dummyPassword is hashed once at construction; verifying against it burns
// the same work as a real comparison.
const dummyPassword = "user-service-timing-equaliser"

// errMalformedHash is internal: Verify reports every failure as false.
var errMalformedHash = errors.New("malformed password hash")

// HasherConfig tunes the work factor of newly created hashes.
// Verification always honours the parameters stored in the hash itself.
type HasherConfig struct {
	Algorithm       string
	ArgonMemory     uint32 // KiB
	ArgonIterations uint32
	ArgonThreads    uint8
	BcryptCost      int
}

// Hasher hashes and verifies passwords.
//
// New hashes use the configured algorithm. Verify understands both argon2id
// PHC strings and bcrypt hashes so stored credentials survive a change of
// algorithm.
//
// Thread Safety:
//   - Hasher is immutable after construction and safe for concurrent use.
type Hasher struct {
	cfg   HasherConfig
	dummy string
}

// DefaultHasherConfig returns argon2id with the package defaults.
func DefaultHasherConfig() HasherConfig {
	return HasherConfig{
		Algorithm:       AlgorithmArgon2id,
		ArgonMemory:     argonMemory,
		ArgonIterations: argonTime,
		ArgonThreads:    argonThreads,
		BcryptCost:      bcrypt.DefaultCost,
	}
}

// NewHasher validates cfg and precomputes the timing-equaliser hash.
func NewHasher(cfg HasherConfig) (*Hasher, error) {
	switch cfg.Algorithm {
	case AlgorithmArgon2id:
		if cfg.ArgonIterations == 0 || cfg.ArgonMemory == 0 || cfg.ArgonThreads == 0 {
			return nil, fmt.Errorf("argon2id parameters must be positive")
		}
	case AlgorithmBcrypt:
		if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}

	h := &Hasher{cfg: cfg}
	dummy, err := h.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("preparing hasher: %w", err)
	}
	h.dummy = dummy

	return h, nil
}

// Hash returns a salted one-way hash of password.
//
// argon2id output is a PHC string: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>.
// The only failure mode is the system random source (or a bcrypt input over
// 72 bytes), which callers should treat as an internal fault.
func (h *Hasher) Hash(password string) (string, error) {
	if h.cfg.Algorithm == AlgorithmBcrypt {
		out, err := bcrypt.GenerateFromPassword([]byte(password), h.cfg.BcryptCost)
		if err != nil {
			return "", fmt.Errorf("hashing password: %w", err)
		}
		return string(out), nil
	}

	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt,
		h.cfg.ArgonIterations, h.cfg.ArgonMemory, h.cfg.ArgonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.ArgonMemory, h.cfg.ArgonIterations, h.cfg.ArgonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify reports whether password matches encoded.
//
// It never returns an error: a malformed hash, an unknown algorithm or
// version and a plain mismatch all yield false, and the malformed cases
// still run a full-cost derivation against a dummy hash.
func (h *Hasher) Verify(password, encoded string) bool {
	ok, err := compare(password, encoded)
	if err != nil {
		h.burn(password)
		return false
	}
	return ok
}

// burn runs one full-cost comparison whose result is discarded.
func (h *Hasher) burn(password string) {
	_, _ = compare(password, h.dummy) //nolint:errcheck // result intentionally discarded
}

// compare dispatches on the hash prefix. A non-nil error means the hash could
// not be evaluated at all (no derivation has run).
func compare(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		salt, hash, params, err := decodePHC(encoded)
		if err != nil {
			return false, err
		}
		candidate := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(hash))) //nolint:gosec // G115: bounded by maxArgonKeyLen
		return subtle.ConstantTimeCompare(hash, candidate) == 1, nil

	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		// bcrypt parses the cost before hashing; anything other than a
		// mismatch means no derivation happened.
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %w", errMalformedHash, err)
		}

	default:
		return false, errMalformedHash
	}
}

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// decodePHC parses an Argon2id PHC string into its components and rejects
// versions and parameters outside the accepted bounds.
func decodePHC(encoded string) (salt, hash []byte, params argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, fmt.Errorf("%w: invalid PHC format", errMalformedHash)
	}

	if parts[1] != AlgorithmArgon2id {
		return nil, nil, params, fmt.Errorf("%w: unsupported algorithm %s", errMalformedHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("%w: parsing version: %w", errMalformedHash, err)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("%w: unsupported version %d", errMalformedHash, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("%w: parsing parameters: %w", errMalformedHash, err)
	}
	if params.time == 0 || params.time > maxArgonTime ||
		params.memory == 0 || params.memory > maxArgonMemory || params.threads == 0 {
		return nil, nil, params, fmt.Errorf("%w: parameters out of range", errMalformedHash)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minArgonSaltLen {
		return nil, nil, params, fmt.Errorf("%w: bad salt", errMalformedHash)
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 || len(hash) > maxArgonKeyLen {
		return nil, nil, params, fmt.Errorf("%w: bad hash", errMalformedHash)
	}

	return salt, hash, params, nil
}
