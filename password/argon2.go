package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	phcAlgorithm = "argon2id"

	minPasswordBytes = 10
	minSaltBytes     = 16
)

var (
	// ErrPasswordTooShort is returned by Hash for passwords under 10 bytes.
	ErrPasswordTooShort = errors.New("password: minimum length is 10 bytes")
	// ErrMalformedHash is returned when a stored hash cannot be parsed or
	// carries parameters below the accepted floor.
	ErrMalformedHash = errors.New("password: malformed hash")
)

// Params are the Argon2id cost parameters. Raising a cost only affects
// new hashes; existing hashes keep the parameters they were created with.
type Params struct {
	MemoryKB    uint32
	Iterations  uint32
	Parallelism uint8
	SaltBytes   uint32
	KeyBytes    uint32
}

// DefaultParams is a server-side interactive-login profile: 64 MiB,
// 3 iterations, 2 lanes.
func DefaultParams() Params {
	return Params{
		MemoryKB:    64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltBytes:   16,
		KeyBytes:    32,
	}
}

// Hasher hashes and verifies passwords. It is immutable and safe for
// concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates p and returns a Hasher.
func NewHasher(p Params) (*Hasher, error) {
	if p.MemoryKB < 8*1024 {
		return nil, errors.New("password: memory below 8 MiB")
	}
	if p.Iterations < 1 {
		return nil, errors.New("password: at least one iteration required")
	}
	if p.Parallelism < 1 {
		return nil, errors.New("password: at least one lane required")
	}
	if p.SaltBytes < minSaltBytes {
		return nil, errors.New("password: salt below 16 bytes")
	}
	if p.KeyBytes < 16 {
		return nil, errors.New("password: key below 16 bytes")
	}
	return &Hasher{params: p}, nil
}

// Hash derives an Argon2id hash of password under a fresh random salt and
// returns it in PHC string format. Password bytes are used exactly as
// provided, with no Unicode normalization.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPasswordBytes {
		return "", ErrPasswordTooShort
	}

	salt := make([]byte, h.params.SaltBytes)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.MemoryKB, h.params.Parallelism, h.params.KeyBytes)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2.Version,
		h.params.MemoryKB, h.params.Iterations, h.params.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. The comparison is
// constant time in the derived key; parameters come from the stored hash,
// not from the Hasher.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	stored, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), stored.salt, stored.iterations, stored.memoryKB, stored.parallelism, uint32(len(stored.key)))
	return subtle.ConstantTimeCompare(key, stored.key) == 1, nil
}

// NeedsRehash reports whether encoded was created with costs below the
// Hasher's current parameters and should be re-hashed at next login.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	stored, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if stored.memoryKB < h.params.MemoryKB ||
		stored.iterations < h.params.Iterations ||
		stored.parallelism < h.params.Parallelism {
		return true, nil
	}
	return uint32(len(stored.key)) != h.params.KeyBytes, nil
}

type storedHash struct {
	memoryKB    uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*storedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != phcAlgorithm {
		return nil, ErrMalformedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, ErrMalformedHash
	}

	var s storedHash
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, ErrMalformedHash
		}
		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil {
				return nil, ErrMalformedHash
			}
			s.memoryKB = uint32(v)
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil {
				return nil, ErrMalformedHash
			}
			s.iterations = uint32(v)
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil {
				return nil, ErrMalformedHash
			}
			s.parallelism = uint8(v)
		default:
			return nil, ErrMalformedHash
		}
	}
	if s.memoryKB == 0 || s.iterations == 0 || s.parallelism == 0 {
		return nil, ErrMalformedHash
	}

	if s.salt, err = base64.StdEncoding.DecodeString(parts[4]); err != nil || len(s.salt) < minSaltBytes {
		return nil, ErrMalformedHash
	}
	if s.key, err = base64.StdEncoding.DecodeString(parts[5]); err != nil || len(s.key) == 0 {
		return nil, ErrMalformedHash
	}
	return &s, nil
}
