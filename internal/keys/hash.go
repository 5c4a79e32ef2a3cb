package keys

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidHash = errors.New("keys: invalid argon2id hash encoding")

// Hash encodes value as argon2id$time$memory$threads$salt$hash.
func Hash(value string, params Params) (string, error) {
	params = params.withDefaults()

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(value), salt, params.Time, params.Memory, params.Threads, KeyLength)
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s", params.Time, params.Memory, params.Threads, b64Salt, b64Hash), nil
}

// Verify compares value against an encoded hash in constant time.
func Verify(value, encoded string) (bool, error) {
	params, salt, hash, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(value), salt, params.Time, params.Memory, params.Threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(computed, hash) == 1, nil
}

func decodeHash(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}

	t, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("%w: time: %v", ErrInvalidHash, err)
	}
	m, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("%w: memory: %v", ErrInvalidHash, err)
	}
	p, err := strconv.ParseUint(parts[3], 10, 8)
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("%w: threads: %v", ErrInvalidHash, err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return Params{}, nil, nil, fmt.Errorf("%w: hash", ErrInvalidHash)
	}
	if t == 0 || m == 0 || p == 0 {
		return Params{}, nil, nil, fmt.Errorf("%w: zero parameter", ErrInvalidHash)
	}

	return Params{Time: uint32(t), Memory: uint32(m), Threads: uint8(p)}, salt, hash, nil
}
