package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2Params are the Argon2id cost parameters, either the defaults used
// for new hashes or the values recovered from a stored PHC string. Stored
// hashes keep working after the defaults change.
type argon2Params struct {
	iterations  uint32
	memoryKiB   uint32
	parallelism uint8
}

// defaultArgon2Params for newly created hashes.
var defaultArgon2Params = argon2Params{
	iterations:  3,
	memoryKiB:   64 * 1024, // 64 MiB
	parallelism: 1,
}

const (
	argon2KeyLength  = 32
	argon2SaltLength = 16
)

// derive computes the Argon2id key for a password/salt pair under these
// parameters.
func (p argon2Params) derive(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, p.iterations, p.memoryKiB, p.parallelism, keyLen)
}

// HashPassword hashes a plaintext password with Argon2id and returns it in
// PHC string format: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	p := defaultArgon2Params
	key := p.derive(password, salt, argon2KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memoryKiB, p.iterations, p.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks a plaintext password against an Argon2id PHC hash
// string using a constant-time comparison. Returns true on match.
func VerifyPassword(password, encodedHash string) (bool, error) {
	salt, hash, params, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := params.derive(password, salt, uint32(len(hash))) //nolint:gosec // G115: hash length always fits uint32

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

// parsePHC walks the $-delimited fields of an Argon2id PHC string, checking
// the algorithm and version before decoding salt and hash.
func parsePHC(encoded string) (salt, hash []byte, params argon2Params, err error) {
	rest, ok := strings.CutPrefix(encoded, "$argon2id$")
	if !ok {
		return nil, nil, params, fmt.Errorf("not an argon2id PHC hash")
	}

	versionField, rest, ok := strings.Cut(rest, "$")
	if !ok {
		return nil, nil, params, fmt.Errorf("invalid PHC hash format")
	}
	var version int
	if _, err := fmt.Sscanf(versionField, "v=%d", &version); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("unsupported argon2 version %d", version)
	}

	costField, rest, ok := strings.Cut(rest, "$")
	if !ok {
		return nil, nil, params, fmt.Errorf("invalid PHC hash format")
	}
	if _, err := fmt.Sscanf(costField, "m=%d,t=%d,p=%d", &params.memoryKiB, &params.iterations, &params.parallelism); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("parsing parameters: %w", err)
	}

	saltField, hashField, ok := strings.Cut(rest, "$")
	if !ok || strings.Contains(hashField, "$") {
		return nil, nil, params, fmt.Errorf("invalid PHC hash format")
	}

	salt, err = base64.RawStdEncoding.DecodeString(saltField)
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}

	hash, err = base64.RawStdEncoding.DecodeString(hashField)
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}

	return salt, hash, params, nil
}
