package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// passwordIterations is the OWASP-recommended minimum for HMAC-SHA256.
	passwordIterations = 480_000
	passwordSaltLen    = 16
	passwordKeyLen     = 32
	passwordScheme     = "pbkdf2-sha256"
)

// ErrBadPasswordHash is returned for a stored hash that cannot be parsed.
var ErrBadPasswordHash = errors.New("crypto: malformed password hash")

// HashPassword derives a salted PBKDF2-SHA256 digest of password, encoded as
// "pbkdf2-sha256$<iterations>$<salt>$<key>" with unpadded base64 parts.
func HashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("crypto: generating salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, passwordIterations, passwordKeyLen, sha256.New)
	return strings.Join([]string{
		passwordScheme,
		strconv.Itoa(passwordIterations),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$"), nil
}

// ParsePasswordHash checks that encoded was produced by HashPassword.
func ParsePasswordHash(encoded string) (iterations int, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != passwordScheme {
		return 0, nil, nil, ErrBadPasswordHash
	}
	iterations, err = strconv.Atoi(parts[1])
	if err != nil || iterations < 1 {
		return 0, nil, nil, ErrBadPasswordHash
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return 0, nil, nil, ErrBadPasswordHash
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(key) == 0 {
		return 0, nil, nil, ErrBadPasswordHash
	}
	return iterations, salt, key, nil
}

// CheckPassword reports whether password matches the encoded hash. A
// malformed hash never matches.
func CheckPassword(encoded, password string) bool {
	iterations, salt, key, err := ParsePasswordHash(encoded)
	if err != nil {
		return false
	}
	derived := pbkdf2.Key([]byte(password), salt, iterations, len(key), sha256.New)
	return subtle.ConstantTimeCompare(derived, key) == 1
}
