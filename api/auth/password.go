// Package auth hashes passwords in the Django PBKDF2 format and issues the
// HS256 bearer tokens accepted by the API.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Algorithm         = "pbkdf2_sha256"
	DefaultIterations = 260000
	keyLength         = 32
)

var ErrUnsupportedHash = errors.New("unsupported password hash")

// HashPassword returns "pbkdf2_sha256$iterations$salt$digest". An empty salt
// generates a random one.
func HashPassword(password, salt string, iterations int) (string, error) {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if salt == "" {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate salt: %w", err)
		}
		salt = base64.StdEncoding.EncodeToString(buf)
	}
	if strings.Contains(salt, "$") {
		return "", fmt.Errorf("salt must not contain '$'")
	}

	return fmt.Sprintf("%s$%d$%s$%s", Algorithm, iterations, salt, digest(password, salt, iterations)), nil
}

func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != Algorithm {
		return false, ErrUnsupportedHash
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false, ErrUnsupportedHash
	}

	computed := digest(password, parts[2], iterations)
	return hmac.Equal([]byte(computed), []byte(parts[3])), nil
}

func digest(password, salt string, iterations int) string {
	dk := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLength, sha256.New)
	return base64.StdEncoding.EncodeToString(dk)
}
