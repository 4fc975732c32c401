// Package session generates and verifies gateway session secrets. The
// registry hands a gateway a random password once, at registration; only the
// salted PBKDF2 hash is stored, and verification compares in constant time.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PasswordLength is how many characters of session password a gateway
	// receives at registration.
	PasswordLength = 32
	saltLength     = 32
	pbkdf2Iters    = 4096
	pbkdf2KeyLen   = 32
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratePassword creates a random alphanumeric password of the given length.
func GeneratePassword(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate password: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = passwordAlphabet[int(b)%len(passwordAlphabet)]
	}
	return string(out), nil
}

// HashPassword derives the stored hash from a password and salt.
func HashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iters, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(key)
}

// GenerateSecrets creates a fresh password plus the hash and salt to store.
// The password itself is returned exactly once and never persisted.
func GenerateSecrets() (password, hash, salt string, err error) {
	password, err = GeneratePassword(PasswordLength)
	if err != nil {
		return "", "", "", err
	}
	salt, err = GeneratePassword(saltLength)
	if err != nil {
		return "", "", "", err
	}
	return password, HashPassword(password, salt), salt, nil
}

// Verify reports whether the presented password matches the stored hash
// under the stored salt. Comparison is constant time.
func Verify(storedHash, salt, presented string) bool {
	computed := HashPassword(presented, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
