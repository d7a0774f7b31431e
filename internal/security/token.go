// Package security holds credential primitives: password hashing, opaque session
// tokens and signed invitation links.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// SessionTokenBytes is the entropy of a session token before hex encoding.
const SessionTokenBytes = 32

// ErrInvalidToken is returned when a token is malformed or fails verification.
var ErrInvalidToken = errors.New("invalid token")

// NewSessionToken returns a random, hex-encoded opaque token.
func NewSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WellFormedSessionToken reports whether s has the shape NewSessionToken produces.
// Used to reject garbage before touching storage.
func WellFormedSessionToken(s string) bool {
	if len(s) != hex.EncodedLen(SessionTokenBytes) {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// HashToken returns the hex SHA-256 of token. Only the hash is persisted.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenHashEqual compares the hash of token with storedHash in constant time.
func TokenHashEqual(token, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(storedHash)) == 1
}
