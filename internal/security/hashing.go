package security

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost      int
	dummyHash []byte
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to bcrypt's bounds.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	cost = max(bcrypt.MinCost, min(cost, bcrypt.MaxCost))
	dummy, _ := bcrypt.GenerateFromPassword([]byte("orgsession-dummy-password"), cost)
	return &Hasher{Cost: cost, dummyHash: dummy}
}

// Hash produces a bcrypt hash of password suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored hash. Returns nil on match and
// bcrypt.ErrMismatchedHashAndPassword (or a parse error) otherwise.
func (h *Hasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}

// CompareDummy burns the same CPU as a real Compare. Sign-in calls it for unknown
// emails so response timing does not reveal which addresses are registered.
func (h *Hasher) CompareDummy(password []byte) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, password)
}
