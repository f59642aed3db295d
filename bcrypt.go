package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher stores bcrypt digests. The salt is embedded in the digest so
// Hash returns an empty salt.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, string, error) {
	if password == "" {
		return "", "", ErrNoEmptyString
	}

	cost := h.Cost
	if cost <= 0 {
		cost = passwordHashCost()
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", "", err
	}
	return string(digest), "", nil
}

// Compare ignores salt.
func (h BcryptHasher) Compare(password, digest, _ string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
