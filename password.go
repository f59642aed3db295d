package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
)

// PasswordHasher derives and checks stored password digests.
type PasswordHasher interface {
	Hash(password string) (digest, salt string, err error)
	Compare(password, digest, salt string) bool
}

// HMACHasher digests passwords with HMAC-SHA512 keyed by a random salt.
type HMACHasher struct {
	SaltBytes int
}

func (h HMACHasher) Hash(password string) (string, string, error) {
	if password == "" {
		return "", "", ErrNoEmptyString
	}
	n := h.SaltBytes
	if n <= 0 {
		n = 5
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate password salt")
	}
	salt := hex.EncodeToString(buf)
	return hmacDigest(password, salt), salt, nil
}

func (h HMACHasher) Compare(password, digest, salt string) bool {
	expected, err := hex.DecodeString(digest)
	if err != nil || salt == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(salt))
	mac.Write([]byte(password))
	return hmac.Equal(mac.Sum(nil), expected)
}

func hmacDigest(password, salt string) string {
	mac := hmac.New(sha512.New, []byte(salt))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewPasswordHasher returns the hasher named in cfg.
func NewPasswordHasher(cfg UsersConfig) PasswordHasher {
	if cfg.PasswordHasher == HasherBcrypt {
		return BcryptHasher{Cost: cfg.BcryptCost}
	}
	return HMACHasher{}
}

var (
	_ PasswordHasher = HMACHasher{}
	_ PasswordHasher = BcryptHasher{}
)
