package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// Supported IDCipher algorithms.
const (
	CipherAESGCM           = "aes-gcm"
	CipherChaCha20Poly1305 = "chacha20-poly1305"
)

const credentialKeyBytes = 32

// IDCipher turns internal credential keys into opaque public identifiers and
// back. The category is bound as additional data so an identifier issued for
// one category never opens under another.
type IDCipher struct {
	aead     cipher.AEAD
	category []byte
}

// NewIDCipher keys an AEAD with sha256(secret).
func NewIDCipher(secret, category, algorithm string) (*IDCipher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, goerrors.New("credential secret is required", goerrors.CategoryValidation).
			WithTextCode("MISSING_SECRET").
			WithMetadata(map[string]any{"category": category})
	}
	key := sha256.Sum256([]byte(secret))

	var (
		aead cipher.AEAD
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", CipherAESGCM:
		var block cipher.Block
		block, err = aes.NewCipher(key[:])
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20Poly1305:
		aead, err = chacha20poly1305.New(key[:])
	default:
		return nil, goerrors.New("unsupported credential cipher", goerrors.CategoryValidation).
			WithTextCode("UNSUPPORTED_CIPHER").
			WithMetadata(map[string]any{"cipher": algorithm})
	}
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize credential cipher")
	}

	return &IDCipher{aead: aead, category: []byte(category)}, nil
}

// Encrypt seals key into a hex encoded identifier.
func (c *IDCipher) Encrypt(key string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate nonce")
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(key), c.category)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens an identifier produced by Encrypt. Any malformed or tampered
// identifier reports false.
func (c *IDCipher) Decrypt(id string) (string, bool) {
	if !c.WellFormed(id) {
		return "", false
	}
	raw, err := hex.DecodeString(id)
	if err != nil {
		return "", false
	}
	n := c.aead.NonceSize()
	plain, err := c.aead.Open(nil, raw[:n], raw[n:], c.category)
	if err != nil {
		return "", false
	}
	return string(plain), true
}

// WellFormed reports whether id has the shape of an identifier produced by
// this cipher. It does not authenticate it.
func (c *IDCipher) WellFormed(id string) bool {
	if len(id)%2 != 0 || len(id)/2 <= c.aead.NonceSize()+c.aead.Overhead() {
		return false
	}
	return IsHex(id)
}

// IsHex reports whether s is a non empty hexadecimal string.
func IsHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9', ch >= 'a' && ch <= 'f', ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}

// NewCredentialKey returns a fresh random internal key.
func NewCredentialKey() (string, error) {
	buf := make([]byte, credentialKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate credential key")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
