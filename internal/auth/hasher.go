package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// hashKeyInfo binds the derived key to this purpose; changing it
// invalidates every stored user hash.
const hashKeyInfo = "draftwise-user-hash-v1"

// UserHasher produces the deterministic, non-reversible identifier
// stored in place of raw user IDs. The HMAC key is derived from the app
// secret, so the same user always maps to the same hash within a
// deployment but hashes are meaningless outside it.
type UserHasher struct {
	key []byte
}

// NewUserHasher derives the hashing key from the given secret.
func NewUserHasher(secret []byte) (*UserHasher, error) {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, secret, nil, []byte(hashKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive user hash key: %w", err)
	}
	return &UserHasher{key: key}, nil
}

// Hash returns the hex HMAC-SHA256 of a user ID.
func (h *UserHasher) Hash(userID string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}
