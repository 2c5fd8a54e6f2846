package crypto

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// Hasher binds sessions to stable identifiers (phone numbers, composite
// keys) without ever storing the raw value. Deterministic: the same input
// always produces the same digest for a given salt.
type Hasher struct {
	salt []byte
}

func NewHasher(salt []byte) *Hasher {
	return &Hasher{salt: salt}
}

// Hash returns the hex-encoded HMAC-SHA512 of value.
func (h *Hasher) Hash(value string) string {
	mac := hmac.New(sha512.New, h.salt)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
