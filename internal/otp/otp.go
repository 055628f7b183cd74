// Package otp generates invite link tokens and one-time passcodes and stores
// passcodes as salted SHA-256 hashes.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
)

const (
	tokenBytes = 48
	saltBytes  = 16
	// DefaultDigits is the passcode length used for invites.
	DefaultDigits = 6
)

// NewToken returns an unpadded URL-safe token carrying 384 random bits.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewCode returns a numeric passcode with exactly digits digits (no leading zero).
func NewCode(digits int) (string, error) {
	if digits < 1 || digits > 18 {
		return "", fmt.Errorf("invalid otp length %d", digits)
	}
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	hi := new(big.Int).Mul(lo, big.NewInt(10))
	n, err := rand.Int(rand.Reader, new(big.Int).Sub(hi, lo))
	if err != nil {
		return "", fmt.Errorf("otp entropy: %w", err)
	}
	return n.Add(n, lo).String(), nil
}

// Hash salts and hashes code as base64(salt):base64(SHA256(salt || code)).
func Hash(code string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt entropy: %w", err)
	}
	return hashWithSalt(code, salt), nil
}

func hashWithSalt(code string, salt []byte) string {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(code))
	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Verify recomputes the hash of code with the stored salt and compares it in constant time.
// A malformed stored value never verifies.
func Verify(code, stored string) bool {
	saltPart, sumPart, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(sumPart)
	if err != nil {
		return false
	}
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(code))
	return subtle.ConstantTimeCompare(h.Sum(nil), want) == 1
}
