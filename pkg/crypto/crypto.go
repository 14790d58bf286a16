package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	saltLength   = 16
	digestLength = sha256.Size

	// randomAlphabet has 64 characters so a random byte maps onto it
	// without modulo bias.
	randomAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
)

// HashCredential hashes a client secret with a fresh 16-byte salt and
// returns Base64(salt || SHA-256(salt || secret)). The output is safe to
// persist; the secret itself is never stored.
func HashCredential(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Join(ErrRandomSource, err)
	}

	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(secret))

	stored := make([]byte, 0, saltLength+digestLength)
	stored = append(stored, salt...)
	stored = h.Sum(stored)
	return base64.StdEncoding.EncodeToString(stored), nil
}

// VerifyCredential reports whether secret matches a value produced by
// HashCredential. Any decode failure or length mismatch yields false; the
// comparison itself is constant time.
func VerifyCredential(secret, stored string) bool {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) != saltLength+digestLength {
		return false
	}

	h := sha256.New()
	h.Write(raw[:saltLength])
	h.Write([]byte(secret))
	return subtle.ConstantTimeCompare(h.Sum(nil), raw[saltLength:]) == 1
}

// HMACSign computes the HMAC-SHA256 tag of data under key.
func HMACSign(data, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// HMACEqual compares an HMAC tag against the expected tag for data under
// key in constant time.
func HMACEqual(data, key, tag []byte) bool {
	return hmac.Equal(HMACSign(data, key), tag)
}

// SecureRandomString returns a random string of length n drawn from a
// 64-character URL-safe alphabet using crypto/rand.
func SecureRandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Join(ErrRandomSource, err)
	}
	for i, b := range buf {
		buf[i] = randomAlphabet[int(b)%len(randomAlphabet)]
	}
	return string(buf), nil
}

// ConstantTimeEquals reports whether a and b are byte-identical without
// short-circuiting on the first differing byte.
func ConstantTimeEquals(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// EncodeSegment encodes bytes as unpadded Base64URL, the wire form of
// token segments.
func EncodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeSegment decodes a Base64URL segment, tolerating both padded and
// unpadded input.
func DecodeSegment(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
