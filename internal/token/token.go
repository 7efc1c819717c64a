// Package token generates the opaque single-use credentials embedded in
// confirmation links.
package token

import (
	"crypto/rand"
	"fmt"
)

// alphabet is URL-safe, so tokens can sit in a query parameter without
// escaping. 25 characters over 62 symbols is ~148 bits of entropy.
const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	Length   = 25
)

// maxUnbiasedByte is the largest multiple of len(alphabet) that fits in a
// byte. Random bytes at or above it are discarded so every alphabet symbol
// is drawn with equal probability.
const maxUnbiasedByte = 256 - 256%len(alphabet)

// New returns a confirmation token drawn uniformly from the alphabet via
// crypto/rand with rejection sampling. Collisions are not expected in
// practice; the database's primary-key constraint on the token column
// backstops the impossible case.
func New() (string, error) {
	out := make([]byte, 0, Length)
	buf := make([]byte, Length)
	for len(out) < Length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("token: read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiasedByte {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out), nil
}
