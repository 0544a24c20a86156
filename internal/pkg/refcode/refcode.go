// Package refcode builds short human-readable reference codes such as
// receipt numbers.
package refcode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// Base36 avoids lowercase so codes survive being read out over the phone
	Base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Base62 = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Random returns a cryptographically random code of length characters drawn from alphabet.
func Random(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}
	if len(alphabet) < 2 || len(alphabet) > 256 {
		return "", fmt.Errorf("invalid alphabet size: %d", len(alphabet))
	}

	// Rejection sampling to avoid modulo bias.
	maxRandomByte := 256 - 256%len(alphabet)

	code := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if int(b) >= maxRandomByte {
				continue
			}
			code[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(code), nil
}

// Encode writes n in the positional system given by alphabet
func Encode(n uint64, alphabet string) string {
	if n == 0 {
		return string(alphabet[0])
	}

	base := uint64(len(alphabet))
	var buf [64]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = alphabet[n%base]
		n /= base
	}
	return string(buf[i:])
}

// Decode is the inverse of Encode. Characters outside alphabet are skipped.
func Decode(encoded, alphabet string) uint64 {
	base := uint64(len(alphabet))
	var n uint64

	for i := 0; i < len(encoded); i++ {
		value := strings.IndexByte(alphabet, encoded[i])
		if value == -1 {
			continue
		}
		n = n*base + uint64(value)
	}

	return n
}
