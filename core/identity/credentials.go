package identity

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

const (
	DefaultPasswordLength = 10

	usernameSuffixMax = 9999
	usernameBaseMax   = 140 // identities.username is VARCHAR(150), suffix included
	letters           = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits            = "0123456789"
	punctuation       = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	passwordAlphabet  = letters + digits + punctuation
)

var randReader io.Reader = rand.Reader // mockable

// randInt returns a uniform random int in [0, max).
func randInt(max int) (int, error) {
	n, err := rand.Int(randReader, big.NewInt(int64(max)))
	if err != nil {
		return 0, errors.Wrap(err, "reading random source")
	}
	return int(n.Int64()), nil
}

// GenerateUsername lower-cases displayName, replaces whitespace with "_", keeps its first 140 runes
// and appends a random suffix in [1, 9999].
// The result is not guaranteed to be unique.
func GenerateUsername(displayName string) (string, error) {
	name := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, strings.ToLower(strings.TrimSpace(displayName)))
	if runes := []rune(name); len(runes) > usernameBaseMax {
		name = string(runes[:usernameBaseMax])
	}

	n, err := randInt(usernameSuffixMax)
	if err != nil {
		return "", err
	}
	return name + "_" + strconv.Itoa(n+1), nil
}

// GeneratePassword draws length characters uniformly from letters, digits and punctuation.
// A non-positive length falls back to DefaultPasswordLength.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		length = DefaultPasswordLength
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := randInt(len(passwordAlphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(passwordAlphabet[n])
	}
	return b.String(), nil
}
