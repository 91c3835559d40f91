package core

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

// Short human-readable codes. Uniqueness is probabilistic: callers must check
// the generated code against their store and retry on collision, up to
// MaxCodeAttempts.
const (
	HexAlphabet   = "0123456789ABCDEF"
	DigitAlphabet = "0123456789"

	inviteCodeLen       = 6
	registrationCodeLen = 8

	// MaxCodeAttempts bounds a caller's generate-and-check loop. The code
	// space dwarfs any realistic row count, so hitting the bound means the
	// store is misbehaving, not that the space is exhausted.
	MaxCodeAttempts = 10
)

var ErrCodeSpaceExhausted = errors.New("could not generate a unique code")

// GenerateCode produces a random code of length n from the given alphabet.
func GenerateCode(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "reading random bytes")
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}

// InviteCode produces a class invite code in the form XXX-XXX (hex characters).
func InviteCode() (string, error) {
	code, err := GenerateCode(HexAlphabet, inviteCodeLen)
	if err != nil {
		return "", err
	}
	return code[:3] + "-" + code[3:], nil
}

// RegistrationCode produces an 8-digit student registration code.
func RegistrationCode() (string, error) {
	return GenerateCode(DigitAlphabet, registrationCodeLen)
}
