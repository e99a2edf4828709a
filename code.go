package auth

import (
	"crypto/rand"
	"math/big"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// CodeGenerator produces verification codes
type CodeGenerator func() (string, error)

var maxDigit = big.NewInt(10)

// NumericCodeGenerator returns a generator of n random decimal digits
func NumericCodeGenerator(n int) CodeGenerator {
	if n <= 0 {
		n = DefaultVerificationCodeLength
	}
	return func() (string, error) {
		var b strings.Builder
		b.Grow(n)
		for i := 0; i < n; i++ {
			d, err := rand.Int(rand.Reader, maxDigit)
			if err != nil {
				return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
			}
			b.WriteByte(byte('0' + d.Int64()))
		}
		return b.String(), nil
	}
}
