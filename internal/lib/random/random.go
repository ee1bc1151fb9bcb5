// Package random generates voucher access codes.
package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet is the character set used for voucher codes. Uppercase letters
// and digits only, so codes survive handwriting and thermal print.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Code returns prefix followed by length random characters from Alphabet.
func Code(prefix string, length int) (string, error) {
	const op = "random.Code"
	if length <= 0 {
		return "", fmt.Errorf("%s: length must be positive", op)
	}
	buf := make([]byte, length)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return prefix + string(buf), nil
}
