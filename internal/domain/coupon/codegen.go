package coupon

import (
	"crypto/rand"
	"io"
	"strings"

	"github.com/go-faster/errors"
)

const (
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultCodeLength = 8
	minSuffixLength   = 4
	// rejectAbove is the largest multiple of len(codeAlphabet) that fits in a
	// byte; bytes at or above it are discarded to keep the draw unbiased.
	rejectAbove = 252
)

// CodeGenerator produces random human-readable coupon codes.
//
// Codes are not unique by construction. Callers check them against existing
// codes and retry on collision (see the issuance package).
type CodeGenerator struct {
	rand io.Reader
}

// NewCodeGenerator returns a generator reading randomness from r.
// A nil r selects crypto/rand.
func NewCodeGenerator(r io.Reader) *CodeGenerator {
	if r == nil {
		r = rand.Reader
	}
	return &CodeGenerator{rand: r}
}

// Generate returns a code of length characters from [A-Z0-9]. A length of
// zero or less selects the default of 8. With a prefix the code is
// PREFIX-XXXX where the random part has max(4, length-len(prefix)-1)
// characters and the prefix is upper-cased.
func (g *CodeGenerator) Generate(prefix string, length int) (string, error) {
	if length <= 0 {
		length = defaultCodeLength
	}
	if prefix == "" {
		return g.random(length)
	}

	prefix = strings.ToUpper(prefix)
	suffix, err := g.random(max(minSuffixLength, length-len(prefix)-1))
	if err != nil {
		return "", err
	}
	return prefix + "-" + suffix, nil
}

func (g *CodeGenerator) random(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		chunk := buf[:n-len(out)]
		if _, err := io.ReadFull(g.rand, chunk); err != nil {
			return "", errors.Wrap(err, "read random bytes")
		}
		for _, b := range chunk {
			if b >= rejectAbove {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
		}
	}
	return string(out), nil
}
