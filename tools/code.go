package tools

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeLetters     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	codePunctuation = "!#$%&()*+-./:;<=>?@[]^_{|}~"
)

// CodeOption adjusts the alphabet used by GenerateCode.
type CodeOption func(*codeConfig)

type codeConfig struct {
	charset string
}

// WithPunctuation extends the default alphabet with punctuation characters.
func WithPunctuation() CodeOption {
	return func(c *codeConfig) { c.charset += codePunctuation }
}

// WithCharset replaces the alphabet entirely.
func WithCharset(charset string) CodeOption {
	return func(c *codeConfig) { c.charset = charset }
}

// GenerateCode returns a random string of the given length drawn from the
// configured alphabet (letters and digits unless changed). Randomness comes
// from crypto/rand and is sampled without modulo bias.
func GenerateCode(length int, opts ...CodeOption) (string, error) {
	if length < 0 {
		return "", fmt.Errorf("negative code length %d", length)
	}
	cfg := codeConfig{charset: codeLetters}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.charset) == 0 {
		return "", fmt.Errorf("empty charset")
	}
	max := big.NewInt(int64(len(cfg.charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("drawing random index: %w", err)
		}
		out[i] = cfg.charset[n.Int64()]
	}
	return string(out), nil
}
