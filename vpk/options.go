package vpk

import (
	"github.com/sirupsen/logrus"

	"github.com/ValkyFischer/ValkyrieUtils/compressor"
	"github.com/ValkyFischer/ValkyrieUtils/crypto"
)

// Option adjusts a Package at construction.
type Option func(*Package)

// WithEncryption selects the cipher mode for new archives and the mode
// expected when reading existing ones.
func WithEncryption(mode crypto.Mode) Option {
	return func(p *Package) { p.mode = mode }
}

// WithCompression selects the payload codec for new archives and the codec
// expected when reading existing ones.
func WithCompression(codec compressor.Codec) Option {
	return func(p *Package) { p.codec = codec }
}

// WithLogger replaces the default logger. A nil logger is ignored.
func WithLogger(log *logrus.Logger) Option {
	return func(p *Package) {
		if log != nil {
			p.log = log
		}
	}
}
