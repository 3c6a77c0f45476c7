package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Params holds Argon2id key derivation parameters.
type Params struct {
	// Time is the number of passes over memory.
	Time uint32
	// Memory is the working-set size in KiB.
	Memory uint32
	// Parallelism is the number of lanes. Must be at least 1; the
	// underlying implementation panics on zero, so Validate rejects it
	// up front.
	Parallelism uint8
	// Length is the derived key size in bytes.
	Length uint32
}

// DefaultParams returns the derivation parameters used for archive keys:
// 2 passes over 100x100 KiB with 8 lanes, producing a 32-byte AES-256 key.
func DefaultParams() Params {
	return Params{Time: 2, Memory: 100 * 100, Parallelism: 8, Length: 32}
}

// Validate checks that every parameter is usable.
func (p Params) Validate() error {
	if p.Time == 0 {
		return fmt.Errorf("%w: time must be at least 1", ErrKeyDerivation)
	}
	if p.Memory == 0 {
		return fmt.Errorf("%w: memory must be at least 1 KiB", ErrKeyDerivation)
	}
	if p.Parallelism == 0 {
		return fmt.Errorf("%w: parallelism must be at least 1", ErrKeyDerivation)
	}
	if p.Length == 0 {
		return fmt.Errorf("%w: key length must be at least 1", ErrKeyDerivation)
	}
	return nil
}

// DeriveKey derives key material from a secret and salt using Argon2id.
// The same inputs always produce the same key. The result is held by the
// caller only and is never persisted by any archive operation.
func DeriveKey(secret, salt string, params Params) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	key := argon2.IDKey([]byte(secret), []byte(salt), params.Time, params.Memory, params.Parallelism, params.Length)
	return key, nil
}
