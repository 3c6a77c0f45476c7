package crypto

import "errors"

var (
	ErrKeyDerivation = errors.New("crypto: key derivation failed")
	ErrUnknownMode   = errors.New("crypto: unknown encryption mode")
	ErrEncrypt       = errors.New("crypto: encryption failed")
	ErrDecrypt       = errors.New("crypto: decryption failed")
)
