// Package crypto provides the encryption engine used by Valkyrie archives:
// Argon2id key derivation and AES envelope encryption in three modes.
//
// Every encryption call draws a fresh random nonce or IV, so encrypting the
// same plaintext twice never produces the same envelope. Only AES-GCM
// authenticates the ciphertext; its envelope carries a tag, and tampering
// is detected at decryption. CTR and CBC envelopes have no tag and no
// integrity protection.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// randRead fills b with random bytes. Function variable for testing
// injection.
var randRead = rand.Read

// Envelope is the result of one encryption call. All fields are lowercase
// hex; Tag is set only for authenticated modes.
type Envelope struct {
	Ciphertext string `cbor:"ciphertext" json:"ciphertext"`
	IV         string `cbor:"iv" json:"iv"`
	Tag        string `cbor:"tag,omitempty" json:"tag,omitempty"`
}

// Encrypt encrypts plaintext under key with the given mode. Key length
// selects AES-128, AES-192 or AES-256.
func Encrypt(key, plaintext []byte, mode Mode) (Envelope, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	switch mode {
	case ModeGCM:
		return encryptGCM(block, plaintext)
	case ModeCTR:
		return encryptCTR(block, plaintext)
	case ModeCBC:
		return encryptCBC(block, plaintext)
	default:
		return Envelope{}, fmt.Errorf("%w: %d", ErrUnknownMode, mode)
	}
}

// Decrypt reverses Encrypt. The mode must match the one the envelope was
// produced with. For AES-GCM a tampered ciphertext, IV or tag fails with
// ErrDecrypt and no partial plaintext is returned.
func Decrypt(key []byte, env Envelope, mode Mode) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	switch mode {
	case ModeGCM:
		return decryptGCM(block, env)
	case ModeCTR:
		return decryptCTR(block, env)
	case ModeCBC:
		return decryptCBC(block, env)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, mode)
	}
}

func encryptGCM(block cipher.Block, plaintext []byte) (Envelope, error) {
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := randRead(nonce); err != nil {
		return Envelope{}, fmt.Errorf("%w: drawing nonce: %v", ErrEncrypt, err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - gcm.Overhead()
	return Envelope{
		Ciphertext: hex.EncodeToString(sealed[:split]),
		IV:         hex.EncodeToString(nonce),
		Tag:        hex.EncodeToString(sealed[split:]),
	}, nil
}

func decryptGCM(block cipher.Block, env Envelope) ([]byte, error) {
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	ciphertext, nonce, err := decodeEnvelope(env)
	if err != nil {
		return nil, err
	}
	if env.Tag == "" {
		return nil, fmt.Errorf("%w: missing authentication tag", ErrDecrypt)
	}
	tag, err := hex.DecodeString(env.Tag)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed tag hex: %v", ErrDecrypt, err)
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce length %d", ErrDecrypt, len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

func encryptCTR(block cipher.Block, plaintext []byte) (Envelope, error) {
	iv := make([]byte, block.BlockSize())
	if _, err := randRead(iv); err != nil {
		return Envelope{}, fmt.Errorf("%w: drawing iv: %v", ErrEncrypt, err)
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, plaintext)
	return Envelope{
		Ciphertext: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(iv),
	}, nil
}

func decryptCTR(block cipher.Block, env Envelope) ([]byte, error) {
	ciphertext, iv, err := decodeEnvelope(env)
	if err != nil {
		return nil, err
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("%w: iv length %d", ErrDecrypt, len(iv))
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

func encryptCBC(block cipher.Block, plaintext []byte) (Envelope, error) {
	iv := make([]byte, block.BlockSize())
	if _, err := randRead(iv); err != nil {
		return Envelope{}, fmt.Errorf("%w: drawing iv: %v", ErrEncrypt, err)
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return Envelope{
		Ciphertext: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(iv),
	}, nil
}

func decryptCBC(block cipher.Block, env Envelope) ([]byte, error) {
	ciphertext, iv, err := decodeEnvelope(env)
	if err != nil {
		return nil, err
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("%w: iv length %d", ErrDecrypt, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d not a block multiple", ErrDecrypt, len(ciphertext))
	}
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)
	plaintext, err := pkcs7Unpad(padded, block.BlockSize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

// decodeEnvelope decodes the hex fields common to all modes.
func decodeEnvelope(env Envelope) (ciphertext, iv []byte, err error) {
	ciphertext, err = hex.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: malformed ciphertext hex: %v", ErrDecrypt, err)
	}
	iv, err = hex.DecodeString(env.IV)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: malformed iv hex: %v", ErrDecrypt, err)
	}
	return ciphertext, iv, nil
}

// pkcs7Pad pads data to a multiple of blockSize. Always appends at least
// one byte.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

// pkcs7Unpad removes PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding size %d", padding)
	}
	for i := len(data) - padding; i < len(data); i++ {
		if data[i] != byte(padding) {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
