package crypto

import "fmt"

// Mode identifies an AES cipher mode. Values are stored in archive headers
// by name and compared by ordinal, so both are protocol constants.
type Mode uint8

const (
	// ModeGCM is AES-GCM, the only mode that authenticates the ciphertext.
	ModeGCM Mode = 0
	// ModeCTR is AES-CTR keystream encryption without authentication.
	ModeCTR Mode = 1
	// ModeCBC is AES-CBC with PKCS#7 padding, without authentication.
	ModeCBC Mode = 2
)

// String returns the mode name as stored in archive headers.
func (m Mode) String() string {
	switch m {
	case ModeGCM:
		return "AES-GCM"
	case ModeCTR:
		return "AES-CTR"
	case ModeCBC:
		return "AES-CBC"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// ParseMode parses a mode from its header name.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "AES-GCM":
		return ModeGCM, nil
	case "AES-CTR":
		return ModeCTR, nil
	case "AES-CBC":
		return ModeCBC, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// Authenticated reports whether the mode protects ciphertext integrity.
// Only authenticated modes produce an envelope tag.
func (m Mode) Authenticated() bool {
	return m == ModeGCM
}
