package vpk

import "errors"

var (
	ErrFieldTooLong        = errors.New("vpk: header field too long")
	ErrEncryptionMismatch  = errors.New("vpk: encryption mode mismatch")
	ErrCompressionMismatch = errors.New("vpk: compression codec mismatch")
	ErrArchive             = errors.New("vpk: archive i/o failed")
	ErrDirectoryRead       = errors.New("vpk: directory read failed")
	ErrPayload             = errors.New("vpk: malformed payload")
)
