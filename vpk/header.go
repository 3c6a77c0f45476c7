package vpk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Field widths in bytes. Together with the four uint32 fields they pin the
// header at exactly HeaderSize bytes; changing any of them breaks archive
// compatibility.
const (
	widthName        = 16
	widthInfo        = 22
	widthAuthor      = 16
	widthCopyright   = 17
	widthEncryption  = 7
	widthCompression = 5
)

// HeaderSize is the packed byte length of the fixed archive header.
const HeaderSize = 99

// Header is the fixed-width prologue of every archive. Text fields are
// stored zero-padded to their width; numeric fields are little-endian
// uint32. The payload follows immediately after and is exactly PayloadSize
// bytes of compressed data.
type Header struct {
	Name        string
	Info        string
	PayloadSize uint32
	Author      string
	Copyright   string
	Timestamp   uint32
	Encryption  string
	KeyLength   uint32
	Version     uint32
	Compression string
}

// encodeHeader packs h into its 99-byte wire form. Text fields wider than
// their slot fail with ErrFieldTooLong; values are never truncated.
func encodeHeader(h Header) ([]byte, error) {
	var buf [HeaderSize]byte
	if err := putFixedString(buf[0:16], "name", h.Name); err != nil {
		return nil, err
	}
	if err := putFixedString(buf[16:38], "info", h.Info); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(buf[38:42], h.PayloadSize)
	if err := putFixedString(buf[42:58], "author", h.Author); err != nil {
		return nil, err
	}
	if err := putFixedString(buf[58:75], "copyright", h.Copyright); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(buf[75:79], h.Timestamp)
	if err := putFixedString(buf[79:86], "encryption", h.Encryption); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(buf[86:90], h.KeyLength)
	binary.LittleEndian.PutUint32(buf[90:94], h.Version)
	if err := putFixedString(buf[94:99], "compression", h.Compression); err != nil {
		return nil, err
	}
	return buf[:], nil
}

// decodeHeader unpacks a 99-byte wire header. Trailing zero padding is
// stripped from text fields, so decodeHeader(encodeHeader(h)) == h for
// every width-valid h.
func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: short header: %d bytes", ErrArchive, len(buf))
	}
	var h Header
	h.Name = trimZero(buf[0:16])
	h.Info = trimZero(buf[16:38])
	h.PayloadSize = binary.LittleEndian.Uint32(buf[38:42])
	h.Author = trimZero(buf[42:58])
	h.Copyright = trimZero(buf[58:75])
	h.Timestamp = binary.LittleEndian.Uint32(buf[75:79])
	h.Encryption = trimZero(buf[79:86])
	h.KeyLength = binary.LittleEndian.Uint32(buf[86:90])
	h.Version = binary.LittleEndian.Uint32(buf[90:94])
	h.Compression = trimZero(buf[94:99])
	return h, nil
}

// putFixedString copies value into dst, zero-padding the remainder. The
// width check counts bytes, not runes.
func putFixedString(dst []byte, field, value string) error {
	if len(value) > len(dst) {
		return fmt.Errorf("%w: %s %q is %d bytes, limit %d", ErrFieldTooLong, field, value, len(value), len(dst))
	}
	copy(dst, value)
	return nil
}

func trimZero(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

// Probe reads only the fixed header of the archive at path. The payload is
// not touched, so probing is cheap regardless of archive size.
func Probe(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrArchive, err)
	}
	defer f.Close()
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return Header{}, fmt.Errorf("%w: reading header: %v", ErrArchive, err)
	}
	return decodeHeader(buf[:])
}
