package tools

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// HashAlgo identifies a digest algorithm.
type HashAlgo uint8

const (
	MD5 HashAlgo = iota
	SHA1
	SHA256
	SHA512
	BLAKE3
)

// String returns the lowercase algorithm name.
func (a HashAlgo) String() string {
	switch a {
	case MD5:
		return "md5"
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	case SHA512:
		return "sha512"
	case BLAKE3:
		return "blake3"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseHashAlgo parses an algorithm from its lowercase name.
func ParseHashAlgo(name string) (HashAlgo, error) {
	switch name {
	case "md5":
		return MD5, nil
	case "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	case "sha512":
		return SHA512, nil
	case "blake3":
		return BLAKE3, nil
	default:
		return 0, fmt.Errorf("unknown hash algorithm %q", name)
	}
}

func (a HashAlgo) newHash() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %d", a)
	}
}

// HashBytes returns the lowercase hex digest of data.
func HashBytes(data []byte, algo HashAlgo) (string, error) {
	h, err := algo.newHash()
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the lowercase hex digest of the file contents. The file
// is streamed, not loaded into memory.
func HashFile(path string, algo HashAlgo) (string, error) {
	h, err := algo.newHash()
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
