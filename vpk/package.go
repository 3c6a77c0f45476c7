package vpk

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ValkyFischer/ValkyrieUtils/compressor"
	"github.com/ValkyFischer/ValkyrieUtils/crypto"
	"github.com/ValkyFischer/ValkyrieUtils/tools"
)

// FormatVersion is the archive format generation stamped into headers.
const FormatVersion uint32 = 2

// Extension is the conventional archive filename suffix.
const Extension = ".vpk"

// Identity fields written into every archive header.
const (
	archiveAuthor    = "Valky Fischer"
	archiveCopyright = "Valky ⓒ 2023"
	archiveInfo      = "Encrypted data package"
)

// timeNow is a function variable for testing injection.
var timeNow = time.Now

// BlobSet is the archive payload: slash-separated relative paths mapped to
// raw file bytes. It is the only payload shape archives carry.
type BlobSet map[string][]byte

// Package reads and writes sealed archives with one key, cipher mode and
// compression codec. The key is supplied by the caller at construction and
// never persisted; a half-constructed or derived-elsewhere key is the
// caller's business.
//
// A Package is safe for concurrent use: all state is set at construction
// and every operation works on whole files.
type Package struct {
	key   []byte
	mode  crypto.Mode
	codec compressor.Codec
	log   *logrus.Logger
}

// New returns a Package sealing archives with the given key. Default
// settings are AES-GCM encryption and zstd compression.
func New(key []byte, opts ...Option) *Package {
	p := &Package{
		key:   key,
		mode:  crypto.ModeGCM,
		codec: compressor.CodecZstd,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logrus.New()
	}
	return p
}

// Create packs every file below dir into a new archive at archivePath and
// returns the path written. Blob keys are slash-separated paths relative
// to dir. An empty archivePath derives "<dir>/<base>.vpk" from the
// directory name.
func (p *Package) Create(dir, archivePath string) (string, error) {
	files, err := tools.ListFiles(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDirectoryRead, err)
	}
	blobs := make(BlobSet, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(dir, filepath.FromSlash(file))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDirectoryRead, err)
		}
		data, err := tools.FileData(filepath.FromSlash(file))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDirectoryRead, err)
		}
		blobs[filepath.ToSlash(rel)] = data
	}
	if archivePath == "" {
		archivePath = filepath.Join(dir, filepath.Base(dir)+Extension)
	}
	return p.Save(blobs, archivePath)
}

// Save seals blobs into the archive at archivePath and returns the path
// written. The payload is serialized, encrypted, then compressed; the
// header is built last, after the final payload length is known, so
// PayloadSize always matches the compressed bytes on disk exactly. The
// file appears atomically: a failed save leaves no partial archive.
func (p *Package) Save(blobs BlobSet, archivePath string) (string, error) {
	if blobs == nil {
		blobs = BlobSet{}
	}
	plaintext, err := encMode.Marshal(blobs)
	if err != nil {
		return "", fmt.Errorf("%w: serializing blobs: %v", ErrPayload, err)
	}
	envelope, err := crypto.Encrypt(p.key, plaintext, p.mode)
	if err != nil {
		return "", err
	}
	envelopeBytes, err := encMode.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("%w: serializing envelope: %v", ErrPayload, err)
	}
	payload, err := compressor.Deflate(envelopeBytes, p.codec)
	if err != nil {
		return "", err
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return "", fmt.Errorf("%w: payload of %d bytes exceeds format capacity", ErrArchive, len(payload))
	}

	header, err := encodeHeader(Header{
		Name:        archiveName(archivePath),
		Info:        archiveInfo,
		PayloadSize: uint32(len(payload)),
		Author:      archiveAuthor,
		Copyright:   archiveCopyright,
		Timestamp:   uint32(timeNow().Unix()),
		Encryption:  p.mode.String(),
		KeyLength:   uint32(len(p.key)),
		Version:     FormatVersion,
		Compression: p.codec.String(),
	})
	if err != nil {
		return "", err
	}

	data := make([]byte, 0, len(header)+len(payload))
	data = append(data, header...)
	data = append(data, payload...)
	if err := writeFileAtomic(archivePath, data); err != nil {
		return "", fmt.Errorf("%w: writing %s: %v", ErrArchive, archivePath, err)
	}
	return archivePath, nil
}

// Read opens the archive at archivePath, verifies its header against the
// package settings and returns the decoded blob set. The payload is read
// whole; there is no partial or streaming access.
func (p *Package) Read(archivePath string) (BlobSet, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchive, err)
	}
	defer f.Close()

	var headerBuf [HeaderSize]byte
	if _, err := io.ReadFull(f, headerBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrArchive, err)
	}
	header, err := decodeHeader(headerBuf[:])
	if err != nil {
		return nil, err
	}
	if err := p.check(header); err != nil {
		return nil, err
	}

	payload := make([]byte, header.PayloadSize)
	if n, err := io.ReadFull(f, payload); err != nil {
		return nil, fmt.Errorf("%w: payload truncated at %d of %d bytes: %v", ErrArchive, n, header.PayloadSize, err)
	}

	envelopeBytes, err := compressor.Inflate(payload, p.codec)
	if err != nil {
		return nil, err
	}
	var envelope crypto.Envelope
	if err := decMode.Unmarshal(envelopeBytes, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding envelope: %v", ErrPayload, err)
	}
	plaintext, err := crypto.Decrypt(p.key, envelope, p.mode)
	if err != nil {
		return nil, err
	}
	var blobs BlobSet
	if err := decMode.Unmarshal(plaintext, &blobs); err != nil {
		return nil, fmt.Errorf("%w: decoding blobs: %v", ErrPayload, err)
	}
	if blobs == nil {
		blobs = BlobSet{}
	}
	return blobs, nil
}

// Update merges patch into the archive at archivePath: existing keys are
// overwritten, new keys added, nothing removed. The archive is re-read and
// re-sealed whole; there is no in-place patching.
func (p *Package) Update(patch BlobSet, archivePath string) (string, error) {
	blobs, err := p.Read(archivePath)
	if err != nil {
		return "", err
	}
	for key, data := range patch {
		blobs[key] = data
	}
	return p.Save(blobs, archivePath)
}

// Info returns the archive header without touching the payload.
func (p *Package) Info(archivePath string) (Header, error) {
	return Probe(archivePath)
}

// check compares a header against the package settings. Mode and codec
// mismatches are fatal. A format version mismatch only logs a warning and
// reading proceeds; version skew across generations is advisory.
func (p *Package) check(h Header) error {
	if h.Encryption != p.mode.String() {
		return fmt.Errorf("%w: archive has %q, reader expects %q", ErrEncryptionMismatch, h.Encryption, p.mode)
	}
	if h.Compression != p.codec.String() {
		return fmt.Errorf("%w: archive has %q, reader expects %q", ErrCompressionMismatch, h.Compression, p.codec)
	}
	if h.Version != FormatVersion {
		p.log.WithFields(logrus.Fields{
			"archive": h.Name,
			"found":   h.Version,
			"want":    FormatVersion,
		}).Warn("archive format version differs")
	}
	return nil
}

// archiveName derives the header name from the archive path: the base name
// with the conventional extension stripped.
func archiveName(archivePath string) string {
	return strings.TrimSuffix(filepath.Base(archivePath), Extension)
}

// writeFileAtomic writes data to path via a temp file in the same
// directory followed by a rename, so path never holds a partial archive.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vpk-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
