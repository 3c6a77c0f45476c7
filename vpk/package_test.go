package vpk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/ValkyFischer/ValkyrieUtils/compressor"
	"github.com/ValkyFischer/ValkyrieUtils/crypto"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 7)
	}
	return key
}

func sampleBlobs() BlobSet {
	return BlobSet{
		"readme.txt":     []byte("hello archive"),
		"data/binary":    {0x00, 0xFF, 0x10, 0x80, 0x7F},
		"data/empty.dat": {},
		"nested/deep/path/file.cfg": []byte(strings.Repeat(
			"key = value\n", 64)),
	}
}

func blobsEqual(t *testing.T, got, want BlobSet) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("blob count %d, want %d", len(got), len(want))
	}
	for key, data := range want {
		if !bytes.Equal(got[key], data) {
			t.Fatalf("blob %q mismatch: got %d bytes, want %d", key, len(got[key]), len(data))
		}
	}
}

func TestSaveReadRoundTripAllCodecs(t *testing.T) {
	codecs := []compressor.Codec{
		compressor.CodecNone, compressor.CodecGzip, compressor.CodecBzip2,
		compressor.CodecLZMA, compressor.CodecLZ4, compressor.CodecZstd,
		compressor.CodecBrotli,
	}
	for _, codec := range codecs {
		t.Run(codec.String(), func(t *testing.T) {
			p := New(testKey(), WithCompression(codec))
			path := filepath.Join(t.TempDir(), "archive.vpk")
			written, err := p.Save(sampleBlobs(), path)
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if written != path {
				t.Fatalf("Save returned %q, want %q", written, path)
			}
			blobs, err := p.Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			blobsEqual(t, blobs, sampleBlobs())
		})
	}
}

func TestSaveReadRoundTripAllModes(t *testing.T) {
	for _, mode := range []crypto.Mode{crypto.ModeGCM, crypto.ModeCTR, crypto.ModeCBC} {
		t.Run(mode.String(), func(t *testing.T) {
			p := New(testKey(), WithEncryption(mode))
			path := filepath.Join(t.TempDir(), "archive.vpk")
			if _, err := p.Save(sampleBlobs(), path); err != nil {
				t.Fatalf("Save: %v", err)
			}
			blobs, err := p.Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			blobsEqual(t, blobs, sampleBlobs())
		})
	}
}

func TestSaveWithDerivedKey(t *testing.T) {
	key, err := crypto.DeriveKey("secret", "salt", crypto.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	p := New(key)
	path := filepath.Join(t.TempDir(), "derived.vpk")
	if _, err := p.Save(sampleBlobs(), path); err != nil {
		t.Fatal(err)
	}
	blobs, err := p.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	blobsEqual(t, blobs, sampleBlobs())

	h, err := Probe(path)
	if err != nil {
		t.Fatal(err)
	}
	if h.KeyLength != 32 {
		t.Fatalf("key length %d, want 32", h.KeyLength)
	}
}

func TestPayloadSizeMatchesFile(t *testing.T) {
	for _, codec := range []compressor.Codec{compressor.CodecNone, compressor.CodecZstd, compressor.CodecGzip} {
		p := New(testKey(), WithCompression(codec))
		path := filepath.Join(t.TempDir(), "sized.vpk")
		if _, err := p.Save(sampleBlobs(), path); err != nil {
			t.Fatal(err)
		}
		h, err := Probe(path)
		if err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if want := int64(HeaderSize) + int64(h.PayloadSize); info.Size() != want {
			t.Fatalf("%s: file is %d bytes, header says %d", codec, info.Size(), want)
		}
	}
}

func TestSaveHeaderFields(t *testing.T) {
	origNow := timeNow
	timeNow = func() time.Time { return time.Unix(1700000000, 0) }
	defer func() { timeNow = origNow }()

	p := New(testKey())
	path := filepath.Join(t.TempDir(), "fields.vpk")
	if _, err := p.Save(sampleBlobs(), path); err != nil {
		t.Fatal(err)
	}
	h, err := p.Info(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Header{
		Name:        "fields",
		Info:        "Encrypted data package",
		PayloadSize: h.PayloadSize,
		Author:      "Valky Fischer",
		Copyright:   "Valky ⓒ 2023",
		Timestamp:   1700000000,
		Encryption:  "AES-GCM",
		KeyLength:   32,
		Version:     2,
		Compression: "zstd",
	}
	if h != want {
		t.Fatalf("header:\n got %+v\nwant %+v", h, want)
	}
	if h.PayloadSize == 0 {
		t.Fatal("payload size is zero")
	}
}

func TestSaveFreshNoncePerCall(t *testing.T) {
	origNow := timeNow
	timeNow = func() time.Time { return time.Unix(1700000000, 0) }
	defer func() { timeNow = origNow }()

	p := New(testKey(), WithCompression(compressor.CodecNone))
	dir := t.TempDir()
	first := filepath.Join(dir, "one.vpk")
	second := filepath.Join(dir, "two.vpk")
	if _, err := p.Save(sampleBlobs(), first); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Save(sampleBlobs(), second); err != nil {
		t.Fatal(err)
	}
	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a[HeaderSize:], b[HeaderSize:]) {
		t.Fatal("identical payload across two saves of the same blobs")
	}
}

func TestEmptyBlobSet(t *testing.T) {
	p := New(testKey())
	path := filepath.Join(t.TempDir(), "empty.vpk")
	if _, err := p.Save(BlobSet{}, path); err != nil {
		t.Fatal(err)
	}
	blobs, err := p.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if blobs == nil || len(blobs) != 0 {
		t.Fatalf("got %v, want empty blob set", blobs)
	}
}

func TestNilBlobSetSavesEmpty(t *testing.T) {
	p := New(testKey())
	path := filepath.Join(t.TempDir(), "nil.vpk")
	if _, err := p.Save(nil, path); err != nil {
		t.Fatal(err)
	}
	blobs, err := p.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(blobs) != 0 {
		t.Fatalf("got %d blobs, want none", len(blobs))
	}
}

func TestCreateFromDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "assets")
	if err := os.MkdirAll(filepath.Join(src, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	want := map[string][]byte{
		"a.txt":     []byte("alpha"),
		"sub/b.bin": {1, 2, 3},
	}
	for name, data := range want {
		if err := os.WriteFile(filepath.Join(src, filepath.FromSlash(name)), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	p := New(testKey())
	path, err := p.Create(src, "")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(src, "assets.vpk") {
		t.Fatalf("default path = %q", path)
	}
	blobs, err := p.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	blobsEqual(t, blobs, BlobSet(want))

	h, err := Probe(path)
	if err != nil {
		t.Fatal(err)
	}
	if h.Name != "assets" {
		t.Fatalf("archive name %q, want assets", h.Name)
	}
}

func TestCreateExplicitPath(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "content")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "only.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := New(testKey())
	out := filepath.Join(dir, "out.vpk")
	path, err := p.Create(src, out)
	if err != nil {
		t.Fatal(err)
	}
	if path != out {
		t.Fatalf("path = %q, want %q", path, out)
	}
}

func TestCreateMissingDirectory(t *testing.T) {
	p := New(testKey())
	_, err := p.Create(filepath.Join(t.TempDir(), "absent"), "")
	if !errors.Is(err, ErrDirectoryRead) {
		t.Fatalf("got %v, want ErrDirectoryRead", err)
	}
}

func TestUpdateMergesPatch(t *testing.T) {
	p := New(testKey())
	path := filepath.Join(t.TempDir(), "update.vpk")
	if _, err := p.Save(sampleBlobs(), path); err != nil {
		t.Fatal(err)
	}

	patch := BlobSet{
		"readme.txt": []byte("rewritten"),
		"added.txt":  []byte("brand new"),
	}
	if _, err := p.Update(patch, path); err != nil {
		t.Fatal(err)
	}

	blobs, err := p.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	want := sampleBlobs()
	want["readme.txt"] = []byte("rewritten")
	want["added.txt"] = []byte("brand new")
	blobsEqual(t, blobs, want)
}

func TestUpdateMissingArchive(t *testing.T) {
	p := New(testKey())
	_, err := p.Update(BlobSet{"x": nil}, filepath.Join(t.TempDir(), "absent.vpk"))
	if !errors.Is(err, ErrArchive) {
		t.Fatalf("got %v, want ErrArchive", err)
	}
}

func TestReadEncryptionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gcm.vpk")
	writer := New(testKey())
	if _, err := writer.Save(sampleBlobs(), path); err != nil {
		t.Fatal(err)
	}
	reader := New(testKey(), WithEncryption(crypto.ModeCTR))
	if _, err := reader.Read(path); !errors.Is(err, ErrEncryptionMismatch) {
		t.Fatalf("got %v, want ErrEncryptionMismatch", err)
	}
}

func TestReadCompressionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zstd.vpk")
	writer := New(testKey())
	if _, err := writer.Save(sampleBlobs(), path); err != nil {
		t.Fatal(err)
	}
	reader := New(testKey(), WithCompression(compressor.CodecGzip))
	if _, err := reader.Read(path); !errors.Is(err, ErrCompressionMismatch) {
		t.Fatalf("got %v, want ErrCompressionMismatch", err)
	}
}

func TestReadVersionSkewWarnsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skew.vpk")
	log, hook := logtest.NewNullLogger()
	p := New(testKey(), WithLogger(log))
	if _, err := p.Save(sampleBlobs(), path); err != nil {
		t.Fatal(err)
	}

	// Rewrite the version field in place.
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	var versionBuf [4]byte
	binary.LittleEndian.PutUint32(versionBuf[:], 1)
	if _, err := f.WriteAt(versionBuf[:], 90); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	blobs, err := p.Read(path)
	if err != nil {
		t.Fatalf("version skew must not fail the read: %v", err)
	}
	blobsEqual(t, blobs, sampleBlobs())

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
		}
	}
	if !warned {
		t.Fatal("version skew produced no warning")
	}
}

func TestReadTamperedPayload(t *testing.T) {
	p := New(testKey(), WithCompression(compressor.CodecNone))
	path := filepath.Join(t.TempDir(), "tampered.vpk")
	blobs := BlobSet{"big.bin": bytes.Repeat([]byte("payload"), 512)}
	if _, err := p.Save(blobs, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Flip one byte in the middle of the payload, inside the hex-encoded
	// ciphertext.
	mid := HeaderSize + (len(data)-HeaderSize)/2
	if data[mid] == '0' {
		data[mid] = '1'
	} else {
		data[mid] = '0'
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := p.Read(path)
	if !errors.Is(err, crypto.ErrDecrypt) {
		t.Fatalf("got %v, want crypto.ErrDecrypt", err)
	}
	if out != nil {
		t.Fatal("tampered archive returned blobs")
	}
}

func TestReadWrongKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.vpk")
	if _, err := New(testKey()).Save(sampleBlobs(), path); err != nil {
		t.Fatal(err)
	}
	other := testKey()
	other[0] ^= 0xFF
	if _, err := New(other).Read(path); !errors.Is(err, crypto.ErrDecrypt) {
		t.Fatalf("got %v, want crypto.ErrDecrypt", err)
	}
}

func TestReadTruncatedPayload(t *testing.T) {
	p := New(testKey())
	path := filepath.Join(t.TempDir(), "cut.vpk")
	if _, err := p.Save(sampleBlobs(), path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:HeaderSize+(len(data)-HeaderSize)/2], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Read(path); !errors.Is(err, ErrArchive) {
		t.Fatalf("got %v, want ErrArchive", err)
	}
}

func TestReadTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.vpk")
	if err := os.WriteFile(path, make([]byte, 50), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(testKey()).Read(path); !errors.Is(err, ErrArchive) {
		t.Fatalf("got %v, want ErrArchive", err)
	}
}

func TestSaveNameTooLong(t *testing.T) {
	p := New(testKey())
	path := filepath.Join(t.TempDir(), strings.Repeat("n", widthName+1)+".vpk")
	_, err := p.Save(sampleBlobs(), path)
	if !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("got %v, want ErrFieldTooLong", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("failed save left a file behind")
	}
}

func TestSaveUnwritableTarget(t *testing.T) {
	p := New(testKey())
	path := filepath.Join(t.TempDir(), "missing", "deep", "out.vpk")
	if _, err := p.Save(sampleBlobs(), path); !errors.Is(err, ErrArchive) {
		t.Fatalf("got %v, want ErrArchive", err)
	}
}

func TestInfoMatchesProbe(t *testing.T) {
	p := New(testKey())
	path := filepath.Join(t.TempDir(), "probe.vpk")
	if _, err := p.Save(sampleBlobs(), path); err != nil {
		t.Fatal(err)
	}
	fromInfo, err := p.Info(path)
	if err != nil {
		t.Fatal(err)
	}
	fromProbe, err := Probe(path)
	if err != nil {
		t.Fatal(err)
	}
	if fromInfo != fromProbe {
		t.Fatalf("Info %+v != Probe %+v", fromInfo, fromProbe)
	}
}
