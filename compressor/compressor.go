// Package compressor provides the compression engine used by Valkyrie
// archives: a closed set of codecs behind a single deflate/inflate pair.
//
// Codecs are identified by a [Codec] value whose name is stored verbatim in
// the archive header, so names are protocol constants and never exceed the
// header field width. The engine transforms byte slices only; it knows
// nothing about encryption or container layout.
package compressor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Codec identifies a compression algorithm. The zero value is CodecNone.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecGzip
	CodecBzip2
	CodecLZMA
	CodecLZ4
	CodecZstd
	CodecBrotli
)

// String returns the codec name as stored in archive headers.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecGzip:
		return "gzip"
	case CodecBzip2:
		return "bzip2"
	case CodecLZMA:
		return "lzma"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	case CodecBrotli:
		return "br"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec parses a codec from its header name.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none":
		return CodecNone, nil
	case "gzip":
		return CodecGzip, nil
	case "bzip2":
		return CodecBzip2, nil
	case "lzma":
		return CodecLZMA, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	case "br":
		return CodecBrotli, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// zstdEncoder and zstdDecoder are reused across calls; both are safe for
// concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic("compressor: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compressor: zstd decoder initialization failed: " + err.Error())
	}
}

// Function variables for testing injection.
var (
	readAll     = io.ReadAll
	gzipClose   = func(w *gzip.Writer) error { return w.Close() }
	bzip2Close  = func(w *bzip2.Writer) error { return w.Close() }
	xzClose     = func(w *xz.Writer) error { return w.Close() }
	lz4Close    = func(w *lz4.Writer) error { return w.Close() }
	brotliClose = func(w *brotli.Writer) error { return w.Close() }
)

// Deflate compresses data with the given codec. For CodecNone the input is
// returned unchanged (no copy). Every output round-trips through [Inflate]
// with the same codec, including empty input.
func Deflate(data []byte, codec Codec) ([]byte, error) {
	var out []byte
	var err error
	switch codec {
	case CodecNone:
		return data, nil
	case CodecGzip:
		out, err = gzipCompress(data)
	case CodecBzip2:
		out, err = bzip2Compress(data)
	case CodecLZMA:
		out, err = xzCompress(data)
	case CodecLZ4:
		out, err = lz4Compress(data)
	case CodecZstd:
		out = zstdEncoder.EncodeAll(data, nil)
	case CodecBrotli:
		out, err = brotliCompress(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompress, codec, err)
	}
	return out, nil
}

// Inflate decompresses data with the given codec. For CodecNone the input
// is returned unchanged. Corrupt or truncated streams return ErrDecompress.
func Inflate(data []byte, codec Codec) ([]byte, error) {
	var out []byte
	var err error
	switch codec {
	case CodecNone:
		return data, nil
	case CodecGzip:
		out, err = gzipDecompress(data)
	case CodecBzip2:
		out, err = bzip2Decompress(data)
	case CodecLZMA:
		out, err = xzDecompress(data)
	case CodecLZ4:
		out, err = lz4Decompress(data)
	case CodecZstd:
		out, err = zstdDecoder.DecodeAll(data, nil)
	case CodecBrotli:
		out, err = brotliDecompress(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecompress, codec, err)
	}
	return out, nil
}

func gzipCompress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(in); err != nil {
		_ = gzipClose(zw)
		return nil, err
	}
	if err := gzipClose(zw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(in []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return readAll(zr)
}

func bzip2Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	bw, err := bzip2.NewWriter(&buf, nil)
	if err != nil {
		return nil, err
	}
	if _, err := bw.Write(in); err != nil {
		_ = bzip2Close(bw)
		return nil, err
	}
	if err := bzip2Close(bw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bzip2Decompress(in []byte) ([]byte, error) {
	br, err := bzip2.NewReader(bytes.NewReader(in), nil)
	if err != nil {
		return nil, err
	}
	defer br.Close()
	return readAll(br)
}

// xzCompress writes the xz container format, the same stream the original
// lzma tooling produces by default.
func xzCompress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := xw.Write(in); err != nil {
		_ = xzClose(xw)
		return nil, err
	}
	if err := xzClose(xw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func xzDecompress(in []byte) ([]byte, error) {
	xr, err := xz.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	return readAll(xr)
}

func lz4Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(in); err != nil {
		_ = lz4Close(zw)
		return nil, err
	}
	if err := lz4Close(zw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Decompress(in []byte) ([]byte, error) {
	return readAll(lz4.NewReader(bytes.NewReader(in)))
}

func brotliCompress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	if _, err := bw.Write(in); err != nil {
		_ = brotliClose(bw)
		return nil, err
	}
	if err := brotliClose(bw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func brotliDecompress(in []byte) ([]byte, error) {
	return readAll(brotli.NewReader(bytes.NewReader(in)))
}
