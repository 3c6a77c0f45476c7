package compressor

import "errors"

var (
	ErrUnknownCodec = errors.New("compressor: unknown codec")
	ErrCompress     = errors.New("compressor: compression failed")
	ErrDecompress   = errors.New("compressor: decompression failed")
)
