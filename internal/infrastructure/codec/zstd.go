// Package codec holds the compression codec shared by storage and artifacts.
package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Algo names a compression algorithm as recorded next to stored bodies.
type Algo string

const (
	AlgoNone Algo = "none"
	AlgoZstd Algo = "zstd"
)

// Zstd compresses whole buffers. Safe for concurrent use.
type Zstd struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstd creates a codec at the default speed level.
func NewZstd() (*Zstd, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Zstd{encoder: encoder, decoder: decoder}, nil
}

// Compress returns the zstd frame of src.
func (z *Zstd) Compress(src []byte) []byte {
	return z.encoder.EncodeAll(src, nil)
}

// Decompress reverses Compress.
func (z *Zstd) Decompress(src []byte) ([]byte, error) {
	out, err := z.decoder.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
