// Package snapshot stores schema snapshots compactly and shares them
// through Redis.
//
// An encoded snapshot is a small header followed by the zstd-compressed
// YAML of the schema tree:
//
//	"MSDS" | version (1 byte) | xxh3 of the YAML (8 bytes, big-endian) | zstd frame
//
// The checksum covers the uncompressed YAML, so Decode detects both a
// damaged frame and a payload that decompresses to something else.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	"github.com/ruslano69/mssqldialect/pkg/core/schema"
)

const (
	magic      = "MSDS"
	version    = 1
	headerSize = len(magic) + 1 + 8

	// DefaultLevel balances speed and size.
	DefaultLevel = 3
)

// ErrCorrupt is returned by Decode for payloads that fail the header or
// checksum test.
var ErrCorrupt = errors.New("snapshot: corrupt payload")

// Codec encodes and decodes snapshots. It is safe for concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a codec compressing at level: 1 (fastest) to 22
// (smallest). Zero selects DefaultLevel.
func NewCodec(level int) (*Codec, error) {
	if level == 0 {
		level = DefaultLevel
	}
	if level < 1 || level > 22 {
		return nil, fmt.Errorf("snapshot: compression level %d out of range 1..22", level)
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Encode returns the framed snapshot and its fingerprint, which equals
// schema.Fingerprint(d).
func (c *Codec) Encode(d *schema.DatabaseSchema) ([]byte, uint64, error) {
	data, err := schema.Marshal(d)
	if err != nil {
		return nil, 0, err
	}
	sum := xxh3.Hash(data)

	out := make([]byte, headerSize, headerSize+len(data)/4)
	copy(out, magic)
	out[len(magic)] = version
	binary.BigEndian.PutUint64(out[len(magic)+1:], sum)
	return c.encoder.EncodeAll(data, out), sum, nil
}

// Decode verifies and decodes a payload produced by Encode.
func (c *Codec) Decode(payload []byte) (*schema.DatabaseSchema, error) {
	sum, err := Checksum(payload)
	if err != nil {
		return nil, err
	}
	data, err := c.decoder.DecodeAll(payload[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if actual := xxh3.Hash(data); actual != sum {
		return nil, fmt.Errorf("%w: checksum mismatch: expected %016x, got %016x", ErrCorrupt, sum, actual)
	}
	return schema.Unmarshal(data)
}

// Checksum returns the fingerprint recorded in the payload header
// without decompressing it.
func Checksum(payload []byte) (uint64, error) {
	if len(payload) < headerSize || !bytes.Equal(payload[:len(magic)], []byte(magic)) {
		return 0, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	if v := payload[len(magic)]; v != version {
		return 0, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	return binary.BigEndian.Uint64(payload[len(magic)+1 : headerSize]), nil
}

// Close releases the compressor resources.
func (c *Codec) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}
