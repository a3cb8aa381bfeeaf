package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// Compressor packs sample values for storage
type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressor creates a compressor for levels 1 (fastest) to 4 (smallest)
func NewCompressor(level int) (*Compressor, error) {
	encLevel := zstd.SpeedDefault
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 2:
		encLevel = zstd.SpeedDefault
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &Compressor{
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// CompressSamples XORs each value's bits with its predecessor and compresses
// the result. Neighbouring accelerogram samples share sign and exponent bits,
// so the XOR stream is mostly zeros.
func (c *Compressor) CompressSamples(values []float64) []byte {
	if len(values) == 0 {
		return nil
	}

	raw := make([]byte, 0, 8*len(values))
	var prev uint64
	for _, v := range values {
		bits := math.Float64bits(v)
		raw = binary.LittleEndian.AppendUint64(raw, bits^prev)
		prev = bits
	}

	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

// DecompressSamples reverses CompressSamples. count must match the number
// of values compressed.
func (c *Compressor) DecompressSamples(data []byte, count int) ([]float64, error) {
	if count == 0 {
		return nil, nil
	}

	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	if len(raw) != 8*count {
		return nil, fmt.Errorf("sample block holds %d bytes, want %d", len(raw), 8*count)
	}

	values := make([]float64, count)
	var prev uint64
	for i := range values {
		bits := binary.LittleEndian.Uint64(raw[8*i:]) ^ prev
		values[i] = math.Float64frombits(bits)
		prev = bits
	}

	return values, nil
}

// Close closes the compressor resources
func (c *Compressor) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}
