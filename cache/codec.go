package cache

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns cached values into bytes and back.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Frame markers prefixed to every encoded value.
const (
	frameRaw  byte = 0x00
	frameZstd byte = 0x01
)

// DefaultCompressionThreshold is the payload size from which values are
// compressed. Small listings are not worth the CPU.
const DefaultCompressionThreshold = 1024

var errEmptyFrame = errors.New("cache: empty frame")

// MsgpackCodec encodes values with msgpack and compresses large payloads
// with zstd.
type MsgpackCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewMsgpackCodec returns a codec. With compress false values are stored
// uncompressed but compressed frames written earlier can still be read.
func NewMsgpackCodec(compress bool, threshold int) (*MsgpackCodec, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("cache: zstd decoder: %w", err)
	}

	c := &MsgpackCodec{decoder: decoder, threshold: threshold}
	if c.threshold <= 0 {
		c.threshold = DefaultCompressionThreshold
	}

	if compress {
		encoder, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			decoder.Close()
			return nil, fmt.Errorf("cache: zstd encoder: %w", err)
		}
		c.encoder = encoder
	}

	return c, nil
}

// Marshal encodes v with msgpack and compresses it when it is larger than
// the threshold.
func (c *MsgpackCodec) Marshal(v any) ([]byte, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}

	if c.encoder != nil && len(payload) >= c.threshold {
		compressed := c.encoder.EncodeAll(payload, make([]byte, 1, len(payload)/2+1))
		if len(compressed) < len(payload)+1 {
			compressed[0] = frameZstd
			return compressed, nil
		}
	}

	framed := make([]byte, 0, len(payload)+1)
	framed = append(framed, frameRaw)
	return append(framed, payload...), nil
}

// Unmarshal decodes data produced by Marshal, compressed or not.
func (c *MsgpackCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return errEmptyFrame
	}

	payload := data[1:]
	switch data[0] {
	case frameRaw:
	case frameZstd:
		decoded, err := c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return fmt.Errorf("cache: zstd decode: %w", err)
		}
		payload = decoded
	default:
		return fmt.Errorf("cache: unknown frame 0x%02x", data[0])
	}

	return msgpack.Unmarshal(payload, v)
}

// Close releases the zstd encoder and decoder.
func (c *MsgpackCodec) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	c.decoder.Close()
}
