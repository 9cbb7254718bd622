package compress

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the compression algorithm of a frame.
type Codec uint8

const (
	// None stores the body uncompressed.
	None Codec = 0
	// LZ4 uses lz4 block compression (fast).
	LZ4 Codec = 1
	// Zstd uses zstd (better ratio).
	Zstd Codec = 2
)

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps "", "none", "lz4" and "zstd" to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	}
	return None, fmt.Errorf("compress: unknown codec %q", s)
}

// ParseLevel maps "", "fastest", "default", "better" and "best" to a zstd
// encoder level. The empty string selects the default.
func ParseLevel(s string) (zstd.EncoderLevel, error) {
	if s == "" {
		return zstd.SpeedDefault, nil
	}
	ok, level := zstd.EncoderLevelFromString(s)
	if !ok {
		return zstd.SpeedDefault, fmt.Errorf("compress: unknown level %q", s)
	}
	return level, nil
}

var magic = [4]byte{'S', 'T', 'Z', 0x01}

const headerSize = len(magic) + 1 + 4

// zstdMagic opens every zstd frame.
var zstdMagic = [4]byte{0x28, 0xb5, 0x2f, 0xfd}

// lz4MaxRatio bounds the expansion of one lz4 block.
const lz4MaxRatio = 255

// MaxRawSize is the largest payload a frame can describe.
const MaxRawSize = math.MaxUint32

var (
	// ErrCorrupt is returned when a framed payload cannot be decoded.
	ErrCorrupt = errors.New("compress: corrupt frame")
	// ErrTooLarge is returned by Encode for payloads above MaxRawSize.
	ErrTooLarge = errors.New("compress: payload too large")
)

var (
	zstdEncoders sync.Map // zstd.EncoderLevel -> *sync.Pool
	zstdDecoders sync.Pool
)

func encoderPool(level zstd.EncoderLevel) *sync.Pool {
	if p, ok := zstdEncoders.Load(level); ok {
		return p.(*sync.Pool)
	}
	p, _ := zstdEncoders.LoadOrStore(level, &sync.Pool{
		New: func() any {
			enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
			return enc
		},
	})
	return p.(*sync.Pool)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxRawSize))
	return dec
}

// IsFramed reports whether data starts with the frame magic.
func IsFramed(data []byte) bool {
	return len(data) >= headerSize && bytes.Equal(data[:len(magic)], magic[:])
}

// Encode frames data with codec. Bodies that do not shrink are stored with
// codec None.
func Encode(data []byte, codec Codec, level zstd.EncoderLevel) ([]byte, error) {
	if err := checkRawSize(uint64(len(data))); err != nil {
		return nil, err
	}

	var body []byte
	switch codec {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		// n == 0 means incompressible.
		body = buf[:n]
	case Zstd:
		pool := encoderPool(level)
		enc := pool.Get().(*zstd.Encoder)
		body = enc.EncodeAll(data, nil)
		pool.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unknown codec %d", codec)
	}

	if len(body) == 0 || len(body) >= len(data) {
		codec, body = None, data
	}

	out := make([]byte, headerSize+len(body))
	copy(out, magic[:])
	out[len(magic)] = byte(codec)
	binary.LittleEndian.PutUint32(out[len(magic)+1:], uint32(len(data)))
	copy(out[headerSize:], body)
	return out, nil
}

func checkRawSize(n uint64) error {
	if n > MaxRawSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, n, uint64(MaxRawSize))
	}
	return nil
}

// plausible reports whether a header could have been written by Encode.
// It runs before anything is allocated from rawLen.
func plausible(codec Codec, rawLen uint32, body []byte) bool {
	switch codec {
	case None:
		return uint64(len(body)) == uint64(rawLen)
	case LZ4:
		return len(body) > 0 &&
			uint64(len(body)) < uint64(rawLen) &&
			uint64(rawLen) <= lz4MaxRatio*uint64(len(body))
	case Zstd:
		return uint64(len(body)) < uint64(rawLen) && bytes.HasPrefix(body, zstdMagic[:])
	default:
		return false
	}
}

// Decode unwraps a frame produced by Encode. Data that is not a frame,
// including data that only starts with the frame magic, is returned as is
// with ok false.
func Decode(data []byte) (raw []byte, ok bool, err error) {
	if !IsFramed(data) {
		return data, false, nil
	}

	codec := Codec(data[len(magic)])
	rawLen := binary.LittleEndian.Uint32(data[len(magic)+1:])
	body := data[headerSize:]

	if !plausible(codec, rawLen, body) {
		return data, false, nil
	}

	switch codec {
	case LZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(n) != rawLen {
			return nil, true, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, true, nil
	case Zstd:
		dec := getZstdDecoder()
		defer zstdDecoders.Put(dec)
		out, err := dec.DecodeAll(body, nil)
		if err != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(len(out)) != rawLen {
			return nil, true, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, true, nil
	default:
		return body, true, nil
	}
}
