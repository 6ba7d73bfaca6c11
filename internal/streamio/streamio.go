// Package streamio pools zstd readers/writers for streaming large blob
// payloads through the object store without the repeated allocation cost
// of constructing a new encoder/decoder per call (spec §4.2
// "putBlobStreaming"/"getBlobStreaming"), adapted from the teacher's
// modules/streamio/zstd.go.
package streamio

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	decoderPool = sync.Pool{
		New: func() any {
			d, _ := zstd.NewReader(nil)
			return &Decoder{Decoder: d}
		},
	}
	encoderPool = sync.Pool{
		New: func() any {
			e, _ := zstd.NewWriter(nil)
			return &Encoder{Encoder: e}
		},
	}
	bufPool = sync.Pool{
		New: func() any { return new(bytes.Buffer) },
	}
)

// Decoder is a pooled zstd.Decoder.
type Decoder struct {
	*zstd.Decoder
}

// GetDecoder returns a Decoder reset to read from r. Callers must return it
// via PutDecoder when done.
func GetDecoder(r io.Reader) (*Decoder, error) {
	d := decoderPool.Get().(*Decoder)
	if err := d.Reset(r); err != nil {
		decoderPool.Put(d)
		return nil, err
	}
	return d, nil
}

// PutDecoder returns d to the pool.
func PutDecoder(d *Decoder) {
	decoderPool.Put(d)
}

// Encoder is a pooled zstd.Encoder.
type Encoder struct {
	*zstd.Encoder
}

// GetEncoder returns an Encoder reset to write to w. PutEncoder closes it,
// flushing the stream into w, so w is complete only after PutEncoder.
func GetEncoder(w io.Writer) *Encoder {
	e := encoderPool.Get().(*Encoder)
	e.Reset(w)
	return e
}

// PutEncoder closes e's stream and returns it to the pool.
func PutEncoder(e *Encoder) {
	e.Encoder.Close()
	encoderPool.Put(e)
}

// GetBuffer returns a pooled, empty *bytes.Buffer.
func GetBuffer() *bytes.Buffer {
	return bufPool.Get().(*bytes.Buffer)
}

// PutBuffer resets buf and returns it to the pool.
func PutBuffer(buf *bytes.Buffer) {
	buf.Reset()
	bufPool.Put(buf)
}

// Compress returns the zstd-compressed form of payload, used when staging
// an oversized blob to the bundle writer (spec §4.2 tiering rule).
func Compress(payload []byte) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)
	enc := GetEncoder(buf)
	if _, err := enc.Write(payload); err != nil {
		PutEncoder(enc)
		return nil, err
	}
	PutEncoder(enc)
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Decompress reverses Compress.
func Decompress(compressed []byte) ([]byte, error) {
	dec, err := GetDecoder(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer PutDecoder(dec)
	return io.ReadAll(dec)
}

// ChunkReader adapts a lazy sequence of []byte chunks (spec §4.2
// "putBlobStreaming(chunks)") to an io.Reader, so it can be fed directly
// to zoid.HashReader or a zstd encoder without buffering the whole payload.
type ChunkReader struct {
	next func() ([]byte, bool)
	cur  []byte
}

// NewChunkReader wraps next, a function returning the next chunk and
// whether one was available, as an io.Reader.
func NewChunkReader(next func() ([]byte, bool)) *ChunkReader {
	return &ChunkReader{next: next}
}

func (c *ChunkReader) Read(p []byte) (int, error) {
	for len(c.cur) == 0 {
		chunk, ok := c.next()
		if !ok {
			return 0, io.EOF
		}
		c.cur = chunk
	}
	n := copy(p, c.cur)
	c.cur = c.cur[n:]
	return n, nil
}
