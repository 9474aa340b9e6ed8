package chunk

import (
	"errors"
	"fmt"
)

// DefaultSoftLimit is the watermark used when no WithSoftLimit option is given.
const DefaultSoftLimit = 2 << 10

var (
	// ErrClosed is returned by every operation on a buffer after Close.
	ErrClosed = errors.New("chunk: buffer is closed")
	// ErrRange reports an AppendRange slice outside the source string.
	ErrRange = errors.New("chunk: append range out of bounds")
)

// Option configures a Buffer before first use.
type Option func(*Buffer)

// WithSoftLimit sets the advisory size watermark reported by SoftLimitReached.
// Non-positive values keep the default.
func WithSoftLimit(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.softLimit = n
		}
	}
}

// WithCapacity preallocates the internal store.
func WithCapacity(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.data = make([]byte, 0, n)
		}
	}
}

// Buffer is an append-only byte store that hands out its contents as
// independently owned chunks. It is not safe for concurrent use: a buffer
// belongs to exactly one render.
type Buffer struct {
	data      []byte
	off       int
	softLimit int
	closed    bool
}

// New constructs an empty buffer.
func New(options ...Option) *Buffer {
	b := &Buffer{softLimit: DefaultSoftLimit}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(b)
	}
	return b
}

// Append adds s to the tail of the buffer and returns the buffer so calls can
// be chained.
func (b *Buffer) Append(s string) (*Buffer, error) {
	return b.AppendRange(s, 0, len(s))
}

// AppendRange adds s[start:end] to the tail of the buffer.
func (b *Buffer) AppendRange(s string, start, end int) (*Buffer, error) {
	if b.closed {
		return b, ErrClosed
	}
	if start < 0 || end < start || end > len(s) {
		return b, fmt.Errorf("%w: [%d:%d] of %d bytes", ErrRange, start, end, len(s))
	}
	b.data = append(b.data, s[start:end]...)
	return b, nil
}

// AppendByte adds a single byte to the tail of the buffer.
func (b *Buffer) AppendByte(c byte) (*Buffer, error) {
	if b.closed {
		return b, ErrClosed
	}
	b.data = append(b.data, c)
	return b, nil
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// WriteString implements io.StringWriter.
func (b *Buffer) WriteString(s string) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	b.data = append(b.data, s...)
	return len(s), nil
}

// Export removes every buffered byte and returns it as a chunk owned by the
// caller. An empty buffer yields an empty chunk.
func (b *Buffer) Export() (*Chunk, error) {
	return b.ExportMax(0)
}

// ExportMax behaves like Export but returns at most maxSize bytes, leaving the
// remainder buffered. maxSize <= 0 means no cap.
func (b *Buffer) ExportMax(maxSize int) (*Chunk, error) {
	if b.closed {
		return nil, ErrClosed
	}

	n := b.Len()
	if maxSize > 0 && maxSize < n {
		n = maxSize
	}

	c := newChunk(b.data[b.off : b.off+n])
	b.off += n
	if b.off == len(b.data) {
		b.data = b.data[:0]
		b.off = 0
	}
	return c, nil
}

// SoftLimitReached reports whether the unexported size has met the
// watermark. The limit is advisory; writes are never refused because of it.
func (b *Buffer) SoftLimitReached() bool {
	return b.Len() >= b.softLimit
}

// Len returns the number of buffered, not yet exported bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.off
}

// SoftLimit returns the configured watermark.
func (b *Buffer) SoftLimit() int {
	return b.softLimit
}

// Closed reports whether Close has been called.
func (b *Buffer) Closed() bool {
	return b.closed
}

// Close releases the internal store. Closing twice is an error so lifecycle
// bugs surface instead of being masked.
func (b *Buffer) Close() error {
	if b.closed {
		return ErrClosed
	}
	b.closed = true
	b.data = nil
	b.off = 0
	return nil
}
