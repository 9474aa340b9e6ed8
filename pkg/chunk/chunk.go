package chunk

import (
	"io"
	"sync"
)

// maxPooledSize keeps oversized blocks out of the pool.
const maxPooledSize = 64 << 10

var blockPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, DefaultSoftLimit)
		return &b
	},
}

// Chunk is a block of exported bytes. It does not alias the buffer it came
// from; the receiver owns it and should Release it once written.
type Chunk struct {
	data     []byte
	block    *[]byte
	released bool
}

func newChunk(src []byte) *Chunk {
	if len(src) == 0 {
		return &Chunk{}
	}
	block := blockPool.Get().(*[]byte)
	data := append((*block)[:0], src...)
	return &Chunk{data: data, block: block}
}

// Bytes returns the chunk contents. The slice is only valid until Release.
func (c *Chunk) Bytes() []byte {
	if c == nil || c.released {
		return nil
	}
	return c.data
}

// String returns a copy of the chunk contents.
func (c *Chunk) String() string {
	return string(c.Bytes())
}

// Len returns the number of bytes held by the chunk.
func (c *Chunk) Len() int {
	return len(c.Bytes())
}

// WriteTo implements io.WriterTo.
func (c *Chunk) WriteTo(w io.Writer) (int64, error) {
	data := c.Bytes()
	if len(data) == 0 {
		return 0, nil
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Release hands the backing storage back for reuse. Releasing twice is a
// no-op; a released chunk reads as empty.
func (c *Chunk) Release() {
	if c == nil || c.released {
		return
	}
	c.released = true
	if c.block != nil && cap(c.data) <= maxPooledSize {
		*c.block = c.data[:0]
		blockPool.Put(c.block)
	}
	c.data = nil
	c.block = nil
}
