package orchestrator

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/goliatone/go-views/pkg/chunk"
	"github.com/goliatone/go-views/pkg/render"
)

// Output is a finished buffered render. It owns the render's machine and is
// consumed once, by WriteTo or Bytes; Close releases it unconsumed.
type Output struct {
	view string
	m    *render.Machine
	once sync.Once
}

func newOutput(view string, m *render.Machine) *Output {
	return &Output{view: view, m: m}
}

// View returns the rendered view name.
func (o *Output) View() string {
	return o.view
}

// Len returns the number of rendered bytes not yet consumed.
func (o *Output) Len() int {
	return o.m.Buffered()
}

// WriteTo writes the rendered bytes to w and releases the output.
func (o *Output) WriteTo(w io.Writer) (int64, error) {
	var (
		n   int64
		err = render.ErrClosedBuffer
	)
	o.once.Do(func() {
		n, err = o.m.WriteTo(w)
	})
	return n, err
}

// Bytes returns a copy of the rendered bytes and releases the output.
func (o *Output) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(o.Len())
	if _, err := o.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close releases the output. It is safe to call more than once.
func (o *Output) Close() error {
	var err error
	o.once.Do(func() {
		err = o.m.Close()
	})
	return err
}

// Stream yields the chunks of a streaming render in order.
type Stream struct {
	view   string
	chunks chan *chunk.Chunk
	err    error
	cancel context.CancelFunc
}

func newStream(view string, cancel context.CancelFunc) *Stream {
	return &Stream{
		view:   view,
		chunks: make(chan *chunk.Chunk),
		cancel: cancel,
	}
}

// finish records the render outcome and ends the stream.
func (s *Stream) finish(err error) {
	s.err = err
	close(s.chunks)
	s.cancel()
}

// View returns the view being rendered.
func (s *Stream) View() string {
	return s.view
}

// Next returns the next chunk. After the last chunk it returns io.EOF, or the
// render's error when it failed. Callers release every chunk they receive.
func (s *Stream) Next(ctx context.Context) (*chunk.Chunk, error) {
	select {
	case c, ok := <-s.chunks:
		if ok {
			return c, nil
		}
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WriteTo copies every chunk to w, flushing after each when w supports it.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	f, canFlush := w.(interface{ Flush() })

	var total int64
	for {
		c, err := s.Next(context.Background())
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := c.WriteTo(w)
		c.Release()
		total += n
		if err != nil {
			_ = s.Close()
			return total, err
		}
		if canFlush {
			f.Flush()
		}
	}
}

// Close abandons the render and releases any chunk still in flight.
func (s *Stream) Close() error {
	s.cancel()
	for c := range s.chunks {
		c.Release()
	}
	return nil
}
