package keypad

// Reader is the non-blocking character stream over a CircularBuffer.
type Reader struct {
	buf *CircularBuffer
}

// NewReader creates a Reader draining buf.
func NewReader(buf *CircularBuffer) *Reader {
	return &Reader{buf: buf}
}

// Read copies up to len(p) buffered keys into p. It never waits for data:
// when nothing is buffered it returns 0, nil and the caller decides whether
// to retry.
func (r *Reader) Read(p []byte) (int, error) {
	return r.buf.DrainInto(p), nil
}
