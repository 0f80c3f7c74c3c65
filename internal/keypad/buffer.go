package keypad

import (
	"errors"
	"sync"
)

// DefaultCapacity is the default circular buffer size in bytes.
const DefaultCapacity = 256

// ErrBufferFull is returned by Append when no slot is free.
var ErrBufferFull = errors.New("keypad: buffer full")

// CircularBuffer is a fixed-capacity byte FIFO with independent read and
// write cursors. Equal cursors mean empty, so one slot is always left
// unused: the buffer holds at most capacity-1 bytes and rejects writes
// beyond that instead of overwriting unread data.
//
// Safe for concurrent use.
type CircularBuffer struct {
	mu    sync.Mutex
	data  []byte
	read  int // next byte to consume
	write int // next slot to fill
}

// NewCircularBuffer creates a buffer with the given capacity (minimum 2).
func NewCircularBuffer(capacity int) *CircularBuffer {
	if capacity < 2 {
		capacity = 2
	}
	return &CircularBuffer{data: make([]byte, capacity)}
}

// Append stores c at the write cursor. It returns ErrBufferFull, leaving
// the buffer unchanged, if the buffer already holds capacity-1 bytes.
func (b *CircularBuffer) Append(c byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := (b.write + 1) % len(b.data)
	if next == b.read {
		return ErrBufferFull
	}
	b.data[b.write] = c
	b.write = next
	return nil
}

// Drain removes and returns up to max bytes in FIFO order. It returns nil
// when the buffer is empty or max <= 0.
func (b *CircularBuffer) Drain(max int) []byte {
	if max <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.available()
	if n > max {
		n = max
	}
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	b.copyOut(out)
	return out
}

// DrainInto copies up to len(dst) bytes into dst and returns the count.
// The read cursor advances by exactly the number of bytes copied.
func (b *CircularBuffer) DrainInto(dst []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.available()
	if n > len(dst) {
		n = len(dst)
	}
	if n == 0 {
		return 0
	}
	return b.copyOut(dst[:n])
}

// Len returns the number of unread bytes.
func (b *CircularBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available()
}

// Cap returns the buffer capacity, one more than the bytes it can hold.
func (b *CircularBuffer) Cap() int {
	return len(b.data)
}

// available must be called with mu held.
func (b *CircularBuffer) available() int {
	return (b.write - b.read + len(b.data)) % len(b.data)
}

// copyOut fills dst from the read cursor, crossing the physical end of the
// array in a second segment when the run wraps. Must be called with mu held
// and len(dst) <= available().
func (b *CircularBuffer) copyOut(dst []byte) int {
	n := copy(dst, b.data[b.read:])
	if n < len(dst) {
		n += copy(dst[n:], b.data[:b.write])
	}
	b.read = (b.read + n) % len(b.data)
	return n
}
