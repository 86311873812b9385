// Package ring implements a small fixed-capacity byte ring buffer used by
// the UART Pipe backend for its RX and TX staging buffers.
package ring

import "sync"

// Buffer is a fixed-capacity, mutex-guarded byte ring buffer. Writes past
// capacity are dropped and counted rather than blocking or growing, mirroring
// the bounded RX/TX rings of a real UART driver.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	head     int
	size     int
	overflow uint64
}

// New creates a Buffer with the given capacity in bytes.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Write appends p to the buffer, dropping trailing bytes that don't fit and
// incrementing the overflow counter for each dropped byte.
func (b *Buffer) Write(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cap := len(b.data)
	free := cap - b.size
	n := len(p)
	if n > free {
		b.overflow += uint64(n - free)
		n = free
	}
	for i := 0; i < n; i++ {
		b.data[(b.head+b.size)%cap] = p[i]
		b.size++
	}
	return n
}

// Read drains up to len(p) bytes into p, returning the count read.
func (b *Buffer) Read(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cap := len(b.data)
	n := len(p)
	if n > b.size {
		n = b.size
	}
	for i := 0; i < n; i++ {
		p[i] = b.data[(b.head+i)%cap]
	}
	b.head = (b.head + n) % cap
	b.size -= n
	return n
}

// Len returns the number of unread bytes currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Overflow returns the cumulative number of bytes dropped due to capacity.
func (b *Buffer) Overflow() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow
}
