package ring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-modem/cellular/pipe/internal/ring"
)

func TestWriteRead(t *testing.T) {
	b := ring.New(4)
	n := b.Write([]byte("ab"))
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, b.Len())

	out := make([]byte, 4)
	n = b.Read(out)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ab", string(out[:n]))
	assert.Equal(t, 0, b.Len())
}

func TestOverflow(t *testing.T) {
	b := ring.New(2)
	n := b.Write([]byte("abcd"))
	assert.Equal(t, 2, n)
	assert.Equal(t, uint64(2), b.Overflow())
}

func TestWraparound(t *testing.T) {
	b := ring.New(4)
	b.Write([]byte("ab"))
	out := make([]byte, 1)
	b.Read(out)
	b.Write([]byte("cde"))
	rest := make([]byte, 10)
	n := b.Read(rest)
	assert.Equal(t, "bcde", string(rest[:n]))
}
