package info_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-modem/cellular/info"
)

func TestHasPrefix(t *testing.T) {
	l := "+CREG: 0,1"
	assert.True(t, info.HasPrefix(l, "+CREG"))
	assert.False(t, info.HasPrefix(l, "+CGATT"))
}

func TestTrimPrefix(t *testing.T) {
	i := info.TrimPrefix("+CGATT: 1", "+CGATT")
	assert.Equal(t, "1", i)

	i = info.TrimPrefix("+CREG:0,1", "+CREG")
	assert.Equal(t, "0,1", i)

	i = info.TrimPrefix("no prefix here", "+CREG")
	assert.Equal(t, "no prefix here", i)
}
