package ppp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-modem/cellular/pipe"
	"github.com/go-modem/cellular/ppp"
)

func TestBasicIfaceSetters(t *testing.T) {
	iface := ppp.NewBasicIface()
	assert.False(t, iface.Carrier())
	assert.Empty(t, iface.LinkAddr())

	iface.SetLinkAddr([]byte{1, 2, 3})
	iface.SetCarrier(true)
	assert.Equal(t, []byte{1, 2, 3}, iface.LinkAddr())
	assert.True(t, iface.Carrier())

	iface.SetCarrier(false)
	assert.False(t, iface.Carrier())
}

func TestBindingAttachRelease(t *testing.T) {
	iface := ppp.NewBasicIface()
	b := ppp.NewBinding(iface)

	l := pipe.NewLoopback()
	require.NoError(t, l.Open(context.Background()))

	require.NoError(t, b.Attach(l))
	b.Release()
	// Release is idempotent and safe to call with nothing attached.
	b.Release()
}
