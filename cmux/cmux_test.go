package cmux

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-modem/cellular/pipe"
)

func TestConnectAndDLCIHandshake(t *testing.T) {
	underlying := pipe.NewLoopback()
	require.NoError(t, underlying.Open(context.Background()))

	connected := make(chan struct{}, 1)
	m := New(Config{OnEvent: func(evt Event) {
		if evt == EventConnected {
			connected <- struct{}{}
		}
	}})
	require.NoError(t, m.Attach(underlying))

	m.ConnectAsync()
	require.NotEmpty(t, underlying.Written())

	underlying.Push(encode(frame{dlci: 0, cr: false, typ: frameUA}))
	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("never connected")
	}

	dlci1 := m.DLCIInit(1, 64)
	opened := make(chan struct{}, 1)
	require.NoError(t, dlci1.Attach(func(p pipe.Pipe, evt pipe.Event) {
		if evt == pipe.EventOpened {
			opened <- struct{}{}
		}
	}))
	require.NoError(t, dlci1.Open(context.Background()))
	require.NotEmpty(t, underlying.Written())

	underlying.Push(encode(frame{dlci: 1, cr: false, typ: frameUA}))
	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("dlci1 never opened")
	}

	n, err := dlci1.Transmit([]byte("AT\r"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NotEmpty(t, underlying.Written())
}

func TestDLCIDataDelivery(t *testing.T) {
	underlying := pipe.NewLoopback()
	require.NoError(t, underlying.Open(context.Background()))

	m := New(Config{})
	require.NoError(t, m.Attach(underlying))
	dlci2 := m.DLCIInit(2, 64)

	var received []byte
	ready := make(chan struct{}, 1)
	require.NoError(t, dlci2.Attach(func(p pipe.Pipe, evt pipe.Event) {
		if evt == pipe.EventReceiveReady {
			buf := make([]byte, 64)
			n, _ := p.Receive(buf)
			received = append(received, buf[:n]...)
			ready <- struct{}{}
		}
	}))

	underlying.Push(encode(frame{dlci: 2, cr: true, typ: frameUIH, payload: []byte("+CREG: 0,1\r")}))
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("never delivered data")
	}
	assert.Equal(t, "+CREG: 0,1\r", string(received))
}

func TestReleaseClosesDLCIs(t *testing.T) {
	underlying := pipe.NewLoopback()
	require.NoError(t, underlying.Open(context.Background()))
	m := New(Config{})
	require.NoError(t, m.Attach(underlying))
	d := m.DLCIInit(1, 16)

	closed := make(chan struct{}, 1)
	require.NoError(t, d.Attach(func(p pipe.Pipe, evt pipe.Event) {
		if evt == pipe.EventClosed {
			closed <- struct{}{}
		}
	}))
	m.Release()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("dlci not closed on Release")
	}
}
