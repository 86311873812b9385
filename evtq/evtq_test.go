package evtq_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-modem/cellular/evtq"
)

func TestFIFOOrder(t *testing.T) {
	q := evtq.New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	go func() {
		q.Run(ctx, nil, -1, func(evt int) {
			mu.Lock()
			got = append(got, evt)
			mu.Unlock()
			if len(got) == 3 {
				close(done)
			}
		})
	}()

	q.Delegate(1)
	q.Delegate(2)
	q.Delegate(3)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for events")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestSuspendDominatesTrailingEvent(t *testing.T) {
	q := evtq.New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var suspendRequested atomic.Bool
	suspendRequested.Store(true)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	var once sync.Once
	go func() {
		q.Run(ctx, &suspendRequested, 99, func(evt int) {
			mu.Lock()
			got = append(got, evt)
			n := len(got)
			mu.Unlock()
			if n == 2 {
				once.Do(func() { close(done) })
			}
		})
	}()

	q.Delegate(1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trailing suspend event")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0])
	assert.Equal(t, 99, got[1])
}

func TestCapacityDropsExcessEvents(t *testing.T) {
	q := evtq.New(2)
	// Delegate before Run starts draining, so the buffer actually fills.
	q.Delegate(1)
	q.Delegate(2)
	q.Delegate(3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	var once sync.Once
	go func() {
		q.Run(ctx, nil, -1, func(evt int) {
			mu.Lock()
			got = append(got, evt)
			n := len(got)
			mu.Unlock()
			if n == 2 {
				once.Do(func() { close(done) })
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, got)
}
