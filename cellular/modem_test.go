package cellular_test

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-modem/cellular/cellular"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestModem(t *testing.T, apn string) (*cellular.Modem, *fakeModem, func()) {
	t.Helper()
	return newTestModemWithConfig(t, apn, func(cfg *cellular.DeviceConfig) {})
}

// newTestModemWithConfig is newTestModem with a hook to set fields (GPIO
// lines, ...) on the DeviceConfig before Run starts.
func newTestModemWithConfig(t *testing.T, apn string, configure func(*cellular.DeviceConfig)) (*cellular.Modem, *fakeModem, func()) {
	t.Helper()
	client, server := net.Pipe()
	fm := newFakeModem(t, server)

	cfg := cellular.DeviceConfig{
		UART:   client,
		APN:    apn,
		Logger: quietLogger(),
	}
	configure(&cfg)

	m := cellular.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cleanup := func() {
		cancel()
		server.Close()
		<-done
	}
	return m, fm, cleanup
}

// fakeGPIOLine is a test double for cellular.GPIOLine: an in-memory
// active/inactive latch that records how many times it was pulsed.
type fakeGPIOLine struct {
	mu          sync.Mutex
	asserted    bool
	assertCount int
}

func (g *fakeGPIOLine) Assert() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.asserted = true
	g.assertCount++
	return nil
}

func (g *fakeGPIOLine) Deassert() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.asserted = false
	return nil
}

func (g *fakeGPIOLine) Asserted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.asserted
}

func (g *fakeGPIOLine) pulses() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.assertCount
}

func waitForState(t *testing.T, m *cellular.Modem, want cellular.State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, last seen %s", want, m.State())
}

func TestColdBringUpNoGPIOReachesCarrierOn(t *testing.T) {
	m, _, cleanup := newTestModem(t, "internet")
	defer cleanup()

	m.Resume()
	waitForState(t, m, cellular.StateCarrierOn, 3*time.Second)

	assert.Equal(t, "FAKE-MODEM-1", m.HardwareInfo())
	wantIMEI := [15]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 1, 2, 3, 4, 5}
	assert.Equal(t, wantIMEI, m.IMEI())
}

func TestDialFailureIsRetried(t *testing.T) {
	m, fm, cleanup := newTestModem(t, "internet")
	defer cleanup()

	fm.failNextDial()
	m.Resume()

	// dialRetryWait is 500ms; allow several retries' worth of headroom.
	waitForState(t, m, cellular.StateCarrierOn, 4*time.Second)
}

func TestLossOfRegistrationTriggersRedial(t *testing.T) {
	m, fm, cleanup := newTestModem(t, "internet")
	defer cleanup()

	m.Resume()
	waitForState(t, m, cellular.StateCarrierOn, 3*time.Second)

	fm.setRegistered(0, 0)
	waitForState(t, m, cellular.StateRunDial, 6*time.Second)

	fm.setRegistered(5, 1)
	waitForState(t, m, cellular.StateCarrierOn, 4*time.Second)
}

func TestSuspendDuringRegisterReturnsToIdle(t *testing.T) {
	m, fm, cleanup := newTestModem(t, "internet")
	defer cleanup()

	fm.setRegistered(0, 0) // never satisfies isRegistered, so it parks in Register
	m.Resume()
	waitForState(t, m, cellular.StateRegister, 3*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Suspend(ctx))
	assert.Equal(t, cellular.StateIdle, m.State())
}

func TestColdBringUpWithPowerGPIO(t *testing.T) {
	power := &fakeGPIOLine{}
	m, _, cleanup := newTestModemWithConfig(t, "internet", func(cfg *cellular.DeviceConfig) {
		cfg.PowerGPIO = power
	})
	defer cleanup()

	m.Resume()
	// startupTime is 10s on top of the 1500ms power pulse; give it headroom.
	waitForState(t, m, cellular.StateCarrierOn, 18*time.Second)

	assert.Equal(t, 1, power.pulses())
	assert.False(t, power.Asserted(), "power line should be deasserted again once the pulse completes")
}

func TestSuspendWithPowerGPIO(t *testing.T) {
	power := &fakeGPIOLine{}
	m, _, cleanup := newTestModemWithConfig(t, "internet", func(cfg *cellular.DeviceConfig) {
		cfg.PowerGPIO = power
	})
	defer cleanup()

	m.Resume()
	waitForState(t, m, cellular.StateCarrierOn, 18*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	require.NoError(t, m.Suspend(ctx))

	assert.Equal(t, cellular.StateIdle, m.State())
	assert.Equal(t, 2, power.pulses(), "expect one pulse at power-on and a second at shutdown")
	assert.False(t, power.Asserted())
}

func TestCMUXHandshakeRetry(t *testing.T) {
	m, fm, cleanup := newTestModem(t, "internet")
	defer cleanup()

	fm.dropNextConnectSABM()
	m.Resume()
	waitForState(t, m, cellular.StateConnectCmux, time.Second)

	// cmuxConnectWait is 500ms before the machine retries; the fake modem
	// answers UA on the second SABM it sees.
	waitForState(t, m, cellular.StateCarrierOn, 4*time.Second)
}
