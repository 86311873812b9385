// Package cellular implements the power-on/registration/PPP-dial lifecycle
// state machine for an AT+CMUX-capable cellular modem: a single dispatcher
// goroutine drains an evtq.Queue of lifecycle events and drives a UART pipe,
// a cmux.CMUX multiplexer, two DLCI sub-pipes, a chat.Chat engine, and a
// ppp.Binding through the eleven states of state.go.
//
// The state table (entry/event/leave per state, and the exact constants in
// timing.go) is carried over from the reference Zephyr modem_cellular.c
// driver, translated from its k_work/k_sem idiom into goroutines, channels
// and time.Timer.
package cellular

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-modem/cellular/chat"
	"github.com/go-modem/cellular/cmux"
	"github.com/go-modem/cellular/evtq"
	"github.com/go-modem/cellular/pipe"
	"github.com/go-modem/cellular/pipe/uartpipe"
	"github.com/go-modem/cellular/ppp"
)

// GPIOLine is the minimal GPIO contract the lifecycle machine needs from a
// power-enable or reset line - satisfied by *gpioline.Line on real hardware
// and swappable for a test double.
type GPIOLine interface {
	Assert() error
	Deassert() error
	Asserted() bool
}

// DeviceConfig configures one Modem instance - the Go counterpart of the
// reference driver's devicetree-derived modem_cellular_config.
type DeviceConfig struct {
	// UART is the underlying byte device the modem is wired to.
	UART io.ReadWriteCloser

	// PowerGPIO, if non-nil, is pulsed active to turn the modem on and
	// asserted to turn it off. ResetGPIO, if non-nil, is pulsed active to
	// bring the modem out of reset when no PowerGPIO is present.
	PowerGPIO GPIOLine
	ResetGPIO GPIOLine

	// APN, Username and Password parametrize the AT+CGDCONT row of the
	// dial script.
	APN      string
	Username string
	Password string

	// Iface receives link-address and carrier notifications. A
	// ppp.NewBasicIface() is used if nil.
	Iface ppp.Iface

	Logger *log.Logger
}

// Modem drives one cellular device through its lifecycle state machine.
// Construct with New, then call Run to start the dispatcher goroutine and
// Resume/Suspend to request power transitions.
type Modem struct {
	cfg    DeviceConfig
	log    *log.Logger
	queue  *evtq.Queue
	uart   pipe.Pipe
	mux    *cmux.CMUX
	dlci1  pipe.Pipe
	dlci2  pipe.Pipe
	chat   *chat.Chat
	ppp    *ppp.Binding

	mu    sync.Mutex
	state State

	timer    *time.Timer
	timerGen atomic.Int64

	imei   [15]byte
	hwinfo string

	accessTech            byte
	registrationStatus    byte
	packetServiceAttached bool

	powerOnPhase int

	suspendRequested atomic.Bool
	suspendSignaled  atomic.Bool
	suspendMu        sync.Mutex
	suspendSignal    chan struct{}

	runOnce sync.Once
}

// New constructs a Modem in StateIdle. The dispatcher goroutine is not
// started until Run is called.
func New(cfg DeviceConfig) *Modem {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	iface := cfg.Iface
	if iface == nil {
		iface = ppp.NewBasicIface()
	}

	m := &Modem{
		cfg:           cfg,
		log:           logger,
		queue:         evtq.New(evtq.DefaultCapacity),
		uart:          uartpipe.New(uartpipe.Config{UART: cfg.UART}),
		chat:          chat.New(chat.DefaultConfig()),
		ppp:           ppp.NewBinding(iface),
		state:         StateIdle,
		suspendSignal: make(chan struct{}),
	}
	m.mux = cmux.New(cmux.Config{OnEvent: m.onCmuxEvent})
	m.dlci1 = m.mux.DLCIInit(1, 128)
	m.dlci2 = m.mux.DLCIInit(2, 256)
	return m
}

// Run starts the single dispatcher goroutine and blocks until ctx is
// cancelled. Call it in its own goroutine.
func (m *Modem) Run(ctx context.Context) {
	m.runOnce.Do(func() {
		m.uart.Open(ctx)
	})
	m.queue.Run(ctx, &m.suspendRequested, int(eventSuspend), m.handleEvent)
}

// Resume requests the modem power up and dial out. It is a no-op if a
// resume/teardown cycle is already in progress.
func (m *Modem) Resume() {
	m.queue.Delegate(int(eventResume))
}

// Suspend requests the modem power down, and blocks until the state machine
// confirms the teardown (mirroring the reference driver's suspended
// semaphore), ctx is done, or suspendDeadline (30s) elapses, whichever
// comes first. On timeout or cancellation it returns ctx's error.
func (m *Modem) Suspend(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, suspendDeadline)
	defer cancel()

	m.suspendMu.Lock()
	ch := m.suspendSignal
	m.suspendMu.Unlock()

	m.suspendRequested.Store(true)
	m.queue.Delegate(int(eventProbe))

	select {
	case <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.suspendMu.Lock()
	m.suspendRequested.Store(false)
	m.suspendSignaled.Store(false)
	m.suspendSignal = make(chan struct{})
	m.suspendMu.Unlock()
	return nil
}

// State reports the current lifecycle state.
func (m *Modem) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PPP returns the PPP binding this Modem drives once CarrierOn is reached.
func (m *Modem) PPP() *ppp.Binding { return m.ppp }

// IMEI returns the 15 decimal digits captured from AT+CGSN during
// RunInit, or the zero value before RunInit completes.
func (m *Modem) IMEI() [15]byte { return m.imei }

// HardwareInfo returns the AT+CGMM response captured during RunInit.
func (m *Modem) HardwareInfo() string { return m.hwinfo }

// signalSuspended raises the suspend-confirmation signal exactly once per
// suspend cycle, guarded by suspendSignaled so that both of PowerOff's
// on_leave (the reference driver's unconditional k_sem_give) and Idle's
// on_enter (reached directly from Register/CarrierOff when no PowerGPIO is
// fitted, bypassing PowerOff entirely) can call it without double-signaling.
func (m *Modem) signalSuspended() {
	if !m.suspendRequested.Load() {
		return
	}
	if !m.suspendSignaled.CompareAndSwap(false, true) {
		return
	}
	m.suspendMu.Lock()
	ch := m.suspendSignal
	m.suspendMu.Unlock()
	close(ch)
}

func (m *Modem) hasPowerGPIO() bool { return m.cfg.PowerGPIO != nil }
func (m *Modem) hasResetGPIO() bool { return m.cfg.ResetGPIO != nil }

func (m *Modem) isRegistered() bool {
	return m.registrationStatus == registeredStat && m.packetServiceAttached
}

func (m *Modem) armTimer(d time.Duration) {
	gen := m.timerGen.Add(1)
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(d, func() {
		if m.timerGen.Load() == gen {
			m.queue.Delegate(int(eventTimeout))
		}
	})
}

func (m *Modem) stopTimer() {
	m.timerGen.Add(1)
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Modem) onCmuxEvent(evt cmux.Event) {
	if evt == cmux.EventConnected {
		m.queue.Delegate(int(eventCmuxConnected))
	}
}

func (m *Modem) onDlci1Event(p pipe.Pipe, evt pipe.Event) {
	if evt == pipe.EventOpened {
		m.queue.Delegate(int(eventDlci1Opened))
	}
}

func (m *Modem) onDlci2Event(p pipe.Pipe, evt pipe.Event) {
	if evt == pipe.EventOpened {
		m.queue.Delegate(int(eventDlci2Opened))
	}
}

// handleEvent is invoked by the dispatcher goroutine for each drained
// event, in order; all state transitions and timer handling happen here,
// so none of the state handlers below take locks of their own. The fields
// captured by chat script callbacks (IMEI, model, registration status) are
// written on the chat engine's receive path, before the script result is
// delegated to this goroutine.
func (m *Modem) handleEvent(evt int) {
	e := event(evt)
	if e == eventProbe {
		return
	}
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()

	m.log.Debug("event", "state", st, "event", e)

	switch st {
	case StateIdle:
		m.idleEvent(e)
	case StatePowerOn:
		m.powerOnEvent(e)
	case StateRunInit:
		m.runInitEvent(e)
	case StateConnectCmux:
		m.connectCmuxEvent(e)
	case StateOpenDlci1:
		m.openDlci1Event(e)
	case StateOpenDlci2:
		m.openDlci2Event(e)
	case StateRunDial:
		m.runDialEvent(e)
	case StateRegister:
		m.registerEvent(e)
	case StateCarrierOn:
		m.carrierOnEvent(e)
	case StateCarrierOff:
		m.carrierOffEvent(e)
	case StatePowerOff:
		m.powerOffEvent(e)
	}
}

// enterState runs the outgoing state's leave handler, switches state, then
// runs the incoming state's enter handler - matching spec.md §4.6: a
// leave-handler error aborts the transition (logged, state unchanged); an
// enter-handler error is logged but the machine still lands in the new
// state, since several enter handlers (RunInit, ConnectCmux) legitimately
// fail when Attach races a Release from a fast double-transition.
func (m *Modem) enterState(s State) {
	m.mu.Lock()
	from := m.state
	m.mu.Unlock()

	if err := m.leave(from); err != nil {
		m.log.Error("state leave failed, transition aborted", "from", from, "to", s, "err", err)
		return
	}

	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.log.Info("state", "from", from, "to", s)

	if err := m.enter(s); err != nil {
		m.log.Error("state enter failed", "state", s, "err", err)
	}
}

func (m *Modem) leave(s State) error {
	switch s {
	case StateIdle:
		return nil
	case StateRunInit:
		m.chat.Release()
	case StateOpenDlci1:
		m.dlci1.Release()
	case StateOpenDlci2:
		m.dlci2.Release()
	case StateRunDial:
		m.chat.Release()
		return m.ppp.Attach(m.dlci2)
	case StateRegister:
		m.stopTimer()
		m.chat.Release()
	case StateCarrierOn:
		m.stopTimer()
		m.chat.Abort()
		m.chat.Release()
		m.ppp.Release()
	case StatePowerOff:
		m.signalSuspended()
	}
	return nil
}

func (m *Modem) enter(s State) error {
	switch s {
	case StateIdle:
		m.signalSuspended()
		return nil
	case StatePowerOn:
		m.powerOnPhase = 0
		m.advancePowerOn()
		return nil
	case StateRunInit:
		if err := m.chat.Attach(m.uart); err != nil {
			return err
		}
		m.chat.Run(m.initScript())
		return nil
	case StateConnectCmux:
		if err := m.mux.Attach(m.uart); err != nil {
			return err
		}
		m.armTimer(cmuxConnectWait)
		return nil
	case StateOpenDlci1:
		m.dlci1.Attach(m.onDlci1Event)
		return m.dlci1.Open(context.Background())
	case StateOpenDlci2:
		m.dlci2.Attach(m.onDlci2Event)
		return m.dlci2.Open(context.Background())
	case StateRunDial:
		if err := m.chat.Attach(m.dlci2); err != nil {
			return err
		}
		m.armTimer(dialRetryWait)
		return nil
	case StateRegister:
		if err := m.chat.Attach(m.dlci1); err != nil {
			return err
		}
		m.armTimer(registerPoll)
		m.chat.Run(m.netStatScript())
		return nil
	case StateCarrierOn:
		m.ppp.Iface().SetCarrier(true)
		if err := m.chat.Attach(m.dlci1); err != nil {
			return err
		}
		m.chat.Run(m.netStatScript())
		m.armTimer(carrierPoll)
		return nil
	case StateCarrierOff:
		m.ppp.Iface().SetCarrier(false)
		m.armTimer(carrierOffWait)
		return nil
	case StatePowerOff:
		m.mux.Release()
		m.uart.Close()
		if m.hasPowerGPIO() {
			m.cfg.PowerGPIO.Assert()
			m.armTimer(powerGPIOPulse)
		}
		return nil
	}
	return nil
}

// advancePowerOn drives the power-on GPIO sequencing sub-phases: first the
// power-enable pulse (if fitted), else the reset pulse, then a startup
// delay before RunInit.
func (m *Modem) advancePowerOn() {
	switch m.powerOnPhase {
	case 0:
		if m.hasPowerGPIO() {
			m.cfg.PowerGPIO.Assert()
			m.powerOnPhase = 1
			m.armTimer(powerGPIOPulse)
			return
		}
		if m.hasResetGPIO() {
			m.cfg.ResetGPIO.Assert()
			m.powerOnPhase = 1
			m.armTimer(resetGPIOPulse)
			return
		}
		m.enterState(StateRunInit)
	default:
		if m.hasPowerGPIO() && m.cfg.PowerGPIO.Asserted() {
			m.cfg.PowerGPIO.Deassert()
			m.armTimer(startupTime)
			return
		}
		if m.hasResetGPIO() && m.cfg.ResetGPIO.Asserted() {
			m.cfg.ResetGPIO.Deassert()
			m.armTimer(startupTime)
			return
		}
		m.enterState(StateRunInit)
	}
}

func (m *Modem) idleEvent(e event) {
	if e != eventResume {
		return
	}
	m.uart.Open(context.Background())
	if m.hasPowerGPIO() || m.hasResetGPIO() {
		m.enterState(StatePowerOn)
		return
	}
	m.enterState(StateRunInit)
}

func (m *Modem) powerOnEvent(e event) {
	if e == eventTimeout {
		m.advancePowerOn()
	}
}

func (m *Modem) runInitEvent(e event) {
	switch e {
	case eventScriptSuccess:
		m.ppp.Iface().SetLinkAddr(m.imei[:])
		m.enterState(StateConnectCmux)
	case eventScriptFailed:
		if m.hasPowerGPIO() {
			m.enterState(StatePowerOn)
			return
		}
		m.enterState(StateRunInit)
	}
}

func (m *Modem) connectCmuxEvent(e event) {
	switch e {
	case eventTimeout:
		m.mux.ConnectAsync()
		m.armTimer(cmuxConnectWait)
	case eventCmuxConnected:
		m.stopTimer()
		m.enterState(StateOpenDlci1)
	}
}

func (m *Modem) openDlci1Event(e event) {
	if e == eventDlci1Opened {
		m.enterState(StateOpenDlci2)
	}
}

func (m *Modem) openDlci2Event(e event) {
	if e == eventDlci2Opened {
		m.enterState(StateRunDial)
	}
}

func (m *Modem) runDialEvent(e event) {
	switch e {
	case eventTimeout:
		m.chat.Run(m.connectScript())
	case eventScriptFailed:
		m.armTimer(dialRetryWait)
	case eventScriptSuccess:
		m.enterState(StateRegister)
	}
}

func (m *Modem) registerEvent(e event) {
	switch e {
	case eventSuspend:
		if m.hasPowerGPIO() {
			m.enterState(StatePowerOff)
			return
		}
		m.enterState(StateIdle)
	case eventScriptSuccess:
		if m.isRegistered() {
			m.enterState(StateCarrierOn)
		}
	case eventTimeout:
		m.armTimer(registerPoll)
		m.chat.Run(m.netStatScript())
	}
}

func (m *Modem) carrierOnEvent(e event) {
	switch e {
	case eventSuspend:
		m.enterState(StateCarrierOff)
	case eventScriptSuccess:
		if !m.isRegistered() {
			m.enterState(StateRunDial)
		}
	case eventTimeout:
		m.chat.Run(m.netStatScript())
		m.armTimer(carrierPoll)
	}
}

func (m *Modem) carrierOffEvent(e event) {
	if e != eventTimeout {
		return
	}
	if m.hasPowerGPIO() {
		m.enterState(StatePowerOff)
		return
	}
	if m.hasResetGPIO() {
		m.cfg.ResetGPIO.Assert()
	}
	m.enterState(StateIdle)
}

func (m *Modem) powerOffEvent(e event) {
	if e != eventTimeout {
		return
	}
	if m.hasPowerGPIO() && m.cfg.PowerGPIO.Asserted() {
		m.cfg.PowerGPIO.Deassert()
		m.armTimer(shutdownTime)
		return
	}
	m.enterState(StateIdle)
}
